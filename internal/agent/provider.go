// Package agent answers questions, summarizes and extracts information from
// processed documents by retrieving relevant chunks and prompting an LLM.
package agent

import "context"

// LLMProvider generates text from a system and user prompt pair.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close() error
}
