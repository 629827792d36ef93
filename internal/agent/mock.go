package agent

import "context"

// ScriptedLLM is a test provider that replays canned responses in order and
// records the prompts it was asked.
type ScriptedLLM struct {
	Responses []string
	Err       error

	SystemPrompts []string
	UserPrompts   []string
	next          int
}

func (s *ScriptedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.SystemPrompts = append(s.SystemPrompts, systemPrompt)
	s.UserPrompts = append(s.UserPrompts, userPrompt)
	if s.Err != nil {
		return "", s.Err
	}
	if s.next >= len(s.Responses) {
		return "", nil
	}
	resp := s.Responses[s.next]
	s.next++
	return resp, nil
}

func (s *ScriptedLLM) Close() error { return nil }

var _ LLMProvider = (*ScriptedLLM)(nil)
