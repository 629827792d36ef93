package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/samukawa/yomitori/internal/embedding"
	"github.com/samukawa/yomitori/internal/keyword"
	"github.com/samukawa/yomitori/internal/metastore"
	"github.com/samukawa/yomitori/internal/models"
	"github.com/samukawa/yomitori/internal/vectorstore"
	"github.com/samukawa/yomitori/pkg/utils"
)

const (
	qaTopK         = 5
	qaSourceCount  = 3
	previewLength  = 200
	summaryTopK    = 20
	summaryJoinMax = 15
	extractTopK    = 15
)

// Agent runs retrieval-augmented generation over processed documents.
type Agent struct {
	meta     *metastore.Store
	vectors  *vectorstore.Store
	keywords *keyword.Index // optional, enables hybrid retrieval
	embedder embedding.Embedder
	llm      LLMProvider
	logger   *zap.Logger
}

// New builds an Agent. keywords may be nil.
func New(meta *metastore.Store, vectors *vectorstore.Store, keywords *keyword.Index, embedder embedding.Embedder, llm LLMProvider, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		meta:     meta,
		vectors:  vectors,
		keywords: keywords,
		embedder: embedder,
		llm:      llm,
		logger:   logger,
	}
}

// ensureProcessed gates every agent operation on document state. The empty
// string means the document is ready.
func (a *Agent) ensureProcessed(documentID string) string {
	doc, err := a.meta.Get(documentID)
	if err != nil {
		return "Document not found"
	}
	if !doc.Processed {
		return "Document not processed"
	}
	return ""
}

// retrieve returns the k most relevant chunks for query. With a keyword index
// present, vector and keyword rankings are fused by reciprocal rank so exact
// terms and semantic matches both count.
func (a *Agent) retrieve(ctx context.Context, documentID, query string, k int) ([]models.Chunk, error) {
	queryVector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	coll, err := a.vectors.Open(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	vecHits := coll.Search(queryVector, k*2)
	if a.keywords == nil {
		chunks := make([]models.Chunk, 0, len(vecHits))
		for i, hit := range vecHits {
			if i == k {
				break
			}
			chunks = append(chunks, hit.Chunk)
		}
		return chunks, nil
	}

	kwHits, err := a.keywords.Search(ctx, query, k*2)
	if err != nil {
		a.logger.Warn("keyword search failed, using vector results only", zap.Error(err))
		kwHits = nil
	}

	// Reciprocal rank fusion over both lists. Keyword hits from other
	// documents are skipped.
	const rrfK = 60
	byChunkID := make(map[string]models.Chunk)
	scores := make(map[string]float64)
	for rank, hit := range vecHits {
		byChunkID[hit.Chunk.ID] = hit.Chunk
		scores[hit.Chunk.ID] += 1.0 / float64(rrfK+rank+1)
	}
	for rank, hit := range kwHits {
		if hit.DocumentID != documentID {
			continue
		}
		ch, ok := byChunkID[hit.ChunkID]
		if !ok {
			// Keyword-only hit; payload lives in the collection.
			found := false
			for _, c := range coll.Chunks() {
				if c.ID == hit.ChunkID {
					ch, found = c, true
					break
				}
			}
			if !found {
				continue
			}
			byChunkID[ch.ID] = ch
		}
		scores[ch.ID] += 1.0 / float64(rrfK+rank+1)
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return byChunkID[ids[i]].ChunkIndex < byChunkID[ids[j]].ChunkIndex
	})

	if k < len(ids) {
		ids = ids[:k]
	}
	chunks := make([]models.Chunk, len(ids))
	for i, id := range ids {
		chunks[i] = byChunkID[id]
	}
	return chunks, nil
}

// buildContext formats retrieved chunks with page provenance for prompting.
func buildContext(chunks []models.Chunk) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d] %s", ch.PageNumber, ch.Text)
	}
	return b.String()
}

const qaSystemPrompt = "You are a helpful assistant that answers questions about PDF documents. " +
	"Answer only from the provided document excerpts. If the excerpts do not contain " +
	"the answer, say so. Cite page numbers when possible."

// QA answers a question about one processed document.
func (a *Agent) QA(ctx context.Context, documentID, query string) *models.AnswerResult {
	if msg := a.ensureProcessed(documentID); msg != "" {
		return &models.AnswerResult{Success: false, Error: msg}
	}

	chunks, err := a.retrieve(ctx, documentID, query, qaTopK)
	if err != nil {
		return &models.AnswerResult{Success: false, Error: err.Error()}
	}
	if len(chunks) == 0 {
		return &models.AnswerResult{Success: false, Error: "No relevant content found"}
	}

	userPrompt := fmt.Sprintf("Document excerpts:\n%s\n\nQuestion: %s", buildContext(chunks), query)
	answer, err := a.llm.Generate(ctx, qaSystemPrompt, userPrompt)
	if err != nil {
		return &models.AnswerResult{Success: false, Error: err.Error()}
	}

	sources := make([]models.SourceRef, 0, qaSourceCount)
	for i, ch := range chunks {
		if i == qaSourceCount {
			break
		}
		sources = append(sources, models.SourceRef{
			PageNumber:     ch.PageNumber,
			ContentPreview: utils.Truncate(ch.Text, previewLength),
		})
	}

	return &models.AnswerResult{
		Success:    true,
		DocumentID: documentID,
		Query:      query,
		Answer:     answer,
		Sources:    sources,
	}
}

var summaryPrompts = map[string]string{
	"brief":     "Write a brief summary of the document in 2-3 sentences.",
	"detailed":  "Write a detailed summary of the document covering all major topics and findings.",
	"executive": "Write an executive summary of the document: purpose, key findings and recommendations.",
}

// Summarize produces a summary of one processed document. Unknown summary
// types fall back to brief.
func (a *Agent) Summarize(ctx context.Context, documentID, summaryType string) *models.SummaryResult {
	if msg := a.ensureProcessed(documentID); msg != "" {
		return &models.SummaryResult{Success: false, Error: msg}
	}

	instruction, ok := summaryPrompts[summaryType]
	if !ok {
		summaryType = "brief"
		instruction = summaryPrompts["brief"]
	}

	chunks, err := a.retrieve(ctx, documentID, "summary overview main points conclusions", summaryTopK)
	if err != nil {
		return &models.SummaryResult{Success: false, Error: err.Error()}
	}
	if len(chunks) == 0 {
		return &models.SummaryResult{Success: false, Error: "No relevant content found"}
	}
	if len(chunks) > summaryJoinMax {
		chunks = chunks[:summaryJoinMax]
	}

	userPrompt := fmt.Sprintf("%s\n\nDocument excerpts:\n%s", instruction, buildContext(chunks))
	summary, err := a.llm.Generate(ctx, "You summarize PDF documents accurately and concisely.", userPrompt)
	if err != nil {
		return &models.SummaryResult{Success: false, Error: err.Error()}
	}

	return &models.SummaryResult{
		Success:     true,
		DocumentID:  documentID,
		SummaryType: summaryType,
		Summary:     summary,
	}
}

// extractQueries maps extraction types to their retrieval queries.
var extractQueries = map[string]string{
	"key_points":   "key points main arguments important findings",
	"statistics":   "numbers statistics figures percentages measurements",
	"references":   "references citations sources bibliography",
	"definitions":  "definitions terms terminology glossary",
	"action_items": "action items tasks next steps recommendations deadlines",
}

// Extract pulls structured information of one type out of a processed
// document. Unknown types get a generic retrieval query built from the type
// itself.
func (a *Agent) Extract(ctx context.Context, documentID, extractionType string) *models.ExtractionResult {
	if msg := a.ensureProcessed(documentID); msg != "" {
		return &models.ExtractionResult{Success: false, Error: msg}
	}

	query, ok := extractQueries[extractionType]
	if !ok {
		query = extractionType
	}

	chunks, err := a.retrieve(ctx, documentID, query, extractTopK)
	if err != nil {
		return &models.ExtractionResult{Success: false, Error: err.Error()}
	}
	if len(chunks) == 0 {
		return &models.ExtractionResult{Success: false, Error: "No relevant content found"}
	}

	userPrompt := fmt.Sprintf(
		"Extract all %s from the following document excerpts. Present them as an organized list with page references.\n\nDocument excerpts:\n%s",
		strings.ReplaceAll(extractionType, "_", " "), buildContext(chunks))
	info, err := a.llm.Generate(ctx, "You extract specific information from PDF documents precisely.", userPrompt)
	if err != nil {
		return &models.ExtractionResult{Success: false, Error: err.Error()}
	}

	return &models.ExtractionResult{
		Success:        true,
		DocumentID:     documentID,
		ExtractionType: extractionType,
		ExtractedInfo:  info,
	}
}
