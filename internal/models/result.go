package models

// Result is the uniform shape returned across the tool/HTTP boundary.
// Success is always set; Error is set only on failure. No errors cross
// this boundary as raw panics or wrapped error values.
type Result struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"document_id,omitempty"`
	NumPages   int    `json:"num_pages,omitempty"`
	NumChunks  int    `json:"num_chunks,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failure returns a failed Result with the given error message.
func Failure(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

// SourceRef points a generated answer back at the chunk it came from.
type SourceRef struct {
	PageNumber     int    `json:"page_number"`
	ContentPreview string `json:"content_preview"`
}

// AnswerResult is the outcome of a question-answering run over one document.
type AnswerResult struct {
	Success    bool        `json:"success"`
	DocumentID string      `json:"document_id,omitempty"`
	Query      string      `json:"query,omitempty"`
	Answer     string      `json:"answer,omitempty"`
	Sources    []SourceRef `json:"sources,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// SummaryResult is the outcome of a summarization run.
type SummaryResult struct {
	Success     bool   `json:"success"`
	DocumentID  string `json:"document_id,omitempty"`
	SummaryType string `json:"summary_type,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ExtractionResult is the outcome of a targeted information extraction run.
type ExtractionResult struct {
	Success        bool   `json:"success"`
	DocumentID     string `json:"document_id,omitempty"`
	ExtractionType string `json:"extraction_type,omitempty"`
	ExtractedInfo  string `json:"extracted_info,omitempty"`
	Error          string `json:"error,omitempty"`
}
