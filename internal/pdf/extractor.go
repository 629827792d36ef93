package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/samukawa/yomitori/internal/models"
)

// ProgressReporter receives live progress updates during extraction.
// *metastore.Store satisfies it.
type ProgressReporter interface {
	SetStatus(id, stage string, progress, total int)
	Progress(id string)
}

// Extractor extracts page texts from a PDF using a bounded worker pool.
// Concurrency is fixed at construction; each Extract call submits one task
// per page and drains them all before returning.
type Extractor struct {
	concurrency int
	reporter    ProgressReporter
	logger      *zap.Logger // optional; when set, logs per-page warnings
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for per-page extraction warnings.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// WithProgressReporter sets the reporter that receives live status updates.
func WithProgressReporter(r ProgressReporter) ExtractorOption {
	return func(e *Extractor) { e.reporter = r }
}

// NewExtractor creates an extractor with the given worker-pool size.
// Non-positive concurrency falls back to 1.
func NewExtractor(concurrency int, opts ...ExtractorOption) *Extractor {
	if concurrency <= 0 {
		concurrency = 1
	}
	e := &Extractor{concurrency: concurrency}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pageResult carries one page's extraction outcome back to the aggregator.
type pageResult struct {
	index int
	text  string
	ok    bool
}

// Extract returns one text per page, in ascending page order regardless of
// worker completion order. A single page's failure degrades that page to an
// empty string; only a PDF that cannot be opened at all is fatal. When
// documentID is non-empty and a reporter is configured, a status entry with
// the page count as total is created before submission and its progress is
// incremented once per completed page.
func (e *Extractor) Extract(ctx context.Context, path string, documentID string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	numPages, err := pageCount(content)
	if err != nil {
		return nil, err
	}

	pages := make([]string, numPages)
	if numPages == 0 {
		return pages, nil
	}

	track := documentID != "" && e.reporter != nil
	if track {
		e.reporter.SetStatus(documentID, models.StageExtracting, 0, numPages)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := 0; i < numPages; i++ {
		pageIndex := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := extractPage(content, pageIndex)
			if !res.ok {
				if e.logger != nil {
					e.logger.Warn("page extraction failed, degrading to empty text",
						zap.String("document_id", documentID),
						zap.Int("page", pageIndex+1),
					)
				}
				res.text = ""
			}
			// Each task writes its own slot; no two tasks share an index.
			pages[res.index] = res.text
			if track {
				e.reporter.Progress(documentID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// extractPage extracts the text of one zero-based page. Failures, including
// panics from the PDF reader on malformed content, degrade to ok=false.
// Each task opens its own reader over the shared bytes so that no parser
// state is shared between workers.
func extractPage(content []byte, pageIndex int) (res pageResult) {
	res = pageResult{index: pageIndex}
	defer func() {
		if r := recover(); r != nil {
			res.ok = false
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return res
	}
	page := r.Page(pageIndex + 1)
	if page.V.IsNull() {
		// Blank slot in the page tree: legal, contributes empty text.
		res.ok = true
		return res
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return res
	}
	res.text = text
	res.ok = true
	return res
}
