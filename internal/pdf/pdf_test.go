package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samukawa/yomitori/internal/pdf/pdftest"
)

// writeTestPDF writes a minimal PDF with one page per entry of pageTexts.
func writeTestPDF(t *testing.T, path string, pageTexts []string) {
	t.Helper()
	pdftest.WriteFile(t, path, pageTexts)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, path, []string{"one", "two", "three"})

	v := NewValidator(500)
	res := v.Validate(path)
	if !res.Valid {
		t.Fatalf("expected valid, got error %q", res.Error)
	}
	if res.NumPages != 3 {
		t.Errorf("num_pages: got %d, want 3", res.NumPages)
	}
	if res.FileSize <= 0 {
		t.Errorf("file_size: got %d", res.FileSize)
	}
	if len(res.FileHash) != 32 {
		t.Errorf("file_hash: got %q", res.FileHash)
	}
}

func TestValidateMissingFile(t *testing.T) {
	v := NewValidator(500)
	res := v.Validate(filepath.Join(t.TempDir(), "nope.pdf"))
	if res.Valid || res.Error != "File not found" {
		t.Errorf("got %+v", res)
	}
}

func TestValidateWrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("not a pdf"), 0600); err != nil {
		t.Fatal(err)
	}
	v := NewValidator(500)
	res := v.Validate(path)
	if res.Valid || res.Error != "File is not a PDF" {
		t.Errorf("got %+v", res)
	}
}

func TestValidatePageLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	texts := make([]string, 6)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d", i+1)
	}
	writeTestPDF(t, path, texts)

	v := NewValidator(5)
	res := v.Validate(path)
	if res.Valid {
		t.Fatal("expected page-limit failure")
	}
	// The message names both the actual and the maximum page counts.
	if !strings.Contains(res.Error, "6") || !strings.Contains(res.Error, "5") {
		t.Errorf("error should mention actual and max pages: %q", res.Error)
	}
}

func TestValidateCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	v := NewValidator(500)
	res := v.Validate(path)
	if res.Valid || res.Error == "" {
		t.Errorf("got %+v", res)
	}
}

type recordingReporter struct {
	setCalls  int
	total     int
	progress  int
	lastStage string
}

func (r *recordingReporter) SetStatus(id, stage string, progress, total int) {
	r.setCalls++
	r.lastStage = stage
	r.total = total
}

func (r *recordingReporter) Progress(id string) { r.progress++ }

func TestExtractPageOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("marker-%d", i+1)
	}
	writeTestPDF(t, path, texts)

	// Repeated runs exercise different worker completion orders; the result
	// must be in ascending page order every time.
	e := NewExtractor(4)
	for run := 0; run < 5; run++ {
		pages, err := e.Extract(context.Background(), path, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(pages) != 8 {
			t.Fatalf("got %d pages, want 8", len(pages))
		}
		for i, text := range pages {
			want := fmt.Sprintf("marker-%d", i+1)
			if !strings.Contains(text, want) {
				t.Errorf("run %d page %d: got %q, want it to contain %q", run, i, text, want)
			}
		}
	}
}

func TestExtractBlankPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, path, []string{"first", "", "third"})

	e := NewExtractor(2)
	pages, err := e.Extract(context.Background(), path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if strings.TrimSpace(pages[1]) != "" {
		t.Errorf("blank page should yield empty text, got %q", pages[1])
	}
	if !strings.Contains(pages[0], "first") || !strings.Contains(pages[2], "third") {
		t.Errorf("neighbors of blank page: %q, %q", pages[0], pages[2])
	}
}

func TestExtractReportsProgress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, path, []string{"a", "b", "c", "d"})

	rep := &recordingReporter{}
	e := NewExtractor(4, WithProgressReporter(rep))
	if _, err := e.Extract(context.Background(), path, "doc1"); err != nil {
		t.Fatal(err)
	}
	if rep.setCalls != 1 || rep.lastStage != "extracting" || rep.total != 4 {
		t.Errorf("status entry: %+v", rep)
	}
	if rep.progress != 4 {
		t.Errorf("progress increments: got %d, want 4", rep.progress)
	}
}

func TestExtractNoDocumentIDSkipsReporting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, path, []string{"a"})

	rep := &recordingReporter{}
	e := NewExtractor(1, WithProgressReporter(rep))
	if _, err := e.Extract(context.Background(), path, ""); err != nil {
		t.Fatal(err)
	}
	if rep.setCalls != 0 || rep.progress != 0 {
		t.Errorf("no status without a document id: %+v", rep)
	}
}

func TestExtractUnopenablePDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0600); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor(2)
	if _, err := e.Extract(context.Background(), path, ""); err == nil {
		t.Error("expected fatal error for unopenable PDF")
	}
}

func TestExtractPageDegradesOnGarbage(t *testing.T) {
	res := extractPage([]byte("garbage"), 0)
	if res.ok {
		t.Error("garbage content should not extract")
	}
	if res.text != "" {
		t.Errorf("failed page text should be empty, got %q", res.text)
	}
}
