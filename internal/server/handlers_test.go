package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/samukawa/yomitori/internal/agent"
	"github.com/samukawa/yomitori/internal/chunker"
	"github.com/samukawa/yomitori/internal/config"
	"github.com/samukawa/yomitori/internal/embedding"
	"github.com/samukawa/yomitori/internal/metastore"
	"github.com/samukawa/yomitori/internal/models"
	"github.com/samukawa/yomitori/internal/pdf"
	"github.com/samukawa/yomitori/internal/pdf/pdftest"
	"github.com/samukawa/yomitori/internal/pipeline"
	"github.com/samukawa/yomitori/internal/vectorstore"
)

func newTestServer(t *testing.T, llm agent.LLMProvider) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()

	meta, err := metastore.New(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("metastore.New: %v", err)
	}
	vectors, err := vectorstore.NewStore(filepath.Join(dir, "vectors"))
	if err != nil {
		t.Fatalf("vectorstore.NewStore: %v", err)
	}
	t.Cleanup(func() { vectors.Close() })

	embedder := embedding.NewMockEmbedder(32)
	p, err := pipeline.New(pipeline.Options{
		UploadDir: filepath.Join(dir, "uploads"),
		Validator: pdf.NewValidator(500),
		Extractor: pdf.NewExtractor(4, pdf.WithProgressReporter(meta)),
		Chunker:   chunker.NewChunker(1000, 200),
		Meta:      meta,
		Vectors:   vectors,
		Embedder:  embedder,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	a := agent.New(meta, vectors, nil, embedder, llm, zap.NewNop())

	srv := NewServer(p, a, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	return srv, srv.Router()
}

// uploadPDF posts a generated PDF through the multipart endpoint and returns
// the assigned document ID.
func uploadPDF(t *testing.T, router http.Handler, pageTexts []string) string {
	t.Helper()
	pdfPath := filepath.Join(t.TempDir(), "doc.pdf")
	pdftest.WriteFile(t, pdfPath, pageTexts)
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result models.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if !result.Success || result.DocumentID == "" {
		t.Fatalf("upload result = %+v", result)
	}
	return result.DocumentID
}

func processDoc(t *testing.T, router http.Handler, id string) {
	t.Helper()
	body := fmt.Sprintf(`{"document_id":%q}`, id)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUploadAndProcess(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})
	id := uploadPDF(t, router, []string{"first page words", "second page words"})
	processDoc(t, router, id)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if !doc.Processed || doc.Status != models.StatusProcessed {
		t.Errorf("document not processed: %+v", doc)
	}
	if doc.NumPages != 2 {
		t.Errorf("num_pages = %d, want 2", doc.NumPages)
	}
}

func TestUploadWithDocumentID(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	pdfPath := filepath.Join(t.TempDir(), "doc.pdf")
	pdftest.WriteFile(t, pdfPath, []string{"content"})
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "doc.pdf")
	_, _ = fw.Write(content)
	_ = mw.WriteField("document_id", "invoice-2026")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var result models.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.DocumentID != "invoice-2026" {
		t.Errorf("result = %+v, want document_id invoice-2026", result)
	}
}

func TestValidateEndpoint(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	pdfPath := filepath.Join(t.TempDir(), "doc.pdf")
	pdftest.WriteFile(t, pdfPath, []string{"one", "two", "three"})
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "doc.pdf")
	_, _ = fw.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/validate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var v models.ValidationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Valid || v.NumPages != 3 {
		t.Errorf("validation = %+v, want valid with 3 pages", v)
	}

	// Nothing was stored.
	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	var listResp struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(listRec.Body.Bytes(), &listResp)
	if listResp.Count != 0 {
		t.Errorf("validate stored a document: count = %d", listResp.Count)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("plain text"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var result models.Result
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Success || result.Error != "File is not a PDF" {
		t.Errorf("result = %+v", result)
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/process",
		strings.NewReader(`{"document_id":"ghost"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var result models.Result
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Success || result.Error != "Document not found" {
		t.Errorf("result = %+v", result)
	}
}

func TestListDocuments(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})
	uploadPDF(t, router, []string{"a"})
	uploadPDF(t, router, []string{"b"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp struct {
		Success   bool              `json:"success"`
		Documents []models.Document `json:"documents"`
		Count     int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Count != 2 || len(resp.Documents) != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatusIdle(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})
	id := uploadPDF(t, router, []string{"content"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.InProgress {
		t.Error("idle document reported in progress")
	}
	// Counters are always present so pollers see a stable shape.
	for _, key := range []string{`"progress":0`, `"total":0`} {
		if !strings.Contains(rec.Body.String(), key) {
			t.Errorf("status body missing %s: %s", key, rec.Body.String())
		}
	}
}

func TestStatusUnknownDocument(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/ghost/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{Responses: []string{"The answer is 42."}})
	id := uploadPDF(t, router, []string{"the meaning of everything is 42"})
	processDoc(t, router, id)

	body := fmt.Sprintf(`{"document_id":%q,"query":"what is the meaning"}`, id)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.AnswerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "The answer is 42." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) == 0 {
		t.Error("no sources returned")
	}
}

func TestQueryUnprocessedDocument(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})
	id := uploadPDF(t, router, []string{"content"})

	body := fmt.Sprintf(`{"document_id":%q,"query":"q"}`, id)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp models.AnswerResult
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success || resp.Error != "Document not processed" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{Responses: []string{"Short summary."}})
	id := uploadPDF(t, router, []string{"lots of interesting content"})
	processDoc(t, router, id)

	body := fmt.Sprintf(`{"document_id":%q,"summary_type":"brief"}`, id)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/summarize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp models.SummaryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Summary != "Short summary." {
		t.Errorf("resp = %+v", resp)
	}
}

func TestExtractEndpoint(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{Responses: []string{"- item one"}})
	id := uploadPDF(t, router, []string{"key point one and key point two"})
	processDoc(t, router, id)

	body := fmt.Sprintf(`{"document_id":%q,"extraction_type":"key_points"}`, id)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp models.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ExtractedInfo != "- item one" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})
	id := uploadPDF(t, router, []string{"to be deleted"})
	processDoc(t, router, id)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t, &agent.ScriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}
