package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/samukawa/yomitori/internal/models"
)

// maxUploadBytes caps multipart uploads at 100 MB.
const maxUploadBytes = 100 << 20

// spoolMultipartPDF writes the multipart "file" field to a temp file so the
// validator sees a real path and extension. The caller must remove the
// returned directory.
func (s *Server) spoolMultipartPDF(w http.ResponseWriter, r *http.Request) (tmpDir, tmpPath string, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return "", "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return "", "", false
	}
	defer file.Close()

	tmpDir, err = os.MkdirTemp("", "yomitori-upload-")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return "", "", false
	}

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		name = "upload.pdf"
	}
	tmpPath = filepath.Join(tmpDir, name)
	out, err := os.Create(tmpPath)
	if err == nil {
		_, err = io.Copy(out, file)
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return "", "", false
	}
	return tmpDir, tmpPath, true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	tmpDir, tmpPath, ok := s.spoolMultipartPDF(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	v := s.pipeline.Validate(tmpPath)
	if !v.Valid {
		s.respondJSON(w, http.StatusUnprocessableEntity, v)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tmpDir, tmpPath, ok := s.spoolMultipartPDF(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	documentID := r.FormValue("document_id")
	s.logger.Debug("upload request", zap.String("filename", filepath.Base(tmpPath)), zap.String("document_id", documentID))
	result := s.pipeline.Upload(r.Context(), tmpPath, documentID)
	if !result.Success {
		s.respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

type processRequest struct {
	DocumentID string `json:"document_id"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("process request", zap.String("document_id", req.DocumentID))
	result := s.pipeline.Process(r.Context(), req.DocumentID)
	if !result.Success {
		status := http.StatusInternalServerError
		if result.Error == "Document not found" {
			status = http.StatusNotFound
		}
		s.respondJSON(w, status, result)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.pipeline.List()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.pipeline.Get(id)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, models.Failure("Document not found"))
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

type statusResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"document_id"`
	InProgress bool   `json:"in_progress"`
	Stage      string `json:"stage,omitempty"`
	Progress   int    `json:"progress"`
	Total      int    `json:"total"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.pipeline.Get(id); err != nil {
		s.respondJSON(w, http.StatusNotFound, models.Failure("Document not found"))
		return
	}

	resp := statusResponse{Success: true, DocumentID: id}
	if st, ok := s.pipeline.Status(id); ok {
		resp.InProgress = true
		resp.Stage = st.Stage
		resp.Progress = st.Progress
		resp.Total = st.Total
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete request", zap.String("document_id", id))
	result := s.pipeline.Delete(r.Context(), id)
	if !result.Success {
		status := http.StatusInternalServerError
		if result.Error == "Document not found" {
			status = http.StatusNotFound
		}
		s.respondJSON(w, status, result)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type queryRequest struct {
	DocumentID string `json:"document_id"`
	Query      string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	result := s.agent.QA(r.Context(), req.DocumentID, req.Query)
	s.respondJSON(w, agentStatus(result.Success, result.Error), result)
}

type summarizeRequest struct {
	DocumentID  string `json:"document_id"`
	SummaryType string `json:"summary_type"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := s.agent.Summarize(r.Context(), req.DocumentID, req.SummaryType)
	s.respondJSON(w, agentStatus(result.Success, result.Error), result)
}

type extractRequest struct {
	DocumentID     string `json:"document_id"`
	ExtractionType string `json:"extraction_type"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := s.agent.Extract(r.Context(), req.DocumentID, req.ExtractionType)
	s.respondJSON(w, agentStatus(result.Success, result.Error), result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// agentStatus maps agent results onto HTTP status codes while keeping the
// uniform result body.
func agentStatus(success bool, errMsg string) int {
	switch {
	case success:
		return http.StatusOK
	case errMsg == "Document not found":
		return http.StatusNotFound
	case errMsg == "Document not processed":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.Failure(message))
}
