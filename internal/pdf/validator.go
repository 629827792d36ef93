// Package pdf provides PDF validation and parallel per-page text extraction.
package pdf

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/samukawa/yomitori/internal/models"
)

// Validator checks PDF files against the configured page limit and computes
// a content fingerprint.
type Validator struct {
	maxPages int
}

// NewValidator creates a validator with the given page limit.
func NewValidator(maxPages int) *Validator {
	return &Validator{maxPages: maxPages}
}

// Validate checks that path exists, is a PDF, and is within the page limit.
// The hash is an MD5 fingerprint over the full file bytes, used for change
// detection only. Any I/O or parse failure yields Valid=false with the
// underlying message; no partial result is returned.
func (v *Validator) Validate(path string) *models.ValidationResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.ValidationResult{Valid: false, Error: "File not found"}
		}
		return &models.ValidationResult{Valid: false, Error: err.Error()}
	}
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return &models.ValidationResult{Valid: false, Error: "File is not a PDF"}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return &models.ValidationResult{Valid: false, Error: err.Error()}
	}
	numPages, err := pageCount(content)
	if err != nil {
		return &models.ValidationResult{Valid: false, Error: err.Error()}
	}
	if numPages > v.maxPages {
		return &models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("PDF has %d pages, exceeds maximum of %d", numPages, v.maxPages),
		}
	}

	sum := md5.Sum(content)
	return &models.ValidationResult{
		Valid:    true,
		NumPages: numPages,
		FileSize: info.Size(),
		FileHash: hex.EncodeToString(sum[:]),
	}
}

// pageCount opens the PDF from memory and returns its page count.
func pageCount(content []byte) (n int, err error) {
	// The reader panics on some malformed files; surface that as an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	return r.NumPage(), nil
}
