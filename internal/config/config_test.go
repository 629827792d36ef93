package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9000
storage:
  upload_dir: ./uploads
pdf:
  max_pages: 100
  concurrency: 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("server: got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.PDF.MaxPages != 100 || cfg.PDF.Concurrency != 2 {
		t.Errorf("pdf: got max_pages=%d concurrency=%d", cfg.PDF.MaxPages, cfg.PDF.Concurrency)
	}
	// Defaults fill unset values.
	if cfg.PDF.ChunkSize != DefaultChunkSize || cfg.PDF.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("chunking defaults: got %d/%d", cfg.PDF.ChunkSize, cfg.PDF.ChunkOverlap)
	}
	// "./" paths expand relative to the config directory.
	if cfg.Storage.UploadDir != filepath.Join(dir, "uploads") {
		t.Errorf("upload_dir: got %s", cfg.Storage.UploadDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.PDF.MaxPages != 500 {
		t.Errorf("max_pages default: got %d", cfg.PDF.MaxPages)
	}
	if cfg.PDF.Concurrency != 4 {
		t.Errorf("concurrency default: got %d", cfg.PDF.Concurrency)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port default: got %d", cfg.Server.Port)
	}
	if cfg.Gemini.Model == "" || cfg.Gemini.EmbeddingModel == "" {
		t.Error("gemini model defaults should be set")
	}
}
