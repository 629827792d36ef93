package config

// Defaults matching the documented processing limits.
const (
	DefaultMaxPages     = 500
	DefaultConcurrency  = 4
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./data/uploads"
	}
	if cfg.Storage.MetadataPath == "" {
		cfg.Storage.MetadataPath = "./data/uploads/metadata.json"
	}
	if cfg.Storage.VectorStorePath == "" {
		cfg.Storage.VectorStorePath = "./data/vectorstore"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "./data/indices/bleve"
	}
	if cfg.PDF.MaxPages == 0 {
		cfg.PDF.MaxPages = DefaultMaxPages
	}
	if cfg.PDF.Concurrency == 0 {
		cfg.PDF.Concurrency = DefaultConcurrency
	}
	if cfg.PDF.ChunkSize == 0 {
		cfg.PDF.ChunkSize = DefaultChunkSize
	}
	if cfg.PDF.ChunkOverlap == 0 {
		cfg.PDF.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-pro"
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.7
	}
	if cfg.Gemini.CacheSize == 0 {
		cfg.Gemini.CacheSize = 10000
	}
}
