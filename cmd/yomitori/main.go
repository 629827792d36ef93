// Package main is the Yomitori CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/samukawa/yomitori/internal/agent"
	"github.com/samukawa/yomitori/internal/chunker"
	"github.com/samukawa/yomitori/internal/config"
	"github.com/samukawa/yomitori/internal/embedding"
	"github.com/samukawa/yomitori/internal/keyword"
	"github.com/samukawa/yomitori/internal/metastore"
	"github.com/samukawa/yomitori/internal/pdf"
	"github.com/samukawa/yomitori/internal/pipeline"
	"github.com/samukawa/yomitori/internal/server"
	"github.com/samukawa/yomitori/internal/vectorstore"
	"github.com/samukawa/yomitori/internal/watcher"
	"github.com/samukawa/yomitori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/yomitori/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "validate":
		runValidate()
	case "upload":
		runUpload()
	case "process":
		runProcess()
	case "list":
		runList()
	case "status":
		runStatus()
	case "query":
		runQuery()
	case "summarize":
		runSummarize()
	case "extract":
		runExtract()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("yomitori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components bundles everything the server command wires together.
type components struct {
	Meta     *metastore.Store
	Vectors  *vectorstore.Store
	Keywords *keyword.Index
	Embedder embedding.Embedder
	LLM      agent.LLMProvider
	Pipeline *pipeline.Pipeline
	Agent    *agent.Agent
}

func (c *components) Close() {
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	ctx := context.Background()

	meta, err := metastore.New(cfg.Storage.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}
	vectors, err := vectorstore.NewStore(cfg.Storage.VectorStorePath)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	keywords, err := keyword.NewIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("keyword index: %w", err)
	}

	gemini, err := embedding.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, 0)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	embedder := embedding.NewCachedEmbedder(gemini, cfg.Gemini.CacheSize)

	llm, err := agent.NewGeminiLLM(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	p, err := pipeline.New(pipeline.Options{
		UploadDir: cfg.Storage.UploadDir,
		Validator: pdf.NewValidator(cfg.PDF.MaxPages),
		Extractor: pdf.NewExtractor(cfg.PDF.Concurrency,
			pdf.WithLogger(logger),
			pdf.WithProgressReporter(meta)),
		Chunker:  chunker.NewChunker(cfg.PDF.ChunkSize, cfg.PDF.ChunkOverlap),
		Meta:     meta,
		Vectors:  vectors,
		Keywords: keywords,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	a := agent.New(meta, vectors, keywords, embedder, llm, logger)

	return &components{
		Meta:     meta,
		Vectors:  vectors,
		Keywords: keywords,
		Embedder: embedder,
		LLM:      llm,
		Pipeline: p,
		Agent:    a,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var inbox *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		p := comps.Pipeline
		inbox = watcher.New(cfg.Watch.Directories, func(path string) {
			ctx := context.Background()
			docID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			res := p.Upload(ctx, path, docID)
			if !res.Success {
				logger.Warn("inbox upload failed", zap.String("path", path), zap.String("error", res.Error))
				return
			}
			if proc := p.Process(ctx, res.DocumentID); !proc.Success {
				logger.Warn("inbox processing failed",
					zap.String("path", path),
					zap.String("document_id", res.DocumentID),
					zap.String("error", proc.Error))
			}
		}, watchOpts...)
		if err := inbox.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(comps.Pipeline, comps.Agent, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if inbox != nil {
		inbox.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// serverFlag adds the shared -server flag to a FlagSet.
func serverFlag(fs *flag.FlagSet) *string {
	return fs.String("server", "http://localhost:8000", "server URL")
}

func runValidate() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori validate [flags] <file.pdf>")
		os.Exit(1)
	}

	result, err := multipartViaHTTP(*serverURL+"/api/v1/documents/validate", fs.Arg(0), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := serverFlag(fs)
	documentID := fs.String("id", "", "document ID (generated when empty; reusing an ID overwrites)")
	processNow := fs.Bool("process", false, "process the document immediately after upload")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori upload [flags] <file.pdf>")
		os.Exit(1)
	}

	result, err := multipartViaHTTP(*serverURL+"/api/v1/documents/upload", fs.Arg(0), *documentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
	if !*processNow {
		return
	}
	docID, _ := result["document_id"].(string)
	if docID == "" {
		os.Exit(1)
	}
	processed, err := postJSON(*serverURL+"/api/v1/documents/process", map[string]string{"document_id": docID})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(processed)
}

func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori process [flags] <document-id>")
		os.Exit(1)
	}

	result, err := postJSON(*serverURL+"/api/v1/documents/process", map[string]string{"document_id": fs.Arg(0)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])

	result, err := getJSON(*serverURL + "/api/v1/documents")
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori status [flags] <document-id>")
		os.Exit(1)
	}

	result, err := getJSON(*serverURL + "/api/v1/documents/" + fs.Arg(0) + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 2 {
		fmt.Println("Usage: yomitori query [flags] <document-id> <question>")
		os.Exit(1)
	}

	question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	result, err := postJSON(*serverURL+"/api/v1/query", map[string]string{
		"document_id": fs.Arg(0),
		"query":       question,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runSummarize() {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	serverURL := serverFlag(fs)
	summaryType := fs.String("type", "brief", "summary type: brief, detailed, or executive")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori summarize [flags] <document-id>")
		os.Exit(1)
	}

	result, err := postJSON(*serverURL+"/api/v1/summarize", map[string]string{
		"document_id":  fs.Arg(0),
		"summary_type": *summaryType,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summarize failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	serverURL := serverFlag(fs)
	extractionType := fs.String("type", "key_points", "extraction type: key_points, statistics, references, definitions, or action_items")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori extract [flags] <document-id>")
		os.Exit(1)
	}

	result, err := postJSON(*serverURL+"/api/v1/extract", map[string]string{
		"document_id":     fs.Arg(0),
		"extraction_type": *extractionType,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extract failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: yomitori delete [flags] <document-id>")
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+fs.Arg(0), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	result, err := doJSON(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func multipartViaHTTP(url, path, documentID string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if documentID != "" {
		if err := mw.WriteField("document_id", documentID); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doJSON(req)
}

func postJSON(url string, payload interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req)
}

func getJSON(url string) (map[string]interface{}, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return doJSON(req)
}

func doJSON(req *http.Request) (map[string]interface{}, error) {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return result, nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Print(`Yomitori - PDF question answering over a local document store

Usage: yomitori <command> [flags]

Commands:
  server     Run the HTTP API server
  validate   Validate a PDF without storing it
  upload     Upload a PDF (-id to choose the document ID, -process to ingest immediately)
  process    Process an uploaded document
  list       List documents
  status     Show processing status for a document
  query      Ask a question about a processed document
  summarize  Summarize a processed document (-type brief|detailed|executive)
  extract    Extract information (-type key_points|statistics|references|definitions|action_items)
  delete     Delete a document and its indexes
  version    Print version
  help       Show this help

Run 'yomitori <command> -h' for command flags.
`)
}
