package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Axemt/que/docstore"
	"github.com/Axemt/que/index"
	"github.com/Axemt/que/readers"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/mark3labs/mcp-go/server"
)

type docStore interface {
	index.ChunkStore
	Count(ctx context.Context) (int, error)
	Close() error
}

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, error) {
	if cfg.OpenAI != nil {
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.OpenAI.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.OpenAI.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, nil
	}

	if cfg.Gemini != nil {
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.Gemini.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Gemini.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, nil
	}

	return nil, errors.New("invalid embeddings provider configuration")
}

func initDocStore(cfg *Config, reset bool) (docStore, error) {
	if strings.ToLower(cfg.Store) == storeLocal {
		store, err := docstore.NewBoltStore(cfg.IndexPath, reset)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local doc store: %w", err)
		}

		return store, nil
	}

	ef, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
		BaseURL:       cfg.ChromaAddr,
		Collection:    cfg.Collection,
		EmbeddingFunc: ef,
		RequestSize:   cfg.RequestSize,
		Reset:         reset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
	}

	return store, nil
}

func newLogger(cfg *Config, verbose bool) (*slog.Logger, func(), error) {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return slog.New(slog.NewJSONHandler(logFile, nil)), func() { logFile.Close() }, nil
}

func main() {
	reset := flag.Bool("reset", false, "Reinitialize the index from scratch if set")
	cfgPath := flag.String("config", "", "Configuration file (default ~/.config/que/config.yaml)")
	k := flag.Int("k", 0, "The number of document chunks to use as context")
	local := flag.Bool("l", false, "Restrict the search to the current folder")
	scope := flag.String("scope", "", "Restrict the search to documents below this folder")
	root := flag.String("root", "", "Folder to index (default doc_root from the configuration)")
	raw := flag.Bool("raw", false, "Print the retrieved context using the context template")
	serve := flag.Bool("serve", false, "Keep the index in sync and serve queries over MCP")
	verbose := flag.Bool("v", false, "Enable verbosity")
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if query == "" && !*serve {
		fmt.Fprintln(os.Stderr, "usage: que [flags] QUERY")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := readConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *root != "" {
		cfg.DocRoot = *root
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}

	logger, closeLog, err := newLogger(cfg, *verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	store, err := initDocStore(cfg, *reset)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	chunker, err := index.NewChunker(cfg.WindowSize, cfg.StepSize, cfg.Pad)
	if err != nil {
		log.Fatal(err)
	}

	tmpl, err := index.NewContextTemplate(cfg.ContextTemplate)
	if err != nil {
		log.Fatal(err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	svc := index.NewService(index.ServiceConfig{
		Log:              logger,
		Root:             cfg.DocRoot,
		Recursive:        cfg.Recursive,
		Results:          cfg.Results,
		MergeEventsDelay: time.Duration(cfg.MergeEventsMs) * time.Millisecond,
		Store:            store,
		Extractor:        readers.Default(),
		Fingerprinter:    index.NewFingerprinter(cfg.HardDigest),
		Chunker:          chunker,
		Tips:             cfg.Tips,
		Workers:          workers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = svc.Sync(ctx)
	if err != nil {
		log.Fatal(err)
	}

	if *serve {
		err = svc.Watch(ctx)
		if err != nil {
			log.Fatal(err)
		}

		srv := NewRagServer(svc, tmpl, logger)
		sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.ServerAddr)))
		log.Println(sse.Start(cfg.ServerAddr))
		return
	}

	if *local {
		*scope = "."
	}

	if *verbose {
		n, err := store.Count(ctx)
		if err == nil {
			logger.Debug("querying index", "chunks", n)
		}
	}

	res, err := svc.Query(ctx, query, *k, *scope)
	if err != nil {
		log.Fatal(err)
	}

	if *raw {
		fmt.Print(tmpl.Format(res))
		return
	}

	fmt.Println(renderResults(res))
}
