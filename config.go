package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Axemt/que/index"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	storeLocal  = "local"
	storeChroma = "chroma"
)

type EmbeddingConfig struct {
	Model  string `yaml:"model"`
	ApiKey string `yaml:"api_key"`
}

type Config struct {
	LogFile         string           `yaml:"log"`
	DocRoot         string           `yaml:"doc_root"`
	Recursive       bool             `yaml:"recursive"`
	IndexPath       string           `yaml:"index_path"`
	Store           string           `yaml:"store"`
	ChromaAddr      string           `yaml:"chroma_addr"`
	Collection      string           `yaml:"collection"`
	WindowSize      int              `yaml:"window_size"`
	StepSize        int              `yaml:"step_size"`
	Pad             bool             `yaml:"pad"`
	Tips            bool             `yaml:"tips"`
	HardDigest      bool             `yaml:"hard_digest"`
	Results         int              `yaml:"results"`
	RequestSize     int              `yaml:"request_size"`
	Workers         int              `yaml:"workers"`
	MergeEventsMs   int              `yaml:"write_debounce_ms"`
	ServerAddr      string           `yaml:"server_addr"`
	ContextTemplate string           `yaml:"context_template"`
	OpenAI          *EmbeddingConfig `yaml:"open_ai,omitempty"`
	Gemini          *EmbeddingConfig `yaml:"gemini,omitempty"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to locate home directory: %w", err)
	}

	return filepath.Join(home, ".config", "que"), nil
}

func defaultConfig(dir string) *Config {
	return &Config{
		LogFile:         filepath.Join(dir, "que.log"),
		DocRoot:         ".",
		Recursive:       true,
		IndexPath:       filepath.Join(dir, "index.db"),
		Store:           storeLocal,
		ChromaAddr:      "http://localhost:8000",
		Collection:      "tomes",
		WindowSize:      100,
		StepSize:        70,
		Pad:             true,
		Tips:            true,
		Results:         index.DefaultResults,
		RequestSize:     16 * 1024,
		MergeEventsMs:   500,
		ServerAddr:      "localhost:8080",
		ContextTemplate: index.DefaultContextTemplate,
	}
}

// readConfig loads cfgPath, or the user configuration when cfgPath is empty.
// A missing user configuration is created with defaults.
func readConfig(cfgPath string) (*Config, error) {
	_ = godotenv.Load()

	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	if cfgPath == "" {
		cfgPath = filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig(dir)
			if err := writeConfig(cfgPath, cfg); err != nil {
				return nil, err
			}
			cfg.applyEnv()
			return cfg, nil
		}
	}

	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := defaultConfig(dir)
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func writeConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}

	// block scalars drop the template's leading newline
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "context_template" {
			doc.Content[i+1].Style = yaml.DoubleQuotedStyle
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if c.OpenAI != nil && c.OpenAI.ApiKey == "" {
		c.OpenAI.ApiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Gemini != nil && c.Gemini.ApiKey == "" {
		c.Gemini.ApiKey = os.Getenv("GEMINI_API_KEY")
	}
}

func (c *Config) Validate() error {
	if _, err := index.NewChunker(c.WindowSize, c.StepSize, c.Pad); err != nil {
		return err
	}

	if _, err := index.NewContextTemplate(c.ContextTemplate); err != nil {
		return err
	}

	switch strings.ToLower(c.Store) {
	case storeLocal:
		if c.IndexPath == "" {
			return errors.New("index_path is required for the local store")
		}
	case storeChroma:
		if c.ChromaAddr == "" || c.Collection == "" {
			return errors.New("chroma_addr and collection are required for the chroma store")
		}
		if c.OpenAI == nil && c.Gemini == nil {
			return errors.New("invalid embeddings provider configuration")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store)
	}

	return nil
}
