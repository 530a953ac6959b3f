package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Provider struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
}

type Index struct {
	// Engine selects the vector index variant: "pgvector" or "memory".
	Engine    string `yaml:"engine"`
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
}

type Records struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Verbose  bool   `yaml:"verbose"`
}

type Ingest struct {
	MaxChars    int     `yaml:"max_chars"`
	Concurrency int     `yaml:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit"`
	BatchSize   int     `yaml:"batch_size"`
	// BackfillField is the record field the backfill walk ingests.
	BackfillField string `yaml:"backfill_field"`
}

type Retrieval struct {
	TopK int `yaml:"top_k"`
}

type Server struct {
	Addr    string `yaml:"addr"`
	DocsDir string `yaml:"docs_dir"`
}

type Config struct {
	Provider  Provider  `yaml:"provider"`
	Index     Index     `yaml:"index"`
	Records   Records   `yaml:"records"`
	Ingest    Ingest    `yaml:"ingest"`
	Retrieval Retrieval `yaml:"retrieval"`
	Server    Server    `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// Pick up a local .env before reading the environment. Missing file
	// is fine.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/cdns/config.yaml"),
			"/etc/cdns/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Provider.EmbeddingModel == "" {
		config.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if config.Provider.ChatModel == "" {
		config.Provider.ChatModel = "gpt-4o-mini"
	}

	if config.Index.Engine == "" {
		config.Index.Engine = "pgvector"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "rag_chunks"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 1536
	}

	if config.Ingest.MaxChars == 0 {
		config.Ingest.MaxChars = 1200
	}
	if config.Ingest.Concurrency == 0 {
		config.Ingest.Concurrency = 1
	}
	if config.Ingest.BatchSize == 0 {
		config.Ingest.BatchSize = 200
	}
	if config.Ingest.BackfillField == "" {
		config.Ingest.BackfillField = "description"
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 6
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.DocsDir == "" {
		config.Server.DocsDir = "docs"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.URL = dbURL
	}
	if recordsURL := os.Getenv("RECORDS_DATABASE_URL"); recordsURL != "" {
		config.Records.URL = recordsURL
	}
}
