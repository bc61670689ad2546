package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// PromptPlaceholder marks where a category prompt receives the retrieved text.
const PromptPlaceholder = "%s"

// CategoryConfig pairs the retrieval query with the prompt for one extraction category.
// The prompt takes the retrieved text through a single %s verb.
type CategoryConfig struct {
	Query  string `toml:"query"`
	Prompt string `toml:"prompt"`
}

type ExtractionConfig struct {
	Categories map[string]CategoryConfig `toml:"categories"`
	// ExtractIoCs runs regex indicator extraction over the full report text.
	ExtractIoCs bool `toml:"extract_iocs"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	MaxTokens      int    `toml:"max_tokens"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type RetrievalConfig struct {
	DBPath       string `toml:"db_path"`
	EmbeddingDim int    `toml:"embedding_dim"`
	TopK         int    `toml:"top_k"`
	Rerank       bool   `toml:"rerank"`
	// Hybrid adds a full-text index at KeywordIndex and fuses it with vector search.
	Hybrid       bool   `toml:"hybrid"`
	KeywordIndex string `toml:"keyword_index"`
}

type ChunkingConfig struct {
	MaxTokens int `toml:"max_tokens"`
	Overlap   int `toml:"overlap"`
}

type KafkaConfig struct {
	Broker string `toml:"broker"`
	Topic  string `toml:"topic"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Neo4j      Neo4jConfig      `toml:"neo4j"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Extraction ExtractionConfig `toml:"extraction"`
	Kafka      KafkaConfig      `toml:"kafka"`
	Server     ServerConfig     `toml:"server"`
}

// Default returns a configuration that talks to a local Ollama and Neo4j.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "qwen2.5",
			EmbeddingModel: "nomic-embed-text",
			BaseURL:        "http://localhost:11434",
			MaxTokens:      2048,
		},
		Neo4j: Neo4jConfig{
			URI: "bolt://localhost:7687",
		},
		Retrieval: RetrievalConfig{
			DBPath:       "data/vectors.db",
			EmbeddingDim: 768,
			TopK:         15,
			KeywordIndex: "data/keywords.bleve",
		},
		Chunking: ChunkingConfig{
			MaxTokens: 256,
			Overlap:   32,
		},
		Extraction: ExtractionConfig{
			Categories:  DefaultCategories(),
			ExtractIoCs: true,
		},
		Kafka: KafkaConfig{
			Topic: "cti-extractions",
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads a TOML file on top of Default. Categories missing from the file keep
// their default query and prompt.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	defaults := cfg.Extraction.Categories
	cfg.Extraction.Categories = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if cfg.Extraction.Categories == nil {
		cfg.Extraction.Categories = make(map[string]CategoryConfig)
	}
	for name, def := range defaults {
		cur := cfg.Extraction.Categories[name]
		if cur.Query == "" {
			cur.Query = def.Query
		}
		if cur.Prompt == "" {
			cur.Prompt = def.Prompt
		}
		cfg.Extraction.Categories[name] = cur
	}

	return cfg, nil
}

// ApplyEnv overrides config values with environment variables when set.
func (c *Config) ApplyEnv() {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Neo4j.URI, "NEO4J_URI")
	setString(&c.Neo4j.User, "NEO4J_USER")
	setString(&c.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&c.Neo4j.Database, "NEO4J_DATABASE")
	setString(&c.Retrieval.DBPath, "VECTOR_DB_PATH")
	setString(&c.Retrieval.KeywordIndex, "KEYWORD_INDEX_PATH")
	setString(&c.Kafka.Broker, "KAFKA_BROKER")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Server.Port, "PORT")

	if v := os.Getenv("RETRIEVAL_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm provider not specified")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model not specified")
	}
	if c.Retrieval.EmbeddingDim <= 0 {
		return fmt.Errorf("retrieval embedding_dim must be positive, got %d", c.Retrieval.EmbeddingDim)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	for name, cat := range c.Extraction.Categories {
		if cat.Query == "" || cat.Prompt == "" {
			return fmt.Errorf("extraction category %q needs both query and prompt", name)
		}
		if n := strings.Count(cat.Prompt, PromptPlaceholder); n != 1 {
			return fmt.Errorf("extraction category %q prompt must contain %s exactly once, found %d", name, PromptPlaceholder, n)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
