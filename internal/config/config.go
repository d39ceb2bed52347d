package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"case-rag/internal/models"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Storage   StorageConfig   `yaml:"storage"`
	EmbedLLM  LLMConfig       `yaml:"embed_llm"`
	ChatLLM   LLMConfig       `yaml:"chat_llm"`
	RAG       RAGConfig       `yaml:"rag"`
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Driver     string `yaml:"driver"` // pgdriver or pq
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

// StoreConfig selects where chunks and document metadata live.
type StoreConfig struct {
	Backend       string `yaml:"backend"` // postgres or chromem
	ChromemPath   string `yaml:"chromem_path"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
}

// StorageConfig selects where raw uploaded files live.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local or s3
	LocalRoot string `yaml:"local_root"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	SSL       bool   `yaml:"ssl"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or ollama
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize            int    `yaml:"chunk_size"`
	CaseTopK             int    `yaml:"case_top_k"`
	DocumentTopK         int    `yaml:"document_top_k"`
	CaseRowLimit         int    `yaml:"case_row_limit"`
	DocumentRowLimit     int    `yaml:"document_row_limit"`
	DocumentListLimit    int    `yaml:"document_list_limit"`
	NameMatchLimit       int    `yaml:"name_match_limit"`
	LeadingChunks        int    `yaml:"leading_chunks"`
	CaseExcerptChars     int    `yaml:"case_excerpt_chars"`
	DocumentExcerptChars int    `yaml:"document_excerpt_chars"`
	DimensionPolicy      string `yaml:"dimension_policy"` // truncate or reject
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. Bare addresses are single-host prefixes.
func (s ServerConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted proxy %q is not an address or CIDR", models.ErrInvalidInput, raw)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

type RateLimitConfig struct {
	Backend     string        `yaml:"backend"` // memory or postgres
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a configuration with every tunable set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     "pgdriver",
			VectorSize: 1536,
		},
		Store: StoreConfig{
			Backend:     "postgres",
			ChromemPath: "./chromemdb",
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalRoot: "./uploads",
			Bucket:    "case-documents",
		},
		EmbedLLM: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		ChatLLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		RAG: RAGConfig{
			ChunkSize:            1200,
			CaseTopK:             5,
			DocumentTopK:         6,
			CaseRowLimit:         200,
			DocumentRowLimit:     500,
			DocumentListLimit:    200,
			NameMatchLimit:       2,
			LeadingChunks:        3,
			CaseExcerptChars:     4000,
			DocumentExcerptChars: 6000,
			DimensionPolicy:      "truncate",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 25 << 20,
		},
		RateLimit: RateLimitConfig{
			Backend:     "memory",
			Window:      time.Minute,
			MaxRequests: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. A .env file in the working
// directory is loaded first and ${VAR} references in the YAML are expanded.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres store", models.ErrInvalidInput)
		}
	case "chromem":
	default:
		return fmt.Errorf("%w: unknown store backend %q", models.ErrInvalidInput, c.Store.Backend)
	}

	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", models.ErrInvalidInput, c.Storage.Backend)
	}

	switch c.RAG.DimensionPolicy {
	case "truncate", "reject":
	default:
		return fmt.Errorf("%w: unknown dimension policy %q", models.ErrInvalidInput, c.RAG.DimensionPolicy)
	}

	limits := []struct {
		name  string
		value int
	}{
		{"chunk_size", c.RAG.ChunkSize},
		{"case_top_k", c.RAG.CaseTopK},
		{"document_top_k", c.RAG.DocumentTopK},
		{"case_row_limit", c.RAG.CaseRowLimit},
		{"document_row_limit", c.RAG.DocumentRowLimit},
		{"document_list_limit", c.RAG.DocumentListLimit},
		{"name_match_limit", c.RAG.NameMatchLimit},
		{"leading_chunks", c.RAG.LeadingChunks},
		{"case_excerpt_chars", c.RAG.CaseExcerptChars},
		{"document_excerpt_chars", c.RAG.DocumentExcerptChars},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%w: rag.%s must be positive, got %d", models.ErrInvalidInput, l.name, l.value)
		}
	}

	switch c.RateLimit.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("%w: unknown rate limit backend %q", models.ErrInvalidInput, c.RateLimit.Backend)
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("%w: rate_limit.max_requests must not be negative", models.ErrInvalidInput)
	}
	if c.RateLimit.MaxRequests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("%w: rate_limit.window must be positive", models.ErrInvalidInput)
	}

	if _, err := c.Server.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

// ScopeParams returns the retrieval limits for a scope.
func (r RAGConfig) ScopeParams(scope models.Scope) models.ScopeParams {
	p := models.ScopeParams{
		ListLimit:     r.DocumentListLimit,
		MatchLimit:    r.NameMatchLimit,
		LeadingChunks: r.LeadingChunks,
	}
	if scope == models.ScopeDocument {
		p.TopK = r.DocumentTopK
		p.RowLimit = r.DocumentRowLimit
		p.ExcerptChars = r.DocumentExcerptChars
	} else {
		p.TopK = r.CaseTopK
		p.RowLimit = r.CaseRowLimit
		p.ExcerptChars = r.CaseExcerptChars
	}
	return p
}
