// Package config builds the application configuration from defaults, an
// optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hunterwarburton/pantry/internal/auth"
)

// Document sources.
const (
	SourceDrive = "gdrive"
	SourceFile  = "file"
)

// Vector store backends.
const (
	BackendMilvus   = "milvus"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// TelegramConfig holds the bot token and access lists.
type TelegramConfig struct {
	Token          string  `yaml:"token"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
	AdminUserIDs   []int64 `yaml:"admin_user_ids"`
}

// DocumentConfig selects the document and where it is read from.
type DocumentConfig struct {
	Source          string `yaml:"source"`
	ID              string `yaml:"id"`
	CredentialsFile string `yaml:"credentials_file"`
	Dir             string `yaml:"dir"`
}

// EmbeddingConfig points at the Ollama server and model.
type EmbeddingConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// MilvusConfig contains connection details for Milvus.
type MilvusConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// MongoConfig contains connection details for MongoDB Atlas.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// PostgresConfig contains connection details for PostgreSQL.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	Backend          string         `yaml:"backend"`
	Collection       string         `yaml:"collection"`
	Index            string         `yaml:"index"`
	Field            string         `yaml:"field"`
	EnsureCollection bool           `yaml:"ensure_collection"`
	Milvus           MilvusConfig   `yaml:"milvus"`
	Mongo            MongoConfig    `yaml:"mongo"`
	Postgres         PostgresConfig `yaml:"postgres"`
}

// ChunkConfig configures how the document is split.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	Limit        int `yaml:"limit"`
	Oversampling int `yaml:"oversampling"`
}

// CacheConfig configures the Redis result cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	Password   string `yaml:"password"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// HTTPConfig configures the optional HTTP API.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LLMConfig configures the summarizer. An empty APIKey disables it.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Config is the root application configuration.
type Config struct {
	Telegram               TelegramConfig  `yaml:"telegram"`
	Document               DocumentConfig  `yaml:"document"`
	Embedding              EmbeddingConfig `yaml:"embedding"`
	Vector                 VectorConfig    `yaml:"vector"`
	Chunk                  ChunkConfig     `yaml:"chunk"`
	Search                 SearchConfig    `yaml:"search"`
	Cache                  CacheConfig     `yaml:"cache"`
	HTTP                   HTTPConfig      `yaml:"http"`
	LLM                    LLMConfig       `yaml:"llm"`
	PipelineTimeoutSeconds int             `yaml:"pipeline_timeout_seconds"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Document: DocumentConfig{
			Source: SourceDrive,
			Dir:    ".",
		},
		Embedding: EmbeddingConfig{
			Host:  "http://localhost:11434",
			Model: "nomic-embed-text",
		},
		Vector: VectorConfig{
			Backend:    BackendMilvus,
			Collection: "Vector",
			Index:      "cvector",
			Field:      "embedding",
			Milvus:     MilvusConfig{Host: "localhost", Port: "19530"},
			Mongo:      MongoConfig{Database: "angler"},
		},
		Chunk:  ChunkConfig{Size: 1000, Overlap: 200},
		Search: SearchConfig{Limit: 3, Oversampling: 20},
		Cache: CacheConfig{
			Enabled:    true,
			Host:       "localhost",
			Port:       "6379",
			TTLSeconds: 300,
		},
		HTTP: HTTPConfig{Port: 8080},
		LLM: LLMConfig{
			Model:   "meta-llama/llama-3-70b-instruct",
			BaseURL: "https://openrouter.ai/api/v1",
		},
		PipelineTimeoutSeconds: 120,
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty or the file does not exist) and then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env reads environment variables into the config, collecting parse errors.
type env struct {
	errs []error
}

func (e *env) str(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

func (e *env) int(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *env) bool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (e *env) ids(dst *[]int64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	ids, err := auth.ParseIDList(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = ids
}

func (c *Config) applyEnv() error {
	e := &env{}

	e.str(&c.Telegram.Token, "TG_BOT_TOKEN")
	e.ids(&c.Telegram.AllowedChatIDs, "ALLOWED_CHAT_IDS")
	e.ids(&c.Telegram.AllowedUserIDs, "ALLOWED_USER_IDS")
	e.ids(&c.Telegram.AdminUserIDs, "ADMIN_USER_IDS")

	e.str(&c.Document.Source, "DOCUMENT_SOURCE")
	e.str(&c.Document.ID, "GOOGLE_DRIVE_FILE_ID")
	e.str(&c.Document.CredentialsFile, "GOOGLE_DRIVE_CREDENTIALS_FILE")
	e.str(&c.Document.Dir, "DOCUMENT_DIR")

	e.str(&c.Embedding.Host, "OLLAMA_HOST")
	e.str(&c.Embedding.Model, "EMBEDDING_MODEL", "LANGUAGE_MODEL")

	e.str(&c.Vector.Backend, "VECTOR_BACKEND")
	e.str(&c.Vector.Collection, "VECTOR_COLLECTION")
	e.str(&c.Vector.Index, "VECTOR_INDEX")
	e.str(&c.Vector.Field, "VECTOR_FIELD")
	e.bool(&c.Vector.EnsureCollection, "VECTOR_ENSURE_COLLECTION")
	e.str(&c.Vector.Milvus.Host, "MILVUS_HOST")
	e.str(&c.Vector.Milvus.Port, "MILVUS_PORT")
	e.str(&c.Vector.Mongo.URI, "MONGO_URI")
	e.str(&c.Vector.Mongo.Database, "MONGO_DB")
	e.str(&c.Vector.Postgres.DSN, "DATABASE_URL")

	e.int(&c.Chunk.Size, "CHUNK_SIZE")
	e.int(&c.Chunk.Overlap, "CHUNK_OVERLAP")
	e.int(&c.Search.Limit, "SEARCH_LIMIT")
	e.int(&c.Search.Oversampling, "SEARCH_OVERSAMPLING")

	e.bool(&c.Cache.Enabled, "CACHE_ENABLED")
	e.str(&c.Cache.Host, "REDIS_HOST")
	e.str(&c.Cache.Port, "REDIS_PORT")
	e.str(&c.Cache.Password, "REDIS_PASSWORD")
	e.int(&c.Cache.TTLSeconds, "CACHE_TTL_SECONDS")

	e.bool(&c.HTTP.Enabled, "HTTP_ENABLED")
	e.int(&c.HTTP.Port, "HTTP_PORT")

	e.str(&c.LLM.APIKey, "OPENROUTER_API_KEY")
	e.str(&c.LLM.Model, "OPENROUTER_MODEL")
	e.str(&c.LLM.BaseURL, "OPENROUTER_BASE_URL")

	e.int(&c.PipelineTimeoutSeconds, "PIPELINE_TIMEOUT_SECONDS")

	return errors.Join(e.errs...)
}

// Validate reports every missing or inconsistent setting in one error.
func (c *Config) Validate() error {
	var problems []string
	missing := func(name string) { problems = append(problems, name+" is required") }

	if c.Telegram.Token == "" {
		missing("TG_BOT_TOKEN")
	}
	if c.Document.ID == "" {
		missing("GOOGLE_DRIVE_FILE_ID")
	}

	switch c.Document.Source {
	case SourceDrive:
		if c.Document.CredentialsFile == "" {
			missing("GOOGLE_DRIVE_CREDENTIALS_FILE")
		}
	case SourceFile:
	default:
		problems = append(problems, fmt.Sprintf("DOCUMENT_SOURCE %q is not one of gdrive, file", c.Document.Source))
	}

	switch c.Vector.Backend {
	case BackendMilvus, BackendMemory:
	case BackendMongo:
		if c.Vector.Mongo.URI == "" {
			missing("MONGO_URI")
		}
	case BackendPostgres:
		if c.Vector.Postgres.DSN == "" {
			missing("DATABASE_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("VECTOR_BACKEND %q is not one of milvus, mongo, postgres, memory", c.Vector.Backend))
	}

	if c.Vector.Collection == "" {
		missing("VECTOR_COLLECTION")
	}
	if c.Vector.Index == "" {
		missing("VECTOR_INDEX")
	}
	if c.Vector.Field == "" {
		missing("VECTOR_FIELD")
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Size <= c.Chunk.Overlap {
		problems = append(problems, fmt.Sprintf("CHUNK_SIZE (%d) must be greater than CHUNK_OVERLAP (%d) >= 0", c.Chunk.Size, c.Chunk.Overlap))
	}
	if c.Search.Limit <= 0 {
		problems = append(problems, "SEARCH_LIMIT must be positive")
	}
	if c.Search.Oversampling <= 0 {
		problems = append(problems, "SEARCH_OVERSAMPLING must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MilvusAddr returns host:port of the Milvus server.
func (c *Config) MilvusAddr() string {
	return net.JoinHostPort(c.Vector.Milvus.Host, c.Vector.Milvus.Port)
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Cache.Host, c.Cache.Port)
}

// CacheTTL returns the result cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// PipelineTimeout returns the per-command timeout.
func (c *Config) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutSeconds) * time.Second
}

// HTTPAddr returns the listen address of the HTTP API.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
