// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Collaborators, Pipeline,
// Snapshot, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Snapshot      SnapshotConfig      `yaml:"snapshot"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds connection parameters for the crawled-article corpus
// database that the bulk index builder reads from.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	ArticlesTable   string        `yaml:"articlesTable"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ArticleIngest   string `yaml:"articleIngest"`
	SnapshotPublish string `yaml:"snapshotPublish"`
}

// RedisConfig holds Redis connection and verdict-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CollaboratorConfig describes one external NLP service endpoint.
type CollaboratorConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// CollaboratorsConfig holds the endpoints of the out-of-process NLP models.
// The lemmatizer version is pinned here: the identical lemmatizer must serve
// both index build and query time, so the version recorded in a snapshot is
// checked against this value at load.
type CollaboratorsConfig struct {
	EntityExtractor   CollaboratorConfig `yaml:"entityExtractor"`
	Lemmatizer        CollaboratorConfig `yaml:"lemmatizer"`
	Embedder          CollaboratorConfig `yaml:"embedder"`
	Sentiment         CollaboratorConfig `yaml:"sentiment"`
	LemmatizerVersion string             `yaml:"lemmatizerVersion"`
	EmbeddingDim      int                `yaml:"embeddingDim"`
}

// PipelineConfig holds the first-class query tunables. PrefilterK and TopK
// bound the cost of cross-encoder scoring, which is quadratic in sentences
// per candidate.
type PipelineConfig struct {
	ScoringMode   string `yaml:"scoringMode"` // "bm25" or "intersection"
	PrefilterK    int    `yaml:"prefilterK"`
	TopK          int    `yaml:"topK"`
	HighlightTopN int    `yaml:"highlightTopN"`
	BuildShards   int    `yaml:"buildShards"`
}

// SnapshotConfig controls index snapshot persistence.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot serve with.
func (c *Config) Validate() error {
	switch c.Pipeline.ScoringMode {
	case "bm25", "intersection":
	default:
		return fmt.Errorf("pipeline.scoringMode must be bm25 or intersection, got %q", c.Pipeline.ScoringMode)
	}
	if c.Pipeline.PrefilterK < 1 {
		return fmt.Errorf("pipeline.prefilterK must be positive, got %d", c.Pipeline.PrefilterK)
	}
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("pipeline.topK must be positive, got %d", c.Pipeline.TopK)
	}
	if c.Pipeline.HighlightTopN < 1 {
		return fmt.Errorf("pipeline.highlightTopN must be positive, got %d", c.Pipeline.HighlightTopN)
	}
	if c.Pipeline.BuildShards < 1 {
		return fmt.Errorf("pipeline.buildShards must be positive, got %d", c.Pipeline.BuildShards)
	}
	if c.Collaborators.EmbeddingDim < 1 {
		return fmt.Errorf("collaborators.embeddingDim must be positive, got %d", c.Collaborators.EmbeddingDim)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "newscorpus",
			User:            "newscorpus",
			Password:        "localdev",
			SSLMode:         "disable",
			ArticlesTable:   "trusted_articles",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fakenews-indexer",
			Topics: KafkaTopics{
				ArticleIngest:   "article-ingest",
				SnapshotPublish: "snapshot.published",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Collaborators: CollaboratorsConfig{
			EntityExtractor:   CollaboratorConfig{BaseURL: "http://localhost:9001", Timeout: 10 * time.Second},
			Lemmatizer:        CollaboratorConfig{BaseURL: "http://localhost:9002", Timeout: 5 * time.Second},
			Embedder:          CollaboratorConfig{BaseURL: "http://localhost:9003", Timeout: 15 * time.Second},
			Sentiment:         CollaboratorConfig{BaseURL: "http://localhost:9004", Timeout: 10 * time.Second},
			LemmatizerVersion: "pymorphy2-0.9.1",
			EmbeddingDim:      768,
		},
		Pipeline: PipelineConfig{
			ScoringMode:   "bm25",
			PrefilterK:    100,
			TopK:          5,
			HighlightTopN: 3,
			BuildShards:   4,
		},
		Snapshot: SnapshotConfig{
			Path: "data/index.fnix",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FN_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FN_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FN_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FN_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FN_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FN_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FN_NER_URL"); v != "" {
		cfg.Collaborators.EntityExtractor.BaseURL = v
	}
	if v := os.Getenv("FN_LEMMATIZER_URL"); v != "" {
		cfg.Collaborators.Lemmatizer.BaseURL = v
	}
	if v := os.Getenv("FN_EMBEDDER_URL"); v != "" {
		cfg.Collaborators.Embedder.BaseURL = v
	}
	if v := os.Getenv("FN_SENTIMENT_URL"); v != "" {
		cfg.Collaborators.Sentiment.BaseURL = v
	}
	if v := os.Getenv("FN_SCORING_MODE"); v != "" {
		cfg.Pipeline.ScoringMode = v
	}
	if v := os.Getenv("FN_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("FN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
