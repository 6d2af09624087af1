// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Analysis, Indexer, Search, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Profiles ProfileSet     `yaml:"profiles"`
	Run      RunConfig      `yaml:"run"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AnalysisConfig controls the text analysis pipeline shared by indexing and
// query parsing.
type AnalysisConfig struct {
	StopwordsPath  string `yaml:"stopwordsPath"`
	MaxTokenLength int    `yaml:"maxTokenLength"`
	NormalizeNFKC  bool   `yaml:"normalizeNfkc"`
	Stem           bool   `yaml:"stem"`
}

// CorpusConfig selects how raw dataset records become documents.
type CorpusConfig struct {
	Path               string   `yaml:"path"`
	Source             string   `yaml:"source"`
	IncludeClasses     bool     `yaml:"includeClasses"`
	DeduplicateClasses bool     `yaml:"deduplicateClasses"`
	ContentSources     []string `yaml:"contentSources"`
	MaxContentValues   int      `yaml:"maxContentValues"`
	PositionalContent  bool     `yaml:"positionalContent"`
	MaxRecords         int      `yaml:"maxRecords"`
}

// IndexerConfig controls index build parallelism, per-document budgets and
// snapshot persistence.
type IndexerConfig struct {
	SnapshotPath      string `yaml:"snapshotPath"`
	Workers           int    `yaml:"workers"`
	MaxDocumentTokens int    `yaml:"maxDocumentTokens"`
	Compression       string `yaml:"compression"`
}

// SearchConfig controls query execution: which profile ranks, how many
// candidates feed the scorer and how many hits are returned.
type SearchConfig struct {
	Profile        string        `yaml:"profile"`
	NHits          int           `yaml:"nHits"`
	CandidateLimit int           `yaml:"candidateLimit"`
	MaxResults     int           `yaml:"maxResults"`
	Workers        int           `yaml:"workers"`
	QueryTimeout   time.Duration `yaml:"queryTimeout"`
}

// ProfileSet maps a profile name to field weights. Field names are validated
// by the ranker when the profile is materialised.
type ProfileSet map[string]map[string]float64

// RunConfig controls batch ranking runs.
type RunConfig struct {
	QueriesPath  string `yaml:"queriesPath"`
	OutputPath   string `yaml:"outputPath"`
	RunID        string `yaml:"runId"`
	StoreResults bool   `yaml:"storeResults"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
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
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DatasetIngest string `yaml:"datasetIngest"`
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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
	return cfg, nil
}

// Validate checks the settings every entrypoint depends on. It runs before
// any index or query work starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Indexer.SnapshotPath) == "" {
		return apperrors.Configf("indexer.snapshotPath must not be empty")
	}
	if c.Indexer.Workers < 1 {
		return apperrors.Configf("indexer.workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Indexer.MaxDocumentTokens < 0 {
		return apperrors.Configf("indexer.maxDocumentTokens must not be negative")
	}
	switch c.Indexer.Compression {
	case "none", "lz4", "zstd":
	default:
		return apperrors.Configf("indexer.compression %q is not one of none, lz4, zstd", c.Indexer.Compression)
	}
	if strings.TrimSpace(c.Search.Profile) == "" {
		return apperrors.Configf("search.profile must not be empty")
	}
	if c.Search.NHits < 1 {
		return apperrors.Configf("search.nHits must be positive, got %d", c.Search.NHits)
	}
	if c.Search.CandidateLimit < 1 {
		return apperrors.Configf("search.candidateLimit must be positive, got %d", c.Search.CandidateLimit)
	}
	if c.Search.Workers < 1 {
		return apperrors.Configf("search.workers must be positive, got %d", c.Search.Workers)
	}
	for name, weights := range c.Profiles {
		if len(weights) == 0 {
			return apperrors.Configf("profile %q has no field weights", name)
		}
	}
	switch c.Corpus.Source {
	case "file", "kafka":
	default:
		return apperrors.Configf("corpus.source %q is not one of file, kafka", c.Corpus.Source)
	}
	if c.Corpus.MaxContentValues < 0 {
		return apperrors.Configf("corpus.maxContentValues must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Analysis: AnalysisConfig{
			MaxTokenLength: 255,
		},
		Corpus: CorpusConfig{
			Path:               "data/corpus.jsonl",
			Source:             "file",
			IncludeClasses:     true,
			DeduplicateClasses: false,
			ContentSources:     []string{"jena", "rdflib", "lightrdf"},
			MaxContentValues:   100000,
		},
		Indexer: IndexerConfig{
			SnapshotPath: "data/index.fsdm",
			Workers:      4,
			Compression:  "zstd",
		},
		Search: SearchConfig{
			Profile:        "all",
			NHits:          10,
			CandidateLimit: 10,
			MaxResults:     100,
			Workers:        4,
			QueryTimeout:   30 * time.Second,
		},
		Run: RunConfig{
			QueriesPath: "data/queries.txt",
			OutputPath:  "runs",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "datasetsearch",
			User:            "datasetsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "datasetsearch-group",
			Topics: KafkaTopics{
				DatasetIngest: "dataset-ingest",
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
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

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_ANALYSIS_STOPWORDS_PATH"); v != "" {
		cfg.Analysis.StopwordsPath = v
	}
	if v := os.Getenv("SP_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("SP_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("SP_INDEXER_SNAPSHOT_PATH"); v != "" {
		cfg.Indexer.SnapshotPath = v
	}
	if v := os.Getenv("SP_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("SP_SEARCH_PROFILE"); v != "" {
		cfg.Search.Profile = v
	}
	if v := os.Getenv("SP_SEARCH_NHITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.NHits = n
		}
	}
	if v := os.Getenv("SP_RUN_ID"); v != "" {
		cfg.Run.RunID = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
