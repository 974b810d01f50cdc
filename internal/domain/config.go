package domain

import "time"

// Config holds the complete FraudGuard configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	// Tier determines the default backing services.
	Tier Tier `json:"tier"`

	Profile    ProfileStoreConfig `json:"profile"`
	Cache      CacheConfig        `json:"cache"`
	Repository RepositoryConfig   `json:"repository"`
	EventBus   EventBusConfig     `json:"eventBus"`
	Model      ModelConfig        `json:"model"`
	Pipeline   PipelineConfig     `json:"pipeline"`

	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// RateLimit is requests/second per client; 0 disables limiting.
	RateLimit float64 `json:"rateLimit"`
	RateBurst int     `json:"rateBurst"`
}

// ModelConfig holds model artifact settings.
type ModelConfig struct {
	// Path to the trained artifact on disk. When the file is absent the
	// embedded starter model is used instead.
	Path string `json:"path"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	// StoreTimeout bounds every profile-store and cache round-trip. On
	// timeout the pipeline degrades to the default behavioral vector.
	StoreTimeout time.Duration `json:"storeTimeout"`

	// BatchWorkers caps concurrent item scoring inside one batch.
	BatchWorkers int `json:"batchWorkers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on in-memory stores + SQLite + channels.
	TierCommunity Tier = "community"

	// TierPro runs on Redis + PostgreSQL + NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a Community tier configuration: everything
// in-process, nothing to deploy.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			RateLimit:    0,
			RateBurst:    50,
		},
		Tier: TierCommunity,
		Profile: ProfileStoreConfig{
			Type:           "memory",
			HistoryWindow:  1000,
			UseTxTimestamp: true,
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  time.Hour,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fraudguard.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Model: ModelConfig{
			Path: "./models/fraud_model.json",
		},
		Pipeline: PipelineConfig{
			StoreTimeout: 200 * time.Millisecond,
			BatchWorkers: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fraudguard",
		},
	}
}

// ProConfig returns a Pro tier configuration backed by Redis, PostgreSQL
// and NATS.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Profile = ProfileStoreConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		HistoryWindow:  1000,
		UseTxTimestamp: true,
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
		RedisDB:   1,
		TTL:       time.Hour,
	}
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fraudguard",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
