package config

import (
	"time"

	"github.com/fcollova/tanea-crawler/internal/core/embeddings"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	PostgresDSN       string
	MaxConnections    int32
	MinConnections    int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// RegistryConfig points at the Domain and Site Registry YAML files.
type RegistryConfig struct {
	DomainsPath string
	SitesPath   string
	Env         string
}

// CrawlerConfig holds the default crawl politeness and timing settings applied
// when a Domain or Site doesn't override them.
type CrawlerConfig struct {
	UserAgent             string
	DefaultRequestsPerSec float64
	DefaultMaxConcurrent  int
	DefaultMaxFailures    int
	RobotsCacheTTL        time.Duration
	RobotsFailureCacheTTL time.Duration
	AttemptRetention      time.Duration
	ExtractionTimeout     time.Duration
}

// SchedulerConfig holds the recurring-job loop's tick cadence.
type SchedulerConfig struct {
	DrainInterval time.Duration
	SeedInterval  time.Duration
	HistorySize   int
}

// DatabaseCfg returns the database configuration extracted from Config.
func (c *Config) DatabaseCfg() DatabaseConfig {
	return DatabaseConfig{
		PostgresDSN:       c.PostgresDSN,
		MaxConnections:    c.DBMaxConnections,
		MinConnections:    c.DBMinConnections,
		MaxConnIdleTime:   c.DBMaxConnIdleTime,
		MaxConnLifetime:   c.DBMaxConnLifetime,
		HealthCheckPeriod: c.DBHealthCheckPeriod,
	}
}

// RegistryCfg returns the Domain/Site Registry configuration.
func (c *Config) RegistryCfg() RegistryConfig {
	return RegistryConfig{
		DomainsPath: c.DomainsConfigPath,
		SitesPath:   c.SitesConfigPath,
		Env:         c.Env,
	}
}

// CrawlerCfg returns the default crawl politeness configuration.
func (c *Config) CrawlerCfg() CrawlerConfig {
	return CrawlerConfig{
		UserAgent:             c.CrawlUserAgent,
		DefaultRequestsPerSec: c.CrawlDefaultRequestsPerSec,
		DefaultMaxConcurrent:  c.CrawlDefaultMaxConcurrent,
		DefaultMaxFailures:    c.CrawlDefaultMaxFailures,
		RobotsCacheTTL:        c.CrawlRobotsCacheTTL,
		RobotsFailureCacheTTL: c.CrawlRobotsFailureCacheTTL,
		AttemptRetention:      c.CrawlAttemptRetention,
		ExtractionTimeout:     c.CrawlExtractionTimeout,
	}
}

// SchedulerCfg returns the scheduler loop configuration.
func (c *Config) SchedulerCfg() SchedulerConfig {
	return SchedulerConfig{
		DrainInterval: c.SchedulerDrainInterval,
		SeedInterval:  c.SchedulerSeedInterval,
		HistorySize:   c.SchedulerHistorySize,
	}
}

// EmbeddingCfg returns the embedding provider configuration, ready to hand to
// embeddings.NewClient.
func (c *Config) EmbeddingCfg() embeddings.Config {
	return embeddings.Config{
		OpenAIAPIKey:     c.OpenAIAPIKey,
		OpenAIModel:      c.OpenAIEmbeddingModel,
		OpenAIRateLimit:  c.OpenAIRateLimit,
		CohereAPIKey:     c.CohereAPIKey,
		CohereModel:      c.CohereEmbeddingModel,
		CohereRateLimit:  c.CohereRateLimit,
		GoogleAPIKey:     c.GoogleAPIKey,
		GoogleModel:      c.GoogleEmbeddingModel,
		GoogleRateLimit:  c.GoogleRateLimit,
		ProviderOrder:    c.EmbeddingProviderOrder,
		TargetDimensions: c.EmbeddingTargetDimensions,
		CircuitBreakerConfig: embeddings.CircuitBreakerConfig{
			Threshold:  c.EmbeddingCircuitThreshold,
			ResetAfter: c.EmbeddingCircuitTimeout,
		},
	}
}
