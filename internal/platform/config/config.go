package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting the crawler daemon and its
// admin CLI need. Struct tags are read by caarlos0/env; a .env file in the
// working directory is loaded first and is entirely optional.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool tuning, see DatabaseCfg.
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"5"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Domain/Site registry, see RegistryCfg.
	DomainsConfigPath string `env:"DOMAINS_CONFIG_PATH" envDefault:"config/domains.yaml"`
	SitesConfigPath   string `env:"SITES_CONFIG_PATH" envDefault:"config/sites.yaml"`

	// Crawl politeness defaults, overridable per Domain/Site policy. See CrawlerCfg.
	CrawlUserAgent               string        `env:"CRAWL_USER_AGENT" envDefault:"taneabot/1.0 (+https://tanea.example/bot)"`
	CrawlDefaultRequestsPerSec   float64       `env:"CRAWL_DEFAULT_RPS" envDefault:"1"`
	CrawlDefaultMaxConcurrent    int           `env:"CRAWL_DEFAULT_MAX_CONCURRENT" envDefault:"2"`
	CrawlDefaultMaxFailures      int           `env:"CRAWL_DEFAULT_MAX_FAILURES" envDefault:"3"`
	CrawlRobotsCacheTTL          time.Duration `env:"CRAWL_ROBOTS_CACHE_TTL" envDefault:"24h"`
	CrawlRobotsFailureCacheTTL   time.Duration `env:"CRAWL_ROBOTS_FAILURE_CACHE_TTL" envDefault:"1h"`
	CrawlAttemptRetention        time.Duration `env:"CRAWL_ATTEMPT_RETENTION" envDefault:"720h"`
	CrawlExtractionTimeout       time.Duration `env:"CRAWL_EXTRACTION_TIMEOUT" envDefault:"30s"`

	// Scheduler loop cadence, see SchedulerCfg.
	SchedulerDrainInterval time.Duration `env:"SCHEDULER_DRAIN_INTERVAL" envDefault:"10s"`
	SchedulerSeedInterval  time.Duration `env:"SCHEDULER_SEED_INTERVAL" envDefault:"1h"`
	SchedulerHistorySize   int           `env:"SCHEDULER_HISTORY_SIZE" envDefault:"500"`

	// Embedding provider settings, see EmbeddingCfg.
	OpenAIAPIKey         string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIEmbeddingModel string        `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	OpenAIRateLimit      int           `env:"OPENAI_EMBEDDING_RATE_LIMIT" envDefault:"60"`
	CohereAPIKey         string        `env:"COHERE_API_KEY" envDefault:""`
	CohereEmbeddingModel string        `env:"COHERE_EMBEDDING_MODEL" envDefault:"embed-multilingual-v3.0"`
	CohereRateLimit      int           `env:"COHERE_EMBEDDING_RATE_LIMIT" envDefault:"60"`
	GoogleAPIKey         string        `env:"GOOGLE_API_KEY" envDefault:""`
	GoogleEmbeddingModel string        `env:"GOOGLE_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	GoogleRateLimit      int           `env:"GOOGLE_EMBEDDING_RATE_LIMIT" envDefault:"60"`
	EmbeddingProviderOrder    string        `env:"EMBEDDING_PROVIDER_ORDER" envDefault:"openai,cohere,google"`
	EmbeddingCircuitThreshold int           `env:"EMBEDDING_CIRCUIT_THRESHOLD" envDefault:"5"`
	EmbeddingCircuitTimeout   time.Duration `env:"EMBEDDING_CIRCUIT_TIMEOUT" envDefault:"1m"`
	EmbeddingTargetDimensions int           `env:"EMBEDDING_TARGET_DIMENSIONS" envDefault:"1536"`
}

// Load loads a .env file if present, then reads Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
