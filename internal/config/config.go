package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Operating OperatingConfig `yaml:"operating" mapstructure:"operating"`
	Recommend RecommendConfig `yaml:"recommend" mapstructure:"recommend"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the center directory backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	FixturePath string `yaml:"fixture_path" mapstructure:"fixture_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the recommendation read-through cache.
type CacheConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"`
	RedisURL           string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix          string `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTLSecs            int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries         int    `yaml:"max_entries" mapstructure:"max_entries"`
	FailureThreshold   int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs   int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	OperationTimeoutMs int    `yaml:"operation_timeout_ms" mapstructure:"operation_timeout_ms"`
}

// ScoringWeights holds the four module weights. They must sum to 1.0.
type ScoringWeights struct {
	Distance  float64 `yaml:"distance" mapstructure:"distance" json:"distance"`
	Operating float64 `yaml:"operating" mapstructure:"operating" json:"operating"`
	Specialty float64 `yaml:"specialty" mapstructure:"specialty" json:"specialty"`
	Program   float64 `yaml:"program" mapstructure:"program" json:"program"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	DefaultWeights    ScoringWeights `yaml:"default_weights" mapstructure:"default_weights"`
	AssessmentWeights ScoringWeights `yaml:"assessment_weights" mapstructure:"assessment_weights"`
	Region            string         `yaml:"region" mapstructure:"region"`
}

// OperatingConfig configures the operating status engine.
type OperatingConfig struct {
	Timezone           string `yaml:"timezone" mapstructure:"timezone"`
	ClosingSoonMinutes int    `yaml:"closing_soon_minutes" mapstructure:"closing_soon_minutes"`
	LookaheadDays      int    `yaml:"lookahead_days" mapstructure:"lookahead_days"`
}

// RecommendConfig configures request bounds and batch execution.
type RecommendConfig struct {
	DefaultRadiusMeters int     `yaml:"default_radius_meters" mapstructure:"default_radius_meters"`
	MaxRadiusMeters     int     `yaml:"max_radius_meters" mapstructure:"max_radius_meters"`
	DefaultLimit        int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit            int     `yaml:"max_limit" mapstructure:"max_limit"`
	Concurrency         int     `yaml:"concurrency" mapstructure:"concurrency"`
	CenterTimeoutMs     int     `yaml:"center_timeout_ms" mapstructure:"center_timeout_ms"`
	LogRatePerSec       float64 `yaml:"log_rate_per_sec" mapstructure:"log_rate_per_sec"`
	LogTimeoutMs        int     `yaml:"log_timeout_ms" mapstructure:"log_timeout_ms"`
}

// RetryConfig configures retries for directory reads.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENTERRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.fixture_path", "centers.yaml")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "centerrank:rec:")
	v.SetDefault("cache.ttl_secs", 600)
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.failure_threshold", 5)
	v.SetDefault("cache.reset_timeout_secs", 30)
	v.SetDefault("cache.operation_timeout_ms", 200)

	v.SetDefault("scoring.default_weights.distance", 0.35)
	v.SetDefault("scoring.default_weights.operating", 0.25)
	v.SetDefault("scoring.default_weights.specialty", 0.20)
	v.SetDefault("scoring.default_weights.program", 0.20)
	// Operating and specialty match the defaults; distance and program share 0.55.
	v.SetDefault("scoring.assessment_weights.distance", 0.25)
	v.SetDefault("scoring.assessment_weights.operating", 0.25)
	v.SetDefault("scoring.assessment_weights.specialty", 0.20)
	v.SetDefault("scoring.assessment_weights.program", 0.30)
	v.SetDefault("scoring.region", "default")

	v.SetDefault("operating.timezone", "Asia/Seoul")
	v.SetDefault("operating.closing_soon_minutes", 60)
	v.SetDefault("operating.lookahead_days", 14)

	v.SetDefault("recommend.default_radius_meters", 5000)
	v.SetDefault("recommend.max_radius_meters", 50000)
	v.SetDefault("recommend.default_limit", 10)
	v.SetDefault("recommend.max_limit", 50)
	v.SetDefault("recommend.concurrency", 0)
	v.SetDefault("recommend.center_timeout_ms", 2000)
	v.SetDefault("recommend.log_rate_per_sec", 50)
	v.SetDefault("recommend.log_timeout_ms", 3000)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 2000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// WeightField is one named module weight.
type WeightField struct {
	Name  string
	Value float64
}

// Fields returns the weights in fixed module order.
func (w ScoringWeights) Fields() []WeightField {
	return []WeightField{
		{"distance", w.Distance},
		{"operating", w.Operating},
		{"specialty", w.Specialty},
		{"program", w.Program},
	}
}

// Sum returns the total of the four weights.
func (w ScoringWeights) Sum() float64 {
	return w.Distance + w.Operating + w.Specialty + w.Program
}

// weightTolerance bounds floating-point drift when checking weight sums.
const weightTolerance = 1e-4

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for sqlite")
		}
	case "file":
		if c.Store.FixturePath == "" {
			errs = append(errs, "store.fixture_path is required for file")
		}
	default:
		errs = append(errs, "store.driver must be postgres, sqlite or file")
	}

	switch c.Cache.Driver {
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for redis")
		}
	case "memory", "none":
	default:
		errs = append(errs, "cache.driver must be redis, memory or none")
	}
	if c.Cache.TTLSecs < 0 {
		errs = append(errs, "cache.ttl_secs must be >= 0")
	}

	for _, set := range []struct {
		name string
		w    ScoringWeights
	}{
		{"scoring.default_weights", c.Scoring.DefaultWeights},
		{"scoring.assessment_weights", c.Scoring.AssessmentWeights},
	} {
		for _, f := range set.w.Fields() {
			if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
				errs = append(errs, set.name+"."+f.Name+" must be a finite number")
			} else if f.Value < 0 {
				errs = append(errs, set.name+" must not contain negative weights")
				break
			}
		}
		if sum := set.w.Sum(); math.IsNaN(sum) || math.Abs(sum-1) > weightTolerance {
			errs = append(errs, set.name+" must sum to 1.0")
		}
	}

	if c.Operating.ClosingSoonMinutes < 0 {
		errs = append(errs, "operating.closing_soon_minutes must be >= 0")
	}
	if c.Operating.LookaheadDays < 1 {
		errs = append(errs, "operating.lookahead_days must be >= 1")
	}

	r := c.Recommend
	if r.MaxRadiusMeters <= 0 {
		errs = append(errs, "recommend.max_radius_meters must be > 0")
	}
	if r.DefaultRadiusMeters <= 0 || r.DefaultRadiusMeters > r.MaxRadiusMeters {
		errs = append(errs, "recommend.default_radius_meters must be in (0, max_radius_meters]")
	}
	if r.MaxLimit <= 0 {
		errs = append(errs, "recommend.max_limit must be > 0")
	}
	if r.DefaultLimit <= 0 || r.DefaultLimit > r.MaxLimit {
		errs = append(errs, "recommend.default_limit must be in (0, max_limit]")
	}
	if r.Concurrency < 0 {
		errs = append(errs, "recommend.concurrency must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
