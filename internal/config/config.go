package config

import (
	"errors"
	"fmt"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DBDriverMySQL  = "mysql"
	DBDriverSQLite = "sqlite"
)

const (
	InvariantModeStrict = "strict"
	InvariantModeClamp  = "clamp"
)

type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	JWT             JWTConfig
	Tracing         TracingConfig `mapstructure:"tracing"`
	Redis           RedisConfig
	CORS            CORSConfig            `mapstructure:"cors"`
	RateLimit       RateLimitConfig       `mapstructure:"rate_limit"`
	Log             LogConfig             `mapstructure:"log"`
	Personalization PersonalizationConfig `mapstructure:"personalization"`
	Analytics       AnalyticsConfig       `mapstructure:"analytics"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool   `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	Source       string `mapstructure:"-"` // 实际读取的配置文件
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port            string
	Mode            string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	Charset    string
	ParseTime  bool   `mapstructure:"parse_time"`
	SQLitePath string `mapstructure:"sqlite_path"`
	LogLevel   string `mapstructure:"log_level"`
	Seed       bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// PersonalizationConfig holds the scoring constants plus resolver knobs.
type PersonalizationConfig struct {
	insight.Tuning `mapstructure:",squash"`

	InvariantMode   string        `mapstructure:"invariant_mode"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	ProfileCacheTTL time.Duration `mapstructure:"profile_cache_ttl"`
}

type AnalyticsConfig struct {
	SourceTimeout         time.Duration     `mapstructure:"source_timeout"`
	BreakerFailures       uint32            `mapstructure:"breaker_failures"`
	BreakerOpenFor        time.Duration     `mapstructure:"breaker_open_for"`
	SummaryCacheTTL       time.Duration     `mapstructure:"summary_cache_ttl"`
	MaxRangeDays          int               `mapstructure:"max_range_days"`
	ClassTrendGranularity model.Granularity `mapstructure:"class_trend_granularity"`
	ExperienceGranularity model.Granularity `mapstructure:"experience_granularity"`
}

func (a AnalyticsConfig) MaxRange() time.Duration {
	return time.Duration(a.MaxRangeDays) * 24 * time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", DBDriverMySQL)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.sqlite_path", "data/learner_insight.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("tracing.service_name", "learner-insight")
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	t := insight.DefaultTuning()
	v.SetDefault("personalization.decay_factor", t.DecayFactor)
	v.SetDefault("personalization.gap_threshold", t.GapThreshold)
	v.SetDefault("personalization.confidence_saturation", t.ConfidenceSaturation)
	v.SetDefault("personalization.prerequisite_floor", t.PrerequisiteFloor)
	v.SetDefault("personalization.prerequisite_penalty", t.PrerequisitePenalty)
	v.SetDefault("personalization.proximal_offset", t.ProximalOffset)
	v.SetDefault("personalization.difficulty_tolerance", t.DifficultyTolerance)
	v.SetDefault("personalization.difficulty_penalty", t.DifficultyPenalty)
	v.SetDefault("personalization.difficulty_floor", t.DifficultyFloor)
	v.SetDefault("personalization.max_recommendations", t.MaxRecommendations)
	v.SetDefault("personalization.invariant_mode", InvariantModeClamp)
	v.SetDefault("personalization.history_limit", 500)
	v.SetDefault("personalization.profile_cache_ttl", 5*time.Minute)

	v.SetDefault("analytics.source_timeout", 2*time.Second)
	v.SetDefault("analytics.breaker_failures", 5)
	v.SetDefault("analytics.breaker_open_for", 30*time.Second)
	v.SetDefault("analytics.summary_cache_ttl", time.Minute)
	v.SetDefault("analytics.max_range_days", 366)
	v.SetDefault("analytics.class_trend_granularity", string(model.GranularityDay))
	v.SetDefault("analytics.experience_granularity", string(model.GranularityDay))
}

// LoadConfig reads config.yaml from a directory, or the named file when path
// has a yaml extension. LEARNER_INSIGHT_* variables override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		v.SetConfigFile(path)
	default:
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LEARNER_INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Source = v.ConfigFileUsed()

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	switch c.Database.Driver {
	case DBDriverMySQL, DBDriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DBDriverMySQL, DBDriverSQLite, c.Database.Driver)
	}
	if err := c.Personalization.Tuning.Validate(); err != nil {
		return fmt.Errorf("personalization: %w", err)
	}
	switch c.Personalization.InvariantMode {
	case InvariantModeStrict, InvariantModeClamp:
	default:
		return fmt.Errorf("personalization.invariant_mode must be %q or %q", InvariantModeStrict, InvariantModeClamp)
	}
	for name, g := range map[string]model.Granularity{
		"analytics.class_trend_granularity": c.Analytics.ClassTrendGranularity,
		"analytics.experience_granularity":  c.Analytics.ExperienceGranularity,
	} {
		if g.Rank() < 0 {
			return fmt.Errorf("%s: unknown granularity %q", name, g)
		}
	}
	if c.Analytics.SourceTimeout <= 0 {
		return errors.New("analytics.source_timeout must be positive")
	}
	return nil
}
