package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vanillake254/BAHATI-YANGU/logging"
)

// Config holds all client configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	API         APIConfig      `mapstructure:"api"`
	Session     SessionConfig  `mapstructure:"session"`
	Poller      PollerConfig   `mapstructure:"poller"`
	Games       GamesConfig    `mapstructure:"games"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Sandbox     SandboxConfig  `mapstructure:"sandbox"`
	Logging     logging.Config `mapstructure:"logging"`
}

// APIConfig points the client at the remote authority
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	// Storage is one of "file", "redis" or "memory"
	Storage    string `mapstructure:"storage"`
	FilePath   string `mapstructure:"file_path"`
	StorageKey string `mapstructure:"storage_key"`
}

// PollerConfig holds settlement polling cadence
type PollerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Deadline      time.Duration `mapstructure:"deadline"`
}

// SpinModeConfig holds the product parameters of one wheel mode
type SpinModeConfig struct {
	MinStake   decimal.Decimal `mapstructure:"min_stake"`
	Duration   time.Duration   `mapstructure:"duration"`
	ExtraTurns int             `mapstructure:"extra_turns"`
}

// GamesConfig holds per-game timing and stake rules
type GamesConfig struct {
	SpinModes       map[string]SpinModeConfig `mapstructure:"spin_modes"`
	SpinSettle      time.Duration             `mapstructure:"spin_settle"`
	PredictDelay    time.Duration             `mapstructure:"predict_delay"`
	PredictMinStake decimal.Decimal           `mapstructure:"predict_min_stake"`
	PickBoxDelay    time.Duration             `mapstructure:"pickbox_delay"`
	PickBoxMinStake decimal.Decimal           `mapstructure:"pickbox_min_stake"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// KafkaConfig holds the audit event sink configuration.
// An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	WorkerNum int      `mapstructure:"worker_num"`
}

// SandboxConfig holds the local stand-in authority settings
type SandboxConfig struct {
	Port             int           `mapstructure:"port"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	SettleAfterPolls int           `mapstructure:"settle_after_polls"`
	Seed             int64         `mapstructure:"seed"`
	EnableCORS       bool          `mapstructure:"enable_cors"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// Load loads configuration from YAML file using Viper
func Load(filename string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return unmarshal(v)
}

// LoadByEnv loads config-<env>.yaml from configDir. A missing file is not an
// error: defaults and environment variables are used instead.
func LoadByEnv(configDir string) (*Config, error) {
	v := newViper()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	env := v.GetString("ENV")
	if env == "" {
		env = v.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("config-%s", env))
	v.SetConfigType("yaml")
	v.SetDefault("environment", env)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return unmarshal(v)
}

// Default returns the built-in configuration with environment overrides applied.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		cfg = &Config{}
		cfg.setDefaults()
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// The web client used API_BASE_URL; keep it working.
	_ = v.BindEnv("api.base_url", "API_BASE_URL")
	_ = v.BindEnv("session.storage", "SESSION_STORAGE")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		decimalHookFunc(),
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// decimalHookFunc decodes YAML numbers and strings into decimal.Decimal
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		default:
			return data, nil
		}
	}
}

// DefaultSpinModes returns the three wheel modes of the product
func DefaultSpinModes() map[string]SpinModeConfig {
	return map[string]SpinModeConfig{
		"classic":    {MinStake: decimal.NewFromInt(20), Duration: 2300 * time.Millisecond, ExtraTurns: 7},
		"turbo":      {MinStake: decimal.NewFromInt(100), Duration: 3500 * time.Millisecond, ExtraTurns: 6},
		"highroller": {MinStake: decimal.NewFromInt(500), Duration: 6 * time.Second, ExtraTurns: 8},
	}
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://127.0.0.1:8000"
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Session.InactivityTimeout == 0 {
		c.Session.InactivityTimeout = 3 * time.Minute
	}
	if c.Session.Storage == "" {
		c.Session.Storage = "file"
	}
	if c.Session.FilePath == "" {
		c.Session.FilePath = ".bahati"
	}
	if c.Session.StorageKey == "" {
		c.Session.StorageKey = "bahati_yangu_auth"
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = time.Second
	}
	if c.Poller.RetryInterval == 0 {
		c.Poller.RetryInterval = 1500 * time.Millisecond
	}
	if c.Poller.Deadline == 0 {
		c.Poller.Deadline = time.Minute
	}
	if len(c.Games.SpinModes) == 0 {
		c.Games.SpinModes = DefaultSpinModes()
	}
	if c.Games.SpinSettle == 0 {
		c.Games.SpinSettle = 200 * time.Millisecond
	}
	if c.Games.PredictDelay == 0 {
		c.Games.PredictDelay = 900 * time.Millisecond
	}
	if c.Games.PickBoxDelay == 0 {
		c.Games.PickBoxDelay = 650 * time.Millisecond
	}
	if c.Games.PickBoxMinStake.IsZero() {
		c.Games.PickBoxMinStake = decimal.NewFromInt(20)
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "bahati.client.audit"
	}
	if c.Sandbox.Port == 0 {
		c.Sandbox.Port = 8000
	}
	if c.Sandbox.JWTSecret == "" {
		c.Sandbox.JWTSecret = "sandbox-secret"
	}
	if c.Sandbox.TokenTTL == 0 {
		c.Sandbox.TokenTTL = time.Hour
	}
	if c.Sandbox.SettleAfterPolls == 0 {
		c.Sandbox.SettleAfterPolls = 3
	}
	if c.Sandbox.ReadTimeout == 0 {
		c.Sandbox.ReadTimeout = 15 * time.Second
	}
	if c.Sandbox.WriteTimeout == 0 {
		c.Sandbox.WriteTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// KafkaEnabled reports whether audit events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
