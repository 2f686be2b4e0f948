// Package config loads runtime parameters from a config file, an optional
// .env file and MODELRT_* environment variables, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. MODELRT_ADDR.
const EnvPrefix = "modelrt"

// Broker kinds.
const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

// Duration is a time.Duration written as a string ("30s") in config files
// and environment variables.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr" envconfig:"ADDR"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir" envconfig:"MODELS_DIR"`
	Manifest  string `json:"manifest" yaml:"manifest" toml:"manifest" envconfig:"MANIFEST"`
	VocabFile string `json:"vocab_file" yaml:"vocab_file" toml:"vocab_file" envconfig:"VOCAB_FILE"`

	DefaultModel     string   `json:"default_model" yaml:"default_model" toml:"default_model" envconfig:"DEFAULT_MODEL"`
	Preload          []string `json:"preload" yaml:"preload" toml:"preload" envconfig:"PRELOAD"`
	HiddenSize       int      `json:"hidden_size" yaml:"hidden_size" toml:"hidden_size" envconfig:"HIDDEN_SIZE"`
	DefaultMaxTokens int      `json:"default_max_tokens" yaml:"default_max_tokens" toml:"default_max_tokens" envconfig:"DEFAULT_MAX_TOKENS"`
	StopOnEOS        bool     `json:"stop_on_eos" yaml:"stop_on_eos" toml:"stop_on_eos" envconfig:"STOP_ON_EOS"`

	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" envconfig:"MAX_QUEUE_DEPTH"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait" envconfig:"MAX_WAIT"`
	DrainTimeout  Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout" envconfig:"DRAIN_TIMEOUT"`

	Broker        string `json:"broker" yaml:"broker" toml:"broker" envconfig:"BROKER"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" toml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" toml:"redis_db" envconfig:"REDIS_DB"`
	QueueName     string `json:"queue_name" yaml:"queue_name" toml:"queue_name" envconfig:"QUEUE_NAME"`

	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	RequestLog     string   `json:"request_log" yaml:"request_log" toml:"request_log" envconfig:"REQUEST_LOG"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" envconfig:"LOG_FORMAT"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" envconfig:"CORS_ENABLED"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" envconfig:"CORS_ORIGINS"`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods" envconfig:"CORS_METHODS"`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers" envconfig:"CORS_HEADERS"`
}

// Defaults returns a Config with every defaulted field set.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ModelsDir == "" && c.Manifest == "" {
		c.ModelsDir = "~/models/modelrt"
	}
	if c.HiddenSize <= 0 {
		c.HiddenSize = 16
	}
	if c.DefaultMaxTokens <= 0 {
		c.DefaultMaxTokens = 64
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = 32
	}
	if c.MaxWait <= 0 {
		c.MaxWait = Duration(30 * time.Second)
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = Duration(5 * time.Second)
	}
	if c.Broker == "" {
		c.Broker = BrokerMemory
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.QueueName == "" {
		c.QueueName = "modelrt:calls"
	}
	if c.RequestLog == "" {
		c.RequestLog = "info"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if len(c.CORSMethods) == 0 {
		c.CORSMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORSHeaders) == 0 {
		c.CORSHeaders = []string{"Content-Type", "Authorization"}
	}
}

// Validate rejects values ApplyDefaults cannot repair.
func (c Config) Validate() error {
	switch c.Broker {
	case BrokerMemory, BrokerRedis:
	default:
		return fmt.Errorf("unsupported broker %q (want memory or redis)", c.Broker)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log_format %q (want json or console)", c.LogFormat)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis_db must be >= 0")
	}
	if c.CORSEnabled && len(c.CORSOrigins) == 0 {
		return fmt.Errorf("cors_enabled requires cors_origins")
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv exports variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays MODELRT_* environment variables onto cfg. Unset
// variables leave the field untouched.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Resolve builds the effective configuration: file (optional), then .env,
// then environment, then defaults.
func Resolve(path string) (Config, error) {
	var cfg Config
	if path != "" {
		c, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := LoadDotEnv(""); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}
