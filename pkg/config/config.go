package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "mediafetch"

// Config holds all configuration options for mediafetch
type Config struct {
	// Fetch engine settings
	Fetch FetchConfig `yaml:"fetch" toml:"fetch" json:"fetch"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`

	// Fetch cache persistence
	Cache CacheConfig `yaml:"cache" toml:"cache" json:"cache"`

	// Output settings
	Output OutputConfig `yaml:"output" toml:"output" json:"output"`

	// Run journal
	Journal JournalConfig `yaml:"journal" toml:"journal" json:"journal"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// FetchConfig holds the download engine settings
type FetchConfig struct {
	Concurrency           int           `yaml:"concurrency" toml:"concurrency" json:"concurrency"`
	AttemptBudget         int           `yaml:"attempt_budget" toml:"attempt_budget" json:"attempt_budget"`
	RateLimitBudget       int           `yaml:"rate_limit_budget" toml:"rate_limit_budget" json:"rate_limit_budget"`
	ChunkSize             int           `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" toml:"response_header_timeout" json:"response_header_timeout"`
	UserAgent             string        `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	BackoffBase           time.Duration `yaml:"backoff_base" toml:"backoff_base" json:"backoff_base"`
	BackoffMax            time.Duration `yaml:"backoff_max" toml:"backoff_max" json:"backoff_max"`
	MaxParallelJobs       int           `yaml:"max_parallel_jobs" toml:"max_parallel_jobs" json:"max_parallel_jobs"`
}

// RateLimitConfig holds request pacing configuration. Zero requests per minute disables pacing.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst" json:"burst"`
	// Strategy is token_bucket or sliding_window
	Strategy string `yaml:"strategy" toml:"strategy" json:"strategy"`
}

// CacheConfig selects where fetched URLs are recorded
type CacheConfig struct {
	Backend   string `yaml:"backend" toml:"backend" json:"backend"`
	Directory string `yaml:"directory" toml:"directory" json:"directory"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" toml:"base_directory" json:"base_directory"`
}

// JournalConfig controls the per-collection run journal
type JournalConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" toml:"directory" json:"directory"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" toml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" toml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// Cache backends
const (
	BackendText   = "text"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Concurrency:           4,
			AttemptBudget:         3,
			RateLimitBudget:       10,
			ChunkSize:             1 << 20,
			ResponseHeaderTimeout: 30 * time.Second,
			UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			BackoffBase:           1 * time.Second,
			BackoffMax:            60 * time.Second,
			MaxParallelJobs:       2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			Burst:             4,
			Strategy:          "token_bucket",
		},
		Cache: CacheConfig{
			Backend:   BackendText,
			Directory: filepath.Join(cacheHome(), appName),
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
		},
		Journal: JournalConfig{
			Enabled:   true,
			Directory: filepath.Join(dataHome(), appName, "journal"),
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from MEDIAFETCH_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	envInt := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
	envString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	envBool := func(name string, dst *bool) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}

	envInt("MEDIAFETCH_CONCURRENCY", &c.Fetch.Concurrency)
	envInt("MEDIAFETCH_ATTEMPT_BUDGET", &c.Fetch.AttemptBudget)
	envInt("MEDIAFETCH_RATE_LIMIT_BUDGET", &c.Fetch.RateLimitBudget)
	envString("MEDIAFETCH_USER_AGENT", &c.Fetch.UserAgent)
	envInt("MEDIAFETCH_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	envString("MEDIAFETCH_RATE_LIMIT_STRATEGY", &c.RateLimit.Strategy)
	envString("MEDIAFETCH_CACHE_BACKEND", &c.Cache.Backend)
	envString("MEDIAFETCH_CACHE_DIR", &c.Cache.Directory)
	envString("MEDIAFETCH_OUTPUT_DIR", &c.Output.BaseDirectory)
	envBool("MEDIAFETCH_JOURNAL_ENABLED", &c.Journal.Enabled)
	envBool("MEDIAFETCH_NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	envString("MEDIAFETCH_LOG_LEVEL", &c.Logging.Level)
	envString("MEDIAFETCH_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".mediafetch.yaml",
		".mediafetch.yml",
		".mediafetch.toml",
		filepath.Join(configHome(), appName, "config.yaml"),
		filepath.Join(configHome(), appName, "config.toml"),
		filepath.Join(home, ".mediafetch.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}
	if c.Fetch.AttemptBudget < 1 {
		errs = append(errs, errors.New("attempt budget must be at least 1"))
	}
	if c.Fetch.RateLimitBudget < 0 {
		errs = append(errs, errors.New("rate limit budget cannot be negative"))
	}
	if c.Fetch.ChunkSize < 1 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Fetch.ResponseHeaderTimeout <= 0 {
		errs = append(errs, errors.New("response header timeout must be positive"))
	}
	if c.Fetch.BackoffBase < 0 || c.Fetch.BackoffMax < c.Fetch.BackoffBase {
		errs = append(errs, errors.New("backoff max must be at least backoff base"))
	}
	if c.Fetch.MaxParallelJobs < 1 {
		errs = append(errs, errors.New("max parallel jobs must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("burst must be positive when rate limiting is enabled"))
	}
	switch c.RateLimit.Strategy {
	case "", "token_bucket", "sliding_window":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case BackendText, BackendSQLite, BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Directory == "" {
		errs = append(errs, errors.New("cache directory is required"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Journal.Enabled && c.Journal.Directory == "" {
		errs = append(errs, errors.New("journal directory is required when the journal is enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file, as TOML when the extension is .toml
func (c *Config) Save(path string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never override other sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Fetch.Concurrency = v
	}
	if v, ok := flags["attempts"].(int); ok && v > 0 {
		c.Fetch.AttemptBudget = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["cache-backend"].(string); ok && v != "" {
		c.Cache.Backend = v
	}
	if v, ok := flags["cache-dir"].(string); ok && v != "" {
		c.Cache.Directory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["notify"].(bool); ok && v {
		c.Notifications.Enabled = true
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment (including .env) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".mediafetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// DefaultPath returns the config file location used by `config init`
func DefaultPath() string {
	return filepath.Join(configHome(), appName, "config.yaml")
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func cacheHome() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "."
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}
