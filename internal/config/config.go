package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"hashfeed/internal/threat"
)

const envPrefix = "HASHFEED_"

// Config holds crawler and lookup server settings.
type Config struct {
	FeedURL    string        `yaml:"feed_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	OutputDir  string        `yaml:"output_dir"`
	OutputFile string        `yaml:"output_file"`

	// MetricsFile, when set, receives a Prometheus textfile after each crawl.
	MetricsFile string `yaml:"metrics_file"`

	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		FeedURL:    threat.DefaultFeedURL,
		UserAgent:  threat.DefaultUserAgent,
		Timeout:    threat.DefaultTimeout,
		OutputDir:  threat.DefaultOutputDir,
		OutputFile: threat.DefaultOutputFile,
		HTTPAddr:   ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load applies, in order, the defaults, the YAML file at path (skipped when
// path is empty) and HASHFEED_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read config %s", path)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrapf(err, "could not parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.FeedURL = getEnv("FEED_URL", c.FeedURL)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.OutputFile = getEnv("OUTPUT_FILE", c.OutputFile)
	c.MetricsFile = getEnv("METRICS_FILE", c.MetricsFile)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if v := getEnv("TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sTIMEOUT", envPrefix)
		}
		c.Timeout = d
	}
	return nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return errors.New("feed_url is required")
	}
	if c.OutputFile == "" {
		return errors.New("output_file is required")
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// OutputPath is the full path of the normalized CSV.
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

func getEnv(k, def string) string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return v
	}
	return def
}
