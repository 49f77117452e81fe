package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FINDASH_HTTP_PORT.
const EnvPrefix = "FINDASH"

// Config holds application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GCP       GCPConfig       `mapstructure:"gcp"`
	Envelope  EnvelopeConfig  `mapstructure:"envelope"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Data      DataConfig      `mapstructure:"data"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// GCPConfig points the collaborator adapters at BigQuery and GCS.
type GCPConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Dataset      string `mapstructure:"dataset"`
	ExportBucket string `mapstructure:"export_bucket"`
}

// EnvelopeConfig tunes the allocation fan-out.
type EnvelopeConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	ExactSum    bool `mapstructure:"exact_sum"`
}

// AnalyticsConfig sizes the dashboard aggregates.
type AnalyticsConfig struct {
	Months        int `mapstructure:"months"`
	TopCategories int `mapstructure:"top_categories"`
}

// SyncConfig sizes the sync event inbox.
type SyncConfig struct {
	Buffer int `mapstructure:"buffer"`
}

// DataConfig names local or gs:// JSON fixtures used when BigQuery is not
// configured.
type DataConfig struct {
	RawFile       string `mapstructure:"raw_file"`
	EnvelopesFile string `mapstructure:"envelopes_file"`
}

// UseBigQuery reports whether the BigQuery adapters should be wired.
func (c Config) UseBigQuery() bool {
	return c.GCP.ProjectID != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("http.port", "8080")
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.dataset", "finance")
	v.SetDefault("gcp.export_bucket", "")
	v.SetDefault("envelope.concurrency", 8)
	v.SetDefault("envelope.exact_sum", false)
	v.SetDefault("analytics.months", 6)
	v.SetDefault("analytics.top_categories", 6)
	v.SetDefault("sync.buffer", 64)
	v.SetDefault("data.raw_file", "")
	v.SetDefault("data.envelopes_file", "")
}

// Load reads configuration from an optional file and the environment.
// A .env file in the working directory is loaded first when present; real
// environment variables always win over it. path may be empty, in which case
// FINDASH_CONFIG is consulted and then ./config.{toml,yaml,json}.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Envelope.Concurrency < 1 {
		return fmt.Errorf("envelope.concurrency must be >= 1, got %d", c.Envelope.Concurrency)
	}
	if c.Analytics.Months < 2 {
		return fmt.Errorf("analytics.months must be >= 2, got %d", c.Analytics.Months)
	}
	if c.Analytics.TopCategories < 1 {
		return fmt.Errorf("analytics.top_categories must be >= 1, got %d", c.Analytics.TopCategories)
	}
	if c.Sync.Buffer < 0 {
		return fmt.Errorf("sync.buffer must be >= 0, got %d", c.Sync.Buffer)
	}
	return nil
}
