package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Log      LogConfig      `mapstructure:"log"`
	S3       S3Config       `mapstructure:"s3"`
	Export   ExportConfig   `mapstructure:"export"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	Mode        string   `mapstructure:"mode"` // gin mode: debug, release or test
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AuthConfig limits how often a single client may hit the register/login endpoints.
type AuthConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
	RateBurst     int `mapstructure:"rate_burst"`
}

// StatsConfig controls how workout timestamps map to calendar days.
type StatsConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Stdout bool   `mapstructure:"stdout"`
	JSON   bool   `mapstructure:"json"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type ExportConfig struct {
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

// Enabled reports whether object storage is configured.
func (c S3Config) Enabled() bool {
	return c.BucketName != ""
}

// Location resolves the configured stats timezone.
func (c StatsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

var defaults = map[string]any{
	"server.address":       ":5000",
	"server.mode":          "release",
	"server.cors_origins":  []string{"*"},
	"storage.driver":       DriverMemory,
	"database.uri":         "mongodb://localhost:27017",
	"database.name":        "fitness_tracker",
	"jwt.secret":           "",
	"jwt.expiration":       "720h",
	"auth.rate_per_minute": 20,
	"auth.rate_burst":      5,
	"stats.timezone":       "UTC",
	"log.level":            "info",
	"log.file":             "",
	"log.stdout":           true,
	"log.json":             false,
	"s3.endpoint":          "",
	"s3.region":            "us-east-1",
	"s3.access_key_id":     "",
	"s3.secret_access_key": "",
	"s3.bucket_name":       "",
	"s3.use_ssl":           true,
	"export.url_expiry":    "15m",
}

// LoadConfig reads configuration from path/config.yaml and environment variables.
// Environment variables win; nested keys map with underscores (jwt.secret -> JWT_SECRET).
// A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	var config Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Every key needs a default so that Unmarshal sees env-only values.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, config.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("jwt.expiration must be positive")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverMongo:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverMongo && (c.Database.URI == "" || c.Database.Name == "") {
		return errors.New("database.uri and database.name are required for the mongo driver")
	}
	if _, err := c.Stats.Location(); err != nil {
		return fmt.Errorf("invalid stats.timezone: %w", err)
	}
	return nil
}
