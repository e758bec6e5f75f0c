// Package config provides configuration management for youcube using Viper.
// It supports configuration from files, .env files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// envDisableOpenCL is the bare presence flag honoured alongside the prefixed key.
const envDisableOpenCL = "DISABLE_OPENCL"

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultTempMaxAge      = 6 * time.Hour
	defaultMaxDimension    = 992
	defaultPlayerClient    = "web"
	defaultSearch          = "auto"
	defaultCleanupSchedule = "@hourly"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "YOUCUBE"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Transcode TranscodeConfig `mapstructure:"transcode" yaml:"transcode"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup" yaml:"cleanup"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"` // 0 = none; /api/v1/resolve can run for minutes
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StorageConfig holds the artifact cache and scratch space locations.
type StorageConfig struct {
	DataDir    string        `mapstructure:"data_dir" yaml:"data_dir"`
	TempDir    string        `mapstructure:"temp_dir" yaml:"temp_dir"` // empty = os.TempDir()
	TempMaxAge time.Duration `mapstructure:"temp_max_age" yaml:"temp_max_age"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// ExtractorConfig holds yt-dlp settings. CookieFile and JSRuntimes are handed to
// yt-dlp as-is.
type ExtractorConfig struct {
	BinaryPath    string   `mapstructure:"ytdlp_path" yaml:"ytdlp_path"` // empty = auto-detect
	CookieFile    string   `mapstructure:"cookie_file" yaml:"cookie_file"`
	JSRuntimes    []string `mapstructure:"js_runtimes" yaml:"js_runtimes"`
	PlayerClient  string   `mapstructure:"player_client" yaml:"player_client"`
	DefaultSearch string   `mapstructure:"default_search" yaml:"default_search"`
}

// TranscodeConfig holds the converter binaries and output limits.
type TranscodeConfig struct {
	FFmpegPath    string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`     // empty = auto-detect
	SanjuuniPath  string `mapstructure:"sanjuuni_path" yaml:"sanjuuni_path"` // empty = auto-detect
	DisableOpenCL bool   `mapstructure:"disable_opencl" yaml:"disable_opencl"`
	MaxWidth      int    `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight     int    `mapstructure:"max_height" yaml:"max_height"`
}

// CleanupConfig controls removal of orphaned scratch directories.
type CleanupConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"` // cron expression or descriptor
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Variables in ./.env (when present) are exported before the environment is read.
// Environment variables are prefixed with YOUCUBE_ and use underscores for nesting.
// Example: YOUCUBE_SERVER_PORT=8080.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/youcube")
		v.AddConfigPath("$HOME/.youcube")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare variable names kept for existing deployments.
	_ = v.BindEnv("transcode.ffmpeg_path", EnvPrefix+"_TRANSCODE_FFMPEG_PATH", "FFMPEG_PATH")
	_ = v.BindEnv("transcode.sanjuuni_path", EnvPrefix+"_TRANSCODE_SANJUUNI_PATH", "SANJUUNI_PATH")
	_ = v.BindEnv("transcode.disable_opencl", EnvPrefix+"_TRANSCODE_DISABLE_OPENCL")
	// The bare variable is a presence flag: any non-empty value disables OpenCL.
	if os.Getenv(envDisableOpenCL) != "" {
		v.Set("transcode.disable_opencl", true)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadEnvFiles exports variables from the given files, or ./.env when none are
// given. Missing files are skipped; variables already set are not overridden.
func loadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.temp_dir", "")
	v.SetDefault("storage.temp_max_age", defaultTempMaxAge)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Extractor defaults
	v.SetDefault("extractor.ytdlp_path", "")
	v.SetDefault("extractor.cookie_file", "")
	v.SetDefault("extractor.js_runtimes", []string{})
	v.SetDefault("extractor.player_client", defaultPlayerClient)
	v.SetDefault("extractor.default_search", defaultSearch)

	// Transcode defaults
	v.SetDefault("transcode.ffmpeg_path", "")
	v.SetDefault("transcode.sanjuuni_path", "")
	v.SetDefault("transcode.disable_opencl", false)
	v.SetDefault("transcode.max_width", defaultMaxDimension)
	v.SetDefault("transcode.max_height", defaultMaxDimension)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.schedule", defaultCleanupSchedule)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.TempMaxAge < 0 {
		return fmt.Errorf("storage.temp_max_age must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Transcode.MaxWidth < 8 || c.Transcode.MaxHeight < 8 {
		return fmt.Errorf("transcode.max_width and transcode.max_height must be at least 8")
	}

	if c.Cleanup.Enabled {
		if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
			return fmt.Errorf("cleanup.schedule is invalid: %w", err)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScratchRoot returns the directory under which per-request scratch space is created.
func (c *StorageConfig) ScratchRoot() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}
