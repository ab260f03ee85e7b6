// SPDX-License-Identifier: MIT

// Package config loads the service configuration from a YAML file with
// environment variable overrides. Precedence: ENV > file > defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration. Every leaf is overridable by an
// environment variable named APP_<SECTION>_<KEY>.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Timeouts     TimeoutsConfig     `yaml:"timeouts"`
	Storage      StorageConfig      `yaml:"storage"`
	Downloads    DownloadsConfig    `yaml:"downloads"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Templates    TemplatesConfig    `yaml:"templates"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TimeoutsConfig struct {
	Metadata        int `yaml:"metadata"`         // seconds, per extractor attempt
	Download        int `yaml:"download"`         // seconds, whole download
	AudioConversion int `yaml:"audio_conversion"` // seconds
}

func (t TimeoutsConfig) MetadataDuration() time.Duration { return time.Duration(t.Metadata) * time.Second }
func (t TimeoutsConfig) DownloadDuration() time.Duration { return time.Duration(t.Download) * time.Second }

type StorageConfig struct {
	OutputDir        string `yaml:"output_dir"`
	CookieDir        string `yaml:"cookie_dir"`
	CleanupAge       int    `yaml:"cleanup_age"`       // hours
	CleanupThreshold int    `yaml:"cleanup_threshold"` // disk usage percent
	MaxFileSize      int64  `yaml:"max_file_size"`     // bytes
}

func (s StorageConfig) CleanupAgeDuration() time.Duration {
	return time.Duration(s.CleanupAge) * time.Hour
}

type DownloadsConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	QueueSize     int `yaml:"queue_size"`
	JobTTLHours   int `yaml:"job_ttl_hours"`
}

func (d DownloadsConfig) JobTTL() time.Duration { return time.Duration(d.JobTTLHours) * time.Hour }

type RateLimitingConfig struct {
	MetadataRPM   int `yaml:"metadata_rpm"`
	DownloadRPM   int `yaml:"download_rpm"`
	BurstCapacity int `yaml:"burst_capacity"`
}

type TemplatesConfig struct {
	DefaultOutput string `yaml:"default_output"`
}

// ProviderConfig is one provider binding.
type ProviderConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CookiePath    string `yaml:"cookie_path"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryBackoff  []int  `yaml:"retry_backoff"` // seconds between attempts
}

// ProvidersConfig lists the supported providers. Registration order is the
// struct order; dispatch iterates it.
type ProvidersConfig struct {
	YouTube ProviderConfig `yaml:"youtube"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	APIKeys            []string `yaml:"api_keys"`
	AllowDegradedStart bool     `yaml:"allow_degraded_start"`
}

type MonitoringConfig struct {
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Timeouts: TimeoutsConfig{
			Metadata:        10,
			Download:        300,
			AudioConversion: 60,
		},
		Storage: StorageConfig{
			OutputDir:        "/app/downloads",
			CookieDir:        "/app/cookies",
			CleanupAge:       24,
			CleanupThreshold: 80,
			MaxFileSize:      524288000, // 500 MiB
		},
		Downloads: DownloadsConfig{
			MaxConcurrent: 5,
			QueueSize:     100,
			JobTTLHours:   24,
		},
		RateLimiting: RateLimitingConfig{
			MetadataRPM:   100,
			DownloadRPM:   10,
			BurstCapacity: 20,
		},
		Templates: TemplatesConfig{DefaultOutput: "%(title)s-%(id)s.%(ext)s"},
		Providers: ProvidersConfig{
			YouTube: ProviderConfig{
				Enabled:       true,
				RetryAttempts: 3,
				RetryBackoff:  []int{2, 4, 8},
			},
		},
		Logging:    LoggingConfig{Level: "INFO", Format: "json"},
		Security:   SecurityConfig{},
		Monitoring: MonitoringConfig{MetricsEnabled: true},
	}
}

// Validate checks ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Storage.CleanupThreshold < 0 || c.Storage.CleanupThreshold > 100 {
		return fmt.Errorf("storage.cleanup_threshold must be 0-100, got %d", c.Storage.CleanupThreshold)
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if c.Downloads.MaxConcurrent < 1 {
		return fmt.Errorf("downloads.max_concurrent must be positive, got %d", c.Downloads.MaxConcurrent)
	}
	if c.Downloads.QueueSize < 1 {
		return fmt.Errorf("downloads.queue_size must be positive, got %d", c.Downloads.QueueSize)
	}
	if c.RateLimiting.MetadataRPM < 1 || c.RateLimiting.DownloadRPM < 1 {
		return fmt.Errorf("rate_limiting rpm values must be positive")
	}
	if c.RateLimiting.BurstCapacity < 1 {
		return fmt.Errorf("rate_limiting.burst_capacity must be positive, got %d", c.RateLimiting.BurstCapacity)
	}
	if c.Providers.YouTube.RetryAttempts < 1 {
		return fmt.Errorf("providers.youtube.retry_attempts must be positive")
	}
	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL",
		"debug", "info", "warning", "error", "critical", "":
	default:
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}
	return nil
}
