// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
)

// Env prefix for every override: APP_<SECTION>_<KEY>.
const envPrefix = "APP_"

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(name string, dst *int64) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*dst = true
		case "false", "0", "no":
			*dst = false
		}
	}
}

func envStringList(name string, dst *[]string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func envIntList(name string, dst *[]int) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		var out []int
		for _, part := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, n)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

// applyEnv overlays every configuration leaf from the environment.
func applyEnv(c *Config) {
	envString("SERVER_HOST", &c.Server.Host)
	envInt("SERVER_PORT", &c.Server.Port)

	envInt("TIMEOUTS_METADATA", &c.Timeouts.Metadata)
	envInt("TIMEOUTS_DOWNLOAD", &c.Timeouts.Download)
	envInt("TIMEOUTS_AUDIO_CONVERSION", &c.Timeouts.AudioConversion)

	envString("STORAGE_OUTPUT_DIR", &c.Storage.OutputDir)
	envString("STORAGE_COOKIE_DIR", &c.Storage.CookieDir)
	envInt("STORAGE_CLEANUP_AGE", &c.Storage.CleanupAge)
	envInt("STORAGE_CLEANUP_THRESHOLD", &c.Storage.CleanupThreshold)
	envInt64("STORAGE_MAX_FILE_SIZE", &c.Storage.MaxFileSize)

	envInt("DOWNLOADS_MAX_CONCURRENT", &c.Downloads.MaxConcurrent)
	envInt("DOWNLOADS_QUEUE_SIZE", &c.Downloads.QueueSize)
	envInt("DOWNLOADS_JOB_TTL_HOURS", &c.Downloads.JobTTLHours)

	envInt("RATE_LIMITING_METADATA_RPM", &c.RateLimiting.MetadataRPM)
	envInt("RATE_LIMITING_DOWNLOAD_RPM", &c.RateLimiting.DownloadRPM)
	envInt("RATE_LIMITING_BURST_CAPACITY", &c.RateLimiting.BurstCapacity)

	envString("TEMPLATES_DEFAULT_OUTPUT", &c.Templates.DefaultOutput)

	envBool("YOUTUBE_ENABLED", &c.Providers.YouTube.Enabled)
	envString("YOUTUBE_COOKIE_PATH", &c.Providers.YouTube.CookiePath)
	envInt("YOUTUBE_RETRY_ATTEMPTS", &c.Providers.YouTube.RetryAttempts)
	envIntList("YOUTUBE_RETRY_BACKOFF", &c.Providers.YouTube.RetryBackoff)

	envString("LOGGING_LEVEL", &c.Logging.Level)
	envString("LOGGING_FORMAT", &c.Logging.Format)

	envStringList("SECURITY_API_KEYS", &c.Security.APIKeys)
	envBool("SECURITY_ALLOW_DEGRADED_START", &c.Security.AllowDegradedStart)

	envBool("MONITORING_METRICS_ENABLED", &c.Monitoring.MetricsEnabled)
}
