package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           int
	DataDir        string
	TranscodedPath string
	FFmpegPath     string
	FFprobePath    string
	FFmpegEncoder  string
	DefaultQuality string
	LogLevel       string
	HLSEnabled     bool

	JobPollInterval time.Duration
	JobMaxRetries   int
	JobConcurrent   int
	ProbeTimeout    time.Duration

	StaleJobAge       time.Duration
	JobRetention      time.Duration
	CleanupInterval   time.Duration
	CleanupStartDelay time.Duration
	ShutdownTimeout   time.Duration
}

func Load() (*Config, error) {
	port, err := getInt("PORT", 8000)
	if err != nil {
		return nil, err
	}

	pollSeconds, err := getInt("JOB_POLL_INTERVAL", 5)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getInt("JOB_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	concurrent, err := getInt("JOB_CONCURRENT", 1)
	if err != nil {
		return nil, err
	}
	staleHours, err := getInt("STALE_JOB_HOURS", 24)
	if err != nil {
		return nil, err
	}
	retentionDays, err := getInt("JOB_RETENTION_DAYS", 7)
	if err != nil {
		return nil, err
	}
	cleanupMinutes, err := getInt("CLEANUP_INTERVAL_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	cleanupDelay, err := getInt("CLEANUP_START_DELAY_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	probeTimeout, err := getInt("PROBE_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getInt("SHUTDOWN_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	hlsEnabled, err := strconv.ParseBool(getEnv("HLS_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid HLS_ENABLED: %w", err)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"PORT", port},
		{"JOB_POLL_INTERVAL", pollSeconds},
		{"JOB_MAX_RETRIES", maxRetries},
		{"JOB_CONCURRENT", concurrent},
		{"STALE_JOB_HOURS", staleHours},
		{"JOB_RETENTION_DAYS", retentionDays},
		{"CLEANUP_INTERVAL_MINUTES", cleanupMinutes},
		{"PROBE_TIMEOUT_SECONDS", probeTimeout},
		{"SHUTDOWN_TIMEOUT_SECONDS", shutdownTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if cleanupDelay < 0 {
		return nil, fmt.Errorf("CLEANUP_START_DELAY_SECONDS must not be negative, got %d", cleanupDelay)
	}

	return &Config{
		Port:           port,
		DataDir:        getEnv("DATA_DIR", "/data"),
		TranscodedPath: getEnv("TRANSCODED_PATH", "/transcoded"),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:    getEnv("FFPROBE_PATH", "ffprobe"),
		FFmpegEncoder:  getEnv("FFMPEG_ENCODER", "libx264"),
		DefaultQuality: strings.ToLower(getEnv("DEFAULT_QUALITY", "1080p")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HLSEnabled:     hlsEnabled,

		JobPollInterval: time.Duration(pollSeconds) * time.Second,
		JobMaxRetries:   maxRetries,
		JobConcurrent:   concurrent,
		ProbeTimeout:    time.Duration(probeTimeout) * time.Second,

		StaleJobAge:       time.Duration(staleHours) * time.Hour,
		JobRetention:      time.Duration(retentionDays) * 24 * time.Hour,
		CleanupInterval:   time.Duration(cleanupMinutes) * time.Minute,
		CleanupStartDelay: time.Duration(cleanupDelay) * time.Second,
		ShutdownTimeout:   time.Duration(shutdownTimeout) * time.Second,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
