package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the capture client.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	ServiceURL       string
	ServiceNamespace string
	UserID           string

	CaptureRateHz float64
	SendRateHz    float64
	FrameWidth    int
	FrameHeight   int
	JPEGQuality   int

	ReconnectAttempts int
	ReconnectDelay    time.Duration

	AudioPlayer string
	AudioGap    time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8090"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "signbridge"),
		ServiceURL:       envOrDefault("SIGNBRIDGE_SERVICE_URL", "ws://localhost:8000"),
		ServiceNamespace: envOrDefault("SIGNBRIDGE_SERVICE_NAMESPACE", "cv"),
		UserID:           stringsTrimSpace("SIGNBRIDGE_USER_ID"),
		// 24Hz capture keeps the preview smooth; 10Hz is what the
		// recognition model actually consumes.
		CaptureRateHz:     24,
		SendRateHz:        10,
		FrameWidth:        640,
		FrameHeight:       480,
		JPEGQuality:       70,
		ReconnectAttempts: 3,
		ReconnectDelay:    2 * time.Second,
		AudioPlayer:       stringsTrimSpace("SIGNBRIDGE_AUDIO_PLAYER"),
		AudioGap:          150 * time.Millisecond,
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:   15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureRateHz, err = floatFromEnv("SIGNBRIDGE_CAPTURE_RATE_HZ", cfg.CaptureRateHz)
	if err != nil {
		return Config{}, err
	}
	cfg.SendRateHz, err = floatFromEnv("SIGNBRIDGE_SEND_RATE_HZ", cfg.SendRateHz)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameWidth, err = intFromEnv("SIGNBRIDGE_FRAME_WIDTH", cfg.FrameWidth)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameHeight, err = intFromEnv("SIGNBRIDGE_FRAME_HEIGHT", cfg.FrameHeight)
	if err != nil {
		return Config{}, err
	}
	cfg.JPEGQuality, err = intFromEnv("SIGNBRIDGE_JPEG_QUALITY", cfg.JPEGQuality)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectAttempts, err = intFromEnv("SIGNBRIDGE_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectDelay, err = durationFromEnv("SIGNBRIDGE_RECONNECT_DELAY", cfg.ReconnectDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioGap, err = durationFromEnv("SIGNBRIDGE_AUDIO_GAP", cfg.AudioGap)
	if err != nil {
		return Config{}, err
	}

	if !strings.HasPrefix(cfg.ServiceURL, "ws://") && !strings.HasPrefix(cfg.ServiceURL, "wss://") {
		return Config{}, fmt.Errorf("SIGNBRIDGE_SERVICE_URL must start with ws:// or wss://")
	}
	if cfg.CaptureRateHz <= 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_CAPTURE_RATE_HZ must be positive")
	}
	if cfg.SendRateHz <= 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_SEND_RATE_HZ must be positive")
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_FRAME_WIDTH and SIGNBRIDGE_FRAME_HEIGHT must be positive")
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_JPEG_QUALITY must be between 1 and 100")
	}
	if cfg.ReconnectAttempts <= 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_RECONNECT_ATTEMPTS must be positive")
	}
	if cfg.ReconnectDelay < 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_RECONNECT_DELAY must be >= 0")
	}
	if cfg.AudioGap < 0 {
		return Config{}, fmt.Errorf("SIGNBRIDGE_AUDIO_GAP must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
