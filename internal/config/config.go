package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Conversion
	StrictRefs        bool
	MaxTraversalSteps int

	// Annotation
	RichTextComments bool
	AnnotationAuthor string
	HighlightColor   string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PDFLOC_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		StrictRefs:        envBool("STRICT_REFS", false),
		MaxTraversalSteps: envInt("MAX_TRAVERSAL_STEPS", 100000),

		RichTextComments: envBool("RICH_TEXT_COMMENTS", false),
		AnnotationAuthor: os.Getenv("ANNOTATION_AUTHOR"),
		HighlightColor:   envOr("HIGHLIGHT_COLOR", "1 1 0"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxTraversalSteps <= 0 {
		cfg.MaxTraversalSteps = 100000
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PDFLOC_API_KEY is required")
	}
	if _, err := ParseColor(c.HighlightColor); err != nil {
		return fmt.Errorf("HIGHLIGHT_COLOR: %w", err)
	}
	return nil
}

// ParseColor parses three space-separated RGB components in [0, 1].
func ParseColor(s string) ([3]float64, error) {
	var c [3]float64
	if _, err := fmt.Sscanf(s, "%g %g %g", &c[0], &c[1], &c[2]); err != nil {
		return c, fmt.Errorf("color %q: %w", s, err)
	}
	for _, v := range c {
		if v < 0 || v > 1 {
			return c, fmt.Errorf("color %q: component %g out of [0, 1]", s, v)
		}
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
