// Package config defines service configuration and how it is loaded.
package config

import (
	"runtime"
	"sort"
	"time"

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/similarity"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file. Empty keeps everything in process memory.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the ingestion job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of normalization workers.
	WorkerCount int `koanf:"worker_count"`

	// RedisAddr enables the shared composite cache. Empty uses an in-process cache.
	RedisAddr string `koanf:"redis_addr"`

	// CacheTTLSeconds bounds how long a cached composite survives; zero never expires.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// SnapshotDir holds <date>/<source>.json batches for the file fetcher.
	SnapshotDir string `koanf:"snapshot_dir"`

	// RefreshSchedule is a standard cron spec for the fetch-ingest-backfill job.
	// Empty disables the scheduler.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// BreakerMaxRequests and BreakerTimeoutSeconds tune the per-source breaker.
	BreakerMaxRequests    int `koanf:"breaker_max_requests"`
	BreakerTimeoutSeconds int `koanf:"breaker_timeout_seconds"`

	// SimilarityMinScore drops candidates scoring below it.
	SimilarityMinScore int `koanf:"similarity_min_score"`

	// SimilarityCeiling is the rank normalization ceiling. Zero uses the
	// number of ranked teams.
	SimilarityCeiling int `koanf:"similarity_ceiling"`

	// SignedFieldSpan is the ceiling multiple used for offDefDiff.
	SignedFieldSpan float64 `koanf:"signed_field_span"`

	// Categories maps a category name to field weights. Empty uses the
	// built-in overall, offense and defense categories.
	Categories map[string]map[string]float64 `koanf:"categories"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// New returns a Config holding defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		QueueSize:             64,
		WorkerCount:           runtime.NumCPU(),
		CacheTTLSeconds:       300,
		SnapshotDir:           "snapshots",
		BreakerMaxRequests:    1,
		BreakerTimeoutSeconds: 60,
		SimilarityMinScore:    similarity.DefaultMinScore,
		SignedFieldSpan:       similarity.DefaultSignedFieldSpan,
		TracingSampleRate:     1,
	}
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// BreakerTimeout returns BreakerTimeoutSeconds as a duration.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

// SimilarityCategories returns the configured categories ordered by name, with
// fields ordered by name, or the built-in set when none are configured.
func (c *Config) SimilarityCategories() []model.Category {
	if len(c.Categories) == 0 {
		return similarity.DefaultCategories()
	}
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.Category, 0, len(names))
	for _, name := range names {
		fields := make([]string, 0, len(c.Categories[name]))
		for f := range c.Categories[name] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		cat := model.Category{Name: name}
		for _, f := range fields {
			cat.Weights = append(cat.Weights, model.FieldWeight{Field: f, Weight: c.Categories[name][f]})
		}
		out = append(out, cat)
	}
	return out
}
