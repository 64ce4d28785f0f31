package extract

import (
	"context"
	"time"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/resilience"
)

// Retrying wraps an Extractor with a bounded linear-backoff retry budget.
// Every failure is considered retryable: recognition tools fail transiently
// under resource contention, and a persistently broken input is caught by
// the attempt cap rather than an error-class check.
type Retrying struct {
	inner Extractor
	cfg   resilience.RetryConfig
}

// NewRetrying creates a Retrying extractor from config.
func NewRetrying(inner Extractor, cfg config.ExtractConfig) *Retrying {
	return &Retrying{
		inner: inner,
		cfg: resilience.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Duration(cfg.BackoffMillis) * time.Millisecond,
			OnRetry:     resilience.RetryLogger("extract", "process file"),
		},
	}
}

// Extract attempts extraction up to the configured budget; the terminal
// error carries the last attempt's failure.
func (r *Retrying) Extract(ctx context.Context, path string) (*model.ExtractionResult, error) {
	return resilience.DoVal(ctx, r.cfg, func(ctx context.Context) (*model.ExtractionResult, error) {
		return r.inner.Extract(ctx, path)
	})
}
