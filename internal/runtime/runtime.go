package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vinodismyname/sidpol/config"
)

// Limits captures the concurrency and dataset guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxCachedDatasets     int

	// Payload and row bounds
	MaxPayloadBytes int
	DefaultPageSize int
	MaxPageSize     int
	MaxQueryRows    int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxCachedDatasets int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxCachedDatasets <= 0 {
		maxCachedDatasets = config.DefaultMaxCachedDatasets
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxCachedDatasets:     maxCachedDatasets,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		DefaultPageSize:       config.DefaultPageSize,
		MaxPageSize:           config.DefaultMaxPageSize,
		MaxQueryRows:          config.DefaultMaxQueryRows,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// FromConfig derives Limits from the layered configuration.
func FromConfig(cfg config.LimitsConfig) Limits {
	l := NewLimits(cfg.MaxConcurrentRequests, cfg.MaxCachedDatasets)
	if cfg.OperationTimeout > 0 {
		l.OperationTimeout = cfg.OperationTimeout
	}
	if cfg.MaxQueryRows > 0 {
		l.MaxQueryRows = cfg.MaxQueryRows
	}
	return l
}

// ClampPageSize bounds a requested page size to the configured window.
func (l Limits) ClampPageSize(n int) int {
	if n <= 0 {
		return l.DefaultPageSize
	}
	if n > l.MaxPageSize {
		return l.MaxPageSize
	}
	return n
}

// Controller coordinates runtime semaphores for request and dataset guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	datasetSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		datasetSemaphore: semaphore.NewWeighted(int64(limits.MaxCachedDatasets)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireDataset reserves a cached dataset slot.
func (c *Controller) AcquireDataset(ctx context.Context) error {
	return c.datasetSemaphore.Acquire(ctx, 1)
}

// ReleaseDataset frees a cached dataset slot.
func (c *Controller) ReleaseDataset() {
	c.datasetSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
