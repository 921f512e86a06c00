package providers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/pkg/models"
)

// Selector implements agent.LLMProvider over a primary and an optional
// fallback backend. The primary is tried first; when it fails with an error
// that warrants fallback (auth, billing, model unavailable, server error)
// and a fallback is configured, the same request is retried there. With no
// provider configured at all, every call fails immediately with
// ErrNoProviderConfigured rather than silently doing nothing.
type Selector struct {
	primary  agent.LLMProvider
	fallback agent.LLMProvider
	logger   *slog.Logger

	mu      sync.Mutex
	metrics SelectorMetrics
}

// SelectorMetrics tracks provider selection statistics.
type SelectorMetrics struct {
	PrimaryCalls    int64
	PrimaryFailures int64
	FallbackCalls   int64
	FallbackSuccess int64
}

// NewSelector creates a selector. Either provider may be nil; a nil primary
// with a non-nil fallback promotes the fallback to primary.
func NewSelector(primary, fallback agent.LLMProvider, logger *slog.Logger) *Selector {
	if primary == nil {
		primary = fallback
		fallback = nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Name returns the active primary's name, or "none".
func (s *Selector) Name() string {
	if s.primary == nil {
		return "none"
	}
	return s.primary.Name()
}

// SupportsTools reports whether the active primary supports tool calling.
func (s *Selector) SupportsTools() bool {
	return s.primary != nil && s.primary.SupportsTools()
}

// Configured reports whether at least one backend is available.
func (s *Selector) Configured() bool {
	return s.primary != nil
}

// Complete tries the primary provider, falling back to the secondary when
// the failure reason warrants it. The fallback's error wins if both fail.
func (s *Selector) Complete(ctx context.Context, req *agent.CompletionRequest) (*models.LLMResponse, error) {
	if s.primary == nil {
		return nil, ErrNoProviderConfigured
	}

	s.count(func(m *SelectorMetrics) { m.PrimaryCalls++ })
	resp, err := s.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	s.count(func(m *SelectorMetrics) { m.PrimaryFailures++ })

	if s.fallback == nil || !ShouldFallback(err) || ctx.Err() != nil {
		return nil, err
	}

	s.logger.Warn("primary provider failed, trying fallback",
		"primary", s.primary.Name(),
		"fallback", s.fallback.Name(),
		"error", err,
	)

	s.count(func(m *SelectorMetrics) { m.FallbackCalls++ })
	resp, fbErr := s.fallback.Complete(ctx, req)
	if fbErr != nil {
		return nil, fbErr
	}
	s.count(func(m *SelectorMetrics) { m.FallbackSuccess++ })
	return resp, nil
}

// Metrics returns a snapshot of selection counters.
func (s *Selector) Metrics() SelectorMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Selector) count(update func(*SelectorMetrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.metrics)
}
