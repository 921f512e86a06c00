// Package progress implements the per-session push channel registry used
// for real-time step reporting during a turn.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// Channel is the write side of one session's push channel. Implementations
// encode and deliver a single event; a returned error means the transport is
// dead and the channel gets unregistered.
type Channel interface {
	Send(event models.ProgressEvent) error
}

// DefaultHeartbeatInterval is how often a keepalive event is written to each
// registered channel.
const DefaultHeartbeatInterval = 25 * time.Second

// registration pairs a channel with the stop signal for its heartbeat.
type registration struct {
	ch   Channel
	stop chan struct{}
}

// Hub is the injected session-manager service mapping session ids to open
// push channels. Delivery is at-most-once: events emitted for a session with
// no registered channel are silently discarded, and nothing is buffered or
// replayed.
//
// Register racing Unregister for the same session id resolves last-writer-
// wins. At most one live channel per session is expected in practice, not
// enforced.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*registration

	heartbeat time.Duration
	logger    *slog.Logger

	metricsMu sync.Mutex
	metrics   HubMetrics
}

// HubMetrics tracks delivery counters.
type HubMetrics struct {
	Emitted       int64
	Discarded     int64
	WriteFailures int64
}

// NewHub creates a hub. A non-positive heartbeat interval gets the default;
// a nil logger gets slog.Default().
func NewHub(heartbeat time.Duration, logger *slog.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		channels:  make(map[string]*registration),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Register binds a channel to a session id, replacing any existing channel
// for the session (its heartbeat stops). A connection event is written
// immediately; if that first write fails the channel is not registered.
func (h *Hub) Register(sessionID string, ch Channel) error {
	ev := models.ProgressEvent{
		SessionID: sessionID,
		Type:      models.ProgressConnection,
		Timestamp: time.Now(),
	}
	if err := ch.Send(ev); err != nil {
		h.count(func(m *HubMetrics) { m.WriteFailures++ })
		return err
	}

	reg := &registration{ch: ch, stop: make(chan struct{})}

	h.mu.Lock()
	if old, ok := h.channels[sessionID]; ok {
		close(old.stop)
	}
	h.channels[sessionID] = reg
	h.mu.Unlock()

	go h.heartbeatLoop(sessionID, reg)
	return nil
}

// Unregister removes the session's channel and stops its heartbeat. Called
// on connection close or abort signal; unknown sessions are a no-op.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if reg, ok := h.channels[sessionID]; ok {
		close(reg.stop)
		delete(h.channels, sessionID)
	}
}

// Remove unregisters the session's channel only if it is still ch. Callers
// tearing down a specific connection use this instead of Unregister so a
// stale teardown cannot clobber a newer registration for the same session.
func (h *Hub) Remove(sessionID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.channels[sessionID]; ok && current.ch == ch {
		close(current.stop)
		delete(h.channels, sessionID)
	}
}

// Emit writes an event to the session's channel, if one is registered. No
// channel means the event is discarded; a write failure unregisters the
// channel immediately. Never panics, never blocks on an absent channel.
func (h *Hub) Emit(sessionID string, event models.ProgressEvent) {
	h.mu.RLock()
	reg, ok := h.channels[sessionID]
	h.mu.RUnlock()

	if !ok {
		h.count(func(m *HubMetrics) { m.Discarded++ })
		return
	}

	if err := reg.ch.Send(event); err != nil {
		h.count(func(m *HubMetrics) { m.WriteFailures++ })
		h.logger.Debug("progress write failed, unregistering channel",
			"session_id", sessionID,
			"error", err,
		)
		h.remove(sessionID, reg)
		return
	}
	h.count(func(m *HubMetrics) { m.Emitted++ })
}

// Connected reports whether the session currently has a live channel.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[sessionID]
	return ok
}

// Metrics returns a snapshot of delivery counters.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.metrics
}

// heartbeatLoop writes keepalive events on a fixed interval until the
// registration is replaced or removed. A failed write unregisters the
// channel.
func (h *Hub) heartbeatLoop(sessionID string, reg *registration) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-reg.stop:
			return
		case <-ticker.C:
			ev := models.ProgressEvent{
				SessionID: sessionID,
				Type:      models.ProgressHeartbeat,
				Timestamp: time.Now(),
			}
			if err := reg.ch.Send(ev); err != nil {
				h.count(func(m *HubMetrics) { m.WriteFailures++ })
				h.remove(sessionID, reg)
				return
			}
		}
	}
}

// remove unregisters only if the session still maps to this registration,
// so a racing re-register is not clobbered.
func (h *Hub) remove(sessionID string, reg *registration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.channels[sessionID]; ok && current == reg {
		close(reg.stop)
		delete(h.channels, sessionID)
	}
}

func (h *Hub) count(update func(*HubMetrics)) {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	update(&h.metrics)
}
