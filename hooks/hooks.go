// Package hooks provides production-ready Hook, Logger, and metrics
// implementations for the driver.
package hooks

import (
	"log/slog"
	"sync"

	"github.com/lateen-io/lateen/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs every codec entry point the driver runs.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeOp(codecName, op string) {
	h.logger.Debug("driver.op.start", "codec", codecName, "op", op)
}

func (h *LoggingHook) AfterOp(codecName, op string, err error) {
	if err != nil {
		h.logger.Debug("driver.op.error", "codec", codecName, "op", op, "error", err.Error())
		return
	}
	h.logger.Debug("driver.op.done", "codec", codecName, "op", op)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates driver metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	opDurationsMs map[string]int64 // cumulative ms per codec/op
	opCalls       map[string]int64
	opErrors      map[string]int64
	frameBytes    map[string]int64 // cumulative pixel bytes per codec
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		opDurationsMs: make(map[string]int64),
		opCalls:       make(map[string]int64),
		opErrors:      make(map[string]int64),
		frameBytes:    make(map[string]int64),
	}
}

func opKey(codecName, op string) string { return codecName + "." + op }

func (m *InMemoryMetrics) RecordOpTime(codecName, op string, d interface{ Seconds() float64 }) {
	key := opKey(codecName, op)
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.opDurationsMs[key] += ms
	m.opCalls[key]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordFrame(codecName string, bytes int64) {
	m.mu.Lock()
	m.frameBytes[codecName] += bytes
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(codecName, op string) {
	m.mu.Lock()
	m.opErrors[opKey(codecName, op)]++
	m.mu.Unlock()
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	OpDurationsMs map[string]int64
	OpCalls       map[string]int64
	OpErrors      map[string]int64
	FrameBytes    map[string]int64
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		OpDurationsMs: make(map[string]int64, len(m.opDurationsMs)),
		OpCalls:       make(map[string]int64, len(m.opCalls)),
		OpErrors:      make(map[string]int64, len(m.opErrors)),
		FrameBytes:    make(map[string]int64, len(m.frameBytes)),
	}
	for k, v := range m.opDurationsMs {
		snap.OpDurationsMs[k] = v
	}
	for k, v := range m.opCalls {
		snap.OpCalls[k] = v
	}
	for k, v := range m.opErrors {
		snap.OpErrors[k] = v
	}
	for k, v := range m.frameBytes {
		snap.FrameBytes[k] = v
	}
	return snap
}
