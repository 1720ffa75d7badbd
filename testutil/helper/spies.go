package helper

import (
	"context"
	"sync"
	"time"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

// LoggerSpy is a Logger implementation that captures log calls for testing.
type LoggerSpy struct {
	mu      sync.Mutex
	entries []SpyLogEntry
}

// SpyLogEntry represents a captured log call.
type SpyLogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{entries: make([]SpyLogEntry, 0)}
}

func (s *LoggerSpy) Debug(msg string, args ...any) { s.record("debug", msg, args) }
func (s *LoggerSpy) Info(msg string, args ...any)  { s.record("info", msg, args) }
func (s *LoggerSpy) Warn(msg string, args ...any)  { s.record("warn", msg, args) }
func (s *LoggerSpy) Error(msg string, args ...any) { s.record("error", msg, args) }

func (s *LoggerSpy) record(level string, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, SpyLogEntry{Level: level, Msg: msg, Args: args})
}

// Entries returns a copy of all captured log calls.
func (s *LoggerSpy) Entries() []SpyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyLogEntry, len(s.entries))
	copy(out, s.entries)

	return out
}

// CountWithLevel returns how many captured entries have the given level.
func (s *LoggerSpy) CountWithLevel(level string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, entry := range s.entries {
		if entry.Level == level {
			count++
		}
	}

	return count
}

// MetricsCollectorSpy is a MetricsCollector implementation that captures
// metrics calls for testing.
type MetricsCollectorSpy struct {
	mu              sync.Mutex
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]SpyDurationRecord, 0),
		counterRecords:  make([]SpyCounterRecord, 0),
	}
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   copyLabels(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric: metric,
		Labels: copyLabels(labels),
	})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(_ string, _ float64, _ map[string]string) {}

// DurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) DurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyDurationRecord, len(s.durationRecords))
	copy(out, s.durationRecords)

	return out
}

// CounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) CounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyCounterRecord, len(s.counterRecords))
	copy(out, s.counterRecords)

	return out
}

// CountersWithMetric returns the captured counter records with the given
// metric name.
func (s *MetricsCollectorSpy) CountersWithMetric(metric string) []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyCounterRecord, 0)
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			out = append(out, record)
		}
	}

	return out
}

// SpySpanContext implements the SpanContext interface for testing.
type SpySpanContext struct {
	mu         sync.Mutex
	Name       string
	status     string
	attributes map[string]string
}

// SetStatus implements the SpanContext interface.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

// AddAttribute implements the SpanContext interface.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}

	c.attributes[key] = value
}

// Status returns the span status for assertions.
func (c *SpySpanContext) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Attributes returns a copy of the span attributes for assertions.
func (c *SpySpanContext) Attributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return copyLabels(c.attributes)
}

// TracingCollectorSpy is a TracingCollector implementation that captures
// spans for testing.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpySpanContext
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spans: make([]*SpySpanContext, 0)}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, ledger.SpanContext) {

	span := &SpySpanContext{Name: name, attributes: copyLabels(attrs)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx ledger.SpanContext, status string, attrs map[string]string) {
	spanCtx.SetStatus(status)

	for key, value := range attrs {
		spanCtx.AddAttribute(key, value)
	}
}

// Spans returns a copy of all captured spans.
func (s *TracingCollectorSpy) Spans() []*SpySpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*SpySpanContext, len(s.spans))
	copy(out, s.spans)

	return out
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}
