// internal/telemetry/telemetry.go
package telemetry

import (
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
)

// Tags annotate a metric with extra dimensions, such as the block type.
type Tags map[string]string

// Sink receives fire-and-forget counters and histograms. Implementations
// must be safe for concurrent use. A sink failure must never affect the
// operation that emitted the metric; wrap sinks with Guard to enforce this.
type Sink interface {
	Increment(name string, tags Tags)
	Histogram(name string, value float64, tags Tags)
}

// SampleRate is the fixed fraction of events a Sampled sink forwards.
const SampleRate = 0.1

// LogSink writes metrics through slog at debug level. It is the default
// sink for deployments without a metrics backend.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Increment(name string, tags Tags) {
	s.logger.Debug("metric.count", "name", name, "tags", formatTags(tags))
}

func (s *LogSink) Histogram(name string, value float64, tags Tags) {
	s.logger.Debug("metric.histogram", "name", name, "value", value, "tags", formatTags(tags))
}

func formatTags(tags Tags) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) Increment(string, Tags)          {}
func (NopSink) Histogram(string, float64, Tags) {}

// Sampled forwards a fixed fraction of events to the wrapped sink.
type Sampled struct {
	next Sink
	rate float64
}

func NewSampled(next Sink) *Sampled {
	return &Sampled{next: next, rate: SampleRate}
}

func (s *Sampled) Increment(name string, tags Tags) {
	if rand.Float64() < s.rate {
		s.next.Increment(name, tags)
	}
}

func (s *Sampled) Histogram(name string, value float64, tags Tags) {
	if rand.Float64() < s.rate {
		s.next.Histogram(name, value, tags)
	}
}

// Guard wraps a sink and swallows panics from it, so instrumentation can
// never take down the operation being measured.
type Guard struct {
	next Sink
}

func NewGuard(next Sink) *Guard {
	return &Guard{next: next}
}

func (g *Guard) Increment(name string, tags Tags) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("metric sink panicked", "name", name, "panic", r)
		}
	}()
	g.next.Increment(name, tags)
}

func (g *Guard) Histogram(name string, value float64, tags Tags) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("metric sink panicked", "name", name, "panic", r)
		}
	}()
	g.next.Histogram(name, value, tags)
}
