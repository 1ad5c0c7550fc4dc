package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "taskline/internal/session"

// Counters records executed commands. Instruments come from the global
// MeterProvider, which is a no-op unless the host installs one.
type Counters struct {
	commands metric.Int64Counter
	failures metric.Int64Counter
}

// NewCounters creates the command counters on the global meter.
func NewCounters() (*Counters, error) {
	return NewCountersWithMeter(otel.Meter(instrumentationName))
}

// NewCountersWithMeter creates the command counters on m.
func NewCountersWithMeter(m metric.Meter) (*Counters, error) {
	commands, err := m.Int64Counter("taskline.commands",
		metric.WithDescription("Commands handled by a session"),
		metric.WithUnit("{command}"))
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("taskline.command_errors",
		metric.WithDescription("Commands that produced an error response"),
		metric.WithUnit("{command}"))
	if err != nil {
		return nil, err
	}
	return &Counters{commands: commands, failures: failures}, nil
}

// Record counts one handled command of the given kind.
func (c *Counters) Record(ctx context.Context, kind string, failed bool) {
	if c == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	c.commands.Add(ctx, 1, attrs)
	if failed {
		c.failures.Add(ctx, 1, attrs)
	}
}
