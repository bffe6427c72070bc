package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for agentfs spans and metrics.
var (
	AttrRunID      = attribute.Key("agentfs.run.id")
	AttrBranchID   = attribute.Key("agentfs.branch.id")
	AttrSessionID  = attribute.Key("agentfs.session.id")
	AttrToolName   = attribute.Key("agentfs.tool.name")
	AttrToolCallID = attribute.Key("agentfs.tool.call_id")
	AttrPath       = attribute.Key("agentfs.path")
	AttrBackend    = attribute.Key("agentfs.backend")
)

// StartSpan starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// Metrics holds the instruments recorded by the tool suite and the
// eviction interceptor. Exporter wiring is the host application's concern.
type Metrics struct {
	ToolCallDuration metric.Float64Histogram
	ToolCallErrors   metric.Int64Counter
	Evictions        metric.Int64Counter
	EvictedBytes     metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ToolCallDuration, err = meter.Float64Histogram("agentfs.tool.duration",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallErrors, err = meter.Int64Counter("agentfs.tool.errors",
		metric.WithDescription("Tool calls that returned an error"),
	)
	if err != nil {
		return nil, err
	}

	m.Evictions, err = meter.Int64Counter("agentfs.eviction.count",
		metric.WithDescription("Tool results relocated to storage"),
	)
	if err != nil {
		return nil, err
	}

	m.EvictedBytes, err = meter.Int64Counter("agentfs.eviction.bytes",
		metric.WithDescription("Bytes of tool output relocated to storage"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
