// Package observe provides application-wide observability primitives for
// Rias: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Rias metrics.
const meterName = "github.com/MrWong99/rias"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RestDuration tracks node REST call latency. Use with attributes:
	//   attribute.String("node", ...), attribute.String("op", ...), attribute.String("status", ...)
	RestDuration metric.Float64Histogram

	// --- Counters ---

	// NodeFrames counts inbound event-stream frames by node and op.
	NodeFrames metric.Int64Counter

	// NodeConnects counts successful event-stream opens by node.
	NodeConnects metric.Int64Counter

	// NodeReconnects counts scheduled reconnect attempts by node.
	NodeReconnects metric.Int64Counter

	// TrackEvents counts node-pushed track events. Use with attributes:
	//   attribute.String("node", ...), attribute.String("type", ...)
	TrackEvents metric.Int64Counter

	// TracksLoaded counts track resolution calls by load type.
	TracksLoaded metric.Int64Counter

	// --- Gauges ---

	// ActivePlayers tracks the number of live per-guild players.
	ActivePlayers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for node REST round-trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RestDuration, err = m.Float64Histogram("rias.rest.duration",
		metric.WithDescription("Latency of node REST calls by node, op, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.NodeFrames, err = m.Int64Counter("rias.node.frames",
		metric.WithDescription("Total inbound event-stream frames by node and op."),
	); err != nil {
		return nil, err
	}
	if met.NodeConnects, err = m.Int64Counter("rias.node.connects",
		metric.WithDescription("Total successful event-stream opens by node."),
	); err != nil {
		return nil, err
	}
	if met.NodeReconnects, err = m.Int64Counter("rias.node.reconnects",
		metric.WithDescription("Total scheduled reconnect attempts by node."),
	); err != nil {
		return nil, err
	}
	if met.TrackEvents, err = m.Int64Counter("rias.track.events",
		metric.WithDescription("Total node-pushed track events by node and type."),
	); err != nil {
		return nil, err
	}
	if met.TracksLoaded, err = m.Int64Counter("rias.tracks.loaded",
		metric.WithDescription("Total track resolution calls by load type."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePlayers, err = m.Int64UpDownCounter("rias.active_players",
		metric.WithDescription("Number of live per-guild players."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("rias.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// NodeAttr tags a measurement with the node id.
func NodeAttr(nodeID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("node", nodeID))
}

// OpAttr tags a measurement with a frame or REST op name.
func OpAttr(op string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("op", op))
}

// RecordRestCall records one REST call with its duration in seconds and the
// standard attribute set.
func (m *Metrics) RecordRestCall(ctx context.Context, nodeID, op, status string, seconds float64) {
	m.RestDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("node", nodeID),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordTrackEvent records one node-pushed track event.
func (m *Metrics) RecordTrackEvent(ctx context.Context, nodeID, eventType string) {
	m.TrackEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node", nodeID),
			attribute.String("type", eventType),
		),
	)
}
