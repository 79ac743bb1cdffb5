package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultServiceName = "nextchapter"

var (
	promReaderFactory = prometheusComponents
	otlpReaderFactory = buildOTLPReader
	instrumentFactory = newOtelInstruments
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup configures OpenTelemetry metrics with a Prometheus exporter and an optional OTLP exporter.
// It returns a Recorder, the Prometheus HTTP handler (nil when disabled) and a shutdown function.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	promReader, promHandler, err := promReaderFactory()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(promReader)}

	if cfg.OtlpEndpoint != "" {
		otlpReader, err := otlpReaderFactory(ctx, cfg.OtlpEndpoint, cfg.OtlpInsecure)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(otlpReader))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)

	inst, err := instrumentFactory(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	shutdown := func(c context.Context) error {
		return provider.Shutdown(c)
	}

	return newRecorder(inst), promHandler, shutdown, nil
}

func buildOTLPReader(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
	}
	otlpExp, err := otlpmetrichttp.New(ctx, otlpOpts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(15*time.Second)), nil
}

func prometheusComponents() (sdkmetric.Reader, http.Handler, error) {
	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return promExp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

type otelInstruments struct {
	ctx                context.Context
	requests           metric.Int64Counter
	requestLatencyMs   metric.Float64Histogram
	translations       metric.Int64Counter
	translateLatencyMs metric.Float64Histogram
	cacheLookups       metric.Int64Counter
	storageErrors      metric.Int64Counter
	retentionCycles    metric.Int64Counter
	retentionPurged    metric.Int64Counter
	retentionErrors    metric.Int64Counter
	retentionLatencyMs metric.Float64Histogram
	liveConnections    metric.Int64UpDownCounter
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	meter := provider.Meter(defaultServiceName)
	inst := &otelInstruments{ctx: context.Background()}

	var err error
	if inst.requests, err = meter.Int64Counter("http_requests_total"); err != nil {
		return nil, err
	}
	if inst.requestLatencyMs, err = meter.Float64Histogram("http_request_duration_ms"); err != nil {
		return nil, err
	}
	if inst.translations, err = meter.Int64Counter("translations_total",
		metric.WithDescription("Résumé translations served")); err != nil {
		return nil, err
	}
	if inst.translateLatencyMs, err = meter.Float64Histogram("translation_duration_ms"); err != nil {
		return nil, err
	}
	if inst.cacheLookups, err = meter.Int64Counter("translation_cache_lookups_total"); err != nil {
		return nil, err
	}
	if inst.storageErrors, err = meter.Int64Counter("storage_errors_total"); err != nil {
		return nil, err
	}
	if inst.retentionCycles, err = meter.Int64Counter("retention_cycles_total"); err != nil {
		return nil, err
	}
	if inst.retentionPurged, err = meter.Int64Counter("retention_purged_total"); err != nil {
		return nil, err
	}
	if inst.retentionErrors, err = meter.Int64Counter("retention_errors_total"); err != nil {
		return nil, err
	}
	if inst.retentionLatencyMs, err = meter.Float64Histogram("retention_cycle_duration_ms"); err != nil {
		return nil, err
	}
	if inst.liveConnections, err = meter.Int64UpDownCounter("live_preview_connections"); err != nil {
		return nil, err
	}

	return inst, nil
}

func (o *otelInstruments) recordHTTPRequest(method, route string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.Int(AttrStatus, status),
	)
	o.requests.Add(o.ctx, 1, attrs)
	o.requestLatencyMs.Record(o.ctx, float64(duration.Milliseconds()), attrs)
}

func (o *otelInstruments) recordTranslation(sport, source string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrSport, sport),
		attribute.String(AttrSource, source),
	)
	o.translations.Add(o.ctx, 1, attrs)
	o.translateLatencyMs.Record(o.ctx, float64(duration.Microseconds())/1000, attrs)
}

func (o *otelInstruments) recordCacheLookup(outcome string) {
	if o == nil {
		return
	}
	o.cacheLookups.Add(o.ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func (o *otelInstruments) recordStorageError(op string) {
	if o == nil {
		return
	}
	o.storageErrors.Add(o.ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (o *otelInstruments) recordRetention(purged int64, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.retentionCycles.Add(o.ctx, 1)
	o.retentionPurged.Add(o.ctx, purged)
	o.retentionLatencyMs.Record(o.ctx, float64(duration.Milliseconds()))
	if err != nil {
		o.retentionErrors.Add(o.ctx, 1)
	}
}

func (o *otelInstruments) recordLive(delta int) {
	if o == nil {
		return
	}
	o.liveConnections.Add(o.ctx, int64(delta))
}
