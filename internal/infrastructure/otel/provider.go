package otel

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds OTel configuration.
type Config struct {
	ServiceName string
	Version     string

	// Global also installs the provider as the process-wide meter provider.
	Global bool
}

// Reading is one collected data point.
type Reading struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
}

// Provider manages the SDK meter provider and its reader.
type Provider struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// New creates a meter provider backed by a manual reader.
func New(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	)

	reader := sdkmetric.NewManualReader()
	p := &Provider{
		reader: reader,
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
	}
	if cfg.Global {
		otel.SetMeterProvider(p.provider)
	}
	return p, nil
}

// Meter returns a meter with the given instrumentation name.
func (p *Provider) Meter(name string) metric.Meter {
	return p.provider.Meter(name)
}

// Snapshot collects every instrument and returns its data points, sorted
// by name then attributes. Sums are cumulative since start.
func (p *Provider) Snapshot(ctx context.Context) ([]Reading, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}

	readings := []Reading{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				readings = appendPoints(readings, m.Name, data.DataPoints)
			case metricdata.Sum[float64]:
				readings = appendPoints(readings, m.Name, data.DataPoints)
			case metricdata.Gauge[int64]:
				readings = appendPoints(readings, m.Name, data.DataPoints)
			case metricdata.Gauge[float64]:
				readings = appendPoints(readings, m.Name, data.DataPoints)
			}
		}
	}

	sort.Slice(readings, func(i, j int) bool {
		if readings[i].Name != readings[j].Name {
			return readings[i].Name < readings[j].Name
		}
		return attrKey(readings[i].Attributes) < attrKey(readings[j].Attributes)
	})
	return readings, nil
}

// Shutdown stops the provider. Instruments become no-ops afterwards.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}

func appendPoints[N int64 | float64](out []Reading, name string, points []metricdata.DataPoint[N]) []Reading {
	for _, dp := range points {
		r := Reading{Name: name, Value: float64(dp.Value)}
		if dp.Attributes.Len() > 0 {
			r.Attributes = make(map[string]string, dp.Attributes.Len())
			iter := dp.Attributes.Iter()
			for iter.Next() {
				kv := iter.Attribute()
				r.Attributes[string(kv.Key)] = kv.Value.Emit()
			}
		}
		out = append(out, r)
	}
	return out
}

func attrKey(attrs map[string]string) string {
	parts := make([]string, 0, len(attrs))
	for k, v := range attrs {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
