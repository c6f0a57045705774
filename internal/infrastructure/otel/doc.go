// Package otel owns the OpenTelemetry meter provider of the bridge.
//
// Instruments are recorded into an in-process ManualReader. The API's
// metrics endpoint collects them on demand, so no exporter or collector is
// needed to read tick counters:
//
//	provider, err := otel.New(otel.Config{ServiceName: "wiimote-bridge", Version: version})
//	agg, err := wiimote.NewAggregator(wiimote.AggregatorOptions{
//	    Meter: provider.Meter(wiimote.InstrumentationName),
//	    ...
//	})
//	readings, err := provider.Snapshot(ctx)
package otel
