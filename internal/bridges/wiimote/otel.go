package wiimote

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the meter the aggregator records into.
const InstrumentationName = "github.com/nerrad567/wiimote-bridge/internal/bridges/wiimote"

func meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}
