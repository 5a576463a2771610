package batch

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "diamondsim/engine/internal/batch"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
