package util

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	Endpoint, _ = tag.NewKey("endpoint")

	APIRequestDuration = stats.Float64("api/request_duration_ms",
		"Duration of engine API requests", stats.UnitMilliseconds)

	APIRequestDurationView = &view.View{
		Measure:     APIRequestDuration,
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000),
		TagKeys:     []tag.Key{Endpoint},
	}
)

// Timer records the duration of one API call under the current tags.
func Timer(ctx context.Context, m *stats.Float64Measure) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(float64(time.Since(start).Milliseconds())))
	}
}
