package surveillance

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	entityKey = tag.MustNewKey("entity")

	mTicks       = stats.Int64("surveillance/ticks", "Evaluation ticks", stats.UnitDimensionless)
	mFetchErrors = stats.Int64("surveillance/fetch_errors", "Failed reading fetches", stats.UnitDimensionless)
	mAlerts      = stats.Int64("surveillance/alerts", "Alerts raised", stats.UnitDimensionless)
	mDropped     = stats.Int64("surveillance/dropped", "Hazard detections dropped while the alert slot was busy", stats.UnitDimensionless)
	mSuppressed  = stats.Int64("surveillance/suppressed", "Hazard detections muted by a suppression rule", stats.UnitDimensionless)
)

// Views exposes the surveillance measures per entity.
var Views = []*view.View{
	countView(mTicks),
	countView(mFetchErrors),
	countView(mAlerts),
	countView(mDropped),
	countView(mSuppressed),
}

func countView(m *stats.Int64Measure) *view.View {
	return &view.View{
		Name:        m.Name(),
		Description: m.Description(),
		Measure:     m,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{entityKey},
	}
}

func record(ctx context.Context, entityID string, m *stats.Int64Measure) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(entityKey, entityID)}, m.M(1))
}
