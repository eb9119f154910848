package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

func countFor(t *testing.T, name string, want map[tag.Key]string) int64 {
	t.Helper()

	rows, err := view.RetrieveData(name)
	require.NoError(t, err)

	for _, row := range rows {
		matched := 0
		for _, tg := range row.Tags {
			if v, ok := want[tg.Key]; ok && v == tg.Value {
				matched++
			}
		}
		if matched == len(want) {
			if data, ok := row.Data.(*view.CountData); ok {
				return data.Value
			}
		}
	}
	return 0
}

func TestRecordTransition(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())

	ctx := context.Background()
	RecordTransition(ctx, "operator", "applied-test")
	RecordTransition(ctx, "operator", "applied-test")
	RecordTransition(ctx, "contract_sync", "duplicate-test")

	assert.Equal(t, int64(2), countFor(t, TransitionsView.Name, map[tag.Key]string{KeySource: "operator", KeyOutcome: "applied-test"}))
	assert.Equal(t, int64(1), countFor(t, TransitionsView.Name, map[tag.Key]string{KeySource: "contract_sync", KeyOutcome: "duplicate-test"}))
}

func TestRecordMessage(t *testing.T) {
	require.NoError(t, Register())

	RecordMessage(context.Background(), "metrics.test", "acked", 12*time.Millisecond)

	assert.Equal(t, int64(1), countFor(t, MessagesView.Name, map[tag.Key]string{KeyTopic: "metrics.test", KeyOutcome: "acked"}))

	rows, err := view.RetrieveData(HandleLatencyView.Name)
	require.NoError(t, err)
	found := false
	for _, row := range rows {
		for _, tg := range row.Tags {
			if tg.Key == KeyTopic && tg.Value == "metrics.test" {
				dist, ok := row.Data.(*view.DistributionData)
				require.True(t, ok)
				assert.Equal(t, int64(1), dist.Count)
				assert.InDelta(t, 12.0, dist.Mean, 0.001)
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	h, err := NewHandler("metrics_handler_test")
	require.NoError(t, err)
	assert.NotNil(t, h)
}
