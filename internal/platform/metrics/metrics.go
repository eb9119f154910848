package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeySource  = tag.MustNewKey("source")
	KeyOutcome = tag.MustNewKey("outcome")
	KeyTopic   = tag.MustNewKey("topic")
)

var (
	transitionCount = stats.Int64("worker_transitions", "Worker status transition attempts", stats.UnitDimensionless)
	messageCount    = stats.Int64("broker_messages", "Messages handled by the dispatcher", stats.UnitDimensionless)
	handleLatencyMs = stats.Float64("broker_handle_latency_ms", "Message handler latency", stats.UnitMilliseconds)
)

var (
	TransitionsView = &view.View{
		Name:        "worker_transitions",
		Description: "Worker status transition attempts by source and outcome",
		Measure:     transitionCount,
		TagKeys:     []tag.Key{KeySource, KeyOutcome},
		Aggregation: view.Count(),
	}
	MessagesView = &view.View{
		Name:        "broker_messages",
		Description: "Messages handled by topic and outcome",
		Measure:     messageCount,
		TagKeys:     []tag.Key{KeyTopic, KeyOutcome},
		Aggregation: view.Count(),
	}
	HandleLatencyView = &view.View{
		Name:        "broker_handle_latency_ms",
		Description: "Message handler latency by topic",
		Measure:     handleLatencyMs,
		TagKeys:     []tag.Key{KeyTopic},
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	}
)

// Register はビューを登録します。同じ定義の再登録は許容されます。
func Register() error {
	if err := view.Register(TransitionsView, MessagesView, HandleLatencyView); err != nil {
		return fmt.Errorf("metrics: register views: %w", err)
	}
	return nil
}

// RecordTransition は遷移の試行結果を記録します。
func RecordTransition(ctx context.Context, source, outcome string) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeySource, source), tag.Upsert(KeyOutcome, outcome)},
		transitionCount.M(1),
	)
}

// RecordMessage はメッセージ処理の結果と所要時間を記録します。
func RecordMessage(ctx context.Context, topic, outcome string, elapsed time.Duration) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyTopic, topic), tag.Upsert(KeyOutcome, outcome)},
		messageCount.M(1),
	)
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyTopic, topic)},
		handleLatencyMs.M(float64(elapsed)/float64(time.Millisecond)),
	)
}

// NewHandler は Prometheus 形式で /metrics を公開する http.Handler を返します。
func NewHandler(namespace string) (http.Handler, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("metrics: create prometheus exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", pe)
	return mux, nil
}
