package messaging

import (
	"context"
	"fmt"

	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/broker"
)

// Publisher はワーカーのドメインイベントをキューへ送信します。
type Publisher struct {
	out broker.Publisher
}

// NewPublisher は Publisher を生成します。
func NewPublisher(out broker.Publisher) *Publisher {
	return &Publisher{out: out}
}

// PublishStatusChanged は worker.status_changed を送信します。
func (p *Publisher) PublishStatusChanged(ctx context.Context, ev worker.StatusChanged) error {
	payload, err := encodeStatusChanged(ev)
	if err != nil {
		return fmt.Errorf("messaging: encode %s: %w", TopicWorkerStatusChanged, err)
	}
	return p.out.Publish(ctx, TopicWorkerStatusChanged, payload)
}

// PublishAbsconded は worker.absconded を送信します。
func (p *Publisher) PublishAbsconded(ctx context.Context, ev worker.Absconded) error {
	payload, err := encodeAbsconded(ev)
	if err != nil {
		return fmt.Errorf("messaging: encode %s: %w", TopicWorkerAbsconded, err)
	}
	return p.out.Publish(ctx, TopicWorkerAbsconded, payload)
}

var _ worker.Publisher = (*Publisher)(nil)
