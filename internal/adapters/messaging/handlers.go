package messaging

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/broker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/metrics"
)

// Handlers は受信トピックをワーカーのコンシューマーへ橋渡しします。
type Handlers struct {
	consumer worker.Consumer
	logger   logrus.FieldLogger
}

// NewHandlers は Handlers を生成します。
func NewHandlers(consumer worker.Consumer, logger logrus.FieldLogger) *Handlers {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &Handlers{consumer: consumer, logger: logger}
}

// Register はディスパッチャーに受信トピックを登録します。
func (h *Handlers) Register(d *broker.Dispatcher) {
	d.Handle(TopicContractStatusChanged, broker.HandlerFunc(h.ContractStatusChanged))
	d.Handle(TopicCandidateConverted, broker.HandlerFunc(h.CandidateConverted))
}

// ContractStatusChanged は contract.status_changed を処理します。
func (h *Handlers) ContractStatusChanged(ctx context.Context, msg broker.Message) error {
	event, err := DecodeContractStatusChanged(msg.Payload)
	if err != nil {
		return broker.Permanent(err)
	}

	outcome, err := h.consumer.HandleContractStatusChanged(ctx, event)
	if err != nil {
		metrics.RecordTransition(ctx, string(worker.SourceContractSync), "error")
		return classify(err)
	}

	metrics.RecordTransition(ctx, string(worker.SourceContractSync), string(outcome))
	return nil
}

// CandidateConverted は candidate.converted を処理します。
func (h *Handlers) CandidateConverted(ctx context.Context, msg broker.Message) error {
	event, err := DecodeCandidateConverted(msg.Payload)
	if err != nil {
		return broker.Permanent(err)
	}

	created, isNew, err := h.consumer.HandleCandidateConverted(ctx, event)
	if err != nil {
		metrics.RecordTransition(ctx, string(worker.SourceCandidateConversion), "error")
		return classify(err)
	}

	outcome := "duplicate"
	if isNew {
		outcome = "applied"
		h.logger.WithFields(logrus.Fields{
			"event":       "CandidateConvertedHandled",
			"message_id":  msg.ID,
			"worker_id":   created.ID,
			"worker_code": created.WorkerCode,
		}).Debug("candidate conversion handled")
	}
	metrics.RecordTransition(ctx, string(worker.SourceCandidateConversion), outcome)
	return nil
}

// classify は再試行しても結果が変わらない入力エラーを Permanent にします。
func classify(err error) error {
	switch {
	case errors.Is(err, worker.ErrInvalidID),
		errors.Is(err, worker.ErrInvalidTenantID),
		errors.Is(err, worker.ErrInvalidCandidateID),
		errors.Is(err, worker.ErrInvalidWorkerCode):
		return broker.Permanent(err)
	default:
		return err
	}
}
