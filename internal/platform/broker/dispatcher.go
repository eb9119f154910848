package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/worker-lifecycle/internal/platform/config"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/metrics"
)

const (
	OutcomeAcked        = "acked"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"

	maxRetryDelay = 15 * time.Minute
)

// Dispatcher はキューをポーリングし、トピックに登録されたハンドラーへメッセージを配送します。
type Dispatcher struct {
	queue    Queue
	cfg      config.BrokerConfig
	logger   logrus.FieldLogger
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher は Dispatcher を生成します。
func NewDispatcher(queue Queue, cfg config.BrokerConfig, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Dispatcher{
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		handlers: make(map[string]Handler),
	}
}

// Handle はトピックにハンドラーを登録します。同じトピックへの再登録は上書きします。
func (d *Dispatcher) Handle(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = h
}

// Topics は登録済みのトピックを昇順で返します。
func (d *Dispatcher) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	topics := make([]string, 0, len(d.handlers))
	for topic := range d.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Run はコンテキストがキャンセルされるまでポーリングを繰り返します。
func (d *Dispatcher) Run(ctx context.Context) error {
	topics := d.Topics()
	if len(topics) == 0 {
		return fmt.Errorf("broker: no handlers registered")
	}

	d.logger.WithFields(logrus.Fields{
		"event":   "DispatcherStarted",
		"topics":  topics,
		"workers": d.cfg.Workers,
	}).Info("message dispatcher started")

	for {
		n, err := d.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			d.logger.WithError(err).WithField("event", "ClaimFailed").Error("failed to claim messages")
		}

		// バッチが満杯なら待たずに次を取りにいく
		if err == nil && n >= d.cfg.BatchSize {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.WithField("event", "DispatcherStopped").Info("message dispatcher stopped")
			return nil
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// Poll は 1 バッチ分のメッセージを取り出して処理し、処理件数を返します。
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	msgs, err := d.queue.Claim(ctx, d.Topics(), d.cfg.BatchSize, d.cfg.VisibilityTimeout)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, msg := range msgs {
		g.Go(func() error {
			d.process(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return len(msgs), nil
}

func (d *Dispatcher) process(ctx context.Context, msg Message) {
	log := d.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"topic":      msg.Topic,
		"attempts":   msg.Attempts,
	})

	d.mu.RLock()
	h, ok := d.handlers[msg.Topic]
	d.mu.RUnlock()

	start := d.now()
	var err error
	if !ok {
		err = Permanent(fmt.Errorf("no handler for topic %q", msg.Topic))
	} else {
		err = d.invoke(ctx, h, msg)
	}
	elapsed := d.now().Sub(start)

	// シャットダウン中でも結果は確定させる
	settleCtx := context.WithoutCancel(ctx)

	outcome := d.settle(settleCtx, log, msg, err)
	metrics.RecordMessage(settleCtx, msg.Topic, outcome, elapsed)
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("broker: handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, msg)
}

func (d *Dispatcher) settle(ctx context.Context, log logrus.FieldLogger, msg Message, err error) string {
	switch {
	case err == nil:
		if ackErr := d.queue.Ack(ctx, msg.ID); ackErr != nil {
			log.WithError(ackErr).WithField("event", "AckFailed").Error("failed to ack message")
		}
		return OutcomeAcked

	case IsPermanent(err) || (d.cfg.MaxAttempts > 0 && msg.Attempts >= d.cfg.MaxAttempts):
		log.WithError(err).WithField("event", "MessageDeadLettered").Error("message moved to dead letter")
		if dlErr := d.queue.DeadLetter(ctx, msg.ID, err.Error()); dlErr != nil {
			log.WithError(dlErr).WithField("event", "DeadLetterFailed").Error("failed to dead-letter message")
		}
		return OutcomeDeadLettered

	default:
		retryAt := d.now().Add(d.retryDelay(msg.Attempts))
		log.WithError(err).WithFields(logrus.Fields{
			"event":    "MessageRetryScheduled",
			"retry_at": retryAt,
		}).Warn("message handling failed, retry scheduled")
		if nackErr := d.queue.Nack(ctx, msg.ID, retryAt, err.Error()); nackErr != nil {
			log.WithError(nackErr).WithField("event", "NackFailed").Error("failed to nack message")
		}
		return OutcomeRetried
	}
}

// retryDelay は試行回数に応じて倍々に伸びる待ち時間を返します。
func (d *Dispatcher) retryDelay(attempts int) time.Duration {
	delay := d.cfg.RetryBackoff
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
