package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ogurasousui/worker-lifecycle/internal/platform/broker"
	pgdb "github.com/ogurasousui/worker-lifecycle/internal/platform/db/postgres"
)

// ErrMessageNotFound は対象のメッセージが存在しない場合に返却されます。
var ErrMessageNotFound = errors.New("queue: message not found")

// Queue は broker_messages テーブルを用いた at-least-once キューです。
type Queue struct {
	pool  pgdb.Queryer
	now   func() time.Time
	newID func() string
}

// NewQueue は Queue を生成します。
func NewQueue(pool pgdb.Queryer) *Queue {
	return &Queue{
		pool:  pool,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Publish はメッセージを登録します。コンテキストにトランザクションがあればその中で登録されます。
func (q *Queue) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("queue: topic is required")
	}

	exec := pgdb.QueryerFromContext(ctx, q.pool)
	now := q.now()
	if _, err := exec.Exec(ctx, `
        INSERT INTO broker_messages (id, topic, payload, state, attempts, available_at, created_at, updated_at)
        VALUES ($1, $2, $3, 'pending', 0, $4, $4, $4)
    `, q.newID(), topic, payload, now); err != nil {
		return fmt.Errorf("queue: publish %s: %w", topic, err)
	}
	return nil
}

// Claim は配送可能なメッセージを最大 limit 件取り出し、lease の間ロックします。
// 取り出すたびに attempts を加算します。
func (q *Queue) Claim(ctx context.Context, topics []string, limit int, lease time.Duration) ([]broker.Message, error) {
	if len(topics) == 0 || limit <= 0 {
		return nil, nil
	}

	exec := pgdb.QueryerFromContext(ctx, q.pool)
	now := q.now()
	rows, err := exec.Query(ctx, `
        WITH next AS (
            SELECT id
              FROM broker_messages
             WHERE state = 'pending'
               AND topic = ANY($1)
               AND available_at <= $2
               AND (locked_until IS NULL OR locked_until <= $2)
             ORDER BY available_at, created_at
             LIMIT $3
               FOR UPDATE SKIP LOCKED
        )
        UPDATE broker_messages m
           SET locked_until = $4,
               attempts = m.attempts + 1,
               updated_at = $2
          FROM next
         WHERE m.id = next.id
        RETURNING m.id::text, m.topic, m.payload, m.attempts, m.created_at
    `, topics, now, limit, now.Add(lease))
	if err != nil {
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	defer rows.Close()

	msgs := make([]broker.Message, 0, limit)
	for rows.Next() {
		var m broker.Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts, &m.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("queue: scan claimed message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue: claim: %w", err)
	}

	return msgs, nil
}

// Ack は処理済みのメッセージを削除します。
func (q *Queue) Ack(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, q.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM broker_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Nack はロックを解除し、retryAt 以降に再配送されるようにします。
func (q *Queue) Nack(ctx context.Context, id string, retryAt time.Time, reason string) error {
	exec := pgdb.QueryerFromContext(ctx, q.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE broker_messages
           SET locked_until = NULL,
               available_at = $2,
               last_error = $3,
               updated_at = $4
         WHERE id = $1 AND state = 'pending'
    `, id, retryAt.UTC(), reason, q.now())
	if err != nil {
		return fmt.Errorf("queue: nack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeadLetter はメッセージを配送対象から外します。行は調査用に残ります。
func (q *Queue) DeadLetter(ctx context.Context, id string, reason string) error {
	exec := pgdb.QueryerFromContext(ctx, q.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE broker_messages
           SET state = 'dead',
               locked_until = NULL,
               last_error = $2,
               updated_at = $3
         WHERE id = $1
    `, id, reason, q.now())
	if err != nil {
		return fmt.Errorf("queue: dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

var (
	_ broker.Queue     = (*Queue)(nil)
	_ broker.Publisher = (*Queue)(nil)
)
