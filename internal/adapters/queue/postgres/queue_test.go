package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newTestQueue(t *testing.T) (*Queue, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue(mock)
	q.now = func() time.Time { return now }
	q.newID = func() string { return "msg-1" }
	return q, mock, now
}

func TestQueue_Publish(t *testing.T) {
	t.Parallel()

	q, mock, now := newTestQueue(t)
	payload := []byte(`{"tenantId":"t1"}`)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO broker_messages`)).
		WithArgs("msg-1", "worker.status_changed", payload, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := q.Publish(context.Background(), "worker.status_changed", payload); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := q.Publish(context.Background(), "", payload); err == nil {
		t.Fatal("expected error for empty topic")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueue_Claim(t *testing.T) {
	t.Parallel()

	q, mock, now := newTestQueue(t)
	topics := []string{"candidate.converted", "contract.status_changed"}

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs(topics, now, 5, now.Add(30*time.Second)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "topic", "payload", "attempts", "created_at"}).
			AddRow("m1", "contract.status_changed", []byte(`{}`), 1, now.Add(-time.Minute)).
			AddRow("m2", "candidate.converted", []byte(`{}`), 3, now.Add(-time.Hour)))

	msgs, err := q.Claim(context.Background(), topics, 5, 30*time.Second)
	if err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Attempts != 3 || msgs[1].Topic != "candidate.converted" || string(msgs[1].Payload) != "{}" {
		t.Fatalf("unexpected message %+v", msgs[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueue_Claim_NothingToDo(t *testing.T) {
	t.Parallel()

	q, mock, _ := newTestQueue(t)

	msgs, err := q.Claim(context.Background(), nil, 5, time.Second)
	if err != nil || msgs != nil {
		t.Fatalf("expected no claim without topics, got %v %v", msgs, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestQueue_AckNackDeadLetter(t *testing.T) {
	t.Parallel()

	q, mock, now := newTestQueue(t)
	retryAt := now.Add(10 * time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM broker_messages WHERE id = $1`)).
		WithArgs("m1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`SET locked_until = NULL,`)).
		WithArgs("m2", retryAt, "db down", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`SET state = 'dead',`)).
		WithArgs("m3", "bad payload", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	if err := q.Ack(ctx, "m1"); err != nil {
		t.Fatalf("Ack returned error: %v", err)
	}
	if err := q.Nack(ctx, "m2", retryAt, "db down"); err != nil {
		t.Fatalf("Nack returned error: %v", err)
	}
	if err := q.DeadLetter(ctx, "m3", "bad payload"); err != nil {
		t.Fatalf("DeadLetter returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueue_Ack_Missing(t *testing.T) {
	t.Parallel()

	q, mock, _ := newTestQueue(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM broker_messages`)).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := q.Ack(context.Background(), "gone"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}
