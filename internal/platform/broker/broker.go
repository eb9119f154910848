package broker

import (
	"context"
	"errors"
	"time"
)

// Message はキューから取り出した 1 件のメッセージです。
type Message struct {
	ID         string
	Topic      string
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// Handler はトピックごとのメッセージ処理です。nil 以外のエラーは再配送の対象になります。
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc は関数を Handler として扱うためのアダプタです。
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle は f(ctx, msg) を呼び出します。
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Queue は at-least-once 配送のキューです。
// Claim で取り出したメッセージは lease の間ほかの消費者から見えなくなり、
// Ack されなければ lease 切れ後に再配送されます。
type Queue interface {
	Claim(ctx context.Context, topics []string, limit int, lease time.Duration) ([]Message, error)
	Ack(ctx context.Context, id string) error
	Nack(ctx context.Context, id string, retryAt time.Time, reason string) error
	DeadLetter(ctx context.Context, id string, reason string) error
}

// Publisher はトピックへメッセージを送信します。
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return "broker: permanent: " + e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent は再試行しても成功しないエラーを表します。該当メッセージは即座にデッドレターへ送られます。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent は err が Permanent でラップされているかを返します。
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
