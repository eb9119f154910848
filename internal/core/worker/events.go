package worker

import (
	"context"
	"time"
)

// Publisher はドメインイベントの発行先です。コミット後に呼び出されます。
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
	PublishAbsconded(ctx context.Context, ev Absconded) error
}

// StatusChanged はワーカーのステータス変更イベントです。
type StatusChanged struct {
	TenantID        string
	WorkerID        string
	FromStatus      *Status
	ToStatus        Status
	Reason          *string
	ChangedAt       time.Time
	ChangedByUserID *string
	Source          ChangeSource
}

// Absconded は失踪時に追加で発行されるアラート用イベントです。
type Absconded struct {
	TenantID         string
	WorkerID         string
	Reason           *string
	Notes            *string
	ChangedAt        time.Time
	ReportedByUserID *string
}

// ContractStatusChanged は契約集約から届くステータス変更メッセージです。
type ContractStatusChanged struct {
	TenantID        string
	ContractID      string
	WorkerID        string
	FromStatus      string
	ToStatus        string
	Reason          *string
	ChangedByUserID *string
	OccurredAt      *time.Time
}

// CandidateConverted は候補者がワーカーへ変換されたことを表すメッセージです。
type CandidateConverted struct {
	TenantID    string
	CandidateID string
	Snapshot    CandidateSnapshot
}

// CandidateSnapshot は変換時点の候補者データです。
type CandidateSnapshot struct {
	Profile   Profile
	Skills    []Skill
	Languages []Language
}

type noopPublisher struct{}

func (noopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }
func (noopPublisher) PublishAbsconded(context.Context, Absconded) error         { return nil }
