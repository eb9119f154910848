package worker

import (
	"context"
	"time"
)

// Repository はワーカー集約の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, w *Worker) (*Worker, error)
	// Update はライフサイクル列を更新します。w.Version が保存済みの値と異なる場合は ErrConcurrentModification を返します。
	Update(ctx context.Context, w *Worker) (*Worker, error)
	// UpdateProfile はプロフィール・スキル・言語を置き換えます。競合時は ErrConcurrentModification を返します。
	UpdateProfile(ctx context.Context, w *Worker) (*Worker, error)
	FindByID(ctx context.Context, tenantID, id string) (*Worker, error)
	FindByCandidate(ctx context.Context, tenantID, candidateID string) (*Worker, error)
	MaxWorkerCode(ctx context.Context, tenantID string) (string, error)
	List(ctx context.Context, filter ListWorkersFilter) ([]*Worker, string, error)
	SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error
}

// HistoryRepository はステータス履歴の永続化の抽象です。更新・削除は提供しません。
type HistoryRepository interface {
	Append(ctx context.Context, entry *StatusHistoryEntry) (*StatusHistoryEntry, error)
	ListByWorker(ctx context.Context, tenantID, workerID string) ([]*StatusHistoryEntry, error)
	ExistsSince(ctx context.Context, q HistoryLookup) (bool, error)
}

// HistoryLookup は冪等性判定のための履歴検索条件です。
type HistoryLookup struct {
	TenantID        string
	WorkerID        string
	Source          ChangeSource
	RelatedEntityID string
	Reason          string
	Since           *time.Time
}

// ListWorkersFilter は一覧取得用フィルタです。
type ListWorkersFilter struct {
	TenantID string
	Statuses []Status
	Limit    int
	Offset   int
}
