package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	pgdb "github.com/ogurasousui/worker-lifecycle/internal/platform/db/postgres"
)

// HistoryRepository はステータス履歴の PostgreSQL 実装です。追記と参照のみを提供します。
type HistoryRepository struct {
	pool pgdb.Queryer
}

// NewHistoryRepository は HistoryRepository を生成します。
func NewHistoryRepository(pool pgdb.Queryer) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Append は履歴を 1 件追記します。
func (r *HistoryRepository) Append(ctx context.Context, e *worker.StatusHistoryEntry) (*worker.StatusHistoryEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var from any
	if e.FromStatus != nil {
		from = string(*e.FromStatus)
	}

	if _, err := exec.Exec(ctx, `
        INSERT INTO worker_status_history (
            id, tenant_id, worker_id, from_status, to_status, changed_at,
            changed_by_user_id, reason, notes, source, related_entity_id
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `,
		e.ID,
		e.TenantID,
		e.WorkerID,
		from,
		string(e.ToStatus),
		e.ChangedAt.UTC(),
		nullableString(e.ChangedByUserID),
		nullableString(e.Reason),
		nullableString(e.Notes),
		string(e.Source),
		nullableString(e.RelatedEntityID),
	); err != nil {
		return nil, translateWorkerPgError(err)
	}

	appended := *e
	return &appended, nil
}

// ListByWorker はワーカーの履歴を新しい順に返します。
func (r *HistoryRepository) ListByWorker(ctx context.Context, tenantID, workerID string) ([]*worker.StatusHistoryEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, tenant_id, worker_id, from_status, to_status, changed_at,
               changed_by_user_id::text, reason, notes, source, related_entity_id::text
          FROM worker_status_history
         WHERE tenant_id = $1 AND worker_id = $2
         ORDER BY changed_at DESC, seq DESC
    `, tenantID, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*worker.StatusHistoryEntry, 0)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// ExistsSince は同一の契約由来の遷移が既に記録されているかを判定します。
func (r *HistoryRepository) ExistsSince(ctx context.Context, q worker.HistoryLookup) (bool, error) {
	var since any
	if q.Since != nil {
		since = q.Since.UTC()
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
              FROM worker_status_history
             WHERE tenant_id = $1
               AND worker_id = $2
               AND source = $3
               AND related_entity_id = $4
               AND reason = $5
               AND ($6::timestamptz IS NULL OR changed_at >= $6::timestamptz)
        )
    `, q.TenantID, q.WorkerID, string(q.Source), q.RelatedEntityID, q.Reason, since)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanHistoryEntry(row pgx.Row) (*worker.StatusHistoryEntry, error) {
	var (
		e               worker.StatusHistoryEntry
		fromStatus      sql.NullString
		toStatus        string
		changedAt       time.Time
		changedBy       sql.NullString
		reason          sql.NullString
		notes           sql.NullString
		source          string
		relatedEntityID sql.NullString
	)

	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.WorkerID,
		&fromStatus,
		&toStatus,
		&changedAt,
		&changedBy,
		&reason,
		&notes,
		&source,
		&relatedEntityID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worker.ErrWorkerNotFound
		}
		return nil, err
	}

	if fromStatus.Valid {
		s := worker.Status(fromStatus.String)
		e.FromStatus = &s
	}
	e.ToStatus = worker.Status(toStatus)
	e.ChangedAt = changedAt.UTC()
	e.ChangedByUserID = stringPtr(changedBy)
	e.Reason = stringPtr(reason)
	e.Notes = stringPtr(notes)
	e.Source = worker.ChangeSource(source)
	e.RelatedEntityID = stringPtr(relatedEntityID)

	return &e, nil
}
