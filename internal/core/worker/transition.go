package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// statusChange は集約へ適用する 1 回分の遷移です。
type statusChange struct {
	Target          Status
	StatusReason    *string
	LedgerReason    *string
	Notes           *string
	ActorUserID     *string
	Source          ChangeSource
	RelatedEntityID *string
}

// decision は decideFunc の判定結果です。change, rejection, skip のいずれか 1 つだけを持ちます。
type decision struct {
	change    *statusChange
	rejection *Rejection
	skip      SyncOutcome
}

type decideFunc func(ctx context.Context, w *Worker) (decision, error)

type transitionOutcome struct {
	worker    *Worker
	entry     *StatusHistoryEntry
	rejection *Rejection
	skip      SyncOutcome
}

// transition は履歴を書き込む唯一の経路です。
// 読み込み・判定・集約更新・履歴追記を 1 トランザクションで行い、コミット後にイベントを発行します。
func (s *Service) transition(ctx context.Context, tenantID, workerID string, decide decideFunc) (*transitionOutcome, error) {
	var out transitionOutcome

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		w, err := s.repo.FindByID(txCtx, tenantID, workerID)
		if err != nil {
			return err
		}
		out.worker = w

		d, err := decide(txCtx, w)
		if err != nil {
			return err
		}

		switch {
		case d.rejection != nil:
			out.rejection = d.rejection
			return nil
		case d.change == nil:
			out.skip = d.skip
			return nil
		}

		// 終端ステータスの集約は凍結されている。
		if IsTerminal(w.Status) {
			out.rejection = &Rejection{
				Code:    RejectTerminalSource,
				From:    w.Status,
				To:      d.change.Target,
				Message: fmt.Sprintf("status '%s' is a terminal status, no further transitions", w.Status),
			}
			return nil
		}

		updated, entry, err := s.applyChange(txCtx, w, *d.change)
		if err != nil {
			return err
		}
		out.worker = updated
		out.entry = entry
		return nil
	}); err != nil {
		return nil, err
	}

	if out.entry != nil {
		s.publish(ctx, out.entry)
	}

	return &out, nil
}

func (s *Service) applyChange(ctx context.Context, w *Worker, ch statusChange) (*Worker, *StatusHistoryEntry, error) {
	now := s.clock.Now()
	from := w.Status

	w.Status = ch.Target
	w.StatusChangedAt = &now
	w.StatusReason = cloneString(ch.StatusReason)
	if ch.Target == StatusActive && w.ActivatedAt == nil {
		w.ActivatedAt = cloneTime(&now)
	}
	if IsTerminationClass(ch.Target) && w.TerminatedAt == nil {
		w.TerminatedAt = cloneTime(&now)
		w.TerminationReason = cloneString(ch.StatusReason)
	}
	w.UpdatedAt = now

	updated, err := s.repo.Update(ctx, w)
	if err != nil {
		return nil, nil, err
	}

	entry, err := s.history.Append(ctx, &StatusHistoryEntry{
		ID:              s.newID(),
		TenantID:        w.TenantID,
		WorkerID:        w.ID,
		FromStatus:      &from,
		ToStatus:        ch.Target,
		ChangedAt:       now,
		ChangedByUserID: cloneString(ch.ActorUserID),
		Reason:          cloneString(ch.LedgerReason),
		Notes:           cloneString(ch.Notes),
		Source:          ch.Source,
		RelatedEntityID: cloneString(ch.RelatedEntityID),
	})
	if err != nil {
		return nil, nil, err
	}

	return updated, entry, nil
}

// publish はコミット済みの遷移をイベントとして発行します。失敗はログに残すのみでロールバックしません。
func (s *Service) publish(ctx context.Context, entry *StatusHistoryEntry) {
	fields := logrus.Fields{
		"tenant_id": entry.TenantID,
		"worker_id": entry.WorkerID,
		"to":        entry.ToStatus,
		"source":    entry.Source,
	}

	if err := s.publisher.PublishStatusChanged(ctx, StatusChanged{
		TenantID:        entry.TenantID,
		WorkerID:        entry.WorkerID,
		FromStatus:      entry.FromStatus,
		ToStatus:        entry.ToStatus,
		Reason:          entry.Reason,
		ChangedAt:       entry.ChangedAt,
		ChangedByUserID: entry.ChangedByUserID,
		Source:          entry.Source,
	}); err != nil {
		s.logger.WithError(err).WithFields(fields).WithField("event", "PublishStatusChangedFailed").
			Error("failed to publish worker status changed event")
	}

	if entry.ToStatus != StatusAbsconded {
		return
	}

	if err := s.publisher.PublishAbsconded(ctx, Absconded{
		TenantID:         entry.TenantID,
		WorkerID:         entry.WorkerID,
		Reason:           entry.Reason,
		Notes:            entry.Notes,
		ChangedAt:        entry.ChangedAt,
		ReportedByUserID: entry.ChangedByUserID,
	}); err != nil {
		s.logger.WithError(err).WithFields(fields).WithField("event", "PublishAbscondedFailed").
			Error("failed to publish worker absconded event")
	}
}
