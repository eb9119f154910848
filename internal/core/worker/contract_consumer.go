package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// SyncOutcome はシステム起因メッセージの処理結果です。
type SyncOutcome string

const (
	SyncApplied        SyncOutcome = "applied"
	SyncNoChange       SyncOutcome = "no_change"
	SyncDuplicate      SyncOutcome = "duplicate"
	SyncWorkerNotFound SyncOutcome = "worker_not_found"
	SyncRejected       SyncOutcome = "rejected"
)

// occurredAtSkew は発行側と消費側の時計のずれとして許容する幅です。
// 履歴の changed_at は消費側の時計で記録されるため、occurredAt をこの分だけ遡って比較する。
const occurredAtSkew = 5 * time.Minute

// HandleContractStatusChanged は契約のステータス変更をワーカーのステータスへ反映します。
// 配送は at-least-once のため、同一メッセージの再処理では履歴を追記しません。
func (s *Service) HandleContractStatusChanged(ctx context.Context, msg ContractStatusChanged) (SyncOutcome, error) {
	tenantID, workerID, err := normalizeScope(msg.TenantID, msg.WorkerID)
	if err != nil {
		return "", err
	}
	contractID, err := normalizeUUID(msg.ContractID)
	if err != nil {
		return "", err
	}

	log := s.logger.WithFields(logrus.Fields{
		"tenant_id":     tenantID,
		"worker_id":     workerID,
		"contract_id":   contractID,
		"contract_from": msg.FromStatus,
		"contract_to":   msg.ToStatus,
	})

	to, ok := ParseContractStatus(msg.ToStatus)
	if !ok {
		log.WithField("event", "UnknownContractStatus").Warn("unknown contract target status, discarding")
		return SyncNoChange, nil
	}
	from, ok := ParseContractStatus(msg.FromStatus)
	if !ok {
		from = ContractStatus(msg.FromStatus)
	}

	var actor *string
	if msg.ChangedByUserID != nil {
		if id, err := normalizeUUID(*msg.ChangedByUserID); err == nil {
			actor = &id
		}
	}

	reason := normalizeOptional(msg.Reason)
	ledgerReason := contractSyncReason(from, to)

	out, err := s.transition(ctx, tenantID, workerID, func(txCtx context.Context, w *Worker) (decision, error) {
		target, ok := ResolveContractSync(from, to, w.Status)
		if !ok {
			return decision{skip: SyncNoChange}, nil
		}

		if w.Status == target {
			return decision{skip: SyncDuplicate}, nil
		}

		applied, err := s.history.ExistsSince(txCtx, HistoryLookup{
			TenantID:        tenantID,
			WorkerID:        workerID,
			Source:          SourceContractSync,
			RelatedEntityID: contractID,
			Reason:          ledgerReason,
			Since:           duplicateWindowStart(msg.OccurredAt),
		})
		if err != nil {
			return decision{}, err
		}
		if applied {
			return decision{skip: SyncDuplicate}, nil
		}

		return decision{change: &statusChange{
			Target:          target,
			StatusReason:    reason,
			LedgerReason:    &ledgerReason,
			Notes:           reason,
			ActorUserID:     actor,
			Source:          SourceContractSync,
			RelatedEntityID: &contractID,
		}}, nil
	})
	if err != nil {
		if errors.Is(err, ErrWorkerNotFound) {
			log.WithField("event", "WorkerNotFound").Warn("worker not found for contract event, discarding")
			return SyncWorkerNotFound, nil
		}
		return "", err
	}

	switch {
	case out.rejection != nil:
		log.WithFields(logrus.Fields{
			"event": "ContractSyncRejected",
			"code":  out.rejection.Code,
		}).Warn(out.rejection.Message)
		return SyncRejected, nil
	case out.entry == nil:
		log.WithFields(logrus.Fields{
			"event":   "ContractSyncSkipped",
			"outcome": out.skip,
		}).Debug("no worker status change for contract event")
		return out.skip, nil
	}

	log.WithFields(logrus.Fields{
		"event": "ContractSyncApplied",
		"from":  derefStatus(out.entry.FromStatus),
		"to":    out.entry.ToStatus,
	}).Info("worker status synchronized with contract")

	return SyncApplied, nil
}

func duplicateWindowStart(occurredAt *time.Time) *time.Time {
	if occurredAt == nil {
		return nil
	}
	since := occurredAt.Add(-occurredAtSkew)
	return &since
}

func derefStatus(s *Status) Status {
	if s == nil {
		return ""
	}
	return *s
}
