package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	workerCodePrefix = "WRK-"
	workerCodeDigits = 6
	conversionNotes  = "created from converted candidate"
)

// HandleCandidateConverted は候補者の変換メッセージからワーカーを生成します。
// 同一テナント・候補者のワーカーが既に存在する場合は何もしません。
// 2 番目の戻り値は新規作成したかどうかです。
func (s *Service) HandleCandidateConverted(ctx context.Context, msg CandidateConverted) (*Worker, bool, error) {
	tenantID, err := normalizeUUID(msg.TenantID)
	if err != nil {
		return nil, false, ErrInvalidTenantID
	}
	candidateID, err := normalizeUUID(msg.CandidateID)
	if err != nil {
		return nil, false, ErrInvalidCandidateID
	}

	log := s.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"candidate_id": candidateID,
	})

	var (
		created *Worker
		entry   *StatusHistoryEntry
	)
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByCandidate(txCtx, tenantID, candidateID)
		if err != nil && !errors.Is(err, ErrWorkerNotFound) {
			return err
		}
		if existing != nil {
			return ErrWorkerAlreadyExists
		}

		maxCode, err := s.repo.MaxWorkerCode(txCtx, tenantID)
		if err != nil {
			return err
		}
		code, err := nextWorkerCode(maxCode)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		w := &Worker{
			ID:              s.newID(),
			TenantID:        tenantID,
			WorkerCode:      code,
			CandidateID:     candidateID,
			Status:          StatusActive,
			StatusChangedAt: cloneTime(&now),
			ActivatedAt:     cloneTime(&now),
			Profile:         msg.Snapshot.Profile,
			Skills:          append([]Skill(nil), msg.Snapshot.Skills...),
			Languages:       append([]Language(nil), msg.Snapshot.Languages...),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		result, err := s.repo.Create(txCtx, w)
		if err != nil {
			return err
		}

		notes := conversionNotes
		seeded, err := s.history.Append(txCtx, &StatusHistoryEntry{
			ID:              s.newID(),
			TenantID:        tenantID,
			WorkerID:        result.ID,
			FromStatus:      nil,
			ToStatus:        StatusActive,
			ChangedAt:       now,
			ChangedByUserID: nil,
			Notes:           &notes,
			Source:          SourceCandidateConversion,
			RelatedEntityID: &candidateID,
		})
		if err != nil {
			return err
		}

		created = result
		entry = seeded
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrWorkerAlreadyExists) {
			log.WithField("event", "WorkerAlreadyExists").Warn("worker already exists for candidate, skipping")
			return nil, false, nil
		}
		return nil, false, err
	}

	log.WithFields(logrus.Fields{
		"event":       "WorkerCreated",
		"worker_id":   created.ID,
		"worker_code": created.WorkerCode,
	}).Info("created worker from converted candidate")

	s.publish(ctx, entry)

	return created, true, nil
}

// nextWorkerCode は既存の最大コードの次のコードを返します。
func nextWorkerCode(maxCode string) (string, error) {
	next := 1
	if trimmed := strings.TrimSpace(maxCode); trimmed != "" {
		if !strings.HasPrefix(trimmed, workerCodePrefix) {
			return "", fmt.Errorf("%q: %w", trimmed, ErrInvalidWorkerCode)
		}
		current, err := strconv.Atoi(strings.TrimPrefix(trimmed, workerCodePrefix))
		if err != nil || current < 0 {
			return "", fmt.Errorf("%q: %w", trimmed, ErrInvalidWorkerCode)
		}
		next = current + 1
	}
	return fmt.Sprintf("%s%0*d", workerCodePrefix, workerCodeDigits, next), nil
}
