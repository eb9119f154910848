package worker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// UseCase はワーカーのコマンド・クエリの公開インターフェースです。
type UseCase interface {
	TransitionStatus(ctx context.Context, in TransitionStatusInput) (*TransitionResult, error)
	GetValidTransitions(ctx context.Context, in GetWorkerInput) ([]Status, error)
	GetWorker(ctx context.Context, in GetWorkerInput) (*Worker, error)
	ListWorkers(ctx context.Context, in ListWorkersInput) (*ListWorkersResult, error)
	ListStatusHistory(ctx context.Context, in GetWorkerInput) ([]*StatusHistoryEntry, error)
	DeleteWorker(ctx context.Context, in GetWorkerInput) error
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (*Worker, error)
}

// Consumer はシステム起因のメッセージを処理するインターフェースです。
type Consumer interface {
	HandleContractStatusChanged(ctx context.Context, msg ContractStatusChanged) (SyncOutcome, error)
	HandleCandidateConverted(ctx context.Context, msg CandidateConverted) (*Worker, bool, error)
}

// Service はワーカーのライフサイクルに関するユースケースをまとめます。
type Service struct {
	repo      Repository
	history   HistoryRepository
	publisher Publisher
	clock     Clock
	tx        TransactionManager
	logger    logrus.FieldLogger
	newID     func() string
}

// NewService は Service を生成します。nil の依存はデフォルト実装で補完されます。
func NewService(repo Repository, history HistoryRepository, publisher Publisher, clock Clock, tx TransactionManager, logger logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Service{
		repo:      repo,
		history:   history,
		publisher: publisher,
		clock:     clock,
		tx:        tx,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// TransitionStatusInput はオペレーターによるステータス遷移の入力です。
type TransitionStatusInput struct {
	TenantID    string
	WorkerID    string
	Status      string
	Reason      *string
	Notes       *string
	ActorUserID *string
}

// TransitionResult は遷移の結果です。Rejection が非 nil の場合は何も変更されていません。
type TransitionResult struct {
	Worker    *Worker
	Entry     *StatusHistoryEntry
	Rejection *Rejection
}

// GetWorkerInput はワーカー単体を指定する入力です。
type GetWorkerInput struct {
	TenantID string
	ID       string
}

// ListWorkersInput は一覧取得時の入力です。
type ListWorkersInput struct {
	TenantID  string
	Status    *Status
	Category  *Category
	PageSize  int
	PageToken string
}

// UpdateProfileInput はプロフィール更新の入力です。Skills と Languages は全件置き換えです。
type UpdateProfileInput struct {
	TenantID  string
	ID        string
	Profile   Profile
	Skills    []Skill
	Languages []Language
}

// ListWorkersResult は一覧取得結果を表します。
type ListWorkersResult struct {
	Workers       []*Worker
	NextPageToken string
}

// TransitionStatus はオペレーターの指示でステータスを遷移させます。
func (s *Service) TransitionStatus(ctx context.Context, in TransitionStatusInput) (*TransitionResult, error) {
	tenantID, workerID, err := normalizeScope(in.TenantID, in.WorkerID)
	if err != nil {
		return nil, err
	}

	target, err := ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}

	// オペレーター起因の履歴は必ず操作者を持つ。操作者なしの履歴はシステム起因として扱われる。
	actorRaw := normalizeOptional(in.ActorUserID)
	if actorRaw == nil {
		return nil, ErrActorRequired
	}
	actor, err := normalizeUUID(*actorRaw)
	if err != nil {
		return nil, fmt.Errorf("actor_user_id: %w", ErrInvalidID)
	}

	reason := normalizeOptional(in.Reason)
	notes := normalizeOptional(in.Notes)

	out, err := s.transition(ctx, tenantID, workerID, func(_ context.Context, w *Worker) (decision, error) {
		if rejection := Validate(w.Status, target, reason); rejection != nil {
			return decision{rejection: rejection}, nil
		}
		return decision{change: &statusChange{
			Target:       target,
			StatusReason: reason,
			LedgerReason: reason,
			Notes:        notes,
			ActorUserID:  &actor,
			Source:       SourceOperator,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	if out.rejection != nil {
		s.logger.WithFields(logrus.Fields{
			"event":     "TransitionRejected",
			"tenant_id": tenantID,
			"worker_id": workerID,
			"from":      out.rejection.From,
			"to":        out.rejection.To,
			"code":      out.rejection.Code,
		}).Info(out.rejection.Message)
	}

	return &TransitionResult{Worker: out.worker, Entry: out.entry, Rejection: out.rejection}, nil
}

// GetValidTransitions は現在のステータスから遷移可能なステータスを返します。
func (s *Service) GetValidTransitions(ctx context.Context, in GetWorkerInput) ([]Status, error) {
	w, err := s.GetWorker(ctx, in)
	if err != nil {
		return nil, err
	}
	return AllowedTransitions(w.Status), nil
}

// GetWorker はワーカーを取得します。
func (s *Service) GetWorker(ctx context.Context, in GetWorkerInput) (*Worker, error) {
	tenantID, id, err := normalizeScope(in.TenantID, in.ID)
	if err != nil {
		return nil, err
	}

	var result *Worker
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListStatusHistory はステータス履歴を新しい順に返します。
func (s *Service) ListStatusHistory(ctx context.Context, in GetWorkerInput) ([]*StatusHistoryEntry, error) {
	tenantID, id, err := normalizeScope(in.TenantID, in.ID)
	if err != nil {
		return nil, err
	}

	var entries []*StatusHistoryEntry
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, tenantID, id); err != nil {
			return err
		}
		found, err := s.history.ListByWorker(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		entries = found
		return nil
	}); err != nil {
		return nil, err
	}

	return entries, nil
}

// ListWorkers はワーカーの一覧を取得します。
func (s *Service) ListWorkers(ctx context.Context, in ListWorkersInput) (*ListWorkersResult, error) {
	tenantID, err := normalizeUUID(in.TenantID)
	if err != nil {
		return nil, ErrInvalidTenantID
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	statuses, err := statusFilter(in.Status, in.Category)
	if err != nil {
		return nil, err
	}

	var (
		workers   []*Worker
		nextToken string
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, token, err := s.repo.List(txCtx, ListWorkersFilter{
			TenantID: tenantID,
			Statuses: statuses,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return err
		}
		workers = found
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListWorkersResult{Workers: workers, NextPageToken: nextToken}, nil
}

// DeleteWorker はワーカーを論理削除します。物理削除は行いません。
func (s *Service) DeleteWorker(ctx context.Context, in GetWorkerInput) error {
	tenantID, id, err := normalizeScope(in.TenantID, in.ID)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.SoftDelete(txCtx, tenantID, id, s.clock.Now())
	})
}

// UpdateProfile はプロフィールを更新します。ステータス関連の列と履歴は変更しないため、
// 終端ステータスのワーカーでも更新できます。
func (s *Service) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*Worker, error) {
	tenantID, id, err := normalizeScope(in.TenantID, in.ID)
	if err != nil {
		return nil, err
	}

	profile, err := normalizeProfile(in.Profile)
	if err != nil {
		return nil, err
	}
	skills := make([]Skill, 0, len(in.Skills))
	for _, sk := range in.Skills {
		name := strings.TrimSpace(sk.SkillName)
		if name == "" {
			return nil, fmt.Errorf("skill name: %w", ErrInvalidProfile)
		}
		skills = append(skills, Skill{SkillName: name, ProficiencyLevel: strings.TrimSpace(sk.ProficiencyLevel)})
	}
	languages := make([]Language, 0, len(in.Languages))
	for _, l := range in.Languages {
		lang := strings.TrimSpace(l.Language)
		if lang == "" {
			return nil, fmt.Errorf("language: %w", ErrInvalidProfile)
		}
		languages = append(languages, Language{Language: lang, ProficiencyLevel: strings.TrimSpace(l.ProficiencyLevel)})
	}

	var result *Worker
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		w, err := s.repo.FindByID(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		w.Profile = profile
		w.Skills = skills
		w.Languages = languages
		w.UpdatedAt = s.clock.Now()

		updated, err := s.repo.UpdateProfile(txCtx, w)
		if err != nil {
			return err
		}
		result = updated
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event":     "WorkerProfileUpdated",
		"tenant_id": tenantID,
		"worker_id": id,
		"version":   result.Version,
	}).Info("worker profile updated")

	return result, nil
}

func normalizeProfile(p Profile) (Profile, error) {
	p.FullNameEn = strings.TrimSpace(p.FullNameEn)
	if p.FullNameEn == "" {
		return Profile{}, fmt.Errorf("full name: %w", ErrInvalidProfile)
	}
	p.Nationality = strings.TrimSpace(p.Nationality)
	if p.Nationality == "" {
		return Profile{}, fmt.Errorf("nationality: %w", ErrInvalidProfile)
	}
	p.SourceType = strings.TrimSpace(p.SourceType)
	if p.SourceType == "" {
		return Profile{}, fmt.Errorf("source type: %w", ErrInvalidProfile)
	}
	if p.ExperienceYears != nil && *p.ExperienceYears < 0 {
		return Profile{}, fmt.Errorf("experience years: %w", ErrInvalidProfile)
	}
	for name, ref := range map[string]**string{"job category id": &p.JobCategoryID, "tenant supplier id": &p.TenantSupplierID} {
		raw := normalizeOptional(*ref)
		if raw == nil {
			*ref = nil
			continue
		}
		id, err := normalizeUUID(*raw)
		if err != nil {
			return Profile{}, fmt.Errorf("%s: %w", name, ErrInvalidProfile)
		}
		*ref = &id
	}
	return p, nil
}

func statusFilter(status *Status, category *Category) ([]Status, error) {
	switch {
	case status != nil && category != nil:
		if !status.IsValid() {
			return nil, ErrInvalidStatus
		}
		if CategoryOf(*status) != *category {
			return []Status{}, nil
		}
		return []Status{*status}, nil
	case status != nil:
		if !status.IsValid() {
			return nil, ErrInvalidStatus
		}
		return []Status{*status}, nil
	case category != nil:
		statuses := StatusesIn(*category)
		if len(statuses) == 0 {
			return nil, ErrInvalidCategory
		}
		return statuses, nil
	default:
		return nil, nil
	}
}

func normalizeScope(rawTenantID, rawID string) (string, string, error) {
	tenantID, err := normalizeUUID(rawTenantID)
	if err != nil {
		return "", "", ErrInvalidTenantID
	}
	id, err := normalizeUUID(rawID)
	if err != nil {
		return "", "", fmt.Errorf("id: %w", ErrInvalidID)
	}
	return tenantID, id, nil
}

func normalizeUUID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
