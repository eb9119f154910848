package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"
)

const (
	tenantA    = "11111111-1111-1111-1111-111111111111"
	tenantB    = "22222222-2222-2222-2222-222222222222"
	workerA    = "aaaaaaaa-0000-0000-0000-000000000001"
	contractA  = "cccccccc-0000-0000-0000-000000000001"
	candidateA = "dddddddd-0000-0000-0000-000000000001"
	operatorID = "eeeeeeee-0000-0000-0000-000000000001"
)

func operator() *string {
	id := operatorID
	return &id
}

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

func (s *stubClock) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

type fakeWorkerRepo struct {
	workers   map[string]*Worker
	updateErr error
	createErr error
	updates   int
}

func newFakeWorkerRepo() *fakeWorkerRepo {
	return &fakeWorkerRepo{workers: make(map[string]*Worker)}
}

func (r *fakeWorkerRepo) seed(w *Worker) {
	r.workers[w.ID] = cloneWorker(w)
}

func (r *fakeWorkerRepo) Create(_ context.Context, w *Worker) (*Worker, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.workers {
		if existing.TenantID != w.TenantID {
			continue
		}
		if existing.CandidateID == w.CandidateID {
			return nil, ErrWorkerAlreadyExists
		}
		if existing.WorkerCode == w.WorkerCode {
			return nil, ErrWorkerCodeAlreadyExists
		}
	}
	clone := cloneWorker(w)
	clone.Version = 1
	r.workers[w.ID] = clone
	return cloneWorker(clone), nil
}

func (r *fakeWorkerRepo) Update(_ context.Context, w *Worker) (*Worker, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	existing, ok := r.workers[w.ID]
	if !ok || existing.TenantID != w.TenantID {
		return nil, ErrWorkerNotFound
	}
	if existing.Version != w.Version {
		return nil, ErrConcurrentModification
	}
	clone := cloneWorker(w)
	clone.Version++
	r.workers[w.ID] = clone
	r.updates++
	return cloneWorker(clone), nil
}

func (r *fakeWorkerRepo) UpdateProfile(_ context.Context, w *Worker) (*Worker, error) {
	existing, ok := r.workers[w.ID]
	if !ok || existing.TenantID != w.TenantID {
		return nil, ErrWorkerNotFound
	}
	if existing.Version != w.Version {
		return nil, ErrConcurrentModification
	}
	clone := cloneWorker(existing)
	clone.Profile = w.Profile
	clone.Skills = append([]Skill(nil), w.Skills...)
	clone.Languages = append([]Language(nil), w.Languages...)
	clone.UpdatedAt = w.UpdatedAt
	clone.Version++
	r.workers[w.ID] = clone
	return cloneWorker(clone), nil
}

func (r *fakeWorkerRepo) FindByID(_ context.Context, tenantID, id string) (*Worker, error) {
	w, ok := r.workers[id]
	if !ok || w.TenantID != tenantID || w.DeletedAt != nil {
		return nil, ErrWorkerNotFound
	}
	return cloneWorker(w), nil
}

func (r *fakeWorkerRepo) FindByCandidate(_ context.Context, tenantID, candidateID string) (*Worker, error) {
	for _, w := range r.workers {
		if w.TenantID == tenantID && w.CandidateID == candidateID {
			return cloneWorker(w), nil
		}
	}
	return nil, ErrWorkerNotFound
}

func (r *fakeWorkerRepo) MaxWorkerCode(_ context.Context, tenantID string) (string, error) {
	maxCode := ""
	for _, w := range r.workers {
		if w.TenantID != tenantID {
			continue
		}
		if len(w.WorkerCode) > len(maxCode) || (len(w.WorkerCode) == len(maxCode) && w.WorkerCode > maxCode) {
			maxCode = w.WorkerCode
		}
	}
	return maxCode, nil
}

func (r *fakeWorkerRepo) List(_ context.Context, filter ListWorkersFilter) ([]*Worker, string, error) {
	var filtered []*Worker
	for _, w := range r.workers {
		if w.TenantID != filter.TenantID || w.DeletedAt != nil {
			continue
		}
		if filter.Statuses != nil && !containsStatus(filter.Statuses, w.Status) {
			continue
		}
		filtered = append(filtered, cloneWorker(w))
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].WorkerCode < filtered[j].WorkerCode })

	if filter.Offset > len(filtered) {
		return []*Worker{}, "", nil
	}
	end := filter.Offset + filter.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	}
	return filtered[filter.Offset:end], next, nil
}

func (r *fakeWorkerRepo) SoftDelete(_ context.Context, tenantID, id string, at time.Time) error {
	w, ok := r.workers[id]
	if !ok || w.TenantID != tenantID || w.DeletedAt != nil {
		return ErrWorkerNotFound
	}
	w.DeletedAt = &at
	return nil
}

func cloneWorker(w *Worker) *Worker {
	if w == nil {
		return nil
	}
	c := *w
	c.StatusChangedAt = cloneTime(w.StatusChangedAt)
	c.StatusReason = cloneString(w.StatusReason)
	c.ActivatedAt = cloneTime(w.ActivatedAt)
	c.TerminatedAt = cloneTime(w.TerminatedAt)
	c.TerminationReason = cloneString(w.TerminationReason)
	c.DeletedAt = cloneTime(w.DeletedAt)
	c.Skills = append([]Skill(nil), w.Skills...)
	c.Languages = append([]Language(nil), w.Languages...)
	return &c
}

type fakeHistoryRepo struct {
	entries   []*StatusHistoryEntry
	appendErr error
}

func (r *fakeHistoryRepo) Append(_ context.Context, e *StatusHistoryEntry) (*StatusHistoryEntry, error) {
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	c := *e
	r.entries = append(r.entries, &c)
	return &c, nil
}

func (r *fakeHistoryRepo) ListByWorker(_ context.Context, tenantID, workerID string) ([]*StatusHistoryEntry, error) {
	var out []*StatusHistoryEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TenantID == tenantID && e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) ExistsSince(_ context.Context, q HistoryLookup) (bool, error) {
	for _, e := range r.entries {
		if e.TenantID != q.TenantID || e.WorkerID != q.WorkerID || e.Source != q.Source {
			continue
		}
		if e.RelatedEntityID == nil || *e.RelatedEntityID != q.RelatedEntityID {
			continue
		}
		if e.Reason == nil || *e.Reason != q.Reason {
			continue
		}
		if q.Since != nil && e.ChangedAt.Before(*q.Since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (r *fakeHistoryRepo) forWorker(workerID string) []*StatusHistoryEntry {
	var out []*StatusHistoryEntry
	for _, e := range r.entries {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out
}

type recordingPublisher struct {
	changed   []StatusChanged
	absconded []Absconded
	err       error
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, ev StatusChanged) error {
	p.changed = append(p.changed, ev)
	return p.err
}

func (p *recordingPublisher) PublishAbsconded(_ context.Context, ev Absconded) error {
	p.absconded = append(p.absconded, ev)
	return p.err
}

type recordingTx struct {
	readWrite int
	readOnly  int
}

func (t *recordingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	t.readOnly++
	return fn(ctx)
}

func (t *recordingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	t.readWrite++
	return fn(ctx)
}

type fixture struct {
	repo      *fakeWorkerRepo
	history   *fakeHistoryRepo
	publisher *recordingPublisher
	clock     *stubClock
	tx        *recordingTx
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newFakeWorkerRepo(),
		history:   &fakeHistoryRepo{},
		publisher: &recordingPublisher{},
		clock:     &stubClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		tx:        &recordingTx{},
	}
	f.svc = NewService(f.repo, f.history, f.publisher, f.clock, f.tx, nil)
	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", seq)
	}
	return f
}

func (f *fixture) seedWorker(status Status) *Worker {
	w := &Worker{
		ID:          workerA,
		TenantID:    tenantA,
		WorkerCode:  "WRK-000001",
		CandidateID: candidateA,
		Status:      status,
		Version:     1,
	}
	f.repo.seed(w)
	return w
}

func TestService_TransitionStatus_Success(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)

	actor := operatorID
	notes := "  client interview booked "
	result, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      "booked",
		Notes:       &notes,
		ActorUserID: &actor,
	})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if result.Rejection != nil {
		t.Fatalf("unexpected rejection: %v", result.Rejection)
	}
	if result.Worker.Status != StatusBooked {
		t.Fatalf("expected Booked, got %s", result.Worker.Status)
	}
	if result.Worker.StatusChangedAt == nil || !result.Worker.StatusChangedAt.Equal(f.clock.now) {
		t.Fatalf("expected status_changed_at to use clock now, got %v", result.Worker.StatusChangedAt)
	}
	if result.Worker.Version != 2 {
		t.Fatalf("expected version bump, got %d", result.Worker.Version)
	}

	entries := f.history.forWorker(workerA)
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	e := entries[0]
	if e.FromStatus == nil || *e.FromStatus != StatusAvailable || e.ToStatus != StatusBooked {
		t.Fatalf("unexpected ledger transition: %+v", e)
	}
	if e.ChangedByUserID == nil || *e.ChangedByUserID != operatorID {
		t.Fatalf("expected actor recorded, got %+v", e.ChangedByUserID)
	}
	if e.Notes == nil || *e.Notes != "client interview booked" {
		t.Fatalf("expected trimmed notes, got %+v", e.Notes)
	}
	if e.Source != SourceOperator {
		t.Fatalf("expected operator source, got %s", e.Source)
	}

	if len(f.publisher.changed) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.publisher.changed))
	}
	ev := f.publisher.changed[0]
	if ev.TenantID != tenantA || ev.WorkerID != workerA || ev.ToStatus != StatusBooked || *ev.FromStatus != StatusAvailable {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(f.publisher.absconded) != 0 {
		t.Fatalf("unexpected absconded event")
	}
	if f.tx.readWrite != 1 {
		t.Fatalf("expected one read-write transaction, got %d", f.tx.readWrite)
	}
}

func TestService_TransitionStatus_RejectionLeavesAggregateUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusActive)

	result, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      string(StatusTerminated),
		ActorUserID: operator(),
	})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if result.Rejection == nil || result.Rejection.Code != RejectReasonRequired {
		t.Fatalf("expected reason_required rejection, got %+v", result.Rejection)
	}
	if result.Rejection.Message != "reason is required for this transition" {
		t.Fatalf("unexpected message %q", result.Rejection.Message)
	}
	if f.repo.updates != 0 || len(f.history.entries) != 0 || len(f.publisher.changed) != 0 {
		t.Fatalf("rejected transition must not mutate or publish")
	}
	if f.repo.workers[workerA].Status != StatusActive {
		t.Fatalf("status changed on rejection")
	}
}

func TestService_TransitionStatus_TerminalFrozen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusDeceased)

	reason := "data fix"
	result, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      string(StatusAvailable),
		Reason:      &reason,
		ActorUserID: operator(),
	})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if result.Rejection == nil || result.Rejection.Code != RejectTerminalSource {
		t.Fatalf("expected terminal rejection, got %+v", result.Rejection)
	}
}

func TestService_TransitionStatus_ActivatedAtAndTerminatedAtSetOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusOnProbation)
	ctx := context.Background()

	steps := []struct {
		status string
		reason string
	}{
		{string(StatusActive), ""},
		{string(StatusTerminated), "contract breach"},
		{string(StatusAvailable), ""},
		{string(StatusBooked), ""},
		{string(StatusHired), ""},
		{string(StatusOnProbation), ""},
		{string(StatusActive), ""},
		{string(StatusPendingReplacement), "client request"},
	}

	firstActivation := f.clock.now
	var firstTermination time.Time
	for i, step := range steps {
		var reason *string
		if step.reason != "" {
			r := step.reason
			reason = &r
		}
		if i == 1 {
			firstTermination = f.clock.now
		}
		result, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: workerA, Status: step.status, Reason: reason, ActorUserID: operator()})
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if result.Rejection != nil {
			t.Fatalf("step %d: unexpected rejection: %v", i, result.Rejection)
		}
		f.clock.advance(time.Hour)
	}

	w := f.repo.workers[workerA]
	if w.ActivatedAt == nil || !w.ActivatedAt.Equal(firstActivation) {
		t.Fatalf("activated_at must be set once, got %v want %v", w.ActivatedAt, firstActivation)
	}
	if w.TerminatedAt == nil || !w.TerminatedAt.Equal(firstTermination) {
		t.Fatalf("terminated_at must be set once, got %v want %v", w.TerminatedAt, firstTermination)
	}
	if w.TerminationReason == nil || *w.TerminationReason != "contract breach" {
		t.Fatalf("termination reason must be the first one, got %+v", w.TerminationReason)
	}
	if len(f.history.forWorker(workerA)) != len(steps) {
		t.Fatalf("expected %d ledger entries, got %d", len(steps), len(f.history.forWorker(workerA)))
	}

	// 履歴の to を順に辿るとグラフ上の正当な経路になっている。
	prev := StatusOnProbation
	for _, e := range f.history.forWorker(workerA) {
		if *e.FromStatus != prev || !CanTransition(prev, e.ToStatus) {
			t.Fatalf("ledger walk broken at %s -> %s", prev, e.ToStatus)
		}
		prev = e.ToStatus
	}
}

func TestService_TransitionStatus_AbscondedPublishesAlert(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusActive)

	reason := "left employer residence"
	if _, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      string(StatusAbsconded),
		Reason:      &reason,
		ActorUserID: operator(),
	}); err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}

	if len(f.publisher.changed) != 1 || len(f.publisher.absconded) != 1 {
		t.Fatalf("expected status changed and absconded events, got %d/%d", len(f.publisher.changed), len(f.publisher.absconded))
	}
	if f.publisher.absconded[0].Reason == nil || *f.publisher.absconded[0].Reason != reason {
		t.Fatalf("unexpected absconded event: %+v", f.publisher.absconded[0])
	}
}

func TestService_TransitionStatus_PublishFailureDoesNotRollback(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	f.publisher.err = errors.New("broker down")

	result, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      string(StatusBooked),
		ActorUserID: operator(),
	})
	if err != nil {
		t.Fatalf("publish failure must not surface: %v", err)
	}
	if result.Worker.Status != StatusBooked || f.repo.workers[workerA].Status != StatusBooked {
		t.Fatalf("transition must stay committed")
	}
}

func TestService_TransitionStatus_ConcurrentModification(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	f.repo.updateErr = ErrConcurrentModification

	_, err := f.svc.TransitionStatus(context.Background(), TransitionStatusInput{
		TenantID:    tenantA,
		WorkerID:    workerA,
		Status:      string(StatusBooked),
		ActorUserID: operator(),
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if len(f.history.entries) != 0 || len(f.publisher.changed) != 0 {
		t.Fatalf("conflict must not append or publish")
	}
}

func TestService_TransitionStatus_InvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	ctx := context.Background()

	if _, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: "nope", Status: "Booked", ActorUserID: operator()}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: "", WorkerID: workerA, Status: "Booked", ActorUserID: operator()}); !errors.Is(err, ErrInvalidTenantID) {
		t.Fatalf("expected ErrInvalidTenantID, got %v", err)
	}
	if _, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: workerA, Status: "Flying", ActorUserID: operator()}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantB, WorkerID: workerA, Status: "Booked", ActorUserID: operator()}); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected tenant scoping to hide worker, got %v", err)
	}
}

func TestService_TransitionStatus_RequiresActor(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	ctx := context.Background()

	blank := "   "
	for name, actor := range map[string]*string{"missing": nil, "blank": &blank} {
		_, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: workerA, Status: "Booked", ActorUserID: actor})
		if !errors.Is(err, ErrActorRequired) {
			t.Fatalf("%s: expected ErrActorRequired, got %v", name, err)
		}
	}
	if f.repo.updates != 0 || len(f.history.entries) != 0 {
		t.Fatalf("transition without actor must not touch the aggregate")
	}

	result, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: workerA, Status: "Booked", ActorUserID: operator()})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if result.Entry.IsSystem() || result.Entry.Source != SourceOperator {
		t.Fatalf("operator entry must not be system-triggered: %+v", result.Entry)
	}
}

func TestService_GetValidTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusHired)

	got, err := f.svc.GetValidTransitions(context.Background(), GetWorkerInput{TenantID: tenantA, ID: workerA})
	if err != nil {
		t.Fatalf("GetValidTransitions returned error: %v", err)
	}
	want := []Status{StatusOnProbation, StatusAvailable, StatusDeceased}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestService_ListStatusHistory_NewestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	ctx := context.Background()

	for _, s := range []Status{StatusBooked, StatusHired} {
		if _, err := f.svc.TransitionStatus(ctx, TransitionStatusInput{TenantID: tenantA, WorkerID: workerA, Status: string(s), ActorUserID: operator()}); err != nil {
			t.Fatalf("TransitionStatus: %v", err)
		}
		f.clock.advance(time.Minute)
	}

	entries, err := f.svc.ListStatusHistory(ctx, GetWorkerInput{TenantID: tenantA, ID: workerA})
	if err != nil {
		t.Fatalf("ListStatusHistory returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].ToStatus != StatusHired || entries[1].ToStatus != StatusBooked {
		t.Fatalf("unexpected history order: %+v", entries)
	}

	if _, err := f.svc.ListStatusHistory(ctx, GetWorkerInput{TenantID: tenantB, ID: workerA}); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected ErrWorkerNotFound, got %v", err)
	}
}

func TestService_ListWorkers_FilterByCategory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i, s := range []Status{StatusAvailable, StatusBooked, StatusActive, StatusInTraining} {
		f.repo.seed(&Worker{
			ID:         fmt.Sprintf("aaaaaaaa-0000-0000-0000-00000000000%d", i+1),
			TenantID:   tenantA,
			WorkerCode: fmt.Sprintf("WRK-00000%d", i+1),
			Status:     s,
		})
	}

	category := CategoryPlacement
	result, err := f.svc.ListWorkers(context.Background(), ListWorkersInput{TenantID: tenantA, Category: &category, PageSize: 1})
	if err != nil {
		t.Fatalf("ListWorkers returned error: %v", err)
	}
	if len(result.Workers) != 1 || result.Workers[0].Status != StatusBooked {
		t.Fatalf("unexpected page: %+v", result.Workers)
	}
	if result.NextPageToken != "1" {
		t.Fatalf("expected next token 1, got %q", result.NextPageToken)
	}

	status := StatusAvailable
	mismatch := CategoryTerminal
	result, err = f.svc.ListWorkers(context.Background(), ListWorkersInput{TenantID: tenantA, Status: &status, Category: &mismatch})
	if err != nil {
		t.Fatalf("ListWorkers returned error: %v", err)
	}
	if len(result.Workers) != 0 {
		t.Fatalf("expected empty result for status outside category")
	}

	if _, err := f.svc.ListWorkers(context.Background(), ListWorkersInput{TenantID: tenantA, PageSize: 500}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := f.svc.ListWorkers(context.Background(), ListWorkersInput{TenantID: tenantA, PageToken: "-1"}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestService_DeleteWorker_SoftDeletes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusAvailable)
	ctx := context.Background()

	if err := f.svc.DeleteWorker(ctx, GetWorkerInput{TenantID: tenantA, ID: workerA}); err != nil {
		t.Fatalf("DeleteWorker returned error: %v", err)
	}
	if f.repo.workers[workerA] == nil || f.repo.workers[workerA].DeletedAt == nil {
		t.Fatalf("worker must be kept and marked deleted")
	}
	if _, err := f.svc.GetWorker(ctx, GetWorkerInput{TenantID: tenantA, ID: workerA}); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected ErrWorkerNotFound after delete, got %v", err)
	}
}

func TestService_UpdateProfile_LeavesLifecycleUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seeded := f.seedWorker(StatusRepatriated)
	seeded.Skills = []Skill{{SkillName: "Cooking", ProficiencyLevel: "Expert"}}
	f.repo.seed(seeded)
	f.clock.advance(time.Hour)

	category := " A1B2C3D4-0000-4000-8000-000000000001 "
	blank := ""
	updated, err := f.svc.UpdateProfile(context.Background(), UpdateProfileInput{
		TenantID: tenantA,
		ID:       workerA,
		Profile: Profile{
			FullNameEn:       "  Maria Santos Cruz ",
			Nationality:      "PH",
			SourceType:       "Supplier",
			JobCategoryID:    &category,
			TenantSupplierID: &blank,
		},
		Skills:    []Skill{{SkillName: " Childcare ", ProficiencyLevel: "Intermediate"}},
		Languages: []Language{{Language: "Arabic", ProficiencyLevel: "Basic"}},
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if updated.Status != StatusRepatriated || updated.Version != 2 {
		t.Fatalf("unexpected worker %+v", updated)
	}
	if updated.Profile.FullNameEn != "Maria Santos Cruz" {
		t.Fatalf("expected trimmed name, got %q", updated.Profile.FullNameEn)
	}
	if updated.Profile.JobCategoryID == nil || *updated.Profile.JobCategoryID != "a1b2c3d4-0000-4000-8000-000000000001" {
		t.Fatalf("expected normalized job category, got %+v", updated.Profile.JobCategoryID)
	}
	if updated.Profile.TenantSupplierID != nil {
		t.Fatalf("expected blank supplier to be cleared, got %+v", updated.Profile.TenantSupplierID)
	}
	if len(updated.Skills) != 1 || updated.Skills[0].SkillName != "Childcare" || len(updated.Languages) != 1 {
		t.Fatalf("expected children to be replaced, got %+v %+v", updated.Skills, updated.Languages)
	}
	if !updated.UpdatedAt.Equal(f.clock.now) {
		t.Fatalf("expected updated_at from clock, got %v", updated.UpdatedAt)
	}
	if len(f.history.entries) != 0 || len(f.publisher.changed) != 0 || f.repo.updates != 0 {
		t.Fatalf("profile update must not touch the ledger or lifecycle")
	}
}

func TestService_UpdateProfile_Invalid(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedWorker(StatusActive)
	ctx := context.Background()
	valid := Profile{FullNameEn: "Maria", Nationality: "PH", SourceType: "Supplier"}

	negative := -1
	badID := "not-a-uuid"
	cases := map[string]UpdateProfileInput{
		"name":       {TenantID: tenantA, ID: workerA, Profile: Profile{Nationality: "PH", SourceType: "Supplier"}},
		"experience": {TenantID: tenantA, ID: workerA, Profile: Profile{FullNameEn: "Maria", Nationality: "PH", SourceType: "Supplier", ExperienceYears: &negative}},
		"category":   {TenantID: tenantA, ID: workerA, Profile: Profile{FullNameEn: "Maria", Nationality: "PH", SourceType: "Supplier", JobCategoryID: &badID}},
		"skill":      {TenantID: tenantA, ID: workerA, Profile: valid, Skills: []Skill{{SkillName: " "}}},
		"language":   {TenantID: tenantA, ID: workerA, Profile: valid, Languages: []Language{{}}},
	}
	for name, in := range cases {
		if _, err := f.svc.UpdateProfile(ctx, in); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("%s: expected ErrInvalidProfile, got %v", name, err)
		}
	}

	if _, err := f.svc.UpdateProfile(ctx, UpdateProfileInput{TenantID: tenantB, ID: workerA, Profile: valid}); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected tenant scoping to hide worker, got %v", err)
	}
	if f.repo.workers[workerA].Version != 1 {
		t.Fatalf("invalid updates must not bump the version")
	}
}
