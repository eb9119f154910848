package handler

import (
	"context"
	"math"
	"time"

	"github.com/ogurasousui/worker-lifecycle/internal/adapters/grpc/workerapi"
	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"github.com/ogurasousui/worker-lifecycle/internal/platform/metrics"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldTenantID    = "tenant_id"
	fieldWorkerID    = "worker_id"
	fieldStatus      = "status"
	fieldReason      = "reason"
	fieldNotes       = "notes"
	fieldActorUserID = "actor_user_id"
	fieldPageSize    = "page_size"
	fieldPageToken   = "page_token"
	fieldCategory    = "category"
)

const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// WorkerGrpcHandler は WorkerService の gRPC 実装です。
type WorkerGrpcHandler struct {
	svc worker.UseCase
	workerapi.UnimplementedWorkerServiceServer
}

// NewWorkerGrpcHandler は WorkerGrpcHandler を生成します。
func NewWorkerGrpcHandler(svc worker.UseCase) *WorkerGrpcHandler {
	return &WorkerGrpcHandler{svc: svc}
}

// TransitionWorkerStatus はオペレーターによるステータス遷移を行います。
func (h *WorkerGrpcHandler) TransitionWorkerStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result, err := h.svc.TransitionStatus(ctx, worker.TransitionStatusInput{
		TenantID:    stringField(req, fieldTenantID),
		WorkerID:    stringField(req, fieldWorkerID),
		Status:      stringField(req, fieldStatus),
		Reason:      optionalStringField(req, fieldReason),
		Notes:       optionalStringField(req, fieldNotes),
		ActorUserID: optionalStringField(req, fieldActorUserID),
	})
	if err != nil {
		metrics.RecordTransition(ctx, string(worker.SourceOperator), outcomeError)
		return nil, toStatusError(err)
	}
	if result.Rejection != nil {
		metrics.RecordTransition(ctx, string(worker.SourceOperator), outcomeRejected)
		return nil, toStatusError(result.Rejection)
	}
	metrics.RecordTransition(ctx, string(worker.SourceOperator), outcomeApplied)

	return newStruct(map[string]any{
		"worker": workerToMap(result.Worker),
		"entry":  entryToMap(result.Entry),
	})
}

// GetValidTransitions は遷移可能なステータスを返します。
func (h *WorkerGrpcHandler) GetValidTransitions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	statuses, err := h.svc.GetValidTransitions(ctx, workerInput(req))
	if err != nil {
		return nil, toStatusError(err)
	}

	values := make([]any, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return newStruct(map[string]any{"statuses": values})
}

// GetWorker はワーカーを取得します。
func (h *WorkerGrpcHandler) GetWorker(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	found, err := h.svc.GetWorker(ctx, workerInput(req))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"worker": workerToMap(found)})
}

// ListWorkers はワーカーの一覧を取得します。
func (h *WorkerGrpcHandler) ListWorkers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	pageSize, err := intField(req, fieldPageSize)
	if err != nil {
		return nil, toStatusError(err)
	}

	var statusPtr *worker.Status
	if raw := stringField(req, fieldStatus); raw != "" {
		parsed, err := worker.ParseStatus(raw)
		if err != nil {
			return nil, toStatusError(err)
		}
		statusPtr = &parsed
	}

	var categoryPtr *worker.Category
	if raw := stringField(req, fieldCategory); raw != "" {
		parsed, err := worker.ParseCategory(raw)
		if err != nil {
			return nil, toStatusError(err)
		}
		categoryPtr = &parsed
	}

	result, err := h.svc.ListWorkers(ctx, worker.ListWorkersInput{
		TenantID:  stringField(req, fieldTenantID),
		Status:    statusPtr,
		Category:  categoryPtr,
		PageSize:  pageSize,
		PageToken: stringField(req, fieldPageToken),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	workers := make([]any, 0, len(result.Workers))
	for _, w := range result.Workers {
		workers = append(workers, workerToMap(w))
	}

	return newStruct(map[string]any{
		"workers":         workers,
		"next_page_token": result.NextPageToken,
	})
}

// ListStatusHistory はステータス履歴を新しい順に返します。
func (h *WorkerGrpcHandler) ListStatusHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	entries, err := h.svc.ListStatusHistory(ctx, workerInput(req))
	if err != nil {
		return nil, toStatusError(err)
	}

	values := make([]any, 0, len(entries))
	for _, e := range entries {
		values = append(values, entryToMap(e))
	}
	return newStruct(map[string]any{"entries": values})
}

// DeleteWorker はワーカーを論理削除します。
func (h *WorkerGrpcHandler) DeleteWorker(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := h.svc.DeleteWorker(ctx, workerInput(req)); err != nil {
		return nil, toStatusError(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func workerInput(req *structpb.Struct) worker.GetWorkerInput {
	return worker.GetWorkerInput{
		TenantID: stringField(req, fieldTenantID),
		ID:       stringField(req, fieldWorkerID),
	}
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func optionalStringField(req *structpb.Struct, key string) *string {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil
	}
	return &s.StringValue
}

func intField(req *structpb.Struct, key string) (int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
			return 0, worker.ErrInvalidPageSize
		}
		return int(n), nil
	default:
		return 0, worker.ErrInvalidPageSize
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func workerToMap(w *worker.Worker) map[string]any {
	if w == nil {
		return nil
	}

	skills := make([]any, 0, len(w.Skills))
	for _, s := range w.Skills {
		skills = append(skills, map[string]any{
			"skill_name":        s.SkillName,
			"proficiency_level": s.ProficiencyLevel,
		})
	}
	languages := make([]any, 0, len(w.Languages))
	for _, l := range w.Languages {
		languages = append(languages, map[string]any{
			"language":          l.Language,
			"proficiency_level": l.ProficiencyLevel,
		})
	}

	p := w.Profile
	var experience any
	if p.ExperienceYears != nil {
		experience = *p.ExperienceYears
	}

	return map[string]any{
		"id":                    w.ID,
		"tenant_id":             w.TenantID,
		"worker_code":           w.WorkerCode,
		"candidate_id":          w.CandidateID,
		"status":                string(w.Status),
		"category":              string(worker.CategoryOf(w.Status)),
		"status_changed_at":     timeValue(w.StatusChangedAt),
		"status_reason":         stringValue(w.StatusReason),
		"activated_at":          timeValue(w.ActivatedAt),
		"terminated_at":         timeValue(w.TerminatedAt),
		"termination_reason":    stringValue(w.TerminationReason),
		"full_name_en":          p.FullNameEn,
		"full_name_ar":          stringValue(p.FullNameAr),
		"nationality":           p.Nationality,
		"date_of_birth":         dateValue(p.DateOfBirth),
		"gender":                stringValue(p.Gender),
		"passport_number":       stringValue(p.PassportNumber),
		"passport_expiry":       dateValue(p.PassportExpiry),
		"phone":                 stringValue(p.Phone),
		"email":                 stringValue(p.Email),
		"religion":              stringValue(p.Religion),
		"marital_status":        stringValue(p.MaritalStatus),
		"education_level":       stringValue(p.EducationLevel),
		"job_category_id":       stringValue(p.JobCategoryID),
		"experience_years":      experience,
		"monthly_salary":        stringValue(p.MonthlySalary),
		"photo_url":             stringValue(p.PhotoURL),
		"video_url":             stringValue(p.VideoURL),
		"passport_document_url": stringValue(p.PassportDocumentURL),
		"source_type":           p.SourceType,
		"tenant_supplier_id":    stringValue(p.TenantSupplierID),
		"skills":                skills,
		"languages":             languages,
		"version":               w.Version,
		"created_at":            w.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":            w.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func entryToMap(e *worker.StatusHistoryEntry) map[string]any {
	if e == nil {
		return nil
	}

	var from any
	if e.FromStatus != nil {
		from = string(*e.FromStatus)
	}

	return map[string]any{
		"id":                 e.ID,
		"worker_id":          e.WorkerID,
		"from_status":        from,
		"to_status":          string(e.ToStatus),
		"changed_at":         e.ChangedAt.UTC().Format(time.RFC3339Nano),
		"changed_by_user_id": stringValue(e.ChangedByUserID),
		"reason":             stringValue(e.Reason),
		"notes":              stringValue(e.Notes),
		"source":             string(e.Source),
		"related_entity_id":  stringValue(e.RelatedEntityID),
		"is_system":          e.IsSystem(),
	}
}

func stringValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.DateOnly)
}

var _ workerapi.WorkerServiceServer = (*WorkerGrpcHandler)(nil)
