package handler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldProfile   = "profile"
	fieldSkills    = "skills"
	fieldLanguages = "languages"
)

// UpdateWorkerProfile はプロフィールとスキル・言語を置き換えます。
// profile のキーは GetWorker が返す worker と同じ snake_case です。
func (h *WorkerGrpcHandler) UpdateWorkerProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	profile, err := profileFromStruct(req.GetFields()[fieldProfile].GetStructValue())
	if err != nil {
		return nil, toStatusError(err)
	}

	var skills []worker.Skill
	for _, v := range req.GetFields()[fieldSkills].GetListValue().GetValues() {
		item := v.GetStructValue()
		skills = append(skills, worker.Skill{
			SkillName:        stringField(item, "skill_name"),
			ProficiencyLevel: stringField(item, "proficiency_level"),
		})
	}
	var languages []worker.Language
	for _, v := range req.GetFields()[fieldLanguages].GetListValue().GetValues() {
		item := v.GetStructValue()
		languages = append(languages, worker.Language{
			Language:         stringField(item, "language"),
			ProficiencyLevel: stringField(item, "proficiency_level"),
		})
	}

	updated, err := h.svc.UpdateProfile(ctx, worker.UpdateProfileInput{
		TenantID:  stringField(req, fieldTenantID),
		ID:        stringField(req, fieldWorkerID),
		Profile:   profile,
		Skills:    skills,
		Languages: languages,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"worker": workerToMap(updated)})
}

func profileFromStruct(s *structpb.Struct) (worker.Profile, error) {
	if s == nil {
		return worker.Profile{}, fmt.Errorf("profile: %w", worker.ErrInvalidProfile)
	}

	dob, err := dateField(s, "date_of_birth")
	if err != nil {
		return worker.Profile{}, err
	}
	expiry, err := dateField(s, "passport_expiry")
	if err != nil {
		return worker.Profile{}, err
	}
	experience, err := experienceField(s, "experience_years")
	if err != nil {
		return worker.Profile{}, err
	}
	salary, err := salaryField(s, "monthly_salary")
	if err != nil {
		return worker.Profile{}, err
	}

	return worker.Profile{
		FullNameEn:          stringField(s, "full_name_en"),
		FullNameAr:          optionalStringField(s, "full_name_ar"),
		Nationality:         stringField(s, "nationality"),
		DateOfBirth:         dob,
		Gender:              optionalStringField(s, "gender"),
		PassportNumber:      optionalStringField(s, "passport_number"),
		PassportExpiry:      expiry,
		Phone:               optionalStringField(s, "phone"),
		Email:               optionalStringField(s, "email"),
		Religion:            optionalStringField(s, "religion"),
		MaritalStatus:       optionalStringField(s, "marital_status"),
		EducationLevel:      optionalStringField(s, "education_level"),
		JobCategoryID:       optionalStringField(s, "job_category_id"),
		ExperienceYears:     experience,
		MonthlySalary:       salary,
		PhotoURL:            optionalStringField(s, "photo_url"),
		VideoURL:            optionalStringField(s, "video_url"),
		PassportDocumentURL: optionalStringField(s, "passport_document_url"),
		SourceType:          stringField(s, "source_type"),
		TenantSupplierID:    optionalStringField(s, "tenant_supplier_id"),
	}, nil
}

func dateField(s *structpb.Struct, key string) (*time.Time, error) {
	raw := optionalStringField(s, key)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
	}
	return &t, nil
}

func experienceField(s *structpb.Struct, key string) (*int, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
		}
		years := int(n)
		return &years, nil
	default:
		return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
	}
}

// salaryField は数値または文字列の金額を 10 進表記の文字列で返します。
func salaryField(s *structpb.Struct, key string) (*string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	var amount float64
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		amount = kind.NumberValue
	case *structpb.Value_StringValue:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(kind.StringValue), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
		}
		amount = parsed
	default:
		return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || math.Abs(amount) >= 9999999999.995 {
		return nil, fmt.Errorf("%s: %w", key, worker.ErrInvalidProfile)
	}
	text := strconv.FormatFloat(amount, 'f', 2, 64)
	return &text, nil
}
