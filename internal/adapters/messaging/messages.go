package messaging

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
)

const (
	TopicContractStatusChanged = "contract.status_changed"
	TopicCandidateConverted    = "candidate.converted"
	TopicWorkerStatusChanged   = "worker.status_changed"
	TopicWorkerAbsconded       = "worker.absconded"
)

// salaryLimit は小数第 2 位で丸めると NUMERIC(12,2) を超える最小の絶対値です。
var salaryLimit = new(big.Rat).SetFrac64(999999999999*2+1, 200)

type contractStatusChangedMessage struct {
	TenantID        string     `json:"tenantId"`
	ContractID      string     `json:"contractId"`
	WorkerID        string     `json:"workerId"`
	FromStatus      string     `json:"fromStatus"`
	ToStatus        string     `json:"toStatus"`
	Reason          *string    `json:"reason,omitempty"`
	ChangedByUserID *string    `json:"changedByUserId,omitempty"`
	OccurredAt      *time.Time `json:"occurredAt,omitempty"`
}

type candidateConvertedMessage struct {
	TenantID      string        `json:"tenantId"`
	CandidateID   string        `json:"candidateId"`
	CandidateData candidateData `json:"candidateData"`
}

type candidateData struct {
	FullNameEn          string         `json:"fullNameEn"`
	FullNameAr          *string        `json:"fullNameAr,omitempty"`
	Nationality         string         `json:"nationality"`
	DateOfBirth         *string        `json:"dateOfBirth,omitempty"`
	Gender              *string        `json:"gender,omitempty"`
	PassportNumber      *string        `json:"passportNumber,omitempty"`
	PassportExpiry      *string        `json:"passportExpiry,omitempty"`
	Phone               *string        `json:"phone,omitempty"`
	Email               *string        `json:"email,omitempty"`
	Religion            *string        `json:"religion,omitempty"`
	MaritalStatus       *string        `json:"maritalStatus,omitempty"`
	EducationLevel      *string        `json:"educationLevel,omitempty"`
	JobCategoryID       *string        `json:"jobCategoryId,omitempty"`
	ExperienceYears     *int           `json:"experienceYears,omitempty"`
	MonthlySalary       *json.Number   `json:"monthlySalary,omitempty"`
	PhotoURL            *string        `json:"photoUrl,omitempty"`
	VideoURL            *string        `json:"videoUrl,omitempty"`
	PassportDocumentURL *string        `json:"passportDocumentUrl,omitempty"`
	SourceType          string         `json:"sourceType"`
	TenantSupplierID    *string        `json:"tenantSupplierId,omitempty"`
	Skills              []skillData    `json:"skills"`
	Languages           []languageData `json:"languages"`
}

type skillData struct {
	SkillName        string `json:"skillName"`
	ProficiencyLevel string `json:"proficiencyLevel"`
}

type languageData struct {
	Language         string `json:"language"`
	ProficiencyLevel string `json:"proficiencyLevel"`
}

type workerStatusChangedMessage struct {
	TenantID        string    `json:"tenantId"`
	WorkerID        string    `json:"workerId"`
	FromStatus      *string   `json:"fromStatus"`
	ToStatus        string    `json:"toStatus"`
	Reason          *string   `json:"reason"`
	ChangedAt       time.Time `json:"changedAt"`
	ChangedByUserID *string   `json:"changedByUserId"`
	Source          string    `json:"source"`
}

type workerAbscondedMessage struct {
	TenantID         string    `json:"tenantId"`
	WorkerID         string    `json:"workerId"`
	Reason           *string   `json:"reason"`
	Notes            *string   `json:"notes"`
	ChangedAt        time.Time `json:"changedAt"`
	ReportedByUserID *string   `json:"reportedByUserId"`
}

// DecodeContractStatusChanged は契約ステータス変更メッセージを読み取ります。
func DecodeContractStatusChanged(payload []byte) (worker.ContractStatusChanged, error) {
	var m contractStatusChangedMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return worker.ContractStatusChanged{}, fmt.Errorf("messaging: decode %s: %w", TopicContractStatusChanged, err)
	}
	return worker.ContractStatusChanged{
		TenantID:        m.TenantID,
		ContractID:      m.ContractID,
		WorkerID:        m.WorkerID,
		FromStatus:      m.FromStatus,
		ToStatus:        m.ToStatus,
		Reason:          m.Reason,
		ChangedByUserID: m.ChangedByUserID,
		OccurredAt:      m.OccurredAt,
	}, nil
}

// DecodeCandidateConverted は候補者変換メッセージを読み取ります。
func DecodeCandidateConverted(payload []byte) (worker.CandidateConverted, error) {
	var m candidateConvertedMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: decode %s: %w", TopicCandidateConverted, err)
	}

	d := m.CandidateData
	dob, err := parseDate(d.DateOfBirth)
	if err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.dateOfBirth: %w", err)
	}
	passportExpiry, err := parseDate(d.PassportExpiry)
	if err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.passportExpiry: %w", err)
	}

	salary, err := parseSalary(d.MonthlySalary)
	if err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.monthlySalary: %w", err)
	}
	jobCategoryID, err := parseOptionalUUID(d.JobCategoryID)
	if err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.jobCategoryId: %w", err)
	}
	tenantSupplierID, err := parseOptionalUUID(d.TenantSupplierID)
	if err != nil {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.tenantSupplierId: %w", err)
	}
	if d.ExperienceYears != nil && (*d.ExperienceYears < 0 || *d.ExperienceYears > math.MaxInt32) {
		return worker.CandidateConverted{}, fmt.Errorf("messaging: candidateData.experienceYears: out of range %d", *d.ExperienceYears)
	}

	snapshot := worker.CandidateSnapshot{
		Profile: worker.Profile{
			FullNameEn:          d.FullNameEn,
			FullNameAr:          d.FullNameAr,
			Nationality:         d.Nationality,
			DateOfBirth:         dob,
			Gender:              d.Gender,
			PassportNumber:      d.PassportNumber,
			PassportExpiry:      passportExpiry,
			Phone:               d.Phone,
			Email:               d.Email,
			Religion:            d.Religion,
			MaritalStatus:       d.MaritalStatus,
			EducationLevel:      d.EducationLevel,
			JobCategoryID:       jobCategoryID,
			ExperienceYears:     d.ExperienceYears,
			MonthlySalary:       salary,
			PhotoURL:            d.PhotoURL,
			VideoURL:            d.VideoURL,
			PassportDocumentURL: d.PassportDocumentURL,
			SourceType:          d.SourceType,
			TenantSupplierID:    tenantSupplierID,
		},
		Skills:    make([]worker.Skill, 0, len(d.Skills)),
		Languages: make([]worker.Language, 0, len(d.Languages)),
	}
	for _, s := range d.Skills {
		snapshot.Skills = append(snapshot.Skills, worker.Skill{SkillName: s.SkillName, ProficiencyLevel: s.ProficiencyLevel})
	}
	for _, l := range d.Languages {
		snapshot.Languages = append(snapshot.Languages, worker.Language{Language: l.Language, ProficiencyLevel: l.ProficiencyLevel})
	}

	return worker.CandidateConverted{
		TenantID:    m.TenantID,
		CandidateID: m.CandidateID,
		Snapshot:    snapshot,
	}, nil
}

func encodeStatusChanged(ev worker.StatusChanged) ([]byte, error) {
	var from *string
	if ev.FromStatus != nil {
		s := string(*ev.FromStatus)
		from = &s
	}
	return json.Marshal(workerStatusChangedMessage{
		TenantID:        ev.TenantID,
		WorkerID:        ev.WorkerID,
		FromStatus:      from,
		ToStatus:        string(ev.ToStatus),
		Reason:          ev.Reason,
		ChangedAt:       ev.ChangedAt.UTC(),
		ChangedByUserID: ev.ChangedByUserID,
		Source:          string(ev.Source),
	})
}

func encodeAbsconded(ev worker.Absconded) ([]byte, error) {
	return json.Marshal(workerAbscondedMessage{
		TenantID:         ev.TenantID,
		WorkerID:         ev.WorkerID,
		Reason:           ev.Reason,
		Notes:            ev.Notes,
		ChangedAt:        ev.ChangedAt.UTC(),
		ReportedByUserID: ev.ReportedByUserID,
	})
}

// parseDate は日付のみ、または RFC3339 の文字列を UTC の日付として解釈します。
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}

	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			t = t.UTC()
			date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &date, nil
		}
	}
	return nil, fmt.Errorf("unsupported date %q", trimmed)
}

// parseSalary は金額が NUMERIC(12,2) に収まることを確認し、元の表記のまま返します。
func parseSalary(raw *json.Number) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	text := raw.String()
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", text)
	}
	if new(big.Rat).Abs(r).Cmp(salaryLimit) >= 0 {
		return nil, fmt.Errorf("amount %q out of range", text)
	}
	return &text, nil
}

// parseOptionalUUID は空文字を未指定として扱い、それ以外は正規化した UUID を返します。
func parseOptionalUUID(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q", trimmed)
	}
	normalized := id.String()
	return &normalized, nil
}
