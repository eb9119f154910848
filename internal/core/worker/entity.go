package worker

import "time"

// Worker は派遣可能な人材在庫のライフサイクル集約です。
type Worker struct {
	ID          string
	TenantID    string
	WorkerCode  string
	CandidateID string

	Status            Status
	StatusChangedAt   *time.Time
	StatusReason      *string
	ActivatedAt       *time.Time
	TerminatedAt      *time.Time
	TerminationReason *string

	Profile   Profile
	Skills    []Skill
	Languages []Language

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Profile は変換時点の候補者情報のスナップショットです。
type Profile struct {
	FullNameEn          string
	FullNameAr          *string
	Nationality         string
	DateOfBirth         *time.Time
	Gender              *string
	PassportNumber      *string
	PassportExpiry      *time.Time
	Phone               *string
	Email               *string
	Religion            *string
	MaritalStatus       *string
	EducationLevel      *string
	JobCategoryID       *string
	ExperienceYears     *int
	MonthlySalary       *string
	PhotoURL            *string
	VideoURL            *string
	PassportDocumentURL *string
	SourceType          string
	TenantSupplierID    *string
}

// Skill はワーカーのスキルです。
type Skill struct {
	SkillName        string
	ProficiencyLevel string
}

// Language はワーカーの言語能力です。
type Language struct {
	Language         string
	ProficiencyLevel string
}

// ChangeSource は遷移の発生元です。
type ChangeSource string

const (
	SourceOperator            ChangeSource = "operator"
	SourceContractSync        ChangeSource = "contract_sync"
	SourceCandidateConversion ChangeSource = "candidate_conversion"
)

// StatusHistoryEntry はステータス遷移の追記専用の監査記録です。
type StatusHistoryEntry struct {
	ID              string
	TenantID        string
	WorkerID        string
	FromStatus      *Status
	ToStatus        Status
	ChangedAt       time.Time
	ChangedByUserID *string
	Reason          *string
	Notes           *string
	Source          ChangeSource
	RelatedEntityID *string
}

// IsSystem はシステム起因の遷移かどうかを返します。
func (e *StatusHistoryEntry) IsSystem() bool {
	return e.ChangedByUserID == nil
}

// IsDeleted は論理削除済みかどうかを返します。
func (w *Worker) IsDeleted() bool {
	return w.DeletedAt != nil
}
