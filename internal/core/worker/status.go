package worker

import "strings"

// Status はワーカーのライフサイクル上の状態を表します。
type Status string

const (
	StatusAvailable          Status = "Available"
	StatusInTraining         Status = "InTraining"
	StatusUnderMedicalTest   Status = "UnderMedicalTest"
	StatusNewArrival         Status = "NewArrival"
	StatusBooked             Status = "Booked"
	StatusHired              Status = "Hired"
	StatusOnProbation        Status = "OnProbation"
	StatusActive             Status = "Active"
	StatusRenewed            Status = "Renewed"
	StatusPendingReplacement Status = "PendingReplacement"
	StatusMedicallyUnfit     Status = "MedicallyUnfit"
	StatusAbsconded          Status = "Absconded"
	StatusTerminated         Status = "Terminated"
	StatusTransferred        Status = "Transferred"
	StatusPregnant           Status = "Pregnant"
	StatusRepatriated        Status = "Repatriated"
	StatusDeported           Status = "Deported"
	StatusDeceased           Status = "Deceased"
)

// Category はレポート用のステータス分類です。遷移の可否には影響しません。
type Category string

const (
	CategoryPool            Category = "Pool"
	CategoryArrival         Category = "Arrival"
	CategoryPlacement       Category = "Placement"
	CategoryNegativeSpecial Category = "NegativeSpecial"
	CategoryTerminal        Category = "Terminal"
)

// AllStatuses は定義済みの全ステータスを宣言順で返します。
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

var allStatuses = []Status{
	StatusAvailable,
	StatusInTraining,
	StatusUnderMedicalTest,
	StatusNewArrival,
	StatusBooked,
	StatusHired,
	StatusOnProbation,
	StatusActive,
	StatusRenewed,
	StatusPendingReplacement,
	StatusMedicallyUnfit,
	StatusAbsconded,
	StatusTerminated,
	StatusTransferred,
	StatusPregnant,
	StatusRepatriated,
	StatusDeported,
	StatusDeceased,
}

// transitions の値の並びが AllowedTransitions の返却順になる。
// 終端ステータスはキーを持たない。
var transitions = map[Status][]Status{
	StatusAvailable:          {StatusBooked, StatusUnderMedicalTest, StatusInTraining, StatusAbsconded, StatusRepatriated, StatusDeceased},
	StatusInTraining:         {StatusAvailable, StatusUnderMedicalTest, StatusAbsconded, StatusRepatriated, StatusDeceased},
	StatusUnderMedicalTest:   {StatusAvailable, StatusMedicallyUnfit, StatusDeceased},
	StatusNewArrival:         {StatusAvailable, StatusInTraining, StatusUnderMedicalTest, StatusMedicallyUnfit, StatusAbsconded, StatusRepatriated, StatusDeceased},
	StatusBooked:             {StatusHired, StatusNewArrival, StatusAvailable, StatusDeceased},
	StatusHired:              {StatusOnProbation, StatusAvailable, StatusDeceased},
	StatusOnProbation:        {StatusActive, StatusPendingReplacement, StatusTerminated, StatusAbsconded, StatusPregnant, StatusDeceased},
	StatusActive:             {StatusRenewed, StatusPendingReplacement, StatusTerminated, StatusAbsconded, StatusPregnant, StatusTransferred, StatusDeceased},
	StatusRenewed:            {StatusActive, StatusPendingReplacement, StatusTerminated, StatusAbsconded, StatusPregnant, StatusTransferred, StatusDeceased},
	StatusPendingReplacement: {StatusAvailable, StatusTerminated, StatusRepatriated, StatusDeceased},
	StatusTransferred:        {StatusRepatriated},
	StatusMedicallyUnfit:     {StatusRepatriated, StatusAvailable, StatusDeceased},
	StatusAbsconded:          {StatusTerminated, StatusRepatriated, StatusDeported, StatusAvailable, StatusDeceased},
	StatusTerminated:         {StatusAvailable, StatusRepatriated, StatusTransferred},
	StatusPregnant:           {StatusActive, StatusTerminated, StatusRepatriated, StatusDeceased},
}

var reasonRequired = map[Status]struct{}{
	StatusTerminated:         {},
	StatusAbsconded:          {},
	StatusMedicallyUnfit:     {},
	StatusPendingReplacement: {},
	StatusTransferred:        {},
	StatusRepatriated:        {},
	StatusDeported:           {},
	StatusPregnant:           {},
	StatusDeceased:           {},
}

var terminal = map[Status]struct{}{
	StatusRepatriated: {},
	StatusDeported:    {},
	StatusDeceased:    {},
}

var terminationClass = map[Status]struct{}{
	StatusTerminated:         {},
	StatusPendingReplacement: {},
}

var categories = map[Status]Category{
	StatusAvailable:          CategoryPool,
	StatusInTraining:         CategoryPool,
	StatusUnderMedicalTest:   CategoryPool,
	StatusNewArrival:         CategoryArrival,
	StatusBooked:             CategoryPlacement,
	StatusHired:              CategoryPlacement,
	StatusOnProbation:        CategoryPlacement,
	StatusActive:             CategoryPlacement,
	StatusRenewed:            CategoryPlacement,
	StatusPendingReplacement: CategoryNegativeSpecial,
	StatusTransferred:        CategoryNegativeSpecial,
	StatusMedicallyUnfit:     CategoryNegativeSpecial,
	StatusAbsconded:          CategoryNegativeSpecial,
	StatusTerminated:         CategoryNegativeSpecial,
	StatusPregnant:           CategoryNegativeSpecial,
	StatusRepatriated:        CategoryTerminal,
	StatusDeported:           CategoryTerminal,
	StatusDeceased:           CategoryTerminal,
}

// ParseStatus は文字列を大文字小文字を区別せずに Status へ変換します。
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range allStatuses {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsValid は定義済みのステータスかどうかを返します。
func (s Status) IsValid() bool {
	_, ok := categories[s]
	return ok
}

// AllowedTransitions は from から遷移可能なステータスを返します。終端ステータスでは空です。
func AllowedTransitions(from Status) []Status {
	targets := transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// CanTransition は from から to への辺がグラフに存在するかを返します。
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal は終端ステータス (Repatriated, Deported, Deceased) かどうかを返します。
func IsTerminal(s Status) bool {
	_, ok := terminal[s]
	return ok
}

// IsReasonRequired は遷移先として理由の入力が必須かどうかを返します。
func IsReasonRequired(target Status) bool {
	_, ok := reasonRequired[target]
	return ok
}

// IsTerminationClass は terminatedAt を記録すべき遷移先かどうかを返します。
func IsTerminationClass(target Status) bool {
	_, ok := terminationClass[target]
	return ok
}

// CategoryOf はステータスの分類を返します。未知の値は Pool 扱いです。
func CategoryOf(s Status) Category {
	if c, ok := categories[s]; ok {
		return c
	}
	return CategoryPool
}

// ParseCategory は文字列を Category へ変換します。
func ParseCategory(raw string) (Category, error) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range []Category{CategoryPool, CategoryArrival, CategoryPlacement, CategoryNegativeSpecial, CategoryTerminal} {
		if strings.EqualFold(string(c), trimmed) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// StatusesIn は分類に属するステータスを宣言順で返します。
func StatusesIn(c Category) []Status {
	var out []Status
	for _, s := range allStatuses {
		if categories[s] == c {
			out = append(out, s)
		}
	}
	return out
}
