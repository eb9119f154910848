package worker

import (
	"fmt"
	"strings"
)

// ContractStatus は契約集約のステータスです。ワーカー側では同期判定にのみ使用します。
type ContractStatus string

const (
	ContractDraft       ContractStatus = "Draft"
	ContractConfirmed   ContractStatus = "Confirmed"
	ContractOnProbation ContractStatus = "OnProbation"
	ContractActive      ContractStatus = "Active"
	ContractCompleted   ContractStatus = "Completed"
	ContractTerminated  ContractStatus = "Terminated"
	ContractCancelled   ContractStatus = "Cancelled"
	ContractClosed      ContractStatus = "Closed"
)

var contractStatuses = []ContractStatus{
	ContractDraft,
	ContractConfirmed,
	ContractOnProbation,
	ContractActive,
	ContractCompleted,
	ContractTerminated,
	ContractCancelled,
	ContractClosed,
}

// ParseContractStatus は文字列を ContractStatus へ変換します。未知の値は false を返します。
func ParseContractStatus(raw string) (ContractStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range contractStatuses {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

// anyContractStatus は From の任意一致を表します。
const anyContractStatus ContractStatus = ""

type contractSyncRule struct {
	From ContractStatus
	To   ContractStatus
	// WorkerIn が空でなければ現在のワーカーステータスがいずれかに一致する場合のみ適用する。
	WorkerIn []Status
	Target   Status
}

// 上から順に評価し、最初に一致した規則を採用する。
var contractSyncTable = []contractSyncRule{
	{From: ContractDraft, To: ContractConfirmed, Target: StatusBooked},
	{From: ContractConfirmed, To: ContractOnProbation, Target: StatusOnProbation},
	{From: ContractConfirmed, To: ContractActive, Target: StatusActive},
	{From: ContractOnProbation, To: ContractActive, Target: StatusActive},
	{From: anyContractStatus, To: ContractCancelled, WorkerIn: []Status{StatusBooked, StatusOnProbation}, Target: StatusAvailable},
	{From: anyContractStatus, To: ContractTerminated, Target: StatusPendingReplacement},
	{From: ContractCompleted, To: ContractClosed, Target: StatusAvailable},
	{From: ContractTerminated, To: ContractClosed, Target: StatusAvailable},
}

// ResolveContractSync は契約の遷移と現在のワーカーステータスから遷移先を求めます。
// 変更不要の場合は false を返します。
func ResolveContractSync(from, to ContractStatus, current Status) (Status, bool) {
	for _, rule := range contractSyncTable {
		if rule.To != to {
			continue
		}
		if rule.From != anyContractStatus && rule.From != from {
			continue
		}
		if len(rule.WorkerIn) > 0 && !containsStatus(rule.WorkerIn, current) {
			continue
		}
		return rule.Target, true
	}
	return "", false
}

// contractSyncReason は契約同期で履歴に記録する理由文字列です。冪等性判定のキーにもなります。
func contractSyncReason(from, to ContractStatus) string {
	return fmt.Sprintf("Contract status changed: %s → %s", from, to)
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
