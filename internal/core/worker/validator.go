package worker

import (
	"fmt"
	"strings"
)

// RejectionCode は遷移拒否の種別です。
type RejectionCode string

const (
	RejectTerminalSource RejectionCode = "terminal_source"
	RejectNotAllowed     RejectionCode = "not_allowed"
	RejectReasonRequired RejectionCode = "reason_required"
)

// Rejection は遷移が拒否された理由を表す値です。
// 例外ではなくデータとして返却され、扱いは呼び出し側が決めます。
type Rejection struct {
	Code    RejectionCode
	From    Status
	To      Status
	Message string
}

func (r *Rejection) Error() string {
	return "worker: " + r.Message
}

// Validate は from から to への遷移を検証します。許可される場合は nil を返します。
func Validate(from, to Status, reason *string) *Rejection {
	if IsTerminal(from) {
		return &Rejection{
			Code:    RejectTerminalSource,
			From:    from,
			To:      to,
			Message: fmt.Sprintf("status '%s' is a terminal status, no further transitions", from),
		}
	}

	if !CanTransition(from, to) {
		return &Rejection{
			Code:    RejectNotAllowed,
			From:    from,
			To:      to,
			Message: fmt.Sprintf("transition from '%s' to '%s' is not allowed", from, to),
		}
	}

	if IsReasonRequired(to) && isBlank(reason) {
		return &Rejection{
			Code:    RejectReasonRequired,
			From:    from,
			To:      to,
			Message: "reason is required for this transition",
		}
	}

	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
