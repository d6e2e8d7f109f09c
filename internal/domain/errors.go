package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindEligibility
	KindConflict
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEligibility:
		return "eligibility"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. Code is stable and returned to API callers verbatim.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidAmount     = newErr(KindValidation, "InvalidAmount", "amount must be positive")
	ErrInvalidLeg        = newErr(KindValidation, "InvalidLeg", "leg must be left, right or auto")
	ErrInvalidPeriod     = newErr(KindValidation, "InvalidPeriod", "period end must be after period start")
	ErrInvalidTransition = newErr(KindValidation, "InvalidTransition", "status transition not allowed")
	ErrInvalidPlan       = newErr(KindValidation, "InvalidPlan", "compensation plan is invalid")
	ErrInvalidOrder      = newErr(KindValidation, "InvalidOrder", "order id and buyer are required")
	ErrInvalidMethod     = newErr(KindValidation, "InvalidMethod", "withdrawal method is required")

	ErrDuplicateSponsor       = newErr(KindEligibility, "DuplicateSponsor", "user already has a sponsor")
	ErrSponsorCycle           = newErr(KindEligibility, "SponsorCycle", "sponsor relation would create a cycle")
	ErrAlreadyPlaced          = newErr(KindEligibility, "AlreadyPlaced", "user already has a placement node")
	ErrSponsorNotFound        = newErr(KindEligibility, "SponsorNotFound", "sponsor has no placement node")
	ErrRootExists             = newErr(KindEligibility, "RootExists", "placement tree already has a root")
	ErrPeriodAlreadyProcessed = newErr(KindEligibility, "PeriodAlreadyProcessed", "binary commission already processed for this period")
	ErrPeriodOutOfOrder       = newErr(KindEligibility, "PeriodOutOfOrder", "period starts before the end of the last processed period")

	ErrKycNotApproved      = newErr(KindEligibility, "KycNotApproved", "KYC approval required before withdrawing")
	ErrInsufficientBalance = newErr(KindEligibility, "InsufficientBalance", "amount exceeds available balance")
	ErrBelowMinimum        = newErr(KindEligibility, "BelowMinimum", "amount is below the minimum withdrawal")
	ErrWithdrawalInFlight  = newErr(KindEligibility, "WithdrawalInFlight", "a withdrawal request is already in progress")

	ErrSlotTaken = newErr(KindConflict, "SlotTaken", "placement slot was claimed concurrently")
	ErrStaleRank = newErr(KindConflict, "StaleRank", "rank changed concurrently")
	ErrConflict  = newErr(KindConflict, "Conflict", "concurrent update conflict, retries exhausted")
	ErrSweepBusy = newErr(KindConflict, "SweepBusy", "sweep for this period is already running")

	ErrUserNotFound    = newErr(KindIntegrity, "UserNotFound", "referenced user does not exist")
	ErrNodeNotFound    = newErr(KindIntegrity, "NodeNotFound", "referenced placement node does not exist")
	ErrNegativeBalance = newErr(KindIntegrity, "NegativeBalance", "operation would make a wallet balance negative")
	ErrTreeCorrupt     = newErr(KindIntegrity, "TreeCorrupt", "placement tree is inconsistent")
)

// KindOf returns the kind of the first classified error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Integrity wraps an unexpected storage state as an integrity failure.
func Integrity(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTreeCorrupt, fmt.Sprintf(format, args...))
}
