package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to react to it
// (map to a status code, retry, show to the user).
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
	KindSystem     Kind = "system"
	// KindBusy means a row lock could not be acquired in time. Retryable.
	KindBusy Kind = "busy"
)

// Error is a domain failure carrying a machine-checkable kind and a
// human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	// Err is an optional more general sentinel this error refines.
	Err error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against another *Error of the same kind with an empty
// message (the kind sentinels below) or against the identical message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

// Kind sentinels: errors.Is(err, ErrValidation) matches every validation failure.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrState      = &Error{Kind: KindState}
	ErrSystem     = &Error{Kind: KindSystem}
	ErrBusy       = &Error{Kind: KindBusy}
)

var (
	ErrInvalidDay         = Validationf("invalid day")
	ErrInvalidMonth       = Validationf("invalid month")
	ErrInvalidAmount      = Validationf("amount must be greater than zero")
	ErrSubCentAmount      = Validationf("amount cannot have more than two decimals")
	ErrEmptyDescription   = Validationf("empty description")
	ErrEmptyName          = Validationf("name cannot be empty")
	ErrInvalidDate        = Validationf("invalid date")
	ErrInvalidDateRange   = Validationf("end date must not be before start date")
	ErrInvalidTxType      = Validationf("transaction type must be Income or Expense")
	ErrInvalidCurrency    = Validationf("currency must be a three-letter ISO 4217 code")
	ErrInvalidColor       = Validationf("color must be a hex value like #667eea")
	ErrInsufficientFunds  = Validationf("insufficient balance")
	ErrSameAccount        = Validationf("source and destination accounts must differ")
	ErrCategoryMismatch   = Validationf("category type does not match transaction type")
	ErrInvalidFrequency   = Validationf("frequency must be monthly, biweekly or weekly")
	ErrInvalidDayOfPeriod = Validationf("day of period out of range for frequency")
	ErrInvalidRate        = Validationf("interest rate must not be negative")
	ErrInvalidTerm        = Validationf("term must be at least one month")
	ErrInvalidTrendWindow = Validationf("months must be 3, 6 or 12")

	ErrAccountHasTransfers = Validationf("account still has transfers, delete them first")
	ErrInvalidBudgetStatus = Validationf("budget status must be Active, Paused or Archived")

	ErrAccountNotFound     = NotFoundf("account not found")
	ErrCategoryNotFound    = NotFoundf("category not found")
	ErrTransactionNotFound = NotFoundf("transaction not found")
	ErrTransferNotFound    = NotFoundf("transfer not found")
	ErrBudgetNotFound      = NotFoundf("budget not found")
	ErrGoalNotFound        = NotFoundf("goal not found")
	ErrInvestmentNotFound  = NotFoundf("investment not found")
	ErrDebtNotFound        = NotFoundf("debt not found")
	ErrRecurringNotFound   = NotFoundf("recurring transaction not found")

	ErrRecurringInactive  = Statef("recurring transaction is not active")
	ErrGoalClosed         = Statef("goal is completed or cancelled")
	ErrInvestmentClosed   = Statef("investment is not active")
	ErrDebtClosed         = Statef("debt is already paid or cancelled")
	ErrNotInsurance       = Statef("operation only applies to insurance investments")
	ErrManagedTransaction = Statef("transaction belongs to a debt payment or investment movement")
	ErrNoAccountForReturn = &Error{Kind: KindSystem, Msg: "no account available to receive investment return"}

	ErrLockTimeout     = &Error{Kind: KindBusy, Msg: "resource is busy, retry later"}
	ErrConcurrentWrite = &Error{Kind: KindBusy, Msg: "record changed while waiting, retry"}
)

// Detail refines a sentinel with a more specific message while keeping
// errors.Is(err, sentinel) true.
func Detail(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg + ": " + fmt.Sprintf(format, args...), Err: sentinel}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Statef(format string, args ...any) *Error {
	return &Error{Kind: KindState, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain. Anything else
// is a system failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// IsRetryable reports whether the caller may retry the same operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindBusy
}

// PublicMessage is what a caller may show to a user. System failures are
// reduced to a generic message; the full error belongs in the logs.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindSystem {
		return e.Msg
	}
	return "internal error"
}
