// Package domainerrors carries a machine-readable code alongside a human
// reason on every failure the registry core surfaces. Services return these;
// the transport layer maps codes to response statuses. Stores do not use this
// package directly - they return sentinel facts which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code tags an error with the kind of failure it represents.
type Code string

const (
	// Generic codes.
	CodeValidation   Code = "validation"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"

	// Transfer state-machine codes. These mirror the failure modes of the
	// transfer flows one-to-one so callers can branch without string matching.
	CodeAlreadyPendingTransfer      Code = "already_pending_transfer"
	CodeObjectAlreadySponsored      Code = "object_already_sponsored"
	CodeNotPendingTransfer          Code = "not_pending_transfer"
	CodeInvalidTransferPeriod       Code = "invalid_transfer_period"
	CodeTransferPeriodMustBeOneYear Code = "transfer_period_must_be_one_year"
	CodePeriodZeroWithFee           Code = "period_zero_with_fee"
	CodeFeeMismatch                 Code = "fee_mismatch"
	CodeStatusProhibitsOperation    Code = "status_prohibits_operation"
	CodeBadAuthInfo                 Code = "bad_auth_info"
	CodeNotAuthorizedForTLD         Code = "not_authorized_for_tld"
	CodeMissingBillingAccount       Code = "missing_billing_account"
	CodeRegistrarNotActive          Code = "registrar_not_active"
)

// Error is the concrete error type carrying a code and reason.
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fresh coded error.
func New(code Code, reason string) error {
	return &Error{Code: code, Reason: reason}
}

// Newf builds a fresh coded error with a formatted reason.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and reason to an underlying error.
func Wrap(err error, code Code, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Reason: reason, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the code carried by err, or CodeInternal when err carries
// none. The transport layer uses this for status mapping.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf returns the textual reason carried by err, or err.Error() when the
// error is uncoded.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}
