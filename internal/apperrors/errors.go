package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping decisions.
// The set is closed: every error the services return carries one of these.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindBusiness    Kind = "business"
	KindNotFound    Kind = "not_found"
	KindIntegration Kind = "integration"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// External error codes, kept stable for API consumers
const (
	CodeInvalidAmount       = "TRF-1002"
	CodeSameAccountTransfer = "TRF-1004"

	CodeAccountNotActive   = "TRF-2001"
	CodeInsufficientFunds  = "TRF-2002"
	CodeInsufficientLimit  = "TRF-2003"
	CodeDailyLimitExceeded = "TRF-2004"
	CodeClientNotActive    = "TRF-2005"

	CodeAccountNotFound  = "TRF-3001"
	CodeClientNotFound   = "TRF-3002"
	CodeTransferNotFound = "TRF-3003"

	CodeRegistryError       = "TRF-4001"
	CodeRegistryUnavailable = "TRF-4002"
	CodeBacenError          = "TRF-4003"
	CodeBacenUnavailable    = "TRF-4004"
	CodeBacenRateLimited    = "TRF-4005"

	CodeInternal = "TRF-5001"
)

// Error is the single error type the domain and services produce.
// Construction is pure; serialization happens at the HTTP boundary.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two *Error values by code, so constructors can be
// compared without sharing sentinel instances
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// KindOf returns the Kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the external code of err, or CodeInternal for foreign errors
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func InvalidAmount(value string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidAmount,
		Message: fmt.Sprintf("invalid transfer amount %q", value),
	}
}

func SameAccountTransfer() *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeSameAccountTransfer,
		Message: "transfer to the same account is not allowed",
	}
}

func AccountNotActive(number string, status string) *Error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeAccountNotActive,
		Message: fmt.Sprintf("account %s is not active, current status: %s", number, status),
	}
}

func InsufficientBalance(available string, requested string) *Error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient balance: available %s, requested %s", available, requested),
	}
}

func InsufficientLimit(available string, requested string) *Error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeInsufficientLimit,
		Message: fmt.Sprintf("insufficient available limit: available %s, requested %s", available, requested),
	}
}

func DailyLimitExceeded(limit string, used string, requested string) *Error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeDailyLimitExceeded,
		Message: fmt.Sprintf("daily transfer limit exceeded: limit %s, used %s, requested %s", limit, used, requested),
	}
}

func ClientNotActive(name string) *Error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeClientNotActive,
		Message: fmt.Sprintf("client %s is not active in the registry", name),
	}
}

func AccountNotFound(number string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeAccountNotFound,
		Message: fmt.Sprintf("account %s not found", number),
	}
}

func ClientNotFound(id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeClientNotFound,
		Message: fmt.Sprintf("client %s not found", id),
	}
}

func TransferNotFound(id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeTransferNotFound,
		Message: fmt.Sprintf("transfer %s not found", id),
	}
}

func RegistryError(err error) *Error {
	return &Error{
		Kind:    KindIntegration,
		Code:    CodeRegistryError,
		Message: "registry service request failed",
		Err:     err,
	}
}

func RegistryUnavailable(err error) *Error {
	return &Error{
		Kind:    KindIntegration,
		Code:    CodeRegistryUnavailable,
		Message: "registry service unavailable",
		Err:     err,
	}
}

func BacenError(err error) *Error {
	return &Error{
		Kind:    KindIntegration,
		Code:    CodeBacenError,
		Message: "BACEN notification failed",
		Err:     err,
	}
}

func BacenUnavailable(err error) *Error {
	return &Error{
		Kind:    KindIntegration,
		Code:    CodeBacenUnavailable,
		Message: "BACEN service unavailable",
		Err:     err,
	}
}

func BacenRateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Code:    CodeBacenRateLimited,
		Message: "BACEN rate limit exceeded",
	}
}

func Internal(msg string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: msg,
		Err:     err,
	}
}
