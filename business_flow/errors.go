// Package businessflow contains the core business logic and use cases for warmup workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Sender account errors
	ErrSenderNotFound       = errors.New("sender account not found")
	ErrSenderInactive       = errors.New("sender account is inactive")
	ErrSenderEmailExists    = errors.New("sender email already exists")
	ErrInvalidESPType       = errors.New("invalid ESP type")
	ErrCredentialRequired   = errors.New("mailbox credential is required")
	ErrCredentialUnreadable = errors.New("mailbox credential cannot be decrypted")

	// Warmup session errors
	ErrSessionNotFound        = errors.New("warmup session not found")
	ErrSessionAlreadyActive   = errors.New("sender already has an active warmup session")
	ErrSessionNotActive       = errors.New("warmup session is not active")
	ErrSessionNotPaused       = errors.New("warmup session is not paused")
	ErrSessionCompleted       = errors.New("warmup session is already completed")
	ErrUnknownRampProfile     = errors.New("unknown ramp profile")
	ErrScheduleNotFound       = errors.New("ramp schedule entry not found")
	ErrScheduleAlreadyClaimed = errors.New("schedule day already claimed")

	// Pool errors
	ErrPoolAccountNotFound = errors.New("pool account not found")
	ErrPoolAccountExists   = errors.New("pool account email already exists")
	ErrPoolExhausted       = errors.New("no eligible pool partners available")
	ErrPoolAccountRetired  = errors.New("pool account is retired")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")

	// External collaborator errors
	ErrMailGatewayUnavailable = errors.New("mail gateway unavailable")
	ErrReputationUnavailable  = errors.New("reputation provider unavailable")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsSenderNotFound(err error) bool {
	return errors.Is(err, ErrSenderNotFound)
}

func IsSenderInactive(err error) bool {
	return errors.Is(err, ErrSenderInactive)
}

func IsSenderEmailExists(err error) bool {
	return errors.Is(err, ErrSenderEmailExists)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionAlreadyActive(err error) bool {
	return errors.Is(err, ErrSessionAlreadyActive)
}

func IsSessionNotActive(err error) bool {
	return errors.Is(err, ErrSessionNotActive)
}

func IsSessionNotPaused(err error) bool {
	return errors.Is(err, ErrSessionNotPaused)
}

func IsUnknownRampProfile(err error) bool {
	return errors.Is(err, ErrUnknownRampProfile)
}

func IsPoolAccountNotFound(err error) bool {
	return errors.Is(err, ErrPoolAccountNotFound)
}

func IsPoolAccountExists(err error) bool {
	return errors.Is(err, ErrPoolAccountExists)
}

func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

func IsInvalidESPType(err error) bool {
	return errors.Is(err, ErrInvalidESPType)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
