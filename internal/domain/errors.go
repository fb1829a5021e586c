package domain

import "errors"

// Error kinds. Every error returned by the service layer matches exactly one of
// these with errors.Is, which is how the API layer picks a status code.
var (
	ErrValidation           = errors.New("validation error")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotificationDelivery = errors.New("notification delivery failed")
	ErrPersistence          = errors.New("persistence error")
)

// Validation failures.
var (
	ErrInvalidAmount      = kindError(ErrValidation, "amount must be a positive value with at most two decimal places")
	ErrAmountBelowMinimum = kindError(ErrValidation, "amount is below the allowed minimum")
	ErrAmountAboveMaximum = kindError(ErrValidation, "amount is above the allowed maximum")
	ErrInsufficientFunds  = kindError(ErrValidation, "insufficient funds")
	ErrInvalidDateRange   = kindError(ErrValidation, "invalid date range")
	ErrInvalidAccountType = kindError(ErrValidation, "account type has no valid interest calculation frequency")
)

// ErrNoAccount is returned when an authenticated subject has no bank account.
var ErrNoAccount = kindError(ErrUnauthorized, "no bank account is bound to this session")

type classifiedError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &classifiedError{kind: kind, msg: msg}
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Unwrap() error { return e.kind }

// OpError attaches the failed operation to an underlying error and classifies it.
type OpError struct {
	Kind error
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == e.Kind }

// Persistence wraps a datastore failure.
func Persistence(op string, err error) error {
	return &OpError{Kind: ErrPersistence, Op: op, Err: err}
}

// NotificationDelivery wraps a failure to queue or publish a notification.
func NotificationDelivery(op string, err error) error {
	return &OpError{Kind: ErrNotificationDelivery, Op: op, Err: err}
}
