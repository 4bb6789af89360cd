package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady            = errors.New("connection not ready. Please wait a moment and try again")
	ErrUnauthenticated     = errors.New("please log in to continue")
	ErrForbidden           = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrTransient           = errors.New("service temporarily unavailable. Please retry")
	ErrPaymentNotConfirmed = errors.New("please confirm that you have completed the payment")
	ErrInvalidPromo        = errors.New("invalid promo code. Please try again")
	ErrPromoNotForVIP      = errors.New("this promo code is not valid for VIP Ads")
	ErrEmptyPromo          = errors.New("please enter a promo code")
	ErrProfileIncomplete   = errors.New("please complete sign-up with your mobile number first")
)

// ValidationError names the offending field; it unwraps to ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
