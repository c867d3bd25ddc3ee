package membership

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for domain invariant violations. They are raised
// synchronously from flows, never retried automatically, and mapped to
// client errors by the HTTP layer.
var (
	ErrPatientInactive        = errors.New("patient is not active")
	ErrHasCurrentSubscription = errors.New("patient already has a current subscription")
	ErrActivateNonZeroPrice   = errors.New("activation requires a zero-price payment price")
	ErrNotReplaceable         = errors.New("current subscription is not replaceable")
	ErrFounderRequired        = errors.New("founder plan requires a founder selection")
	ErrPromoCodeNotUsable     = errors.New("promo code is not usable for this payment price")
)

// NoDefaultPriceError is raised by promo-code renewal resolution when a
// legacy promo-code price tier has no default price configured to migrate
// to. This indicates inconsistent catalog configuration, not bad user input.
type NoDefaultPriceError struct {
	SubscriptionID uuid.UUID
	PaymentPriceID uuid.UUID
	WantType       PaymentPriceType
	WantStrategy   PaymentStrategy
}

func (e *NoDefaultPriceError) Error() string {
	return fmt.Sprintf(
		"no default payment price of type %s and strategy %s to migrate subscription %s (price %s) to",
		e.WantType, e.WantStrategy, e.SubscriptionID, e.PaymentPriceID)
}

// FlowError wraps a domain error with the subscription and patient it
// concerns so batch passes and operators can tell failures apart.
type FlowError struct {
	SubscriptionID uuid.UUID
	PatientID      uuid.UUID
	Err            error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("subscription %s (patient %s): %v", e.SubscriptionID, e.PatientID, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }
