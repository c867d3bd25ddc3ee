package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain events published when a lifecycle transition commits. Names are the
// stable identifiers consumers subscribe on.

// SubscriptionCreatedEvent fires whenever a new subscription row is created.
type SubscriptionCreatedEvent struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	PatientID      uuid.UUID       `json:"patient_id"`
	PaymentPriceID uuid.UUID       `json:"payment_price_id"`
	Price          decimal.Decimal `json:"price"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

func (SubscriptionCreatedEvent) EventName() string { return "subscription.created" }

// SubscriptionActivatedEvent fires when a zero-price subscription is
// activated for a patient.
type SubscriptionActivatedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
}

func (SubscriptionActivatedEvent) EventName() string { return "subscription.activated" }

// SubscriptionCancelledEvent is the user-visible cancellation event. It is
// not emitted for the internal renewed/replaced transitions.
type SubscriptionCancelledEvent struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	Reason         CancellationReason `json:"reason"`
	ReasonText     string             `json:"reason_text,omitempty"`
	CancelledAt    time.Time          `json:"cancelled_at"`
}

func (SubscriptionCancelledEvent) EventName() string { return "subscription.cancelled" }

// SubscriptionPriceChangedEvent fires at renewal when the new period's price
// or start date differs from the superseded period's.
type SubscriptionPriceChangedEvent struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	PatientID      uuid.UUID       `json:"patient_id"`
	OldPrice       decimal.Decimal `json:"old_price"`
	NewPrice       decimal.Decimal `json:"new_price"`
	StartDate      time.Time       `json:"start_date"`
}

func (SubscriptionPriceChangedEvent) EventName() string { return "subscription.price_changed" }

// PremiumRenewalAlertEvent fires when a premium-tier subscription is renewed
// so staff can follow up with the member.
type PremiumRenewalAlertEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PriceCode      string    `json:"price_code"`
}

func (PremiumRenewalAlertEvent) EventName() string { return "subscription.premium_renewal" }

// IntegrationSubscriptionCreateRequestedEvent asks the billing-vendor
// integration to create a new external subscription for the given period.
type IntegrationSubscriptionCreateRequestedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
}

func (IntegrationSubscriptionCreateRequestedEvent) EventName() string {
	return "integration.subscription.create_requested"
}

// IntegrationSubscriptionCanceledEvent tells the billing-vendor integration
// that an external subscription is no longer linked and should be cleaned up.
type IntegrationSubscriptionCanceledEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Vendor         string    `json:"vendor"`
	VendorRef      string    `json:"vendor_ref"`
}

func (IntegrationSubscriptionCanceledEvent) EventName() string {
	return "integration.subscription.canceled"
}

// RenewalWorkflowIntegrationEvent fires when the re-pricing pass rewrites a
// renewal strategy, carrying the notice period so the member can be informed
// ahead of the change.
type RenewalWorkflowIntegrationEvent struct {
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	PatientID         uuid.UUID `json:"patient_id"`
	NewPaymentPriceID uuid.UUID `json:"new_payment_price_id"`
	NoticeDays        int       `json:"notice_days"`
}

func (RenewalWorkflowIntegrationEvent) EventName() string {
	return "integration.renewal_workflow.notice"
}

// SubscriptionMarkedPaidEvent fires when an external payment confirmation is
// recorded against a subscription.
type SubscriptionMarkedPaidEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Vendor         string    `json:"vendor"`
	Reference      string    `json:"reference"`
}

func (SubscriptionMarkedPaidEvent) EventName() string { return "subscription.marked_paid" }
