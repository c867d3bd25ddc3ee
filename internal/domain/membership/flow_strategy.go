package membership

import (
	"time"

	"github.com/google/uuid"

	"github.com/careward/careward/internal/effect"
)

// UpdateRenewalStrategyInput rewrites a subscription's renewal intent
// outside a full lifecycle transition.
type UpdateRenewalStrategyInput struct {
	Subscription      *Subscription
	PaymentPriceID    uuid.UUID
	PromoCodeID       *uuid.UUID
	EmployerProductID *uuid.UUID
	Source            RenewalSource
	Now               time.Time
}

// UpdateRenewalStrategy replaces (or creates) the subscription's renewal
// strategy. User-initiated updates must carry the manual source so the
// automated re-pricing pass does not mistake them for its own work.
func UpdateRenewalStrategy(in UpdateRenewalStrategyInput) (effect.Descriptor, error) {
	after := in.Subscription.clone()
	after.RenewalStrategy = &RenewalStrategy{
		PaymentPriceID:    in.PaymentPriceID,
		PromoCodeID:       in.PromoCodeID,
		EmployerProductID: in.EmployerProductID,
		Source:            in.Source,
	}
	after.UpdatedAt = in.Now
	return effect.Update(after), nil
}

// MarkAsPaidInput records an external payment confirmation.
type MarkAsPaidInput struct {
	Subscription *Subscription
	Vendor       string
	Reference    string
	Now          time.Time
}

// MarkAsPaid records the vendor and reference of an external payment
// against the subscription. A missing subscription reference is a no-op.
func MarkAsPaid(in MarkAsPaidInput) (effect.Descriptor, error) {
	if in.Subscription == nil {
		return effect.Descriptor{}, nil
	}

	after := in.Subscription.clone()
	paidAt := in.Now
	after.PaidAt = &paidAt
	after.PaymentVendor = &in.Vendor
	after.PaymentRef = &in.Reference
	after.UpdatedAt = in.Now

	return effect.Update(after).Append(effect.Emit(SubscriptionMarkedPaidEvent{
		SubscriptionID: after.ID,
		PatientID:      after.PatientID,
		Vendor:         in.Vendor,
		Reference:      in.Reference,
	})), nil
}
