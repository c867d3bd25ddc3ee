package membership

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/careward/careward/internal/effect"
)

// OverwriteInput carries one subscription considered by the batch
// re-pricing pass. MinPrice is the configured per-month floor; Alternate is
// the price tier renewals should be redirected to; NoticeDays is the
// configured notice period carried on the integration event.
type OverwriteInput struct {
	Subscription *Subscription
	CurrentPrice PaymentPrice
	Alternate    PaymentPrice
	MinPrice     decimal.Decimal
	NoticeDays   int
	Now          time.Time
}

// Overwrite re-points a subscription's renewal strategy at the alternate
// price tier when its per-month-normalized current price falls below the
// configured floor. Subscriptions already processed by this pass (strategy
// source overwrite_flow), cancelled ones, and ones priced at or above the
// floor are left untouched. The integration event carries the notice period
// so the member can be informed ahead of the change.
func Overwrite(in OverwriteInput) (effect.Descriptor, error) {
	sub := in.Subscription

	if sub.Cancelled() {
		return effect.Descriptor{}, nil
	}
	switch sub.StateAt(in.Now) {
	case StateActive, StateExpired:
	default:
		return effect.Descriptor{}, nil
	}
	if sub.RenewalStrategy != nil && sub.RenewalStrategy.Source == RenewalSourceOverwriteFlow {
		return effect.Descriptor{}, nil
	}
	if in.CurrentPrice.PerMonth().GreaterThanOrEqual(in.MinPrice) {
		return effect.Descriptor{}, nil
	}

	after := sub.clone()
	strategy := &RenewalStrategy{
		PaymentPriceID: in.Alternate.ID,
		Source:         RenewalSourceOverwriteFlow,
	}
	if sub.RenewalStrategy != nil {
		strategy.EmployerProductID = sub.RenewalStrategy.EmployerProductID
	}
	after.RenewalStrategy = strategy
	after.UpdatedAt = in.Now

	return effect.Update(after).Append(effect.Emit(RenewalWorkflowIntegrationEvent{
		SubscriptionID:    sub.ID,
		PatientID:         sub.PatientID,
		NewPaymentPriceID: in.Alternate.ID,
		NoticeDays:        in.NoticeDays,
	})), nil
}
