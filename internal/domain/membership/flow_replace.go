package membership

import (
	"time"

	"github.com/google/uuid"

	"github.com/careward/careward/internal/effect"
)

// ReplaceInput carries the entities for a user-initiated plan switch.
// FounderID names the founder selection required by founder-tier plans.
type ReplaceInput struct {
	Patient           Patient
	Current           *Subscription
	CurrentPrice      *PaymentPrice
	NewPrice          PaymentPrice
	Coupon            *PromoCodeCoupon
	Employer          *EmployerProduct
	FounderID         *uuid.UUID
	StartDate         time.Time
	FirstSubscription bool
	OpenIssues        []*PaymentIssue
	Now               time.Time
}

// Replace switches the patient onto a new plan. It is permitted only when
// there is no current subscription, or the current one is active and its
// plan is marked replaceable. Founder-tier plans require a founder
// selection. The superseded subscription is cancelled with the internal
// replaced reason and its open payment issues are cancelled with it.
func Replace(in ReplaceInput) (effect.Descriptor, error) {
	if in.NewPrice.Founder && in.FounderID == nil {
		return effect.Descriptor{}, ErrFounderRequired
	}

	if in.Current != nil && in.Current.CurrentAt(in.Now) {
		if in.CurrentPrice == nil || in.Current.StateAt(in.Now) != StateActive || !in.CurrentPrice.Replaceable {
			return effect.Descriptor{}, &FlowError{
				SubscriptionID: in.Current.ID,
				PatientID:      in.Patient.ID,
				Err:            ErrNotReplaceable,
			}
		}
	}

	quote, err := ResolvePrice(in.NewPrice, in.Coupon, in.Employer, in.StartDate, in.FirstSubscription)
	if err != nil {
		return effect.Descriptor{}, err
	}

	next := newSubscription(in.Patient.ID, in.NewPrice, quote, in.StartDate, nil, in.Now)
	if in.Coupon != nil {
		next.PromoCodeCouponID = &in.Coupon.ID
	}
	if in.Employer != nil {
		next.EmployerProductID = &in.Employer.ID
	}
	next.RenewalStrategy = deriveRenewalStrategy(in.NewPrice.ID, in.Coupon, in.Employer)

	d := effect.Descriptor{}
	if in.Current != nil && !in.Current.Cancelled() {
		cancelled, err := Cancel(CancelInput{
			Subscription: in.Current,
			Reason:       CancelReasonReplaced,
			OpenIssues:   in.OpenIssues,
			Now:          in.Now,
		})
		if err != nil {
			return effect.Descriptor{}, err
		}
		d = d.Append(cancelled)
	}

	d = d.Append(effect.Add(next))
	if in.Current != nil && in.CurrentPrice != nil {
		d = d.Append(timelineDiff(in.Current, next, *in.CurrentPrice, in.NewPrice, in.Now))
	}
	d = d.Append(effect.Emit(createdEvent(next)))

	return d, nil
}
