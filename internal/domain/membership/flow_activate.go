package membership

import (
	"time"

	"github.com/careward/careward/internal/effect"
)

// ActivateInput carries the entities for activating a free membership.
// Previous is the subscription the new one displaces (nil when the patient
// never had one); PreviousPrice is its payment price.
type ActivateInput struct {
	Patient       Patient
	Current       *Subscription
	Previous      *Subscription
	PreviousPrice *PaymentPrice
	Price         PaymentPrice
	StartDate     time.Time
	Now           time.Time
}

// Activate creates a zero-price subscription. It is only valid when the
// payment price is free and the patient has no current subscription;
// anything else raises.
func Activate(in ActivateInput) (effect.Descriptor, error) {
	if !in.Price.Price.IsZero() {
		return effect.Descriptor{}, ErrActivateNonZeroPrice
	}
	if in.Current != nil && in.Current.CurrentAt(in.Now) {
		return effect.Descriptor{}, &FlowError{
			SubscriptionID: in.Current.ID,
			PatientID:      in.Patient.ID,
			Err:            ErrHasCurrentSubscription,
		}
	}

	quote := Quote{Net: in.Price.Price}
	sub := newSubscription(in.Patient.ID, in.Price, quote, in.StartDate, nil, in.Now)
	sub.RenewalStrategy = deriveRenewalStrategy(in.Price.ID, nil, nil)

	d := effect.Add(sub)
	if in.Previous != nil && in.PreviousPrice != nil {
		d = d.Append(timelineDiff(in.Previous, sub, *in.PreviousPrice, in.Price, in.Now))
	}
	d = d.Append(
		effect.Emit(createdEvent(sub)),
		effect.Emit(SubscriptionActivatedEvent{SubscriptionID: sub.ID, PatientID: sub.PatientID}),
	)
	return d, nil
}
