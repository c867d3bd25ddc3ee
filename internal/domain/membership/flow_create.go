package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careward/careward/internal/effect"
)

// CreateInput carries the fully loaded entities for creating a new
// subscription period. Current is the patient's current subscription, nil
// when there is none. EndDateOverride skips the period-derived end date.
type CreateInput struct {
	Patient           Patient
	Current           *Subscription
	Price             PaymentPrice
	Coupon            *PromoCodeCoupon
	Employer          *EmployerProduct
	StartDate         time.Time
	EndDateOverride   *time.Time
	FirstSubscription bool
	Now               time.Time
}

// Create builds a new subscription for an active patient with no current
// subscription. The renewal strategy is derived from the same inputs used
// to create the subscription; a limited employer product is applied once
// and not carried forward.
func Create(in CreateInput) (effect.Descriptor, error) {
	if !in.Patient.Active {
		return effect.Descriptor{}, ErrPatientInactive
	}
	if in.Current != nil && in.Current.CurrentAt(in.Now) {
		return effect.Descriptor{}, &FlowError{
			SubscriptionID: in.Current.ID,
			PatientID:      in.Patient.ID,
			Err:            ErrHasCurrentSubscription,
		}
	}

	quote, err := ResolvePrice(in.Price, in.Coupon, in.Employer, in.StartDate, in.FirstSubscription)
	if err != nil {
		return effect.Descriptor{}, err
	}

	sub := newSubscription(in.Patient.ID, in.Price, quote, in.StartDate, in.EndDateOverride, in.Now)
	if in.Coupon != nil {
		sub.PromoCodeCouponID = &in.Coupon.ID
	}
	if in.Employer != nil {
		sub.EmployerProductID = &in.Employer.ID
	}
	sub.RenewalStrategy = deriveRenewalStrategy(in.Price.ID, in.Coupon, in.Employer)

	return effect.Add(sub).Append(effect.Emit(createdEvent(sub))), nil
}

// CreateUpfront is the zero-configuration bootstrap variant: it takes the
// payment price verbatim and skips discount and promo-code resolution.
func CreateUpfront(in CreateInput) (effect.Descriptor, error) {
	if !in.Patient.Active {
		return effect.Descriptor{}, ErrPatientInactive
	}
	if in.Current != nil && in.Current.CurrentAt(in.Now) {
		return effect.Descriptor{}, &FlowError{
			SubscriptionID: in.Current.ID,
			PatientID:      in.Patient.ID,
			Err:            ErrHasCurrentSubscription,
		}
	}

	quote := Quote{Net: in.Price.Price, StartupFee: decimal.Zero}
	sub := newSubscription(in.Patient.ID, in.Price, quote, in.StartDate, in.EndDateOverride, in.Now)
	sub.RenewalStrategy = deriveRenewalStrategy(in.Price.ID, nil, nil)

	return effect.Add(sub).Append(effect.Emit(createdEvent(sub))), nil
}

func newSubscription(patientID uuid.UUID, price PaymentPrice, quote Quote, start time.Time, endOverride *time.Time, now time.Time) *Subscription {
	end := start.AddDate(0, price.PeriodMonths, 0)
	if endOverride != nil {
		end = *endOverride
	}
	return &Subscription{
		ID:             uuid.New(),
		PatientID:      patientID,
		PaymentPriceID: price.ID,
		Price:          quote.Net,
		Discounts:      quote.Discounts,
		StartupFee:     quote.StartupFee,
		StartDate:      start,
		EndDate:        end,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// deriveRenewalStrategy builds the system-derived intent for the next
// period from the inputs that created this one.
func deriveRenewalStrategy(priceID uuid.UUID, coupon *PromoCodeCoupon, employer *EmployerProduct) *RenewalStrategy {
	rs := &RenewalStrategy{PaymentPriceID: priceID, Source: RenewalSourceSystemDerived}
	if coupon != nil {
		rs.PromoCodeID = &coupon.ID
	}
	if employer != nil && !employer.IsLimited {
		rs.EmployerProductID = &employer.ID
	}
	return rs
}

func createdEvent(sub *Subscription) SubscriptionCreatedEvent {
	return SubscriptionCreatedEvent{
		SubscriptionID: sub.ID,
		PatientID:      sub.PatientID,
		PaymentPriceID: sub.PaymentPriceID,
		Price:          sub.Price,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
	}
}
