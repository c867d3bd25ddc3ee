package membership

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careward/careward/internal/effect"
)

// Shared builders for the membership tests.

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dateUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newTestPrice(code, amount string, months int, strategy PaymentStrategy, typ PaymentPriceType) PaymentPrice {
	return PaymentPrice{
		ID:           uuid.New(),
		Code:         code,
		Price:        money(amount),
		PeriodMonths: months,
		Strategy:     strategy,
		Type:         typ,
		Active:       true,
		Replaceable:  true,
	}
}

func newTestCoupon(code string, kind DiscountKind, value string, from, until time.Time) *PromoCodeCoupon {
	return &PromoCodeCoupon{
		ID:         uuid.New(),
		Code:       code,
		Kind:       kind,
		Value:      money(value),
		ValidFrom:  from,
		ValidUntil: until,
	}
}

func newTestSubscription(patientID uuid.UUID, price PaymentPrice, start time.Time) *Subscription {
	return &Subscription{
		ID:             uuid.New(),
		PatientID:      patientID,
		PaymentPriceID: price.ID,
		Price:          price.Price,
		StartDate:      start,
		EndDate:        start.AddDate(0, price.PeriodMonths, 0),
		CreatedAt:      start,
		UpdatedAt:      start,
	}
}

func assertMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(money(want)) {
		t.Errorf("%s: expected %s, got %s", name, want, got)
	}
}

// timelineEntries extracts the timeline events mutated by a descriptor.
func timelineEntries(d effect.Descriptor) []*TimelineEvent {
	var out []*TimelineEvent
	for _, m := range d.Mutations() {
		if ev, ok := m.Entity.(*TimelineEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

// mutatedSubscriptions extracts the subscription entities a descriptor
// adds or updates, in order.
func mutatedSubscriptions(d effect.Descriptor) []*Subscription {
	var out []*Subscription
	for _, m := range d.Mutations() {
		if s, ok := m.Entity.(*Subscription); ok {
			out = append(out, s)
		}
	}
	return out
}

func eventNames(d effect.Descriptor) []string {
	var out []string
	for _, ev := range d.Events() {
		out = append(out, ev.EventName())
	}
	return out
}

func hasEvent(d effect.Descriptor, name string) bool {
	for _, n := range eventNames(d) {
		if n == name {
			return true
		}
	}
	return false
}
