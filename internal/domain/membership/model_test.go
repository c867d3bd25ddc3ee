package membership

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSubscriptionStateAt(t *testing.T) {
	price := newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault)
	start := dateUTC(2026, time.March, 1)
	sub := newTestSubscription(uuid.New(), price, start)

	if got := sub.StateAt(start.AddDate(0, 0, -1)); got != StateUpcoming {
		t.Errorf("before start: expected %s, got %s", StateUpcoming, got)
	}
	if got := sub.StateAt(start); got != StateActive {
		t.Errorf("at start: expected %s, got %s", StateActive, got)
	}
	if got := sub.StateAt(sub.EndDate); got != StateExpired {
		t.Errorf("at end: expected %s, got %s", StateExpired, got)
	}

	sub.Cancellation = &CancellationRequest{Date: start, ReasonType: CancelReasonUserRequested}
	if got := sub.StateAt(start); got != StateCancelled {
		t.Errorf("cancellation must take precedence, got %s", got)
	}
	if got := sub.StateAt(start.AddDate(0, 0, -1)); got != StateCancelled {
		t.Errorf("cancellation is terminal even before start, got %s", got)
	}
}

func TestSubscriptionCurrentAt(t *testing.T) {
	price := newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault)
	start := dateUTC(2026, time.March, 1)
	sub := newTestSubscription(uuid.New(), price, start)

	if sub.CurrentAt(start.AddDate(0, 0, -1)) {
		t.Error("not current before start")
	}
	if !sub.CurrentAt(start) {
		t.Error("current at start (inclusive)")
	}
	if sub.CurrentAt(sub.EndDate) {
		t.Error("not current at end (exclusive)")
	}

	sub.Cancellation = &CancellationRequest{Date: start, ReasonType: CancelReasonUserRequested}
	if sub.CurrentAt(start.AddDate(0, 1, 0)) {
		t.Error("cancelled subscriptions are never current")
	}
}

func TestCancellationReasonInternal(t *testing.T) {
	internal := []CancellationReason{CancelReasonRenewed, CancelReasonReplaced}
	for _, r := range internal {
		if !r.internal() {
			t.Errorf("%s should be internal", r)
		}
	}
	visible := []CancellationReason{CancelReasonUserRequested, CancelReasonPaymentIssue}
	for _, r := range visible {
		if r.internal() {
			t.Errorf("%s should be user-visible", r)
		}
	}
}

func TestSubscriptionClone(t *testing.T) {
	price := newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault)
	sub := newTestSubscription(uuid.New(), price, dateUTC(2026, time.March, 1))
	sub.Discounts = []Discount{{Type: DiscountPromoCode, Amount: money("100")}}
	sub.IntegrationLinks = []IntegrationLink{{Vendor: "stripe", Ref: "sub_1"}}
	sub.RenewalStrategy = &RenewalStrategy{PaymentPriceID: price.ID, Source: RenewalSourceSystemDerived}

	c := sub.clone()
	c.Discounts[0].Amount = money("1")
	c.IntegrationLinks[0].Ref = "sub_2"
	c.RenewalStrategy.Source = RenewalSourceManual

	if !sub.Discounts[0].Amount.Equal(money("100")) {
		t.Error("clone must not share the discounts slice")
	}
	if sub.IntegrationLinks[0].Ref != "sub_1" {
		t.Error("clone must not share the integration links slice")
	}
	if sub.RenewalStrategy.Source != RenewalSourceSystemDerived {
		t.Error("clone must not share the renewal strategy")
	}
}

func TestVendorStatusActiveLike(t *testing.T) {
	for _, s := range []string{"active", "trialing", "past_due", "Active", " PAST_DUE "} {
		if !VendorStatusActiveLike(s) {
			t.Errorf("%q should count as active-like", s)
		}
	}
	for _, s := range []string{"canceled", "incomplete", "unpaid", ""} {
		if VendorStatusActiveLike(s) {
			t.Errorf("%q should not count as active-like", s)
		}
	}
}
