package membership

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func overwriteFixture() OverwriteInput {
	cheap := newTestPrice("legacy-monthly", "8", 1, PartialPayment, PriceTypeDefault)
	sub := newTestSubscription(uuid.New(), cheap, dateUTC(2026, time.January, 1))
	return OverwriteInput{
		Subscription: sub,
		CurrentPrice: cheap,
		Alternate:    newTestPrice("monthly", "15", 1, PartialPayment, PriceTypeDefault),
		MinPrice:     money("10"),
		NoticeDays:   30,
		Now:          dateUTC(2026, time.June, 1),
	}
}

func TestOverwrite_BelowFloorRedirects(t *testing.T) {
	in := overwriteFixture()

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	subs := mutatedSubscriptions(d)
	if len(subs) != 1 {
		t.Fatalf("expected one updated subscription, got %d", len(subs))
	}
	rs := subs[0].RenewalStrategy
	if rs == nil || rs.PaymentPriceID != in.Alternate.ID {
		t.Fatal("renewal strategy must point at the alternate price")
	}
	if rs.Source != RenewalSourceOverwriteFlow {
		t.Errorf("expected source %s, got %s", RenewalSourceOverwriteFlow, rs.Source)
	}
	if len(d.Events()) != 1 || !hasEvent(d, "integration.renewal_workflow.notice") {
		t.Errorf("expected exactly one renewal-workflow event, got %v", eventNames(d))
	}
}

func TestOverwrite_SecondRunIsNoOp(t *testing.T) {
	in := overwriteFixture()

	first, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Apply the rewrite the way the materializer would and run again.
	in.Subscription = mutatedSubscriptions(first)[0]

	second, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Empty() {
		t.Error("a subscription already processed by the pass must not be re-processed")
	}
}

func TestOverwrite_AtOrAboveFloorUntouched(t *testing.T) {
	in := overwriteFixture()
	in.CurrentPrice = newTestPrice("monthly-ok", "10", 1, PartialPayment, PriceTypeDefault)

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Empty() {
		t.Error("a subscription at the floor must be left untouched")
	}
}

func TestOverwrite_FullPaymentNormalizedPerMonth(t *testing.T) {
	in := overwriteFixture()
	// $96 over 12 months is $8/mo, below the $10 floor.
	annual := newTestPrice("legacy-annual", "96", 12, FullPayment, PriceTypeDefault)
	in.CurrentPrice = annual
	in.Subscription = newTestSubscription(in.Subscription.PatientID, annual, dateUTC(2026, time.January, 1))

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Empty() {
		t.Error("full-payment prices must be normalized per month before the floor check")
	}
}

func TestOverwrite_CancelledUntouched(t *testing.T) {
	in := overwriteFixture()
	in.Subscription.Cancellation = &CancellationRequest{
		Date:       dateUTC(2026, time.May, 1),
		ReasonType: CancelReasonUserRequested,
	}

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Empty() {
		t.Error("cancelled subscriptions are never re-priced")
	}
}

func TestOverwrite_UpcomingUntouched(t *testing.T) {
	in := overwriteFixture()
	in.Now = dateUTC(2025, time.December, 1) // before the subscription starts

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Empty() {
		t.Error("upcoming subscriptions are not re-priced")
	}
}

func TestOverwrite_CarriesEmployerDropsPromo(t *testing.T) {
	in := overwriteFixture()
	promoID := uuid.New()
	employerID := uuid.New()
	in.Subscription.RenewalStrategy = &RenewalStrategy{
		PaymentPriceID:    in.CurrentPrice.ID,
		PromoCodeID:       &promoID,
		EmployerProductID: &employerID,
		Source:            RenewalSourceSystemDerived,
	}

	d, err := Overwrite(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rs := mutatedSubscriptions(d)[0].RenewalStrategy
	if rs.PromoCodeID != nil {
		t.Error("the rewritten strategy must not keep the promo code")
	}
	if rs.EmployerProductID == nil || *rs.EmployerProductID != employerID {
		t.Error("the employer sponsorship carries into the rewritten strategy")
	}
}
