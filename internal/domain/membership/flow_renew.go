package membership

import (
	"time"

	"github.com/careward/careward/internal/effect"
)

// RenewInput carries the entities for rolling a subscription into its next
// period. NextPrice/NextCoupon come out of promo-code renewal resolution;
// VendorStatus is the looked-up state of the current integration link, ""
// when the subscription has none.
type RenewInput struct {
	Current      *Subscription
	CurrentPrice PaymentPrice
	NextPrice    PaymentPrice
	NextCoupon   *PromoCodeCoupon
	NextEmployer *EmployerProduct
	OpenIssues   []*PaymentIssue
	VendorStatus string
	Now          time.Time
}

// Renew cancels the current subscription with the internal renewed reason
// and creates the next period as one atomic unit. The existing external
// billing subscription is re-linked when the vendor still reports it in an
// active-like state; otherwise a new external subscription is requested and
// the stale link is reported as canceled.
func Renew(in RenewInput) (effect.Descriptor, error) {
	cur := in.Current

	cancelled, err := Cancel(CancelInput{
		Subscription: cur,
		Reason:       CancelReasonRenewed,
		OpenIssues:   in.OpenIssues,
		Now:          in.Now,
	})
	if err != nil {
		return effect.Descriptor{}, err
	}

	quote, err := ResolvePrice(in.NextPrice, in.NextCoupon, in.NextEmployer, cur.EndDate, false)
	if err != nil {
		return effect.Descriptor{}, &FlowError{SubscriptionID: cur.ID, PatientID: cur.PatientID, Err: err}
	}

	next := newSubscription(cur.PatientID, in.NextPrice, quote, cur.EndDate, nil, in.Now)
	if in.NextCoupon != nil {
		next.PromoCodeCouponID = &in.NextCoupon.ID
	}
	if in.NextEmployer != nil {
		next.EmployerProductID = &in.NextEmployer.ID
	}
	next.RenewalStrategy = deriveRenewalStrategy(in.NextPrice.ID, in.NextCoupon, in.NextEmployer)

	d := cancelled
	relinked := false
	if len(cur.IntegrationLinks) > 0 && VendorStatusActiveLike(in.VendorStatus) {
		next.IntegrationLinks = append([]IntegrationLink(nil), cur.IntegrationLinks...)
		relinked = true
	}

	d = d.Append(effect.Add(next))
	d = d.Append(timelineDiff(cur, next, in.CurrentPrice, in.NextPrice, in.Now))

	if !relinked {
		for _, link := range cur.IntegrationLinks {
			d = d.Append(effect.Emit(IntegrationSubscriptionCanceledEvent{
				SubscriptionID: cur.ID,
				PatientID:      cur.PatientID,
				Vendor:         link.Vendor,
				VendorRef:      link.Ref,
			}))
		}
		d = d.Append(effect.Emit(IntegrationSubscriptionCreateRequestedEvent{
			SubscriptionID: next.ID,
			PatientID:      next.PatientID,
		}))
	}

	// The next period always starts where the current one ends, so only a
	// price change is observable across the boundary.
	if !next.Price.Equal(cur.Price) {
		d = d.Append(effect.Emit(SubscriptionPriceChangedEvent{
			SubscriptionID: next.ID,
			PatientID:      next.PatientID,
			OldPrice:       cur.Price,
			NewPrice:       next.Price,
			StartDate:      next.StartDate,
		}))
	}

	if in.CurrentPrice.Premium {
		d = d.Append(effect.Emit(PremiumRenewalAlertEvent{
			SubscriptionID: cur.ID,
			PatientID:      cur.PatientID,
			PriceCode:      in.CurrentPrice.Code,
		}))
	}

	return d, nil
}
