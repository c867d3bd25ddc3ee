package membership

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the resolved cost of a prospective subscription.
type Quote struct {
	Net        decimal.Decimal
	Discounts  []Discount
	StartupFee decimal.Decimal
}

// ResolvePrice computes the net price, ordered discount breakdown, and
// startup fee for a prospective subscription. Discounts apply in fixed
// precedence: promo code first, then employer sponsorship. Both are computed
// against the catalog base price; an employer percentage compounds on the
// promo-discounted amount only when the product explicitly says so.
//
// The startup fee applies only to a patient's first-ever subscription,
// never on renewal.
//
// A supplied coupon that is not usable for the payment price is an error;
// the resolver never silently drops it.
func ResolvePrice(price PaymentPrice, coupon *PromoCodeCoupon, employer *EmployerProduct, effective time.Time, firstSubscription bool) (Quote, error) {
	base := price.Price
	q := Quote{Net: base, StartupFee: decimal.Zero}

	promoDiscount := decimal.Zero
	if coupon != nil {
		if err := CheckPromoCodeUsable(coupon, price, effective); err != nil {
			return Quote{}, err
		}
		promoDiscount = coupon.DiscountOn(base)
		q.Discounts = append(q.Discounts, Discount{Type: DiscountPromoCode, Amount: promoDiscount})
	}

	if employer != nil {
		discounted := base.Sub(promoDiscount)
		amt := employer.DiscountOn(base, discounted)
		q.Discounts = append(q.Discounts, Discount{Type: DiscountEmployerProduct, Amount: amt})
	}

	for _, d := range q.Discounts {
		q.Net = q.Net.Sub(d.Amount)
	}
	if q.Net.IsNegative() {
		q.Net = decimal.Zero
	}

	if firstSubscription {
		q.StartupFee = price.StartupFee
	}
	return q, nil
}
