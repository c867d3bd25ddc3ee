package membership

import (
	"fmt"
	"time"
)

// CheckPromoCodeUsable reports whether the coupon can be applied to the
// given payment price right now. A coupon is usable iff it is within its
// validity window, its plan scope covers the price, and, for insurance
// tiers, it is explicitly flagged insurance-applicable.
func CheckPromoCodeUsable(coupon *PromoCodeCoupon, price PaymentPrice, now time.Time) error {
	if now.Before(coupon.ValidFrom) || !now.Before(coupon.ValidUntil) {
		return fmt.Errorf("promo code %s outside validity window: %w", coupon.Code, ErrPromoCodeNotUsable)
	}
	if !coupon.eligibleFor(price.ID) {
		return fmt.Errorf("promo code %s not eligible for payment price %s: %w", coupon.Code, price.Code, ErrPromoCodeNotUsable)
	}
	if price.Type.insurance() && !coupon.InsuranceApplicable {
		return fmt.Errorf("promo code %s not applicable to insurance prices: %w", coupon.Code, ErrPromoCodeNotUsable)
	}
	return nil
}

func promoCodeUsable(coupon *PromoCodeCoupon, price PaymentPrice, now time.Time) bool {
	return coupon != nil && CheckPromoCodeUsable(coupon, price, now) == nil
}

// PromoResolution is the {payment price, coupon} pair a new subscription
// built at renewal time should use. Coupon is nil when no code carries over.
type PromoResolution struct {
	Price  PaymentPrice
	Coupon *PromoCodeCoupon
}

// ResolvePromoCodeInput carries the fully loaded entities the renewal
// resolution decides over. StrategyPrice and StrategyCoupon are the entities
// named by the subscription's renewal strategy, when it has one.
// Replacement is the optional coupon offered as a carry-forward candidate on
// the legacy price-type migration path. Catalog is the set of payment
// prices searched for a default tier on that same path.
type ResolvePromoCodeInput struct {
	Subscription   Subscription
	CurrentPrice   PaymentPrice
	CurrentCoupon  *PromoCodeCoupon
	StrategyPrice  *PaymentPrice
	StrategyCoupon *PromoCodeCoupon
	Replacement    *PromoCodeCoupon
	Catalog        []PaymentPrice
	Now            time.Time
}

// ResolvePromoCode decides which price and promo code the next subscription
// period should use. The rules form an ordered decision chain; the first
// matching rule wins. The order encodes the migration path from the legacy
// promo-code pricing scheme to the current one and must not be changed.
func ResolvePromoCode(in ResolvePromoCodeInput) (PromoResolution, error) {
	sub := in.Subscription

	// Rule 1: an explicit renewal strategy wins. Its coupon carries over
	// only if still usable; an expired coupon yields no code, never the
	// stale one.
	if sub.RenewalStrategy != nil && in.StrategyPrice != nil {
		res := PromoResolution{Price: *in.StrategyPrice}
		if sub.RenewalStrategy.PromoCodeID != nil && promoCodeUsable(in.StrategyCoupon, *in.StrategyPrice, in.Now) {
			res.Coupon = in.StrategyCoupon
		}
		return res, nil
	}

	// Rule 2: the current coupon carries forward unchanged while usable.
	if promoCodeUsable(in.CurrentCoupon, in.CurrentPrice, in.Now) {
		return PromoResolution{Price: in.CurrentPrice, Coupon: in.CurrentCoupon}, nil
	}

	// Rule 3: plain default or insurance tier with no code attached; there
	// is nothing to resolve.
	if (in.CurrentPrice.Type == PriceTypeDefault || in.CurrentPrice.Type == PriceTypeInsurance) &&
		sub.PromoCodeCouponID == nil {
		return PromoResolution{Price: in.CurrentPrice}, nil
	}

	// Rule 4: legacy promo-code tiers migrate to their non-promo equivalent.
	// Pick the default price of matching strategy, preferring an active one.
	// A replacement coupon carries forward only if still usable against the
	// chosen price.
	if target, ok := in.CurrentPrice.Type.defaultEquivalent(); ok {
		chosen := pickDefaultPrice(in.Catalog, target, in.CurrentPrice.Strategy)
		if chosen == nil {
			return PromoResolution{}, &NoDefaultPriceError{
				SubscriptionID: sub.ID,
				PaymentPriceID: in.CurrentPrice.ID,
				WantType:       target,
				WantStrategy:   in.CurrentPrice.Strategy,
			}
		}
		res := PromoResolution{Price: *chosen}
		if promoCodeUsable(in.Replacement, *chosen, in.Now) {
			res.Coupon = in.Replacement
		}
		return res, nil
	}

	// Rule 5: fall back to the existing price and attached coupon verbatim.
	return PromoResolution{Price: in.CurrentPrice, Coupon: in.CurrentCoupon}, nil
}

func pickDefaultPrice(catalog []PaymentPrice, wantType PaymentPriceType, wantStrategy PaymentStrategy) *PaymentPrice {
	var fallback *PaymentPrice
	for i := range catalog {
		p := catalog[i]
		if p.Type != wantType || p.Strategy != wantStrategy {
			continue
		}
		if p.Active {
			return &p
		}
		if fallback == nil {
			fallback = &p
		}
	}
	return fallback
}
