package membership

import (
	"time"

	"github.com/google/uuid"

	"github.com/careward/careward/internal/effect"
)

// timelineDiff compares a superseded subscription with its successor and
// emits one append-only audit record per field that actually changed.
// Fields that are equal produce nothing; renewing onto an identical plan,
// strategy, and dates yields an empty descriptor.
func timelineDiff(before, after *Subscription, beforePrice, afterPrice PaymentPrice, now time.Time) effect.Descriptor {
	d := effect.Descriptor{}

	switch {
	case before.PromoCodeCouponID == nil && after.PromoCodeCouponID != nil:
		d = d.Append(timelineEntry(after.PatientID, TimelinePromoCodeAdded, now, map[string]interface{}{
			"promo_code_coupon_id": after.PromoCodeCouponID.String(),
		}))
	case before.PromoCodeCouponID != nil && after.PromoCodeCouponID == nil:
		d = d.Append(timelineEntry(after.PatientID, TimelinePromoCodeRemoved, now, map[string]interface{}{
			"promo_code_coupon_id": before.PromoCodeCouponID.String(),
		}))
	case before.PromoCodeCouponID != nil && after.PromoCodeCouponID != nil &&
		*before.PromoCodeCouponID != *after.PromoCodeCouponID:
		d = d.Append(
			timelineEntry(after.PatientID, TimelinePromoCodeRemoved, now, map[string]interface{}{
				"promo_code_coupon_id": before.PromoCodeCouponID.String(),
			}),
			timelineEntry(after.PatientID, TimelinePromoCodeAdded, now, map[string]interface{}{
				"promo_code_coupon_id": after.PromoCodeCouponID.String(),
			}),
		)
	}

	if before.PaymentPriceID != after.PaymentPriceID {
		d = d.Append(timelineEntry(after.PatientID, TimelinePlanReplaced, now, map[string]interface{}{
			"old_payment_price_id": before.PaymentPriceID.String(),
			"new_payment_price_id": after.PaymentPriceID.String(),
		}))
	}

	if beforePrice.Strategy != afterPrice.Strategy {
		d = d.Append(timelineEntry(after.PatientID, TimelinePaymentStrategyChanged, now, map[string]interface{}{
			"old_strategy": string(beforePrice.Strategy),
			"new_strategy": string(afterPrice.Strategy),
		}))
	}

	if !before.StartDate.Equal(after.StartDate) {
		d = d.Append(timelineEntry(after.PatientID, TimelineStartDateUpdated, now, map[string]interface{}{
			"old_start_date": before.StartDate,
			"new_start_date": after.StartDate,
		}))
	}

	if !before.EndDate.Equal(after.EndDate) {
		d = d.Append(timelineEntry(after.PatientID, TimelineEndDateUpdated, now, map[string]interface{}{
			"old_end_date": before.EndDate,
			"new_end_date": after.EndDate,
		}))
	}

	return d
}

func timelineEntry(patientID uuid.UUID, kind TimelineEventKind, now time.Time, payload map[string]interface{}) effect.Descriptor {
	return effect.Add(&TimelineEvent{
		ID:         uuid.New(),
		PatientID:  patientID,
		Kind:       kind,
		OccurredAt: now,
		Payload:    payload,
	})
}
