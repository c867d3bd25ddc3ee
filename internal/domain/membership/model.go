// Package membership implements the paid-membership billing core: the
// subscription data model, pricing and promo-code resolution, the lifecycle
// flows that produce effect descriptors, and the timeline audit log.
package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStrategy says how a period is paid for.
type PaymentStrategy string

const (
	// FullPayment pays the whole period upfront.
	FullPayment PaymentStrategy = "full_payment"
	// PartialPayment pays month by month.
	PartialPayment PaymentStrategy = "partial_payment"
)

// PaymentPriceType classifies a catalog price tier.
type PaymentPriceType string

const (
	PriceTypeDefault            PaymentPriceType = "default"
	PriceTypePromoCode          PaymentPriceType = "promo_code"
	PriceTypeInsurance          PaymentPriceType = "insurance"
	PriceTypeInsurancePromoCode PaymentPriceType = "insurance_promo_code"
)

// defaultEquivalent maps the legacy promo-code price types onto the
// non-promo tier they migrate to at renewal.
func (t PaymentPriceType) defaultEquivalent() (PaymentPriceType, bool) {
	switch t {
	case PriceTypePromoCode:
		return PriceTypeDefault, true
	case PriceTypeInsurancePromoCode:
		return PriceTypeInsurance, true
	default:
		return "", false
	}
}

// insurance reports whether the tier is billed through insurance.
func (t PaymentPriceType) insurance() bool {
	return t == PriceTypeInsurance || t == PriceTypeInsurancePromoCode
}

// PaymentPrice is an immutable catalog price tier.
type PaymentPrice struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	Code         string           `db:"code" json:"code"`
	Price        decimal.Decimal  `db:"price" json:"price"`
	StartupFee   decimal.Decimal  `db:"startup_fee" json:"startup_fee"`
	PeriodMonths int              `db:"period_months" json:"period_months"`
	Strategy     PaymentStrategy  `db:"strategy" json:"strategy"`
	Type         PaymentPriceType `db:"type" json:"type"`
	Active       bool             `db:"active" json:"active"`
	Premium      bool             `db:"premium" json:"premium"`
	Founder      bool             `db:"founder" json:"founder"`
	Replaceable  bool             `db:"replaceable" json:"replaceable"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// PerMonth normalizes the tier to a monthly amount: full-payment prices are
// divided by the period length, partial-payment prices are already monthly.
func (p PaymentPrice) PerMonth() decimal.Decimal {
	if p.Strategy == FullPayment && p.PeriodMonths > 0 {
		return p.Price.Div(decimal.NewFromInt(int64(p.PeriodMonths)))
	}
	return p.Price
}

func (p *PaymentPrice) EntityKind() string { return "payment_price" }

// DiscountKind says how a discount value is interpreted.
type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

// DiscountType identifies the source of a discount line.
type DiscountType string

const (
	DiscountPromoCode       DiscountType = "promo_code"
	DiscountEmployerProduct DiscountType = "employer_product"
)

// Discount is one applied discount line on a subscription.
type Discount struct {
	Type   DiscountType    `db:"type" json:"type"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

// PromoCodeCoupon is a discount code with a validity window and plan scope.
type PromoCodeCoupon struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	Code                string          `db:"code" json:"code"`
	Kind                DiscountKind    `db:"kind" json:"kind"`
	Value               decimal.Decimal `db:"value" json:"value"`
	ValidFrom           time.Time       `db:"valid_from" json:"valid_from"`
	ValidUntil          time.Time       `db:"valid_until" json:"valid_until"`
	EligiblePriceIDs    []uuid.UUID     `db:"eligible_price_ids" json:"eligible_price_ids"`
	InsuranceApplicable bool            `db:"insurance_applicable" json:"insurance_applicable"`
}

func (c *PromoCodeCoupon) EntityKind() string { return "promo_code_coupon" }

// eligibleFor reports whether the coupon's plan scope covers the price.
// An empty scope means the coupon is not plan-restricted.
func (c *PromoCodeCoupon) eligibleFor(priceID uuid.UUID) bool {
	if len(c.EligiblePriceIDs) == 0 {
		return true
	}
	for _, id := range c.EligiblePriceIDs {
		if id == priceID {
			return true
		}
	}
	return false
}

// DiscountOn computes the coupon's discount against the given base amount.
func (c *PromoCodeCoupon) DiscountOn(base decimal.Decimal) decimal.Decimal {
	if c.Kind == DiscountPercentage {
		return base.Mul(c.Value).Div(decimal.NewFromInt(100))
	}
	return c.Value
}

// EmployerProduct is an employer-sponsored discount. A limited product
// applies once and is not carried into the renewal strategy.
type EmployerProduct struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Kind      DiscountKind    `db:"kind" json:"kind"`
	Value     decimal.Decimal `db:"value" json:"value"`
	IsLimited bool            `db:"is_limited" json:"is_limited"`
	// CompoundsOnDiscounted applies percentage values to the price after the
	// promo-code discount instead of the base price.
	CompoundsOnDiscounted bool `db:"compounds_on_discounted" json:"compounds_on_discounted"`
}

func (e *EmployerProduct) EntityKind() string { return "employer_product" }

// DiscountOn computes the sponsorship discount. base is the catalog price;
// discounted is the price after the promo-code discount.
func (e *EmployerProduct) DiscountOn(base, discounted decimal.Decimal) decimal.Decimal {
	if e.Kind != DiscountPercentage {
		return e.Value
	}
	if e.CompoundsOnDiscounted {
		return discounted.Mul(e.Value).Div(decimal.NewFromInt(100))
	}
	return base.Mul(e.Value).Div(decimal.NewFromInt(100))
}

// RenewalSource tags who wrote a renewal strategy, so automated passes can
// tell their own work apart from manual or system-derived intent.
type RenewalSource string

const (
	RenewalSourceManual        RenewalSource = "manual"
	RenewalSourceSystemDerived RenewalSource = "system_derived"
	RenewalSourceOverwriteFlow RenewalSource = "overwrite_flow"
)

// RenewalStrategy is the persisted intent for the next subscription period.
// It is owned by its subscription and persisted alongside it.
type RenewalStrategy struct {
	PaymentPriceID    uuid.UUID     `db:"payment_price_id" json:"payment_price_id"`
	PromoCodeID       *uuid.UUID    `db:"promo_code_id" json:"promo_code_id,omitempty"`
	EmployerProductID *uuid.UUID    `db:"employer_product_id" json:"employer_product_id,omitempty"`
	Source            RenewalSource `db:"source" json:"source"`
}

// CancellationReason classifies why a subscription was cancelled. Renewed
// and Replaced are internal transitions, not customer-facing cancellations.
type CancellationReason string

const (
	CancelReasonUserRequested CancellationReason = "user_requested"
	CancelReasonPaymentIssue  CancellationReason = "payment_issue"
	CancelReasonRenewed       CancellationReason = "renewed"
	CancelReasonReplaced      CancellationReason = "replaced"
)

// internal reports whether the reason is a system transition that must not
// surface as a user-visible cancellation.
func (r CancellationReason) internal() bool {
	return r == CancelReasonRenewed || r == CancelReasonReplaced
}

// CancellationRequest records a terminal cancellation.
type CancellationRequest struct {
	Date       time.Time          `db:"date" json:"date"`
	ReasonType CancellationReason `db:"reason_type" json:"reason_type"`
	ReasonText string             `db:"reason_text" json:"reason_text,omitempty"`
}

// IntegrationLink ties a subscription to a billing vendor's subscription id.
type IntegrationLink struct {
	Vendor string `db:"vendor" json:"vendor"`
	Ref    string `db:"ref" json:"ref"`
}

// State is the derived lifecycle state of a subscription.
type State string

const (
	StateUpcoming  State = "upcoming"
	StateActive    State = "active"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Subscription is one billing period of a patient's membership.
type Subscription struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	PatientID         uuid.UUID            `db:"patient_id" json:"patient_id"`
	PaymentPriceID    uuid.UUID            `db:"payment_price_id" json:"payment_price_id"`
	Price             decimal.Decimal      `db:"price" json:"price"`
	Discounts         []Discount           `db:"discounts" json:"discounts,omitempty"`
	StartupFee        decimal.Decimal      `db:"startup_fee" json:"startup_fee"`
	StartDate         time.Time            `db:"start_date" json:"start_date"`
	EndDate           time.Time            `db:"end_date" json:"end_date"`
	PromoCodeCouponID *uuid.UUID           `db:"promo_code_coupon_id" json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *uuid.UUID           `db:"employer_product_id" json:"employer_product_id,omitempty"`
	Cancellation      *CancellationRequest `db:"cancellation" json:"cancellation,omitempty"`
	RenewalStrategy   *RenewalStrategy     `db:"renewal_strategy" json:"renewal_strategy,omitempty"`
	IntegrationLinks  []IntegrationLink    `db:"integration_links" json:"integration_links,omitempty"`
	PaidAt            *time.Time           `db:"paid_at" json:"paid_at,omitempty"`
	PaymentVendor     *string              `db:"payment_vendor" json:"payment_vendor,omitempty"`
	PaymentRef        *string              `db:"payment_ref" json:"payment_ref,omitempty"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`
}

func (s *Subscription) EntityKind() string { return "subscription" }

// StateAt derives the lifecycle state at the given instant. Cancellation is
// terminal and takes precedence over the date-derived states.
func (s *Subscription) StateAt(now time.Time) State {
	if s.Cancellation != nil {
		return StateCancelled
	}
	switch {
	case now.Before(s.StartDate):
		return StateUpcoming
	case now.Before(s.EndDate):
		return StateActive
	default:
		return StateExpired
	}
}

// CurrentAt reports whether the subscription counts as the patient's current
// one: not cancelled and now within [StartDate, EndDate).
func (s *Subscription) CurrentAt(now time.Time) bool {
	return s.Cancellation == nil && !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// Cancelled reports whether a cancellation request has been recorded.
func (s *Subscription) Cancelled() bool {
	return s.Cancellation != nil
}

// clone returns a deep-enough copy for building "after" states in flows
// without mutating the loaded entity.
func (s *Subscription) clone() *Subscription {
	out := *s
	out.Discounts = append([]Discount(nil), s.Discounts...)
	out.IntegrationLinks = append([]IntegrationLink(nil), s.IntegrationLinks...)
	if s.Cancellation != nil {
		c := *s.Cancellation
		out.Cancellation = &c
	}
	if s.RenewalStrategy != nil {
		r := *s.RenewalStrategy
		out.RenewalStrategy = &r
	}
	return &out
}

// Patient is the slice of the patient record billing needs to see.
type Patient struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Active bool      `db:"active" json:"active"`
}

// PaymentIssueStatus is the lifecycle of a payment issue.
type PaymentIssueStatus string

const (
	PaymentIssueOpen      PaymentIssueStatus = "open"
	PaymentIssueResolved  PaymentIssueStatus = "resolved"
	PaymentIssueCancelled PaymentIssueStatus = "cancelled"
)

// PaymentIssueType is what billing object the issue is about.
type PaymentIssueType string

const (
	PaymentIssueSubscription PaymentIssueType = "subscription"
	PaymentIssueInvoice      PaymentIssueType = "invoice"
)

// PaymentIssue is an open problem with collecting payment, linked to a
// subscription. Open subscription issues are cancelled together with the
// subscription they belong to.
type PaymentIssue struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id"`
	SubscriptionID uuid.UUID          `db:"subscription_id" json:"subscription_id"`
	Type           PaymentIssueType   `db:"type" json:"type"`
	Status         PaymentIssueStatus `db:"status" json:"status"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

func (p *PaymentIssue) EntityKind() string { return "payment_issue" }

// TimelineEventKind classifies a timeline audit record.
type TimelineEventKind string

const (
	TimelinePlanReplaced           TimelineEventKind = "plan_replaced"
	TimelinePromoCodeAdded         TimelineEventKind = "promo_code_added"
	TimelinePromoCodeRemoved       TimelineEventKind = "promo_code_removed"
	TimelinePaymentStrategyChanged TimelineEventKind = "payment_strategy_changed"
	TimelineStartDateUpdated       TimelineEventKind = "start_date_updated"
	TimelineEndDateUpdated         TimelineEventKind = "end_date_updated"
	TimelineSubscriptionCancelled  TimelineEventKind = "subscription_cancelled"
)

// TimelineEvent is an append-only audit record of a material change to a
// patient's billing state. Never mutated or deleted.
type TimelineEvent struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	PatientID  uuid.UUID              `db:"patient_id" json:"patient_id"`
	Kind       TimelineEventKind      `db:"kind" json:"kind"`
	OccurredAt time.Time              `db:"occurred_at" json:"occurred_at"`
	Payload    map[string]interface{} `db:"payload" json:"payload,omitempty"`
}

func (t *TimelineEvent) EntityKind() string { return "timeline_event" }
