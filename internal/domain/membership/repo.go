package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionRepository is the read/write model for subscriptions and
// their owned renewal strategies.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	Update(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetCurrentByPatient returns the patient's current subscription (not
	// cancelled, now within [start, end)), or nil when there is none. This
	// query is the boundary that enforces the at-most-one-current invariant.
	GetCurrentByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) (*Subscription, error)
	// GetLatestByPatient returns the patient's most recent subscription by
	// start date regardless of state, or nil.
	GetLatestByPatient(ctx context.Context, patientID uuid.UUID) (*Subscription, error)
	// CountByPatient reports how many subscription rows the patient has.
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	// ListDueForRenewal returns non-cancelled subscriptions whose period
	// ends on or before the cutoff. A missing renewal strategy does not
	// exclude a row; renewal resolution decides what the next period uses.
	ListDueForRenewal(ctx context.Context, cutoff time.Time, limit int) ([]*Subscription, error)
	// ListForReprice returns non-cancelled subscriptions not yet processed
	// by the re-pricing pass.
	ListForReprice(ctx context.Context, limit int) ([]*Subscription, error)
}

type PaymentPriceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentPrice, error)
	GetByCode(ctx context.Context, code string) (*PaymentPrice, error)
	List(ctx context.Context) ([]PaymentPrice, error)
}

type PromoCodeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*PromoCodeCoupon, error)
	GetByCode(ctx context.Context, code string) (*PromoCodeCoupon, error)
}

type EmployerProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*EmployerProduct, error)
}

type PaymentIssueRepository interface {
	Update(ctx context.Context, issue *PaymentIssue) error
	ListOpenBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*PaymentIssue, error)
}

type TimelineRepository interface {
	Create(ctx context.Context, ev *TimelineEvent) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TimelineEvent, int, error)
}

// PatientReader resolves the slice of the patient record billing needs.
type PatientReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
