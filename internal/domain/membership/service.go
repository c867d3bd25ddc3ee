package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/careward/careward/internal/effect"
)

// RepriceConfig configures the batch re-pricing pass.
type RepriceConfig struct {
	// MinPrice is the per-month floor below which a subscription's renewal
	// is redirected to the alternate tier.
	MinPrice decimal.Decimal
	// AlternatePriceCode names the payment price renewals are redirected to.
	AlternatePriceCode string
	// NoticeDays is the notice period carried on the integration event.
	NoticeDays int
}

// Service is the command layer: it loads entities, runs the pure lifecycle
// flows, and hands the resulting descriptors to the materializer. It is the
// only caller of the materializer.
type Service struct {
	subs      SubscriptionRepository
	prices    PaymentPriceRepository
	promos    PromoCodeRepository
	employers EmployerProductRepository
	issues    PaymentIssueRepository
	timeline  TimelineRepository
	patients  PatientReader
	mat       *effect.Materializer
	vendor    VendorStatusLookup
	reprice   RepriceConfig
	log       zerolog.Logger
}

func NewService(
	subs SubscriptionRepository,
	prices PaymentPriceRepository,
	promos PromoCodeRepository,
	employers EmployerProductRepository,
	issues PaymentIssueRepository,
	timeline TimelineRepository,
	patients PatientReader,
	mat *effect.Materializer,
	vendor VendorStatusLookup,
	reprice RepriceConfig,
	log zerolog.Logger,
) *Service {
	return &Service{
		subs: subs, prices: prices, promos: promos, employers: employers,
		issues: issues, timeline: timeline, patients: patients,
		mat: mat, vendor: vendor, reprice: reprice, log: log,
	}
}

// CreateSubscriptionCommand is the input for Create and CreateUpfront.
type CreateSubscriptionCommand struct {
	PatientID         uuid.UUID
	PaymentPriceID    uuid.UUID
	PromoCode         string
	EmployerProductID *uuid.UUID
	StartDate         time.Time
	EndDateOverride   *time.Time
}

func (s *Service) loadCreateInput(ctx context.Context, cmd CreateSubscriptionCommand, now time.Time) (CreateInput, error) {
	patient, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return CreateInput{}, fmt.Errorf("load patient %s: %w", cmd.PatientID, err)
	}
	price, err := s.prices.GetByID(ctx, cmd.PaymentPriceID)
	if err != nil {
		return CreateInput{}, fmt.Errorf("load payment price %s: %w", cmd.PaymentPriceID, err)
	}
	current, err := s.subs.GetCurrentByPatient(ctx, cmd.PatientID, now)
	if err != nil {
		return CreateInput{}, fmt.Errorf("load current subscription: %w", err)
	}
	count, err := s.subs.CountByPatient(ctx, cmd.PatientID)
	if err != nil {
		return CreateInput{}, fmt.Errorf("count subscriptions: %w", err)
	}

	in := CreateInput{
		Patient:           *patient,
		Current:           current,
		Price:             *price,
		StartDate:         cmd.StartDate,
		EndDateOverride:   cmd.EndDateOverride,
		FirstSubscription: count == 0,
		Now:               now,
	}
	if cmd.PromoCode != "" {
		coupon, err := s.promos.GetByCode(ctx, cmd.PromoCode)
		if err != nil {
			return CreateInput{}, fmt.Errorf("load promo code %q: %w", cmd.PromoCode, err)
		}
		in.Coupon = coupon
	}
	if cmd.EmployerProductID != nil {
		employer, err := s.employers.GetByID(ctx, *cmd.EmployerProductID)
		if err != nil {
			return CreateInput{}, fmt.Errorf("load employer product %s: %w", *cmd.EmployerProductID, err)
		}
		in.Employer = employer
	}
	return in, nil
}

// CreateSubscription creates a new paid membership subscription.
func (s *Service) CreateSubscription(ctx context.Context, cmd CreateSubscriptionCommand) error {
	now := time.Now().UTC()
	in, err := s.loadCreateInput(ctx, cmd, now)
	if err != nil {
		return err
	}
	d, err := Create(in)
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// CreateUpfrontSubscription creates a bootstrap subscription without
// discount or promo-code resolution.
func (s *Service) CreateUpfrontSubscription(ctx context.Context, cmd CreateSubscriptionCommand) error {
	now := time.Now().UTC()
	in, err := s.loadCreateInput(ctx, cmd, now)
	if err != nil {
		return err
	}
	in.Coupon = nil
	in.Employer = nil
	d, err := CreateUpfront(in)
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// ActivateSubscription activates a zero-price membership for a patient.
func (s *Service) ActivateSubscription(ctx context.Context, patientID, priceID uuid.UUID, startDate time.Time) error {
	now := time.Now().UTC()
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("load patient %s: %w", patientID, err)
	}
	price, err := s.prices.GetByID(ctx, priceID)
	if err != nil {
		return fmt.Errorf("load payment price %s: %w", priceID, err)
	}
	current, err := s.subs.GetCurrentByPatient(ctx, patientID, now)
	if err != nil {
		return fmt.Errorf("load current subscription: %w", err)
	}
	previous, err := s.subs.GetLatestByPatient(ctx, patientID)
	if err != nil {
		return fmt.Errorf("load latest subscription: %w", err)
	}

	in := ActivateInput{
		Patient:   *patient,
		Current:   current,
		Previous:  previous,
		Price:     *price,
		StartDate: startDate,
		Now:       now,
	}
	if previous != nil {
		prevPrice, err := s.prices.GetByID(ctx, previous.PaymentPriceID)
		if err != nil {
			return fmt.Errorf("load payment price %s: %w", previous.PaymentPriceID, err)
		}
		in.PreviousPrice = prevPrice
	}

	d, err := Activate(in)
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// ReplaceSubscriptionCommand is the input for a user-initiated plan switch.
type ReplaceSubscriptionCommand struct {
	PatientID         uuid.UUID
	NewPaymentPriceID uuid.UUID
	PromoCode         string
	EmployerProductID *uuid.UUID
	FounderID         *uuid.UUID
	StartDate         time.Time
}

// ReplaceSubscription switches the patient onto a new plan, cancelling the
// superseded subscription and its open payment issues atomically.
func (s *Service) ReplaceSubscription(ctx context.Context, cmd ReplaceSubscriptionCommand) error {
	now := time.Now().UTC()
	patient, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return fmt.Errorf("load patient %s: %w", cmd.PatientID, err)
	}
	newPrice, err := s.prices.GetByID(ctx, cmd.NewPaymentPriceID)
	if err != nil {
		return fmt.Errorf("load payment price %s: %w", cmd.NewPaymentPriceID, err)
	}
	current, err := s.subs.GetCurrentByPatient(ctx, cmd.PatientID, now)
	if err != nil {
		return fmt.Errorf("load current subscription: %w", err)
	}
	count, err := s.subs.CountByPatient(ctx, cmd.PatientID)
	if err != nil {
		return fmt.Errorf("count subscriptions: %w", err)
	}

	in := ReplaceInput{
		Patient:           *patient,
		Current:           current,
		NewPrice:          *newPrice,
		FounderID:         cmd.FounderID,
		StartDate:         cmd.StartDate,
		FirstSubscription: count == 0,
		Now:               now,
	}
	if current != nil {
		curPrice, err := s.prices.GetByID(ctx, current.PaymentPriceID)
		if err != nil {
			return fmt.Errorf("load payment price %s: %w", current.PaymentPriceID, err)
		}
		in.CurrentPrice = curPrice
		issues, err := s.issues.ListOpenBySubscription(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("load payment issues: %w", err)
		}
		in.OpenIssues = issues
	}
	if cmd.PromoCode != "" {
		coupon, err := s.promos.GetByCode(ctx, cmd.PromoCode)
		if err != nil {
			return fmt.Errorf("load promo code %q: %w", cmd.PromoCode, err)
		}
		in.Coupon = coupon
	}
	if cmd.EmployerProductID != nil {
		employer, err := s.employers.GetByID(ctx, *cmd.EmployerProductID)
		if err != nil {
			return fmt.Errorf("load employer product %s: %w", *cmd.EmployerProductID, err)
		}
		in.Employer = employer
	}

	d, err := Replace(in)
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// CancelSubscription records a user-facing cancellation. Cancelling an
// already-cancelled subscription is a no-op.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID, reason CancellationReason, reasonText string) error {
	now := time.Now().UTC()
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	issues, err := s.issues.ListOpenBySubscription(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load payment issues: %w", err)
	}

	d, err := Cancel(CancelInput{
		Subscription: sub,
		Reason:       reason,
		ReasonText:   reasonText,
		OpenIssues:   issues,
		Now:          now,
	})
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// MarkSubscriptionPaid records an external payment confirmation. A nil
// subscription id is a no-op.
func (s *Service) MarkSubscriptionPaid(ctx context.Context, subscriptionID *uuid.UUID, vendor, reference string) error {
	now := time.Now().UTC()
	var sub *Subscription
	if subscriptionID != nil {
		loaded, err := s.subs.GetByID(ctx, *subscriptionID)
		if err != nil {
			return fmt.Errorf("load subscription %s: %w", *subscriptionID, err)
		}
		sub = loaded
	}
	d, err := MarkAsPaid(MarkAsPaidInput{Subscription: sub, Vendor: vendor, Reference: reference, Now: now})
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// SetRenewalStrategy rewrites a subscription's renewal intent. The manual
// source is forced: this entry point is user-initiated.
func (s *Service) SetRenewalStrategy(ctx context.Context, subscriptionID, priceID uuid.UUID, promoCodeID, employerProductID *uuid.UUID) error {
	now := time.Now().UTC()
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	if _, err := s.prices.GetByID(ctx, priceID); err != nil {
		return fmt.Errorf("load payment price %s: %w", priceID, err)
	}

	d, err := UpdateRenewalStrategy(UpdateRenewalStrategyInput{
		Subscription:      sub,
		PaymentPriceID:    priceID,
		PromoCodeID:       promoCodeID,
		EmployerProductID: employerProductID,
		Source:            RenewalSourceManual,
		Now:               now,
	})
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// CurrentSubscription returns the patient's current subscription, or nil.
func (s *Service) CurrentSubscription(ctx context.Context, patientID uuid.UUID) (*Subscription, error) {
	return s.subs.GetCurrentByPatient(ctx, patientID, time.Now().UTC())
}

// PatientTimeline lists a patient's billing audit trail, newest first.
func (s *Service) PatientTimeline(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TimelineEvent, int, error) {
	return s.timeline.ListByPatient(ctx, patientID, limit, offset)
}

// BatchResult summarises one scheduled pass over many patients.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    []error
}

// RenewDue rolls every subscription whose period has ended into its next
// period. One patient's failure is recorded and does not stop the batch;
// each subscription materializes in its own transaction.
func (s *Service) RenewDue(ctx context.Context, now time.Time, limit int) (BatchResult, error) {
	due, err := s.subs.ListDueForRenewal(ctx, now, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list due subscriptions: %w", err)
	}

	var res BatchResult
	for _, sub := range due {
		res.Processed++
		if err := s.renewOne(ctx, sub, now); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			s.log.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Str("patient_id", sub.PatientID.String()).
				Msg("renewal failed")
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// loadCoupon fetches a referenced coupon, treating a dangling reference as
// no coupon. Store failures propagate so a transient outage is never
// mistaken for an absent discount.
func (s *Service) loadCoupon(ctx context.Context, id uuid.UUID) (*PromoCodeCoupon, error) {
	c, err := s.promos.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) renewOne(ctx context.Context, sub *Subscription, now time.Time) error {
	curPrice, err := s.prices.GetByID(ctx, sub.PaymentPriceID)
	if err != nil {
		return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
	}

	resolveIn := ResolvePromoCodeInput{
		Subscription: *sub,
		CurrentPrice: *curPrice,
		Now:          now,
	}
	if sub.PromoCodeCouponID != nil {
		c, err := s.loadCoupon(ctx, *sub.PromoCodeCouponID)
		if err != nil {
			return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
		}
		resolveIn.CurrentCoupon = c
	}
	if rs := sub.RenewalStrategy; rs != nil {
		p, err := s.prices.GetByID(ctx, rs.PaymentPriceID)
		if err != nil {
			return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
		}
		resolveIn.StrategyPrice = p
		if rs.PromoCodeID != nil {
			c, err := s.loadCoupon(ctx, *rs.PromoCodeID)
			if err != nil {
				return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
			}
			resolveIn.StrategyCoupon = c
		}
	}
	catalog, err := s.prices.List(ctx)
	if err != nil {
		return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
	}
	resolveIn.Catalog = catalog

	resolved, err := ResolvePromoCode(resolveIn)
	if err != nil {
		return err
	}

	var employer *EmployerProduct
	if rs := sub.RenewalStrategy; rs != nil && rs.EmployerProductID != nil {
		e, err := s.employers.GetByID(ctx, *rs.EmployerProductID)
		if err != nil {
			return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
		}
		employer = e
	}

	issues, err := s.issues.ListOpenBySubscription(ctx, sub.ID)
	if err != nil {
		return &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err}
	}

	vendorStatus := ""
	if len(sub.IntegrationLinks) > 0 && s.vendor != nil {
		link := sub.IntegrationLinks[0]
		status, err := s.vendor.Status(ctx, link.Vendor, link.Ref)
		if err != nil {
			s.log.Warn().Err(err).
				Str("subscription_id", sub.ID.String()).
				Str("vendor", link.Vendor).
				Msg("vendor status lookup failed, requesting new vendor subscription")
		} else {
			vendorStatus = status
		}
	}

	d, err := Renew(RenewInput{
		Current:      sub,
		CurrentPrice: *curPrice,
		NextPrice:    resolved.Price,
		NextCoupon:   resolved.Coupon,
		NextEmployer: employer,
		OpenIssues:   issues,
		VendorStatus: vendorStatus,
		Now:          now,
	})
	if err != nil {
		return err
	}
	return s.mat.Materialize(ctx, d)
}

// RepriceAll runs the batch re-pricing pass: subscriptions priced below the
// configured per-month floor get their renewal strategy redirected to the
// alternate tier. Already-processed subscriptions are skipped by the flow.
func (s *Service) RepriceAll(ctx context.Context, now time.Time, limit int) (BatchResult, error) {
	alternate, err := s.prices.GetByCode(ctx, s.reprice.AlternatePriceCode)
	if err != nil {
		return BatchResult{}, fmt.Errorf("load alternate price %q: %w", s.reprice.AlternatePriceCode, err)
	}

	candidates, err := s.subs.ListForReprice(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list reprice candidates: %w", err)
	}

	var res BatchResult
	for _, sub := range candidates {
		res.Processed++
		curPrice, err := s.prices.GetByID(ctx, sub.PaymentPriceID)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, &FlowError{SubscriptionID: sub.ID, PatientID: sub.PatientID, Err: err})
			continue
		}
		d, err := Overwrite(OverwriteInput{
			Subscription: sub,
			CurrentPrice: *curPrice,
			Alternate:    *alternate,
			MinPrice:     s.reprice.MinPrice,
			NoticeDays:   s.reprice.NoticeDays,
			Now:          now,
		})
		if err == nil {
			err = s.mat.Materialize(ctx, d)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			s.log.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Str("patient_id", sub.PatientID.String()).
				Msg("reprice failed")
			continue
		}
		res.Succeeded++
	}
	return res, nil
}
