package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careward/careward/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Subscription Repository ===========

type subscriptionRepoPG struct{ pool *pgxpool.Pool }

func NewSubscriptionRepoPG(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepoPG{pool: pool}
}

const subCols = `id, patient_id, payment_price_id, price, discounts, startup_fee,
	start_date, end_date, promo_code_coupon_id, employer_product_id,
	cancellation_date, cancellation_reason, cancellation_text,
	renewal_price_id, renewal_promo_code_id, renewal_employer_product_id, renewal_source,
	integration_links, paid_at, payment_vendor, payment_ref, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	var cancelDate *time.Time
	var cancelReason, cancelText *string
	var renewalPriceID, renewalPromoID, renewalEmployerID *uuid.UUID
	var renewalSource *string

	err := row.Scan(&s.ID, &s.PatientID, &s.PaymentPriceID, &s.Price, &s.Discounts, &s.StartupFee,
		&s.StartDate, &s.EndDate, &s.PromoCodeCouponID, &s.EmployerProductID,
		&cancelDate, &cancelReason, &cancelText,
		&renewalPriceID, &renewalPromoID, &renewalEmployerID, &renewalSource,
		&s.IntegrationLinks, &s.PaidAt, &s.PaymentVendor, &s.PaymentRef, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if cancelDate != nil && cancelReason != nil {
		s.Cancellation = &CancellationRequest{Date: *cancelDate, ReasonType: CancellationReason(*cancelReason)}
		if cancelText != nil {
			s.Cancellation.ReasonText = *cancelText
		}
	}
	if renewalPriceID != nil && renewalSource != nil {
		s.RenewalStrategy = &RenewalStrategy{
			PaymentPriceID:    *renewalPriceID,
			PromoCodeID:       renewalPromoID,
			EmployerProductID: renewalEmployerID,
			Source:            RenewalSource(*renewalSource),
		}
	}
	return &s, nil
}

func subscriptionArgs(s *Subscription) []interface{} {
	var cancelDate *time.Time
	var cancelReason, cancelText *string
	if s.Cancellation != nil {
		cancelDate = &s.Cancellation.Date
		r := string(s.Cancellation.ReasonType)
		cancelReason = &r
		if s.Cancellation.ReasonText != "" {
			cancelText = &s.Cancellation.ReasonText
		}
	}
	var renewalPriceID, renewalPromoID, renewalEmployerID *uuid.UUID
	var renewalSource *string
	if s.RenewalStrategy != nil {
		renewalPriceID = &s.RenewalStrategy.PaymentPriceID
		renewalPromoID = s.RenewalStrategy.PromoCodeID
		renewalEmployerID = s.RenewalStrategy.EmployerProductID
		src := string(s.RenewalStrategy.Source)
		renewalSource = &src
	}
	return []interface{}{
		s.ID, s.PatientID, s.PaymentPriceID, s.Price, s.Discounts, s.StartupFee,
		s.StartDate, s.EndDate, s.PromoCodeCouponID, s.EmployerProductID,
		cancelDate, cancelReason, cancelText,
		renewalPriceID, renewalPromoID, renewalEmployerID, renewalSource,
		s.IntegrationLinks, s.PaidAt, s.PaymentVendor, s.PaymentRef, s.CreatedAt, s.UpdatedAt,
	}
}

func (r *subscriptionRepoPG) Create(ctx context.Context, s *Subscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO subscriptions (`+subCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		subscriptionArgs(s)...)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepoPG) Update(ctx context.Context, s *Subscription) error {
	args := subscriptionArgs(s)
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE subscriptions SET
			patient_id=$2, payment_price_id=$3, price=$4, discounts=$5, startup_fee=$6,
			start_date=$7, end_date=$8, promo_code_coupon_id=$9, employer_product_id=$10,
			cancellation_date=$11, cancellation_reason=$12, cancellation_text=$13,
			renewal_price_id=$14, renewal_promo_code_id=$15, renewal_employer_product_id=$16, renewal_source=$17,
			integration_links=$18, paid_at=$19, payment_vendor=$20, payment_ref=$21, created_at=$22, updated_at=$23
		WHERE id=$1`, args...)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return scanSubscription(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+subCols+` FROM subscriptions WHERE id=$1`, id))
}

func (r *subscriptionRepoPG) GetCurrentByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) (*Subscription, error) {
	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE patient_id=$1 AND cancellation_date IS NULL AND start_date <= $2 AND end_date > $2
		ORDER BY start_date DESC LIMIT 1`, patientID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *subscriptionRepoPG) GetLatestByPatient(ctx context.Context, patientID uuid.UUID) (*Subscription, error) {
	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE patient_id=$1 ORDER BY start_date DESC LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *subscriptionRepoPG) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE patient_id=$1`, patientID).Scan(&n)
	return n, err
}

func (r *subscriptionRepoPG) ListDueForRenewal(ctx context.Context, cutoff time.Time, limit int) ([]*Subscription, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE cancellation_date IS NULL AND end_date <= $1
		ORDER BY end_date ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *subscriptionRepoPG) ListForReprice(ctx context.Context, limit int) ([]*Subscription, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE cancellation_date IS NULL
		  AND (renewal_source IS NULL OR renewal_source <> $1)
		ORDER BY end_date ASC LIMIT $2`, string(RenewalSourceOverwriteFlow), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]*Subscription, error) {
	var out []*Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// =========== PaymentPrice Repository ===========

type paymentPriceRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentPriceRepoPG(pool *pgxpool.Pool) PaymentPriceRepository {
	return &paymentPriceRepoPG{pool: pool}
}

const priceCols = `id, code, price, startup_fee, period_months, strategy, type,
	active, premium, founder, replaceable, created_at`

func scanPaymentPrice(row pgx.Row) (*PaymentPrice, error) {
	var p PaymentPrice
	err := row.Scan(&p.ID, &p.Code, &p.Price, &p.StartupFee, &p.PeriodMonths, &p.Strategy, &p.Type,
		&p.Active, &p.Premium, &p.Founder, &p.Replaceable, &p.CreatedAt)
	return &p, err
}

func (r *paymentPriceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PaymentPrice, error) {
	return scanPaymentPrice(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+priceCols+` FROM payment_prices WHERE id=$1`, id))
}

func (r *paymentPriceRepoPG) GetByCode(ctx context.Context, code string) (*PaymentPrice, error) {
	return scanPaymentPrice(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+priceCols+` FROM payment_prices WHERE code=$1`, code))
}

func (r *paymentPriceRepoPG) List(ctx context.Context) ([]PaymentPrice, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+priceCols+` FROM payment_prices ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentPrice
	for rows.Next() {
		p, err := scanPaymentPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// =========== PromoCodeCoupon Repository ===========

type promoCodeRepoPG struct{ pool *pgxpool.Pool }

func NewPromoCodeRepoPG(pool *pgxpool.Pool) PromoCodeRepository {
	return &promoCodeRepoPG{pool: pool}
}

const couponCols = `id, code, kind, value, valid_from, valid_until, eligible_price_ids, insurance_applicable`

func scanCoupon(row pgx.Row) (*PromoCodeCoupon, error) {
	var c PromoCodeCoupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.ValidFrom, &c.ValidUntil,
		&c.EligiblePriceIDs, &c.InsuranceApplicable)
	return &c, err
}

func (r *promoCodeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PromoCodeCoupon, error) {
	return scanCoupon(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+couponCols+` FROM promo_code_coupons WHERE id=$1`, id))
}

func (r *promoCodeRepoPG) GetByCode(ctx context.Context, code string) (*PromoCodeCoupon, error) {
	return scanCoupon(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+couponCols+` FROM promo_code_coupons WHERE code=$1`, code))
}

// =========== EmployerProduct Repository ===========

type employerProductRepoPG struct{ pool *pgxpool.Pool }

func NewEmployerProductRepoPG(pool *pgxpool.Pool) EmployerProductRepository {
	return &employerProductRepoPG{pool: pool}
}

func (r *employerProductRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*EmployerProduct, error) {
	var e EmployerProduct
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, kind, value, is_limited, compounds_on_discounted
		FROM employer_products WHERE id=$1`, id).
		Scan(&e.ID, &e.Name, &e.Kind, &e.Value, &e.IsLimited, &e.CompoundsOnDiscounted)
	return &e, err
}

// =========== PaymentIssue Repository ===========

type paymentIssueRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentIssueRepoPG(pool *pgxpool.Pool) PaymentIssueRepository {
	return &paymentIssueRepoPG{pool: pool}
}

func (r *paymentIssueRepoPG) Update(ctx context.Context, issue *PaymentIssue) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE payment_issues SET status=$2, updated_at=$3 WHERE id=$1`,
		issue.ID, issue.Status, issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment issue: %w", err)
	}
	return nil
}

func (r *paymentIssueRepoPG) ListOpenBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*PaymentIssue, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, subscription_id, type, status, created_at, updated_at
		FROM payment_issues WHERE subscription_id=$1 AND status=$2`,
		subscriptionID, PaymentIssueOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PaymentIssue
	for rows.Next() {
		var p PaymentIssue
		if err := rows.Scan(&p.ID, &p.PatientID, &p.SubscriptionID, &p.Type, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =========== Timeline Repository ===========

type timelineRepoPG struct{ pool *pgxpool.Pool }

func NewTimelineRepoPG(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepoPG{pool: pool}
}

func (r *timelineRepoPG) Create(ctx context.Context, ev *TimelineEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO timeline_events (id, patient_id, kind, occurred_at, payload)
		VALUES ($1,$2,$3,$4,$5)`,
		ev.ID, ev.PatientID, ev.Kind, ev.OccurredAt, ev.Payload)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TimelineEvent, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM timeline_events WHERE patient_id=$1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, kind, occurred_at, payload
		FROM timeline_events WHERE patient_id=$1
		ORDER BY occurred_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.PatientID, &ev.Kind, &ev.OccurredAt, &ev.Payload); err != nil {
			return nil, 0, err
		}
		out = append(out, &ev)
	}
	return out, total, rows.Err()
}

// =========== Patient Reader ===========

type patientReaderPG struct{ pool *pgxpool.Pool }

func NewPatientReaderPG(pool *pgxpool.Pool) PatientReader {
	return &patientReaderPG{pool: pool}
}

func (r *patientReaderPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, active FROM patients WHERE id=$1`, id).Scan(&p.ID, &p.Active)
	return &p, err
}
