package membership

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/careward/careward/internal/platform/auth"
	"github.com/careward/careward/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "billing"))

	g.POST("/subscriptions", h.CreateSubscription)
	g.POST("/subscriptions/upfront", h.CreateUpfrontSubscription)
	g.POST("/subscriptions/activate", h.ActivateSubscription)
	g.POST("/subscriptions/replace", h.ReplaceSubscription)
	g.POST("/subscriptions/:id/cancel", h.CancelSubscription)
	g.PUT("/subscriptions/:id/renewal-strategy", h.SetRenewalStrategy)
	g.POST("/subscriptions/mark-paid", h.MarkPaid)
	g.GET("/patients/:id/subscription", h.GetCurrentSubscription)
	g.GET("/patients/:id/timeline", h.ListTimeline)
}

type createSubscriptionRequest struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	PaymentPriceID    uuid.UUID  `json:"payment_price_id"`
	PromoCode         string     `json:"promo_code,omitempty"`
	EmployerProductID *uuid.UUID `json:"employer_product_id,omitempty"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"`
}

func (r createSubscriptionRequest) command() CreateSubscriptionCommand {
	return CreateSubscriptionCommand{
		PatientID:         r.PatientID,
		PaymentPriceID:    r.PaymentPriceID,
		PromoCode:         r.PromoCode,
		EmployerProductID: r.EmployerProductID,
		StartDate:         r.StartDate,
		EndDateOverride:   r.EndDate,
	}
}

func (h *Handler) CreateSubscription(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateSubscription(c.Request().Context(), req.command()); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) CreateUpfrontSubscription(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateUpfrontSubscription(c.Request().Context(), req.command()); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) ActivateSubscription(c echo.Context) error {
	var req struct {
		PatientID      uuid.UUID `json:"patient_id"`
		PaymentPriceID uuid.UUID `json:"payment_price_id"`
		StartDate      time.Time `json:"start_date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ActivateSubscription(c.Request().Context(), req.PatientID, req.PaymentPriceID, req.StartDate); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) ReplaceSubscription(c echo.Context) error {
	var req struct {
		PatientID         uuid.UUID  `json:"patient_id"`
		PaymentPriceID    uuid.UUID  `json:"payment_price_id"`
		PromoCode         string     `json:"promo_code,omitempty"`
		EmployerProductID *uuid.UUID `json:"employer_product_id,omitempty"`
		FounderID         *uuid.UUID `json:"founder_id,omitempty"`
		StartDate         time.Time  `json:"start_date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	err := h.svc.ReplaceSubscription(c.Request().Context(), ReplaceSubscriptionCommand{
		PatientID:         req.PatientID,
		NewPaymentPriceID: req.PaymentPriceID,
		PromoCode:         req.PromoCode,
		EmployerProductID: req.EmployerProductID,
		FounderID:         req.FounderID,
		StartDate:         req.StartDate,
	})
	if err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) CancelSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subscription id")
	}
	var req struct {
		Reason     CancellationReason `json:"reason"`
		ReasonText string             `json:"reason_text,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = CancelReasonUserRequested
	}
	if req.Reason.internal() {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is reserved for system transitions")
	}
	if err := h.svc.CancelSubscription(c.Request().Context(), id, req.Reason, req.ReasonText); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetRenewalStrategy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subscription id")
	}
	var req struct {
		PaymentPriceID    uuid.UUID  `json:"payment_price_id"`
		PromoCodeID       *uuid.UUID `json:"promo_code_id,omitempty"`
		EmployerProductID *uuid.UUID `json:"employer_product_id,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetRenewalStrategy(c.Request().Context(), id, req.PaymentPriceID, req.PromoCodeID, req.EmployerProductID); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	var req struct {
		SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
		Vendor         string     `json:"vendor"`
		Reference      string     `json:"reference"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.MarkSubscriptionPaid(c.Request().Context(), req.SubscriptionID, req.Vendor, req.Reference); err != nil {
		return domainHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetCurrentSubscription(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	sub, err := h.svc.CurrentSubscription(c.Request().Context(), patientID)
	if err != nil {
		return domainHTTPError(err)
	}
	if sub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no current subscription")
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) ListTimeline(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)
	events, total, err := h.svc.PatientTimeline(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return domainHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, p.Limit, p.Offset))
}

// domainHTTPError maps domain errors onto HTTP status codes. Invariant
// violations are client errors; unknown failures stay 500.
func domainHTTPError(err error) error {
	var noDefault *NoDefaultPriceError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrHasCurrentSubscription):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrPatientInactive),
		errors.Is(err, ErrActivateNonZeroPrice),
		errors.Is(err, ErrNotReplaceable),
		errors.Is(err, ErrFounderRequired),
		errors.Is(err, ErrPromoCodeNotUsable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &noDefault):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
