package membership

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture() (*Handler, *echo.Echo, *serviceFixture) {
	f := newServiceFixture()
	return NewHandler(f.svc), echo.New(), f
}

func TestHandler_CreateSubscription(t *testing.T) {
	h, e, f := newHandlerFixture()
	patientID := f.addPatient(true)
	price := f.prices.add(newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault))

	body := `{"patient_id":"` + patientID.String() + `","payment_price_id":"` + price.ID.String() + `","start_date":"2026-03-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSubscription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(f.subs.items) != 1 {
		t.Error("subscription not persisted")
	}
}

func TestHandler_CreateSubscription_InactivePatient(t *testing.T) {
	h, e, f := newHandlerFixture()
	patientID := f.addPatient(false)
	price := f.prices.add(newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault))

	body := `{"patient_id":"` + patientID.String() + `","payment_price_id":"` + price.ID.String() + `","start_date":"2026-03-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateSubscription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_CancelSubscription_InternalReasonRejected(t *testing.T) {
	h, e, f := newHandlerFixture()
	price := f.prices.add(newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault))
	sub := newTestSubscription(f.addPatient(true), price, dateUTC(2026, time.January, 1))
	f.subs.items[sub.ID] = sub

	body := `{"reason":"renewed"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(sub.ID.String())

	err := h.CancelSubscription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("internal reasons must be rejected with 400, got %v", err)
	}
}

func TestHandler_CancelSubscription_DefaultsToUserRequested(t *testing.T) {
	h, e, f := newHandlerFixture()
	price := f.prices.add(newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault))
	sub := newTestSubscription(f.addPatient(true), price, dateUTC(2026, time.January, 1))
	f.subs.items[sub.ID] = sub

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(sub.ID.String())

	if err := h.CancelSubscription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	got := f.subs.items[sub.ID]
	if got.Cancellation == nil || got.Cancellation.ReasonType != CancelReasonUserRequested {
		t.Error("missing reason should default to user_requested")
	}
}

func TestHandler_GetCurrentSubscription_NotFound(t *testing.T) {
	h, e, _ := newHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetCurrentSubscription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetCurrentSubscription_BadID(t *testing.T) {
	h, e, _ := newHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetCurrentSubscription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_MarkPaid(t *testing.T) {
	h, e, f := newHandlerFixture()
	price := f.prices.add(newTestPrice("annual", "1200", 12, FullPayment, PriceTypeDefault))
	sub := newTestSubscription(f.addPatient(true), price, dateUTC(2026, time.January, 1))
	f.subs.items[sub.ID] = sub

	body := `{"subscription_id":"` + sub.ID.String() + `","vendor":"stripe","reference":"pi_9"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.MarkPaid(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	got := f.subs.items[sub.ID]
	if got.PaymentVendor == nil || *got.PaymentVendor != "stripe" {
		t.Error("payment confirmation not persisted")
	}
}

func TestDomainHTTPError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrHasCurrentSubscription, http.StatusConflict},
		{ErrPatientInactive, http.StatusUnprocessableEntity},
		{ErrActivateNonZeroPrice, http.StatusUnprocessableEntity},
		{ErrNotReplaceable, http.StatusUnprocessableEntity},
		{ErrFounderRequired, http.StatusUnprocessableEntity},
		{ErrPromoCodeNotUsable, http.StatusUnprocessableEntity},
		{&NoDefaultPriceError{}, http.StatusConflict},
		{&FlowError{Err: ErrHasCurrentSubscription}, http.StatusConflict},
	}
	for _, tc := range cases {
		httpErr, ok := domainHTTPError(tc.err).(*echo.HTTPError)
		if !ok || httpErr.Code != tc.want {
			t.Errorf("%v: expected %d, got %v", tc.err, tc.want, httpErr)
		}
	}
}
