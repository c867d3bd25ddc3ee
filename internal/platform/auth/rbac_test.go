package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requireWithRoles(t *testing.T, userRoles []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, userRoles))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h(c)
}

func TestRequireRole_Match(t *testing.T) {
	if err := requireWithRoles(t, []string{"billing"}, "billing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminAlwaysPasses(t *testing.T) {
	if err := requireWithRoles(t, []string{"admin"}, "billing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	err := requireWithRoles(t, []string{"viewer"}, "billing")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	err := requireWithRoles(t, nil, "billing")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
