// internal/middleware/auth_middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func roleContext(t *testing.T, role string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/prospects/1/auto-assign", nil)
	if role != "" {
		c.Set("role", role)
	}
	return c, w
}

func TestRequireRole_AllowsListedRoles(t *testing.T) {
	m := &AuthMiddleware{}
	handler := m.RequireRole("admin", "coordinator", "quality_coordinator")

	for _, role := range []string{"admin", "coordinator", "quality_coordinator"} {
		c, _ := roleContext(t, role)
		handler(c)
		if c.IsAborted() {
			t.Errorf("role %q: expected pass-through, request was aborted", role)
		}
	}
}

func TestRequireRole_RejectsExecutive(t *testing.T) {
	m := &AuthMiddleware{}
	handler := m.RequireRole("admin", "coordinator", "quality_coordinator")

	c, w := roleContext(t, "executive")
	handler(c)

	if !c.IsAborted() {
		t.Fatal("expected executive to be rejected")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestRequireRole_RejectsMissingRole(t *testing.T) {
	m := &AuthMiddleware{}
	handler := m.RequireRole("admin")

	c, w := roleContext(t, "")
	handler(c)

	if !c.IsAborted() {
		t.Fatal("expected request without a role to be rejected")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}
