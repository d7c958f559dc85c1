package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/notify"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/Mounkaila144/produit-sub000/pkg/config"
	"github.com/Mounkaila144/produit-sub000/pkg/jwtutil"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	e     *echo.Echo
	clk   *clock.Mock
	store *repository.MemoryStore
	jwt   *jwtutil.JWTUtil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := repository.NewMemoryStore()
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	channel := notify.NewChannel(notify.NewLogSender(zap.NewNop()), nil, zap.NewNop())
	svc := lifecycle.NewService(store, channel, lifecycle.NewLocalCoordinator(clk), clk, lifecycle.Options{
		DefaultTerm:  30 * 24 * time.Hour,
		RenewalYears: 1,
	}, zap.NewNop())

	cfg := &config.Config{
		ServiceName: "tenancy",
		Tenancy: config.TenancyConfig{
			HeaderName:     "X-Tenant-Id",
			BypassPrefixes: config.DefaultBypassPrefixes,
		},
	}

	e := New(Deps{
		Config:   cfg,
		Service:  svc,
		Store:    store,
		JWT:      jwt,
		Clock:    clk,
		Registry: prometheus.NewRegistry(),
	})
	return &testServer{e: e, clk: clk, store: store, jwt: jwt}
}

type call struct {
	method string
	path   string
	body   string
	tenant string
	token  string
}

func (s *testServer) do(t *testing.T, c call) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.tenant != "" {
		req.Header.Set("X-Tenant-Id", c.tenant)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	body := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec.Code, body
}

func (s *testServer) token(t *testing.T, email, id string, tenantID *uuid.UUID, role model.Role) string {
	t.Helper()
	token, err := s.jwt.GenerateToken(email, uuid.MustParse(id), tenantID, string(role))
	require.NoError(t, err)
	return token
}

func (s *testServer) superadmin(t *testing.T) string {
	t.Helper()
	u := model.User{ID: uuid.New(), Email: "root@platform.test", Role: model.RoleSuperAdmin, IsActive: true}
	s.store.PutUser(u)
	return s.token(t, u.Email, u.ID.String(), nil, u.Role)
}

const registerBody = `{
	"name": "Corner Shop",
	"domain": "corner.shop.test",
	"plan_type": "premium",
	"contact_info": {"email": "owner@corner.test", "phone": "+2250711111111"},
	"owner": {"email": "owner@corner.test", "password": "s3cret-pass"}
}`

func (s *testServer) register(t *testing.T) (tenantID uuid.UUID, ownerToken string) {
	t.Helper()
	code, body := s.do(t, call{method: http.MethodPost, path: "/api/tenants/register", body: registerBody})
	require.Equal(t, http.StatusCreated, code, body)

	tenant := body["tenant"].(map[string]interface{})
	owner := body["owner"].(map[string]interface{})
	assert.NotContains(t, owner, "password_hash")

	tenantID = uuid.MustParse(tenant["id"].(string))
	return tenantID, s.token(t, owner["email"].(string), owner["id"].(string), &tenantID, model.RoleOwner)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndUseTenant(t *testing.T) {
	s := newTestServer(t)
	tenantID, owner := s.register(t)

	code, body := s.do(t, call{method: http.MethodGet, path: "/api/tenant", tenant: tenantID.String(), token: owner})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.StateActive), body["state"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/tenant/users", tenant: tenantID.String(), token: owner})
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["users"], 1)

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/auth/profile", token: owner})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.StateActive), body["tenant_state"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/tenants/register", body: registerBody})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Conflict", body["code"])
}

func TestRegister_Invalid(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, call{method: http.MethodPost, path: "/api/tenants/register", body: `{"name": "x"}`})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRequest", body["code"])

	code, _ = s.do(t, call{method: http.MethodPost, path: "/api/tenants/register", body: `{`})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tenantID, owner := s.register(t)
	root := s.superadmin(t)
	id := tenantID.String()

	s.clk.Add(31 * 24 * time.Hour)

	code, body := s.do(t, call{method: http.MethodGet, path: "/api/tenant", tenant: id, token: owner})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "TenantExpired", body["code"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/sweeps/expire", token: root})
	require.Equal(t, http.StatusOK, code, body)
	report := body["report"].(map[string]interface{})
	assert.Equal(t, float64(1), report["changed"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/tenant", tenant: id, token: owner})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "TenantDisabled", body["code"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants/" + id, token: root})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(model.StateDisabled), body["state"])
	assert.Equal(t, string(model.DisabledExpired), body["disabled_reason"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/" + id + "/renew", body: `{}`, token: root})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/tenant", tenant: id, token: owner})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(model.StateActive), body["state"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/" + id + "/disable", token: root})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["active"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/" + id + "/enable", token: root})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants", token: root})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
}

func TestAdminErrors(t *testing.T) {
	s := newTestServer(t)
	tenantID, owner := s.register(t)
	root := s.superadmin(t)

	code, body := s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants", token: owner})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "InsufficientRole", body["code"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/unknown-id/renew", body: `{}`, token: root})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "RenewalTargetNotFound", body["code"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/" + tenantID.String() + "/renew", body: `{"plan_type": "gold"}`, token: root})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidPlan", body["code"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/tenants/" + tenantID.String() + "/renew", body: `{"expires_at": "2020-01-01T00:00:00Z"}`, token: root})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRenewal", body["code"])

	code, body = s.do(t, call{method: http.MethodDelete, path: "/api/superadmin/tenants/" + tenantID.String(), token: root})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "TenantHasDependents", body["code"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/sweeps/purge", token: root})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRequest", body["code"])

	code, _ = s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDeleteTenantAfterRemovingUsers(t *testing.T) {
	s := newTestServer(t)
	root := s.superadmin(t)
	tenantID, _ := s.register(t)
	id := tenantID.String()

	code, body := s.do(t, call{
		method: http.MethodPost,
		path:   "/api/superadmin/users",
		body:   `{"email": "clerk@corner.test", "password": "password1", "role": "editor", "tenant_id": "` + id + `"}`,
		token:  root,
	})
	require.Equal(t, http.StatusCreated, code, body)
	clerkID := body["id"].(string)
	assert.NotContains(t, body, "password_hash")

	code, body = s.do(t, call{method: http.MethodPost, path: "/api/superadmin/users", body: `{"email": "x@corner.test", "password": "password1", "role": "editor"}`, token: root})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRequest", body["code"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants/" + id, token: root})
	require.Equal(t, http.StatusOK, code)
	ownerID := body["owner_id"].(string)

	code, _ = s.do(t, call{method: http.MethodDelete, path: "/api/superadmin/tenants/" + id, token: root})
	assert.Equal(t, http.StatusConflict, code)

	for _, user := range []string{clerkID, ownerID} {
		code, body = s.do(t, call{method: http.MethodDelete, path: "/api/superadmin/users/" + user, token: root})
		require.Equal(t, http.StatusNoContent, code, body)
	}

	code, body = s.do(t, call{method: http.MethodGet, path: "/api/superadmin/tenants/" + id, token: root})
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "owner_id")

	code, body = s.do(t, call{method: http.MethodDelete, path: "/api/superadmin/users/" + ownerID, token: root})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "UserNotFound", body["code"])

	code, _ = s.do(t, call{method: http.MethodDelete, path: "/api/superadmin/tenants/" + id, token: root})
	assert.Equal(t, http.StatusNoContent, code)
}
