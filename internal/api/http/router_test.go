package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/store"
)

const testFixture = `
organizations:
  - name: Acme
  - name: Globex
users:
  - {name: Ada Admin, email: admin@desk.test, password: secret123, role: admin}
  - {name: Lee Lead, email: lead@desk.test, password: secret123, role: support-lead}
  - {name: Sam Staff, email: staff@desk.test, password: secret123, role: support-staff}
  - {name: Alice Acme, email: alice@acme.test, password: secret123, role: client, organization: Acme}
  - {name: Gus Globex, email: gus@globex.test, password: secret123, role: client, organization: Globex}
`

type testServer struct {
	app   *fiber.App
	store *store.Store
}

func newTestServer(t *testing.T, loginPerMinute int) *testServer {
	t.Helper()
	logger := zap.NewNop()
	st := store.New(nil)
	metrics := observability.NewMetrics()
	deps := service.Dependencies{
		Store:      st,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Logger:     logger,
		Metrics:    metrics,
		BcryptCost: bcrypt.MinCost,
	}
	fixture, err := service.ParseSeedFixture([]byte(testFixture))
	require.NoError(t, err)
	_, err = service.NewSeeder(deps).Apply(context.Background(), fixture)
	require.NoError(t, err)

	var cfg config.Config
	cfg.Auth.JWTSecret = "router-secret"
	cfg.Auth.AccessTokenTTLMinutes = 30
	authService := service.NewAuthService(cfg, deps)
	users := service.NewUserService(deps)
	tickets := service.NewTicketService(deps)
	conversions := service.NewConversionService(deps)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0, "*")
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-desk", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(authService, users),
		Users:          handlers.NewUsersHandler(users),
		Organizations:  handlers.NewOrganizationsHandler(service.NewOrganizationService(deps)),
		Tickets:        handlers.NewTicketsHandler(tickets, conversions),
		Approvals:      handlers.NewApprovalsHandler(conversions),
		Billing:        handlers.NewBillingHandler(service.NewInvoiceService(deps), service.NewDashboardService(deps, 0)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st),
		LoginLimiter:   auth.NewLoginLimiter(loginPerMinute, 3),
		Metrics:        metrics,
	})
	return &testServer{app: app, store: st}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]int  `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = strings.NewReader(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	status, env := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, fiber.StatusOK, status)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type ticketView struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Category          string  `json:"category"`
	OrganizationID    string  `json:"organizationId"`
	AssignedTo        *string `json:"assignedTo"`
	ConversionRequest *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"conversionRequest"`
	Messages []struct {
		Content string `json:"content"`
	} `json:"messages"`
}

func TestAuthEndpoints(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "alice@acme.test", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = srv.do(t, "POST", "/api/auth/login", "", "{not json")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	status, _ = srv.do(t, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token := srv.login(t, "alice@acme.test")
	status, env = srv.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	me := decode[map[string]any](t, env)
	assert.Equal(t, "alice@acme.test", me["email"])
	assert.Equal(t, "client", me["role"])
	assert.NotContains(t, me, "passwordHash")

	status, env = srv.do(t, "PUT", "/api/auth/me", token, map[string]string{"name": "Alice Jones"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "AJ", decode[map[string]any](t, env)["avatar"])

	status, _ = srv.do(t, "POST", "/api/auth/change-password", token, map[string]string{"currentPassword": "secret123", "newPassword": "another-one"})
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = srv.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "alice@acme.test", "password": "another-one"})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = srv.do(t, "POST", "/api/auth/forgot-password", "", map[string]string{"email": "nobody@desk.test"})
	assert.Equal(t, fiber.StatusAccepted, status)
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newTestServer(t, 1)
	bad := map[string]string{"email": "alice@acme.test", "password": "nope"}
	for i := 0; i < 3; i++ {
		status, _ := srv.do(t, "POST", "/api/auth/login", "", bad)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	}
	status, env := srv.do(t, "POST", "/api/auth/login", "", bad)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, 0)
	alice := srv.login(t, "alice@acme.test")
	gus := srv.login(t, "gus@globex.test")
	staff := srv.login(t, "staff@desk.test")
	staffUser, err := srv.store.UserByEmail("staff@desk.test")
	require.NoError(t, err)

	status, env := srv.do(t, "POST", "/api/tickets", alice, map[string]string{"title": "VPN down", "category": "bug"})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decode[ticketView](t, env)
	assert.Equal(t, "open", ticket.Status)
	assert.NotEmpty(t, ticket.OrganizationID)

	status, env = srv.do(t, "GET", "/api/tickets/"+ticket.ID, gus, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = srv.do(t, "PUT", "/api/tickets/"+ticket.ID, staff, map[string]any{"status": "in-progress", "assignedTo": staffUser.ID})
	require.Equal(t, fiber.StatusOK, status)
	ticket = decode[ticketView](t, env)
	assert.Equal(t, "in-progress", ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, staffUser.ID, *ticket.AssignedTo)

	status, env = srv.do(t, "PUT", "/api/tickets/"+ticket.ID, staff, `{"assignedTo": null}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, decode[ticketView](t, env).AssignedTo)

	status, _ = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/messages", staff, map[string]any{"content": "checking logs", "isInternal": true})
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/messages", alice, map[string]any{"content": "thanks"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = srv.do(t, "GET", "/api/tickets/"+ticket.ID, alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	seen := decode[ticketView](t, env)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "thanks", seen.Messages[0].Content)

	status, env = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/time-entries", staff, map[string]any{"hours": 1.5, "description": "triage", "date": "2026-03-02"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "2026-03-02", decode[map[string]any](t, env)["date"])
	status, _ = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/time-entries", staff, map[string]any{"hours": 1, "description": "x", "date": "03/02/2026"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.do(t, "PUT", "/api/tickets/"+ticket.ID, staff, map[string]string{"status": "closed"})
	require.Equal(t, fiber.StatusOK, status)
	status, env = srv.do(t, "PUT", "/api/tickets/"+ticket.ID, staff, map[string]string{"status": "open"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE_TRANSITION", env.Error.Code)

	status, env = srv.do(t, "GET", "/api/tickets?status=closed&limit=10", staff, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]ticketView](t, env), 1)
	assert.Equal(t, 1, env.Meta["total"])

	status, env = srv.do(t, "GET", "/api/tickets?status=bogus", staff, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	status, env = srv.do(t, "GET", "/api/tickets", gus, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]ticketView](t, env))
}

func TestConversionApprovalOverHTTP(t *testing.T) {
	srv := newTestServer(t, 0)
	alice := srv.login(t, "alice@acme.test")
	staff := srv.login(t, "staff@desk.test")
	lead := srv.login(t, "lead@desk.test")

	status, env := srv.do(t, "POST", "/api/tickets", alice, map[string]string{"title": "Export to CSV", "category": "support"})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decode[ticketView](t, env)

	status, env = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/convert", staff, map[string]string{"proposedType": "feature", "reason": "new capability"})
	require.Equal(t, fiber.StatusCreated, status)
	request := decode[map[string]any](t, env)
	requestID := request["id"].(string)
	assert.Equal(t, "pending", request["status"])

	status, env = srv.do(t, "POST", "/api/tickets/"+ticket.ID+"/convert", staff, map[string]string{"proposedType": "enhancement", "reason": "again"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICTING_CONVERSION_REQUEST", env.Error.Code)

	status, env = srv.do(t, "GET", "/api/approvals", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	queue := decode[[]map[string]any](t, env)
	require.Len(t, queue, 1)
	assert.Equal(t, "Export to CSV", queue[0]["ticketTitle"])

	status, env = srv.do(t, "PUT", "/api/approvals/"+requestID, alice, map[string]string{"side": "internal", "status": "approved"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = srv.do(t, "PUT", "/api/approvals/"+requestID, alice, map[string]string{"side": "client", "status": "approved"})
	require.Equal(t, fiber.StatusOK, status)
	status, env = srv.do(t, "PUT", "/api/approvals/"+requestID, lead, map[string]string{"side": "internal", "decision": "approved"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "approved", decode[map[string]any](t, env)["status"])

	status, env = srv.do(t, "GET", "/api/tickets/"+ticket.ID, alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	converted := decode[ticketView](t, env)
	assert.Equal(t, "feature", converted.Category)
	require.NotNil(t, converted.ConversionRequest)
	assert.Equal(t, "approved", converted.ConversionRequest.Status)

	status, env = srv.do(t, "GET", "/api/approvals", lead, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]map[string]any](t, env))
}

func TestDirectoryAndBillingOverHTTP(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.login(t, "admin@desk.test")
	alice := srv.login(t, "alice@acme.test")

	status, env := srv.do(t, "POST", "/api/organizations", admin, map[string]string{"name": "Initech", "plan": "professional"})
	require.Equal(t, fiber.StatusCreated, status)
	org := decode[map[string]any](t, env)
	orgID := org["id"].(string)
	assert.Equal(t, "professional", org["plan"])

	status, _ = srv.do(t, "POST", "/api/organizations", alice, map[string]string{"name": "Sneaky"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = srv.do(t, "GET", "/api/organizations", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, env), 1)

	status, env = srv.do(t, "POST", "/api/users", admin, map[string]any{
		"name": "Pat Client", "email": "pat@initech.test", "password": "initech1", "role": "client", "organizationId": orgID,
	})
	require.Equal(t, fiber.StatusCreated, status)
	patID := decode[map[string]any](t, env)["id"].(string)

	status, env = srv.do(t, "POST", "/api/users", admin, map[string]any{"name": "No Org", "email": "noorg@x.test", "role": "client"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	status, _ = srv.do(t, "DELETE", "/api/organizations/"+orgID, admin, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = srv.do(t, "DELETE", "/api/users/"+patID, admin, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = srv.do(t, "GET", "/api/users/"+patID, admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = srv.do(t, "POST", "/api/invoices", admin, map[string]any{"organizationId": orgID, "month": 3, "year": 2026, "totalHours": 10, "ratePerHour": 120})
	require.Equal(t, fiber.StatusCreated, status)
	invoice := decode[map[string]any](t, env)
	assert.Equal(t, 1200.0, invoice["totalAmount"])
	assert.Equal(t, "draft", invoice["status"])

	status, env = srv.do(t, "PUT", "/api/invoices/"+invoice["id"].(string), admin, map[string]string{"status": "sent"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "sent", decode[map[string]any](t, env)["status"])

	status, _ = srv.do(t, "GET", "/api/invoices/"+invoice["id"].(string), alice, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = srv.do(t, "POST", "/api/tickets", alice, map[string]string{"title": "Slow dashboard"})
	require.Equal(t, fiber.StatusCreated, status)
	status, env = srv.do(t, "GET", "/api/dashboard/stats", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := decode[map[string]any](t, env)
	assert.Equal(t, 1.0, stats["totalTickets"])
	assert.Equal(t, 1.0, stats["openTickets"])

	status, env = srv.do(t, "GET", "/api/dashboard/activities?limit=5", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	feed := decode[[]map[string]any](t, env)
	require.Len(t, feed, 1)
	assert.Equal(t, "ticket-created", feed[0]["type"])
}

func TestOperationalRoutes(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, env.Error)

	status, _ = srv.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, "GET", "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "support_desk_http_requests_total")
}
