package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-proto/loginpage/internal/config"
	"github.com/m-proto/loginpage/internal/handler"
	"github.com/m-proto/loginpage/internal/infrastructure/keycloak"
	"github.com/m-proto/loginpage/internal/infrastructure/otpcode"
	"github.com/m-proto/loginpage/internal/middleware"
	"github.com/m-proto/loginpage/internal/service/auth"
	"github.com/m-proto/loginpage/internal/service/exchange"
	"github.com/m-proto/loginpage/internal/service/invitation"
	"github.com/m-proto/loginpage/internal/service/otp"
)

const (
	serviceSecret = "test-service-secret"
	idpBundle     = `{"access_token":"at-1","expires_in":300,"refresh_expires_in":1800,"refresh_token":"rt-1","token_type":"Bearer","id_token":"idt-1","not-before-policy":0,"session_state":"s-1","scope":"openid email"}`
)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (m *mailbox) SendCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return assert.AnError
	}
	m.codes[email] = code
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testServer struct {
	router    *gin.Engine
	mail      *mailbox
	invited   *invitation.FileStore
	store     *otp.MemoryStore
	idpCalls  *atomic.Int32
	idpStatus *atomic.Int32
}

func newTestServer(t *testing.T, invited ...string) *testServer {
	t.Helper()

	ts := &testServer{
		mail:      &mailbox{codes: map[string]string{}},
		store:     otp.NewMemoryStore(),
		idpCalls:  &atomic.Int32{},
		idpStatus: &atomic.Int32{},
	}
	ts.idpStatus.Store(http.StatusOK)

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.idpCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		status := int(ts.idpStatus.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(idpBundle))
			return
		}
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Account disabled"}`))
	}))
	t.Cleanup(idp.Close)

	doc, err := json.Marshal(map[string][]string{"invited_emails": invited})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "invited_users.json")
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	ts.invited = invitation.NewFileStore(path)

	kc, err := keycloak.NewClient(context.Background(), config.KeycloakConfig{
		ClientID:        "app-backend",
		ClientSecret:    "secret",
		SubjectPassword: "dummy-password",
		TokenEndpoint:   idp.URL + "/token",
		Timeout:         2 * time.Second,
	})
	require.NoError(t, err)

	gen, err := otpcode.NewGenerator(6)
	require.NoError(t, err)

	gate := invitation.NewGate(ts.invited)
	manager := otp.NewManager(ts.store, gen, otp.Config{TTL: 5 * time.Minute})
	svc := auth.NewService(gate, manager, ts.mail, exchange.NewService(kc))

	cfg := &config.Config{Security: config.SecurityConfig{InternalServiceSecret: serviceSecret}}
	ts.router = handler.NewRouter(cfg, handler.Handlers{
		Health:      handler.NewHealthHandler(nil),
		Auth:        handler.NewAuthHandler(svc),
		Invitations: handler.NewInvitationHandler(gate),
		OTPDebug:    handler.NewOTPDebugHandler(manager),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	token, err := middleware.GenerateServiceToken(serviceSecret, "test", time.Minute)
	require.NoError(t, err)
	return ts.do(t, method, path, body, middleware.ServiceTokenHeader, token)
}

type credentials struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func TestE2E_InvitedUserSignsIn(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	w := ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ok":true`)

	code := ts.mail.code("a@x.com")
	require.True(t, otpcode.IsCodeFormat(code, 6))

	w = ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, idpBundle, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), ts.idpCalls.Load())
}

func TestE2E_UninvitedUserRejected(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	w := ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "b@y.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Empty(t, ts.mail.code("b@y.com"))
	assert.Equal(t, 0, ts.store.Len())

	w = ts.admin(t, "GET", "/admin/otp/b@y.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestE2E_InvitationRevokedBeforeVerify(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	w := ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code := ts.mail.code("a@x.com")

	w = ts.admin(t, "DELETE", "/admin/invitations/a@x.com", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", code})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int32(0), ts.idpCalls.Load())
}

func TestE2E_IdPRejection(t *testing.T) {
	ts := newTestServer(t, "a@x.com")
	ts.idpStatus.Store(http.StatusUnauthorized)

	ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "a@x.com"})
	w := ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", ts.mail.code("a@x.com")})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "invalid_grant")
	assert.NotContains(t, w.Body.String(), "Account disabled")
}

func TestE2E_DeliveryFailure(t *testing.T) {
	ts := newTestServer(t, "a@x.com")
	ts.mail.fail = true

	w := ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = ts.admin(t, "GET", "/admin/otp/a@x.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestE2E_WrongCodeThenRightCode(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "A@X.com"})
	code := ts.mail.code("a@x.com")
	require.NotEmpty(t, code)

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	w := ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", wrong})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", code})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendOTP_ValidatesBody(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	for _, body := range []any{
		map[string]string{},
		map[string]string{"email": "not-an-email"},
	} {
		w := ts.do(t, "POST", "/auth/send-otp", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation")
	}

	w := ts.do(t, "POST", "/auth/verify-otp", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_Invitations(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	w := ts.do(t, "GET", "/admin/invitations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.admin(t, "POST", "/admin/invitations", map[string]string{"email": "c@z.org"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.admin(t, "POST", "/admin/invitations", map[string]string{"email": "C@Z.org"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":false`)

	w = ts.admin(t, "GET", "/admin/invitations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invited_emails":["a@x.com","c@z.org"]}`, w.Body.String())

	w = ts.admin(t, "DELETE", "/admin/invitations/nobody@x.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.admin(t, "DELETE", "/admin/invitations/not-an-email", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Newly invited user can now request a code
	w = ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "c@z.org"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_PeekDoesNotConsume(t *testing.T) {
	ts := newTestServer(t, "a@x.com")

	ts.do(t, "POST", "/auth/send-otp", map[string]string{"email": "a@x.com"})
	code := ts.mail.code("a@x.com")

	w := ts.admin(t, "GET", "/admin/otp/A@X.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"a@x.com","code":"`+code+`"}`, w.Body.String())

	w = ts.do(t, "POST", "/auth/verify-otp", credentials{"a@x.com", code})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Ambient(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = ts.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "otp_issued_total")
}
