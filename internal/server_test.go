package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/config"
	"github.com/gmbtravels/gmbservice/internal/docstore/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type apiResponse struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cfg := &config.Config{
		Environment:    "test",
		Host:           "localhost",
		Port:           8000,
		DatabaseURI:    "memory://",
		AllowedOrigins: []string{"https://gmbtravels.in"},
		BcryptCost:     bcrypt.MinCost,
		Env: config.Env{
			SecretKey:     "server-test-secret",
			SecretKeyID:   "v1",
			JWTAlgorithm:  config.SupportedJWTAlgorithm,
			JWTExpiresIn:  3600,
			AdminUsername: "admin",
			AdminPassword: "changeme",
			AdminRole:     auth.RoleAdmin,
		},
	}
	require.NoError(t, cfg.Validate())

	server, err := NewServer(context.Background(), NewServerParams{
		Config:      cfg,
		VersionInfo: "test",
		Backend:     memstore.New(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, server.GracefulShutdown())
	})

	return server, server.routerSetup()
}

func call(t *testing.T, handler http.Handler, method, path, token, body string) (int, apiResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return rr.Code, resp
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	status, resp := call(t, handler, http.MethodPost, "/api/auth/login", "",
		`{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, status, resp.Message)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestServer_Health(t *testing.T) {
	_, handler := newTestServer(t)

	status, resp := call(t, handler, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Status)

	status, resp = call(t, handler, http.MethodGet, "/api/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Status)
}

func TestServer_Login(t *testing.T) {
	_, handler := newTestServer(t)

	status, resp := call(t, handler, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"changeme"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)

	status, resp = call(t, handler, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "error", resp.Status)

	status, _ = call(t, handler, http.MethodPost, "/api/auth/login", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_VehicleLifecycle(t *testing.T) {
	_, handler := newTestServer(t)
	vehicle := `{"make":"Toyota","model":"Innova","capacity":7}`

	// no token, rejected before the controller runs
	status, resp := call(t, handler, http.MethodPost, "/api/admin/vehicles", "", vehicle)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "error", resp.Status)

	status, _ = call(t, handler, http.MethodPost, "/api/admin/vehicles", "not-a-jwt", vehicle)
	require.Equal(t, http.StatusUnauthorized, status)

	token := login(t, handler, "admin", "changeme")

	status, resp = call(t, handler, http.MethodPost, "/api/admin/vehicles", token, vehicle)
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	require.NotEmpty(t, created.ID)

	status, resp = call(t, handler, http.MethodGet, "/api/admin/vehicles", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), created.ID)

	status, resp = call(t, handler, http.MethodGet, "/api/vehicles", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), created.ID)

	update := `{"price":18.0,"name":"CI Updated"}`
	for range 2 {
		status, resp = call(t, handler, http.MethodPut, "/api/admin/vehicles/"+created.ID, token, update)
		require.Equal(t, http.StatusOK, status, resp.Message)
		assert.Contains(t, string(resp.Data), `"name":"CI Updated"`)
		assert.Contains(t, string(resp.Data), `"price":18`)
	}

	status, resp = call(t, handler, http.MethodDelete, "/api/admin/vehicles/"+created.ID, token, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":"`+created.ID+`","deleted":true}`, string(resp.Data))

	status, resp = call(t, handler, http.MethodDelete, "/api/admin/vehicles/"+created.ID, token, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "vehicle not found", resp.Message)

	status, _ = call(t, handler, http.MethodDelete, "/api/admin/vehicles/does-not-exist", token, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_ExpiredToken(t *testing.T) {
	server, handler := newTestServer(t)
	token := login(t, handler, "admin", "changeme")

	server.authService.NowFunc = func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}

	status, resp := call(t, handler, http.MethodGet, "/api/admin/vehicles", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token expired", resp.Message)
}

func TestServer_EditorRole(t *testing.T) {
	server, handler := newTestServer(t)
	_, err := auth.SeedAdmin(context.Background(), server.admins, auth.AdminConfig{
		Username:   "editor",
		Password:   "editor-pass",
		Role:       auth.RoleEditor,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	token := login(t, handler, "editor", "editor-pass")

	status, _ := call(t, handler, http.MethodPost, "/api/admin/team", token, `{"name":"Bilal","role":"Founder"}`)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = call(t, handler, http.MethodPost, "/api/admin/blogs", token, `{"title":"Dal Lake","body":"Shikara rides","author":"GMB"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, resp := call(t, handler, http.MethodPost, "/api/admin/vehicles", token, `{"make":"Toyota","model":"Innova","capacity":7}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "error", resp.Status)
	status, _ = call(t, handler, http.MethodPut, "/api/admin/site-settings", token, `{"tagline":"x"}`)
	assert.Equal(t, http.StatusForbidden, status)

	// reads are allowed
	status, _ = call(t, handler, http.MethodGet, "/api/admin/vehicles", token, "")
	assert.Equal(t, http.StatusOK, status)

	status, resp = call(t, handler, http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"editor"`, dataField(t, resp.Data, "role"))
}

func TestServer_SiteSettingsSeeded(t *testing.T) {
	_, handler := newTestServer(t)

	status, resp := call(t, handler, http.MethodGet, "/api/site-settings", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"G.M.B Travels Kashmir"`, dataField(t, resp.Data, "siteName"))
	assert.JSONEq(t, `"site"`, dataField(t, resp.Data, "id"))
}

func TestServer_Cors(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/vehicles", nil)
	req.Header.Set("Origin", "https://gmbtravels.in")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://gmbtravels.in", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_UnknownRoute(t *testing.T) {
	_, handler := newTestServer(t)

	status, resp := call(t, handler, http.MethodGet, "/api/bookings", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", resp.Status)

	status, _ = call(t, handler, http.MethodPatch, "/api/health", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func dataField(t *testing.T, raw json.RawMessage, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return string(m[field])
}
