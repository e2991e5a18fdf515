//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gmbtravels/gmbservice/internal/smoketest"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestReady() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, env := s.do(ctx, t, request{method: http.MethodGet, path: "/ready"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", env.Status)
}

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cases := map[string]struct {
		body           map[string]string
		expectedStatus int
		expectedMsg    string
	}{
		"good creds": {
			body:           map[string]string{"username": testUsername, "password": testPassword},
			expectedStatus: http.StatusOK,
		},
		"bad password": {
			body:           map[string]string{"username": testUsername, "password": "bad-password"},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "invalid username or password",
		},
		"missing password": {
			body:           map[string]string{"username": testUsername},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "invalid username or password",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, env := s.do(ctx, t, request{
				method:   http.MethodPost,
				path:     "/auth/login",
				body:     tc.body,
				clientIP: "10.0.0.1",
			})
			assert.Equal(t, tc.expectedStatus, status)
			if tc.expectedMsg != "" {
				assert.Equal(t, tc.expectedMsg, env.Message)
			} else {
				assert.NotEmpty(t, env.AccessToken)
			}
		})
	}
}

func (s *IntegrationTestSuite) TestLoginRateLimited() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bad := map[string]string{"username": testUsername, "password": "nope"}
	clientIP := "10.0.0.99"
	for i := 0; i < loginAttemptsPerMin; i++ {
		status, _ := s.do(ctx, t, request{method: http.MethodPost, path: "/auth/login", body: bad, clientIP: clientIP})
		require.Equal(t, http.StatusUnauthorized, status, "attempt %d", i)
	}

	status, env := s.do(ctx, t, request{method: http.MethodPost, path: "/auth/login", body: bad, clientIP: clientIP})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, env.Message, "too many requests")

	// other clients are unaffected
	status, _ = s.do(ctx, t, request{method: http.MethodPost, path: "/auth/login", body: bad, clientIP: "10.0.0.100"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func (s *IntegrationTestSuite) TestTeamPersistedInMongo() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	token := s.doLogin(ctx, t)
	name := gofakeit.Name()

	status, env := s.do(ctx, t, request{
		method: http.MethodPost,
		path:   "/admin/team",
		token:  token,
		body:   map[string]any{"name": name, "role": "Driver", "sortOrder": 3},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, name, created.Name)

	status, env = s.do(ctx, t, request{method: http.MethodGet, path: "/team/" + created.ID})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = s.do(ctx, t, request{method: http.MethodDelete, path: "/admin/team/" + created.ID, token: token})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(ctx, t, request{method: http.MethodGet, path: "/admin/team/" + created.ID, token: token})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "team member not found", env.Message)
}

func (s *IntegrationTestSuite) TestSiteSettingsSeeded() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, env := s.do(ctx, t, request{method: http.MethodGet, path: "/site-settings"})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Contains(t, string(env.Data), "G.M.B Travels Kashmir")
}

func (s *IntegrationTestSuite) TestSmokeTester() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tester := smoketest.NewTester(smoketest.Params{
		BaseURL:     serverEndpoint,
		Username:    testUsername,
		Password:    testPassword,
		Timeout:     10 * time.Second,
		Retries:     1,
		Destructive: true,
	})
	ok := tester.Run(ctx)
	for _, res := range tester.Results() {
		t.Logf("%s: %t %s", res.Test, res.Success, res.Message)
	}
	assert.True(t, ok)
}
