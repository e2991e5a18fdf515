//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	AccessToken string          `json:"access_token"`
}

type request struct {
	method   string
	path     string
	token    string
	body     any
	clientIP string
}

func (s *IntegrationTestSuite) do(ctx context.Context, t *testing.T, r request) (int, envelope) {
	t.Helper()

	var body io.Reader
	if r.body != nil {
		reqJson, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(reqJson)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, serverEndpoint+r.path, body)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.clientIP != "" {
		req.Header.Set("X-Real-Ip", r.clientIP)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(respBytes) > 0 {
		require.NoError(t, json.Unmarshal(respBytes, &env), string(respBytes))
	}
	return resp.StatusCode, env
}

func (s *IntegrationTestSuite) doLogin(ctx context.Context, t *testing.T) string {
	t.Helper()

	status, env := s.do(ctx, t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"username": testUsername,
			"password": testPassword,
		},
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	require.NotEmpty(t, env.AccessToken)

	return env.AccessToken
}
