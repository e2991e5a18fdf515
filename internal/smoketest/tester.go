package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 15 * time.Second
	DefaultRetries = 3

	defaultRetryInterval = 500 * time.Millisecond
	maxBodyInMessage     = 300
)

var retryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

var errRetryableStatus = errors.New("retryable status")

type Params struct {
	BaseURL     string
	Username    string
	Password    string
	Timeout     time.Duration
	Retries     int
	Destructive bool
	// RetryInterval is the first backoff interval, doubled on every retry.
	RetryInterval time.Duration
	// Transport defaults to an otelhttp wrapped http.DefaultTransport.
	Transport http.RoundTripper
}

// Result is one check outcome, in the shape CI dashboards already parse.
type Result struct {
	Test      string         `json:"test"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type Summary struct {
	BaseURL     string   `json:"base_url"`
	Destructive bool     `json:"destructive"`
	Timestamp   string   `json:"timestamp"`
	Results     []Result `json:"results"`
}

type response struct {
	status int
	body   []byte
}

// envelope is the response shape of every API endpoint
type envelope struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	AccessToken string          `json:"access_token"`
	Token       string          `json:"token"`
}

type Tester struct {
	params     Params
	httpClient *http.Client
	results    []Result
	adminToken string
	// used by the destructive checks
	createdVehicleID string
	nowFunc          func() time.Time
}

func NewTester(params Params) *Tester {
	params.BaseURL = strings.TrimRight(params.BaseURL, "/")
	if params.BaseURL == "" {
		params.BaseURL = DefaultBaseURL
	}
	if params.Timeout <= 0 {
		params.Timeout = DefaultTimeout
	}
	if params.Retries < 0 {
		params.Retries = 0
	}
	if params.RetryInterval <= 0 {
		params.RetryInterval = defaultRetryInterval
	}
	if params.Transport == nil {
		params.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return &Tester{
		params: params,
		httpClient: &http.Client{
			Timeout:   params.Timeout,
			Transport: params.Transport,
		},
		nowFunc: time.Now,
	}
}

// Run executes all checks in order and reports whether every one of them passed.
func (t *Tester) Run(ctx context.Context) bool {
	log.Infof("running GMB backend smoke tests against [%s]", t.params.BaseURL)

	checks := []func(ctx context.Context) bool{
		t.checkHealth,
		t.checkAdminLogin,
		t.checkPublicVehicles,
		t.checkAdminVehicles,
		t.checkAdminProtection,
		t.checkVehicleCRUD,
	}

	passed := 0
	for _, check := range checks {
		if check(ctx) {
			passed++
		}
	}

	log.Infof("SUMMARY: %d/%d passed (%.1f%%)", passed, len(checks), float64(passed)/float64(len(checks))*100)
	return passed == len(checks)
}

func (t *Tester) Results() []Result {
	return t.results
}

func (t *Tester) Summary() Summary {
	results := t.results
	if results == nil {
		results = []Result{}
	}
	return Summary{
		BaseURL:     t.params.BaseURL,
		Destructive: t.params.Destructive,
		Timestamp:   t.timestamp(),
		Results:     results,
	}
}

func (t *Tester) timestamp() string {
	return t.nowFunc().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func (t *Tester) record(name string, ok bool, message string, extra map[string]any) bool {
	t.results = append(t.results, Result{
		Test:      name,
		Success:   ok,
		Message:   message,
		Timestamp: t.timestamp(),
		Extra:     extra,
	})
	if ok {
		log.Infof("PASS %s: %s", name, message)
	} else {
		log.Errorf("FAIL %s: %s", name, message)
	}
	return ok
}

func (t *Tester) checkHealth(ctx context.Context) bool {
	const name = "Health"
	resp, err := t.do(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	if resp.status != http.StatusOK {
		return t.record(name, false, fmt.Sprintf("Unexpected status %d", resp.status), nil)
	}
	return t.record(name, true, "Health endpoint responded 200", nil)
}

func (t *Tester) checkAdminLogin(ctx context.Context) bool {
	const name = "Admin Login"
	creds := map[string]string{
		"username": t.params.Username,
		"password": t.params.Password,
	}
	resp, err := t.do(ctx, http.MethodPost, "/auth/login", creds, false)
	if err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	if resp.status != http.StatusOK {
		return t.record(name, false, httpFailure(resp), nil)
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	token := env.AccessToken
	if token == "" {
		token = env.Token
	}
	if token == "" {
		return t.record(name, false, "No access_token in response", nil)
	}

	t.adminToken = token
	return t.record(name, true, "Authenticated as admin", nil)
}

func (t *Tester) checkPublicVehicles(ctx context.Context) bool {
	const name = "Vehicles (Public)"
	resp, err := t.do(ctx, http.MethodGet, "/vehicles", nil, false)
	if err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	if resp.status != http.StatusOK {
		return t.record(name, false, httpFailure(resp), nil)
	}

	items, ok := successList(resp.body)
	return t.record(name, ok, fmt.Sprintf("Retrieved %d vehicles", len(items)), map[string]any{"count": len(items)})
}

func (t *Tester) checkAdminVehicles(ctx context.Context) bool {
	const name = "Vehicles (Admin GET)"
	if t.adminToken == "" {
		return t.record(name, false, "Missing admin token", nil)
	}

	resp, err := t.do(ctx, http.MethodGet, "/admin/vehicles", nil, true)
	if err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	if resp.status != http.StatusOK {
		return t.record(name, false, httpFailure(resp), nil)
	}

	_, ok := successList(resp.body)
	return t.record(name, ok, "Admin vehicles list fetched", nil)
}

func (t *Tester) checkAdminProtection(ctx context.Context) bool {
	const name = "Admin Protection"
	resp, err := t.do(ctx, http.MethodGet, "/admin/vehicles", nil, false)
	if err != nil {
		return t.record(name, false, "Exception: "+err.Error(), nil)
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return t.record(name, true, fmt.Sprintf("Blocked with %d", resp.status), nil)
	}
	return t.record(name, false, fmt.Sprintf("Unexpected status %d", resp.status), nil)
}

func (t *Tester) checkVehicleCRUD(ctx context.Context) bool {
	if t.adminToken == "" {
		return t.record("Vehicles (Admin CRUD)", false, "Missing admin token", nil)
	}
	if !t.params.Destructive {
		return t.record("Vehicles (Admin CRUD)", true, "Skipped (destructive tests disabled)", nil)
	}

	payload := map[string]any{
		"vehicleType":    "sedan_dzire",
		"make":           "Maruti Suzuki",
		"name":           "CI Test Sedan Vehicle",
		"model":          "CI Model",
		"capacity":       4,
		"price":          12.0,
		"priceUnit":      "per km",
		"features":       []string{"AC", "GPS"},
		"specifications": map[string]string{"fuelType": "petrol", "transmission": "manual"},
		"image":          "https://example.com/img.jpg",
		"badge":          "CI",
		"badgeColor":     "bg-blue-500",
		"isActive":       true,
		"isPopular":      false,
		"sortOrder":      999,
		"description":    "Created by CI tests",
	}
	resp, err := t.do(ctx, http.MethodPost, "/admin/vehicles", payload, true)
	if err != nil {
		return t.record("Vehicles (Create)", false, "Exception: "+err.Error(), nil)
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return t.record("Vehicles (Create)", false, httpFailure(resp), nil)
	}
	t.createdVehicleID = createdID(resp.body)
	if t.createdVehicleID == "" {
		return t.record("Vehicles (Create)", false, "No id in response", nil)
	}
	t.record("Vehicles (Create)", true, "Created vehicle id="+t.createdVehicleID, nil)

	update := map[string]any{"price": 18.0, "name": "CI Updated"}
	resp, err = t.do(ctx, http.MethodPut, "/admin/vehicles/"+t.createdVehicleID, update, true)
	if err != nil {
		return t.record("Vehicles (Update)", false, "Exception: "+err.Error(), nil)
	}
	if ok := t.record("Vehicles (Update)", isSuccess(resp), fmt.Sprintf("Update status=%d", resp.status), nil); !ok {
		return false
	}

	resp, err = t.do(ctx, http.MethodDelete, "/admin/vehicles/"+t.createdVehicleID, nil, true)
	if err != nil {
		return t.record("Vehicles (Delete)", false, "Exception: "+err.Error(), nil)
	}
	return t.record("Vehicles (Delete)", isSuccess(resp), fmt.Sprintf("Delete status=%d", resp.status), nil)
}

// do sends one request, retrying transport errors and retryable statuses with exponential backoff.
// After the last retry the last response is returned as is.
func (t *Tester) do(ctx context.Context, method, path string, body any, authenticated bool) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = t.params.RetryInterval
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(t.params.Retries)), ctx)

	var last *response
	operation := func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, t.params.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if authenticated && t.adminToken != "" {
			req.Header.Set("Authorization", "Bearer "+t.adminToken)
		}

		httpResp, err := t.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := httpResp.Body.Close(); closeErr != nil {
				log.Warnf("close response body: %s", closeErr)
			}
		}()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		last = &response{status: httpResp.StatusCode, body: respBody}
		if slices.Contains(retryableStatuses, httpResp.StatusCode) {
			return last, fmt.Errorf("%w: %d", errRetryableStatus, httpResp.StatusCode)
		}
		return last, nil
	}

	notify := func(err error, wait time.Duration) {
		log.Debugf("%s %s failed (%s), retrying in %s", method, path, err, wait)
	}

	resp, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		if errors.Is(err, errRetryableStatus) && last != nil {
			return last, nil
		}
		return nil, err
	}
	return resp, nil
}

func httpFailure(resp *response) string {
	text := string(resp.body)
	if len(text) > maxBodyInMessage {
		text = text[:maxBodyInMessage]
	}
	return fmt.Sprintf("HTTP %d: %s", resp.status, text)
}

func isSuccess(resp *response) bool {
	if resp.status != http.StatusOK {
		return false
	}
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return false
	}
	return env.Status == "success"
}

func successList(body []byte) ([]json.RawMessage, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Status != "success" {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}

func createdID(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	var data struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ""
	}
	if data.ID != "" {
		return data.ID
	}
	return data.MongoID
}
