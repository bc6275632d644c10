// Package api is the gateway to the FarmWatch monitoring service. It owns
// request construction, bearer-token attachment, and the translation of every
// transport or HTTP failure into a typed APIError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmwatch/farmwatch/pkg/models"
)

// TokenStore supplies the bearer token for authenticated calls and receives
// the token a successful login returns. The credential store implements it.
type TokenStore interface {
	// Token returns the persisted bearer token, or "" when logged out.
	Token(ctx context.Context) (string, error)
	// SaveToken durably replaces the persisted token.
	SaveToken(ctx context.Context, token string) error
}

// Client talks JSON over HTTP to the monitoring service. Methods are safe for
// concurrent use; apart from Login's token persist they have no side effects.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenStore
	logger     *zap.Logger
}

// NewClient creates a service client. The transport timeout bounds every call.
func NewClient(baseURL string, tokens TokenStore, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     logger,
	}
}

// Login exchanges credentials for a bearer token. The token is persisted via
// the TokenStore before Login returns, so a subsequent authenticated call can
// rely on it.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &APIError{Kind: KindMalformed, Message: "login response carried no access token"}
	}
	if err := c.tokens.SaveToken(ctx, resp.AccessToken); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	return &resp, nil
}

// Register creates an account. It does not establish a session; the caller
// must still log in. Returns the service's acknowledgement message.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var resp registerResponse
	err := c.doJSON(ctx, "register", http.MethodPost, "/auth/register", RegisterRequest{Username: username, Email: email, Password: password}, &resp, false)
	if err != nil {
		return "", err
	}
	return resp.Msg, nil
}

// SensorData fetches every stored sensor reading.
func (c *Client) SensorData(ctx context.Context) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	if err := c.doJSON(ctx, "sensor_data", http.MethodGet, "/sensor/", nil, &readings, true); err != nil {
		return nil, err
	}
	return readings, nil
}

// AddSensorReading submits one measurement. The service rejects out-of-range
// values with a 400 and floods with a 429; both surface as APIErrors.
func (c *Client) AddSensorReading(ctx context.Context, req AddReadingRequest) (*models.SensorReading, error) {
	var created models.SensorReading
	if err := c.doJSON(ctx, "add_sensor_reading", http.MethodPost, "/sensor/add", req, &created, true); err != nil {
		return nil, err
	}
	return &created, nil
}

// SecuritySummary fetches the aggregate dashboard counters.
func (c *Client) SecuritySummary(ctx context.Context) (*models.SecuritySummary, error) {
	var summary models.SecuritySummary
	if err := c.doJSON(ctx, "security_summary", http.MethodGet, "/security/summary", nil, &summary, true); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Alerts fetches the threat-alert feed, newest first.
func (c *Client) Alerts(ctx context.Context, filter AlertFilter) ([]models.ThreatAlert, error) {
	var alerts []models.ThreatAlert
	path := withQuery("/security/alerts", filter.query())
	if err := c.doJSON(ctx, "alerts", http.MethodGet, path, nil, &alerts, true); err != nil {
		return nil, err
	}
	return alerts, nil
}

// SecurityEvents fetches the detection-event feed, newest first.
func (c *Client) SecurityEvents(ctx context.Context, filter EventFilter) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	path := withQuery("/security/events", filter.query())
	if err := c.doJSON(ctx, "security_events", http.MethodGet, path, nil, &events, true); err != nil {
		return nil, err
	}
	return events, nil
}

// Devices fetches the authorized device registry.
func (c *Client) Devices(ctx context.Context, filter DeviceFilter) ([]models.Device, error) {
	var devices []models.Device
	path := withQuery("/devices/", filter.query())
	if err := c.doJSON(ctx, "devices", http.MethodGet, path, nil, &devices, true); err != nil {
		return nil, err
	}
	for i := range devices {
		devices[i].Status = models.NormalizeDeviceStatus(string(devices[i].Status))
	}
	return devices, nil
}

// SecurityStatistics fetches aggregate counts for the trailing period. The
// shape varies with the service version, so it stays a loose map.
func (c *Client) SecurityStatistics(ctx context.Context, days int) (map[string]any, error) {
	path := "/security/statistics"
	if days > 0 {
		path = fmt.Sprintf("%s?days=%d", path, days)
	}
	var stats map[string]any
	if err := c.doJSON(ctx, "security_statistics", http.MethodGet, path, nil, &stats, true); err != nil {
		return nil, err
	}
	return stats, nil
}

// Users fetches all account records.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.doJSON(ctx, "users", http.MethodGet, "/users/", nil, &users, true); err != nil {
		return nil, err
	}
	return users, nil
}

// CurrentUser resolves the identity behind the current session. It prefers
// GET /users/me; service builds that lack the endpoint answer 404 or 405, in
// which case it falls back to the first record of /users/. The fallback
// returns the wrong account whenever more than one exists, so it is logged.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := c.doJSON(ctx, "current_user", http.MethodGet, "/users/me", nil, &user, true)
	if err == nil {
		return &user, nil
	}
	var apiErr *APIError
	if !asMissingEndpoint(err, &apiErr) {
		return nil, err
	}

	c.logger.Warn("service has no /users/me, falling back to first user record",
		zap.Int("status", apiErr.StatusCode),
	)
	users, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &APIError{Kind: KindMalformed, Message: "no user records available", StatusCode: apiErr.StatusCode}
	}
	return &users[0], nil
}

// asMissingEndpoint reports whether err looks like an absent route rather
// than a failed call.
func asMissingEndpoint(err error, target **APIError) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	*target = apiErr
	return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusMethodNotAllowed
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// doJSON performs one HTTP round trip with JSON bodies. Every failure it
// returns is an *APIError; success bodies are decoded best-effort into result.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, result any, authed bool) (err error) {
	start := time.Now()
	defer func() { observe(op, time.Since(start).Seconds(), err) }()

	var reqBody io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return &APIError{Kind: KindMalformed, Message: fmt.Sprintf("%s: encode request", op), err: merr}
		}
		reqBody = bytes.NewReader(data)
	}

	req, rerr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if rerr != nil {
		return &APIError{Kind: KindMalformed, Message: fmt.Sprintf("%s: build request", op), err: rerr}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, terr := c.tokens.Token(ctx)
		if terr != nil {
			return &APIError{Kind: KindTransport, Message: fmt.Sprintf("%s: read credentials", op), err: terr}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, derr := c.httpClient.Do(req)
	if derr != nil {
		return transportError(op, derr)
	}
	defer resp.Body.Close()

	respBody, berr := io.ReadAll(resp.Body)
	if berr != nil {
		return transportError(op, berr)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		apiErr := statusError(resp.StatusCode, eb.Detail)
		c.logger.Debug("api request failed",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)),
		)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if uerr := json.Unmarshal(respBody, result); uerr != nil {
			return malformedError(op, uerr)
		}
	}
	return nil
}
