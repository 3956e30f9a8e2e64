// Package zoho provides OAuth-authenticated REST API access to Zoho CRM.
package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/resilience"
)

// tokenExpiryBuffer is how long before actual expiry the access token is
// considered stale and refreshed.
const tokenExpiryBuffer = 5 * time.Minute

// Sentinel errors callers branch on.
var (
	// ErrInsufficientData is returned when an upload is attempted for a
	// record carrying the insufficient-data sentinel. The client re-validates
	// every write on its own; it does not trust the caller's gate.
	ErrInsufficientData = eris.New("zoho: cannot upload insufficient data")

	// ErrEmptyFields is returned for an update with no field values.
	ErrEmptyFields = eris.New("zoho: no fields to update")

	// ErrRecordNotFound is returned when a record ID does not exist.
	ErrRecordNotFound = eris.New("zoho: record not found")
)

// Client defines the Zoho CRM operations used by the pipeline.
type Client interface {
	GetRecord(ctx context.Context, id string) (*Record, error)
	SearchRecords(ctx context.Context, criteria string, limit int) ([]Record, error)
	UpdateRecord(ctx context.Context, id string, fields model.FieldMapping) error
}

// Record is a CRM record: the raw field map plus the identity fields the
// pipeline reads.
type Record struct {
	ID      string         `json:"id"`
	Name    string         `json:"Account_Name"`
	Website string         `json:"Website"`
	Fields  map[string]any `json:"-"`
}

// Company converts a CRM record into pipeline input.
func (r *Record) Company() model.Company {
	c := model.Company{
		ID:      r.ID,
		Name:    r.Name,
		Website: r.Website,
	}
	if v, ok := r.Fields["Industry"].(string); ok {
		c.Industry = v
	}
	if v, ok := r.Fields["Description"].(string); ok {
		c.Description = v
	}
	return c
}

// Config holds credentials and endpoints for the Zoho client.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountsURL  string // token endpoint host, default https://accounts.zoho.com
	APIBaseURL   string // e.g. https://www.zohoapis.com/crm/v2
	Module       string // e.g. "Accounts"
}

// Option configures the Zoho client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for CRM API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	// Token state is shared across requests. Refresh is check-then-act with
	// last-writer-wins semantics: concurrent requests may refresh redundantly
	// but never observe a torn token/expiry pair.
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a new Zoho CRM client.
func NewClient(cfg Config, opts ...Option) Client {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = "https://accounts.zoho.com"
	}
	if cfg.Module == "" {
		cfg.Module = "Accounts"
	}
	c := &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// token returns a valid access token, refreshing it when absent or within
// the expiry buffer.
func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok, exp := c.accessToken, c.expiresAt
	c.mu.Unlock()

	if tok != "" && time.Until(exp) > tokenExpiryBuffer {
		return tok, nil
	}

	fresh, expiresIn, err := c.refreshToken(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.accessToken = fresh
	c.expiresAt = time.Now().Add(expiresIn)
	c.mu.Unlock()

	return fresh, nil
}

func (c *httpClient) refreshToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AccountsURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, eris.Wrap(err, "zoho: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, eris.Wrap(err, "zoho: token request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, eris.Wrap(err, "zoho: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("zoho: token refresh status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", 0, resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", 0, err
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, eris.Wrap(err, "zoho: unmarshal token response")
	}
	if tr.Error != "" || tr.AccessToken == "" {
		return "", 0, eris.Errorf("zoho: token refresh rejected: %s", tr.Error)
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return tr.AccessToken, expiresIn, nil
}

// doAPI executes an authenticated CRM API request and returns the body.
func (c *httpClient) doAPI(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "zoho: rate limit")
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, eris.Wrap(err, "zoho: marshal request")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, eris.Wrap(err, "zoho: create request")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+tok)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "zoho: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "zoho: read response")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) GetRecord(ctx context.Context, id string) (*Record, error) {
	body, status, err := c.doAPI(ctx, http.MethodGet, "/"+c.cfg.Module+"/"+id, nil)
	if err != nil {
		return nil, err
	}
	// Zoho returns 204 for an unknown record ID.
	if status == http.StatusNoContent || status == http.StatusNotFound {
		return nil, eris.Wrapf(ErrRecordNotFound, "id %s", id)
	}
	if status != http.StatusOK {
		return nil, apiError("get record", status, body)
	}

	var env struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "zoho: unmarshal record")
	}
	if len(env.Data) == 0 {
		return nil, eris.Wrapf(ErrRecordNotFound, "id %s", id)
	}
	return recordFromMap(env.Data[0]), nil
}

func (c *httpClient) SearchRecords(ctx context.Context, criteria string, limit int) ([]Record, error) {
	path := "/" + c.cfg.Module + "/search?criteria=" + url.QueryEscape(criteria)
	if limit > 0 {
		path += "&per_page=" + strconv.Itoa(limit)
	}

	body, status, err := c.doAPI(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	// No matches.
	if status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, apiError("search records", status, body)
	}

	var env struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "zoho: unmarshal search results")
	}

	records := make([]Record, 0, len(env.Data))
	for _, m := range env.Data {
		records = append(records, *recordFromMap(m))
	}
	return records, nil
}

func (c *httpClient) UpdateRecord(ctx context.Context, id string, fields model.FieldMapping) error {
	if err := ValidateUpload(fields); err != nil {
		return err
	}

	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}

	body, status, err := c.doAPI(ctx, http.MethodPut, "/"+c.cfg.Module+"/"+id, map[string]any{
		"data": []map[string]any{data},
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError("update record", status, body)
	}

	var env struct {
		Data []struct {
			Code    string `json:"code"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return eris.Wrap(err, "zoho: unmarshal update response")
	}
	if len(env.Data) == 0 || env.Data[0].Code != "SUCCESS" {
		msg := "unknown"
		if len(env.Data) > 0 {
			msg = env.Data[0].Message
		}
		return eris.Errorf("zoho: update record %s failed: %s", id, msg)
	}
	return nil
}

// ValidateUpload checks that a field mapping is safe to write: non-empty and
// not carrying the insufficient-data sentinel. Writes failing validation are
// rejected before any bytes reach the CRM, so a partial write is impossible.
func ValidateUpload(fields model.FieldMapping) error {
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	if fields[model.FieldOverview] == model.SentinelDataNotFound {
		return ErrInsufficientData
	}
	return nil
}

func recordFromMap(m map[string]any) *Record {
	r := &Record{Fields: m}
	if v, ok := m["id"].(string); ok {
		r.ID = v
	}
	if v, ok := m["Account_Name"].(string); ok {
		r.Name = v
	}
	if v, ok := m["Website"].(string); ok {
		r.Website = v
	}
	return r
}

func apiError(op string, status int, body []byte) error {
	err := eris.Errorf("zoho: %s status %d: %s", op, status, string(body))
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
