package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// Client is a thin PayPal REST client covering the order flow the bot needs:
// client-credentials auth, order creation, and capture.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string
	httpClient   *http.Client

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// ClientConfig carries the PayPal credentials and checkout redirect URLs.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	Environment  string // "sandbox" or "live"
	ReturnURL    string
	CancelURL    string
}

func NewClient(cfg ClientConfig) *Client {
	base := sandboxBaseURL
	if cfg.Environment == "live" {
		base = liveBaseURL
	}
	return &Client{
		baseURL:      base,
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether credentials are present. When false, /subscribe
// degrades to a plans-only listing with no checkout links.
func (c *Client) Configured() bool {
	return c != nil && c.clientID != "" && c.clientSecret != ""
}

type orderLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Links  []orderLink `json:"links"`
}

// CreateOrder creates a CAPTURE order for the plan and returns the buyer
// approval link. The user ID travels as the order's custom_id; the payment
// webhook reads it back to unlock the right user.
func (c *Client) CreateOrder(ctx context.Context, userID int64, plan Plan) (approveURL string, err error) {
	custom := strconv.FormatInt(userID, 10)
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id":   custom,
			"description": fmt.Sprintf("%s subscription", plan.Label),
			"amount": map[string]string{
				"currency_code": plan.Currency,
				"value":         plan.Price,
			},
		}},
		"application_context": map[string]string{
			"brand_name":  "Sophia",
			"user_action": "PAY_NOW",
			"return_url":  withUserID(c.returnURL, custom),
			"cancel_url":  withUserID(c.cancelURL, custom),
		},
	}

	var resp orderResponse
	if err := c.postJSON(ctx, "/v2/checkout/orders", payload, &resp); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			return l.Href, nil
		}
	}
	return "", fmt.Errorf("create order: no approve link in response (order %s)", resp.ID)
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) error {
	var resp orderResponse
	if err := c.postJSON(ctx, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, &resp); err != nil {
		return fmt.Errorf("capture order %s: %w", orderID, err)
	}
	if resp.Status != "COMPLETED" {
		return fmt.Errorf("capture order %s: status %q", orderID, resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	// Idempotency key: a retried create must not produce a second order.
	req.Header.Set("PayPal-Request-Id", uuid.NewString())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("paypal status %d: %s", res.StatusCode, string(detail))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", errors.New("paypal credentials are not configured")
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("token status %d: %s", res.StatusCode, string(detail))
	}
	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	c.accessToken = tr.AccessToken
	// Refresh a minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func withUserID(raw, userID string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String()
}
