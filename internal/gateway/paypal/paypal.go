// Package paypal implements the two-phase gateway adapter. Payments and
// billing agreements are created server-side, approved by the buyer in the
// client, and executed server-side afterwards.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/money"
)

const apiBaseURL = "https://api.sandbox.paypal.com"

// Adapter talks to the PayPal REST API with client-credentials OAuth. The
// access token is cached and refreshed shortly before expiry.
type Adapter struct {
	httpClient   *http.Client
	apiBaseURL   string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewAdapter creates a PayPal adapter. A nil client gets a default with a
// 10 second timeout. returnURL and cancelURL are the buyer redirect targets
// embedded in every created payment.
func NewAdapter(client *http.Client, clientID, clientSecret, returnURL, cancelURL string) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		httpClient:   client,
		apiBaseURL:   apiBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		returnURL:    returnURL,
		cancelURL:    cancelURL,
	}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *Adapter) SetBaseURL(base string) {
	a.apiBaseURL = base
}

// Name returns the gateway name.
func (a *Adapter) Name() string {
	return "paypal"
}

// CreatePayment opens a one-time sale for buyer approval. The outcome
// reference is the gateway payment id the client needs to drive approval.
func (a *Adapter) CreatePayment(ctx context.Context, name string, price money.Cents) gateway.Outcome {
	if !price.Positive() {
		return gateway.Failed()
	}
	amount := price.Decimal()
	payload := map[string]any{
		"intent": "sale",
		"payer":  map[string]any{"payment_method": "paypal"},
		"redirect_urls": map[string]any{
			"return_url": a.returnURL,
			"cancel_url": a.cancelURL,
		},
		"transactions": []map[string]any{{
			"amount": map[string]any{
				"total":    amount,
				"currency": money.Currency,
			},
			"item_list": map[string]any{
				"items": []map[string]any{{
					"name":     name,
					"price":    amount,
					"currency": money.Currency,
					"quantity": 1,
				}},
			},
		}},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := a.postJSON(ctx, "/v1/payments/payment", payload, &resp); err != nil {
		log.Printf("paypal: create payment failed: %v", err)
		return gateway.Failed()
	}
	if resp.ID == "" {
		log.Printf("paypal: create payment response carries no id")
		return gateway.Failed()
	}
	return gateway.Succeeded(resp.ID)
}

// ExecutePayment captures an approved payment on behalf of the payer.
func (a *Adapter) ExecutePayment(ctx context.Context, paymentID, payerID string) gateway.Outcome {
	if paymentID == "" || payerID == "" {
		return gateway.Failed()
	}
	var resp struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"
	if err := a.postJSON(ctx, path, map[string]any{"payer_id": payerID}, &resp); err != nil {
		log.Printf("paypal: execute payment failed: %v", err)
		return gateway.Failed()
	}
	if resp.State != "approved" {
		log.Printf("paypal: payment %s executed with state %q", paymentID, resp.State)
		return gateway.Failed()
	}
	return gateway.Succeeded(resp.ID)
}

// CreateAgreement opens a billing agreement on a pre-provisioned plan. The
// outcome reference is the approval token the buyer trades through the
// client; start is the first billing date the agreement carries.
func (a *Adapter) CreateAgreement(ctx context.Context, name, planID string, start time.Time) gateway.Outcome {
	if planID == "" {
		return gateway.Failed()
	}
	payload := map[string]any{
		"name":        name,
		"description": "Subscription agreement for " + name,
		"start_date":  start.UTC().Format(time.RFC3339),
		"payer":       map[string]any{"payment_method": "paypal"},
		"plan":        map[string]any{"id": planID},
	}

	var resp struct {
		Links []link `json:"links"`
	}
	if err := a.postJSON(ctx, "/v1/payments/billing-agreements", payload, &resp); err != nil {
		log.Printf("paypal: create agreement failed: %v", err)
		return gateway.Failed()
	}

	token := approvalToken(resp.Links)
	if token == "" {
		log.Printf("paypal: create agreement response carries no approval token")
		return gateway.Failed()
	}
	return gateway.Succeeded(token)
}

// ExecuteAgreement finalizes an approved billing agreement. The outcome
// reference is the agreement id the gateway assigns on execution.
func (a *Adapter) ExecuteAgreement(ctx context.Context, token string) gateway.Outcome {
	if token == "" {
		return gateway.Failed()
	}
	var resp struct {
		ID string `json:"id"`
	}
	path := "/v1/payments/billing-agreements/" + url.PathEscape(token) + "/agreement-execute"
	if err := a.postJSON(ctx, path, map[string]any{}, &resp); err != nil {
		log.Printf("paypal: execute agreement failed: %v", err)
		return gateway.Failed()
	}
	if resp.ID == "" {
		log.Printf("paypal: execute agreement response carries no id")
		return gateway.Failed()
	}
	return gateway.Succeeded(resp.ID)
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// approvalToken extracts the token query parameter from the approval_url
// link of a created agreement.
func approvalToken(links []link) string {
	for _, l := range links {
		if l.Rel != "approval_url" {
			continue
		}
		u, err := url.Parse(l.Href)
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}
	return ""
}

// token returns a valid cached access token or fetches a fresh one.
func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBaseURL+"/v1/oauth2/token", body)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("token: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("token: decode response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token: response carries no access_token")
	}

	a.accessToken = tok.AccessToken
	// refresh a minute early
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return a.accessToken, nil
}

// apiError is the error envelope the PayPal API returns on non-2xx.
type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// postJSON sends one JSON request with a bearer token and decodes the
// response into out. Exactly one API request per call; errors are returned,
// not retried.
func (a *Adapter) postJSON(ctx context.Context, path string, payload any, out any) error {
	tok, err := a.token(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Name != "" {
			return fmt.Errorf("%s: HTTP %d %s: %s", path, resp.StatusCode, apiErr.Name, apiErr.Message)
		}
		return fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
