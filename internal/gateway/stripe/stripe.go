// Package stripe implements the direct-charge gateway adapter.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/money"
)

const apiBaseURL = "https://api.stripe.com/v1"

// Adapter talks to the Stripe API. One-time products are charged with a
// single authorize-and-capture call; plan products find-or-create a
// customer and open a subscription instead.
type Adapter struct {
	httpClient *http.Client
	apiBaseURL string
	apiKey     string
}

// NewAdapter creates a Stripe adapter. A nil client gets a default with a
// 10 second timeout.
func NewAdapter(client *http.Client, apiKey string) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		httpClient: client,
		apiBaseURL: apiBaseURL,
		apiKey:     apiKey,
	}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *Adapter) SetBaseURL(base string) {
	a.apiBaseURL = base
}

// Name returns the gateway name.
func (a *Adapter) Name() string {
	return "stripe"
}

// Pay issues the gateway call sequence for one submission and normalizes
// the result. Gateway errors are logged with their real cause and reported
// to the caller with the fixed reason only.
func (a *Adapter) Pay(ctx context.Context, req gateway.PayRequest) gateway.Outcome {
	if !req.AmountCents.Positive() || req.CardToken == "" {
		return gateway.Failed()
	}

	if req.PlanID == "" {
		chargeID, err := a.charge(ctx, req.AmountCents, req.Description, req.CardToken)
		if err != nil {
			log.Printf("stripe: charge failed: %v", err)
			return gateway.Failed()
		}
		return gateway.Succeeded(chargeID)
	}

	customerID, err := a.findOrCreateCustomer(ctx, req.CustomerRef, req.Email, req.CardToken)
	if err != nil {
		log.Printf("stripe: customer lookup failed: %v", err)
		return gateway.Failed()
	}
	subscriptionID, err := a.createSubscription(ctx, customerID, req.PlanID)
	if err != nil {
		log.Printf("stripe: subscription failed: %v", err)
		return gateway.Failed()
	}
	out := gateway.Succeeded(subscriptionID)
	out.PayerRef = customerID
	return out
}

func (a *Adapter) charge(ctx context.Context, amount money.Cents, description, cardToken string) (string, error) {
	payload := url.Values{}
	payload.Set("amount", strconv.FormatInt(int64(amount), 10))
	payload.Set("currency", strings.ToLower(money.Currency))
	payload.Set("description", description)
	payload.Set("source", cardToken)
	return a.post(ctx, "/charges", payload)
}

// findOrCreateCustomer reuses the buyer's stored customer (re-attaching the
// fresh card token) or creates a new one.
func (a *Adapter) findOrCreateCustomer(ctx context.Context, customerRef, email, cardToken string) (string, error) {
	if customerRef != "" {
		payload := url.Values{}
		payload.Set("source", cardToken)
		return a.post(ctx, "/customers/"+customerRef, payload)
	}
	payload := url.Values{}
	payload.Set("email", email)
	payload.Set("source", cardToken)
	return a.post(ctx, "/customers", payload)
}

func (a *Adapter) createSubscription(ctx context.Context, customerID, planID string) (string, error) {
	payload := url.Values{}
	payload.Set("customer", customerID)
	payload.Set("plan", planID)
	return a.post(ctx, "/subscriptions", payload)
}

// apiError is the error envelope the Stripe API returns on non-2xx.
type apiError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

// post sends one form-encoded request and returns the id of the created or
// updated object. Exactly one request per call; errors are returned, not
// retried.
func (a *Adapter) post(ctx context.Context, path string, payload url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBaseURL+path, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			code := apiErr.Error.Code
			if apiErr.Error.DeclineCode != "" {
				code = apiErr.Error.DeclineCode
			}
			return "", fmt.Errorf("%s: HTTP %d %s: %s", path, resp.StatusCode, code, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", path, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%s: response carries no id", path)
	}
	return created.ID, nil
}
