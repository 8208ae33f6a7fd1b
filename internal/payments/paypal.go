package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// PayPalAdapter drives the hosted-checkout flow: create an order, send
// the buyer to the approval URL, receive a webhook once it is captured.
type PayPalAdapter struct {
	ClientID   string
	Secret     string
	BaseURL    string // e.g. https://api-m.sandbox.paypal.com
	ReturnURL  string
	CancelURL  string
	httpClient *http.Client
}

func NewPayPalAdapter(clientID, secret, baseURL, returnURL, cancelURL string) *PayPalAdapter {
	return &PayPalAdapter{
		ClientID:   clientID,
		Secret:     secret,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ReturnURL:  returnURL,
		CancelURL:  cancelURL,
		httpClient: http.DefaultClient,
	}
}

func (p *PayPalAdapter) Name() string { return "paypal" }

func (p *PayPalAdapter) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.Reference,
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         req.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": p.ReturnURL,
			"cancel_url": p.CancelURL,
		},
	}

	body, _ := json.Marshal(payload)

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v2/checkout/orders", bytes.NewBuffer(body))
	httpReq.SetBasicAuth(p.ClientID, p.Secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return InitiateResponse{}, fmt.Errorf("%w: paypal create order: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 500:
		return InitiateResponse{}, fmt.Errorf("%w: paypal create order: http=%d body=%s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	default:
		return InitiateResponse{}, fmt.Errorf("%w: paypal create order: http=%d body=%s", ErrGatewayRejected, resp.StatusCode, string(raw))
	}

	var res struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return InitiateResponse{}, fmt.Errorf("%w: paypal create order decode: %w body=%s", ErrGatewayUnavailable, err, string(raw))
	}
	if res.ID == "" {
		return InitiateResponse{}, fmt.Errorf("%w: paypal create order: missing order id", ErrGatewayRejected)
	}

	approveURL := ""
	for _, link := range res.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}

	return InitiateResponse{
		ProviderRef: res.ID,
		RedirectURL: approveURL,
	}, nil
}

// ParseCallback normalizes the capture webhook. Only COMPLETED counts
// as success; DENIED / VOIDED / FAILED are terminal failures. Anything
// else (or a malformed body) is discarded as invalid.
func (p *PayPalAdapter) ParseCallback(raw []byte) (Callback, error) {
	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Callback{}, fmt.Errorf("%w: paypal callback decode: %w", ErrInvalidCallback, err)
	}
	if payload.ID == "" {
		return Callback{}, fmt.Errorf("%w: paypal callback missing order id", ErrInvalidCallback)
	}

	var outcome Outcome
	switch strings.ToUpper(payload.Status) {
	case "COMPLETED":
		outcome = OutcomeSuccess
	case "DENIED", "VOIDED", "FAILED":
		outcome = OutcomeFailure
	default:
		return Callback{}, fmt.Errorf("%w: paypal callback status %q", ErrInvalidCallback, payload.Status)
	}

	amount := decimal.Zero
	if payload.Amount.Value != "" {
		var err error
		amount, err = decimal.NewFromString(payload.Amount.Value)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: paypal callback amount %q", ErrInvalidCallback, payload.Amount.Value)
		}
	}

	return Callback{
		ProviderRef: payload.ID,
		Outcome:     outcome,
		Amount:      amount,
		Currency:    payload.Amount.CurrencyCode,
	}, nil
}
