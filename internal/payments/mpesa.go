package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MpesaAdapter drives the STK-push flow: fire a push to the customer's
// phone, return the checkout request id as confirmation, wait for the
// asynchronous result callback.
type MpesaAdapter struct {
	ShortCode   string
	PassKey     string
	BaseURL     string // e.g. https://sandbox.safaricom.co.ke
	CallbackURL string
	Currency    string
	httpClient  *http.Client
	now         func() time.Time
}

func NewMpesaAdapter(shortCode, passKey, baseURL, callbackURL string) *MpesaAdapter {
	return &MpesaAdapter{
		ShortCode:   shortCode,
		PassKey:     passKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		CallbackURL: callbackURL,
		Currency:    "KES",
		httpClient:  http.DefaultClient,
		now:         time.Now,
	}
}

func (m *MpesaAdapter) Name() string { return "mpesa" }

// password is base64(shortcode + passkey + timestamp), per the Daraja
// STK-push scheme.
func (m *MpesaAdapter) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(m.ShortCode + m.PassKey + timestamp))
}

func (m *MpesaAdapter) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	timestamp := m.now().Format("20060102150405")

	payload := map[string]any{
		"BusinessShortCode": m.ShortCode,
		"Password":          m.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.StringFixed(0),
		"PartyA":            req.Phone,
		"PartyB":            m.ShortCode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       m.CallbackURL,
		"AccountReference":  req.Reference,
		"TransactionDesc":   "Storefront order",
	}

	body, _ := json.Marshal(payload)

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(body))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return InitiateResponse{}, fmt.Errorf("%w: mpesa stk push: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return InitiateResponse{}, fmt.Errorf("%w: mpesa stk push: http=%d body=%s", ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var res struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		// Client-error statuses are provider refusals even when the
		// body is not the documented shape; only 2xx garbage suggests
		// transport trouble worth retrying.
		if resp.StatusCode >= 400 {
			return InitiateResponse{}, fmt.Errorf("%w: mpesa stk push: http=%d body=%s", ErrGatewayRejected, resp.StatusCode, string(raw))
		}
		return InitiateResponse{}, fmt.Errorf("%w: mpesa stk push decode: %w body=%s", ErrGatewayUnavailable, err, string(raw))
	}

	if resp.StatusCode != http.StatusOK || res.ResponseCode != "0" || res.CheckoutRequestID == "" {
		return InitiateResponse{}, fmt.Errorf("%w: mpesa stk push: code=%s desc=%s", ErrGatewayRejected, res.ResponseCode, res.ResponseDescription)
	}

	return InitiateResponse{
		ProviderRef: res.CheckoutRequestID,
		Data: map[string]string{
			"merchant_request_id": res.MerchantRequestID,
			"customer_message":    res.CustomerMessage,
		},
	}, nil
}

// ParseCallback normalizes the Daraja result callback. ResultCode 0 is
// success; any other code is a terminal failure for this push.
func (m *MpesaAdapter) ParseCallback(raw []byte) (Callback, error) {
	var payload struct {
		Body struct {
			StkCallback struct {
				MerchantRequestID string `json:"MerchantRequestID"`
				CheckoutRequestID string `json:"CheckoutRequestID"`
				ResultCode        *int   `json:"ResultCode"`
				ResultDesc        string `json:"ResultDesc"`
				CallbackMetadata  struct {
					Item []struct {
						Name  string          `json:"Name"`
						Value json.RawMessage `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Callback{}, fmt.Errorf("%w: mpesa callback decode: %w", ErrInvalidCallback, err)
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" || cb.ResultCode == nil {
		return Callback{}, fmt.Errorf("%w: mpesa callback missing CheckoutRequestID or ResultCode", ErrInvalidCallback)
	}

	outcome := OutcomeFailure
	if *cb.ResultCode == 0 {
		outcome = OutcomeSuccess
	}

	amount := decimal.Zero
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != "Amount" {
			continue
		}
		var v float64
		if err := json.Unmarshal(item.Value, &v); err != nil {
			return Callback{}, fmt.Errorf("%w: mpesa callback amount: %w", ErrInvalidCallback, err)
		}
		amount = decimal.NewFromFloat(v)
		break
	}

	return Callback{
		ProviderRef: cb.CheckoutRequestID,
		Outcome:     outcome,
		Amount:      amount,
		Currency:    m.Currency,
	}, nil
}
