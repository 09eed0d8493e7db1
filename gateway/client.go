// Package gateway is the HTTP client for the external payment gateway. The
// gateway is the source of truth for payment status; amounts cross the wire
// in minor currency units and timestamps as epoch seconds.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// PaymentCaptured is the gateway's success state for a payment.
const PaymentCaptured = "captured"

// ErrUnavailable covers network failures, timeouts and gateway 5xx responses.
// Eligible for manual retry by an operator, never auto-retried.
var ErrUnavailable = errors.New("payment gateway unavailable")

// RejectedError is a gateway 4xx response: the request itself was refused.
type RejectedError struct {
	StatusCode  int    `json:"statusCode"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected request (%d %s): %s", e.StatusCode, e.Code, e.Description)
}

// Order is a gateway-side order as returned by the orders API.
type Order struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"` // minor units
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"` // epoch seconds
}

// Payment is a gateway-side payment record.
type Payment struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"order_id"`
	Amount    int64             `json:"amount"` // minor units
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Email     string            `json:"email"`
	Contact   string            `json:"contact"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"` // epoch seconds
}

// Captured reports whether the payment reached the gateway's success state.
func (p Payment) Captured() bool {
	return p.Status == PaymentCaptured
}

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// VerifySignature checks the HMAC-SHA256 signature the gateway attaches to a
// completed checkout: hex(HMAC(secret, "orderID|paymentID")). This is the sole
// authenticity gate on order finalization.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CreateOrder registers an order with the gateway and returns its id.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		body["notes"] = notes
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", nil, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment retrieves a single payment by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FetchOrder retrieves a single gateway order by id.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// listPageSize is the gateway's maximum page size.
const listPageSize = 100

type paymentList struct {
	Count int       `json:"count"`
	Items []Payment `json:"items"`
}

// ListPayments pages through all payments created inside the window.
func (c *Client) ListPayments(ctx context.Context, from, to time.Time) ([]Payment, error) {
	var all []Payment
	for skip := 0; ; skip += listPageSize {
		query := url.Values{}
		query.Set("from", strconv.FormatInt(from.Unix(), 10))
		query.Set("to", strconv.FormatInt(to.Unix(), 10))
		query.Set("count", strconv.Itoa(listPageSize))
		query.Set("skip", strconv.Itoa(skip))

		var page paymentList
		if err := c.do(ctx, http.MethodGet, "/v1/payments", query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if len(page.Items) < listPageSize {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "build gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.Wrapf(ErrUnavailable, "gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		rejected := &RejectedError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			rejected.Code = envelope.Error.Code
			rejected.Description = envelope.Error.Description
		}
		return rejected
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode gateway response")
	}
	return nil
}
