// Package backend is the client for the operator-run terminal backend that
// issues connection tokens, registers readers and manages payment intents.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

const maxErrorBody = 4 << 10

// Client calls the backend with form-encoded POST requests.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client bound to baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be an absolute http(s) url", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) CreateConnectionToken(ctx context.Context) (ConnectionToken, error) {
	var out ConnectionToken
	if err := c.post(ctx, "createConnectionToken", "/connection_token", url.Values{}, &out); err != nil {
		return ConnectionToken{}, err
	}
	if out.Secret == "" {
		return ConnectionToken{}, &RequestError{Sentinel: ErrBadResponse, Operation: "createConnectionToken", Body: "missing secret"}
	}
	return out, nil
}

func (c *Client) RegisterDevice(ctx context.Context, label, registrationCode string) (terminal.Reader, error) {
	form := url.Values{}
	form.Set("label", label)
	form.Set("registration_code", registrationCode)

	var out terminal.Reader
	if err := c.post(ctx, "registerDevice", "/register_reader", form, &out); err != nil {
		return terminal.Reader{}, err
	}
	if out.ID == "" {
		return terminal.Reader{}, &RequestError{Sentinel: ErrBadResponse, Operation: "registerDevice", Body: "missing reader id"}
	}
	return out, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (CreatedPaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", params.Currency)
	form.Set("description", params.Description)

	var out CreatedPaymentIntent
	if err := c.post(ctx, "createPaymentIntent", "/create_payment_intent", form, &out); err != nil {
		return CreatedPaymentIntent{}, err
	}
	if out.Secret == "" {
		return CreatedPaymentIntent{}, &RequestError{Sentinel: ErrBadResponse, Operation: "createPaymentIntent", Body: "missing secret"}
	}
	if out.ID == "" {
		out.ID = terminal.IntentIDFromSecret(out.Secret)
	}
	return out, nil
}

func (c *Client) CapturePaymentIntent(ctx context.Context, paymentIntentID string) (PaymentIntent, error) {
	form := url.Values{}
	form.Set("payment_intent_id", paymentIntentID)

	var out PaymentIntent
	if err := c.post(ctx, "capturePaymentIntent", "/capture_payment_intent", form, &out); err != nil {
		return PaymentIntent{}, err
	}
	return out, nil
}

func (c *Client) SaveSourceToCustomer(ctx context.Context, sourceID string) (Customer, error) {
	form := url.Values{}
	form.Set("source_id", sourceID)

	var out Customer
	if err := c.post(ctx, "saveSourceToCustomer", "/attach_source_to_customer", form, &out); err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &RequestError{Sentinel: ErrRequestFailed, Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RequestError{
			Sentinel:  ErrRequestFailed,
			Operation: op,
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return &RequestError{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
