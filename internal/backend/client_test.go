package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:4567", "ftp://example.com", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewNormalizesTrailingSlash(t *testing.T) {
	c, err := New("https://backend.example.com/terminal/")
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com/terminal", c.BaseURL())
}

func TestCreateConnectionToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connection_token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		writeJSON(w, map[string]string{"secret": "pst_test_123"})
	})

	tok, err := c.CreateConnectionToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pst_test_123", tok.Secret)
}

func TestCreateConnectionTokenMissingSecret(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{})
	})

	_, err := c.CreateConnectionToken(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestRegisterDeviceSendsForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/register_reader", r.URL.Path)
		assert.Equal(t, "Front desk", r.PostForm.Get("label"))
		assert.Equal(t, "simulated-wpe", r.PostForm.Get("registration_code"))
		writeJSON(w, map[string]string{
			"id":            "tmr_abc",
			"label":         "Front desk",
			"device_type":   "bbpos_wisepos_e",
			"serial_number": "WSC513105011295",
		})
	})

	reader, err := c.RegisterDevice(context.Background(), "Front desk", "simulated-wpe")
	require.NoError(t, err)
	assert.Equal(t, "tmr_abc", reader.ID)
	assert.Equal(t, "bbpos_wisepos_e", reader.DeviceType)
	assert.Equal(t, "WSC513105011295", reader.SerialNumber)
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "5100", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "Test Charge", r.PostForm.Get("description"))
		writeJSON(w, map[string]string{"secret": "pi_42_secret_zz"})
	})

	intent, err := c.CreatePaymentIntent(context.Background(), PaymentIntentParams{Amount: 5100, Currency: "usd", Description: "Test Charge"})
	require.NoError(t, err)
	assert.Equal(t, "pi_42_secret_zz", intent.Secret)
	assert.Equal(t, "pi_42", intent.ID, "id falls back to the secret prefix")
}

func TestCapturePaymentIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_42", r.PostForm.Get("payment_intent_id"))
		writeJSON(w, PaymentIntent{ID: "pi_42", Status: "succeeded", Amount: 5100, AmountReceived: 5100, Currency: "usd"})
	})

	pi, err := c.CapturePaymentIntent(context.Background(), "pi_42")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", pi.Status)
	assert.Equal(t, int64(5100), pi.AmountReceived)
}

func TestSaveSourceToCustomer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/attach_source_to_customer", r.URL.Path)
		assert.Equal(t, "src_1", r.PostForm.Get("source_id"))
		writeJSON(w, Customer{ID: "cus_1", DefaultSource: "src_1"})
	})

	cus, err := c.SaveSourceToCustomer(context.Background(), "src_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cus.ID)
}

func TestNon2xxReturnsRequestError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "No such payment_intent: pi_x", http.StatusPaymentRequired)
	})

	_, err := c.CapturePaymentIntent(context.Background(), "pi_x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "capturePaymentIntent", re.Operation)
	assert.Equal(t, http.StatusPaymentRequired, re.Status)
	assert.Equal(t, "No such payment_intent: pi_x", re.Body)
}

func TestMalformedJSONIsBadResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := c.SaveSourceToCustomer(context.Background(), "src_1")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestAPIKeyIsSentAsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_demo", r.Header.Get("Authorization"))
		writeJSON(w, map[string]string{"secret": "pst"})
	}, WithAPIKey("sk_demo"))

	_, err := c.CreateConnectionToken(context.Background())
	require.NoError(t, err)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base, WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.CreateConnectionToken(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
