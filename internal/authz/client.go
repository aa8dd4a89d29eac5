package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client performs authorization checks.
type Client interface {
	Check(ctx context.Context, user, object, relation string) (bool, error)
}

// OpenFGAClient implements Client against the OpenFGA HTTP API.
type OpenFGAClient struct {
	apiURL  string
	storeID string
	http    *http.Client
}

func NewOpenFGAClient(apiURL, storeID string) *OpenFGAClient {
	return &OpenFGAClient{
		apiURL:  strings.TrimRight(apiURL, "/"),
		storeID: storeID,
		http: &http.Client{
			Timeout:   3 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// NewFromEnv constructs a Client based on OPENFGA_* env vars.
// If not configured, returns a no-op client that always allows.
func NewFromEnv() Client {
	apiURL := os.Getenv("OPENFGA_API_URL")
	storeID := os.Getenv("OPENFGA_STORE_ID")
	if apiURL == "" || storeID == "" {
		return NoopClient{}
	}
	return NewOpenFGAClient(apiURL, storeID)
}

type TupleKey struct {
	User     string `json:"user"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// Check calls POST {api}/stores/{store}/check. A definitive deny is (false, nil).
func (c *OpenFGAClient) Check(ctx context.Context, user, object, relation string) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	body := map[string]any{"tuple_key": TupleKey{User: user, Relation: relation, Object: object}}
	if err := c.post(ctx, "check", body, &out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

// Write stores relationship tuples.
func (c *OpenFGAClient) Write(ctx context.Context, tuples []TupleKey) error {
	body := map[string]any{"writes": map[string]any{"tuple_keys": tuples}}
	return c.post(ctx, "write", body, nil)
}

func (c *OpenFGAClient) post(ctx context.Context, op string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode openfga %s: %w", op, err)
	}
	url := fmt.Sprintf("%s/stores/%s/%s", c.apiURL, c.storeID, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openfga %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openfga %s status %d", op, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode openfga %s: %w", op, err)
	}
	return nil
}

// NoopClient allows everything. Useful for local dev without OpenFGA.
type NoopClient struct{}

func (NoopClient) Check(context.Context, string, string, string) (bool, error) {
	return true, nil
}
