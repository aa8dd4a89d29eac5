// Package secrets pulls terminal settings out of an OpenBao KV v2 secret and
// exports them into the environment before configuration is loaded.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrSecretNotFound = errors.New("secrets: openbao path not found")

// settingPrefixes are the environment families config.Load reads. Anything
// else in the secret is ignored.
var settingPrefixes = []string{
	"BACKEND_",
	"CHARGE_",
	"CART_",
	"TERMINAL_",
	"ACTIVITY_",
	"KAFKA_",
	"OPENFGA_",
}

// Source locates the secret holding the terminal settings.
type Source struct {
	Addr      string
	Token     string
	Mount     string
	Path      string
	Namespace string
}

// SourceFromEnv reads OPENBAO_*. ok is false when address, token or path is missing.
func SourceFromEnv() (src Source, ok bool) {
	src = Source{
		Addr:      strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/"),
		Token:     os.Getenv("OPENBAO_TOKEN"),
		Mount:     strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/"),
		Path:      strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/"),
		Namespace: strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
	}
	if src.Mount == "" {
		src.Mount = "secret"
	}
	return src, src.Addr != "" && src.Token != "" && src.Path != ""
}

func (s Source) url() string {
	return s.Addr + "/v1/" + s.Mount + "/data/" + s.Path
}

// Result reports what a bootstrap exported. Values are never kept.
type Result struct {
	Path     string
	Exported []string
	Ignored  int
}

// Loaded reports whether any setting came from OpenBao.
func (r Result) Loaded() bool { return len(r.Exported) > 0 }

// Bootstrap exports the terminal settings found at the configured source.
// Without OpenBao configuration it returns an empty Result.
func Bootstrap(ctx context.Context) (Result, error) {
	src, ok := SourceFromEnv()
	if !ok {
		return Result{}, nil
	}
	values, err := Fetch(ctx, src)
	if err != nil {
		return Result{}, err
	}
	res := Export(values)
	res.Path = src.Mount + "/" + src.Path
	return res, nil
}

// Export sets the recognized settings in the environment and returns their
// keys, sorted.
func Export(values map[string]string) Result {
	var res Result
	for k, v := range values {
		if !isSetting(k) {
			res.Ignored++
			continue
		}
		_ = os.Setenv(k, v)
		res.Exported = append(res.Exported, k)
	}
	slices.Sort(res.Exported)
	return res
}

func isSetting(key string) bool {
	for _, p := range settingPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

var httpClient = &http.Client{
	Timeout:   5 * time.Second,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

// Fetch reads the KV v2 secret at src as flat string values. Nested values
// are dropped.
func Fetch(ctx context.Context, src Source) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: build request: %w", err)
	}
	req.Header.Set("X-Vault-Token", src.Token)
	if src.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", src.Namespace)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secrets: read %s: %w", src.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, src.Path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("secrets: read %s: status %d", src.Path, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("secrets: decode %s: %w", src.Path, err)
	}

	out := make(map[string]string, len(body.Data.Data))
	for k, raw := range body.Data.Data {
		if v, ok := flatten(raw); ok {
			out[k] = v
		}
	}
	return out, nil
}

func flatten(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
