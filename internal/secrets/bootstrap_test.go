package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSource(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENBAO_ADDR", "OPENBAO_TOKEN", "OPENBAO_SECRET_PATH", "OPENBAO_MOUNT", "OPENBAO_NAMESPACE"} {
		t.Setenv(k, "")
	}
}

func TestBootstrapWithoutSource(t *testing.T) {
	clearSource(t)
	res, err := Bootstrap(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Loaded())
}

func TestSourceFromEnvDefaultsMount(t *testing.T) {
	clearSource(t)
	t.Setenv("OPENBAO_ADDR", "http://bao:8200/")
	t.Setenv("OPENBAO_TOKEN", "root")
	t.Setenv("OPENBAO_SECRET_PATH", "/terminal/demo/")

	src, ok := SourceFromEnv()
	require.True(t, ok)
	assert.Equal(t, "http://bao:8200/v1/secret/data/terminal/demo", src.url())
}

func TestBootstrapExportsTerminalSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kv/data/terminal/demo", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		assert.Equal(t, "ops", r.Header.Get("X-Vault-Namespace"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{
			"BACKEND_API_KEY":"sk_test_1",
			"CHARGE_AMOUNT":2500,
			"TERMINAL_SIMULATOR_CARD":"declined",
			"HOME":"/tmp/elsewhere",
			"KAFKA_BROKERS":{"nested":true}
		}}}`))
	}))
	defer srv.Close()

	clearSource(t)
	t.Setenv("OPENBAO_ADDR", srv.URL)
	t.Setenv("OPENBAO_TOKEN", "root")
	t.Setenv("OPENBAO_SECRET_PATH", "terminal/demo")
	t.Setenv("OPENBAO_MOUNT", "kv")
	t.Setenv("OPENBAO_NAMESPACE", "ops")
	t.Setenv("BACKEND_API_KEY", "")
	t.Setenv("CHARGE_AMOUNT", "")
	t.Setenv("TERMINAL_SIMULATOR_CARD", "")
	home := os.Getenv("HOME")

	res, err := Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kv/terminal/demo", res.Path)
	assert.Equal(t, []string{"BACKEND_API_KEY", "CHARGE_AMOUNT", "TERMINAL_SIMULATOR_CARD"}, res.Exported)
	assert.Equal(t, 1, res.Ignored)

	assert.Equal(t, "sk_test_1", os.Getenv("BACKEND_API_KEY"))
	assert.Equal(t, "2500", os.Getenv("CHARGE_AMOUNT"))
	assert.Equal(t, "declined", os.Getenv("TERMINAL_SIMULATOR_CARD"))
	assert.Equal(t, home, os.Getenv("HOME"))
}

func TestFetchMissingPath(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Fetch(context.Background(), Source{Addr: srv.URL, Token: "root", Mount: "secret", Path: "missing"})
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestFetchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), Source{Addr: srv.URL, Token: "bad", Mount: "secret", Path: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}
