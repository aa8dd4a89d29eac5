package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestExporterTarget(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		path     string
		insecure bool
	}{
		{"", "localhost:4318", "/v1/traces", true},
		{"https://collector.example.com:4318/custom", "collector.example.com:4318", "/custom", false},
		{"http://otel:4318", "otel:4318", "/v1/traces", true},
		{"otel:4318", "otel:4318", "/v1/traces", true},
	}
	for _, tt := range tests {
		endpoint, path, insecure := exporterTarget(tt.raw)
		assert.Equal(t, tt.endpoint, endpoint, tt.raw)
		assert.Equal(t, tt.path, path, tt.raw)
		assert.Equal(t, tt.insecure, insecure, tt.raw)
	}
}

func TestRecordCallOutcomes(t *testing.T) {
	ok := CollaboratorCalls.WithLabelValues("backend", "telemetryTest", "ok")
	failed := CollaboratorCalls.WithLabelValues("backend", "telemetryTest", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordCall("backend", "telemetryTest", nil, 10*time.Millisecond)
	RecordCall("backend", "telemetryTest", errors.New("x"), time.Millisecond)
	RecordCall("backend", "telemetryTest", nil, time.Millisecond)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestSetConnectionStatusIsExclusive(t *testing.T) {
	SetConnectionStatus("connecting")
	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectionStatus.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectionStatus.WithLabelValues("connected")))

	SetConnectionStatus("connected")
	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectionStatus.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectionStatus.WithLabelValues("connected")))
}
