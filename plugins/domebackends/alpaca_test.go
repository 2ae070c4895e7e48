package domebackends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAlpacaServer(t *testing.T, values map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"ErrorNumber": 0, "ErrorMessage": ""})
			return
		}
		method := lastSegment(r.URL.Path)
		value, ok := values[method]
		if !ok {
			value = false
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"ErrorNumber": 0, "ErrorMessage": "", "Value": value})
	}))
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func TestAlpacaDomeQueryStatusMapsShutterStates(t *testing.T) {
	tests := []struct {
		shutterState float64
		want         opsmodel.DomeStatus
	}{
		{0, opsmodel.DomeOpen},
		{1, opsmodel.DomeClosed},
		{2, opsmodel.DomeMoving},
		{3, opsmodel.DomeMoving},
	}
	for _, tc := range tests {
		server := fakeAlpacaServer(t, map[string]interface{}{
			"connected":     true,
			"shutterstatus": tc.shutterState,
		})
		backend, err := newAlpacaDome(map[string]interface{}{"server_url": server.URL})
		require.NoError(t, err)

		status, err := backend.QueryStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.want, status)
		server.Close()
	}
}

func TestAlpacaDomeQueryStatusFailsWhenNotConnected(t *testing.T) {
	server := fakeAlpacaServer(t, map[string]interface{}{"connected": false})
	defer server.Close()

	backend, err := newAlpacaDome(map[string]interface{}{"server_url": server.URL})
	require.NoError(t, err)

	_, err = backend.QueryStatus(context.Background())
	assert.Error(t, err)
}

func TestNewAlpacaDomeRequiresServerURL(t *testing.T) {
	_, err := newAlpacaDome(map[string]interface{}{})
	assert.Error(t, err)
}

func TestAlpacaDomeOpenAndCloseIssuePutRequests(t *testing.T) {
	server := fakeAlpacaServer(t, map[string]interface{}{"connected": true})
	defer server.Close()

	backend, err := newAlpacaDome(map[string]interface{}{"server_url": server.URL})
	require.NoError(t, err)

	assert.NoError(t, backend.Open(context.Background()))
	assert.NoError(t, backend.Close(context.Background()))
}
