package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigskies-observatory/opsd/internal/engines/ascom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeMountServer(t *testing.T, values map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			json.NewEncoder(w).Encode(map[string]interface{}{"ErrorNumber": 0})
			return
		}
		method := r.URL.Path
		for i := len(method) - 1; i >= 0; i-- {
			if method[i] == '/' {
				method = method[i+1:]
				break
			}
		}
		value, ok := values[method]
		if !ok {
			value = false
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ErrorNumber": 0, "Value": value})
	}))
}

func TestAlpacaMountStatusReflectsDeviceState(t *testing.T) {
	server := fakeMountServer(t, map[string]interface{}{
		"connected": true,
		"tracking":  true,
		"slewing":   false,
		"atpark":    false,
	})
	defer server.Close()

	mount := NewAlpacaMount(ascom.NewClient(zap.NewNop()), server.URL, 0)
	status, err := mount.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.True(t, status.Tracking)
	assert.False(t, status.AtPark)
}

func TestAlpacaMountParkAndTrackingIssueCommands(t *testing.T) {
	server := fakeMountServer(t, map[string]interface{}{"connected": true})
	defer server.Close()

	mount := NewAlpacaMount(ascom.NewClient(zap.NewNop()), server.URL, 0)
	assert.NoError(t, mount.Park(context.Background()))
	assert.NoError(t, mount.SetTracking(context.Background(), false))
	assert.NoError(t, mount.AbortSlew(context.Background()))
}
