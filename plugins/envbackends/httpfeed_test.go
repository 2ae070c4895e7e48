package envbackends

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFeedPollParsesSensorsAndUnsafeFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"weather":{"wind_speed":5.2,"wind_speed_unsafe":false,"humidity":80,"humidity_unsafe":true}}`))
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL)
	values, err := feed.Poll(context.Background())
	require.NoError(t, err)

	require.Contains(t, values, "weather.wind_speed")
	assert.Equal(t, 5.2, values["weather.wind_speed"].Value)
	assert.False(t, values["weather.wind_speed"].Unsafe)

	require.Contains(t, values, "weather.humidity")
	assert.True(t, values["weather.humidity"].Unsafe)

	assert.NotContains(t, values, "weather.wind_speed_unsafe")
}

func TestHTTPFeedPollFailsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL)
	_, err := feed.Poll(context.Background())
	assert.Error(t, err)
}

func TestHTTPFeedPollFailsOnMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL)
	_, err := feed.Poll(context.Background())
	assert.Error(t, err)
}
