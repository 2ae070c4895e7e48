package envbackends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
)

// HTTPFeed polls a JSON HTTP endpoint shaped as a two-level object:
//
//	{"weather": {"wind_speed": 5.2, "wind_speed_unsafe": false}, ...}
//
// Top-level keys are sensor names, second-level keys are parameters; a
// "<parameter>_unsafe" boolean sibling, if present, sets that value's
// Unsafe flag. This is the generic "house weather station" shape most
// sites without an Alpaca-speaking sensor end up exposing.
type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed builds an EnvironmentBackend polling url.
func NewHTTPFeed(url string) *HTTPFeed {
	return &HTTPFeed{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (f *HTTPFeed) Poll(ctx context.Context) (map[string]opsmodel.RawSensorValue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building environment feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching environment feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("environment feed returned status %d", resp.StatusCode)
	}

	var doc map[string]map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding environment feed: %w", err)
	}

	now := time.Now().UTC()
	out := make(map[string]opsmodel.RawSensorValue)
	for sensor, fields := range doc {
		for param, value := range fields {
			if strings.HasSuffix(param, "_unsafe") {
				continue
			}
			key := sensor + "." + param
			unsafe, _ := fields[param+"_unsafe"].(bool)
			out[key] = opsmodel.RawSensorValue{Value: value, Unsafe: unsafe, Updated: now}
		}
	}
	return out, nil
}
