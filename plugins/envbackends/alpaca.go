// Package envbackends implements opsmodel.EnvironmentBackend against
// concrete sensor sources. Unlike dome backends and action modules, the
// environment daemon a site uses is named only for logging (config's
// environment_daemon is descriptive, not a registry key) — cmd/opsd wires
// one of these constructors directly rather than resolving by name.
package envbackends

import (
	"context"
	"fmt"
	"time"

	"github.com/bigskies-observatory/opsd/internal/engines/ascom"
	"github.com/bigskies-observatory/opsd/internal/models"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// alpacaConditionsProperties names the ASCOM ObservingConditions properties
// this backend exposes, each published under the sensor key
// "observingconditions.<property>".
var alpacaConditionsProperties = []string{
	"cloudcover", "dewpoint", "humidity", "pressure", "rainrate",
	"skybrightness", "skyquality", "skytemperature", "starfwhm",
	"temperature", "winddirection", "windgust", "windspeed",
}

// AlpacaConditions polls an ASCOM Alpaca ObservingConditions device. It
// reports every property as safe (Unsafe always false): deciding unsafe
// thresholds per property is the site config's job, via the unsafe_key
// wiring a richer feed (see HTTPFeed) provides — this backend only exists
// for sites whose weather station already speaks Alpaca.
type AlpacaConditions struct {
	client *ascom.Client
	device *models.AlpacaDevice
}

// NewAlpacaConditions builds an EnvironmentBackend against the Alpaca
// ObservingConditions device at serverURL.
func NewAlpacaConditions(serverURL string, deviceNumber int, logger *zap.Logger) *AlpacaConditions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlpacaConditions{
		client: ascom.NewClient(logger),
		device: &models.AlpacaDevice{
			DeviceType:   "observingconditions",
			DeviceNumber: deviceNumber,
			ServerURL:    serverURL,
		},
	}
}

func (a *AlpacaConditions) Poll(ctx context.Context) (map[string]opsmodel.RawSensorValue, error) {
	connected, err := a.client.IsConnected(ctx, a.device)
	if err != nil {
		return nil, fmt.Errorf("checking observingconditions connection: %w", err)
	}
	if !connected {
		return nil, fmt.Errorf("observingconditions device is not connected")
	}

	now := time.Now().UTC()
	out := make(map[string]opsmodel.RawSensorValue, len(alpacaConditionsProperties))
	for _, prop := range alpacaConditionsProperties {
		resp, err := a.client.Get(ctx, a.device.ServerURL, a.device.DeviceType, a.device.DeviceNumber, prop)
		if err != nil {
			// ASCOM devices commonly leave unsupported sensors throwing
			// NotImplemented; skip rather than fail the whole poll.
			continue
		}
		value, ok := resp.Value.(float64)
		if !ok {
			continue
		}
		out["observingconditions."+prop] = opsmodel.RawSensorValue{Value: value, Updated: now}
	}
	return out, nil
}
