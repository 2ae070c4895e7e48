// Package domebackends implements opsmodel.DomeBackend against concrete
// hardware/protocol clients, registered with opsconfig so a site's config
// file can select one by name under dome.module.
package domebackends

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/engines/ascom"
	"github.com/bigskies-observatory/opsd/internal/models"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

func init() {
	opsconfig.RegisterDomeBackend("ascom-alpaca", newAlpacaDome)
}

// alpacaDome drives one ASCOM Alpaca dome device (shutter + optional
// azimuth rotation), adapting ascom.Client's dome methods to DomeBackend.
// It tracks its own command-issued timestamp so QueryStatus can report
// DomeTimeout once a commanded movement runs longer than movementTimeout,
// the same sticky-until-acknowledged behaviour the controller expects.
type alpacaDome struct {
	client *ascom.Client
	device *models.AlpacaDevice
	logger *zap.Logger

	movementTimeout time.Duration
	reopenAllowed   bool

	mu          sync.Mutex
	moveStarted time.Time
	moving      bool
}

func newAlpacaDome(params map[string]interface{}) (opsmodel.DomeBackend, error) {
	serverURL, _ := params["server_url"].(string)
	if serverURL == "" {
		return nil, fmt.Errorf("ascom-alpaca dome backend requires params.server_url")
	}
	deviceNumber := 0
	if n, ok := params["device_number"].(float64); ok {
		deviceNumber = int(n)
	}
	movementTimeout := 120 * time.Second
	if s, ok := params["movement_timeout_seconds"].(float64); ok && s > 0 {
		movementTimeout = time.Duration(s) * time.Second
	}
	reopenAllowed, _ := params["reopen_after_weather_alert"].(bool)

	return &alpacaDome{
		client: ascom.NewClient(zap.NewNop()),
		device: &models.AlpacaDevice{
			DeviceType:   "dome",
			DeviceNumber: deviceNumber,
			ServerURL:    serverURL,
		},
		logger:          zap.NewNop(),
		movementTimeout: movementTimeout,
		reopenAllowed:   reopenAllowed,
	}, nil
}

func (d *alpacaDome) QueryStatus(ctx context.Context) (opsmodel.DomeStatus, error) {
	status, err := d.client.GetDomeStatus(ctx, d.device)
	if err != nil {
		return opsmodel.DomeHardwareError, fmt.Errorf("querying dome status: %w", err)
	}
	if !status.Connected {
		return opsmodel.DomeHardwareError, fmt.Errorf("dome device is not connected")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch status.ShutterStatus {
	case "Open":
		d.moving = false
		return opsmodel.DomeOpen, nil
	case "Closed":
		d.moving = false
		return opsmodel.DomeClosed, nil
	case "Opening", "Closing":
		if d.moving && time.Since(d.moveStarted) > d.movementTimeout {
			return opsmodel.DomeTimeout, nil
		}
		return opsmodel.DomeMoving, nil
	default:
		return opsmodel.DomeHardwareError, fmt.Errorf("unrecognised shutter status %q", status.ShutterStatus)
	}
}

func (d *alpacaDome) Open(ctx context.Context) error {
	d.mu.Lock()
	d.moving = true
	d.moveStarted = time.Now().UTC()
	d.mu.Unlock()
	return d.client.OpenDomeShutter(ctx, d.device)
}

func (d *alpacaDome) Close(ctx context.Context) error {
	d.mu.Lock()
	d.moving = true
	d.moveStarted = time.Now().UTC()
	d.mu.Unlock()
	return d.client.CloseDomeShutter(ctx, d.device)
}

// SetAutomatic/SetManual: this dome's own controller has no local-control
// distinction to toggle; the daemon's DomeController mode is authoritative.
func (d *alpacaDome) SetAutomatic(ctx context.Context) error { return nil }
func (d *alpacaDome) SetManual(ctx context.Context) error    { return nil }

// PingHeartbeat: Alpaca has no push heartbeat of its own. A successful
// Connected query is treated as equivalent liveness evidence; timeout is
// not used.
func (d *alpacaDome) PingHeartbeat(ctx context.Context, timeout time.Duration) error {
	_, err := d.client.IsConnected(ctx, d.device)
	return err
}

func (d *alpacaDome) ReopenAfterWeatherAlert() bool {
	return d.reopenAllowed
}
