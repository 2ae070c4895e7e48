package domebackends

import (
	"context"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
)

func init() {
	opsconfig.RegisterDomeBackend("simulator", newSimulatorDome)
}

// simulatorDome models a roll-off-roof with no physical hardware at all, for config files exercised in development and
// in tests without a live Alpaca server. Every movement takes moveDuration
// to complete, reported as DomeMoving in between.
type simulatorDome struct {
	moveDuration  time.Duration
	reopenAllowed bool

	mu        sync.Mutex
	status    opsmodel.DomeStatus
	moveUntil time.Time
	target    opsmodel.DomeStatus
}

func newSimulatorDome(params map[string]interface{}) (opsmodel.DomeBackend, error) {
	moveDuration := 5 * time.Second
	if s, ok := params["move_seconds"].(float64); ok && s > 0 {
		moveDuration = time.Duration(s * float64(time.Second))
	}
	reopenAllowed, _ := params["reopen_after_weather_alert"].(bool)
	return &simulatorDome{
		moveDuration:  moveDuration,
		reopenAllowed: reopenAllowed,
		status:        opsmodel.DomeClosed,
	}, nil
}

func (d *simulatorDome) QueryStatus(ctx context.Context) (opsmodel.DomeStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == opsmodel.DomeMoving && time.Now().UTC().After(d.moveUntil) {
		d.status = d.target
	}
	return d.status, nil
}

func (d *simulatorDome) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = opsmodel.DomeMoving
	d.target = opsmodel.DomeOpen
	d.moveUntil = time.Now().UTC().Add(d.moveDuration)
	return nil
}

func (d *simulatorDome) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = opsmodel.DomeMoving
	d.target = opsmodel.DomeClosed
	d.moveUntil = time.Now().UTC().Add(d.moveDuration)
	return nil
}

func (d *simulatorDome) SetAutomatic(ctx context.Context) error { return nil }
func (d *simulatorDome) SetManual(ctx context.Context) error    { return nil }

func (d *simulatorDome) PingHeartbeat(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (d *simulatorDome) ReopenAfterWeatherAlert() bool {
	return d.reopenAllowed
}
