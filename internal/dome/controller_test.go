package dome

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu             sync.Mutex
	status         opsmodel.DomeStatus
	openCalls      int
	closeCalls     int
	heartbeats     int
	queryErr       error
	reopenAllowed  bool
	settleTicks    int // if >0, Open/Close reports Moving for this many QueryStatus calls before settling
	moving         bool
	movingTarget   opsmodel.DomeStatus
	ticksRemaining int
}

func (f *fakeBackend) QueryStatus(ctx context.Context) (opsmodel.DomeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moving {
		if f.ticksRemaining <= 0 {
			f.status = f.movingTarget
			f.moving = false
		} else {
			f.ticksRemaining--
		}
	}
	return f.status, f.queryErr
}

func (f *fakeBackend) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if f.moving && f.movingTarget == opsmodel.DomeOpen {
		return nil
	}
	if f.settleTicks > 0 {
		f.status, f.moving, f.movingTarget, f.ticksRemaining = opsmodel.DomeMoving, true, opsmodel.DomeOpen, f.settleTicks
		return nil
	}
	f.status = opsmodel.DomeOpen
	return nil
}

func (f *fakeBackend) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.moving && f.movingTarget == opsmodel.DomeClosed {
		return nil
	}
	if f.settleTicks > 0 {
		f.status, f.moving, f.movingTarget, f.ticksRemaining = opsmodel.DomeMoving, true, opsmodel.DomeClosed, f.settleTicks
		return nil
	}
	f.status = opsmodel.DomeClosed
	return nil
}

func (f *fakeBackend) SetAutomatic(ctx context.Context) error { return nil }
func (f *fakeBackend) SetManual(ctx context.Context) error    { return nil }

func (f *fakeBackend) PingHeartbeat(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeBackend) ReopenAfterWeatherAlert() bool { return f.reopenAllowed }

func newTestController(backend *fakeBackend) *Controller {
	cfg := &opsconfig.DomeConfig{
		OpenTimeout:           time.Minute,
		CloseTimeout:          time.Minute,
		MovementTimeout:       time.Minute,
		HeartbeatOpenTimeout:  30 * time.Second,
		HeartbeatCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:      time.Minute,
	}
	return New(cfg, backend, nil)
}

func TestNewControllerOfflineWithoutBackend(t *testing.T) {
	c := New(&opsconfig.DomeConfig{}, nil, nil)
	assert.Equal(t, opsmodel.ModeOffline, c.Status().Mode)
	assert.Equal(t, opsmodel.Failed, c.SetMode(context.Background(), opsmodel.ModeAutomatic))
}

func TestSetModeAutomaticThenWindowOpensAndCloses(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeClosed}
	c := newTestController(backend)

	status := c.SetMode(context.Background(), opsmodel.ModeAutomatic)
	require.Equal(t, opsmodel.Succeeded, status)
	assert.Equal(t, opsmodel.ModeAutomatic, c.Status().Mode)

	now := time.Now().UTC()
	require.Equal(t, opsmodel.Succeeded, c.SetWindow(now.Add(-time.Minute), now.Add(time.Hour)))

	c.NotifyEnvironment(opsmodel.EnvironmentSnapshot{Safe: true, Updated: now.Add(-2 * time.Minute)})
	c.Tick(context.Background())

	assert.Equal(t, 1, backend.openCalls)
	assert.Equal(t, opsmodel.DomeOpen, c.Status().Status)

	require.Equal(t, opsmodel.Succeeded, c.ClearWindow())
	c.Tick(context.Background())
	assert.Equal(t, 1, backend.closeCalls)
}

func TestTickClosesWhenEnvironmentUnsafeAndNoReopen(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeClosed, reopenAllowed: false}
	c := newTestController(backend)
	require.Equal(t, opsmodel.Succeeded, c.SetMode(context.Background(), opsmodel.ModeAutomatic))

	now := time.Now().UTC()
	require.Equal(t, opsmodel.Succeeded, c.SetWindow(now.Add(-time.Hour), now.Add(time.Hour)))
	c.NotifyEnvironment(opsmodel.EnvironmentSnapshot{Safe: true, Updated: now.Add(-2 * time.Hour)})
	c.Tick(context.Background())
	require.Equal(t, 1, backend.openCalls)

	c.NotifyEnvironment(opsmodel.EnvironmentSnapshot{Safe: false, Updated: now})
	c.Tick(context.Background())

	assert.Equal(t, 1, backend.closeCalls)
	assert.True(t, c.Status().RequestedOpenAt.IsZero(), "window should be cancelled once weather is unsafe with no reopen support")
}

func TestSetModeManualRequiresDomeClosedFirst(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeOpen}
	c := newTestController(backend)
	require.Equal(t, opsmodel.Succeeded, c.SetMode(context.Background(), opsmodel.ModeAutomatic))

	status := c.SetMode(context.Background(), opsmodel.ModeManual)
	assert.Equal(t, opsmodel.DomeNotClosed, status)
	assert.Equal(t, 1, backend.closeCalls)
	assert.Equal(t, opsmodel.ModeAutomatic, c.Status().Mode, "mode stays Automatic until the dome reports Closed")

	c.Tick(context.Background())
	assert.Equal(t, opsmodel.ModeManual, c.Status().Mode)
}

func TestTickEntersErrorStateOnQueryFailure(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeClosed, queryErr: errors.New("comms timeout")}
	c := newTestController(backend)
	require.Equal(t, opsmodel.Succeeded, c.SetMode(context.Background(), opsmodel.ModeAutomatic))

	c.Tick(context.Background())
	assert.Equal(t, opsmodel.ModeError, c.Status().Mode)

	status := c.SetMode(context.Background(), opsmodel.ModeManual)
	assert.Equal(t, opsmodel.InErrorState, status)
}

func TestSetModeManualConvergesWhileDomeReportsMovingDuringClose(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeOpen, settleTicks: 2}
	c := newTestController(backend)
	require.Equal(t, opsmodel.Succeeded, c.SetMode(context.Background(), opsmodel.ModeAutomatic))

	now := time.Now().UTC()
	require.Equal(t, opsmodel.Succeeded, c.SetWindow(now.Add(-time.Hour), now.Add(time.Hour)))
	c.NotifyEnvironment(opsmodel.EnvironmentSnapshot{Safe: true, Updated: now.Add(-2 * time.Hour)})

	status := c.SetMode(context.Background(), opsmodel.ModeManual)
	require.Equal(t, opsmodel.DomeNotClosed, status)

	// The dome takes two ticks to settle to Closed; a still-open window with
	// safe weather must not reopen it mid-transition.
	c.Tick(context.Background())
	assert.Equal(t, opsmodel.DomeMoving, c.Status().Status)
	assert.Equal(t, opsmodel.ModeAutomatic, c.Status().Mode)

	c.Tick(context.Background())
	assert.Equal(t, opsmodel.ModeManual, c.Status().Mode)
	assert.Equal(t, opsmodel.DomeClosed, c.Status().Status)
	assert.Equal(t, 0, backend.openCalls, "pending manual switch must not be interrupted by a reopen")
}

func TestSetWindowRequiresAutomaticMode(t *testing.T) {
	backend := &fakeBackend{status: opsmodel.DomeClosed}
	c := newTestController(backend)
	now := time.Now().UTC()
	assert.Equal(t, opsmodel.DomeNotAutomatic, c.SetWindow(now, now.Add(time.Hour)))
}
