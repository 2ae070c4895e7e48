package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDomeBackend struct {
	mu            sync.Mutex
	status        opsmodel.DomeStatus
	queryErr      error
	openCalls     int
	closeCalls    int
	reopenAllowed bool
}

func (f *fakeDomeBackend) QueryStatus(ctx context.Context) (opsmodel.DomeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return 0, f.queryErr
	}
	return f.status, nil
}

func (f *fakeDomeBackend) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	f.status = opsmodel.DomeOpen
	return nil
}

func (f *fakeDomeBackend) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.status = opsmodel.DomeClosed
	return nil
}

func (f *fakeDomeBackend) SetAutomatic(ctx context.Context) error { return nil }
func (f *fakeDomeBackend) SetManual(ctx context.Context) error    { return nil }
func (f *fakeDomeBackend) PingHeartbeat(ctx context.Context, timeout time.Duration) error {
	return nil
}
func (f *fakeDomeBackend) ReopenAfterWeatherAlert() bool { return f.reopenAllowed }

type fakeEnvBackend struct {
	mu     sync.Mutex
	values map[string]opsmodel.RawSensorValue
}

func (f *fakeEnvBackend) Poll(ctx context.Context) (map[string]opsmodel.RawSensorValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]opsmodel.RawSensorValue, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

type fakeParkFactory struct{}

func (fakeParkFactory) NewAction(raw []byte) (opsmodel.Action, error) {
	return &fakeDaemonAction{name: "ParkTelescope"}, nil
}
func (fakeParkFactory) ValidateConfig(raw []byte) []string { return nil }

type fakeDaemonAction struct {
	name    string
	mu      sync.Mutex
	state   opsmodel.ActionState
	started bool
}

func (a *fakeDaemonAction) Name() string { return a.name }
func (a *fakeDaemonAction) Start(ctx context.Context, domeOpen bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = true
	a.state = opsmodel.ActionRunning
}
func (a *fakeDaemonAction) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = opsmodel.ActionAborted
}
func (a *fakeDaemonAction) State() opsmodel.ActionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
func (a *fakeDaemonAction) TaskLabels() []opsmodel.TaskLabel { return nil }
func (a *fakeDaemonAction) DomeIsOpenChanged(open bool)      {}
func (a *fakeDaemonAction) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	return nil
}
func (a *fakeDaemonAction) NotifyGuideProfile(headers map[string]interface{}, x, y []float64) map[string]interface{} {
	return nil
}

func testDaemonConfig() *opsconfig.Config {
	return &opsconfig.Config{
		Daemon:           "testsite",
		LoopDelay:        50 * time.Millisecond,
		SiteLatitude:     "28.7603",
		SiteLongitude:    "-17.8796",
		SunAltitudeLimit: -6,
		ActionsModule:    "testsite",
		Dome: &opsconfig.DomeConfig{
			Module:                "test-backend",
			OpenTimeout:           60 * time.Second,
			CloseTimeout:          60 * time.Second,
			MovementTimeout:       120 * time.Second,
			HeartbeatOpenTimeout:  30 * time.Second,
			HeartbeatCloseTimeout: 30 * time.Second,
			HeartbeatTimeout:      30 * time.Second,
		},
		ControlMachineIPs:  map[string]bool{"10.0.0.5": true},
		PipelineMachineIPs: map[string]bool{"10.0.0.9": true},
	}
}

func newTestDaemon() (*Daemon, *fakeDomeBackend, *fakeEnvBackend) {
	domeBackend := &fakeDomeBackend{status: opsmodel.DomeClosed}
	envBackend := &fakeEnvBackend{values: map[string]opsmodel.RawSensorValue{}}
	d := New(testDaemonConfig(), envBackend, domeBackend, fakeParkFactory{}, nil, nil, nil)
	return d, domeBackend, envBackend
}

func TestStatusReportsDomeWhenConfigured(t *testing.T) {
	d, _, _ := newTestDaemon()
	status := d.Status()
	require.NotNil(t, status.Dome)
	assert.Equal(t, opsmodel.ModeManual, status.Dome.Mode)
}

func TestDomeControlSwitchesToAutomatic(t *testing.T) {
	d, _, _ := newTestDaemon()
	result := d.DomeControl(context.Background(), true)
	assert.Equal(t, opsmodel.Succeeded, result)
	assert.Equal(t, opsmodel.ModeAutomatic, d.Status().Dome.Mode)
}

func TestTelControlSwitchesMode(t *testing.T) {
	d, _, _ := newTestDaemon()
	result := d.TelControl(context.Background(), true)
	assert.Equal(t, opsmodel.Succeeded, result)
	assert.Equal(t, opsmodel.ModeAutomatic, d.Status().Telescope.RequestedMode)
}

func TestScheduleObservationsRejectsInvalidSchedule(t *testing.T) {
	d, _, _ := newTestDaemon()
	status, errs := d.ScheduleObservations(context.Background(), []byte(`{}`))
	assert.Equal(t, opsmodel.InvalidSchedule, status)
	assert.NotEmpty(t, errs)
}

func TestScheduleObservationsRejectsPastNight(t *testing.T) {
	d, _, _ := newTestDaemon()
	d.DomeControl(context.Background(), true)

	raw := []byte(`{"night":"2020-01-01","dome":{"open":"auto","close":"auto"}}`)
	status, errs := d.ScheduleObservations(context.Background(), raw)
	assert.Equal(t, opsmodel.InvalidSchedule, status)
	assert.NotEmpty(t, errs)
	assert.False(t, d.Status().Dome.HasWindow(), "a rejected schedule must not leave a partial dome window")
}

func TestClearDomeWindowRequiresAutomaticMode(t *testing.T) {
	d, _, _ := newTestDaemon()
	status := d.ClearDomeWindow()
	assert.Equal(t, opsmodel.DomeNotAutomatic, status)
}

func TestStopTelescopeAbortsAndSucceeds(t *testing.T) {
	d, _, _ := newTestDaemon()
	status := d.StopTelescope()
	assert.Equal(t, opsmodel.Succeeded, status)
}

func TestIsControlAndPipelineCaller(t *testing.T) {
	d, _, _ := newTestDaemon()
	assert.True(t, d.IsControlCaller("10.0.0.5:1234"))
	assert.False(t, d.IsControlCaller("10.0.0.9:1234"))
	assert.True(t, d.IsPipelineCaller("10.0.0.9:1234"))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, _, _ := newTestDaemon()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
