// Package daemon implements OperationsDaemon: it composes the environment,
// dome, and telescope controllers, drives the tick thread, and enforces the
// single command-lock discipline in front of the RPC surface.
package daemon

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/bigskies-observatory/opsd/internal/dome"
	"github.com/bigskies-observatory/opsd/internal/environment"
	"github.com/bigskies-observatory/opsd/internal/obshealth"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/bigskies-observatory/opsd/internal/schedule"
	"github.com/bigskies-observatory/opsd/internal/telescope"
	"go.uber.org/zap"
)

// EventPublisher is the narrow telemetry surface the daemon drives; nil-safe.
type EventPublisher interface {
	PublishModeChange(component, mode string)
	PublishScheduleCommit(night string, ok bool)
}

// AuditLog is the narrow audit surface the daemon drives; nil-safe.
type AuditLog interface {
	RecordCommand(ctx context.Context, method, callerIP string, result opsmodel.CommandStatus)
	RecordTransition(ctx context.Context, component, fromMode, toMode string)
}

// Daemon is the top-level observatory controller. A single instance owns one
// Config and the full controller set for the process lifetime.
type Daemon struct {
	cfg    *opsconfig.Config
	logger *zap.Logger

	env   *environment.Watcher
	domeC *dome.Controller
	telC  *telescope.Controller

	health *obshealth.Engine

	telemetry EventPublisher
	audit     AuditLog

	// locked implements the single try-lock guarding every mutating RPC; 0
	// unlocked, 1 locked. Checked with a CompareAndSwap, never blocked on.
	locked int32
}

// New constructs a Daemon from its fully-resolved dependencies. envBackend
// must be non-nil; domeBackend may be nil (no dome configured for this
// site), in which case the telescope worker uses the environment's safe
// flag as its dome-open signal. parkFactory is the Action constructor used
// by the telescope worker's auto-park-on-idle behaviour.
func New(
	cfg *opsconfig.Config,
	envBackend opsmodel.EnvironmentBackend,
	domeBackend opsmodel.DomeBackend,
	parkFactory opsmodel.ActionFactory,
	telemetryPub EventPublisher,
	auditLog AuditLog,
	logger *zap.Logger,
) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}

	env := environment.New(cfg.EnvironmentConditions, envBackend, logger)
	domeC := dome.New(cfg.Dome, domeBackend, logger)
	var domeSource telescope.DomeStatusSource
	if domeBackend != nil {
		domeSource = domeC
	}
	telC := telescope.New(parkFactory, domeSource, env, logger)

	env.OnSnapshot(domeC.NotifyEnvironment)

	d := &Daemon{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "daemon")),
		env:       env,
		domeC:     domeC,
		telC:      telC,
		telemetry: telemetryPub,
		audit:     auditLog,
	}
	d.health = obshealth.NewEngine(env, domeC, telC)
	return d
}

// Run starts the tick thread (environment poll + dome reconciliation, via
// the OnSnapshot hook) and the telescope worker thread. It blocks until ctx
// is cancelled, which is also the shutdown signal for both goroutines.
func (d *Daemon) Run(ctx context.Context) {
	go d.runTick(ctx)
	d.telC.Run(ctx, d.cfg.LoopDelay)
}

func (d *Daemon) runTick(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.LoopDelay)
	defer ticker.Stop()

	d.env.Poll(ctx)
	d.domeC.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.env.Poll(ctx)
			d.domeC.Tick(ctx)
		}
	}
}

// tryLock is the daemon-wide single command lock: returns false immediately
// if another mutating command is already in progress. Never queues.
func (d *Daemon) tryLock() bool {
	return atomic.CompareAndSwapInt32(&d.locked, 0, 1)
}

func (d *Daemon) unlock() {
	atomic.StoreInt32(&d.locked, 0)
}

func (d *Daemon) recordCommand(ctx context.Context, method, callerIP string, result opsmodel.CommandStatus) {
	if d.audit != nil {
		d.audit.RecordCommand(ctx, method, callerIP, result)
	}
}

// Status builds the full status() RPC payload.
func (d *Daemon) Status() opsmodel.StatusPayload {
	payload := opsmodel.StatusPayload{
		Environment: d.env.Snapshot(),
		Telescope:   d.telC.Status(),
	}
	if d.cfg.Dome != nil {
		state := d.domeC.Status()
		payload.Dome = &state
	}
	return payload
}

// DomeControl implements dome_control(auto). Caller IP authorization is
// enforced by the HTTP layer before this is called.
func (d *Daemon) DomeControl(ctx context.Context, auto bool) opsmodel.CommandStatus {
	if !d.tryLock() {
		return opsmodel.Blocked
	}
	defer d.unlock()

	before := d.domeC.Status().Mode
	mode := opsmodel.ModeManual
	if auto {
		mode = opsmodel.ModeAutomatic
	}
	result := d.domeC.SetMode(ctx, mode)
	if result == opsmodel.Succeeded {
		if d.telemetry != nil {
			d.telemetry.PublishModeChange("dome", mode.String())
		}
		if d.audit != nil {
			d.audit.RecordTransition(ctx, "dome", before.String(), mode.String())
		}
	}
	return result
}

// TelControl implements tel_control(auto).
func (d *Daemon) TelControl(ctx context.Context, auto bool) opsmodel.CommandStatus {
	if !d.tryLock() {
		return opsmodel.Blocked
	}
	defer d.unlock()

	before := d.telC.Status().Mode
	mode := opsmodel.ModeManual
	if auto {
		mode = opsmodel.ModeAutomatic
	}
	d.telC.RequestMode(mode)
	if d.telemetry != nil {
		d.telemetry.PublishModeChange("telescope", mode.String())
	}
	if d.audit != nil {
		d.audit.RecordTransition(ctx, "telescope", before.String(), mode.String())
	}
	return opsmodel.Succeeded
}

// StopTelescope implements stop_telescope(): synchronous signal, asynchronous teardown.
func (d *Daemon) StopTelescope() opsmodel.CommandStatus {
	if !d.tryLock() {
		return opsmodel.Blocked
	}
	defer d.unlock()
	d.telC.Abort()
	return opsmodel.Succeeded
}

// ClearDomeWindow implements clear_dome_window().
func (d *Daemon) ClearDomeWindow() opsmodel.CommandStatus {
	if !d.tryLock() {
		return opsmodel.Blocked
	}
	defer d.unlock()
	return d.domeC.ClearWindow()
}

// ScheduleObservations implements schedule_observations(schedule): validates,
// then commits the dome window and the action queue atomically — if action
// queueing fails after the window is already set, the window is rolled back
// before returning.
func (d *Daemon) ScheduleObservations(ctx context.Context, raw []byte) (opsmodel.CommandStatus, []string) {
	if !d.tryLock() {
		return opsmodel.Blocked, nil
	}
	defer d.unlock()

	ok, errs := schedule.ValidateSchedule(raw, d.cfg, true)
	if !ok {
		d.publishScheduleCommit(raw, false)
		return opsmodel.InvalidSchedule, errs
	}

	window, err := schedule.ParseDomeWindow(raw, d.cfg)
	if err != nil {
		d.publishScheduleCommit(raw, false)
		return opsmodel.InvalidSchedule, []string{err.Error()}
	}

	now := time.Now().UTC()
	if window != nil && !now.Before(window.OpenAt) && now.Before(window.CloseAt) && !d.env.Snapshot().Safe {
		return opsmodel.EnvironmentNotSafe, nil
	}

	actions, err := schedule.ParseScheduleActions(raw, d.cfg)
	if err != nil {
		d.publishScheduleCommit(raw, false)
		return opsmodel.InvalidSchedule, []string{err.Error()}
	}

	var previousWindow opsmodel.DomeState
	hadDome := d.cfg.Dome != nil
	if hadDome {
		previousWindow = d.domeC.Status()
	}

	if window != nil {
		if result := d.domeC.SetWindow(window.OpenAt, window.CloseAt); result != opsmodel.Succeeded {
			return result, nil
		}
	}

	if len(actions) > 0 {
		if !d.telC.QueueActions(actions) {
			// Roll back the window commit: either clear it, or restore what
			// was there before, so a failed commit never leaves a partial one.
			if window != nil {
				if previousWindow.HasWindow() {
					d.domeC.SetWindow(previousWindow.RequestedOpenAt, previousWindow.RequestedCloseAt)
				} else {
					d.domeC.ClearWindow()
				}
			}
			d.publishScheduleCommit(raw, false)
			return opsmodel.TelescopeNotAutomatic, nil
		}
	}

	d.publishScheduleCommit(raw, true)
	return opsmodel.Succeeded, nil
}

func (d *Daemon) publishScheduleCommit(raw []byte, ok bool) {
	if d.telemetry == nil {
		return
	}
	var head struct {
		Night string `json:"night"`
	}
	_ = json.Unmarshal(raw, &head)
	d.telemetry.PublishScheduleCommit(head.Night, ok)
}

// NotifyProcessedFrame implements notify_processed_frame(headers). Pipeline
// calls are not subject to the command lock — they are read/forward-only
// and may run concurrently with a mutating command.
func (d *Daemon) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	return d.telC.NotifyProcessedFrame(headers)
}

// NotifyGuideProfile implements notify_guide_profiles(headers, x[], y[]).
func (d *Daemon) NotifyGuideProfile(headers map[string]interface{}, x, y []float64) map[string]interface{} {
	return d.telC.NotifyGuideProfile(headers, x, y)
}

// IsControlCaller reports whether addr is whitelisted for control-class RPCs.
func (d *Daemon) IsControlCaller(addr string) bool {
	return d.cfg.IsControlMachine(addr)
}

// IsPipelineCaller reports whether addr is whitelisted for pipeline notifications.
func (d *Daemon) IsPipelineCaller(addr string) bool {
	return d.cfg.IsPipelineMachine(addr)
}

// Health aggregates the health of every controller, used by the /health endpoint.
func (d *Daemon) Health(ctx context.Context) *obshealth.AggregatedResult {
	return d.health.CheckAll(ctx)
}
