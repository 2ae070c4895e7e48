// Package telescope implements TelescopeController: the state machine
// governing telescope mode and a worker goroutine that cooperatively
// executes a queue of Actions.
package telescope

import (
	"context"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/obshealth"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// DomeStatusSource reports whether the dome is currently open, used for the
// dome-coupling notification forwarded to the running action.
type DomeStatusSource interface {
	IsOpen() bool
}

// EnvironmentSafeSource is the fallback dome-open signal used when no dome
// is configured for the site (portable/heliostat-style deployments).
type EnvironmentSafeSource interface {
	Safe() bool
}

// Controller owns the telescope's mode state machine and action queue.
type Controller struct {
	parkFactory opsmodel.ActionFactory
	dome        DomeStatusSource
	environment EnvironmentSafeSource
	logger      *zap.Logger

	wake chan struct{}

	mu            sync.Mutex
	mode          opsmodel.OperationsMode
	requestedMode opsmodel.OperationsMode
	statusUpdated time.Time
	queue         []opsmodel.Action
	active        opsmodel.Action
	activeIsPark  bool
	idle          bool
	domeWasOpen   bool
}

// New constructs a Controller. dome may be nil (no dome configured), in
// which case environment's safe flag stands in for dome-open.
func New(parkFactory opsmodel.ActionFactory, dome DomeStatusSource, environment EnvironmentSafeSource, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	return &Controller{
		parkFactory:   parkFactory,
		dome:          dome,
		environment:   environment,
		logger:        logger.With(zap.String("component", "telescope")),
		wake:          make(chan struct{}, 1),
		mode:          opsmodel.ModeManual,
		requestedMode: opsmodel.ModeManual,
		statusUpdated: now,
		idle:          true,
	}
}

func (c *Controller) shortcutWait() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) domeIsOpen() bool {
	if c.dome != nil {
		return c.dome.IsOpen()
	}
	if c.environment != nil {
		return c.environment.Safe()
	}
	return false
}

// Run drives the worker loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, loopDelay time.Duration) {
	for {
		domeOpen := c.domeIsOpen()

		c.mu.Lock()
		skipWait := c.step(ctx, domeOpen)
		c.domeWasOpen = domeOpen
		c.mu.Unlock()

		if skipWait {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		case <-time.After(loopDelay):
		}
	}
}

// step runs one iteration of the worker body while holding c.mu, matching
// the reference's run loop. Returns true if the loop should continue
// immediately without waiting for the next tick or wake signal.
func (c *Controller) step(ctx context.Context, domeOpen bool) bool {
	autoFailure := c.mode == opsmodel.ModeError && c.requestedMode == opsmodel.ModeAutomatic

	if c.requestedMode != c.mode && !autoFailure {
		c.logger.Info("changing mode", zap.String("from", c.mode.String()), zap.String("to", c.requestedMode.String()))

		switch c.requestedMode {
		case opsmodel.ModeManual:
			if len(c.queue) > 0 {
				if c.active != nil {
					c.active.Abort()
				}
				c.logger.Info("aborting action queue")
				c.queue = nil
			} else if c.active == nil {
				c.mode = opsmodel.ModeManual
			}
		case opsmodel.ModeAutomatic:
			c.mode = opsmodel.ModeAutomatic
		}
	}

	c.statusUpdated = time.Now().UTC()

	if c.mode == opsmodel.ModeManual {
		return false
	}

	if c.active == nil {
		if len(c.queue) > 0 {
			c.idle = false
			c.active = c.queue[0]
			c.queue = c.queue[1:]
			c.activeIsPark = false
		} else if !c.idle && c.requestedMode != opsmodel.ModeManual && c.parkFactory != nil {
			action, err := c.parkFactory.NewAction(nil)
			if err == nil {
				c.active = action
				c.activeIsPark = true
			}
		}
		if c.active != nil {
			c.active.Start(ctx, domeOpen)
		}
	}

	if c.active == nil {
		return false
	}

	state := c.active.State()
	if state == opsmodel.ActionError {
		c.logger.Error("action failed", zap.String("action", c.active.Name()))
		c.logger.Info("aborting action queue and parking telescope")
		c.queue = nil
		c.mode = opsmodel.ModeError
	}

	if state == opsmodel.ActionPending || state == opsmodel.ActionRunning {
		if domeOpen != c.domeWasOpen {
			c.active.DomeIsOpenChanged(domeOpen)
		}
		return false
	}

	if c.activeIsPark {
		c.idle = true
	}
	c.active = nil
	c.activeIsPark = false
	return true
}

// Status returns a snapshot of the telescope's current state.
func (c *Controller) Status() opsmodel.TelescopeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []opsmodel.ScheduleEntry
	if c.active != nil {
		entries = append(entries, opsmodel.ScheduleEntry{
			Name:  c.active.Name(),
			Tasks: c.active.TaskLabels(),
			State: c.active.State(),
		})
	}
	for _, a := range c.queue {
		entries = append(entries, opsmodel.ScheduleEntry{
			Name:  a.Name(),
			Tasks: a.TaskLabels(),
			State: a.State(),
		})
	}

	return opsmodel.TelescopeState{
		Mode:          c.mode,
		RequestedMode: c.requestedMode,
		StatusUpdated: c.statusUpdated,
		Schedule:      entries,
	}
}

// RequestMode requests a telescope mode change (Automatic/Manual).
func (c *Controller) RequestMode(mode opsmodel.OperationsMode) {
	c.mu.Lock()
	c.requestedMode = mode
	c.mu.Unlock()
	c.shortcutWait()
}

// QueueActions appends actions to the queue. Returns false if the telescope
// is not under automatic control.
func (c *Controller) QueueActions(actions []opsmodel.Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != opsmodel.ModeAutomatic {
		return false
	}
	c.queue = append(c.queue, actions...)
	c.shortcutWait()
	return true
}

// NotifyProcessedFrame forwards a pipeline frame-processed notification to
// the running action, if any.
func (c *Controller) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.State() == opsmodel.ActionRunning {
		return c.active.NotifyProcessedFrame(headers)
	}
	return nil
}

// NotifyGuideProfile forwards a pipeline guide-profile notification to the
// running action, if any.
func (c *Controller) NotifyGuideProfile(headers map[string]interface{}, x, y []float64) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.State() == opsmodel.ActionRunning {
		return c.active.NotifyGuideProfile(headers, x, y)
	}
	return nil
}

// Abort cancels the active action and drains the queue. Idempotent.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	if c.active != nil {
		c.active.Abort()
	}
}

// Check implements obshealth.Checker.
func (c *Controller) Check(ctx context.Context) *obshealth.Result {
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()
	return &obshealth.Result{
		Component: "telescope",
		Status:    obshealth.ModeStatus(mode),
		Message:   "telescope " + mode.String(),
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{"mode": mode.String()},
	}
}

func (c *Controller) Name() string { return "telescope" }
