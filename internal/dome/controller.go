// Package dome implements DomeController: the state machine governing dome
// mode, an optional scheduled open window, and heartbeat-based backend
// safety commands.
package dome

import (
	"context"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/obshealth"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// Controller owns the dome's mode/window/heartbeat state machine. Mutating
// requests (SetMode/SetWindow/ClearWindow) arrive from the RPC dispatcher,
// already serialized by the daemon's single command lock; Tick is driven by
// the daemon's tick goroutine right after each environment poll. Both sides
// synchronize through mu, which also guards the concurrent Status() reader.
type Controller struct {
	cfg     *opsconfig.DomeConfig
	backend opsmodel.DomeBackend
	logger  *zap.Logger

	mu               sync.RWMutex
	mode             opsmodel.OperationsMode
	modeUpdated      time.Time
	status           opsmodel.DomeStatus
	statusUpdated    time.Time
	openAt           time.Time
	closeAt          time.Time
	pendingManual    bool
	lastHeartbeatAck time.Time

	environmentSafe     bool
	environmentSafeDate time.Time
}

// New constructs a Controller. cfg/backend may both be nil, in which case
// the dome is permanently Offline and rejects every mutating request.
func New(cfg *opsconfig.DomeConfig, backend opsmodel.DomeBackend, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opsmodel.ModeManual
	if backend == nil {
		mode = opsmodel.ModeOffline
	}
	now := time.Now().UTC()
	return &Controller{
		cfg:                 cfg,
		backend:             backend,
		logger:              logger.With(zap.String("component", "dome")),
		mode:                mode,
		modeUpdated:         now,
		status:              opsmodel.DomeClosed,
		statusUpdated:       now,
		environmentSafeDate: time.Unix(0, 0).UTC(),
	}
}

// NotifyEnvironment is called by the daemon's tick goroutine immediately
// after each environment poll, so the dome's reconciliation on the very
// same tick sees the freshly published verdict (§5 ordering guarantee).
func (c *Controller) NotifyEnvironment(snapshot opsmodel.EnvironmentSnapshot) {
	c.mu.Lock()
	c.environmentSafe = snapshot.Safe
	c.environmentSafeDate = snapshot.Updated
	c.mu.Unlock()
}

// SetMode requests a dome mode change (Automatic/Manual).
func (c *Controller) SetMode(ctx context.Context, mode opsmodel.OperationsMode) opsmodel.CommandStatus {
	if c.backend == nil {
		return opsmodel.Failed
	}

	c.mu.RLock()
	current := c.mode
	status := c.status
	c.mu.RUnlock()

	if mode == current {
		return opsmodel.Succeeded
	}
	// Error can only be left by an explicit Automatic request.
	if current == opsmodel.ModeError && mode != opsmodel.ModeAutomatic {
		return opsmodel.InErrorState
	}

	switch mode {
	case opsmodel.ModeAutomatic:
		if err := c.backend.SetAutomatic(ctx); err != nil {
			c.setError(err)
			return opsmodel.Failed
		}
		c.mu.Lock()
		c.mode = opsmodel.ModeAutomatic
		c.modeUpdated = time.Now().UTC()
		c.pendingManual = false
		c.mu.Unlock()
		c.logger.Info("dome switched to automatic")
		return opsmodel.Succeeded

	case opsmodel.ModeManual:
		if s, err := c.backend.QueryStatus(ctx); err == nil {
			status = s
			c.mu.Lock()
			c.status = s
			c.statusUpdated = time.Now().UTC()
			c.mu.Unlock()
		}
		if status != opsmodel.DomeClosed {
			if err := c.backend.Close(ctx); err != nil {
				c.setError(err)
				return opsmodel.Failed
			}
			c.mu.Lock()
			c.pendingManual = true
			c.mu.Unlock()
			return opsmodel.DomeNotClosed
		}
		if err := c.backend.SetManual(ctx); err != nil {
			c.setError(err)
			return opsmodel.Failed
		}
		c.mu.Lock()
		c.mode = opsmodel.ModeManual
		c.modeUpdated = time.Now().UTC()
		c.openAt, c.closeAt = time.Time{}, time.Time{}
		c.pendingManual = false
		c.mu.Unlock()
		c.logger.Info("dome switched to manual")
		return opsmodel.Succeeded
	}

	return opsmodel.Failed
}

// SetWindow schedules an automatic open window. Fails if the dome is not Automatic.
func (c *Controller) SetWindow(openAt, closeAt time.Time) opsmodel.CommandStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != opsmodel.ModeAutomatic {
		return opsmodel.DomeNotAutomatic
	}
	c.openAt, c.closeAt = openAt, closeAt
	c.logger.Info("scheduled dome window", zap.Time("open_at", openAt), zap.Time("close_at", closeAt))
	return opsmodel.Succeeded
}

// ClearWindow clears any scheduled open window.
func (c *Controller) ClearWindow() opsmodel.CommandStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != opsmodel.ModeAutomatic {
		return opsmodel.DomeNotAutomatic
	}
	c.openAt, c.closeAt = time.Time{}, time.Time{}
	c.logger.Info("cleared dome window")
	return opsmodel.Succeeded
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.mode = opsmodel.ModeError
	c.modeUpdated = time.Now().UTC()
	c.openAt, c.closeAt = time.Time{}, time.Time{}
	c.pendingManual = false
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("dome entered error state", zap.Error(err))
	} else {
		c.logger.Error("dome entered error state")
	}
}

// Tick reconciles the dome's actual status against its intended state:
// closes/opens as needed, retires expired or weather-cancelled windows, and
// sends the heartbeat. It is a no-op unless the dome is in Automatic mode.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.RLock()
	mode := c.mode
	c.mu.RUnlock()
	if mode != opsmodel.ModeAutomatic {
		return
	}
	if c.backend == nil {
		return
	}

	now := time.Now().UTC()

	c.mu.Lock()
	hasWindow := !c.openAt.IsZero() && !c.closeAt.IsZero()
	if hasWindow && now.After(c.closeAt) {
		c.openAt, c.closeAt = time.Time{}, time.Time{}
		hasWindow = false
	}
	reopenAllowed := c.backend.ReopenAfterWeatherAlert()
	if hasWindow && !c.environmentSafe && !reopenAllowed && c.environmentSafeDate.After(c.openAt) {
		c.openAt, c.closeAt = time.Time{}, time.Time{}
		hasWindow = false
	}
	shouldBeOpen := hasWindow &&
		now.After(c.openAt) && now.Before(c.closeAt) &&
		c.environmentSafe
	pendingManual := c.pendingManual
	if pendingManual {
		shouldBeOpen = false
	}
	c.mu.Unlock()

	status, err := c.backend.QueryStatus(ctx)
	if err != nil {
		c.setError(err)
		return
	}
	c.mu.Lock()
	c.status = status
	c.statusUpdated = now
	c.mu.Unlock()

	if pendingManual && status == opsmodel.DomeClosed {
		if err := c.backend.SetManual(ctx); err == nil {
			c.mu.Lock()
			c.mode = opsmodel.ModeManual
			c.modeUpdated = now
			c.pendingManual = false
			c.mu.Unlock()
			c.logger.Info("dome finished closing, switched to manual")
		}
		return
	}

	if status == opsmodel.DomeTimeout || status == opsmodel.DomeHardwareError {
		c.setError(nil)
		return
	}

	var actErr error
	refreshed := false
	switch {
	case (status == opsmodel.DomeOpen || status == opsmodel.DomeMoving) && !shouldBeOpen:
		actErr = c.backend.Close(ctx)
		refreshed = true
	case (status == opsmodel.DomeClosed || status == opsmodel.DomeMoving) && shouldBeOpen:
		actErr = c.backend.Open(ctx)
		refreshed = true
	}
	if actErr != nil {
		c.setError(actErr)
		return
	}

	if refreshed {
		if s, err := c.backend.QueryStatus(ctx); err == nil {
			c.mu.Lock()
			c.status = s
			c.statusUpdated = time.Now().UTC()
			status = s
			c.mu.Unlock()
		}
	}

	hbTimeout := c.cfg.HeartbeatCloseTimeout
	switch {
	case status == opsmodel.DomeMoving:
		hbTimeout = c.cfg.HeartbeatTimeout
	case shouldBeOpen:
		hbTimeout = c.cfg.HeartbeatOpenTimeout
	}
	if err := c.backend.PingHeartbeat(ctx, hbTimeout); err != nil {
		c.setError(err)
		return
	}
	c.mu.Lock()
	c.lastHeartbeatAck = time.Now().UTC()
	c.mu.Unlock()
}

// Status returns a snapshot of the dome's current state.
func (c *Controller) Status() opsmodel.DomeState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return opsmodel.DomeState{
		Mode:             c.mode,
		RequestedMode:    c.mode,
		Status:           c.status,
		StatusUpdated:    c.statusUpdated,
		ModeUpdated:      c.modeUpdated,
		RequestedOpenAt:  c.openAt,
		RequestedCloseAt: c.closeAt,
		LastHeartbeatAck: c.lastHeartbeatAck,
	}
}

// IsOpen reports whether the dome is currently reporting Open, used by
// TelescopeController's dome-coupling logic. A dome under manual control is
// assumed to be correctly set by its operator.
func (c *Controller) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == opsmodel.DomeOpen || c.mode == opsmodel.ModeManual
}

// Check implements obshealth.Checker.
func (c *Controller) Check(ctx context.Context) *obshealth.Result {
	c.mu.RLock()
	mode, status := c.mode, c.status
	c.mu.RUnlock()
	return &obshealth.Result{
		Component: "dome",
		Status:    obshealth.ModeStatus(mode),
		Message:   "dome " + mode.String() + ", status " + status.String(),
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{"mode": mode.String(), "status": status.String()},
	}
}

func (c *Controller) Name() string { return "dome" }
