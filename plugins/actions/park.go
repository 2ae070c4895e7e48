package actions

import (
	"context"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// ParkTelescope stops tracking and parks the mount. The telescope worker
// constructs it directly whenever the queue empties while under automatic
// control — it never appears in a user-submitted schedule.
type ParkTelescope struct {
	base
	mount MountDriver
}

// NewParkTelescope constructs the park action against the given mount.
func NewParkTelescope(mount MountDriver, logger *zap.Logger) *ParkTelescope {
	return &ParkTelescope{base: newBase("ParkTelescope", logger), mount: mount}
}

func (a *ParkTelescope) Start(ctx context.Context, domeOpen bool) {
	a.startOnce(func() { a.run(ctx) })
}

func (a *ParkTelescope) run(ctx context.Context) {
	a.setState(opsmodel.ActionRunning)

	if a.mount == nil {
		a.setState(opsmodel.ActionComplete)
		return
	}

	status, err := a.mount.Status(ctx)
	if err != nil {
		a.logger.Error("failed to query mount status", zap.Error(err))
		a.setState(opsmodel.ActionError)
		return
	}

	if status.AtPark {
		a.setState(opsmodel.ActionComplete)
		return
	}

	if status.Slewing {
		if err := a.mount.AbortSlew(ctx); err != nil {
			a.logger.Error("failed to abort slew before parking", zap.Error(err))
			a.setState(opsmodel.ActionError)
			return
		}
	}

	if status.Tracking {
		if err := a.mount.SetTracking(ctx, false); err != nil {
			a.logger.Error("failed to stop tracking before parking", zap.Error(err))
			a.setState(opsmodel.ActionError)
			return
		}
	}

	if err := a.mount.Park(ctx); err != nil {
		a.logger.Error("failed to park mount", zap.Error(err))
		a.setState(opsmodel.ActionError)
		return
	}

	for {
		if a.isAborted() {
			a.setState(opsmodel.ActionAborted)
			return
		}
		status, err := a.mount.Status(ctx)
		if err != nil {
			a.logger.Error("failed to poll mount status while parking", zap.Error(err))
			a.setState(opsmodel.ActionError)
			return
		}
		if status.AtPark {
			a.setState(opsmodel.ActionComplete)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-a.aborted:
			a.setState(opsmodel.ActionAborted)
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// parkFactory constructs ParkTelescope actions for one configured mount. It
// rejects every attempt to schedule the action directly: parking is an
// internal fallback the worker invokes itself, never a user-visible step.
type parkFactory struct {
	mount  MountDriver
	logger *zap.Logger
}

// NewParkFactory builds the opsmodel.ActionFactory wired as the telescope
// worker's auto-park constructor.
func NewParkFactory(mount MountDriver, logger *zap.Logger) opsmodel.ActionFactory {
	return &parkFactory{mount: mount, logger: logger}
}

func (f *parkFactory) NewAction(raw []byte) (opsmodel.Action, error) {
	return NewParkTelescope(f.mount, f.logger), nil
}

func (f *parkFactory) ValidateConfig(raw []byte) []string {
	return []string{"ParkTelescope cannot be scheduled directly"}
}
