package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// observeTimeSeriesConfig is the schedule-entry parameter block for
// ObserveTimeSeries.
type observeTimeSeriesConfig struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	RA       float64   `json:"ra"`
	Dec      float64   `json:"dec"`
	Object   string    `json:"object"`
	Filter   string    `json:"filter"`
	Exposure float64   `json:"exposure"`
}

func (c observeTimeSeriesConfig) validate() []string {
	var errs []string
	if c.Start.IsZero() {
		errs = append(errs, "start is required")
	}
	if c.End.IsZero() {
		errs = append(errs, "end is required")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		errs = append(errs, "end must be after start")
	}
	if c.RA < 0 || c.RA > 360 {
		errs = append(errs, "ra must be between 0 and 360")
	}
	if c.Dec < -90 || c.Dec > 90 {
		errs = append(errs, "dec must be between -90 and 90")
	}
	if c.Object == "" {
		errs = append(errs, "object is required")
	}
	if c.Exposure <= 0 {
		errs = append(errs, "exposure must be positive")
	}
	return errs
}

// ObserveTimeSeries slews to a fixed sidereal field, tracks it, and issues
// exposures until its end time, pausing (not failing) whenever the dome
// closes and resuming once it reopens.
type ObserveTimeSeries struct {
	base
	mount MountDriver
	cfg   observeTimeSeriesConfig

	domeOpen    chan bool
	framesSeen  int
	lastProfile [2]int
}

// NewObserveTimeSeries constructs the action from its validated config block.
func NewObserveTimeSeries(mount MountDriver, cfg observeTimeSeriesConfig, logger *zap.Logger) *ObserveTimeSeries {
	return &ObserveTimeSeries{
		base:     newBase("ObserveTimeSeries", logger),
		mount:    mount,
		cfg:      cfg,
		domeOpen: make(chan bool, 1),
	}
}

func (a *ObserveTimeSeries) Start(ctx context.Context, domeOpen bool) {
	select {
	case a.domeOpen <- domeOpen:
	default:
	}
	a.startOnce(func() { a.run(ctx, domeOpen) })
}

func (a *ObserveTimeSeries) DomeIsOpenChanged(open bool) {
	select {
	case a.domeOpen <- open:
	default:
		// Drop the stale value and replace it so run() always sees the
		// latest dome state, never a queue of history.
		select {
		case <-a.domeOpen:
		default:
		}
		a.domeOpen <- open
	}
}

func (a *ObserveTimeSeries) run(ctx context.Context, domeOpen bool) {
	a.setState(opsmodel.ActionRunning)

	if a.waitUntil(ctx, a.cfg.Start) {
		a.setState(opsmodel.ActionAborted)
		return
	}
	if time.Now().UTC().After(a.cfg.End) {
		a.setState(opsmodel.ActionComplete)
		return
	}

	if a.mount != nil && domeOpen {
		if err := a.acquire(ctx); err != nil {
			a.logger.Error("failed to acquire field", zap.Error(err))
			a.setState(opsmodel.ActionError)
			return
		}
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		if a.isAborted() {
			a.stopMount(ctx)
			a.setState(opsmodel.ActionAborted)
			return
		}
		if time.Now().UTC().After(a.cfg.End) {
			a.stopMount(ctx)
			a.setState(opsmodel.ActionComplete)
			return
		}

		select {
		case open := <-a.domeOpen:
			domeOpen = open
			if open && a.mount != nil {
				if err := a.acquire(ctx); err != nil {
					a.logger.Error("failed to reacquire field after dome reopened", zap.Error(err))
					a.setState(opsmodel.ActionError)
					return
				}
			}
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-a.aborted:
			a.stopMount(ctx)
			a.setState(opsmodel.ActionAborted)
			return
		}
	}
}

func (a *ObserveTimeSeries) acquire(ctx context.Context) error {
	if err := a.mount.SlewToCoordinates(ctx, a.cfg.RA/15, a.cfg.Dec); err != nil {
		return fmt.Errorf("slewing to target: %w", err)
	}
	return a.mount.SetTracking(ctx, true)
}

func (a *ObserveTimeSeries) stopMount(ctx context.Context) {
	if a.mount == nil {
		return
	}
	if err := a.mount.SetTracking(ctx, false); err != nil {
		a.logger.Warn("failed to stop tracking", zap.Error(err))
	}
}

// waitUntil blocks until t or abort/ctx-cancel, returning true if it exited
// because of an abort rather than the deadline or an already-past target.
func (a *ObserveTimeSeries) waitUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	case <-a.aborted:
		return true
	}
}

func (a *ObserveTimeSeries) TaskLabels() []opsmodel.TaskLabel {
	return []opsmodel.TaskLabel{
		{Single: fmt.Sprintf("Observe %s until %s", a.cfg.Object, a.cfg.End.Format("15:04:05"))},
		{Group: []string{
			fmt.Sprintf("Filter: %s", a.cfg.Filter),
			fmt.Sprintf("Exposure time: %.0fs", a.cfg.Exposure),
		}},
	}
}

// NotifyProcessedFrame counts completed exposures so status() can show
// liveness to an operator watching the schedule table.
func (a *ObserveTimeSeries) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	a.mu.Lock()
	a.framesSeen++
	seen := a.framesSeen
	a.mu.Unlock()
	return map[string]interface{}{"OBSSEQN": seen}
}

// NotifyGuideProfile records the lengths of the most recent guide profiles; the actual
// cross-correlation/PID guiding loop is out of scope for the daemon core.
func (a *ObserveTimeSeries) NotifyGuideProfile(headers map[string]interface{}, x, y []float64) map[string]interface{} {
	a.mu.Lock()
	a.lastProfile = [2]int{len(x), len(y)}
	a.mu.Unlock()
	return nil
}

type observeTimeSeriesFactory struct {
	mount  MountDriver
	logger *zap.Logger
}

func (f *observeTimeSeriesFactory) NewAction(raw []byte) (opsmodel.Action, error) {
	var cfg observeTimeSeriesConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing ObserveTimeSeries config: %w", err)
	}
	if errs := cfg.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid ObserveTimeSeries config: %v", errs)
	}
	return NewObserveTimeSeries(f.mount, cfg, f.logger), nil
}

func (f *observeTimeSeriesFactory) ValidateConfig(raw []byte) []string {
	var cfg observeTimeSeriesConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return []string{err.Error()}
	}
	return cfg.validate()
}
