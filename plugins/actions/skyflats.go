package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// skyFlatsConfig is the schedule-entry parameter block for SkyFlats.
type skyFlatsConfig struct {
	Evening bool     `json:"evening"`
	Count   int      `json:"count"`
	Filters []string `json:"filters"`
}

func (c skyFlatsConfig) validate() []string {
	var errs []string
	if c.Count <= 0 {
		errs = append(errs, "count must be positive")
	}
	if len(c.Filters) == 0 {
		errs = append(errs, "filters must list at least one filter")
	}
	return errs
}

// SkyFlats points the mount at the flat-field patch of sky and cycles
// through the configured filter list, counting frames as they're reported
// by the pipeline until the target count is reached.
type SkyFlats struct {
	base
	mount MountDriver
	cfg   skyFlatsConfig

	filterIdx int
	count     int
}

// NewSkyFlats constructs the action from its validated config block.
func NewSkyFlats(mount MountDriver, cfg skyFlatsConfig, logger *zap.Logger) *SkyFlats {
	return &SkyFlats{base: newBase("SkyFlats", logger), mount: mount, cfg: cfg}
}

func (a *SkyFlats) Start(ctx context.Context, domeOpen bool) {
	a.startOnce(func() { a.run(ctx, domeOpen) })
}

func (a *SkyFlats) run(ctx context.Context, domeOpen bool) {
	a.setState(opsmodel.ActionRunning)

	if !domeOpen {
		select {
		case <-ctx.Done():
			return
		case <-a.aborted:
			a.setState(opsmodel.ActionAborted)
			return
		case <-time.After(10 * time.Second):
		}
	}

	if a.mount != nil {
		// Flat-field patch: zenith-ish, away from the sun. A fixed alt/az
		// offset is adequate for a simulated or semi-automated deployment;
		// a site with a real flat screen would target its fixed position.
		if err := a.mount.SlewToCoordinates(ctx, 0, 75); err != nil {
			a.logger.Error("failed to slew to flat-field position", zap.Error(err))
			a.setState(opsmodel.ActionError)
			return
		}
	}

	for a.frameCount() < a.cfg.Count {
		if a.isAborted() {
			a.setState(opsmodel.ActionAborted)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-a.aborted:
			a.setState(opsmodel.ActionAborted)
			return
		case <-time.After(time.Second):
		}
	}
	a.setState(opsmodel.ActionComplete)
}

func (a *SkyFlats) frameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *SkyFlats) currentFilter() string {
	if len(a.cfg.Filters) == 0 {
		return "NONE"
	}
	return a.cfg.Filters[a.filterIdx%len(a.cfg.Filters)]
}

func (a *SkyFlats) TaskLabels() []opsmodel.TaskLabel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return []opsmodel.TaskLabel{
		{Single: fmt.Sprintf("Sky flats (%d/%d)", a.count, a.cfg.Count)},
		{Single: fmt.Sprintf("Filter: %s", a.currentFilter())},
	}
}

// NotifyProcessedFrame advances the exposure count and rotates the filter,
// matching the reference's per-frame filter-cycling pattern.
func (a *SkyFlats) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	a.mu.Lock()
	a.count++
	a.filterIdx++
	filter := a.currentFilter()
	a.mu.Unlock()
	return map[string]interface{}{"FILTER": filter}
}

type skyFlatsFactory struct {
	mount  MountDriver
	logger *zap.Logger
}

func (f *skyFlatsFactory) NewAction(raw []byte) (opsmodel.Action, error) {
	var cfg skyFlatsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing SkyFlats config: %w", err)
	}
	if errs := cfg.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid SkyFlats config: %v", errs)
	}
	return NewSkyFlats(f.mount, cfg, f.logger), nil
}

func (f *skyFlatsFactory) ValidateConfig(raw []byte) []string {
	var cfg skyFlatsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return []string{err.Error()}
	}
	return cfg.validate()
}
