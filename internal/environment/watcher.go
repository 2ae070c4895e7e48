// Package environment implements EnvironmentWatcher: it polls a backend
// once per tick and folds raw sensor values into per-condition and
// aggregate safe/unsafe verdicts.
package environment

import (
	"context"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/obshealth"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

const defaultMaxAge = 30 * time.Second
const defaultGraceTicks = 2

// Watcher holds the live EnvironmentSnapshot behind an RWMutex: Poll
// updates it under the write lock and readers (status RPC, DomeController)
// take the read lock, so a read waits while a poll is folding new values.
type Watcher struct {
	conditions []opsconfig.ConditionConfig
	backend    opsmodel.EnvironmentBackend
	logger     *zap.Logger

	mu           sync.RWMutex
	snapshot     *opsmodel.EnvironmentSnapshot
	missedPolls  int
	lastRawValue map[string]opsmodel.RawSensorValue

	// onSnapshot, if set, is called synchronously after every successful
	// or failed poll so the dome controller can react to a new environment
	// verdict immediately instead of waiting for its own next tick.
	onSnapshot func(opsmodel.EnvironmentSnapshot)
}

func New(conditions []opsconfig.ConditionConfig, backend opsmodel.EnvironmentBackend, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		conditions: conditions,
		backend:    backend,
		logger:     logger.With(zap.String("component", "environment")),
		snapshot: &opsmodel.EnvironmentSnapshot{
			Updated:    time.Time{},
			Safe:       false,
			Conditions: map[string]opsmodel.EnvironmentCondition{},
		},
		lastRawValue: map[string]opsmodel.RawSensorValue{},
	}
}

// OnSnapshot registers the callback invoked after each poll. Not
// concurrency-safe to call after Poll has started; wire it up at construction.
func (w *Watcher) OnSnapshot(fn func(opsmodel.EnvironmentSnapshot)) {
	w.onSnapshot = fn
}

// Poll pulls one round of raw values from the backend and republishes the
// EnvironmentSnapshot. A poll failure does not clear prior sensor values —
// it marks them stale via the age computation on the next read — but after
// graceTicks consecutive failures the aggregate safe flag is forced false.
func (w *Watcher) Poll(ctx context.Context) {
	now := time.Now().UTC()
	raw, err := w.backend.Poll(ctx)

	w.mu.Lock()
	if err != nil {
		w.missedPolls++
		w.logger.Warn("environment poll failed", zap.Error(err), zap.Int("missed_polls", w.missedPolls))
	} else {
		w.missedPolls = 0
		for k, v := range raw {
			w.lastRawValue[k] = v
		}
	}

	snapshot := w.buildSnapshot(now)
	w.snapshot = &snapshot
	w.mu.Unlock()

	if w.onSnapshot != nil {
		w.onSnapshot(snapshot)
	}
}

func (w *Watcher) buildSnapshot(now time.Time) opsmodel.EnvironmentSnapshot {
	conditions := make(map[string]opsmodel.EnvironmentCondition, len(w.conditions))
	allSafe := true

	for _, cond := range w.conditions {
		sensors := make([]opsmodel.SensorReading, 0, len(cond.Sensors))
		conditionSafe := false
		conditionHasUnsafe := false

		for _, s := range cond.Sensors {
			key := s.Sensor + "." + s.Parameter
			raw, ok := w.lastRawValue[key]
			maxAge := s.MaxAge
			if maxAge <= 0 {
				maxAge = defaultMaxAge
			}

			var stale bool
			var value interface{}
			var unsafe bool
			if !ok {
				stale = true
			} else {
				age := now.Sub(raw.Updated)
				stale = age >= maxAge // boundary: exactly max-age counts as stale, so fresh is strictly "<"
				value = raw.Value
				unsafe = raw.Unsafe
			}

			if !stale {
				conditionSafe = true
			}
			if unsafe {
				conditionHasUnsafe = true
			}

			sensors = append(sensors, opsmodel.SensorReading{
				Label:   s.Label,
				Value:   value,
				Unsafe:  unsafe,
				Stale:   stale,
				Updated: raw.Updated,
			})
		}

		safe := conditionSafe && !conditionHasUnsafe
		if w.missedPolls >= defaultGraceTicks {
			safe = false
		}
		if !safe {
			allSafe = false
		}

		conditions[cond.Label] = opsmodel.EnvironmentCondition{
			Label:   cond.Label,
			Safe:    safe,
			Sensors: sensors,
		}
	}

	if len(w.conditions) == 0 {
		allSafe = false
	}

	return opsmodel.EnvironmentSnapshot{
		Updated:    now,
		Safe:       allSafe,
		Conditions: conditions,
	}
}

// Safe reports the aggregate safe flag of the most recent snapshot, used as
// a dome-open stand-in by TelescopeController when no dome is configured.
func (w *Watcher) Safe() bool {
	return w.Snapshot().Safe
}

// Snapshot returns the most recently published EnvironmentSnapshot.
func (w *Watcher) Snapshot() opsmodel.EnvironmentSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return *w.snapshot
}

// Run polls on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, loopDelay time.Duration) {
	ticker := time.NewTicker(loopDelay)
	defer ticker.Stop()
	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Check implements obshealth.Checker.
func (w *Watcher) Check(ctx context.Context) *obshealth.Result {
	snap := w.Snapshot()
	status := obshealth.Healthy
	msg := "environment safe"
	if !snap.Safe {
		status = obshealth.Degraded
		msg = "environment not safe or not yet polled"
	}
	w.mu.RLock()
	missed := w.missedPolls
	w.mu.RUnlock()
	if missed >= defaultGraceTicks {
		status = obshealth.Unhealthy
		msg = "environment daemon unreachable"
	}
	return &obshealth.Result{
		Component: "environment",
		Status:    status,
		Message:   msg,
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{"missed_polls": missed},
	}
}

func (w *Watcher) Name() string { return "environment" }
