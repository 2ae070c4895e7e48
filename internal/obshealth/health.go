// Package obshealth aggregates the health of the environment, dome, and
// telescope controllers into a single report, independently of the
// status() RPC payload (which reports the same controllers' operational
// state, not their health).
package obshealth

import (
	"context"
	"sync"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
)

// Status is a coarse health verdict for one controller.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
	Unknown   Status = "unknown"
)

// Result is one controller's health at the moment it was checked.
type Result struct {
	Component string                 `json:"component"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Checker is implemented by each controller (environment, dome, telescope)
// so the daemon can aggregate them without depending on their concrete types.
type Checker interface {
	Check(ctx context.Context) *Result
	Name() string
}

// AggregatedResult is the overall report across all registered checkers.
type AggregatedResult struct {
	Overall    Status             `json:"status"`
	Components map[string]*Result `json:"components"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Engine runs a fixed set of Checkers concurrently and folds their results.
type Engine struct {
	checkers []Checker
}

func NewEngine(checkers ...Checker) *Engine {
	return &Engine{checkers: checkers}
}

// CheckAll runs every registered checker concurrently and returns the
// aggregated verdict: unhealthy beats degraded beats healthy, and a
// component reporting Unknown counts as degraded rather than healthy. With
// no checkers registered the verdict is Unknown.
func (e *Engine) CheckAll(ctx context.Context) *AggregatedResult {
	results := make(map[string]*Result, len(e.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range e.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			res := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	return &AggregatedResult{
		Overall:    overallStatus(results),
		Components: results,
		Timestamp:  time.Now().UTC(),
	}
}

func overallStatus(results map[string]*Result) Status {
	if len(results) == 0 {
		return Unknown
	}
	degraded := false
	for _, r := range results {
		switch r.Status {
		case Unhealthy:
			return Unhealthy
		case Degraded, Unknown:
			degraded = true
		}
	}
	if degraded {
		return Degraded
	}
	return Healthy
}

// ModeStatus maps a controller's OperationsMode onto a health verdict:
// Error is unhealthy, Offline is unknown (no backend configured, not a
// failure), Manual/Automatic are healthy.
func ModeStatus(mode opsmodel.OperationsMode) Status {
	switch mode {
	case opsmodel.ModeError:
		return Unhealthy
	case opsmodel.ModeOffline:
		return Unknown
	default:
		return Healthy
	}
}
