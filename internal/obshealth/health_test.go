package obshealth

import (
	"context"
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	name   string
	status Status
}

func (f fakeChecker) Check(ctx context.Context) *Result {
	return &Result{Component: f.name, Status: f.status, Timestamp: time.Now().UTC()}
}

func (f fakeChecker) Name() string { return f.name }

func TestCheckAllOverallHealthyWhenAllHealthy(t *testing.T) {
	e := NewEngine(fakeChecker{name: "dome", status: Healthy}, fakeChecker{name: "telescope", status: Healthy})
	result := e.CheckAll(context.Background())
	assert.Equal(t, Healthy, result.Overall)
	assert.Len(t, result.Components, 2)
}

func TestCheckAllUnhealthyBeatsDegraded(t *testing.T) {
	e := NewEngine(
		fakeChecker{name: "dome", status: Unhealthy},
		fakeChecker{name: "telescope", status: Degraded},
	)
	result := e.CheckAll(context.Background())
	assert.Equal(t, Unhealthy, result.Overall)
}

func TestCheckAllDegradedWhenAnyUnknown(t *testing.T) {
	e := NewEngine(
		fakeChecker{name: "dome", status: Healthy},
		fakeChecker{name: "environment", status: Unknown},
	)
	result := e.CheckAll(context.Background())
	assert.Equal(t, Degraded, result.Overall)
}

func TestCheckAllUnknownWithNoCheckers(t *testing.T) {
	e := NewEngine()
	result := e.CheckAll(context.Background())
	assert.Equal(t, Unknown, result.Overall)
	assert.Empty(t, result.Components)
}

func TestModeStatusMapping(t *testing.T) {
	assert.Equal(t, Unhealthy, ModeStatus(opsmodel.ModeError))
	assert.Equal(t, Unknown, ModeStatus(opsmodel.ModeOffline))
	assert.Equal(t, Healthy, ModeStatus(opsmodel.ModeManual))
	assert.Equal(t, Healthy, ModeStatus(opsmodel.ModeAutomatic))
}
