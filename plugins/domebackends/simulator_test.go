package domebackends

import (
	"context"
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorDomeStartsClosed(t *testing.T) {
	backend, err := newSimulatorDome(nil)
	require.NoError(t, err)

	status, err := backend.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opsmodel.DomeClosed, status)
}

func TestSimulatorDomeOpenReportsMovingThenOpen(t *testing.T) {
	backend, err := newSimulatorDome(map[string]interface{}{"move_seconds": 0.02})
	require.NoError(t, err)

	require.NoError(t, backend.Open(context.Background()))
	status, err := backend.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opsmodel.DomeMoving, status)

	time.Sleep(30 * time.Millisecond)
	status, err = backend.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opsmodel.DomeOpen, status)
}

func TestSimulatorDomeCloseReturnsToClosed(t *testing.T) {
	backend, err := newSimulatorDome(map[string]interface{}{"move_seconds": 0.02})
	require.NoError(t, err)

	require.NoError(t, backend.Open(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, backend.Close(context.Background()))

	status, err := backend.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opsmodel.DomeMoving, status)

	time.Sleep(30 * time.Millisecond)
	status, err = backend.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opsmodel.DomeClosed, status)
}

func TestSimulatorDomeReopenAfterWeatherAlertDefaultsFalse(t *testing.T) {
	backend, err := newSimulatorDome(nil)
	require.NoError(t, err)
	assert.False(t, backend.ReopenAfterWeatherAlert())

	backend, err = newSimulatorDome(map[string]interface{}{"reopen_after_weather_alert": true})
	require.NoError(t, err)
	assert.True(t, backend.ReopenAfterWeatherAlert())
}

func TestSimulatorDomeHeartbeatAndModeSwitchAreNoops(t *testing.T) {
	backend, err := newSimulatorDome(nil)
	require.NoError(t, err)
	assert.NoError(t, backend.SetAutomatic(context.Background()))
	assert.NoError(t, backend.SetManual(context.Background()))
	assert.NoError(t, backend.PingHeartbeat(context.Background(), time.Second))
}
