package environment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu     sync.Mutex
	values map[string]opsmodel.RawSensorValue
	err    error
}

func (f *fakeBackend) Poll(ctx context.Context) (map[string]opsmodel.RawSensorValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]opsmodel.RawSensorValue, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) setValue(key string, v opsmodel.RawSensorValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = v
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func windConditions() []opsconfig.ConditionConfig {
	return []opsconfig.ConditionConfig{
		{
			Label: "wind",
			Sensors: []opsconfig.SensorConfig{
				{Label: "wind speed", Sensor: "weather", Parameter: "wind_speed", MaxAge: time.Minute},
			},
		},
	}
}

func TestPollWithFreshSafeSensorReportsSafe(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{
		"weather.wind_speed": {Value: 5.0, Unsafe: false, Updated: time.Now().UTC()},
	}}
	w := New(windConditions(), backend, nil)
	w.Poll(context.Background())

	snap := w.Snapshot()
	assert.True(t, snap.Safe)
	require.Contains(t, snap.Conditions, "wind")
	assert.True(t, snap.Conditions["wind"].Safe)
}

func TestPollWithUnsafeSensorMakesConditionUnsafe(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{
		"weather.wind_speed": {Value: 80.0, Unsafe: true, Updated: time.Now().UTC()},
	}}
	w := New(windConditions(), backend, nil)
	w.Poll(context.Background())

	snap := w.Snapshot()
	assert.False(t, snap.Safe)
	assert.False(t, snap.Conditions["wind"].Safe)
}

func TestPollWithStaleSensorIsUnsafe(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{
		"weather.wind_speed": {Value: 5.0, Unsafe: false, Updated: time.Now().UTC().Add(-5 * time.Minute)},
	}}
	w := New(windConditions(), backend, nil)
	w.Poll(context.Background())

	assert.False(t, w.Snapshot().Safe)
}

func TestPollFailureGraceTicksBeforeForcingUnsafe(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{
		"weather.wind_speed": {Value: 5.0, Unsafe: false, Updated: time.Now().UTC()},
	}}
	w := New(windConditions(), backend, nil)
	w.Poll(context.Background())
	require.True(t, w.Snapshot().Safe)

	backend.setErr(errors.New("feed unreachable"))
	w.Poll(context.Background())
	assert.True(t, w.Snapshot().Safe, "one missed poll should not yet force unsafe")

	w.Poll(context.Background())
	assert.False(t, w.Snapshot().Safe, "two consecutive missed polls must force unsafe")
}

func TestNoConditionsConfiguredIsNeverSafe(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{}}
	w := New(nil, backend, nil)
	w.Poll(context.Background())
	assert.False(t, w.Snapshot().Safe)
}

func TestOnSnapshotCallbackFiresAfterPoll(t *testing.T) {
	backend := &fakeBackend{values: map[string]opsmodel.RawSensorValue{
		"weather.wind_speed": {Value: 5.0, Unsafe: false, Updated: time.Now().UTC()},
	}}
	w := New(windConditions(), backend, nil)

	var got opsmodel.EnvironmentSnapshot
	called := false
	w.OnSnapshot(func(s opsmodel.EnvironmentSnapshot) {
		called = true
		got = s
	})

	w.Poll(context.Background())
	require.True(t, called)
	assert.True(t, got.Safe)
}
