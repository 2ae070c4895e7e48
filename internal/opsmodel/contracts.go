package opsmodel

import (
	"context"
	"time"
)

// Action is an execution unit owning its own internal state machine. The
// telescope worker drives it cooperatively; it must never block longer than
// its own internal step granularity allows aborts to be noticed.
type Action interface {
	// Name identifies the action type, e.g. "ObserveTimeSeries".
	Name() string

	// Start begins execution. domeOpen reflects the dome state at the
	// moment the action is popped off the queue.
	Start(ctx context.Context, domeOpen bool)

	// Abort requests immediate graceful stop. Idempotent.
	Abort()

	// State returns the action's current lifecycle state.
	State() ActionState

	// TaskLabels returns the ordered descriptors shown in status().
	TaskLabels() []TaskLabel

	// DomeIsOpenChanged is forwarded whenever the dome-open boolean changes
	// while this action is Running.
	DomeIsOpenChanged(open bool)

	// NotifyProcessedFrame delivers pipeline frame-processed headers to the
	// running action and returns any extra header entries to merge in.
	NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{}

	// NotifyGuideProfile delivers a pipeline guide-profile measurement.
	NotifyGuideProfile(headers map[string]interface{}, profileX, profileY []float64) map[string]interface{}
}

// ActionFactory constructs an Action from its raw JSON parameter block,
// looked up in the actions registry by the "type" field of a schedule entry.
type ActionFactory interface {
	// NewAction constructs the action from its config block.
	NewAction(raw []byte) (Action, error)

	// ValidateConfig returns human-readable validation errors for the raw
	// parameter block, without constructing an Action.
	ValidateConfig(raw []byte) []string
}

// DomeBackend is the abstract interface a concrete dome implementation
// (Astrohaven, ash-dome, roll-off…) must satisfy for DomeController to drive it.
type DomeBackend interface {
	// QueryStatus polls the physical dome and returns its current status.
	QueryStatus(ctx context.Context) (DomeStatus, error)

	// Open commands the dome to open. Returns once the command is accepted,
	// not once the dome has finished moving.
	Open(ctx context.Context) error

	// Close commands the dome to close.
	Close(ctx context.Context) error

	// SetAutomatic / SetManual switch the backend's own local control mode,
	// where the backend distinguishes them (many do not, and can no-op).
	SetAutomatic(ctx context.Context) error
	SetManual(ctx context.Context) error

	// PingHeartbeat sends a keep-open/keep-closed heartbeat with the given
	// intent-derived timeout. Backends that don't require heartbeats no-op.
	PingHeartbeat(ctx context.Context, timeout time.Duration) error

	// ReopenAfterWeatherAlert reports whether the backend permits resuming
	// an interrupted open window once the environment clears, rather than
	// requiring the window to be explicitly re-scheduled.
	ReopenAfterWeatherAlert() bool
}

// EnvironmentBackend polls a named environment daemon for raw sensor data.
type EnvironmentBackend interface {
	// Poll returns the raw per-sensor values keyed "sensor.parameter".
	Poll(ctx context.Context) (map[string]RawSensorValue, error)
}

// RawSensorValue is one reading pulled from an environment backend before
// EnvironmentWatcher folds it into a SensorReading.
type RawSensorValue struct {
	Value   interface{}
	Unsafe  bool
	Updated time.Time
}
