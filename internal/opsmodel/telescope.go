package opsmodel

import (
	"encoding/json"
	"time"
)

// ScheduleEntry describes one action's position in the telescope's status
// report: the currently running action first, then queued actions in
// execution order.
type ScheduleEntry struct {
	Name  string      `json:"name"`
	Tasks []TaskLabel `json:"tasks"`
	State ActionState `json:"state"`
}

// TaskLabel is either a single descriptor or a group of descriptors,
// matching the "string | list-of-string" shape actions may report.
type TaskLabel struct {
	Single string
	Group  []string
}

func (t TaskLabel) MarshalJSON() ([]byte, error) {
	if t.Group != nil {
		return json.Marshal(t.Group)
	}
	return json.Marshal(t.Single)
}

// TelescopeState is the snapshot returned by TelescopeController.Status().
type TelescopeState struct {
	Mode          OperationsMode
	RequestedMode OperationsMode
	StatusUpdated time.Time
	Schedule      []ScheduleEntry
}

func (t TelescopeState) MarshalJSON() ([]byte, error) {
	type wire struct {
		Mode          OperationsMode  `json:"mode"`
		RequestedMode OperationsMode  `json:"requested_mode"`
		StatusUpdated Timestamp       `json:"status_updated"`
		Schedule      []ScheduleEntry `json:"schedule"`
	}
	schedule := t.Schedule
	if schedule == nil {
		schedule = []ScheduleEntry{}
	}
	return json.Marshal(wire{
		Mode:          t.Mode,
		RequestedMode: t.RequestedMode,
		StatusUpdated: NewTimestamp(t.StatusUpdated),
		Schedule:      schedule,
	})
}

// StatusPayload is the full object returned by the status() RPC method.
type StatusPayload struct {
	Environment EnvironmentSnapshot `json:"environment"`
	Dome        *DomeState          `json:"dome,omitempty"`
	Telescope   TelescopeState      `json:"telescope"`
}
