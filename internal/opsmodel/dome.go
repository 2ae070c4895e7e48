package opsmodel

import (
	"encoding/json"
	"time"
)

// DomeOpenWindow is the scheduled interval during which the dome is
// permitted to open, subject to environment safety. Invariant: OpenAt < CloseAt,
// both within the same observing night.
type DomeOpenWindow struct {
	OpenAt  time.Time
	CloseAt time.Time
}

// DomeState is the snapshot returned by DomeController.Status().
// RequestedOpenAt/RequestedCloseAt are either both zero or both set.
type DomeState struct {
	Mode             OperationsMode
	RequestedMode    OperationsMode
	Status           DomeStatus
	StatusUpdated    time.Time
	ModeUpdated      time.Time
	RequestedOpenAt  time.Time
	RequestedCloseAt time.Time
	LastHeartbeatAck time.Time
}

// HasWindow reports whether a dome open window is currently set.
func (d DomeState) HasWindow() bool {
	return !d.RequestedOpenAt.IsZero() && !d.RequestedCloseAt.IsZero()
}

func (d DomeState) MarshalJSON() ([]byte, error) {
	type wire struct {
		Mode             OperationsMode `json:"mode"`
		RequestedMode    OperationsMode `json:"requested_mode"`
		Status           DomeStatus     `json:"status"`
		StatusUpdated    Timestamp      `json:"status_updated"`
		RequestedOpenAt  *Timestamp     `json:"requested_open_date,omitempty"`
		RequestedCloseAt *Timestamp     `json:"requested_close_date,omitempty"`
	}
	out := wire{
		Mode:          d.Mode,
		RequestedMode: d.RequestedMode,
		Status:        d.Status,
		StatusUpdated: NewTimestamp(d.StatusUpdated),
	}
	if d.HasWindow() {
		open := NewTimestamp(d.RequestedOpenAt)
		close := NewTimestamp(d.RequestedCloseAt)
		out.RequestedOpenAt = &open
		out.RequestedCloseAt = &close
	}
	return json.Marshal(out)
}
