package opsmodel

import (
	"encoding/json"
	"time"
)

// SensorReading is one sensor's contribution to an EnvironmentCondition.
type SensorReading struct {
	Label   string      `json:"label"`
	Value   interface{} `json:"value"`
	Unsafe  bool        `json:"unsafe"`
	Stale   bool        `json:"stale"`
	Updated time.Time   `json:"-"`
}

// EnvironmentCondition is a named group of sensors and the verdict folded
// from them: safe iff at least one sensor is fresh and none report unsafe.
type EnvironmentCondition struct {
	Label   string          `json:"label"`
	Safe    bool            `json:"safe"`
	Age     time.Duration   `json:"-"`
	Sensors []SensorReading `json:"sensors"`
}

// EnvironmentSnapshot is the copy-on-publish result of one environment poll.
// Safe is the conjunction over all conditions.
type EnvironmentSnapshot struct {
	Updated    time.Time                       `json:"updated"`
	Safe       bool                            `json:"safe"`
	Conditions map[string]EnvironmentCondition `json:"conditions"`
}

// MarshalJSON renders Updated as ISO-8601 UTC per the wire format in §6.
func (e EnvironmentSnapshot) MarshalJSON() ([]byte, error) {
	type wire struct {
		Updated    Timestamp                       `json:"updated"`
		Safe       bool                            `json:"safe"`
		Conditions map[string]EnvironmentCondition `json:"conditions"`
	}
	return json.Marshal(wire{
		Updated:    NewTimestamp(e.Updated),
		Safe:       e.Safe,
		Conditions: e.Conditions,
	})
}
