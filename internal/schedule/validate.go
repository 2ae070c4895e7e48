// Package schedule implements the pure Scheduler/Validator functions:
// schedule validation, dome-window/action parsing, and night-boundary
// computation. Nothing here touches the network or mutates controller state.
package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
)

const isoLayout = opsmodel.ISOLayout

// Schedule is the canonical external JSON shape accepted by schedule_observations.
type Schedule struct {
	Night   string            `json:"night"`
	Dome    *DomeWindowJSON   `json:"dome,omitempty"`
	Actions []json.RawMessage `json:"actions,omitempty"`
}

// DomeWindowJSON is the raw open/close pair before "auto" resolution.
type DomeWindowJSON struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// ValidateSchedule checks raw against the schedule schema and the site's
// registered action types. requireTonight controls whether a night that
// doesn't match the current observing night is a fatal error (true, used by
// schedule_observations) or an informational warning (false, used to preview
// a future night's plan from the CLI).
func ValidateSchedule(raw []byte, cfg *opsconfig.Config, requireTonight bool) (bool, []string) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return false, []string{"invalid JSON: " + err.Error()}
	}

	nightRaw, hasNight := top["night"]
	if !hasNight {
		return false, []string{"missing key 'night'"}
	}
	var nightStr string
	if err := json.Unmarshal(nightRaw, &nightStr); err != nil {
		return false, []string{"night: must be a string"}
	}
	if _, err := time.Parse("2006-01-02", nightStr); err != nil {
		return false, []string{fmt.Sprintf("night: %s is not a valid date", nightStr)}
	}

	var sched Schedule
	if err := json.Unmarshal(raw, &sched); err != nil {
		return false, []string{"invalid JSON: " + err.Error()}
	}

	var errors []string
	if sched.Dome != nil {
		errors = append(errors, validateDome(*sched.Dome, cfg, nightStr)...)
	}
	for i, block := range sched.Actions {
		errors = append(errors, validateAction(i, block, cfg)...)
	}

	isValid := len(errors) == 0

	current := currentNightString(time.Now().UTC())
	if current != nightStr {
		msg := fmt.Sprintf("night: %s is not tonight (%s)", nightStr, current)
		if requireTonight {
			isValid = false
			errors = append([]string{msg}, errors...)
		} else {
			errors = append([]string{"info: " + msg}, errors...)
		}
	}

	return isValid, errors
}

func currentNightString(now time.Time) string {
	if now.Hour() < 12 {
		now = now.Add(-24 * time.Hour)
	}
	return now.Format("2006-01-02")
}

func validateDome(win DomeWindowJSON, cfg *opsconfig.Config, night string) []string {
	nightStart, nightEnd, err := NightStartEnd(night, siteLat(cfg), siteLon(cfg), cfg.SunAltitudeLimit)
	if err != nil {
		return []string{"dome: " + err.Error()}
	}

	var errs []string
	check := func(value string) {
		if value == "auto" {
			return
		}
		t, err := time.Parse(isoLayout, value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("dome: %s is not a valid datetime", value))
			return
		}
		if t.Before(nightStart) || t.After(nightEnd) {
			errs = append(errs, fmt.Sprintf("dome: %s is not auto or between %s and %s",
				value, nightStart.Format(isoLayout), nightEnd.Format(isoLayout)))
		}
	}
	check(win.Open)
	check(win.Close)
	if len(errs) > 0 {
		return errs
	}

	openAt, closeAt, err := resolveWindowTimes(win, night, cfg)
	if err != nil {
		return []string{"dome: " + err.Error()}
	}
	if !openAt.Before(closeAt) {
		errs = append(errs, "dome: open must be strictly before close")
	}
	return errs
}

func validateAction(index int, raw json.RawMessage, cfg *opsconfig.Config) []string {
	prefix := "action " + strconv.Itoa(index)

	var block map[string]json.RawMessage
	if err := json.Unmarshal(raw, &block); err != nil {
		return []string{prefix + ": invalid JSON"}
	}
	typeRaw, ok := block["type"]
	if !ok {
		return []string{prefix + ": missing key 'type'"}
	}
	var actionType string
	if err := json.Unmarshal(typeRaw, &actionType); err != nil {
		return []string{prefix + ": 'type' must be a string"}
	}

	factories, err := opsconfig.ActionModule(cfg.ActionsModule)
	if err != nil {
		return []string{err.Error()}
	}
	factory, ok := factories[actionType]
	if !ok {
		return []string{prefix + ": unknown action type '" + actionType + "'"}
	}

	errs := factory.ValidateConfig(raw)
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = fmt.Sprintf("%s (%s): %s", prefix, actionType, e)
	}
	return out
}

// ParseDomeWindow resolves the dome open/close window from a schedule,
// returning nil if the schedule carries no dome block. Errors with the
// returned datetimes have already been caught by ValidateSchedule.
func ParseDomeWindow(raw []byte, cfg *opsconfig.Config) (*opsmodel.DomeOpenWindow, error) {
	var sched Schedule
	if err := json.Unmarshal(raw, &sched); err != nil {
		return nil, err
	}
	if sched.Dome == nil {
		return nil, nil
	}
	openAt, closeAt, err := resolveWindowTimes(*sched.Dome, sched.Night, cfg)
	if err != nil {
		return nil, err
	}
	return &opsmodel.DomeOpenWindow{OpenAt: openAt, CloseAt: closeAt}, nil
}

func resolveWindowTimes(win DomeWindowJSON, night string, cfg *opsconfig.Config) (time.Time, time.Time, error) {
	var autoOpen, autoClose time.Time
	if win.Open == "auto" || win.Close == "auto" {
		var err error
		autoOpen, autoClose, err = NightStartEnd(night, siteLat(cfg), siteLon(cfg), cfg.SunAltitudeLimit)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	openAt := autoOpen
	if win.Open != "auto" {
		t, err := time.Parse(isoLayout, win.Open)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		openAt = t
	}

	closeAt := autoClose
	if win.Close != "auto" {
		t, err := time.Parse(isoLayout, win.Close)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		closeAt = t
	}

	return openAt, closeAt, nil
}

// ParseScheduleActions constructs the ordered list of Actions described by
// the schedule's "actions" array, using the site's registered action factories.
func ParseScheduleActions(raw []byte, cfg *opsconfig.Config) ([]opsmodel.Action, error) {
	var sched Schedule
	if err := json.Unmarshal(raw, &sched); err != nil {
		return nil, err
	}
	factories, err := opsconfig.ActionModule(cfg.ActionsModule)
	if err != nil {
		return nil, err
	}

	actions := make([]opsmodel.Action, 0, len(sched.Actions))
	for _, block := range sched.Actions {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(block, &head); err != nil {
			return nil, fmt.Errorf("parsing action block: %w", err)
		}
		factory, ok := factories[head.Type]
		if !ok {
			return nil, fmt.Errorf("unknown action type %q", head.Type)
		}
		action, err := factory.NewAction(block)
		if err != nil {
			return nil, fmt.Errorf("constructing action %q: %w", head.Type, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func siteLat(cfg *opsconfig.Config) float64 {
	return parseCoordinate(cfg.SiteLatitude)
}

func siteLon(cfg *opsconfig.Config) float64 {
	return parseCoordinate(cfg.SiteLongitude)
}

// parseCoordinate accepts either a plain decimal-degree string ("28.7603")
// or a colon-separated sexagesimal one ("28:45:37"), matching the two forms
// seen in site config files.
func parseCoordinate(s string) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var deg, min, sec float64
	n, _ := fmt.Sscanf(s, "%f:%f:%f", &deg, &min, &sec)
	if n == 0 {
		return 0
	}
	v := deg + min/60 + sec/3600
	if neg {
		v = -v
	}
	return v
}
