package schedule

import (
	"testing"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	errs []string
}

func (f fakeFactory) NewAction(raw []byte) (opsmodel.Action, error) { return nil, nil }
func (f fakeFactory) ValidateConfig(raw []byte) []string            { return f.errs }

func init() {
	opsconfig.RegisterActionModule("schedtest", map[string]opsmodel.ActionFactory{
		"Observe": fakeFactory{},
		"Invalid": fakeFactory{errs: []string{"bad exposure time"}},
	})
}

func testConfig() *opsconfig.Config {
	return &opsconfig.Config{
		ActionsModule:    "schedtest",
		SiteLatitude:     "28.7603",
		SiteLongitude:    "-17.8796",
		SunAltitudeLimit: -6,
	}
}

func TestNightStartEndOrdersStartBeforeEnd(t *testing.T) {
	start, end, err := NightStartEnd("2024-06-21", 28.7603, -17.8796, -6)
	require.NoError(t, err)
	assert.True(t, start.Before(end))

	noon, err := nightCivilNoon("2024-06-21")
	require.NoError(t, err)
	assert.False(t, start.Before(noon))
	assert.False(t, end.After(noon.Add(24*time.Hour)))
}

func TestValidateScheduleMissingNight(t *testing.T) {
	ok, errs := ValidateSchedule([]byte(`{}`), testConfig(), true)
	assert.False(t, ok)
	require.NotEmpty(t, errs)
}

func TestValidateScheduleInvalidDate(t *testing.T) {
	ok, errs := ValidateSchedule([]byte(`{"night":"not-a-date"}`), testConfig(), true)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestValidateScheduleUnknownActionType(t *testing.T) {
	raw := []byte(`{"night":"2024-06-21","actions":[{"type":"Nonexistent"}]}`)
	ok, errs := ValidateSchedule(raw, testConfig(), false)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestValidateScheduleActionFactoryErrors(t *testing.T) {
	raw := []byte(`{"night":"2024-06-21","actions":[{"type":"Invalid"}]}`)
	ok, errs := ValidateSchedule(raw, testConfig(), false)
	assert.False(t, ok)
	found := false
	for _, e := range errs {
		if e == "action 0 (Invalid): bad exposure time" {
			found = true
		}
	}
	assert.True(t, found, "expected factory validation error to be surfaced, got %v", errs)
}

func TestValidateScheduleAutoDomeWindowOnNonTonightIsInfoNotFatal(t *testing.T) {
	raw := []byte(`{"night":"2024-06-21","dome":{"open":"auto","close":"auto"}}`)
	ok, errs := ValidateSchedule(raw, testConfig(), false)
	assert.True(t, ok, "a non-tonight night must only warn, not fail, when requireTonight is false: %v", errs)
}

func TestValidateScheduleRequireTonightRejectsPastNight(t *testing.T) {
	raw := []byte(`{"night":"2020-01-01","dome":{"open":"auto","close":"auto"}}`)
	ok, _ := ValidateSchedule(raw, testConfig(), true)
	assert.False(t, ok)
}

func TestValidateScheduleDomeOpenMustPrecedeClose(t *testing.T) {
	raw := []byte(`{"night":"2024-06-21","dome":{"open":"2024-06-21T23:00:00Z","close":"2024-06-21T22:00:00Z"}}`)
	ok, errs := ValidateSchedule(raw, testConfig(), false)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestParseDomeWindowNilWhenAbsent(t *testing.T) {
	win, err := ParseDomeWindow([]byte(`{"night":"2024-06-21"}`), testConfig())
	require.NoError(t, err)
	assert.Nil(t, win)
}

func TestParseScheduleActionsConstructsRegisteredActions(t *testing.T) {
	raw := []byte(`{"night":"2024-06-21","actions":[{"type":"Observe"}]}`)
	actions, err := ParseScheduleActions(raw, testConfig())
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}
