package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTopicBuildsOpsdPrefixedPath(t *testing.T) {
	assert.Equal(t, "opsd/dome/event/mode_changed", EventTopic(ComponentDome, "mode_changed"))
	assert.Equal(t, "opsd/telescope/event/action_state_changed", EventTopic(ComponentTelescope, "action_state_changed"))
}

func TestStatusAndHealthTopics(t *testing.T) {
	assert.Equal(t, "opsd/schedule/status", StatusTopic(ComponentSchedule))
	assert.Equal(t, "opsd/environment/health/status", HealthTopic(ComponentEnvironment))
}

func TestParseTopicRejectsForeignPrefix(t *testing.T) {
	parts, err := ParseTopic("opsd/dome/event/mode_changed")
	require.NoError(t, err)
	assert.Equal(t, []string{"dome", "event", "mode_changed"}, parts)

	_, err = ParseTopic("otherapp/dome/event/mode_changed")
	assert.Error(t, err)
}

func TestValidateTopicRequiresThreeSegments(t *testing.T) {
	assert.True(t, ValidateTopic("opsd/dome/status"))
	assert.False(t, ValidateTopic("opsd/dome"))
}
