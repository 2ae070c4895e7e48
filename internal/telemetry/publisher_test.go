package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFailsFastOnUnreachableBroker(t *testing.T) {
	_, err := New(Config{BrokerURL: "tcp://127.0.0.1:1", ClientID: "opsd-test"}, nil)
	assert.Error(t, err, "connecting to a closed local port must fail rather than hang")
}
