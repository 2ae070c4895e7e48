package audit

import (
	"context"
	"testing"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/stretchr/testify/assert"
)

func TestNilLogRecordCommandIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.RecordCommand(context.Background(), "dome_control", "10.0.0.5", opsmodel.Succeeded)
	})
}

func TestNilLogRecordTransitionIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.RecordTransition(context.Background(), "dome", "Manual", "Automatic")
	})
}

func TestNilLogCloseIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.Close()
	})
}

func TestZeroValueLogRecordCommandIsNoop(t *testing.T) {
	l := &Log{}
	assert.NotPanics(t, func() {
		l.RecordCommand(context.Background(), "tel_control", "10.0.0.5", opsmodel.Failed)
	})
}

func TestOpenRejectsInvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "not a valid dsn \x00", nil)
	assert.Error(t, err)
}
