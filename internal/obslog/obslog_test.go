package obslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDebugLevelUsesDevelopmentEncoder(t *testing.T) {
	logger, err := New("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDefaultLevelIsInfo(t *testing.T) {
	logger, err := New("")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewWarnLevelSuppressesInfo(t *testing.T) {
	logger, err := New("warn")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewErrorLevelSuppressesWarn(t *testing.T) {
	logger, err := New("error")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}
