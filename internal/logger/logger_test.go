package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	Init("test")
	original := Level()
	t.Cleanup(func() { _ = SetLevel(original.String()) })

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zapcore.WarnLevel, Level())
	assert.False(t, Named("scheduler").Desugar().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel(""))
	assert.Equal(t, zapcore.WarnLevel, Level())

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zapcore.WarnLevel, Level())
}

func TestGetWithoutInit(t *testing.T) {
	assert.NotNil(t, Get())
	assert.NotNil(t, Named("http"))
}
