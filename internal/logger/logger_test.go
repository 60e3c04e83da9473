package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	require.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	l, err = New("")
	require.NoError(t, err)
	require.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	require.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))

	l, err = New("bogus")
	require.NoError(t, err)
	require.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	l, _ := New("")
	require.Same(t, l, OrNop(l))
}
