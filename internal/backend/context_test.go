package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCompilationContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := NewCompilationContext("Main.run", DefaultCompilerOptions(), zap.New(core))
	ctx.Logger.Info("hello")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "Main.run", logs.All()[0].ContextMap()["method"])

	require.NotNil(t, NewCompilationContext("Main.run", CompilerOptions{}, nil).Logger)
}

func TestStats_Add(t *testing.T) {
	var s Stats
	s.Add(MoveResolverStats{Moves: 3, Swaps: 1, ScratchAcquisitions: 2, Spills: 1})
	s.Add(MoveResolverStats{Moves: 1})
	require.Equal(t, Stats{Moves: 4, Swaps: 1, ScratchAcquisitions: 2, Spills: 1}, s)
}

func TestBailout(t *testing.T) {
	var err error = NewBailout(BailoutFrameTooLarge, "frame of %d bytes", 70000)
	require.EqualError(t, err, "not compiled: frame too large: frame of 70000 bytes")

	wrapped := fmt.Errorf("Main.run: %w", err)
	var b *Bailout
	require.True(t, errors.As(wrapped, &b))
	require.Equal(t, BailoutFrameTooLarge, b.Reason)
	require.Equal(t, "unknown", BailoutReason(0).String())
}

func TestReadBarrierKind_String(t *testing.T) {
	require.Equal(t, "none", ReadBarrierNone.String())
	require.Equal(t, "baker-slow-path", ReadBarrierBakerSlowPath.String())
	require.Equal(t, "baker-thunks", ReadBarrierBakerThunks.String())
}
