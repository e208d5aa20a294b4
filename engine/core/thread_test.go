package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentThreadIDIsStablePerGoroutine(t *testing.T) {
	id := CurrentThreadID()
	require.NotZero(t, id)
	require.Equal(t, id, CurrentThreadID())

	other := make(chan ThreadID)
	go func() { other <- CurrentThreadID() }()
	require.NotEqual(t, id, <-other)
}

func TestThreadAffinity(t *testing.T) {
	var a ThreadAffinity
	require.False(t, a.IsOwner(), "unbound affinity has no owner")

	a.Bind()
	require.True(t, a.IsOwner())
	require.Equal(t, CurrentThreadID(), a.Owner())

	done := make(chan bool)
	go func() { done <- a.IsOwner() }()
	require.False(t, <-done)
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel(" INFO ")
	require.NoError(t, err)
	require.Equal(t, InfoLevel, lvl)

	lvl, err = ParseLogLevel("")
	require.NoError(t, err)
	require.Equal(t, DebugLevel, lvl)

	_, err = ParseLogLevel("verbose")
	require.Error(t, err)
}
