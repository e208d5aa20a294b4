package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 5, Clamp(5, 0, 10))
	require.Equal(t, 0, Clamp(-3, 0, 10))
	require.Equal(t, uint32(2048), Clamp(uint32(4096), 1, 2048))
	require.InDelta(t, 1.0, Clamp(1.5, 0.0, 1.0), 1e-9)
}

func TestPowerOfTwo(t *testing.T) {
	require.True(t, IsPowerOfTwo(uint32(256)))
	require.False(t, IsPowerOfTwo(uint32(0)))
	require.False(t, IsPowerOfTwo(uint32(300)))

	require.Equal(t, uint32(1), NextPowerOfTwo(0))
	require.Equal(t, uint32(256), NextPowerOfTwo(256))
	require.Equal(t, uint32(512), NextPowerOfTwo(257))
	require.Equal(t, uint32(256), PrevPowerOfTwo(300))
	require.Equal(t, uint32(0), PrevPowerOfTwo(0))

	require.Equal(t, MaxPowerOfTwo, NextPowerOfTwo(3_000_000_000))
	require.Equal(t, MaxPowerOfTwo, NextPowerOfTwo(MaxPowerOfTwo))
	require.Equal(t, MaxPowerOfTwo, PrevPowerOfTwo(^uint32(0)))
}

func TestMipLevelCount(t *testing.T) {
	require.Equal(t, uint32(9), MipLevelCount(256, 256, 1))
	require.Equal(t, uint32(9), MipLevelCount(256, 16, 1))
	require.Equal(t, uint32(1), MipLevelCount(1, 1, 1))
	require.Equal(t, uint32(6), MipLevelCount(4, 4, 32))

	require.Equal(t, uint32(64), MipExtent(256, 2))
	require.Equal(t, uint32(1), MipExtent(4, 5))
	require.Equal(t, uint32(1), MipExtent(4, 40))
}
