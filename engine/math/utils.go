package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// MaxPowerOfTwo is the largest power of two a uint32 holds.
const MaxPowerOfTwo uint32 = 1 << 31

// NextPowerOfTwo returns the smallest power of two >= v. Zero maps to one;
// values above MaxPowerOfTwo saturate to it.
func NextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	if v > MaxPowerOfTwo {
		return MaxPowerOfTwo
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// PrevPowerOfTwo returns the largest power of two <= v. Zero maps to zero.
func PrevPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	if v >= MaxPowerOfTwo {
		return MaxPowerOfTwo
	}
	p := NextPowerOfTwo(v)
	if p == v {
		return v
	}
	return p >> 1
}

// MipLevelCount is the length of a full mip chain down to 1x1x1.
func MipLevelCount(width, height, depth uint32) uint32 {
	largest := max(width, height, depth)
	levels := uint32(1)
	for largest > 1 {
		largest >>= 1
		levels++
	}
	return levels
}

// MipExtent is the size of a dimension at the given level, never below one.
func MipExtent(size, level uint32) uint32 {
	if level >= 32 {
		return 1
	}
	return max(size>>level, 1)
}
