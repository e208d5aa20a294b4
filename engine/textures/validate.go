package textures

import (
	"github.com/spaghettifunk/texstream/engine/math"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/renderer/metadata"
)

// ValidateSize returns the nearest extents the device accepts for a texture
// of the given shape: zero extents become one, power-of-two devices round
// up, every extent is capped at the device maximum and square-only devices
// take the larger of width and height. Non-volume shapes always get a depth
// of one.
func ValidateSize(limits renderer.Limits, shape metadata.TextureType, width, height, depth uint32) (uint32, uint32, uint32) {
	width, height, depth = max(width, 1), max(height, 1), max(depth, 1)
	maxDim := limits.MaxTextureDimension
	if shape == metadata.TextureTypeVolume {
		maxDim = limits.MaxVolumeDimension
	} else {
		depth = 1
	}

	if limits.PowerOfTwoOnly {
		width = math.NextPowerOfTwo(width)
		height = math.NextPowerOfTwo(height)
		depth = math.NextPowerOfTwo(depth)
		if maxDim > 0 {
			maxDim = math.PrevPowerOfTwo(maxDim)
		}
	}
	if maxDim > 0 {
		width = math.Clamp(width, 1, maxDim)
		height = math.Clamp(height, 1, maxDim)
		depth = math.Clamp(depth, 1, maxDim)
	}
	if limits.SquareOnly {
		side := max(width, height)
		width, height = side, side
	}
	return width, height, depth
}
