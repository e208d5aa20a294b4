package metadata

/** @brief Marks an unassigned id or generation. */
const InvalidID uint32 = 4294967295

// GetAligned rounds operand up to a multiple of granularity, which must be
// a power of two.
func GetAligned(operand, granularity uint32) uint32 {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}
