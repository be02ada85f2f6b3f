package rangecalc

// AlignTick returns the greatest multiple of spacing that is <= tick.
// spacing must be positive.
func AlignTick(tick, spacing int32) int32 {
	compressed := tick / spacing
	// Go division truncates toward zero; negative non-multiples need one more step down.
	if tick < 0 && tick%spacing != 0 {
		compressed--
	}
	return compressed * spacing
}
