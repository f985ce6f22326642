package game

import "math"

// PointerAngle is where the fixed pointer sits, in the wheel's clockwise
// degree frame (0° at three o'clock, 270° at twelve).
const PointerAngle = 270.0

// SegmentAngle is the arc covered by one of n equal segments
func SegmentAngle(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 360 / float64(n)
}

// TargetRotation returns the absolute rotation that brings the centre of
// segment index under the pointer, continuing clockwise from prev with
// extraTurns full revolutions first. Segment k's centre sits at k*s.
func TargetRotation(prev float64, index, n, extraTurns int) float64 {
	s := SegmentAngle(n)
	delta := normalizeAngle(PointerAngle - float64(index)*s - prev)
	return prev + float64(extraTurns)*360 + delta
}

// SegmentAtPointer is the inverse of TargetRotation: the index of the
// segment under the pointer after rotating by rotation degrees.
func SegmentAtPointer(rotation float64, n int) int {
	if n <= 0 {
		return -1
	}
	s := SegmentAngle(n)
	local := normalizeAngle(PointerAngle - rotation)
	return int(math.Round(local/s)) % n
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	// Values a hair under 360 are 0 for alignment purposes
	if 360-a < 1e-9 {
		return 0
	}
	return a
}
