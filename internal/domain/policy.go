package domain

import "math"

// DefaultThreshold is the relative close-price change (0.1%) above which a
// tick is worth persisting.
const DefaultThreshold = 0.001

// ChangePolicy decides whether a tick is significant enough for a durable
// write. Ticker feeds emit sub-threshold noise at high frequency; this is the
// load shedding on the persistence path.
type ChangePolicy struct {
	Threshold float64
}

func NewChangePolicy(threshold float64) ChangePolicy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return ChangePolicy{Threshold: threshold}
}

// Significant reports whether close is worth persisting given the previous
// snapshot. First observation is always significant. A previous close of 0
// is significant too: the relative change cannot be computed.
func (p ChangePolicy) Significant(prev Snapshot, close float64) bool {
	if !prev.Has {
		return true
	}
	if prev.Close == 0 {
		return true
	}
	th := p.Threshold
	if th <= 0 {
		th = DefaultThreshold
	}
	return math.Abs(close/prev.Close-1) > th
}
