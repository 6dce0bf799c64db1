// Package frecency persists per-file access history and derives the
// access/modification boost fed back into the index. Scores are never
// stored directly - only the raw events
// and timestamps they're derived from - so changing the decay constants
// takes effect on the next read without a migration.
package frecency

import (
	"math"
	"time"
)

// maxAccessEvents bounds how many timestamps a record keeps; the oldest is
// evicted once a new access would exceed it.
const maxAccessEvents = 32

// Time constants for the two decay curves. Access decays slowly (days);
// modification recency decays fast (hours) so that a file edited minutes
// ago dominates one edited last week.
const (
	accessDecayConstant       = 3 * 24 * time.Hour
	modificationDecayConstant = 12 * time.Hour

	maxScore     = 10
	accessScale  = 6.0 // tunes how quickly accumulated decay saturates at maxScore
	modScale     = 9.0
	gitDirtyBump = 3
)

// record is the persisted unit: one per absolute path.
type record struct {
	Path         string
	AccessEvents []int64 // unix seconds, monotonic non-decreasing
	LastSeen     int64
	LastModified int64
	Dirty        bool
}

func (r *record) addAccess(at int64) {
	r.AccessEvents = append(r.AccessEvents, at)
	if len(r.AccessEvents) > maxAccessEvents {
		r.AccessEvents = r.AccessEvents[len(r.AccessEvents)-maxAccessEvents:]
	}
	r.LastSeen = at
}

func decay(delta time.Duration, tau time.Duration) float64 {
	if delta < 0 {
		delta = 0
	}
	return math.Exp(-delta.Seconds() / tau.Seconds())
}

// accessScore buckets the decayed sum of access events into 0..maxScore.
func (r *record) accessScore(now time.Time) int {
	if r == nil || len(r.AccessEvents) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range r.AccessEvents {
		sum += decay(now.Sub(time.Unix(t, 0)), accessDecayConstant)
	}
	score := int(math.Floor(accessScale * sum))
	return clampScore(score)
}

// modificationScore combines decay since the last observed modification
// time with a fixed bump when git currently reports the file dirty.
func (r *record) modificationScore(now time.Time) int {
	if r == nil || r.LastModified == 0 {
		return 0
	}
	base := modScale * decay(now.Sub(time.Unix(r.LastModified, 0)), modificationDecayConstant)
	score := int(math.Floor(base))
	if r.Dirty {
		score += gitDirtyBump
	}
	return clampScore(score)
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > maxScore {
		return maxScore
	}
	return s
}
