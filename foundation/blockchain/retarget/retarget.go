// Package retarget computes the proof-of-work difficulty target for the
// next block on a chain. The exact formula is a per-network choice, so it
// hides behind a Strategy interface; one concrete sliding-window strategy
// is fixed for this network.
package retarget

import (
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
)

// Strategy produces the required leading-zero count for the next block on
// a chain, given the timestamps of the chain's most recent blocks in
// ascending order and the target currently in force.
type Strategy interface {
	NextTarget(timestamps []time.Time, current uint16) uint16
}

// SlidingWindow adjusts difficulty one step at a time by comparing the
// average block interval observed across the retarget window against the
// configured target block time. The result is always clamped to the
// network floor and ceiling.
type SlidingWindow struct {
	window          int
	targetBlockTime time.Duration
	floor           uint16
	ceiling         uint16
}

// NewSlidingWindow constructs the strategy from the network's genesis
// parameters.
func NewSlidingWindow(gen genesis.Genesis) *SlidingWindow {
	return &SlidingWindow{
		window:          int(gen.RetargetWindow),
		targetBlockTime: gen.TargetBlockTime,
		floor:           gen.NumZerosAtLeastInHash,
		ceiling:         gen.MaxMiningTarget,
	}
}

// NextTarget implements Strategy. Blocks arriving at less than half the
// target pace raise difficulty by one; blocks arriving at more than twice
// the target pace lower it by one. Anything in between leaves the target
// alone, which keeps the difficulty from oscillating on normal jitter.
func (sw *SlidingWindow) NextTarget(timestamps []time.Time, current uint16) uint16 {
	if len(timestamps) > sw.window {
		timestamps = timestamps[len(timestamps)-sw.window:]
	}

	if len(timestamps) < 2 {
		return sw.clamp(current)
	}

	elapsed := timestamps[len(timestamps)-1].Sub(timestamps[0])
	observed := elapsed / time.Duration(len(timestamps)-1)

	switch {
	case observed < sw.targetBlockTime/2:
		return sw.clamp(current + 1)
	case observed > sw.targetBlockTime*2:
		if current == 0 {
			return sw.clamp(0)
		}
		return sw.clamp(current - 1)
	}

	return sw.clamp(current)
}

func (sw *SlidingWindow) clamp(target uint16) uint16 {
	if target < sw.floor {
		return sw.floor
	}
	if target > sw.ceiling {
		return sw.ceiling
	}
	return target
}
