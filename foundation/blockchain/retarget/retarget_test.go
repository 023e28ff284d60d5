package retarget_test

import (
	"testing"
	"time"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/retarget"
)

func newStrategy() *retarget.SlidingWindow {
	return retarget.NewSlidingWindow(genesis.Genesis{
		RetargetWindow:        4,
		TargetBlockTime:       10 * time.Second,
		NumZerosAtLeastInHash: 1,
		MaxMiningTarget:       6,
	})
}

func stamps(interval time.Duration, n int) []time.Time {
	base := time.Unix(1_700_000_000, 0)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * interval)
	}
	return out
}

func Test_FastBlocksRaiseDifficulty(t *testing.T) {
	sw := newStrategy()

	got := sw.NextTarget(stamps(2*time.Second, 4), 3)
	if got != 4 {
		t.Fatalf("blocks at 2s against a 10s target should raise difficulty to 4, got %d", got)
	}
}

func Test_SlowBlocksLowerDifficulty(t *testing.T) {
	sw := newStrategy()

	got := sw.NextTarget(stamps(30*time.Second, 4), 3)
	if got != 2 {
		t.Fatalf("blocks at 30s against a 10s target should lower difficulty to 2, got %d", got)
	}
}

func Test_OnPaceBlocksHoldDifficulty(t *testing.T) {
	sw := newStrategy()

	got := sw.NextTarget(stamps(10*time.Second, 4), 3)
	if got != 3 {
		t.Fatalf("blocks on pace should hold difficulty at 3, got %d", got)
	}
}

func Test_TargetNeverLeavesTheClampRange(t *testing.T) {
	sw := newStrategy()

	if got := sw.NextTarget(stamps(time.Second, 4), 6); got != 6 {
		t.Fatalf("difficulty must not exceed the ceiling, got %d", got)
	}

	if got := sw.NextTarget(stamps(time.Minute, 4), 1); got != 1 {
		t.Fatalf("difficulty must not drop below the floor, got %d", got)
	}
}

func Test_TooFewTimestampsHoldDifficulty(t *testing.T) {
	sw := newStrategy()

	if got := sw.NextTarget(nil, 3); got != 3 {
		t.Fatalf("an empty window should hold the current target, got %d", got)
	}
}

func Test_OnlyTheWindowTailIsInspected(t *testing.T) {
	sw := newStrategy()

	// Eight slow blocks followed by four fast ones: only the fast tail
	// falls inside the window of four.
	ts := stamps(time.Minute, 8)
	last := ts[len(ts)-1]
	for i := 1; i <= 4; i++ {
		ts = append(ts, last.Add(time.Duration(i)*time.Second))
	}

	if got := sw.NextTarget(ts, 3); got != 4 {
		t.Fatalf("the fast tail should raise difficulty to 4, got %d", got)
	}
}
