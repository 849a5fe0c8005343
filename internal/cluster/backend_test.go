package cluster

import "testing"

func TestRoundOffMaxThreadsPerAgentBands(t *testing.T) {
	cases := map[int]int{
		1:   0,
		3:   5,
		8:   10,
		25:  30,
		45:  50,
		75:  100,
		120: 100,
	}
	for in, want := range cases {
		if got := RoundOffMaxThreadsPerAgent(in); got != want {
			t.Errorf("RoundOffMaxThreadsPerAgent(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRoundOffMaxThreadsPerAgentIsIdempotent(t *testing.T) {
	for _, x := range []int{3, 8, 25, 45, 75, 120, 500} {
		once := RoundOffMaxThreadsPerAgent(x)
		twice := RoundOffMaxThreadsPerAgent(once)
		if once != twice {
			t.Errorf("RoundOffMaxThreadsPerAgent not idempotent for %d: f(x)=%d, f(f(x))=%d", x, once, twice)
		}
	}
}

func TestDefaultMaxThreadsPerAgentKnownInstanceType(t *testing.T) {
	if got := DefaultMaxThreadsPerAgent("m5.large"); got != RoundOffMaxThreadsPerAgent(25) {
		t.Errorf("DefaultMaxThreadsPerAgent(m5.large) = %d, want %d", got, RoundOffMaxThreadsPerAgent(25))
	}
}

func TestDefaultMaxThreadsPerAgentUnknownInstanceTypeFallsBackConservatively(t *testing.T) {
	got := DefaultMaxThreadsPerAgent("z9.mystery")
	if got < 3 || got > 10000 {
		t.Fatalf("DefaultMaxThreadsPerAgent(unknown) = %d, want a clamped value in [3, 10000]", got)
	}
}
