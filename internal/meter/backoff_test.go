package meter

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 500 * time.Millisecond}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt %d: got=%v want=%v", i+1, got, w)
		}
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 3, rng)
		if got < 200*time.Millisecond || got > 600*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", got)
		}
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != 200*time.Millisecond {
		t.Fatalf("nil rng jitter: got=%v want=200ms", got)
	}
}

func TestNextBackoffDelayDegenerateConfig(t *testing.T) {
	if got := NextBackoffDelay(BackoffConfig{}, 5, nil); got != 0 {
		t.Fatalf("zero config: got=%v want=0", got)
	}
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 0.1}
	if got := NextBackoffDelay(cfg, 4, nil); got != time.Second {
		t.Fatalf("multiplier floor: got=%v want=1s", got)
	}
}
