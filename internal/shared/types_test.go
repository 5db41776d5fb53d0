package shared

import (
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id := NewID("sess_")
	if !strings.HasPrefix(id, "sess_") {
		t.Errorf("expected sess_ prefix, got %s", id)
	}
	if len(id) != len("sess_")+32 {
		t.Errorf("unexpected id length: %d", len(id))
	}
	if id == NewID("sess_") {
		t.Error("ids should be unique")
	}
}

func TestNormalizeBackoff(t *testing.T) {
	cfg := NormalizeBackoff(BackoffConfig{})
	if cfg.Initial != 250*time.Millisecond {
		t.Errorf("Initial = %v, want 250ms", cfg.Initial)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
}

func TestBackoffDelayIsLinear(t *testing.T) {
	cfg := NormalizeBackoff(BackoffConfig{})
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond}
	for i, w := range want {
		if got := cfg.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := BackoffConfig{Initial: 250 * time.Millisecond, MaxAttempts: 100, MaxDelay: time.Second}
	if got := cfg.Delay(50); got != time.Second {
		t.Errorf("Delay(50) = %v, want cap of 1s", got)
	}
}
