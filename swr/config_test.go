package swr

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", nil, false},
		{"zero intervals", func(c *Config) {
			c.DedupingInterval = 0
			c.LoadingTimeout = 0
			c.FocusThrottleInterval = 0
			c.ErrorRetryInterval = 0
		}, false},
		{"negative deduping interval", func(c *Config) { c.DedupingInterval = -time.Second }, true},
		{"negative loading timeout", func(c *Config) { c.LoadingTimeout = -time.Second }, true},
		{"negative focus throttle", func(c *Config) { c.FocusThrottleInterval = -time.Second }, true},
		{"negative retry interval", func(c *Config) { c.ErrorRetryInterval = -time.Second }, true},
		{"negative retry count", func(c *Config) { c.ErrorRetryCount = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestConfig_WithDefaultsFillsPredicates(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Compare == nil || !cfg.Compare([]int{1}, []int{1}) {
		t.Error("default compare must deep-equal")
	}
	if cfg.IsPaused == nil || cfg.IsPaused() {
		t.Error("default must not be paused")
	}
	if cfg.IsOnline == nil || !cfg.IsOnline() {
		t.Error("default must be online")
	}
	if cfg.IsVisible == nil || !cfg.IsVisible() {
		t.Error("default must be visible")
	}
	if cfg.ShouldRetryOnError == nil || !cfg.ShouldRetryOnError(nil) {
		t.Error("default retry policy must retry")
	}
	if cfg.Logger == nil {
		t.Error("default logger must be set")
	}
}

func TestDefaultConfig_Intervals(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DedupingInterval != 2*time.Second {
		t.Errorf("deduping interval: %v", cfg.DedupingInterval)
	}
	if cfg.LoadingTimeout != 3*time.Second {
		t.Errorf("loading timeout: %v", cfg.LoadingTimeout)
	}
	if cfg.FocusThrottleInterval != 5*time.Second {
		t.Errorf("focus throttle: %v", cfg.FocusThrottleInterval)
	}
	if cfg.ErrorRetryInterval != 5*time.Second {
		t.Errorf("retry interval: %v", cfg.ErrorRetryInterval)
	}
	if !cfg.RevalidateOnFocus || !cfg.RevalidateOnReconnect {
		t.Error("focus and reconnect revalidation default on")
	}
}

func TestRetryBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond

	for count := 0; count < 12; count++ {
		d := retryBackoff(base, count)
		exp := time.Duration(1) << min(count, 8)
		lo := base * exp / 2
		hi := base * exp * 3 / 2
		if d < lo || d > hi {
			t.Errorf("backoff(%d) = %v, want within [%v, %v]", count, d, lo, hi)
		}
	}
}
