package crawler_test

import (
	"context"
	"testing"
	"time"

	"github.com/corvidwing/webreach/crawler"
)

func TestRateLimiterWaitAdmitsImmediatelyWithinBurst(t *testing.T) {
	rl := crawler.NewRateLimiter(10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
}

func TestRateLimiterThrottlesToConfiguredRate(t *testing.T) {
	rl := crawler.NewRateLimiter(5) // burst of 5, refill 5/s

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	// Drain burst, then this call should have to wait roughly 1/5s.
	for range 6 {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Errorf("expected wait to be throttled past burst, elapsed only %v", elapsed)
	}
}

func TestRateLimiterWaitRespectsCancellation(t *testing.T) {
	rl := crawler.NewRateLimiter(0.1) // effectively one token every 10s

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Drain the single burst token first.
	_ = rl.Wait(context.Background())

	err := rl.Wait(ctx)
	if err == nil {
		t.Error("expected context deadline error, got nil")
	}
}

func TestRateLimiterCheck(t *testing.T) {
	rl := crawler.NewRateLimiter(1)
	if !rl.Check() {
		t.Error("expected a fresh limiter to have a token available")
	}
}
