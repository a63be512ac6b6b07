package timeutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_SleepElapses(t *testing.T) {
	clock := RealClock{}
	start := time.Now()

	if err := clock.Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep returned %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 10ms", elapsed)
	}
}

func TestRealClock_SleepCancelled(t *testing.T) {
	clock := RealClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled Sleep should return promptly")
	}
}

func TestRealClock_ZeroDelay(t *testing.T) {
	if err := (RealClock{}).Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned %v", err)
	}
}

func TestMockClock_RecordsSleeps(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	_ = clock.Sleep(context.Background(), 50*time.Millisecond)
	_ = clock.Sleep(context.Background(), 50*time.Millisecond)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("got %d sleeps, want 2", len(sleeps))
	}
	if got := clock.Now().Sub(start); got != 100*time.Millisecond {
		t.Errorf("clock advanced %v, want 100ms", got)
	}
}

func TestMockClock_OnSleepHook(t *testing.T) {
	clock := NewMockClock(time.Time{})
	var calls []int
	clock.OnSleep = func(n int) { calls = append(calls, n) }

	_ = clock.Sleep(context.Background(), time.Millisecond)
	_ = clock.Sleep(context.Background(), time.Millisecond)

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("OnSleep calls = %v, want [1 2]", calls)
	}
}

func TestMockClock_CancelledContext(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := clock.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep error = %v, want context.Canceled", err)
	}
	if len(clock.Sleeps()) != 0 {
		t.Error("cancelled sleep should not be recorded")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Minute)

	if !clock.Now().Equal(start.Add(time.Minute)) {
		t.Errorf("Now() = %v after Advance", clock.Now())
	}
}
