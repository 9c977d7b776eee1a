package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerRunsAndStops(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, _ time.Time) error {
			if runs.Add(1) >= 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	if runs.Load() < 2 {
		t.Fatalf("expected at least 2 runs, got %d", runs.Load())
	}
}

func TestSchedulerContinuesAfterFailure(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, _ time.Time) error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return errors.New("transient failure")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler must keep going after a failed run")
	}

	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs despite failures, got %d", runs.Load())
	}
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive interval")
		}
	}()
	New(Options{Interval: 0}, zerolog.Nop())
}

func TestNextRunAlignment(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToInterval: true}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 12, 2, 30, 0, time.UTC)
	next := s.nextRun(now)

	want := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected aligned next run %s, got %s", want, next)
	}
}
