package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
}

func TestNew_InvalidExpr(t *testing.T) {
	if _, err := New("bogus", time.UTC, func(context.Context) error { return nil }, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestScheduler_Fires(t *testing.T) {
	clock := newFakeClock()
	calls := make(chan struct{}, 4)
	s, err := New("@every 1m", time.UTC, func(context.Context) error {
		calls <- struct{}{}
		return nil
	}, clock, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("waiting for timer: %v", err)
		}
		clock.Advance(time.Minute)
		select {
		case <-calls:
		case <-ctx.Done():
			t.Fatalf("job %d never ran", i)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if s.Fired() != 2 {
		t.Fatalf("Fired() = %d", s.Fired())
	}
}

func TestScheduler_SkipsOverlap(t *testing.T) {
	clock := newFakeClock()
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	s, err := New("@every 1m", time.UTC, func(context.Context) error {
		started <- struct{}{}
		<-release
		return errors.New("slow run failed")
	}, clock, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	<-started

	// Second tick while the first run blocks.
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if s.Fired() != 1 || s.Skipped() != 1 {
		t.Fatalf("fired=%d skipped=%d", s.Fired(), s.Skipped())
	}

	close(release)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}
