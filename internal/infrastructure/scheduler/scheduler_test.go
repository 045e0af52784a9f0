package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunTicksImmediatelyAndOnEachTick(t *testing.T) {
	ticks := make(chan time.Time)
	calls := 0
	done := make(chan struct{})

	s := NewInterval(time.Second, func(context.Context) error {
		calls++
		if calls == 3 {
			close(done)
		}
		return nil
	}, nil)
	s.ticks = ticks

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- s.Run(ctx) }()

	ticks <- time.Now()
	ticks <- time.Now()
	<-done
	cancel()

	if err := <-finished; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 ticks (1 immediate + 2 timed), got %d", calls)
	}
}

func TestRunKeepsGoingAfterTickError(t *testing.T) {
	ticks := make(chan time.Time)
	calls := 0
	done := make(chan struct{})

	s := NewInterval(time.Second, func(context.Context) error {
		calls++
		if calls == 2 {
			close(done)
		}
		return errors.New("tick failed")
	}, nil)
	s.ticks = ticks

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- s.Run(ctx) }()

	ticks <- time.Now()
	<-done
	cancel()
	<-finished

	if calls != 2 {
		t.Fatalf("expected loop to survive errors, got %d calls", calls)
	}
}
