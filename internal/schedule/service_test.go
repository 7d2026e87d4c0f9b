package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestService(timeout time.Duration) *Service {
	return NewService(slog.New(slog.DiscardHandler), timeout)
}

func TestAddValidatesInput(t *testing.T) {
	svc := newTestService(0)
	noop := func(context.Context) error { return nil }

	if err := svc.Add("", "@hourly", noop); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := svc.Add("sweep", "", noop); err == nil {
		t.Fatal("expected error for empty pattern")
	}
	if err := svc.Add("sweep", "@hourly", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
	if err := svc.Add("sweep", "not a cron", noop); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestAddReplacesExisting(t *testing.T) {
	svc := newTestService(0)
	noop := func(context.Context) error { return nil }

	if err := svc.Add("sweep", "@hourly", noop); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add("sweep", "*/5 * * * *", noop); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := len(svc.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
	if got := len(svc.cron.Entries()); got != 1 {
		t.Fatalf("expected 1 cron entry, got %d", got)
	}
}

func TestJobsReportsNextActivation(t *testing.T) {
	svc := newTestService(0)
	if err := svc.Add("sweep", "@hourly", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	svc.Start()
	defer func() { _ = svc.Stop(context.Background()) }()

	next, ok := svc.Jobs()["sweep"]
	if !ok {
		t.Fatal("expected sweep job")
	}
	if !next.After(time.Now()) || next.After(time.Now().Add(time.Hour+time.Second)) {
		t.Fatalf("unexpected next activation %v", next)
	}
}

func TestJobRunsOnSchedule(t *testing.T) {
	svc := newTestService(0)
	var calls atomic.Int32
	done := make(chan struct{}, 1)
	err := svc.Add("tick", "@every 50ms", func(context.Context) error {
		if calls.Add(1) == 1 {
			done <- struct{}{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	svc.Start()
	svc.Start()
	defer func() { _ = svc.Stop(context.Background()) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestTriggerReportsErrorsAndPanics(t *testing.T) {
	svc := newTestService(0)
	boom := errors.New("boom")

	if err := svc.Trigger("fail", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := svc.Trigger("panic", func(context.Context) error { panic("kaput") }); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if err := svc.Trigger("nil", nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestTriggerAppliesTimeout(t *testing.T) {
	svc := newTestService(20 * time.Millisecond)
	err := svc.Trigger("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	svc := newTestService(0)
	svc.Start()
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	err := svc.Trigger("after-stop", func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled context after stop, got %v", err)
	}
}
