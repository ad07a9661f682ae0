package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())

	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	if err := s.Start(t.Context()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"*/5 * * * *", "@every 30s", "@hourly"} {
		if err := ValidateSchedule(expr); err != nil {
			t.Errorf("ValidateSchedule(%q): %v", expr, err)
		}
	}
	for _, expr := range []string{"", "invalid", "60 * * * *", "* * * * * *"} {
		if err := ValidateSchedule(expr); err == nil {
			t.Errorf("ValidateSchedule(%q) should fail", expr)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil) // should not panic
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_EveryDescriptorFires(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "tick",
		schedule: "@every 1s",
		runFunc: func(context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	var concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})

	job := &simpleJob{
		name:     "slow",
		schedule: "@every 1h",
		runFunc: func(_ context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			<-release
			concurrent.Add(-1)
			return nil
		},
	}
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan bool)
	go func() {
		ran, _ := s.RunNow("slow")
		done <- ran
	}()
	for concurrent.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// The first run holds the lock, so these are skipped.
	var wg sync.WaitGroup
	var skipped atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ran, _ := s.RunNow("slow"); !ran {
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	if !<-done {
		t.Error("first run should have executed")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if skipped.Load() != 10 {
		t.Errorf("skipped = %d, want 10", skipped.Load())
	}
	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "@every 1h",
		runFunc: func(_ context.Context) error {
			return errors.New("job failed")
		},
	})

	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if ran, err := s.RunNow("failing"); err != nil || !ran {
		t.Errorf("RunNow = %v, %v", ran, err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
