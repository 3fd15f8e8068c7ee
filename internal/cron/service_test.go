package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsEveryJobAndCombinesErrors(t *testing.T) {
	ok := &countingJob{name: "ok"}
	first := &countingJob{name: "first", err: errors.New("boom")}
	second := &countingJob{name: "second", err: errors.New("bang")}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, ok, second),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 errors, got %d", got)
	}
	if !strings.Contains(err.Error(), "first: boom") || !strings.Contains(err.Error(), "second: bang") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
	for _, job := range []*countingJob{ok, first, second} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock not released: held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran while lock was held elsewhere")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(job), Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the first cycle to run, ran %d", job.runs)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without lock")
	}
}
