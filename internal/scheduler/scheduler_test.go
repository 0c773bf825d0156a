package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mentorlab/mentorbot/internal/storage"
)

type recordingHealth struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingHealth) LogHealth(component, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, component+"/"+status+"/"+message)
	return nil
}

func (r *recordingHealth) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New([]Job{{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()

	if got := runs.Load(); got < 3 {
		t.Errorf("job ran %d times, want at least 3 (initial run plus ticks)", got)
	}
}

func TestSchedulerSurvivesPanickingJob(t *testing.T) {
	var healthy atomic.Int32
	s := New([]Job{
		{
			Name:     "broken",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				panic("job blew up")
			},
		},
		{
			Name:     "healthy",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				healthy.Add(1)
				return nil
			},
		},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for healthy.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()

	if got := healthy.Load(); got < 3 {
		t.Errorf("healthy job ran %d times next to a panicking one, want at least 3", got)
	}
}

func TestSchedulerRecordsFailuresAsHealthEvents(t *testing.T) {
	health := &recordingHealth{}
	var fired atomic.Bool
	s := New([]Job{
		{
			Name:     "failing",
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				return errors.New("feed timeout")
			},
		},
		{
			Name:     "panicking",
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				fired.Store(true)
				panic("job blew up")
			},
		},
	}, health)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for len(health.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()

	events := health.snapshot()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want 2: %v", len(events), events)
	}
	var sawFailure, sawPanic bool
	for _, e := range events {
		switch {
		case strings.HasPrefix(e, "job:failing/"+storage.StatusError) && strings.Contains(e, "feed timeout"):
			sawFailure = true
		case strings.HasPrefix(e, "job:panicking/"+storage.StatusError) && strings.Contains(e, "job blew up"):
			sawPanic = true
		}
	}
	if !sawFailure || !sawPanic {
		t.Errorf("events = %v, want a failure and a panic record", events)
	}
	if !fired.Load() {
		t.Error("panicking job never ran")
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	s := New([]Job{{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("always fails")
		},
	}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	s.Wait()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("job kept running after cancel: %d then %d", after, got)
	}
}
