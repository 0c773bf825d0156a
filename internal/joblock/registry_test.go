package joblock

import (
	"errors"
	"testing"
	"time"
)

func TestTryAcquireWhileHeld(t *testing.T) {
	r := NewRegistry()

	if !r.TryAcquire("ingest") {
		t.Fatal("first TryAcquire returned false")
	}
	if r.TryAcquire("ingest") {
		t.Error("second TryAcquire succeeded while held")
	}

	// A different job name is independent.
	if !r.TryAcquire("reminder") {
		t.Error("TryAcquire for unrelated name returned false")
	}

	r.Release("ingest")
	if !r.TryAcquire("ingest") {
		t.Error("TryAcquire after Release returned false")
	}
}

func TestTryAcquireDoesNotBlock(t *testing.T) {
	r := NewRegistry()
	r.TryAcquire("ingest")

	done := make(chan bool, 1)
	go func() {
		done <- r.TryAcquire("ingest")
	}()

	select {
	case got := <-done:
		if got {
			t.Error("TryAcquire succeeded while held")
		}
	case <-time.After(time.Second):
		t.Fatal("TryAcquire blocked")
	}
}

func TestDoReleasesOnError(t *testing.T) {
	r := NewRegistry()

	wantErr := errors.New("job failed")
	if err := r.Do("ingest", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Do error = %v, want %v", err, wantErr)
	}

	if !r.TryAcquire("ingest") {
		t.Error("lock still held after failed Do")
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	r := NewRegistry()

	func() {
		defer func() { recover() }()
		r.Do("ingest", func() error { panic("boom") })
	}()

	if !r.TryAcquire("ingest") {
		t.Error("lock still held after panicking Do")
	}
}

func TestDoBusy(t *testing.T) {
	r := NewRegistry()
	r.TryAcquire("ingest")

	called := false
	err := r.Do("ingest", func() error {
		called = true
		return nil
	})
	if !IsBusy(err) {
		t.Errorf("err = %v, want busy", err)
	}
	if called {
		t.Error("fn ran while lock held")
	}
}
