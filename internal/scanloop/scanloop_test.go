package scanloop

import (
	"testing"
	"time"
)

func TestRun_FiresAndStops(t *testing.T) {
	fired := make(chan struct{}, 64)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		Run(stop, 5*time.Millisecond, 5*time.Millisecond, func() {
			fired <- struct{}{}
		})
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scan function never ran")
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stop")
	}
}

func TestRun_NoImmediateFire(t *testing.T) {
	fired := make(chan struct{}, 1)
	stop := make(chan struct{})
	defer close(stop)

	go Run(stop, 500*time.Millisecond, 0, func() {
		fired <- struct{}{}
	})

	select {
	case <-fired:
		t.Fatal("first execution should wait a full interval")
	case <-time.After(100 * time.Millisecond):
	}
}
