package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webcam-shutter/pkg/camera"
)

type fakeShooter struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeShooter) Shoot(_ context.Context, n int, c camera.Consumer) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	if f.err != nil {
		return 0, f.err
	}
	for i := 0; i < n; i++ {
		if err := c.Persist(camera.Frame{Index: i, Data: []byte{1}}); err != nil {
			return i, err
		}
	}
	return n, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shooter := &fakeShooter{}
	var mu sync.Mutex
	frames := 0
	s := New(ctx, shooter, camera.ConsumerFunc(func(camera.Frame) error {
		mu.Lock()
		frames++
		mu.Unlock()
		return nil
	}))

	s.Begin(10*time.Millisecond, 2)
	waitFor(t, func() bool { return s.Status().Runs >= 2 })
	s.Stop()

	st := s.Status()
	if st.Running || st.Runs < 2 || st.Count != 2 {
		t.Fatalf("status = %+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if frames < 4 {
		t.Fatalf("frames = %d", frames)
	}
}

func TestSchedulerRecordsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shooter := &fakeShooter{err: errors.New("capture timeout")}
	s := New(ctx, shooter, camera.ConsumerFunc(func(camera.Frame) error { return nil }))
	s.Begin(10*time.Millisecond, 1)
	waitFor(t, func() bool { return s.Status().Runs >= 1 })
	s.Stop()

	if s.Status().LastErr != "capture timeout" {
		t.Fatalf("status = %+v", s.Status())
	}
}
