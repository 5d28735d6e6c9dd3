package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func newMockController(drv *mockDriver, opts ...Option) *Controller {
	opts = append([]Option{WithDriver(drv), WithLogger(zap.NewNop().Sugar())}, opts...)
	return NewController(DefaultDevice, 640, 480, opts...)
}

func TestControllerOpensLazily(t *testing.T) {
	dev := newMockDevice()
	drv := newMockDriver(dev)
	c := newMockController(drv)

	if drv.opens != 0 || c.IsStarted() {
		t.Fatal("controller must not open the device before use")
	}
	if st := c.Status(); st.Open || st.State != "off" {
		t.Fatalf("status before use = %+v", st)
	}

	rec := &recorder{}
	n, err := c.Shoot(context.Background(), 2, rec)
	checkErr(t, err)
	if n != 2 || !c.IsStarted() {
		t.Fatalf("captured %d, started %v", n, c.IsStarted())
	}

	st := c.Status()
	if !st.Open || st.State != "on" || st.Buffers != 4 || st.Captured != 2 || st.Card != "Mock Camera" {
		t.Fatalf("status = %+v", st)
	}

	checkErr(t, c.Close())
	if c.IsStarted() || dev.closed != 1 {
		t.Fatal("close must release the device")
	}
	checkErr(t, c.Close())
}

func TestControllerReopensAfterTimeout(t *testing.T) {
	dev := newMockDevice()
	dev.waits = []waitResult{{ready: false}}
	drv := newMockDriver(dev)
	c := newMockController(drv, WithTimeout(20*time.Millisecond))

	_, err := c.Shoot(context.Background(), 1, &recorder{})
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Fatalf("err = %v, want ErrCaptureTimeout", err)
	}
	if c.Status().Open {
		t.Fatal("session must be dropped after a timeout")
	}

	n, err := c.Shoot(context.Background(), 1, &recorder{})
	checkErr(t, err)
	if n != 1 || drv.opens != 2 {
		t.Fatalf("captured %d with %d opens", n, drv.opens)
	}
	checkErr(t, c.Close())
}

func TestControllerKeepsSessionOnPersistError(t *testing.T) {
	dev := newMockDevice()
	drv := newMockDriver(dev)
	c := newMockController(drv)

	_, err := c.Shoot(context.Background(), 1, &recorder{err: errors.New("no space")})
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("err = %v, want ErrPersistFailed", err)
	}
	if !c.IsStarted() {
		t.Fatal("persist failure must not drop the session")
	}
	checkErr(t, c.Close())
}

func TestControllerSerializesShots(t *testing.T) {
	dev := newMockDevice()
	c := newMockController(newMockDriver(dev))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Shoot(context.Background(), 2, &recorder{}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if st := c.Status(); st.Captured != 8 {
		t.Fatalf("captured = %d, want 8", st.Captured)
	}
	if dev.maxHeld > 1 {
		t.Fatalf("%d buffers held at once", dev.maxHeld)
	}
	checkErr(t, c.Close())
}

func TestControllerCloseKeepsEveryError(t *testing.T) {
	dev := newMockDevice()
	c := newMockController(newMockDriver(dev))

	_, err := c.Shoot(context.Background(), 1, &recorder{})
	checkErr(t, err)

	dev.streamOffErr = unix.EIO
	dev.closeErr = unix.EBADF
	err = c.Close()
	if !errors.Is(err, ErrStreamOffFailed) || !errors.Is(err, ErrCloseFailed) {
		t.Fatalf("err = %v, want both stream off and close failures", err)
	}
	if c.Status().Open || dev.closed != 1 {
		t.Fatal("session must be dropped even when teardown fails")
	}
}
