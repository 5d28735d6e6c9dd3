package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Frame is a dequeued buffer handed to a Consumer. Data aliases the mapped
// driver memory and is only valid until Persist returns.
type Frame struct {
	Index     int
	Sequence  uint32
	Timestamp time.Duration
	Width     int
	Height    int
	Data      []byte
}

// Consumer stores or encodes frames. It must not keep Data after Persist
// returns; the buffer goes back to the driver right away.
type Consumer interface {
	Persist(Frame) error
}

type ConsumerFunc func(Frame) error

func (f ConsumerFunc) Persist(fr Frame) error { return f(fr) }

// CaptureFrames runs the wait, dequeue, persist, requeue cycle until n frames
// have been handed to c. n below 1 means 1.
//
// On a stopped session it returns immediately without touching the device.
// Any failure ends the run and leaves streaming on. ctx is only checked
// between frames, a wait in progress is not interrupted.
//
// Empty reads retried under EmptyReadRetry share the frame's timeout: a
// frame that yields no data for the whole timeout ends the run with
// ErrCaptureTimeout.
func (s *Session) CaptureFrames(ctx context.Context, n int, c Consumer) (int, error) {
	if s.closed {
		return 0, s.fail("capture", ErrClosed, -1, nil)
	}
	if s.state != StreamOn {
		return 0, nil
	}
	if s.broken != nil {
		return 0, s.broken
	}
	if n < 1 {
		n = 1
	}

	captured := 0
	frameStart := time.Now()
	for remaining := n; remaining > 0; {
		if err := ctx.Err(); err != nil {
			return captured, err
		}
		if err := s.waitReady(); err != nil {
			return captured, err
		}
		persisted, err := s.readFrame(c)
		if err != nil {
			return captured, err
		}
		switch {
		case persisted:
			captured++
			remaining--
			frameStart = time.Now()
		case s.opts.emptyRead == EmptyReadSkip:
			remaining--
			frameStart = time.Now()
		case time.Since(frameStart) >= s.opts.timeout:
			return captured, s.fail("wait for frame (select)", ErrCaptureTimeout, -1,
				fmt.Errorf("no frame data after %s", s.opts.timeout))
		}
	}
	s.logger.Debugf("camera: %s captured %d/%d frames", s.path, captured, n)

	return captured, nil
}

// waitReady blocks until a buffer is ready. Interrupted waits start over
// with the full timeout.
func (s *Session) waitReady() error {
	var ready bool
	err := retryInterrupted(func() (err error) {
		ready, err = s.dev.WaitReady(s.opts.timeout)
		return err
	})
	if err != nil {
		return s.fail("wait for frame (select)", ErrWaitFailed, -1, err)
	}
	if !ready {
		return s.fail("wait for frame (select)", ErrCaptureTimeout, -1,
			fmt.Errorf("no buffer ready after %s", s.opts.timeout))
	}
	return nil
}

// readFrame dequeues one buffer, passes it to c and queues it again. It
// reports whether a frame reached the consumer.
func (s *Session) readFrame(c Consumer) (bool, error) {
	slot, buf, err := s.pool.dequeue()
	switch {
	case err == nil:
	case errors.Is(err, unix.EAGAIN):
		s.logger.Warnf("camera: %s signalled ready but had no frame (%s)", s.path, s.opts.emptyRead)
		return false, nil
	case errors.Is(err, ErrInvalidBuffer):
		return false, err
	default:
		return false, s.fail("dequeue buffer (VIDIOC_DQBUF)", ErrDequeueFailed, -1, err)
	}

	var persistErr error
	data := slot.Bytes()
	if len(data) > 0 {
		persistErr = c.Persist(Frame{
			Index:     slot.Index(),
			Sequence:  buf.Sequence,
			Timestamp: buf.Timestamp,
			Width:     s.width,
			Height:    s.height,
			Data:      data,
		})
	} else {
		s.logger.Warnf("camera: %s buffer %d came back empty", s.path, slot.Index())
	}

	if err := s.pool.queue(slot); err != nil {
		s.broken = s.fail("requeue buffer (VIDIOC_QBUF)", ErrRequeueFailed, slot.Index(), err)
		if persistErr != nil {
			return false, multierr.Append(s.broken, s.fail("persist frame", ErrPersistFailed, slot.Index(), persistErr))
		}
		return false, s.broken
	}
	if persistErr != nil {
		return false, s.fail("persist frame", ErrPersistFailed, slot.Index(), persistErr)
	}
	s.logger.Debugf("camera: %s frame #%d from buffer %d, %d bytes", s.path, buf.Sequence, slot.Index(), len(data))

	return len(data) > 0, nil
}
