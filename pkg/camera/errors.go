package camera

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Error kinds. Every *Error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrNotFound            = errors.New("device not found")
	ErrOpenFailed          = errors.New("can't open device")
	ErrUnsupportedDevice   = errors.New("unsupported device")
	ErrFormatRejected      = errors.New("capture format rejected")
	ErrRequestBuffers      = errors.New("memory mapping not supported")
	ErrInsufficientBuffers = errors.New("insufficient buffer memory")
	ErrMapFailed           = errors.New("can't map buffer")
	ErrEnqueueFailed       = errors.New("buffer exchange error")
	ErrStreamOnFailed      = errors.New("can't start streaming")
	ErrStreamOffFailed     = errors.New("can't stop streaming")
	ErrUnmapFailed         = errors.New("can't unmap buffer")
	ErrCloseFailed         = errors.New("can't close device")
	ErrCaptureTimeout      = errors.New("capture timeout")
	ErrWaitFailed          = errors.New("wait for frame failed")
	ErrDequeueFailed       = errors.New("read frame problem")
	ErrInvalidBuffer       = errors.New("driver returned an unknown buffer")
	ErrRequeueFailed       = errors.New("can't requeue buffer")
	ErrPersistFailed       = errors.New("can't persist frame")
	ErrClosed              = errors.New("session closed")
)

var errNotCharDevice = errors.New("not a character device")

// Error records the operation that failed, the device it ran against and
// the underlying system error.
type Error struct {
	Op   string
	Kind error
	Path string
	// Index is the buffer slot involved, or -1.
	Index int
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("camera: ")
	b.WriteString(e.Op)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " [buffer %d]", e.Index)
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	if e.Err == nil {
		b.WriteString(e.Kind.Error())
		return b.String()
	}
	b.WriteString(e.Err.Error())
	if errno, ok := e.Errno(); ok {
		fmt.Fprintf(&b, " (errno %d)", int(errno))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return e.Kind == target }

// Errno returns the platform error code behind e, if there is one.
func (e *Error) Errno() (unix.Errno, bool) {
	var errno unix.Errno
	if errors.As(e.Err, &errno) {
		return errno, true
	}
	return 0, false
}

func (s *Session) fail(op string, kind error, index int, err error) *Error {
	return &Error{Op: op, Kind: kind, Path: s.path, Index: index, Err: err}
}

// retryInterrupted runs fn until it returns something other than EINTR.
func retryInterrupted(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
