package camera

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"webcam-shutter/pkg/utils"
)

const (
	DefaultDevice      = "/dev/video0"
	DefaultBufferCount = 4
	DefaultTimeout     = 2 * time.Second

	// MinBufferCount is the smallest ring a session accepts from the driver.
	MinBufferCount = 2
)

// EmptyReadPolicy decides what a capture iteration does when the driver
// reports EAGAIN on dequeue after signalling readiness.
type EmptyReadPolicy int

const (
	// EmptyReadRetry goes back to waiting and leaves the frame budget alone.
	EmptyReadRetry EmptyReadPolicy = iota
	// EmptyReadSkip counts the iteration as done without persisting a frame,
	// so a burst may deliver fewer frames than requested.
	EmptyReadSkip
)

func (p EmptyReadPolicy) String() string {
	switch p {
	case EmptyReadRetry:
		return "retry"
	case EmptyReadSkip:
		return "skip"
	}
	return "unknown"
}

func ParseEmptyReadPolicy(s string) (EmptyReadPolicy, error) {
	switch s {
	case "", "retry":
		return EmptyReadRetry, nil
	case "skip":
		return EmptyReadSkip, nil
	}
	return 0, fmt.Errorf("unknown empty read policy %q", s)
}

type options struct {
	driver    Driver
	buffers   uint32
	timeout   time.Duration
	emptyRead EmptyReadPolicy
	controls  map[uint32]int32
	logger    *zap.SugaredLogger
}

type Option func(*options)

func defaultOptions() options {
	return options{
		driver:  linuxDriver{},
		buffers: DefaultBufferCount,
		timeout: DefaultTimeout,
		logger:  utils.GetLogger(),
	}
}

func WithDriver(d Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithBufferCount sets how many buffers are requested; the driver may grant
// a different number.
func WithBufferCount(n uint32) Option {
	return func(o *options) { o.buffers = n }
}

// WithTimeout bounds each readiness wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithEmptyReadPolicy(p EmptyReadPolicy) Option {
	return func(o *options) { o.emptyRead = p }
}

// WithControls sets V4L2 control values right after the format is pushed.
// Failures are logged and ignored.
func WithControls(ctrls map[uint32]int32) Option {
	return func(o *options) { o.controls = ctrls }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}
