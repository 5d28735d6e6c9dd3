package camera

import (
	"fmt"
	"io/fs"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"webcam-shutter/pkg/v4l2"
)

// StreamState is the streaming mode of a session.
type StreamState int

const (
	StreamOff StreamState = iota
	StreamOn
)

func (s StreamState) String() string {
	if s == StreamOn {
		return "on"
	}
	return "off"
}

// Session owns one open capture device and its mapped buffer ring. It is not
// safe for concurrent use; see Controller for a shared wrapper.
type Session struct {
	path   string
	width  int
	height int

	dev    Device
	caps   v4l2.Capability
	format v4l2.PixFormat
	pool   *pool

	state  StreamState
	closed bool
	// broken is set when a buffer could not be given back to the driver.
	broken error

	opts   options
	logger *zap.SugaredLogger
}

// Open validates the device at path, pushes a width x height MJPEG format
// and maps the driver's buffer ring. On any error nothing stays open.
func Open(path string, width, height int, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Session{
		path:   path,
		width:  width,
		height: height,
		opts:   o,
		logger: o.logger,
	}

	mode, err := o.driver.Stat(path)
	if err != nil {
		return nil, s.fail("stat", ErrNotFound, -1, err)
	}
	if mode&fs.ModeCharDevice == 0 {
		return nil, s.fail("stat", ErrNotFound, -1, errNotCharDevice)
	}

	err = retryInterrupted(func() (err error) {
		s.dev, err = o.driver.Open(path)
		return err
	})
	if err != nil {
		return nil, s.fail("open", ErrOpenFailed, -1, err)
	}

	if err := s.negotiate(); err != nil {
		if cerr := s.dev.Close(); cerr != nil {
			err = multierr.Append(err, s.fail("close", ErrCloseFailed, -1, cerr))
		}
		return nil, err
	}

	return s, nil
}

func (s *Session) negotiate() error {
	err := retryInterrupted(func() (err error) {
		s.caps, err = s.dev.QueryCapability()
		return err
	})
	if err != nil {
		return s.fail("query capabilities (VIDIOC_QUERYCAP)", ErrUnsupportedDevice, -1, err)
	}
	if !s.caps.IsVideoCaptureSupported() {
		return s.fail("query capabilities (VIDIOC_QUERYCAP)", ErrUnsupportedDevice, -1,
			fmt.Errorf("%s is not a capture device", s.path))
	}
	if !s.caps.IsStreamingSupported() {
		return s.fail("query capabilities (VIDIOC_QUERYCAP)", ErrUnsupportedDevice, -1,
			fmt.Errorf("%s does not support streaming i/o", s.path))
	}
	s.logger.Infof("camera: %s is %q (driver %s, bus %s)", s.path, s.caps.Card, s.caps.Driver, s.caps.BusInfo)

	if err := retryInterrupted(s.dev.ResetCrop); err != nil {
		s.logger.Debugf("camera: %s crop reset skipped: %s", s.path, err)
	}

	err = retryInterrupted(func() (err error) {
		s.format, err = s.dev.SetFormat(v4l2.PixFormat{
			Width:       uint32(s.width),
			Height:      uint32(s.height),
			PixelFormat: v4l2.PixelFmtMJPEG,
			Field:       v4l2.FieldAny,
		})
		return err
	})
	if err != nil {
		return s.fail("set format (VIDIOC_S_FMT)", ErrFormatRejected, -1, err)
	}
	if s.format.Width != uint32(s.width) || s.format.Height != uint32(s.height) {
		s.logger.Warnf("camera: %s asked for %dx%d, driver reports %dx%d %s",
			s.path, s.width, s.height, s.format.Width, s.format.Height, v4l2.FourCCString(s.format.PixelFormat))
	}

	for id, value := range s.opts.controls {
		if err := retryInterrupted(func() error { return s.dev.SetControl(id, value) }); err != nil {
			s.logger.Warnf("camera: set ctrl(%#x) to %d, err: %s", id, value, err)
		}
	}

	s.pool, err = mapPool(s, s.opts.buffers)
	return err
}

func (s *Session) Path() string { return s.path }

func (s *Session) Width() int { return s.width }

func (s *Session) Height() int { return s.height }

func (s *Session) Capability() v4l2.Capability { return s.caps }

// Format is the format the driver echoed back to VIDIOC_S_FMT.
func (s *Session) Format() v4l2.PixFormat { return s.format }

func (s *Session) State() StreamState { return s.state }

func (s *Session) Buffers() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.size()
}

func (s *Session) SlotOwners() []Owner {
	if s.pool == nil {
		return nil
	}
	return s.pool.owners()
}

// StartStreaming queues every buffer and turns streaming on. Calling it
// while streaming is a no-op.
func (s *Session) StartStreaming() error {
	if s.closed {
		return s.fail("start streaming", ErrClosed, -1, nil)
	}
	if s.state == StreamOn {
		s.logger.Debugf("camera: %s already streaming", s.path)
		return nil
	}

	for _, slot := range s.pool.slots {
		if err := s.pool.queue(slot); err != nil {
			s.abortStart()
			return s.fail("queue buffer (VIDIOC_QBUF)", ErrEnqueueFailed, slot.Index(), err)
		}
	}
	if err := retryInterrupted(s.dev.StreamOn); err != nil {
		s.abortStart()
		return s.fail("stream on (VIDIOC_STREAMON)", ErrStreamOnFailed, -1, err)
	}
	s.state = StreamOn
	s.logger.Infof("camera: %s streaming on", s.path)

	return nil
}

// abortStart drops buffers queued by a failed start so a later start does
// not trip over them.
func (s *Session) abortStart() {
	if err := retryInterrupted(s.dev.StreamOff); err != nil {
		s.logger.Warnf("camera: %s stream off after failed start: %s", s.path, err)
	}
	s.pool.reclaim()
}

// StopStreaming turns streaming off. The driver returns every queued buffer.
// Calling it while stopped is a no-op.
func (s *Session) StopStreaming() error {
	if s.closed {
		return s.fail("stop streaming", ErrClosed, -1, nil)
	}
	return s.stop()
}

func (s *Session) stop() error {
	if s.state == StreamOff {
		return nil
	}
	if err := retryInterrupted(s.dev.StreamOff); err != nil {
		return s.fail("stream off (VIDIOC_STREAMOFF)", ErrStreamOffFailed, -1, err)
	}
	s.state = StreamOff
	s.pool.reclaim()
	s.logger.Infof("camera: %s streaming off", s.path)

	return nil
}

// Close stops streaming if needed, unmaps every buffer and closes the device.
// Each step runs even if an earlier one failed; all errors are returned.
func (s *Session) Close() error {
	if s.closed {
		return s.fail("close", ErrClosed, -1, nil)
	}
	s.closed = true

	var err error
	if s.state == StreamOn {
		s.logger.Warnf("camera: %s closed while streaming, stopping", s.path)
		err = multierr.Append(err, s.stop())
	}
	err = multierr.Append(err, s.pool.release())
	// close(2) is not retried: the descriptor is gone even on EINTR.
	if cerr := s.dev.Close(); cerr != nil {
		err = multierr.Append(err, s.fail("close", ErrCloseFailed, -1, cerr))
	}
	s.logger.Infof("camera: %s closed", s.path)

	return err
}
