package camera

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Controller shares one Session between the HTTP API and the scheduler.
//
// Behavior:
//   - the device is opened and streaming started on the first Shoot, or by
//     an explicit Start;
//   - Shoot calls are serialized, so at most one capture loop runs;
//   - when a capture fails in a way that leaves the session unusable
//     (timeout, requeue failure) the session is closed and the next Shoot
//     reopens the device.
type Controller struct {
	mu sync.Mutex

	path   string
	width  int
	height int
	opts   []Option
	logger *zap.SugaredLogger

	sess     *Session
	captured int
}

// Status is a snapshot of the controller for reporting.
type Status struct {
	Device   string `json:"device"`
	Open     bool   `json:"open"`
	State    string `json:"state"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Buffers  int    `json:"buffers"`
	Card     string `json:"card,omitempty"`
	Driver   string `json:"driver,omitempty"`
	Captured int    `json:"captured"`
}

func NewController(path string, width, height int, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{
		path:   path,
		width:  width,
		height: height,
		opts:   opts,
		logger: o.logger,
	}
}

// Start opens the device and turns streaming on if that has not happened.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start()
}

func (c *Controller) start() error {
	if c.sess == nil {
		c.logger.Infof("camera: open %s in %d*%d", c.path, c.width, c.height)
		sess, err := Open(c.path, c.width, c.height, c.opts...)
		if err != nil {
			return err
		}
		c.sess = sess
	}
	return c.sess.StartStreaming()
}

// Shoot captures n frames into consumer.
func (c *Controller) Shoot(ctx context.Context, n int, consumer Consumer) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.start(); err != nil {
		return 0, err
	}
	captured, err := c.sess.CaptureFrames(ctx, n, consumer)
	c.captured += captured
	if err != nil && needsReopen(err) {
		c.logger.Warnf("camera: %s reset after capture error: %s", c.path, err)
		if cerr := c.close(); cerr != nil {
			c.logger.Warnf("camera: %s close after capture error: %s", c.path, cerr)
		}
	}
	return captured, err
}

func needsReopen(err error) bool {
	return errors.Is(err, ErrCaptureTimeout) ||
		errors.Is(err, ErrRequeueFailed) ||
		errors.Is(err, ErrInvalidBuffer)
}

func (c *Controller) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.State() == StreamOn
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Device:   c.path,
		State:    StreamOff.String(),
		Width:    c.width,
		Height:   c.height,
		Captured: c.captured,
	}
	if c.sess != nil {
		st.Open = true
		st.State = c.sess.State().String()
		st.Buffers = c.sess.Buffers()
		st.Card = c.sess.Capability().Card
		st.Driver = c.sess.Capability().Driver
	}
	return st
}

// Close stops streaming and releases the device. The controller can be
// started again afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Controller) close() error {
	if c.sess == nil {
		return nil
	}
	err := c.sess.StopStreaming()
	err = multierr.Append(err, c.sess.Close())
	c.sess = nil
	return err
}
