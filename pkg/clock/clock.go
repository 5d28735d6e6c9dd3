// Package clock supplies the time used to name shots. A Pi has no RTC, so
// the daemon can correct the system time with NTP before it is trusted.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"

	"webcam-shutter/pkg/utils"
)

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now() }

// NTP is the system clock shifted by the offset measured against server.
// Until the first successful Sync it reads like System.
type NTP struct {
	server string
	query  func(host string) (*ntp.Response, error)
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	offset time.Duration
}

func NewNTP(server string) *NTP {
	return &NTP{
		server: server,
		query:  ntp.Query,
		logger: utils.GetLogger(),
	}
}

func (c *NTP) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

func (c *NTP) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Sync queries the server once and keeps the measured offset if the reply
// is usable.
func (c *NTP) Sync() error {
	resp, err := c.query(c.server)
	if err != nil {
		return fmt.Errorf("ntp query %s: %w", c.server, err)
	}
	if err = resp.Validate(); err != nil {
		return fmt.Errorf("ntp reply from %s: %w", c.server, err)
	}

	c.mu.Lock()
	c.offset = resp.ClockOffset
	c.mu.Unlock()
	c.logger.Infof("clock: offset %s from %s", resp.ClockOffset, c.server)

	return nil
}

// Run syncs now and then every interval until ctx is done. Failures are
// logged and the last good offset is kept.
func (c *NTP) Run(ctx context.Context, interval time.Duration) {
	if err := c.Sync(); err != nil {
		c.logger.Warnf("clock: %s", err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.Sync(); err != nil {
				c.logger.Warnf("clock: %s", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
