// Package schedule takes timelapse shots at a fixed interval.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/utils"
)

type Shooter interface {
	Shoot(ctx context.Context, n int, c camera.Consumer) (int, error)
}

// Status describes the running job, if any.
type Status struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	Count    int           `json:"count"`
	Runs     int           `json:"runs"`
	LastErr  string        `json:"lastErr,omitempty"`
}

type Scheduler struct {
	t        *time.Ticker
	shooter  Shooter
	consumer camera.Consumer
	lock     sync.Mutex
	status   Status
	logger   *zap.SugaredLogger
}

// New returns a stopped scheduler whose loop ends with ctx.
func New(ctx context.Context, shooter Shooter, consumer camera.Consumer) *Scheduler {
	t := time.NewTicker(time.Second)
	t.Stop()

	s := &Scheduler{
		t:        t,
		shooter:  shooter,
		consumer: consumer,
		logger:   utils.GetLogger(),
	}
	s.startDeal(ctx)

	return s
}

// Begin takes count frames every interval, replacing any running job.
func (s *Scheduler) Begin(interval time.Duration, count int) {
	s.lock.Lock()
	s.status = Status{Running: true, Interval: interval, Count: count}
	s.lock.Unlock()
	s.t.Reset(interval)
	s.logger.Infof("scheduler: %d frame(s) every %s", count, interval)
}

func (s *Scheduler) Stop() {
	s.t.Stop()
	s.lock.Lock()
	s.status.Running = false
	s.lock.Unlock()
	s.logger.Info("scheduler: stopped")
}

func (s *Scheduler) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

func (s *Scheduler) startDeal(ctx context.Context) {
	go func(s *Scheduler) {
		for {
			select {
			case start := <-s.t.C:
				s.deal(ctx, start)
			case <-ctx.Done():
				s.t.Stop()
				s.logger.Info("scheduler: exit")
				return
			}
		}
	}(s)
}

func (s *Scheduler) deal(ctx context.Context, start time.Time) {
	s.lock.Lock()
	if !s.status.Running {
		s.lock.Unlock()
		s.logger.Warn("scheduler: tick without a job")
		return
	}
	count := s.status.Count
	s.lock.Unlock()

	n, err := s.shooter.Shoot(ctx, count, s.consumer)

	s.lock.Lock()
	s.status.Runs++
	s.status.LastErr = ""
	if err != nil {
		s.status.LastErr = err.Error()
	}
	s.lock.Unlock()

	if err != nil {
		s.logger.Errorf("scheduler: shot failed after %d frame(s): %s", n, err)
		return
	}
	s.logger.Infof("scheduler: took %s to get %d frame(s)", time.Since(start), n)
}
