package pod

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is deferred work. It receives a context bounded by the scheduler's
// timeout.
type Job func(ctx context.Context)

// Scheduler runs jobs after a delay. Scheduled jobs cannot be cancelled.
type Scheduler interface {
	Schedule(delay time.Duration, job Job)
}

// TimerScheduler runs each job on its own timer goroutine.
type TimerScheduler struct {
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewTimerScheduler(timeout time.Duration, logger *zap.Logger) *TimerScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TimerScheduler{timeout: timeout, log: logger.Sugar()}
}

func (s *TimerScheduler) Schedule(delay time.Duration, job Job) {
	time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("scheduled job panicked", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		job(ctx)
	})
}
