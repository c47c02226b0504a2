package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promptclash/arena/metrics"
)

// Runner is a supervised executor for background work kicked off by admin
// actions, round evaluation fan-out above all. Task failures and panics are
// logged and counted instead of vanishing into an unobserved goroutine, and
// the process can drain in-flight tasks on shutdown.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Submit starts a named task in the background and returns immediately.
func (r *Runner) Submit(name string, task func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
				r.logger.Error("background task panicked",
					slog.String("task", name), slog.Any("panic", rec))
			}
		}()

		start := time.Now()
		if err := task(context.Background()); err != nil {
			metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
			r.logger.Error("background task failed",
				slog.String("task", name),
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("error", err))
			return
		}
		r.logger.Info("background task finished",
			slog.String("task", name),
			slog.Duration("elapsed", time.Since(start)))
	}()
}

// Wait blocks until all submitted tasks finish or the timeout elapses. It
// reports whether the runner drained fully.
func (r *Runner) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
