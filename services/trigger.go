package services

import (
	"context"
	"sync"
	"time"

	"rental-scraper/utils"
)

// Runner executes an ingestion request.
type Runner interface {
	Run(ctx context.Context, req Request) (*Summary, error)
}

// Trigger starts ingestion runs in the background. A run never inherits the
// caller's context; it is bounded by its own deadline instead.
type Trigger struct {
	runner   Runner
	deadline time.Duration
	inflight *utils.KeySet
	wg       sync.WaitGroup
	logger   *utils.Logger
}

func NewTrigger(runner Runner, deadline time.Duration, logger *utils.Logger) *Trigger {
	return &Trigger{
		runner:   runner,
		deadline: deadline,
		inflight: utils.NewKeySet(),
		logger:   logger,
	}
}

// Fire starts req unless an identical request is still running. It reports
// whether a run was started.
func (t *Trigger) Fire(req Request) bool {
	key := req.Key()
	if !t.inflight.Add(key) {
		t.logger.Debug("[trigger] %s already running, skipped", key)
		return false
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inflight.Remove(key)
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("[trigger] run %s panicked: %v", key, r)
			}
		}()

		ctx := context.Background()
		if t.deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.deadline)
			defer cancel()
		}

		t.logger.Info("[trigger] background scrape %s", key)
		summary, err := t.runner.Run(ctx, req)
		if err != nil {
			t.logger.Error("[trigger] run %s: %v", key, err)
			return
		}
		t.logger.Info("[trigger] job %s done: added=%d updated=%d", summary.JobID, summary.Added, summary.Updated)
	}()
	return true
}

// InFlight reports the number of running requests.
func (t *Trigger) InFlight() int {
	return t.inflight.Size()
}

// Wait blocks until every started run has returned.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
