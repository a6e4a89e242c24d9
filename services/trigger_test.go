package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rental-scraper/utils"
)

type blockingRunner struct {
	release  chan struct{}
	calls    atomic.Int32
	deadline atomic.Bool
	fail     bool
	panics   bool
}

func (b *blockingRunner) Run(ctx context.Context, req Request) (*Summary, error) {
	b.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		b.deadline.Store(true)
	}
	if b.release != nil {
		<-b.release
	}
	if b.panics {
		panic("runner blew up")
	}
	if b.fail {
		return nil, errors.New("db down")
	}
	return &Summary{JobID: "job"}, nil
}

func TestTriggerSuppressesDuplicates(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	trig := NewTrigger(runner, time.Minute, utils.NewDiscardLogger())
	req := Request{Sources: []string{"all"}, City: "Cape Town"}

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if trig.Fire(req) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	if started.Load() != 1 {
		t.Errorf("%d runs started; want 1", started.Load())
	}
	if trig.InFlight() != 1 {
		t.Errorf("InFlight = %d; want 1", trig.InFlight())
	}
	if !trig.Fire(Request{Sources: []string{"facebook"}, City: "Cape Town"}) {
		t.Error("a different request should not be suppressed")
	}

	close(runner.release)
	trig.Wait()

	if runner.calls.Load() != 2 {
		t.Errorf("runner called %d times; want 2", runner.calls.Load())
	}
	if !runner.deadline.Load() {
		t.Error("background run had no deadline")
	}
	if trig.InFlight() != 0 {
		t.Errorf("InFlight after Wait = %d; want 0", trig.InFlight())
	}
	if !trig.Fire(req) {
		t.Error("request should run again once the previous run finished")
	}
	trig.Wait()
}

func TestTriggerSurvivesFailures(t *testing.T) {
	for _, runner := range []*blockingRunner{{fail: true}, {panics: true}} {
		trig := NewTrigger(runner, 0, utils.NewDiscardLogger())
		req := Request{City: "Cape Town"}
		if !trig.Fire(req) {
			t.Fatal("Fire returned false")
		}
		trig.Wait()
		if trig.InFlight() != 0 {
			t.Errorf("key not released after failure")
		}
		if runner.deadline.Load() {
			t.Error("zero deadline should leave the context unbounded")
		}
	}
}
