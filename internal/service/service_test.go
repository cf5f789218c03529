package service

import (
	"context"
	"sync"
	"time"

	"github.com/aradaody/defi-technique/internal/notify"
)

var fixedNow = time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingNotifier struct {
	mu      sync.Mutex
	events  []*notify.BatchCompleted
	ctxErrs []error // ctx.Err() seen by each Notify call
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, e *notify.BatchCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) last() *notify.BatchCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
