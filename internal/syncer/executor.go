// Package syncer applies an ordered plan to a backend.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/resource"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Applier writes one event.
type Applier interface {
	Apply(ctx context.Context, event resource.Event) error
}

type Executor struct {
	applier     Applier
	schema      resource.Schema
	concurrency int
	metrics     *Metrics
	progress    func(backend.SyncResult)
}

type Option func(*Executor)

// WithConcurrency bounds the events applied in parallel inside one batch.
// Values below one mean sequential.
func WithConcurrency(concurrency int) Option {
	return func(e *Executor) {
		if concurrency < 1 {
			concurrency = 1
		}
		e.concurrency = concurrency
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// WithProgress registers a callback invoked after every event. Calls may come
// from several goroutines.
func WithProgress(progress func(backend.SyncResult)) Option {
	return func(e *Executor) {
		e.progress = progress
	}
}

func NewExecutor(applier Applier, opts ...Option) *Executor {
	executor := &Executor{
		applier:     applier,
		schema:      resource.DefaultSchema(),
		concurrency: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(executor)
		}
	}
	return executor
}

// Run applies events in order. Consecutive events sharing category and
// operation form a batch that may run in parallel; batches never overlap.
// A failed event does not stop the run unless a later event depends on it,
// in which case that event and everything after it is skipped. The returned
// error joins every failure.
func (e *Executor) Run(ctx context.Context, events []resource.Event) ([]backend.SyncResult, error) {
	logger := logr.FromContextOrDiscard(ctx)
	results := make([]backend.SyncResult, len(events))
	for idx, event := range events {
		results[idx] = backend.SyncResult{Event: event}
	}

	failed := map[failedKey]bool{}
	stopAt := len(events)
	for start := 0; start < len(events) && start < stopAt; {
		end := batchEnd(events, start)

		if err := ctx.Err(); err != nil {
			stopAt = start
			break
		}
		for idx := start; idx < end; idx++ {
			if e.prerequisiteFailed(events[idx], failed) {
				logger.Info("stopping sync: prerequisite failed", "category", events[idx].Category, "resourceId", events[idx].ResourceID, "parentId", events[idx].ParentID)
				stopAt = idx
				end = idx
				break
			}
		}

		e.runBatch(ctx, results[start:end])
		for idx := start; idx < end; idx++ {
			if results[idx].Err != nil {
				failed[failedKey{category: results[idx].Event.Category, id: results[idx].Event.ResourceID}] = true
			}
		}
		start = end
	}

	for idx := stopAt; idx < len(results); idx++ {
		results[idx].Skipped = true
		e.record(results[idx], 0)
	}

	var errs []error
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s %q: %w", result.Event.Operation, result.Event.Category, displayName(result.Event), result.Err))
		}
	}
	if stopAt < len(results) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

func (e *Executor) runBatch(ctx context.Context, batch []backend.SyncResult) {
	if len(batch) == 0 {
		return
	}

	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for idx := range batch {
		group.Go(func() error {
			started := time.Now()
			batch[idx].Err = e.applier.Apply(ctx, batch[idx].Event)
			e.record(batch[idx], time.Since(started))
			return nil
		})
	}
	_ = group.Wait()
}

func (e *Executor) record(result backend.SyncResult, elapsed time.Duration) {
	if e.metrics != nil {
		outcome := resultSuccess
		switch {
		case result.Skipped:
			outcome = resultSkipped
		case result.Err != nil:
			outcome = resultFailure
		}
		category := string(result.Event.Category)
		operation := string(result.Event.Operation)
		e.metrics.events.WithLabelValues(category, operation, outcome).Inc()
		if !result.Skipped {
			e.metrics.duration.WithLabelValues(category, operation).Observe(elapsed.Seconds())
		}
	}
	if e.progress != nil {
		e.progress(result)
	}
}

// failedKey names a resource across categories. Root ids are local keys, so
// the same id may exist in several categories.
type failedKey struct {
	category resource.Category
	id       string
}

// prerequisiteFailed reports whether the event's parent or a resource it
// references failed earlier in the run.
func (e *Executor) prerequisiteFailed(event resource.Event, failed map[failedKey]bool) bool {
	if len(failed) == 0 {
		return false
	}
	root := event.ParentID == ""
	if !root {
		if parent, found := e.schema.ParentCategory(event.Category); found && failed[failedKey{category: parent, id: event.ParentID}] {
			return true
		}
	}
	kind, found := e.schema.LookupAt(event.Category, root)
	if !found {
		return false
	}
	value := event.Value()
	for _, reference := range kind.References {
		if reference.Field == "" {
			continue
		}
		referenced, ok := resource.LookupPath(value, reference.Field)
		if ok && failed[failedKey{category: reference.Category, id: referenced}] {
			return true
		}
	}
	return false
}

func batchEnd(events []resource.Event, start int) int {
	end := start + 1
	for end < len(events) &&
		events[end].Category == events[start].Category &&
		events[end].Operation == events[start].Operation {
		end++
	}
	return end
}

func displayName(event resource.Event) string {
	if event.ResourceName != "" {
		return event.ResourceName
	}
	return event.ResourceID
}
