package orchestrator

import (
	"context"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/reconciler"
	"github.com/crmarques/declagate/resource"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/crmarques/declagate/orchestrator"

var _ Orchestrator = (*DefaultOrchestrator)(nil)

type DefaultOrchestrator struct {
	Backend backend.Backend
	Loader  ConfigLoader
	Filter  ScopeFilter
	Runner  EventRunner
	Schema  *resource.Schema
	Tracer  trace.Tracer
}

func (o *DefaultOrchestrator) Ping(ctx context.Context) error {
	gateway, err := o.requireBackend()
	if err != nil {
		return err
	}

	ctx, span := o.tracer().Start(ctx, "declagate.ping")
	defer span.End()
	return recordSpanError(span, gateway.Ping(ctx))
}

// Dump returns the backend configuration narrowed by the filter.
func (o *DefaultOrchestrator) Dump(ctx context.Context) (resource.Configuration, error) {
	ctx, span := o.tracer().Start(ctx, "declagate.dump")
	defer span.End()

	current, err := o.current(ctx)
	return current, recordSpanError(span, err)
}

// Diff loads files, dumps the backend and plans the changes between them.
func (o *DefaultOrchestrator) Diff(ctx context.Context, files []string) (Plan, error) {
	transactionID := uuid.NewString()
	ctx = logr.NewContext(ctx, logr.FromContextOrDiscard(ctx).WithValues("transaction", transactionID))

	ctx, span := o.tracer().Start(ctx, "declagate.diff", trace.WithAttributes(attribute.String("declagate.transaction", transactionID)))
	defer span.End()

	plan, err := o.plan(ctx, transactionID, files)
	if err != nil {
		return Plan{}, recordSpanError(span, err)
	}
	span.SetAttributes(attribute.Int("declagate.events", len(plan.Events)))
	return plan, nil
}

// Sync plans and applies the changes. Backends buffering writes are flushed
// after the run, including after partial failures.
func (o *DefaultOrchestrator) Sync(ctx context.Context, files []string, opts SyncOptions) (Report, error) {
	runner, err := o.requireRunner()
	if err != nil {
		return Report{}, err
	}

	transactionID := uuid.NewString()
	logger := logr.FromContextOrDiscard(ctx).WithValues("transaction", transactionID)
	ctx = logr.NewContext(ctx, logger)

	ctx, span := o.tracer().Start(ctx, "declagate.sync", trace.WithAttributes(attribute.String("declagate.transaction", transactionID)))
	defer span.End()

	plan, err := o.plan(ctx, transactionID, files)
	if err != nil {
		return Report{}, recordSpanError(span, err)
	}
	span.SetAttributes(attribute.Int("declagate.events", len(plan.Events)))
	if plan.Empty() {
		logger.V(1).Info("nothing to sync")
		return newReport(plan, nil), nil
	}

	if opts.Confirm != nil {
		confirmed, err := opts.Confirm(plan)
		if err != nil {
			return Report{}, recordSpanError(span, err)
		}
		if !confirmed {
			report := newReport(plan, nil)
			report.Aborted = true
			return report, nil
		}
	}

	results, runErr := runner.Run(ctx, plan.Events)
	report := newReport(plan, results)
	logger.Info("sync finished", "succeeded", report.Succeeded, "failed", report.Failed, "skipped", report.Skipped)

	if flusher, ok := o.Backend.(backend.Flusher); ok && report.Succeeded > 0 {
		if err := flusher.Flush(ctx); err != nil {
			return report, recordSpanError(span, err)
		}
	}
	return report, recordSpanError(span, runErr)
}

func (o *DefaultOrchestrator) plan(ctx context.Context, transactionID string, files []string) (Plan, error) {
	gateway, err := o.requireBackend()
	if err != nil {
		return Plan{}, err
	}
	loader, err := o.requireLoader()
	if err != nil {
		return Plan{}, err
	}

	desired, err := loader.Load(ctx, files...)
	if err != nil {
		return Plan{}, err
	}
	if o.Filter != nil {
		desired = o.Filter.Desired(desired)
	}

	current, err := o.current(ctx)
	if err != nil {
		return Plan{}, err
	}

	defaults, err := gateway.DefaultValues(ctx)
	if err != nil {
		return Plan{}, err
	}

	schema := o.schema()
	events, err := reconciler.NewPlanner(reconciler.WithSchema(schema), reconciler.WithDefaults(defaults)).Plan(desired, current)
	if err != nil {
		return Plan{}, err
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("plan computed", "events", len(events))
	return Plan{
		TransactionID: transactionID,
		Events:        events,
		Summary:       Summarize(events, schema),
	}, nil
}

func (o *DefaultOrchestrator) current(ctx context.Context) (resource.Configuration, error) {
	gateway, err := o.requireBackend()
	if err != nil {
		return nil, err
	}

	current, err := gateway.Dump(ctx)
	if err != nil {
		return nil, err
	}
	if o.Filter != nil {
		current = o.Filter.Current(current)
	}
	return current, nil
}

func (o *DefaultOrchestrator) requireBackend() (backend.Backend, error) {
	if o == nil || o.Backend == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "backend is not configured", nil)
	}
	return o.Backend, nil
}

func (o *DefaultOrchestrator) requireLoader() (ConfigLoader, error) {
	if o == nil || o.Loader == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "configuration loader is not configured", nil)
	}
	return o.Loader, nil
}

func (o *DefaultOrchestrator) requireRunner() (EventRunner, error) {
	if o == nil || o.Runner == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "sync executor is not configured", nil)
	}
	return o.Runner, nil
}

func (o *DefaultOrchestrator) schema() resource.Schema {
	if o.Schema != nil {
		return *o.Schema
	}
	return resource.DefaultSchema()
}

func (o *DefaultOrchestrator) tracer() trace.Tracer {
	if o != nil && o.Tracer != nil {
		return o.Tracer
	}
	return otel.Tracer(tracerName)
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
