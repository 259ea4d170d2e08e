// Package engine ties the query backend, cache, and database together and
// assembles the view models served by the API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/tracelens/tracelens/internal/api/models"
	"github.com/tracelens/tracelens/internal/cache"
	"github.com/tracelens/tracelens/internal/config"
	"github.com/tracelens/tracelens/internal/database"
	"github.com/tracelens/tracelens/internal/query"
	"github.com/tracelens/tracelens/internal/scheduler"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyPinned indicates the trace already has a pin.
	ErrAlreadyPinned = errors.New("trace already pinned")
	// ErrTraceNotFound mirrors the query client sentinel for API consumers.
	ErrTraceNotFound = query.ErrTraceNotFound
)

// pinRetention is how long pins are kept before the pruning job drops them.
const pinRetention = 90 * 24 * time.Hour

// Querier is the subset of the query client the engine depends on.
type Querier interface {
	GetServices(ctx context.Context) ([]string, error)
	GetOperations(ctx context.Context, service string) ([]string, error)
	SearchTraces(ctx context.Context, params query.SearchParams) ([]query.Trace, error)
	GetTrace(ctx context.Context, traceID string) (*query.Trace, error)
}

// Engine is the orchestrator behind the API handlers.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	querier   Querier
	cache     *cache.TraceCache
	scheduler *scheduler.Scheduler
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	querier, err := query.New(cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query client: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		querier:   querier,
		cache:     cache.NewTraceCache(cfg.Cache),
		scheduler: sched,
	}

	if err := e.registerJobs(); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	return e, nil
}

func (e *Engine) registerJobs() error {
	if err := e.scheduler.AddCronJob(
		"refresh-services",
		"Refresh service list",
		e.cfg.RefreshSchedule,
		e.RefreshServices,
	); err != nil {
		return err
	}
	return e.scheduler.AddCronJob(
		"prune-pins",
		"Prune expired trace pins",
		"0 3 * * *",
		e.PrunePins,
	)
}

// Run starts the background jobs and blocks until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.scheduler.Start()
	<-ctx.Done()
	return e.scheduler.Stop()
}

// RefreshServices fetches the service list from the backend and caches it.
func (e *Engine) RefreshServices(ctx context.Context) error {
	services, err := e.querier.GetServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh services: %w", err)
	}
	e.cache.SetServices(ctx, services)
	log.Debug("refreshed service list", "count", len(services))
	return nil
}

// PrunePins drops pins older than the retention window.
func (e *Engine) PrunePins(ctx context.Context) error {
	deleted, err := e.db.DeletePinsOlderThan(ctx, time.Now().Add(-pinRetention))
	if err != nil {
		return fmt.Errorf("failed to prune pins: %w", err)
	}
	if deleted > 0 {
		log.Info("pruned expired trace pins", "count", deleted)
	}
	return nil
}

// GetServices returns the known services with their operation counts. The
// service list comes from the cache when warm; operation counts are fetched
// concurrently and cached per service.
func (e *Engine) GetServices(ctx context.Context) ([]models.ServiceSummary, error) {
	services, ok := e.cache.GetServices(ctx)
	if !ok {
		var err error
		services, err = e.querier.GetServices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get services: %w", err)
		}
		e.cache.SetServices(ctx, services)
	}

	summaries := make([]models.ServiceSummary, len(services))
	g, gctx := errgroup.WithContext(ctx)
	for i, service := range services {
		g.Go(func() error {
			ops, err := e.getOperations(gctx, service)
			if err != nil {
				return err
			}
			summaries[i] = models.ServiceSummary{Name: service, OperationCount: len(ops)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetOperations returns the operation names for a service.
func (e *Engine) GetOperations(ctx context.Context, service string) ([]string, error) {
	return e.getOperations(ctx, service)
}

func (e *Engine) getOperations(ctx context.Context, service string) ([]string, error) {
	if ops, err := e.cache.OperationsCache.Get(ctx, service); err == nil {
		return ops, nil
	}
	ops, err := e.querier.GetOperations(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("failed to get operations for %s: %w", service, err)
	}
	if err := e.cache.OperationsCache.Set(ctx, service, ops); err != nil {
		log.Errorf("failed to cache operations: %v", err)
	}
	return ops, nil
}

// SearchTraces runs a search against the backend and renders summaries.
// Missing limit and time range fall back to the configured defaults, and the
// query is recorded for the recent-searches list.
func (e *Engine) SearchTraces(ctx context.Context, params query.SearchParams) ([]models.TraceSummary, error) {
	if params.Limit <= 0 {
		params.Limit = e.cfg.Query.SearchLimit
	}
	if params.Start.IsZero() && params.End.IsZero() {
		params.End = time.Now()
		params.Start = params.End.Add(-time.Duration(e.cfg.Query.LookbackHours) * time.Hour)
	}

	traces, err := e.querier.SearchTraces(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search traces: %w", err)
	}

	if params.Service != "" {
		if err := e.db.RecordSearch(ctx, &database.SearchQuery{
			Service:   params.Service,
			Operation: params.Operation,
			Limit:     params.Limit,
		}); err != nil {
			log.Errorf("failed to record search: %v", err)
		}
	}

	pinned := e.pinnedTraceIDs(ctx)
	now := time.Now()
	summaries := lo.Map(traces, func(t query.Trace, _ int) models.TraceSummary {
		return models.NewTraceSummary(t, now, pinned[t.TraceID])
	})
	return summaries, nil
}

// GetTraceDetail returns the full view of a single trace, from cache when
// possible.
func (e *Engine) GetTraceDetail(ctx context.Context, traceID string) (*models.TraceDetail, error) {
	trace, err := e.getTrace(ctx, traceID)
	if err != nil {
		return nil, err
	}

	_, pinErr := e.db.GetPin(ctx, traceID)
	detail := models.NewTraceDetail(*trace, time.Now(), pinErr == nil)
	return &detail, nil
}

func (e *Engine) getTrace(ctx context.Context, traceID string) (*query.Trace, error) {
	if cached, err := e.cache.TracesCache.Get(ctx, traceID); err == nil {
		return &cached, nil
	}
	trace, err := e.querier.GetTrace(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if err := e.cache.TracesCache.Set(ctx, traceID, *trace); err != nil {
		log.Errorf("failed to cache trace: %v", err)
	}
	return trace, nil
}

// PinTrace pins a trace with an optional title and note. The trace is fetched
// so the pin can carry its duration and start time.
func (e *Engine) PinTrace(ctx context.Context, traceID, title, note string) (*models.PinView, error) {
	if _, err := e.db.GetPin(ctx, traceID); err == nil {
		return nil, ErrAlreadyPinned
	}

	trace, err := e.getTrace(ctx, traceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := models.NewTraceSummary(*trace, now, false)
	pin := &database.TracePin{
		TraceID:         traceID,
		ServiceName:     summary.RootService,
		Title:           title,
		Note:            note,
		DurationMicros:  summary.DurationMicros,
		StartTimeMicros: firstSpanStart(*trace),
	}
	if title == "" {
		pin.Title = summary.RootOperation
	}
	if err := e.db.CreatePin(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to pin trace: %w", err)
	}

	view := models.NewPinView(*pin, now)
	return &view, nil
}

// UnpinTrace removes a pin.
func (e *Engine) UnpinTrace(ctx context.Context, traceID string) error {
	return e.db.DeletePin(ctx, traceID)
}

// ListPins returns all pinned traces, newest first.
func (e *Engine) ListPins(ctx context.Context) ([]models.PinView, error) {
	pins, err := e.db.ListPins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	now := time.Now()
	return lo.Map(pins, func(pin database.TracePin, _ int) models.PinView {
		return models.NewPinView(pin, now)
	}), nil
}

// RecentSearches returns the latest recorded search queries, newest first.
func (e *Engine) RecentSearches(ctx context.Context, limit int) ([]models.SearchView, error) {
	if limit <= 0 {
		limit = 10
	}
	searches, err := e.db.RecentSearches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent searches: %w", err)
	}
	now := time.Now()
	return lo.Map(searches, func(s database.SearchQuery, _ int) models.SearchView {
		return models.NewSearchView(s, now)
	}), nil
}

// RunJob manually triggers a scheduled job.
func (e *Engine) RunJob(id string) error {
	return e.scheduler.RunJobNow(id)
}

// CacheStats exposes cache statistics for the status endpoint.
func (e *Engine) CacheStats() []*cache.Stats {
	return e.cache.GetStats()
}

// Jobs exposes scheduler state for the status endpoint.
func (e *Engine) Jobs() []scheduler.JobInfo {
	return e.scheduler.GetJobs()
}

func (e *Engine) pinnedTraceIDs(ctx context.Context) map[string]bool {
	pins, err := e.db.ListPins(ctx)
	if err != nil {
		return nil
	}
	return lo.SliceToMap(pins, func(pin database.TracePin) (string, bool) {
		return pin.TraceID, true
	})
}

func firstSpanStart(t query.Trace) int64 {
	if len(t.Spans) == 0 {
		return 0
	}
	start := t.Spans[0].StartTime
	for _, s := range t.Spans {
		if s.StartTime < start {
			start = s.StartTime
		}
	}
	return start
}

// IsNotFound reports whether an error means the trace or pin does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, query.ErrTraceNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
