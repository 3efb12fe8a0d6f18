package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/errors"
	"github.com/trident-search/trident/internal/telemetry"
)

// Pipeline executes hybrid searches: process, route, fan out, merge,
// dedup, rank. Construction validates nothing beyond wiring; the Config
// is assumed validated (config.Load fails fast on bad weights).
type Pipeline struct {
	cfg       *config.Config
	processor *Processor
	backends  map[config.Backend]Backend
	merger    *Merger
	reranker  Reranker
	metrics   *telemetry.Collector
	logger    *slog.Logger
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithClassifier overrides the classifier used by the query processor.
func WithClassifier(c Classifier) PipelineOption {
	return func(p *Pipeline) { p.processor = NewProcessor(c) }
}

// WithReranker replaces the default no-op reranker.
func WithReranker(r Reranker) PipelineOption {
	return func(p *Pipeline) { p.reranker = r }
}

// WithMetrics attaches a telemetry collector.
func WithMetrics(m *telemetry.Collector) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires a pipeline from an already-validated config and a set
// of backend adapters. Adapters for backends the config disables are
// simply never invoked.
func NewPipeline(cfg *config.Config, backends []Backend, opts ...PipelineOption) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.ConfigError("pipeline requires a configuration", nil)
	}
	if len(backends) == 0 {
		return nil, errors.New(errors.ErrCodeNoBackendsEnabled,
			"pipeline requires at least one backend adapter", nil)
	}

	byName := make(map[config.Backend]Backend, len(backends))
	for _, b := range backends {
		if _, dup := byName[b.Name()]; dup {
			return nil, errors.ConfigError(
				fmt.Sprintf("duplicate backend adapter %q", b.Name()), nil)
		}
		byName[b.Name()] = b
	}

	p := &Pipeline{
		cfg:       cfg,
		processor: NewProcessor(NewClassifierFromConfig(cfg.Classifier)),
		backends:  byName,
		merger:    NewMerger(cfg.Search.Normalization),
		reranker:  NoopReranker{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SearchOptions carries per-call parameters.
type SearchOptions struct {
	// TypeHint bypasses classification when valid.
	TypeHint QueryType

	// Filters are metadata constraints.
	Filters map[string]string

	// Limit is the requested result count; zero means the configured
	// default, values above the configured maximum are clamped.
	Limit int

	// Backends restricts the search to a subset of routed backends.
	// Empty means all routed backends.
	Backends []config.Backend
}

// Search runs the full pipeline for raw query text.
//
// Failed backends degrade the response rather than failing it; only when
// every routed backend fails does Search return ErrAllBackendsFailed.
// Backend errors never retry here - transport-level retries live inside
// the adapters' clients.
func (p *Pipeline) Search(ctx context.Context, raw string, opts SearchOptions) (*Response, error) {
	start := time.Now()
	logger := p.logger.With(slog.String("query_id", uuid.NewString()))

	limit, err := p.resolveLimit(opts.Limit)
	if err != nil {
		return nil, err
	}

	query, err := p.processor.Process(ctx, raw, ProcessOptions{
		TypeHint: opts.TypeHint,
		Filters:  opts.Filters,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	plan := BuildRoutingPlan(p.cfg, query.Type)
	if len(opts.Backends) > 0 {
		restrictPlan(&plan, opts.Backends)
	}
	if len(plan.Weights) == 0 {
		return nil, errors.New(errors.ErrCodeNoBackendsEnabled,
			"no backends routed for this query", nil)
	}
	if plan.CrossModal {
		query = relaxModalityFilter(query)
	}

	logger.Debug("search_routed",
		slog.String("query_type", string(query.Type)),
		slog.Int("backends", len(plan.Weights)),
		slog.Int("limit", limit))

	outcomes, err := p.fanOut(ctx, logger, query, plan)
	if err != nil {
		return nil, err
	}

	report := buildReport(outcomes)

	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		logger.Warn("search_all_backends_failed",
			slog.String("query_type", string(query.Type)))
		p.record(query, nil, report, time.Since(start), outcomes)
		return nil, ErrAllBackendsFailed
	}

	merged := p.merger.Merge(outcomes, plan)
	ranked := rankResults(merged, limit)

	if reranked, rerankErr := p.reranker.Rerank(ctx, query, ranked); rerankErr != nil {
		// Reranking is an enhancement; fall back to the merged order.
		logger.Warn("rerank_failed", slog.String("error", rerankErr.Error()))
	} else {
		ranked = reranked
	}

	elapsed := time.Since(start)
	logger.Info("search_completed",
		slog.String("query_type", string(query.Type)),
		slog.Int("results", len(ranked)),
		slog.Bool("degraded", report.Degraded),
		slog.Duration("elapsed", elapsed))
	p.record(query, ranked, report, elapsed, outcomes)

	return &Response{
		Results:   ranked,
		QueryType: query.Type,
		Report:    report,
		Elapsed:   elapsed,
	}, nil
}

// resolveLimit applies the default and maximum from config.
func (p *Pipeline) resolveLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, errors.New(errors.ErrCodeInvalidLimit,
			fmt.Sprintf("limit must be non-negative, got %d", limit), nil)
	}
	if limit == 0 {
		return p.cfg.Search.DefaultLimit, nil
	}
	if limit > p.cfg.Search.MaxLimit {
		return p.cfg.Search.MaxLimit, nil
	}
	return limit, nil
}

// fanOut invokes all routed backends in parallel with per-backend
// timeouts. A backend failure (including timeout) is recorded in its
// outcome, never propagated; only caller cancellation aborts the group.
func (p *Pipeline) fanOut(ctx context.Context, logger *slog.Logger, query *Query, plan RoutingPlan) ([]*BackendOutcome, error) {
	routed := plan.Backends()

	// Fetch more than the final limit so merging has headroom.
	fetchLimit := query.Limit * 2

	g, gctx := errgroup.WithContext(ctx)
	outcomes := make([]*BackendOutcome, len(routed))

	for i, name := range routed {
		backend, ok := p.backends[name]
		if !ok {
			outcomes[i] = &BackendOutcome{
				Backend: name,
				Err: errors.New(errors.ErrCodeBackendUnavailable,
					fmt.Sprintf("no adapter registered for backend %q", name), nil),
			}
			continue
		}

		g.Go(func() error {
			timeout := p.cfg.Backends.Get(name).Timeout.Std()
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			backendStart := time.Now()
			candidates, err := backend.Search(callCtx, query, fetchLimit)
			elapsed := time.Since(backendStart)

			if err == nil && callCtx.Err() != nil {
				// Timed out but the adapter returned anyway; a deadline
				// breach is a failure like any other.
				err = errors.New(errors.ErrCodeBackendTimeout,
					fmt.Sprintf("backend %q exceeded %s timeout", name, timeout), callCtx.Err())
			}
			if err != nil {
				logger.Warn("backend_failed",
					slog.String("backend", string(name)),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()))
				candidates = nil
			}

			outcomes[i] = &BackendOutcome{
				Backend:    name,
				Candidates: candidates,
				Err:        err,
				Elapsed:    elapsed,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// restrictPlan drops backends not in the allowed subset.
func restrictPlan(plan *RoutingPlan, allowed []config.Backend) {
	keep := make(map[config.Backend]bool, len(allowed))
	for _, b := range allowed {
		keep[b] = true
	}
	for b := range plan.Weights {
		if !keep[b] {
			delete(plan.Weights, b)
		}
	}
}

// relaxModalityFilter returns a copy of the query without the modality
// filter so cross-modal linkage queries span text, image, and audio.
func relaxModalityFilter(query *Query) *Query {
	if _, ok := query.Filters["modality"]; !ok {
		return query
	}
	filters := make(map[string]string, len(query.Filters))
	for k, v := range query.Filters {
		if k != "modality" {
			filters[k] = v
		}
	}
	relaxed := *query
	relaxed.Filters = filters
	return &relaxed
}

// buildReport summarizes backend outcomes for the response.
func buildReport(outcomes []*BackendOutcome) Report {
	report := Report{Backends: make(map[config.Backend]BackendReport, len(outcomes))}
	for _, o := range outcomes {
		entry := BackendReport{
			Attempted: true,
			Succeeded: o.Err == nil,
			Elapsed:   o.Elapsed,
			Results:   len(o.Candidates),
		}
		if o.Err != nil {
			entry.Reason = o.Err.Error()
			report.Degraded = true
		}
		report.Backends[o.Backend] = entry
	}
	return report
}

// record emits a telemetry event when a collector is attached.
func (p *Pipeline) record(query *Query, results []*MergedResult, report Report, elapsed time.Duration, outcomes []*BackendOutcome) {
	if p.metrics == nil {
		return
	}

	backendElapsed := make(map[string]time.Duration, len(outcomes))
	backendFailed := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		backendElapsed[string(o.Backend)] = o.Elapsed
		backendFailed[string(o.Backend)] = o.Err != nil
	}

	p.metrics.Record(telemetry.QueryEvent{
		Query:          query.Cleaned,
		QueryType:      string(query.Type),
		ResultCount:    len(results),
		Latency:        elapsed,
		BackendElapsed: backendElapsed,
		BackendFailed:  backendFailed,
		Degraded:       report.Degraded,
	})
}
