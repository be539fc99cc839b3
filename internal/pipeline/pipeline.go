// Package pipeline orchestrates one ingestion run per source: fetch the raw
// window, normalize, resolve geometry, enrich, and hand the batch to the
// loader. Stages are wired through interfaces so adapters stay swappable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/citypulse/civic-etl/internal/domain"
	"github.com/citypulse/civic-etl/internal/geometry"
	"github.com/citypulse/civic-etl/internal/observability"
)

// Fetcher pulls one source's raw records for a date window.
type Fetcher interface {
	Source() domain.SourceType
	Fetch(ctx context.Context, w domain.Window) ([]domain.RawRecord, error)
}

// Loader commits one normalized batch atomically under the source's
// conflict policy.
type Loader interface {
	LoadBatch(ctx context.Context, spec domain.SourceSpec, recs []domain.CanonicalRecord) error
}

// Resolver fills a record's geometry slot and reports whether the record
// survives the source's null-geometry policy.
type Resolver interface {
	ResolveSlot(rec *domain.CanonicalRecord, raw domain.RawRecord, slotName string, slot *domain.GeometrySlot, policy domain.NullGeometryPolicy) bool
}

// SpatialIndex assigns a neighborhood to a resolved geometry slot.
type SpatialIndex interface {
	Enrich(slot *domain.GeometrySlot)
}

// SourceSummary counts what happened to one source's records during a run.
type SourceSummary struct {
	Source           domain.SourceType `json:"source"`
	Fetched          int               `json:"fetched"`
	Normalized       int               `json:"normalized"`
	GeometryResolved int               `json:"geometry_resolved"`
	Loaded           int               `json:"loaded"`
	Skipped          int               `json:"skipped"`
}

// RunSummary aggregates per-source summaries for one pipeline run.
type RunSummary struct {
	Sources map[domain.SourceType]SourceSummary `json:"sources"`
}

// Loaded returns the total records committed across all sources.
func (s RunSummary) Loaded() int {
	n := 0
	for _, src := range s.Sources {
		n += src.Loaded
	}
	return n
}

// Pipeline runs the fetch-normalize-resolve-enrich-load sequence. Safe for a
// single concurrent run; RunAll fans sources out internally.
type Pipeline struct {
	fetchers map[domain.SourceType]Fetcher
	resolver Resolver
	spatial  SpatialIndex // nil when no boundary set is available
	loader   Loader
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
	dryRun   bool

	lastMu sync.Mutex
	last   *RunSummary
}

// New creates a Pipeline over the given fetchers and stages.
func New(fetchers []Fetcher, resolver Resolver, spatial SpatialIndex, loader Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	byType := make(map[domain.SourceType]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byType[f.Source()] = f
	}
	return &Pipeline{
		fetchers: byType,
		resolver: resolver,
		spatial:  spatial,
		loader:   loader,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetDryRun makes subsequent runs stop before the load stage.
func (p *Pipeline) SetDryRun(v bool) { p.dryRun = v }

// CheckReadiness returns nil once at least one batch has been committed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any batches yet")
	}
	return nil
}

// Sources lists the sources this pipeline has fetchers for, in canonical order.
func (p *Pipeline) Sources() []domain.SourceType {
	var out []domain.SourceType
	for _, src := range domain.AllSources() {
		if _, ok := p.fetchers[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// RunSource executes one source end to end. The batch is atomic: a load
// failure leaves the store untouched and surfaces the error.
func (p *Pipeline) RunSource(ctx context.Context, src domain.SourceType, w domain.Window) (SourceSummary, error) {
	summary := SourceSummary{Source: src}

	spec, ok := domain.SpecFor(src)
	if !ok {
		return summary, fmt.Errorf("unknown source %q", src)
	}
	fetcher, ok := p.fetchers[src]
	if !ok {
		return summary, fmt.Errorf("no fetcher registered for source %q", src)
	}

	p.logger.Info("source run started",
		"source", string(src),
		"window_start", w.Start.Format("2006-01-02"),
		"window_end", w.End.Format("2006-01-02"),
	)

	raws, err := fetcher.Fetch(ctx, w)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(raws)
	p.metrics.RecordsFetched.WithLabelValues(string(src)).Add(float64(len(raws)))

	batch := p.transform(spec, raws, &summary)

	if p.dryRun {
		p.logger.Info("dry run, skipping load", "source", string(src), "records", len(batch))
		return summary, nil
	}

	start := time.Now()
	if err := p.loader.LoadBatch(ctx, spec, batch); err != nil {
		return summary, err
	}
	p.metrics.LoadDuration.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())
	p.metrics.LoadBatchSize.WithLabelValues(string(src)).Observe(float64(len(batch)))
	p.metrics.RecordsLoaded.WithLabelValues(string(src)).Add(float64(len(batch)))
	summary.Loaded = len(batch)
	if len(batch) > 0 {
		p.ready.Store(true)
	}

	p.logger.Info("source run finished",
		"source", string(src),
		"fetched", summary.Fetched,
		"normalized", summary.Normalized,
		"geometry_resolved", summary.GeometryResolved,
		"loaded", summary.Loaded,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// transform normalizes and enriches raw records, applying the source's
// null-geometry policy. Per-record failures are skipped, never fatal.
func (p *Pipeline) transform(spec domain.SourceSpec, raws []domain.RawRecord, summary *SourceSummary) []domain.CanonicalRecord {
	src := string(spec.Source)
	batch := make([]domain.CanonicalRecord, 0, len(raws))

	for _, raw := range raws {
		rec, err := domain.Normalize(spec, raw)
		if err != nil {
			p.logger.Warn("normalize failed, skipping record", "source", src, "error", err)
			summary.Skipped++
			p.metrics.RecordsSkipped.WithLabelValues(src, "normalize").Inc()
			continue
		}
		summary.Normalized++
		p.metrics.RecordsNormalized.WithLabelValues(src).Inc()

		if !p.resolveGeometry(spec, raw, &rec, summary) {
			summary.Skipped++
			p.metrics.RecordsSkipped.WithLabelValues(src, "geometry").Inc()
			continue
		}

		domain.EnrichTemporal(&rec)
		batch = append(batch, rec)
	}
	return batch
}

// resolveGeometry fills the record's slot(s) and applies spatial enrichment.
// Trips carry two independent slots; only the pickup slot decides whether
// the record is kept.
func (p *Pipeline) resolveGeometry(spec domain.SourceSpec, raw domain.RawRecord, rec *domain.CanonicalRecord, summary *SourceSummary) bool {
	src := string(spec.Source)

	if spec.Source == domain.SourceTrips {
		keep := p.resolver.ResolveSlot(rec, raw, "pickup", &rec.Location, spec.NullGeometry)
		p.resolver.ResolveSlot(rec, raw, "dropoff", &rec.Dropoff, domain.KeepWithoutGeometry)
		p.enrichSlot(src, &rec.Location, summary)
		p.enrichSlot(src, &rec.Dropoff, nil)
		return keep
	}

	keep := p.resolver.ResolveSlot(rec, raw, "", &rec.Location, spec.NullGeometry)
	p.enrichSlot(src, &rec.Location, summary)
	return keep
}

func (p *Pipeline) enrichSlot(src string, slot *domain.GeometrySlot, summary *SourceSummary) {
	if !slot.Resolved() {
		return
	}
	if summary != nil {
		summary.GeometryResolved++
	}
	p.metrics.GeometryResolved.WithLabelValues(src, slot.Strategy).Inc()
	if p.spatial != nil {
		p.spatial.Enrich(slot)
	}
}

// RunAll runs every registered source concurrently over the same window.
// The summary covers the sources that completed; the first error is
// returned after all sources have finished or failed.
func (p *Pipeline) RunAll(ctx context.Context, w domain.Window) (RunSummary, error) {
	summary := RunSummary{Sources: make(map[domain.SourceType]SourceSummary)}

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.Sources() {
		g.Go(func() error {
			s, err := p.RunSource(gctx, src, w)
			if err != nil {
				p.logger.Error("source run failed", "source", string(src), "error", err)
				return err
			}
			mu.Lock()
			summary.Sources[src] = s
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	p.lastMu.Lock()
	p.last = &summary
	p.lastMu.Unlock()

	return summary, err
}

// LastRun returns the most recent RunAll summary; ok is false before the
// first run completes.
func (p *Pipeline) LastRun() (any, bool) {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	if p.last == nil {
		return nil, false
	}
	return *p.last, true
}

// SourceNames returns the canonical source names, for CLI help text.
func SourceNames() []string {
	names := make([]string, 0, len(domain.AllSources()))
	for _, src := range domain.AllSources() {
		names = append(names, string(src))
	}
	sort.Strings(names)
	return names
}

var _ Resolver = (*geometry.Resolver)(nil)
