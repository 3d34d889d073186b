package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

var tracer = otel.Tracer("orgflow-orgchart")

const defaultDataset = "default"

// BuildResult is one immutable build. Readers may share it freely; rebuilds
// produce a new value.
type BuildResult struct {
	RunID     uuid.UUID
	Dataset   string
	Forest    *hierarchy.Forest
	Index     *hierarchy.Index
	Expander  hierarchy.Expander
	Normalize record.NormalizeStats
	BuiltAt   time.Time
	Duration  time.Duration
}

func newBuildResult(runID uuid.UUID, dataset string, f *hierarchy.Forest, stats record.NormalizeStats, builtAt time.Time, d time.Duration) *BuildResult {
	ix := hierarchy.NewIndex(f)
	return &BuildResult{
		RunID:     runID,
		Dataset:   dataset,
		Forest:    f,
		Index:     ix,
		Expander:  hierarchy.NewForestExpander(ix),
		Normalize: stats,
		BuiltAt:   builtAt,
		Duration:  d,
	}
}

// Notices merges normalization and build diagnostics for end users.
func (r *BuildResult) Notices() []string {
	var out []string
	if r.Normalize.MissingRequired > 0 {
		out = append(out, fmt.Sprintf("%d rows were skipped because an identifier or type was missing", r.Normalize.MissingRequired))
	}
	if r.Normalize.UnsupportedKind > 0 {
		out = append(out, fmt.Sprintf("%d rows were skipped because their type is neither organization nor position", r.Normalize.UnsupportedKind))
	}
	return append(out, r.Forest.Report.Notices()...)
}

type Config struct {
	Dataset    string
	MaxPasses  int
	MaxRecords int
	TTL        time.Duration
	Normalizer *record.Normalizer
	Cache      ForestCache
	Snapshots  SnapshotStore
	Clock      clockwork.Clock
}

func ConfigFromOptions(opts configuration.ForestOptions) Config {
	return Config{
		Dataset:    opts.Dataset,
		MaxPasses:  opts.MaxPasses,
		MaxRecords: opts.MaxRecords,
		TTL:        opts.CacheTTL,
	}
}

type OrgChartService struct {
	source     RecordSource
	normalizer *record.Normalizer
	cache      ForestCache
	snapshots  SnapshotStore
	clock      clockwork.Clock

	dataset    string
	maxPasses  int
	maxRecords int
	ttl        time.Duration

	// rebuild serializes source reloads per dataset so concurrent misses build once.
	rebuild datasetLocks
}

// datasetLocks hands out one mutex per dataset name.
type datasetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *datasetLocks) lock(dataset string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[dataset]
	if !ok {
		m = &sync.Mutex{}
		l.locks[dataset] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func NewOrgChartService(source RecordSource, cfg Config) *OrgChartService {
	s := &OrgChartService{
		source:     source,
		normalizer: cfg.Normalizer,
		cache:      cfg.Cache,
		snapshots:  cfg.Snapshots,
		clock:      cfg.Clock,
		dataset:    strings.TrimSpace(cfg.Dataset),
		maxPasses:  cfg.MaxPasses,
		maxRecords: cfg.MaxRecords,
		ttl:        cfg.TTL,
	}
	if s.normalizer == nil {
		s.normalizer = record.DefaultNormalizer()
	}
	if s.cache == nil {
		s.cache = NewMemoryForestCache()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.dataset == "" {
		s.dataset = defaultDataset
	}
	return s
}

func (s *OrgChartService) datasetFrom(ctx context.Context) string {
	if v, ok := composables.UseDataset(ctx); ok {
		return v
	}
	return s.dataset
}

// Build normalizes raws and rebuilds the forest on a worker goroutine. When ctx
// is canceled first, the partial work is discarded and nothing is returned.
func (s *OrgChartService) Build(ctx context.Context, raws []map[string]string) (*BuildResult, error) {
	if raws == nil {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidQuery, "no records to build from", hierarchy.ErrNilRecords)
	}
	if s.maxRecords > 0 && len(raws) > s.maxRecords {
		recordBuild("rejected")
		return nil, newServiceError(
			http.StatusRequestEntityTooLarge,
			CodeTooManyRecords,
			fmt.Sprintf("%d records exceed the limit of %d", len(raws), s.maxRecords),
			nil,
		)
	}
	dataset := s.datasetFrom(ctx)

	ctx, span := tracer.Start(ctx, "orgchart.build", trace.WithAttributes(
		attribute.String("orgchart.dataset", dataset),
		attribute.Int("orgchart.raw_records", len(raws)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, s.canceled(ctx, span, err)
	}

	runID := uuid.New()
	start := s.clock.Now()

	type outcome struct {
		forest *hierarchy.Forest
		stats  record.NormalizeStats
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		recs, stats := s.normalizer.NormalizeAll(raws)
		f, err := hierarchy.Build(recs, hierarchy.Options{MaxPasses: s.maxPasses})
		done <- outcome{forest: f, stats: stats, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, s.canceled(ctx, span, ctx.Err())
	case out = <-done:
	}
	if err := ctx.Err(); err != nil {
		return nil, s.canceled(ctx, span, err)
	}
	if out.err != nil {
		recordBuild("failed")
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		return nil, newServiceError(http.StatusInternalServerError, CodeBuildFailed, "forest build failed", out.err)
	}

	builtAt := s.clock.Now()
	res := newBuildResult(runID, dataset, out.forest, out.stats, builtAt, builtAt.Sub(start))

	recordBuild("ok")
	orgchartBuildDuration.Observe(res.Duration.Seconds())
	recordNormalizeStats(out.stats)
	recordReport(out.forest.Report)

	st := out.forest.Statistics
	span.SetAttributes(
		attribute.String("orgchart.run_id", runID.String()),
		attribute.Int("orgchart.organizations", st.TotalOrganizations),
		attribute.Int("orgchart.positions", st.TotalPositions),
		attribute.Int("orgchart.passes", out.forest.Report.Passes),
	)
	logWithFields(ctx, logrus.InfoLevel, "orgchart.build.completed", logrus.Fields{
		"run_id":        runID.String(),
		"dataset":       dataset,
		"raw_records":   len(raws),
		"accepted":      out.stats.Accepted,
		"dropped":       out.stats.Dropped(),
		"organizations": st.TotalOrganizations,
		"positions":     st.TotalPositions,
		"vacant":        st.VacantPositions,
		"roots":         st.RootCount,
		"orphans":       len(out.forest.Orphans),
		"max_depth":     st.MaxDepth,
		"passes":        out.forest.Report.Passes,
		"duration_ms":   res.Duration.Milliseconds(),
	})
	if notices := res.Notices(); len(notices) > 0 {
		logWithFields(ctx, logrus.WarnLevel, "orgchart.build.data_quality", logrus.Fields{
			"run_id":  runID.String(),
			"dataset": dataset,
			"notices": notices,
		})
	}
	return res, nil
}

func (s *OrgChartService) canceled(ctx context.Context, span trace.Span, cause error) error {
	recordBuild("canceled")
	span.SetStatus(codes.Error, "canceled")
	logWithFields(ctx, logrus.InfoLevel, "orgchart.build.canceled", logrus.Fields{"cause": cause.Error()})
	return newServiceError(statusClientClosed, CodeBuildCanceled, "forest build canceled", cause)
}

// Current returns the cached forest of the dataset bound to ctx. On a miss it
// tries the snapshot store, then reloads the source and rebuilds.
func (s *OrgChartService) Current(ctx context.Context) (*BuildResult, error) {
	dataset := s.datasetFrom(ctx)
	if res, ok := s.cached(dataset); ok {
		recordCacheRequest("memory", true)
		return res, nil
	}
	recordCacheRequest("memory", false)

	defer s.rebuild.lock(dataset)()

	if res, ok := s.cached(dataset); ok {
		return res, nil
	}
	if res, ok := s.loadSnapshot(ctx, dataset); ok {
		return res, nil
	}
	return s.rebuildLocked(ctx, dataset)
}

// Refresh drops the cached forest and rebuilds from the source.
func (s *OrgChartService) Refresh(ctx context.Context) (*BuildResult, error) {
	dataset := s.datasetFrom(ctx)

	defer s.rebuild.lock(dataset)()

	s.cache.Invalidate(dataset)
	recordCacheInvalidate("refresh")
	return s.rebuildLocked(ctx, dataset)
}

func (s *OrgChartService) cached(dataset string) (*BuildResult, bool) {
	entry, ok := s.cache.Get(dataset)
	if !ok || !entry.Fresh(s.clock.Now()) {
		return nil, false
	}
	return entry.Result, true
}

func (s *OrgChartService) loadSnapshot(ctx context.Context, dataset string) (*BuildResult, bool) {
	if s.snapshots == nil {
		return nil, false
	}
	snap, err := s.snapshots.Load(ctx, dataset)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			logWithFields(ctx, logrus.WarnLevel, "orgchart.snapshot.load_failed", logrus.Fields{
				"dataset": dataset,
				"error":   err.Error(),
			})
		}
		recordCacheRequest("snapshot", false)
		return nil, false
	}
	res, err := resultFromSnapshot(snap)
	if err != nil {
		recordCacheRequest("snapshot", false)
		return nil, false
	}
	entry := CachedForest{Result: res, BuiltAt: res.BuiltAt, TTL: s.ttl}
	if !entry.Fresh(s.clock.Now()) {
		recordCacheRequest("snapshot", false)
		return nil, false
	}
	recordCacheRequest("snapshot", true)
	s.cache.Put(dataset, entry)
	return res, true
}

func (s *OrgChartService) rebuildLocked(ctx context.Context, dataset string) (*BuildResult, error) {
	if s.source == nil {
		return nil, newServiceError(http.StatusServiceUnavailable, CodeSourceFailed, "no record source configured", nil)
	}
	raws, err := s.source.LoadRaw(composables.WithDataset(ctx, dataset))
	if err != nil {
		if ctx.Err() != nil {
			return nil, newServiceError(statusClientClosed, CodeBuildCanceled, "forest build canceled", err)
		}
		return nil, newServiceError(http.StatusBadGateway, CodeSourceFailed, "failed to load records", errors.Wrap(err, "load raw records"))
	}
	res, err := s.Build(composables.WithDataset(ctx, dataset), raws)
	if err != nil {
		return nil, err
	}
	s.cache.Put(dataset, CachedForest{Result: res, BuiltAt: res.BuiltAt, TTL: s.ttl})
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, res.Snapshot()); err != nil {
			logWithFields(ctx, logrus.WarnLevel, "orgchart.snapshot.save_failed", logrus.Fields{
				"dataset": dataset,
				"run_id":  res.RunID.String(),
				"error":   err.Error(),
			})
		}
	}
	return res, nil
}

func (s *OrgChartService) Lookup(ctx context.Context, id string) (hierarchy.Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return hierarchy.Entity{}, newServiceError(http.StatusBadRequest, CodeInvalidQuery, "id is required", nil)
	}
	res, err := s.Current(ctx)
	if err != nil {
		return hierarchy.Entity{}, err
	}
	e, err := res.Index.Lookup(id)
	if err != nil {
		return hierarchy.Entity{}, mapLookupError(err, id)
	}
	return e, nil
}

func (s *OrgChartService) Search(ctx context.Context, term string, kind hierarchy.SearchKind) ([]hierarchy.Entity, error) {
	if strings.TrimSpace(term) == "" {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidQuery, "search term is required", nil)
	}
	res, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return res.Index.Search(term, kind), nil
}

func (s *OrgChartService) Suggest(ctx context.Context, term string, limit int) ([]hierarchy.Entity, error) {
	if strings.TrimSpace(term) == "" {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidQuery, "search term is required", nil)
	}
	res, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return res.Index.Suggest(term, limit), nil
}

func (s *OrgChartService) ChildrenOf(ctx context.Context, nodeID string) (hierarchy.Expansion, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return hierarchy.Expansion{}, newServiceError(http.StatusBadRequest, CodeInvalidQuery, "node id is required", nil)
	}
	res, err := s.Current(ctx)
	if err != nil {
		return hierarchy.Expansion{}, err
	}
	exp, err := res.Expander.ChildrenOf(nodeID)
	if err != nil {
		return hierarchy.Expansion{}, mapLookupError(err, nodeID)
	}
	return exp, nil
}

// AssignablePositions lists the filled positions directly under a node. Vacant
// seats are never offered as action targets.
func (s *OrgChartService) AssignablePositions(ctx context.Context, nodeID string) ([]hierarchy.Position, error) {
	exp, err := s.ChildrenOf(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	out := make([]hierarchy.Position, 0, len(exp.Positions))
	for _, p := range exp.Positions {
		if p.Assignable() {
			out = append(out, p)
		}
	}
	return out, nil
}
