package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func chainRows() []map[string]string {
	return []map[string]string{
		{"Object ID": "A", "Object Type": "O", "Description": "Head Office"},
		{"Object ID": "B", "Object Type": "O", "Description": "Finance", "Parent ID": "A"},
		{"Object ID": "C", "Object Type": "S", "Description": "Accountant", "Parent ID": "B", "Holder": "Jane Roe"},
		{"Object ID": "D", "Object Type": "S", "Description": "Controller", "Parent ID": "B", "Holder": "vacant"},
		{"Object ID": "E", "Object Type": "K", "Description": "Cost center"},
	}
}

type countingSource struct {
	rows     []map[string]string
	err      error
	calls    atomic.Int32
	datasets sync.Map
}

func (s *countingSource) LoadRaw(ctx context.Context) ([]map[string]string, error) {
	s.calls.Add(1)
	if ds, ok := composables.UseDataset(ctx); ok {
		s.datasets.Store(ds, true)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[string]*Snapshot
	saves int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snaps: make(map[string]*Snapshot)}
}

func (m *memorySnapshots) Save(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.Dataset] = snap
	m.saves++
	return nil
}

func (m *memorySnapshots) Load(_ context.Context, dataset string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[dataset]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "expected *ServiceError, got %T", err)
	require.Equal(t, code, svcErr.Code)
}

func TestBuild_NormalizesAndIndexes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	svc := NewOrgChartService(nil, Config{Clock: clock})

	before := counterValue(t, orgchartBuilds.WithLabelValues("ok"))
	res, err := svc.Build(context.Background(), chainRows())
	require.NoError(t, err)

	require.Equal(t, 1.0, counterValue(t, orgchartBuilds.WithLabelValues("ok"))-before)
	require.Equal(t, clock.Now(), res.BuiltAt)
	require.Equal(t, "default", res.Dataset)
	require.NotEqual(t, uuid.Nil, res.RunID)
	require.Equal(t, 4, res.Normalize.Accepted)
	require.Equal(t, 1, res.Normalize.UnsupportedKind)
	require.Equal(t, 2, res.Forest.Statistics.TotalOrganizations)
	require.Equal(t, 1, res.Forest.Statistics.VacantPositions)
	require.Equal(t, 4, res.Index.Len())
	require.Len(t, res.Notices(), 1)
}

func TestBuild_RejectsOversizedInput(t *testing.T) {
	svc := NewOrgChartService(nil, Config{MaxRecords: 2})
	_, err := svc.Build(context.Background(), chainRows())
	requireCode(t, err, CodeTooManyRecords)
}

func TestBuild_NilRows(t *testing.T) {
	svc := NewOrgChartService(nil, Config{})
	_, err := svc.Build(context.Background(), nil)
	requireCode(t, err, CodeInvalidQuery)
	require.ErrorIs(t, err, hierarchy.ErrNilRecords)
}

func TestBuild_CanceledContextReturnsNothing(t *testing.T) {
	svc := NewOrgChartService(nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := counterValue(t, orgchartBuilds.WithLabelValues("canceled"))
	res, err := svc.Build(ctx, chainRows())
	require.Nil(t, res)
	requireCode(t, err, CodeBuildCanceled)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1.0, counterValue(t, orgchartBuilds.WithLabelValues("canceled"))-before)
}

func TestBuild_LogsThroughContextLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ctx := composables.WithLogger(context.Background(), logrus.NewEntry(logger))

	svc := NewOrgChartService(nil, Config{})
	_, err := svc.Build(ctx, chainRows())
	require.NoError(t, err)

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	require.Contains(t, messages, "orgchart.build.completed")
	require.Contains(t, messages, "orgchart.build.data_quality")
}

func TestCurrent_CachesUntilTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &countingSource{rows: chainRows()}
	svc := NewOrgChartService(src, Config{Clock: clock, TTL: time.Minute})
	ctx := context.Background()

	first, err := svc.Current(ctx)
	require.NoError(t, err)
	second, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, src.calls.Load())

	clock.Advance(time.Minute)
	third, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, third)
	require.EqualValues(t, 2, src.calls.Load())

	// earlier readers keep their own immutable value
	require.Equal(t, 2, first.Forest.Statistics.TotalOrganizations)
}

func TestCurrent_ConcurrentMissesBuildOnce(t *testing.T) {
	src := &countingSource{rows: chainRows()}
	svc := NewOrgChartService(src, Config{TTL: time.Hour})

	var wg sync.WaitGroup
	results := make([]*BuildResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Current(context.Background())
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, src.calls.Load())
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}

func TestCurrent_UsesSnapshotBeforeSource(t *testing.T) {
	clock := clockwork.NewFakeClock()
	snaps := newMemorySnapshots()
	ctx := context.Background()

	producer := NewOrgChartService(&countingSource{rows: chainRows()}, Config{Clock: clock, TTL: time.Hour, Snapshots: snaps})
	built, err := producer.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snaps.saves)

	src := &countingSource{rows: chainRows()}
	consumer := NewOrgChartService(src, Config{Clock: clock, TTL: time.Hour, Snapshots: snaps})
	got, err := consumer.Current(ctx)
	require.NoError(t, err)
	require.Zero(t, src.calls.Load())
	require.Equal(t, built.RunID, got.RunID)
	require.Equal(t, 4, got.Index.Len())

	clock.Advance(2 * time.Hour)
	consumer.cache.Invalidate("default")
	_, err = consumer.Current(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, src.calls.Load())
}

func TestCurrent_DatasetFromContext(t *testing.T) {
	src := &countingSource{rows: chainRows()}
	svc := NewOrgChartService(src, Config{Dataset: "hr"})

	res, err := svc.Current(composables.WithDataset(context.Background(), "sales"))
	require.NoError(t, err)
	require.Equal(t, "sales", res.Dataset)
	_, seen := src.datasets.Load("sales")
	require.True(t, seen)

	res, err = svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hr", res.Dataset)
	require.EqualValues(t, 2, src.calls.Load())
}

func TestCurrent_SourceErrors(t *testing.T) {
	svc := NewOrgChartService(&countingSource{err: errors.New("connection refused")}, Config{})
	_, err := svc.Current(context.Background())
	requireCode(t, err, CodeSourceFailed)

	svc = NewOrgChartService(nil, Config{})
	_, err = svc.Current(context.Background())
	requireCode(t, err, CodeSourceFailed)
}

func TestRefresh_ReplacesCachedValue(t *testing.T) {
	src := &countingSource{rows: chainRows()}
	svc := NewOrgChartService(src, Config{TTL: time.Hour})
	ctx := context.Background()

	first, err := svc.Current(ctx)
	require.NoError(t, err)
	refreshed, err := svc.Refresh(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, refreshed)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Same(t, refreshed, current)
	require.EqualValues(t, 2, src.calls.Load())
}

func TestQueries(t *testing.T) {
	svc := NewOrgChartService(StaticSource(chainRows()), Config{})
	ctx := context.Background()

	e, err := svc.Lookup(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, []string{"Head Office"}, e.Path)

	_, err = svc.Lookup(ctx, "nope")
	requireCode(t, err, CodeNodeNotFound)
	require.ErrorIs(t, err, hierarchy.ErrNodeNotFound)

	_, err = svc.Lookup(ctx, " ")
	requireCode(t, err, CodeInvalidQuery)

	hits, err := svc.Search(ctx, "finance", hierarchy.SearchOrganizations)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "B", hits[0].ID)

	_, err = svc.Search(ctx, "", hierarchy.SearchAny)
	requireCode(t, err, CodeInvalidQuery)

	sugg, err := svc.Suggest(ctx, "fnance", 5)
	require.NoError(t, err)
	require.NotEmpty(t, sugg)
	require.Equal(t, "B", sugg[0].ID)

	exp, err := svc.ChildrenOf(ctx, "B")
	require.NoError(t, err)
	require.Len(t, exp.Positions, 2)

	_, err = svc.ChildrenOf(ctx, "C")
	requireCode(t, err, CodeNodeNotFound)
}

func TestAssignablePositions_SkipsVacant(t *testing.T) {
	svc := NewOrgChartService(StaticSource(chainRows()), Config{})

	got, err := svc.AssignablePositions(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "C", got[0].ID)
	require.Equal(t, "Jane Roe", got[0].Holder)
}

func TestConfigFromOptions(t *testing.T) {
	cfg := ConfigFromOptions(configuration.ForestOptions{
		MaxPasses:  8,
		CacheTTL:   time.Minute,
		MaxRecords: 10,
		Dataset:    "hr",
	})
	require.Equal(t, Config{Dataset: "hr", MaxPasses: 8, MaxRecords: 10, TTL: time.Minute}, cfg)
}

type gatedSource struct {
	slow    string
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) LoadRaw(ctx context.Context) ([]map[string]string, error) {
	if ds, _ := composables.UseDataset(ctx); ds == s.slow {
		close(s.entered)
		<-s.release
	}
	return chainRows(), nil
}

func TestCurrent_SlowDatasetDoesNotBlockOthers(t *testing.T) {
	src := &gatedSource{slow: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewOrgChartService(src, Config{TTL: time.Hour})

	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.Current(composables.WithDataset(context.Background(), "slow"))
		slowDone <- err
	}()
	<-src.entered

	fastDone := make(chan error, 1)
	go func() {
		res, err := svc.Current(composables.WithDataset(context.Background(), "fast"))
		if err == nil && res.Dataset != "fast" {
			err = errors.New("unexpected dataset " + res.Dataset)
		}
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild of one dataset waited for another dataset's source")
	}

	close(src.release)
	require.NoError(t, <-slowDone)
}
