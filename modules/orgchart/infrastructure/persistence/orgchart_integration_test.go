package persistence

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgflow/migrations"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/modules/orgchart/services"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

func canDial(tb testing.TB, addr string) bool {
	tb.Helper()

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func setupPostgres(tb testing.TB) (context.Context, *pgxpool.Pool) {
	tb.Helper()

	cfg := configuration.Use()
	host := strings.TrimSpace(cfg.Database.Host)
	if host == "" {
		host = "localhost"
	}
	if !canDial(tb, net.JoinHostPort(host, cfg.Database.Port)) {
		tb.Skip("postgres not reachable")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.Opts)
	require.NoError(tb, err)
	tb.Cleanup(pool.Close)

	ms, err := migrations.All()
	require.NoError(tb, err)
	for _, m := range ms {
		_, err := pool.Exec(ctx, m.Up, pgx.QueryExecModeSimpleProtocol)
		require.NoError(tb, err, m.Name)
	}
	return composables.WithPool(ctx, pool), pool
}

func TestRecordRepository_ReplaceAndList_Integration(t *testing.T) {
	ctx, pool := setupPostgres(t)
	dataset := "it-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM orgchart_records WHERE dataset = $1`, dataset)
	})

	repo := NewRecordRepository()
	recs := []record.UnitRecord{
		{ID: "A", Kind: record.KindOrganization, Name: "Board"},
		{ID: "B", Kind: record.KindOrganization, Name: "Finance", ParentID: "A", Auxiliary: map[string]string{"Cost Center": "CC-1"}},
		{ID: "P", Kind: record.KindPosition, Name: "Clerk", ParentID: "B"},
	}
	n, err := repo.ReplaceDataset(ctx, dataset, recs)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	// replacing keeps only the latest import
	n, err = repo.ReplaceDataset(ctx, dataset, recs[:2])
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	raws, err := repo.ListRaw(ctx, dataset)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "CC-1", raws[1]["Cost Center"])

	infos, err := repo.ListDatasets(ctx)
	require.NoError(t, err)
	require.Contains(t, infos, DatasetInfo{Name: dataset, Rows: 2})

	normalizer, err := record.NewNormalizer(record.CanonicalFieldMapping())
	require.NoError(t, err)
	svc := services.NewOrgChartService(NewDatasetSource(repo, dataset), services.Config{Dataset: dataset, Normalizer: normalizer})
	res, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Forest.Statistics.TotalOrganizations)
	require.Equal(t, 1, res.Forest.Statistics.MaxDepth)
}

func TestRedisSnapshotStore_Integration(t *testing.T) {
	cfg := configuration.Use()
	if !canDial(t, cfg.RedisURL) {
		t.Skip("redis not reachable")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisSnapshotStore(client, "orgflow:test:"+uuid.NewString(), time.Minute)

	_, err := store.Load(ctx, "hr")
	require.ErrorIs(t, err, services.ErrSnapshotNotFound)

	f, err := hierarchy.Build([]record.UnitRecord{
		{ID: "A", Kind: record.KindOrganization, Name: "Board"},
		{ID: "B", Kind: record.KindOrganization, Name: "Lost", ParentID: "ghost"},
	}, hierarchy.Options{})
	require.NoError(t, err)
	snap := &services.Snapshot{RunID: uuid.New(), Dataset: "hr", BuiltAt: time.Now().UTC().Truncate(time.Second), Forest: f}
	require.NoError(t, store.Save(ctx, snap))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "hr") })

	got, err := store.Load(ctx, "hr")
	require.NoError(t, err)
	require.Equal(t, snap.RunID, got.RunID)
	require.True(t, snap.BuiltAt.Equal(got.BuiltAt))
	require.Len(t, got.Forest.Roots, 2)
	require.Len(t, got.Forest.Orphans, 1)
	require.Equal(t, "B", got.Forest.Orphans[0].ID)

	ttl, err := client.TTL(ctx, store.key("hr")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestRedisSnapshotStore_Key(t *testing.T) {
	store := NewRedisSnapshotStore(nil, "orgflow:forest:v1", time.Minute)
	require.Equal(t, "orgflow:forest:v1:hr", store.key("hr"))
}
