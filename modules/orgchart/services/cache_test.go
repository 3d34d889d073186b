package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCachedForest_Fresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &BuildResult{}

	cases := []struct {
		name  string
		entry CachedForest
		want  bool
	}{
		{"empty", CachedForest{}, false},
		{"within ttl", CachedForest{Result: res, BuiltAt: now.Add(-time.Minute), TTL: 2 * time.Minute}, true},
		{"at ttl", CachedForest{Result: res, BuiltAt: now.Add(-2 * time.Minute), TTL: 2 * time.Minute}, false},
		{"no ttl", CachedForest{Result: res, BuiltAt: now.Add(-24 * time.Hour)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.entry.Fresh(now))
		})
	}
}

func TestMemoryForestCache(t *testing.T) {
	c := NewMemoryForestCache()
	_, ok := c.Get("hr")
	require.False(t, ok)

	c.Put("hr", CachedForest{})
	_, ok = c.Get("hr")
	require.False(t, ok, "entries without a result are ignored")

	entry := CachedForest{Result: &BuildResult{Dataset: "hr"}, TTL: time.Minute}
	c.Put("hr", entry)
	got, ok := c.Get("hr")
	require.True(t, ok)
	require.Same(t, entry.Result, got.Result)

	c.Invalidate("hr")
	_, ok = c.Get("hr")
	require.False(t, ok)
}
