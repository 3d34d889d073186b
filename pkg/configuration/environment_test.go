package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "ORGFLOW_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "orgchart")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("ORGFLOW_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("ORGFLOW_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("ORGFLOW_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestParse_Defaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.parse())
	require.Equal(t, 64, c.Forest.MaxPasses)
	require.Equal(t, 5*time.Minute, c.Forest.CacheTTL)
	require.Equal(t, "memory", c.Forest.CacheBackend)
	require.Contains(t, c.Database.Opts, "dbname=orgflow")
}

func TestParse_RejectsInvalidForestOptions(t *testing.T) {
	t.Setenv("FOREST_MAX_PASSES", "0")
	c := &Configuration{}
	require.Error(t, c.parse())
}

func TestParse_RejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("FOREST_CACHE_BACKEND", "memcached")
	c := &Configuration{}
	require.Error(t, c.parse())
}

func TestParse_NormalizesCacheBackend(t *testing.T) {
	t.Setenv("FOREST_CACHE_BACKEND", " Redis ")
	c := &Configuration{}
	require.NoError(t, c.parse())
	require.Equal(t, "redis", c.Forest.CacheBackend)
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
