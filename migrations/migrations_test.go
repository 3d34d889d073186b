package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	ms, err := All()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	require.Equal(t, "orgchart/00001_orgchart_records.sql", ms[0].Name)
	require.Contains(t, ms[0].Up, "CREATE TABLE IF NOT EXISTS orgchart_records")
	require.NotContains(t, ms[0].Up, "DROP TABLE")
	require.True(t, strings.HasPrefix(ms[0].Down, "DROP INDEX"))
}

func TestSplit_WithoutAnnotations(t *testing.T) {
	up, down := split("SELECT 1;\n")
	require.Equal(t, "SELECT 1;", up)
	require.Empty(t, down)
}
