package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseLogger(t *testing.T) {
	require.Nil(t, UseLogger(context.Background()))

	logger := logrus.New()
	ctx := WithLogger(context.Background(), logrus.NewEntry(logger).WithField("run", "1"))
	entry := UseLogger(ctx)
	require.NotNil(t, entry)
	require.Equal(t, "1", entry.Data["run"])
}

func TestUseDataset(t *testing.T) {
	_, ok := UseDataset(context.Background())
	require.False(t, ok)

	_, ok = UseDataset(WithDataset(context.Background(), ""))
	require.False(t, ok)

	ds, ok := UseDataset(WithDataset(context.Background(), "hr-2026"))
	require.True(t, ok)
	require.Equal(t, "hr-2026", ds)
}

func TestUseTx_WithoutPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}
