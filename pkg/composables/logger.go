package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgflow/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger bound to ctx, or nil when none was set.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

func WithDataset(ctx context.Context, dataset string) context.Context {
	return context.WithValue(ctx, constants.DatasetKey, dataset)
}

// UseDataset returns the dataset name bound to ctx.
func UseDataset(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(constants.DatasetKey).(string)
	return v, ok && v != ""
}
