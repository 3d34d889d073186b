package services

import "context"

// RecordSource yields the raw rows of the dataset bound to ctx.
type RecordSource interface {
	LoadRaw(ctx context.Context) ([]map[string]string, error)
}

// StaticSource serves rows that were read up front, e.g. from import files.
type StaticSource []map[string]string

func (s StaticSource) LoadRaw(ctx context.Context) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return []map[string]string{}, nil
	}
	return s, nil
}
