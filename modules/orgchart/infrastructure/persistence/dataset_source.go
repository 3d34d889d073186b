package persistence

import (
	"context"

	"github.com/iota-uz/orgflow/pkg/composables"
)

// DatasetSource reads raw rows of one dataset from the record repository. A
// dataset bound to the context takes precedence.
type DatasetSource struct {
	repo    *RecordRepository
	dataset string
}

func NewDatasetSource(repo *RecordRepository, dataset string) *DatasetSource {
	return &DatasetSource{repo: repo, dataset: dataset}
}

func (s *DatasetSource) LoadRaw(ctx context.Context) ([]map[string]string, error) {
	dataset := s.dataset
	if v, ok := composables.UseDataset(ctx); ok {
		dataset = v
	}
	return s.repo.ListRaw(ctx, dataset)
}
