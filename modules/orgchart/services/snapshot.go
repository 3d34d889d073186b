package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

var ErrSnapshotNotFound = errors.New("forest snapshot not found")

// Snapshot is the serializable part of a BuildResult. The index is rebuilt on load.
type Snapshot struct {
	RunID     uuid.UUID             `json:"run_id"`
	Dataset   string                `json:"dataset"`
	BuiltAt   time.Time             `json:"built_at"`
	Duration  time.Duration         `json:"duration_ns"`
	Normalize record.NormalizeStats `json:"normalize"`
	Forest    *hierarchy.Forest     `json:"forest"`
}

// SnapshotStore shares built forests between processes.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, dataset string) (*Snapshot, error)
}

func (r *BuildResult) Snapshot() *Snapshot {
	return &Snapshot{
		RunID:     r.RunID,
		Dataset:   r.Dataset,
		BuiltAt:   r.BuiltAt,
		Duration:  r.Duration,
		Normalize: r.Normalize,
		Forest:    r.Forest,
	}
}

func resultFromSnapshot(snap *Snapshot) (*BuildResult, error) {
	if snap == nil || snap.Forest == nil {
		return nil, errors.New("snapshot has no forest")
	}
	return newBuildResult(snap.RunID, snap.Dataset, snap.Forest, snap.Normalize, snap.BuiltAt, snap.Duration), nil
}
