package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/pkg/composables"
)

var ErrEmptyDataset = errors.New("dataset name is required")

var recordColumns = []string{"dataset", "row_no", "object_id", "object_type", "name", "parent_id", "holder", "auxiliary"}

type DatasetInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// RecordRepository stores normalized unit records per named dataset.
type RecordRepository struct{}

func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// ListRaw returns the stored rows of dataset in import order, keyed by the
// canonical field names.
func (r *RecordRepository) ListRaw(ctx context.Context, dataset string) ([]map[string]string, error) {
	if dataset == "" {
		return nil, ErrEmptyDataset
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT row_no, object_id, object_type, name, parent_id, holder, auxiliary
FROM orgchart_records
WHERE dataset = $1
ORDER BY row_no ASC
`, dataset)
	if err != nil {
		return nil, errors.Wrap(err, "query orgchart records")
	}
	defer rows.Close()

	out := make([]map[string]string, 0, 256)
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(&row.RowNo, &row.ObjectID, &row.ObjectType, &row.Name, &row.ParentID, &row.Holder, &row.Auxiliary); err != nil {
			return nil, errors.Wrap(err, "scan orgchart record")
		}
		raw, err := toRawRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "decode auxiliary of %s", row.ObjectID)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orgchart records")
	}
	return out, nil
}

// ReplaceDataset swaps the content of dataset for recs in one transaction.
func (r *RecordRepository) ReplaceDataset(ctx context.Context, dataset string, recs []record.UnitRecord) (int64, error) {
	if dataset == "" {
		return 0, ErrEmptyDataset
	}
	rows := make([]recordRow, 0, len(recs))
	for _, rec := range recs {
		row, err := toRecordRow(rec)
		if err != nil {
			return 0, errors.Wrapf(err, "encode auxiliary of %s", rec.ID)
		}
		rows = append(rows, row)
	}

	var copied int64
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(txCtx, `DELETE FROM orgchart_records WHERE dataset = $1`, dataset); err != nil {
			return errors.Wrap(err, "delete previous dataset rows")
		}
		copied, err = tx.CopyFrom(
			txCtx,
			pgx.Identifier{"orgchart_records"},
			recordColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				row := rows[i]
				return []any{
					dataset,
					i + 1,
					row.ObjectID,
					row.ObjectType,
					row.Name,
					row.ParentID,
					row.Holder,
					row.Auxiliary,
				}, nil
			}),
		)
		if err != nil {
			return errors.Wrap(err, "copy dataset rows")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

func (r *RecordRepository) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT dataset, count(*)
FROM orgchart_records
GROUP BY dataset
ORDER BY dataset ASC
`)
	if err != nil {
		return nil, errors.Wrap(err, "query datasets")
	}
	defer rows.Close()

	out := make([]DatasetInfo, 0, 8)
	for rows.Next() {
		var info DatasetInfo
		if err := rows.Scan(&info.Name, &info.Rows); err != nil {
			return nil, errors.Wrap(err, "scan dataset")
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate datasets")
	}
	return out, nil
}
