package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/constants"
)

func TestRecordRepository_ListRaw_MapsRows(t *testing.T) {
	queryCalled := false
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			queryCalled = true
			require.Contains(t, sql, "FROM orgchart_records")
			require.Contains(t, sql, "ORDER BY row_no")
			require.Equal(t, "hr", args[0])
			return &stubRows{data: [][]any{
				{int64(1), "A", "ORGANIZATION", "Board", "", "", []byte(`{"Cost Center":"CC-1","Name":"shadowed"}`)},
				{int64(3), "P", "POSITION", "Clerk", "A", "Jane Roe", []byte(`{}`)},
			}}, nil
		},
	}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)

	raws, err := NewRecordRepository().ListRaw(ctx, "hr")
	require.NoError(t, err)
	require.True(t, queryCalled)
	require.Equal(t, []map[string]string{
		{"id": "A", "type": "ORGANIZATION", "name": "Board", "parent_id": "", "holder": "", "Cost Center": "CC-1", record.SourceRowKey: "1"},
		{"id": "P", "type": "POSITION", "name": "Clerk", "parent_id": "A", "holder": "Jane Roe", record.SourceRowKey: "3"},
	}, raws)

	n, err := record.NewNormalizer(record.CanonicalFieldMapping())
	require.NoError(t, err)
	recs, stats := n.NormalizeAll(raws)
	require.Equal(t, 2, stats.Accepted)
	require.Equal(t, "Board", recs[0].Name)
	require.Equal(t, map[string]string{"Cost Center": "CC-1"}, recs[0].Auxiliary)
	require.Equal(t, record.KindPosition, recs[1].Kind)
	require.Equal(t, 3, recs[1].Row)
}

func TestRecordRepository_ListRaw_RequiresDataset(t *testing.T) {
	_, err := NewRecordRepository().ListRaw(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestRecordRepository_ListRaw_WrapsQueryError(t *testing.T) {
	boom := errors.New("boom")
	tx := &stubTx{queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		return nil, boom
	}}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)

	_, err := NewRecordRepository().ListRaw(ctx, "hr")
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "query orgchart records")
}

func TestRecordRepository_ListRaw_NoDatabase(t *testing.T) {
	_, err := NewRecordRepository().ListRaw(context.Background(), "hr")
	require.ErrorIs(t, err, composables.ErrNoPool)
}

func TestRecordRepository_ListDatasets(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "GROUP BY dataset")
			return &stubRows{data: [][]any{{"finance", int64(12)}, {"hr", int64(3)}}}, nil
		},
	}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)

	got, err := NewRecordRepository().ListDatasets(ctx)
	require.NoError(t, err)
	require.Equal(t, []DatasetInfo{{Name: "finance", Rows: 12}, {Name: "hr", Rows: 3}}, got)
}

func TestDatasetSource_PrefersContextDataset(t *testing.T) {
	var asked []string
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			asked = append(asked, args[0].(string))
			return &stubRows{}, nil
		},
	}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)
	src := NewDatasetSource(NewRecordRepository(), "default")

	_, err := src.LoadRaw(ctx)
	require.NoError(t, err)
	_, err = src.LoadRaw(composables.WithDataset(ctx, "sales"))
	require.NoError(t, err)
	require.Equal(t, []string{"default", "sales"}, asked)
}

func TestToRecordRow_EmptyAuxiliary(t *testing.T) {
	row, err := toRecordRow(record.UnitRecord{ID: "A", Kind: record.KindOrganization})
	require.NoError(t, err)
	require.Equal(t, "ORGANIZATION", row.ObjectType)
	require.JSONEq(t, `{}`, string(row.Auxiliary))
}

type stubTx struct {
	queryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy not implemented")
}

func (s *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *string:
			*v = row[i].(string)
		case *int64:
			*v = row[i].(int64)
		case *[]byte:
			*v = row[i].([]byte)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx-1], nil
}

func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Err() error          { return r.err }
func (r *stubRows) Close()              {}
func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
