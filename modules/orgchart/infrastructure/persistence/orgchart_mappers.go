package persistence

import (
	"encoding/json"
	"strconv"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// Stored rows use the canonical field names. Read them back with a normalizer
// built from record.CanonicalFieldMapping.
const (
	rawID       = record.FieldID
	rawName     = record.FieldName
	rawType     = record.FieldType
	rawParentID = record.FieldParentID
	rawHolder   = record.FieldHolder
)

type recordRow struct {
	RowNo      int64
	ObjectID   string
	ObjectType string
	Name       string
	ParentID   string
	Holder     string
	Auxiliary  []byte
}

func toRecordRow(rec record.UnitRecord) (recordRow, error) {
	aux := rec.Auxiliary
	if aux == nil {
		aux = map[string]string{}
	}
	b, err := json.Marshal(aux)
	if err != nil {
		return recordRow{}, err
	}
	return recordRow{
		ObjectID:   rec.ID,
		ObjectType: string(rec.Kind),
		Name:       rec.Name,
		ParentID:   rec.ParentID,
		Holder:     rec.Holder,
		Auxiliary:  b,
	}, nil
}

// toRawRow rebuilds a raw row. Auxiliary columns never shadow canonical ones.
func toRawRow(row recordRow) (map[string]string, error) {
	out := map[string]string{}
	if len(row.Auxiliary) > 0 {
		var aux map[string]string
		if err := json.Unmarshal(row.Auxiliary, &aux); err != nil {
			return nil, err
		}
		for k, v := range aux {
			if !record.IsCanonicalHeader(k) {
				out[k] = v
			}
		}
	}
	out[rawID] = row.ObjectID
	out[rawType] = row.ObjectType
	out[rawName] = row.Name
	out[rawParentID] = row.ParentID
	out[rawHolder] = row.Holder
	if row.RowNo > 0 {
		out[record.SourceRowKey] = strconv.FormatInt(row.RowNo, 10)
	}
	return out, nil
}
