package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SourceRowKey is the reserved raw-row key readers use to pass the 1-based
// line of the row in its source. It never reaches Auxiliary.
const SourceRowKey = "\x00source_row"

// maxSampleRows caps the row numbers kept per rejection reason.
const maxSampleRows = 20

// vacantPlaceholders are holder texts that mean "nobody". They normalize to "".
var vacantPlaceholders = map[string]struct{}{
	"vacant":     {},
	"(vacant)":   {},
	"vacancy":    {},
	"unassigned": {},
	"n/a":        {},
	"none":       {},
	"-":          {},
	"--":         {},
}

// NormalizeStats counts what happened to a batch of raw rows.
type NormalizeStats struct {
	Total           int   `json:"total"`
	Accepted        int   `json:"accepted"`
	Organizations   int   `json:"organizations"`
	Positions       int   `json:"positions"`
	MissingRequired int   `json:"missing_required"`
	UnsupportedKind int   `json:"unsupported_kind"`
	MissingRows     []int `json:"missing_rows,omitempty"`
	UnsupportedRows []int `json:"unsupported_rows,omitempty"`
}

func (s NormalizeStats) Dropped() int {
	return s.MissingRequired + s.UnsupportedKind
}

// Normalizer maps raw rows onto UnitRecord using a FieldMapping. It is stateless
// after construction and safe for concurrent use.
type Normalizer struct {
	aliases map[string]aliasTarget
}

func NewNormalizer(m FieldMapping) (*Normalizer, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{aliases: m.compile()}, nil
}

// DefaultNormalizer uses DefaultFieldMapping.
func DefaultNormalizer() *Normalizer {
	return &Normalizer{aliases: DefaultFieldMapping().compile()}
}

type fieldValue struct {
	value string
	rank  int
	key   string
	set   bool
}

// better reports whether a candidate column should replace the current pick.
// Lower alias rank wins; ties go to the lexically smaller raw header so the
// outcome never depends on map iteration order.
func (f fieldValue) better(rank int, key string) bool {
	if !f.set {
		return true
	}
	if rank != f.rank {
		return rank < f.rank
	}
	return key < f.key
}

// Normalize converts one raw row. It returns ErrMissingRequiredField when the
// identifier or type tag is empty and ErrUnsupportedKind when the type tag is
// not recognized.
func (n *Normalizer) Normalize(raw map[string]string) (UnitRecord, error) {
	var picked [5]fieldValue
	var aux map[string]string
	var auxFrom map[string]string

	for key, v := range raw {
		if key == SourceRowKey {
			continue
		}
		v = strings.TrimSpace(v)
		target, ok := n.aliases[normalizeHeader(key)]
		if !ok {
			if v == "" {
				continue
			}
			if aux == nil {
				aux = make(map[string]string)
				auxFrom = make(map[string]string)
			}
			name := strings.TrimSpace(key)
			// headers that trim to the same name: the smallest raw header wins
			if prev, seen := auxFrom[name]; seen && prev <= key {
				continue
			}
			aux[name] = v
			auxFrom[name] = key
			continue
		}
		if v == "" {
			continue
		}
		slot := fieldSlot(target.field)
		if picked[slot].better(target.rank, key) {
			picked[slot] = fieldValue{value: v, rank: target.rank, key: key, set: true}
		}
	}

	id := picked[slotID].value
	if id == "" {
		return UnitRecord{}, fmt.Errorf("%w: %s", ErrMissingRequiredField, FieldID)
	}
	tag := picked[slotType].value
	if tag == "" {
		return UnitRecord{}, fmt.Errorf("%w: %s (id=%s)", ErrMissingRequiredField, FieldType, id)
	}
	kind, ok := ParseKind(tag)
	if !ok {
		return UnitRecord{}, fmt.Errorf("%w: %q (id=%s)", ErrUnsupportedKind, tag, id)
	}

	return UnitRecord{
		ID:        id,
		Name:      picked[slotName].value,
		Kind:      kind,
		ParentID:  picked[slotParent].value,
		Holder:    normalizeHolder(picked[slotHolder].value),
		Auxiliary: aux,
	}, nil
}

// NormalizeAll normalizes a batch. Rejected rows are counted, never fatal.
// Row numbers come from SourceRowKey when a reader set it, otherwise they are
// 1-based positions in raws.
func (n *Normalizer) NormalizeAll(raws []map[string]string) ([]UnitRecord, NormalizeStats) {
	stats := NormalizeStats{Total: len(raws)}
	out := make([]UnitRecord, 0, len(raws))
	for i, raw := range raws {
		row := sourceRow(raw, i+1)
		rec, err := n.Normalize(raw)
		if err != nil {
			if errors.Is(err, ErrUnsupportedKind) {
				stats.UnsupportedKind++
				stats.UnsupportedRows = appendSample(stats.UnsupportedRows, row)
			} else {
				stats.MissingRequired++
				stats.MissingRows = appendSample(stats.MissingRows, row)
			}
			continue
		}
		rec.Row = row
		switch rec.Kind {
		case KindOrganization:
			stats.Organizations++
		case KindPosition:
			stats.Positions++
		}
		out = append(out, rec)
	}
	stats.Accepted = len(out)
	return out, stats
}

const (
	slotID = iota
	slotName
	slotType
	slotParent
	slotHolder
)

func fieldSlot(field string) int {
	switch field {
	case FieldID:
		return slotID
	case FieldName:
		return slotName
	case FieldType:
		return slotType
	case FieldParentID:
		return slotParent
	default:
		return slotHolder
	}
}

func sourceRow(raw map[string]string, fallback int) int {
	v, ok := raw[SourceRowKey]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func normalizeHolder(v string) string {
	if _, ok := vacantPlaceholders[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

func appendSample(rows []int, row int) []int {
	if len(rows) >= maxSampleRows {
		return rows
	}
	return append(rows, row)
}
