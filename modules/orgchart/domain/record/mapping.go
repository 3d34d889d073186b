package record

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Canonical field names.
const (
	FieldID       = "id"
	FieldName     = "name"
	FieldType     = "type"
	FieldParentID = "parent_id"
	FieldHolder   = "holder"
)

// FieldMapping lists, per canonical field, the raw header spellings that feed it.
// Earlier aliases win when a row carries more than one of them.
type FieldMapping struct {
	ID       []string `yaml:"id" validate:"required,min=1,dive,required"`
	Name     []string `yaml:"name" validate:"dive,required"`
	Type     []string `yaml:"type" validate:"required,min=1,dive,required"`
	ParentID []string `yaml:"parent_id" validate:"dive,required"`
	Holder   []string `yaml:"holder" validate:"dive,required"`
}

// DefaultFieldMapping covers the spellings seen in HR system exports.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		ID:       []string{"id", "object id", "objid", "obj id", "unit id", "code"},
		Name:     []string{"name", "description", "object name", "short text", "long text", "title"},
		Type:     []string{"type", "object type", "otype", "kind"},
		ParentID: []string{"parent id", "parent", "parent object id", "parent code", "superior", "reports to", "org unit"},
		Holder:   []string{"holder", "manager", "manager name", "assigned person", "incumbent", "employee", "person"},
	}
}

// CanonicalFieldMapping accepts only the canonical field names. Rows written
// back by this module use it, so auxiliary columns cannot be mistaken for fields.
func CanonicalFieldMapping() FieldMapping {
	return FieldMapping{
		ID:       []string{FieldID},
		Name:     []string{FieldName},
		Type:     []string{FieldType},
		ParentID: []string{FieldParentID},
		Holder:   []string{FieldHolder},
	}
}

// IsCanonicalHeader reports whether header names one of the canonical fields
// once normalized.
func IsCanonicalHeader(header string) bool {
	switch normalizeHeader(header) {
	case "id", "name", "type", "parentid", "holder":
		return true
	}
	return false
}

// LoadFieldMapping reads a YAML mapping. Fields left out of the document keep
// their default aliases.
func LoadFieldMapping(r io.Reader) (FieldMapping, error) {
	m := DefaultFieldMapping()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return FieldMapping{}, fmt.Errorf("decode field mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return FieldMapping{}, err
	}
	return m, nil
}

func (m FieldMapping) Validate() error {
	if err := validator.New().Struct(m); err != nil {
		return fmt.Errorf("invalid field mapping: %w", err)
	}
	return nil
}

type aliasTarget struct {
	field string
	rank  int
}

// compile indexes every alias by its normalized header form. The first field to
// claim a header keeps it.
func (m FieldMapping) compile() map[string]aliasTarget {
	out := make(map[string]aliasTarget)
	add := func(field string, aliases []string) {
		for rank, a := range aliases {
			key := normalizeHeader(a)
			if key == "" {
				continue
			}
			if _, taken := out[key]; taken {
				continue
			}
			out[key] = aliasTarget{field: field, rank: rank}
		}
	}
	add(FieldID, m.ID)
	add(FieldType, m.Type)
	add(FieldParentID, m.ParentID)
	add(FieldHolder, m.Holder)
	add(FieldName, m.Name)
	return out
}

// normalizeHeader lowercases a header and strips whitespace, underscores, hyphens and dots.
func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	return strings.NewReplacer(" ", "", "\t", "", "_", "", "-", "", ".", "").Replace(s)
}
