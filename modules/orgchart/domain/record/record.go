// Package record turns loosely structured export rows into canonical unit records.
package record

import (
	"errors"
	"strings"
)

// Kind distinguishes organizational units from positions.
type Kind string

const (
	KindOrganization Kind = "ORGANIZATION"
	KindPosition     Kind = "POSITION"
)

var (
	// ErrMissingRequiredField is returned when a row has no identifier or no type tag.
	// The row is dropped by the caller; the batch continues.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnsupportedKind marks rows whose type tag is neither an organization nor a position.
	// It is a skip signal, not a failure.
	ErrUnsupportedKind = errors.New("unsupported kind")
)

// UnitRecord is one normalized input row.
// ParentID and Holder use the empty string as their only "absent" value.
type UnitRecord struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      Kind              `json:"kind"`
	ParentID  string            `json:"parent_id,omitempty"`
	Holder    string            `json:"holder,omitempty"`
	Auxiliary map[string]string `json:"auxiliary,omitempty"`
	Row       int               `json:"row,omitempty"`
}

func (r UnitRecord) IsOrganization() bool { return r.Kind == KindOrganization }

func (r UnitRecord) IsPosition() bool { return r.Kind == KindPosition }

// IsRootCandidate reports whether the record declares no parent or points at itself.
func (r UnitRecord) IsRootCandidate() bool {
	return r.ParentID == "" || r.ParentID == r.ID
}

// DisplayName returns the name, or a placeholder when the source row had none.
func (r UnitRecord) DisplayName() string {
	return DisplayName(r.ID, r.Name)
}

func DisplayName(id, name string) string {
	if name != "" {
		return name
	}
	return "(unnamed " + id + ")"
}

// ParseKind maps a raw type tag to a Kind. SAP style one-letter tags ("O", "S")
// and their spelled-out forms are accepted, case-insensitively.
func ParseKind(tag string) (Kind, bool) {
	t := strings.ToUpper(strings.TrimSpace(tag))
	t = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(t)
	switch t {
	case "O", "ORG", "ORGANIZATION", "ORGANISATION", "ORGUNIT":
		return KindOrganization, true
	case "S", "POS", "POSITION":
		return KindPosition, true
	default:
		return "", false
	}
}
