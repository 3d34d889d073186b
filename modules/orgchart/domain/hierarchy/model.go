// Package hierarchy rebuilds an organization forest from flat unit records and
// serves lookups, searches and one-level expansions over the result.
package hierarchy

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNilRecords is returned when Build is called without a record collection.
	ErrNilRecords = errors.New("hierarchy: nil record collection")
	// ErrNodeNotFound is returned for identifiers absent from the forest.
	ErrNodeNotFound = errors.New("node not found")
)

// Node is one organizational unit. Children and Positions are owned exclusively.
type Node struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Manager   string            `json:"manager,omitempty"`
	Level     int               `json:"level"`
	Orphan    bool              `json:"orphan,omitempty"`
	Children  []*Node           `json:"children"`
	Positions []*Position       `json:"positions"`
	Auxiliary map[string]string `json:"auxiliary,omitempty"`
}

// Position is a single seat attached to exactly one Node.
// An empty Holder means the seat is vacant.
type Position struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Holder        string            `json:"holder"`
	Level         int               `json:"level"`
	Department    string            `json:"department"`
	DepartmentID  string            `json:"department_id"`
	PositionLevel string            `json:"position_level"`
	Auxiliary     map[string]string `json:"auxiliary,omitempty"`
}

func (p *Position) IsVacant() bool { return p.Holder == "" }

// Assignable reports whether the position has a holder that actions can target.
func (p *Position) Assignable() bool { return !p.IsVacant() }

type Statistics struct {
	TotalOrganizations int `json:"total_organizations"`
	TotalPositions     int `json:"total_positions"`
	VacantPositions    int `json:"vacant_positions"`
	MaxDepth           int `json:"max_depth"`
	RootCount          int `json:"root_count"`
}

// Report aggregates the data-quality conditions met during a build.
type Report struct {
	InputOrganizations      int      `json:"input_organizations"`
	InputPositions          int      `json:"input_positions"`
	DuplicateOrganizations  int      `json:"duplicate_organizations"`
	DuplicatePositions      int      `json:"duplicate_positions"`
	DanglingParents         int      `json:"dangling_parents"`
	CircularRejections      int      `json:"circular_rejections"`
	UnresolvedOrganizations int      `json:"unresolved_organizations"`
	DroppedPositions        int      `json:"dropped_positions"`
	DroppedPositionIDs      []string `json:"dropped_position_ids,omitempty"`
	Passes                  int      `json:"passes"`
	PassLimitReached        bool     `json:"pass_limit_reached,omitempty"`
}

// Notices renders the non-zero counters as informational lines for end users.
func (r Report) Notices() []string {
	var out []string
	add := func(n int, format string) {
		if n > 0 {
			out = append(out, fmt.Sprintf(format, n))
		}
	}
	add(r.DroppedPositions, "%d positions could not be attached to a known organization")
	add(r.DanglingParents, "%d organizations reference a parent that does not exist and are shown as separate roots")
	add(r.UnresolvedOrganizations, "%d organizations could not be placed under their parent and are shown as separate roots")
	add(r.CircularRejections, "%d organizations were detached to break a circular reference")
	add(r.DuplicateOrganizations, "%d duplicate organization rows were ignored")
	add(r.DuplicatePositions, "%d duplicate position rows were ignored")
	if r.PassLimitReached {
		out = append(out, fmt.Sprintf("hierarchy resolution stopped after %d passes", r.Passes))
	}
	return out
}

// Forest is the result of one build. Orphans is a subset of Roots.
type Forest struct {
	Roots      []*Node    `json:"roots"`
	Orphans    []*Node    `json:"-"`
	Statistics Statistics `json:"statistics"`
	Report     Report     `json:"report"`
}

type forestJSON struct {
	Roots      []*Node    `json:"roots"`
	OrphanIDs  []string   `json:"orphan_ids"`
	Statistics Statistics `json:"statistics"`
	Report     Report     `json:"report"`
}

func (f *Forest) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(f.Orphans))
	for _, n := range f.Orphans {
		ids = append(ids, n.ID)
	}
	roots := f.Roots
	if roots == nil {
		roots = []*Node{}
	}
	return json.Marshal(forestJSON{
		Roots:      roots,
		OrphanIDs:  ids,
		Statistics: f.Statistics,
		Report:     f.Report,
	})
}

func (f *Forest) UnmarshalJSON(b []byte) error {
	var raw forestJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	byID := make(map[string]*Node, len(raw.Roots))
	for _, r := range raw.Roots {
		byID[r.ID] = r
	}
	orphans := make([]*Node, 0, len(raw.OrphanIDs))
	for _, id := range raw.OrphanIDs {
		n, ok := byID[id]
		if !ok {
			return fmt.Errorf("orphan %q is not a root", id)
		}
		orphans = append(orphans, n)
	}
	f.Roots = raw.Roots
	f.Orphans = orphans
	f.Statistics = raw.Statistics
	f.Report = raw.Report
	return nil
}
