package hierarchy

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// SearchKind restricts Search to one entity kind.
type SearchKind int

const (
	SearchAny SearchKind = iota
	SearchOrganizations
	SearchPositions
)

func ParseSearchKind(v string) (SearchKind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "any", "all":
		return SearchAny, nil
	case "org", "orgs", "organization", "organizations", "o":
		return SearchOrganizations, nil
	case "position", "positions", "pos", "s":
		return SearchPositions, nil
	default:
		return SearchAny, fmt.Errorf("unknown search kind %q", v)
	}
}

const defaultSuggestLimit = 10

// Entity is a serializable view of one node or position. Node and Position
// point into the indexed forest and must be treated as read-only.
type Entity struct {
	Kind     record.Kind `json:"kind"`
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Holder   string      `json:"holder,omitempty"`
	Level    int         `json:"level"`
	ParentID string      `json:"parent_id,omitempty"`
	Path     []string    `json:"path"`

	Node     *Node     `json:"-"`
	Position *Position `json:"-"`
}

type indexEntry struct {
	entity    Entity
	nameKey   string
	holderKey string
}

// Index is built once over a forest and is safe for concurrent readers.
type Index struct {
	forest    *Forest
	entries   []indexEntry
	nodes     map[string]int
	positions map[string]int
}

// NewIndex walks the forest depth-first once, caching every entity's path.
func NewIndex(f *Forest) *Index {
	ix := &Index{
		forest:    f,
		nodes:     make(map[string]int),
		positions: make(map[string]int),
	}
	if f == nil {
		return ix
	}
	fold := newFolder()

	type frame struct {
		node   *Node
		parent string
		path   []string
	}
	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: f.Roots[i], path: []string{}})
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := fr.node

		ix.nodes[n.ID] = len(ix.entries)
		ix.entries = append(ix.entries, indexEntry{
			entity: Entity{
				Kind:     record.KindOrganization,
				ID:       n.ID,
				Name:     n.Name,
				Holder:   n.Manager,
				Level:    n.Level,
				ParentID: fr.parent,
				Path:     fr.path,
				Node:     n,
			},
			nameKey: fold.key(n.Name),
		})

		childPath := make([]string, len(fr.path), len(fr.path)+1)
		copy(childPath, fr.path)
		childPath = append(childPath, record.DisplayName(n.ID, n.Name))

		for _, p := range n.Positions {
			if _, dup := ix.positions[p.ID]; dup {
				continue
			}
			ix.positions[p.ID] = len(ix.entries)
			ix.entries = append(ix.entries, indexEntry{
				entity: Entity{
					Kind:     record.KindPosition,
					ID:       p.ID,
					Name:     p.Name,
					Holder:   p.Holder,
					Level:    p.Level,
					ParentID: n.ID,
					Path:     childPath,
					Position: p,
				},
				nameKey:   fold.key(p.Name),
				holderKey: fold.key(p.Holder),
			})
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: n.Children[i], parent: n.ID, path: childPath})
		}
	}
	return ix
}

func (ix *Index) Forest() *Forest { return ix.forest }

// Len is the number of indexed organizations and positions.
func (ix *Index) Len() int { return len(ix.entries) }

// Lookup finds an organization or position by identifier. Organizations win
// when both kinds share an identifier.
func (ix *Index) Lookup(id string) (Entity, error) {
	if i, ok := ix.nodes[id]; ok {
		return ix.entries[i].entity, nil
	}
	if i, ok := ix.positions[id]; ok {
		return ix.entries[i].entity, nil
	}
	return Entity{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

func (ix *Index) node(id string) (*Node, bool) {
	i, ok := ix.nodes[id]
	if !ok {
		return nil, false
	}
	return ix.entries[i].entity.Node, true
}

// Search returns entities whose name (or, for positions, name or holder)
// contains term, ignoring case and diacritics. Hits come in depth-first order.
func (ix *Index) Search(term string, kind SearchKind) []Entity {
	key := newFolder().key(term)
	if key == "" {
		return nil
	}
	var out []Entity
	for i := range ix.entries {
		e := &ix.entries[i]
		switch e.entity.Kind {
		case record.KindOrganization:
			if kind == SearchPositions {
				continue
			}
			if strings.Contains(e.nameKey, key) {
				out = append(out, e.entity)
			}
		case record.KindPosition:
			if kind == SearchOrganizations {
				continue
			}
			if strings.Contains(e.nameKey, key) || strings.Contains(e.holderKey, key) {
				out = append(out, e.entity)
			}
		}
	}
	return out
}

// Suggest ranks entities by fuzzy similarity to term, for "did you mean"
// prompts when Search finds nothing.
func (ix *Index) Suggest(term string, limit int) []Entity {
	if strings.TrimSpace(term) == "" || len(ix.entries) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	targets := make([]string, len(ix.entries))
	for i := range ix.entries {
		e := ix.entries[i].entity
		targets[i] = strings.TrimSpace(e.Name + " " + e.Holder)
	}
	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	out := make([]Entity, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, ix.entries[r.OriginalIndex].entity)
	}
	return out
}

// folder produces case- and accent-insensitive keys. It is not safe for
// concurrent use; callers make one per goroutine.
type folder struct {
	t transform.Transformer
}

func newFolder() *folder {
	return &folder{t: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())}
}

func (f *folder) key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	out, _, err := transform.String(f.t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
