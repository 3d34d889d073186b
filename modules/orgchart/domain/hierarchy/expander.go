package hierarchy

import (
	"fmt"
	"maps"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// NodeSummary describes a node without its subtree.
type NodeSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Manager       string `json:"manager,omitempty"`
	Level         int    `json:"level"`
	Orphan        bool   `json:"orphan,omitempty"`
	ChildCount    int    `json:"child_count"`
	PositionCount int    `json:"position_count"`
	HasChildren   bool   `json:"has_children"`
}

// Expansion is one level below a node. All values are copies.
type Expansion struct {
	Node      NodeSummary   `json:"node"`
	Children  []NodeSummary `json:"children"`
	Positions []Position    `json:"positions"`
}

// Expander answers on-demand child queries for lazily rendered trees.
type Expander interface {
	ChildrenOf(nodeID string) (Expansion, error)
}

type ForestExpander struct {
	ix *Index
}

func NewForestExpander(ix *Index) *ForestExpander {
	return &ForestExpander{ix: ix}
}

func (e *ForestExpander) ChildrenOf(nodeID string) (Expansion, error) {
	n, ok := e.ix.node(nodeID)
	if !ok {
		return Expansion{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	out := Expansion{
		Node:      summarize(n),
		Children:  make([]NodeSummary, 0, len(n.Children)),
		Positions: make([]Position, 0, len(n.Positions)),
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, summarize(c))
	}
	for _, p := range n.Positions {
		out.Positions = append(out.Positions, clonePosition(p))
	}
	return out, nil
}

func summarize(n *Node) NodeSummary {
	return NodeSummary{
		ID:            n.ID,
		Name:          n.Name,
		Manager:       n.Manager,
		Level:         n.Level,
		Orphan:        n.Orphan,
		ChildCount:    len(n.Children),
		PositionCount: len(n.Positions),
		HasChildren:   len(n.Children) > 0 || len(n.Positions) > 0,
	}
}

func clonePosition(p *Position) Position {
	c := *p
	c.Auxiliary = maps.Clone(p.Auxiliary)
	return c
}

// RecordExpander serves expansions straight from normalized records, for
// datasets too large to materialize as a forest. It reflects declared
// parent links: members of a parent cycle still list each other as children,
// while their levels are counted as if the chain started at the break point.
// It is safe for concurrent use after construction.
type RecordExpander struct {
	orgs      map[string]record.UnitRecord
	children  map[string][]string
	positions map[string][]record.UnitRecord
	levels    map[string]chainState
}

type chainState struct {
	level  int
	orphan bool
	cyclic bool
}

func NewRecordExpander(records []record.UnitRecord) *RecordExpander {
	e := &RecordExpander{
		orgs:      make(map[string]record.UnitRecord),
		children:  make(map[string][]string),
		positions: make(map[string][]record.UnitRecord),
		levels:    make(map[string]chainState),
	}
	seenPositions := make(map[string]struct{})
	for _, rec := range records {
		switch rec.Kind {
		case record.KindOrganization:
			if _, dup := e.orgs[rec.ID]; dup {
				continue
			}
			e.orgs[rec.ID] = rec
			if !rec.IsRootCandidate() {
				e.children[rec.ParentID] = append(e.children[rec.ParentID], rec.ID)
			}
		case record.KindPosition:
			if _, dup := seenPositions[rec.ID]; dup {
				continue
			}
			seenPositions[rec.ID] = struct{}{}
			e.positions[rec.ParentID] = append(e.positions[rec.ParentID], rec)
		}
	}
	// Levels are resolved up front so ChildrenOf only reads.
	for id := range e.orgs {
		e.level(id)
	}
	return e
}

func (e *RecordExpander) ChildrenOf(nodeID string) (Expansion, error) {
	rec, ok := e.orgs[nodeID]
	if !ok {
		return Expansion{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	node := e.summary(rec)
	out := Expansion{
		Node:      node,
		Children:  make([]NodeSummary, 0, len(e.children[nodeID])),
		Positions: make([]Position, 0, len(e.positions[nodeID])),
	}
	for _, id := range e.children[nodeID] {
		out.Children = append(out.Children, e.summary(e.orgs[id]))
	}
	for _, p := range e.positions[nodeID] {
		out.Positions = append(out.Positions, Position{
			ID:            p.ID,
			Name:          p.Name,
			Holder:        p.Holder,
			Level:         node.Level + 1,
			Department:    rec.Name,
			DepartmentID:  rec.ID,
			PositionLevel: ClassifyPositionLevel(p.Name),
			Auxiliary:     maps.Clone(p.Auxiliary),
		})
	}
	return out, nil
}

func (e *RecordExpander) summary(rec record.UnitRecord) NodeSummary {
	level, orphan := e.level(rec.ID)
	nChildren := len(e.children[rec.ID])
	nPositions := len(e.positions[rec.ID])
	return NodeSummary{
		ID:            rec.ID,
		Name:          rec.Name,
		Manager:       rec.Holder,
		Level:         level,
		Orphan:        orphan,
		ChildCount:    nChildren,
		PositionCount: nPositions,
		HasChildren:   nChildren > 0 || nPositions > 0,
	}
}

// level walks the parent chain of id. A chain ending in a missing parent
// counts from the dangling node. Any node whose chain reaches a cycle is a
// level 0 orphan, as Build makes it.
func (e *RecordExpander) level(id string) (int, bool) {
	if st, ok := e.levels[id]; ok {
		return st.level, st.orphan
	}

	var chain []string
	onChain := make(map[string]struct{})
	base := chainState{}
	for cur := id; ; {
		if st, ok := e.levels[cur]; ok {
			if st.cyclic {
				base = st
			} else {
				base = chainState{level: st.level + 1}
			}
			break
		}
		if _, loop := onChain[cur]; loop {
			base = chainState{orphan: true, cyclic: true}
			break
		}
		chain = append(chain, cur)
		onChain[cur] = struct{}{}

		rec := e.orgs[cur]
		if rec.IsRootCandidate() {
			e.levels[cur] = chainState{}
			chain = chain[:len(chain)-1]
			base = chainState{level: 1}
			break
		}
		if _, ok := e.orgs[rec.ParentID]; !ok {
			e.levels[cur] = chainState{orphan: true}
			chain = chain[:len(chain)-1]
			base = chainState{level: 1}
			break
		}
		cur = rec.ParentID
	}

	for i := len(chain) - 1; i >= 0; i-- {
		e.levels[chain[i]] = base
		if !base.cyclic {
			base.level++
		}
	}
	st := e.levels[id]
	return st.level, st.orphan
}
