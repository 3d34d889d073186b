package hierarchy

import (
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// DefaultMaxPasses bounds the resolution fixpoint. Each pass attaches at least
// one more level, so the bound only bites on pathological inputs.
const DefaultMaxPasses = 64

// maxDroppedSample caps Report.DroppedPositionIDs.
const maxDroppedSample = 20

type Options struct {
	MaxPasses int
}

func (o Options) maxPasses() int {
	if o.MaxPasses <= 0 {
		return DefaultMaxPasses
	}
	return o.MaxPasses
}

// entry is the arena slot of one organization. Links are ids, not pointers.
type entry struct {
	rec      record.UnitRecord
	resolved bool
	orphan   bool
	level    int
	parent   string
}

type builder struct {
	opts Options

	orgs     map[string]*entry
	orgOrder []string

	positionsByParent map[string][]record.UnitRecord
	parentOrder       []string

	roots   []string
	orphans []string
	pending []string

	report Report
}

// Build reconstructs the forest described by records. Data-quality problems
// never fail the build: they are counted in Forest.Report and resolved by
// promoting the affected organizations to orphan roots or by dropping
// unattachable positions. Only a nil collection is an error.
func Build(records []record.UnitRecord, opts Options) (*Forest, error) {
	if records == nil {
		return nil, ErrNilRecords
	}
	b := &builder{
		opts:              opts,
		orgs:              make(map[string]*entry),
		positionsByParent: make(map[string][]record.UnitRecord),
	}
	b.partition(records)
	b.detectRoots()
	b.resolve()
	b.promoteUnresolved()

	f := b.materialize()
	f.Statistics = computeStatistics(f)
	return f, nil
}

func (b *builder) partition(records []record.UnitRecord) {
	seenPositions := make(map[string]struct{})
	for _, rec := range records {
		switch rec.Kind {
		case record.KindOrganization:
			b.report.InputOrganizations++
			if _, dup := b.orgs[rec.ID]; dup {
				b.report.DuplicateOrganizations++
				continue
			}
			b.orgs[rec.ID] = &entry{rec: rec}
			b.orgOrder = append(b.orgOrder, rec.ID)
		case record.KindPosition:
			b.report.InputPositions++
			if _, dup := seenPositions[rec.ID]; dup {
				b.report.DuplicatePositions++
				continue
			}
			seenPositions[rec.ID] = struct{}{}
			if _, ok := b.positionsByParent[rec.ParentID]; !ok {
				b.parentOrder = append(b.parentOrder, rec.ParentID)
			}
			b.positionsByParent[rec.ParentID] = append(b.positionsByParent[rec.ParentID], rec)
		}
	}
}

// detectRoots is pass 0: empty or self-referencing parents are roots, parents
// missing from the input make orphan roots.
func (b *builder) detectRoots() {
	for _, id := range b.orgOrder {
		e := b.orgs[id]
		switch {
		case e.rec.IsRootCandidate():
			e.resolved = true
			b.roots = append(b.roots, id)
		case b.orgs[e.rec.ParentID] == nil:
			e.resolved = true
			e.orphan = true
			b.report.DanglingParents++
			b.orphans = append(b.orphans, id)
		default:
			b.pending = append(b.pending, id)
		}
	}
}

// resolve attaches pending organizations to resolved parents until a pass
// makes no progress or the pass bound is hit.
func (b *builder) resolve() {
	maxPasses := b.opts.maxPasses()

	for pass := 1; len(b.pending) > 0; pass++ {
		if pass > maxPasses {
			b.report.PassLimitReached = true
			return
		}
		b.report.Passes = pass

		next := make([]string, 0, len(b.pending))
		progressed := false
		for _, id := range b.pending {
			e := b.orgs[id]
			parent := b.orgs[e.rec.ParentID]
			if !parent.resolved || b.isAncestor(id, parent) {
				next = append(next, id)
				continue
			}
			e.resolved = true
			e.parent = parent.rec.ID
			e.level = parent.level + 1
			progressed = true
		}
		b.pending = next
		if !progressed {
			return
		}
	}
}

// isAncestor walks the resolved chain upward from start looking for id.
// The walk is bounded by the depth of start.
func (b *builder) isAncestor(id string, start *entry) bool {
	for cur := start; cur != nil; {
		if cur.rec.ID == id {
			return true
		}
		if cur.parent == "" {
			return false
		}
		cur = b.orgs[cur.parent]
	}
	return false
}

// promoteUnresolved turns every pending organization into an orphan root.
// Those sitting on a declared parent cycle are also counted as circular.
func (b *builder) promoteUnresolved() {
	if len(b.pending) == 0 {
		return
	}
	b.report.CircularRejections = len(b.cycleMembers())
	for _, id := range b.pending {
		e := b.orgs[id]
		e.resolved = true
		e.orphan = true
		e.level = 0
		e.parent = ""
		b.report.UnresolvedOrganizations++
		b.orphans = append(b.orphans, id)
	}
	b.pending = nil
}

// cycleMembers follows declared parent links among pending organizations.
// Each pending node is visited once across all walks.
func (b *builder) cycleMembers() map[string]struct{} {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(b.pending))
	members := make(map[string]struct{})
	for _, start := range b.pending {
		var path []string
		cur := start
		for {
			e := b.orgs[cur]
			if e == nil || e.resolved {
				break
			}
			if st := state[cur]; st == done {
				break
			} else if st == onPath {
				for i := len(path) - 1; i >= 0; i-- {
					members[path[i]] = struct{}{}
					if path[i] == cur {
						break
					}
				}
				break
			}
			state[cur] = onPath
			path = append(path, cur)
			cur = e.rec.ParentID
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return members
}

func (b *builder) materialize() *Forest {
	nodes := make(map[string]*Node, len(b.orgs))
	for _, id := range b.orgOrder {
		e := b.orgs[id]
		nodes[id] = &Node{
			ID:        id,
			Name:      e.rec.Name,
			Manager:   e.rec.Holder,
			Level:     e.level,
			Orphan:    e.orphan,
			Children:  []*Node{},
			Positions: []*Position{},
			Auxiliary: e.rec.Auxiliary,
		}
	}

	// Walking orgOrder keeps siblings in input order.
	for _, id := range b.orgOrder {
		e := b.orgs[id]
		if e.parent == "" {
			continue
		}
		parent := nodes[e.parent]
		parent.Children = append(parent.Children, nodes[id])
	}

	for _, id := range b.orgOrder {
		n := nodes[id]
		for _, rec := range b.positionsByParent[id] {
			n.Positions = append(n.Positions, &Position{
				ID:            rec.ID,
				Name:          rec.Name,
				Holder:        rec.Holder,
				Level:         n.Level + 1,
				Department:    n.Name,
				DepartmentID:  n.ID,
				PositionLevel: ClassifyPositionLevel(rec.Name),
				Auxiliary:     rec.Auxiliary,
			})
		}
	}

	for _, parentID := range b.parentOrder {
		if _, ok := nodes[parentID]; ok {
			continue
		}
		for _, rec := range b.positionsByParent[parentID] {
			b.report.DroppedPositions++
			if len(b.report.DroppedPositionIDs) < maxDroppedSample {
				b.report.DroppedPositionIDs = append(b.report.DroppedPositionIDs, rec.ID)
			}
		}
	}

	f := &Forest{
		Roots:   make([]*Node, 0, len(b.roots)+len(b.orphans)),
		Orphans: make([]*Node, 0, len(b.orphans)),
		Report:  b.report,
	}
	for _, id := range b.roots {
		f.Roots = append(f.Roots, nodes[id])
	}
	for _, id := range b.orderedOrphans() {
		f.Roots = append(f.Roots, nodes[id])
		f.Orphans = append(f.Orphans, nodes[id])
	}
	return f
}

// orderedOrphans merges dangling and unresolved orphans back into input order.
func (b *builder) orderedOrphans() []string {
	if len(b.orphans) == 0 {
		return nil
	}
	isOrphan := make(map[string]struct{}, len(b.orphans))
	for _, id := range b.orphans {
		isOrphan[id] = struct{}{}
	}
	out := make([]string, 0, len(b.orphans))
	for _, id := range b.orgOrder {
		if _, ok := isOrphan[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func computeStatistics(f *Forest) Statistics {
	s := Statistics{RootCount: len(f.Roots)}
	stack := make([]*Node, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, f.Roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		s.TotalOrganizations++
		if n.Level > s.MaxDepth {
			s.MaxDepth = n.Level
		}
		for _, p := range n.Positions {
			s.TotalPositions++
			if p.IsVacant() {
				s.VacantPositions++
			}
		}
		stack = append(stack, n.Children...)
	}
	return s
}
