package core

import (
	"sort"
	"strings"

	"github.com/comalice/chartkit/internal/primitives"
)

// NodeIndex addresses a node in the Graph arena. Nodes are stored in
// document (preorder) order, so comparing indices compares document order.
type NodeIndex int

// NoNode is the parent of the root.
const NoNode NodeIndex = -1

// Node is one state of the graph. The root node is synthetic: it carries the
// machine ID and has the top-level states as children.
type Node struct {
	Index    NodeIndex
	ID       string
	Type     primitives.StateType
	Parent   NodeIndex
	Children []NodeIndex
	Depth    int
	Path     string
	Config   *primitives.StateConfig

	initial  NodeIndex
	end      NodeIndex
	exact    map[string][]*transition
	wildcard []patternGroup
	always   []*transition
	history  []NodeIndex
}

// IsAtomic reports whether n is a leaf state.
func (n *Node) IsAtomic() bool { return n.Type == primitives.Atomic }

type patternGroup struct {
	pattern     string
	transitions []*transition
}

// transition is a TransitionConfig with its targets resolved to indices.
type transition struct {
	source   NodeIndex
	event    string
	targets  []NodeIndex
	internal bool
	guard    primitives.GuardRef
	actions  []primitives.ActionRef
}

// Graph is the immutable arena built from a MachineConfig.
type Graph struct {
	nodes   []Node
	byID    map[string]NodeIndex
	byPath  map[string]NodeIndex
	initial NodeIndex
}

// Root returns the index of the synthetic root.
func (g *Graph) Root() NodeIndex { return 0 }

// Initial returns the ID of the state named by the machine's Initial.
func (g *Graph) Initial() string { return g.nodes[g.initial].ID }

// Len returns the number of nodes, root included.
func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) node(i NodeIndex) *Node { return &g.nodes[i] }

// Nodes returns every node in document order, root first.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Node looks a state up by ID.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Path returns the dotted path of a state from its top-level ancestor.
func (g *Graph) Path(id string) (string, bool) {
	i, ok := g.byID[id]
	if !ok {
		return "", false
	}
	return g.nodes[i].Path, true
}

// Resolve maps a state reference to a node: "id", "#id" or a dotted path
// "a.b.c" from a top-level state (optionally prefixed with the machine ID).
func (g *Graph) Resolve(ref string) (NodeIndex, bool) {
	if id, ok := strings.CutPrefix(ref, "#"); ok {
		i, found := g.byID[id]
		return i, found
	}
	if !strings.Contains(ref, ".") {
		i, found := g.byID[ref]
		return i, found
	}
	if i, found := g.byPath[ref]; found {
		return i, true
	}
	if rest, ok := strings.CutPrefix(ref, g.nodes[0].ID+"."); ok {
		i, found := g.byPath[rest]
		return i, found
	}
	return NoNode, false
}

// Ancestors returns the IDs of the proper ancestors of id, parent first and
// root last.
func (g *Graph) Ancestors(id string) []string {
	i, ok := g.byID[id]
	if !ok {
		return nil
	}
	var out []string
	for p := g.nodes[i].Parent; p != NoNode; p = g.nodes[p].Parent {
		out = append(out, g.nodes[p].ID)
	}
	return out
}

// IsDescendant reports whether id is a proper descendant of ancestor.
func (g *Graph) IsDescendant(id, ancestor string) bool {
	i, ok := g.byID[id]
	a, ok2 := g.byID[ancestor]
	return ok && ok2 && g.isDescendant(i, a)
}

// LeastCommonCompoundAncestor returns the nearest compound state (or the
// root) that is a proper ancestor of both a and b.
func (g *Graph) LeastCommonCompoundAncestor(a, b string) string {
	i, ok := g.byID[a]
	j, ok2 := g.byID[b]
	if !ok || !ok2 {
		return ""
	}
	return g.nodes[g.lcca([]NodeIndex{i, j})].ID
}

// DefaultDescendants returns the atomic states reached by default entry of id.
func (g *Graph) DefaultDescendants(id string) []string {
	i, ok := g.byID[id]
	if !ok {
		return nil
	}
	var leaves []NodeIndex
	g.defaultLeaves(i, &leaves)
	sort.Slice(leaves, func(a, b int) bool { return leaves[a] < leaves[b] })
	out := make([]string, len(leaves))
	for k, l := range leaves {
		out[k] = g.nodes[l].ID
	}
	return out
}

func (g *Graph) defaultLeaves(i NodeIndex, out *[]NodeIndex) {
	n := &g.nodes[i]
	switch {
	case i == g.Root():
		g.defaultLeavesTo(g.initial, out)
	case n.Type == primitives.Atomic:
		*out = append(*out, i)
	case n.Type == primitives.Compound:
		g.defaultLeaves(n.initial, out)
	case n.Type == primitives.Parallel:
		for _, c := range n.Children {
			if !g.nodes[c].Type.IsHistory() {
				g.defaultLeaves(c, out)
			}
		}
	case n.Type.IsHistory():
		g.defaultLeaves(n.Parent, out)
	}
}

// defaultLeavesTo is default entry of target as reached from the root: the
// regions of parallel ancestors not on the way to target are entered too.
func (g *Graph) defaultLeavesTo(target NodeIndex, out *[]NodeIndex) {
	g.defaultLeaves(target, out)
	child := target
	for p := g.nodes[target].Parent; p != NoNode && p != g.Root(); p = g.nodes[p].Parent {
		if g.nodes[p].Type == primitives.Parallel {
			for _, c := range g.nodes[p].Children {
				if c != child && !g.nodes[c].Type.IsHistory() {
					g.defaultLeaves(c, out)
				}
			}
		}
		child = p
	}
}

// isDescendant relies on preorder layout: the subtree of ancestor occupies the
// index range (a, end).
func (g *Graph) isDescendant(i, ancestor NodeIndex) bool {
	return i > ancestor && i < g.nodes[ancestor].end
}

// properAncestors lists the ancestors of i up to (excluding) stop, nearest first.
func (g *Graph) properAncestors(i, stop NodeIndex) []NodeIndex {
	var out []NodeIndex
	for p := g.nodes[i].Parent; p != NoNode && p != stop; p = g.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

func (g *Graph) isCompoundLike(i NodeIndex) bool {
	return i == g.Root() || g.nodes[i].Type == primitives.Compound
}

// lcca finds the least common compound ancestor of states: the nearest proper
// ancestor of states[0] that is compound (or the root) and contains every
// other state.
func (g *Graph) lcca(states []NodeIndex) NodeIndex {
	for _, anc := range g.properAncestors(states[0], NoNode) {
		if !g.isCompoundLike(anc) {
			continue
		}
		all := true
		for _, s := range states[1:] {
			if !g.isDescendant(s, anc) {
				all = false
				break
			}
		}
		if all {
			return anc
		}
	}
	return g.Root()
}

// lca is the lowest common ancestor of a and b, allowing either to be the
// answer itself.
func (g *Graph) lca(a, b NodeIndex) NodeIndex {
	for x := a; x != NoNode; x = g.nodes[x].Parent {
		if x == b || g.isDescendant(b, x) {
			return x
		}
	}
	return g.Root()
}

// BuildGraph validates the cross-references of cfg and builds the arena.
// Every failure is a *DefinitionError.
func BuildGraph(cfg primitives.MachineConfig) (*Graph, error) {
	if cfg.ID == "" {
		return nil, defErr(CodeInvalidState, "", "machine ID is required")
	}
	if strings.ContainsAny(cfg.ID, ".#") {
		return nil, defErr(CodeInvalidState, cfg.ID, "machine ID must not contain '.' or '#'")
	}
	if len(cfg.States) == 0 {
		return nil, defErr(CodeInvalidState, "", "machine %s has no states", cfg.ID)
	}

	b := &graphBuilder{
		g: &Graph{
			byID:   map[string]NodeIndex{cfg.ID: 0},
			byPath: map[string]NodeIndex{},
		},
	}
	b.g.nodes = append(b.g.nodes, Node{
		Index:   0,
		ID:      cfg.ID,
		Type:    primitives.Compound,
		Parent:  NoNode,
		initial: NoNode,
	})

	for _, key := range cfg.TopLevelIDs() {
		s := cfg.States[key]
		if s != nil && s.ID != "" && s.ID != key {
			return nil, defErr(CodeOrphan, s.ID, "state is registered under key %q, so it has no matching parent slot", key)
		}
		if _, err := b.add(s, key, 0); err != nil {
			return nil, err
		}
	}

	b.g.nodes[0].end = NodeIndex(len(b.g.nodes))

	if err := b.checkStructure(); err != nil {
		return nil, err
	}

	initial, ok := b.g.Resolve(cfg.Initial)
	if cfg.Initial == "" || !ok || initial == b.g.Root() {
		return nil, defErr(CodeDanglingTarget, cfg.ID, "initial state %q not found", cfg.Initial)
	}
	b.g.initial = initial
	b.g.nodes[0].initial = b.topLevelOf(initial)

	if err := b.linkTransitions(); err != nil {
		return nil, err
	}
	return b.g, nil
}

type graphBuilder struct {
	g *Graph
}

func (b *graphBuilder) add(s *primitives.StateConfig, fallbackID string, parent NodeIndex) (NodeIndex, error) {
	if s == nil {
		return NoNode, defErr(CodeInvalidState, fallbackID, "state is nil")
	}
	id := s.ID
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return NoNode, defErr(CodeInvalidState, b.g.nodes[parent].ID, "child state without ID")
	}
	if strings.Contains(id, ".") || strings.HasPrefix(id, "#") {
		return NoNode, defErr(CodeInvalidState, id, "state ID must not contain '.' or start with '#'")
	}
	if _, dup := b.g.byID[id]; dup {
		return NoNode, defErr(CodeDuplicateID, id, "state ID declared more than once (or equal to the machine ID)")
	}

	path := id
	if parent != 0 {
		path = b.g.nodes[parent].Path + "." + id
	}
	idx := NodeIndex(len(b.g.nodes))
	b.g.nodes = append(b.g.nodes, Node{
		Index:   idx,
		ID:      id,
		Type:    s.Type,
		Parent:  parent,
		Depth:   b.g.nodes[parent].Depth + 1,
		Path:    path,
		Config:  s,
		initial: NoNode,
	})
	b.g.byID[id] = idx
	b.g.byPath[path] = idx
	b.g.nodes[parent].Children = append(b.g.nodes[parent].Children, idx)
	if s.Type.IsHistory() {
		b.g.nodes[parent].history = append(b.g.nodes[parent].history, idx)
	}

	for _, child := range s.Children {
		if _, err := b.add(child, "", idx); err != nil {
			return NoNode, err
		}
	}
	b.g.nodes[idx].end = NodeIndex(len(b.g.nodes))
	return idx, nil
}

func (b *graphBuilder) checkStructure() error {
	g := b.g
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		s := n.Config
		var regions []NodeIndex
		for _, c := range n.Children {
			if !g.nodes[c].Type.IsHistory() {
				regions = append(regions, c)
			}
		}

		switch n.Type {
		case primitives.Atomic:
			if len(n.Children) > 0 {
				return defErr(CodeInvalidState, n.ID, "atomic state cannot have children")
			}
			if s.Initial != "" {
				return defErr(CodeInvalidState, n.ID, "atomic state cannot declare an initial child")
			}
		case primitives.Compound:
			if len(regions) == 0 {
				return defErr(CodeMissingDefault, n.ID, "compound state has no non-history child to enter")
			}
			n.initial = regions[0]
			if s.Initial != "" {
				n.initial = NoNode
				for _, c := range n.Children {
					if g.nodes[c].ID == s.Initial {
						n.initial = c
					}
				}
				if n.initial == NoNode || g.nodes[n.initial].Type.IsHistory() {
					return defErr(CodeMissingDefault, n.ID, "initial %q is not a direct non-history child", s.Initial)
				}
			}
		case primitives.Parallel:
			if s.Initial != "" {
				return defErr(CodeInvalidState, n.ID, "parallel state cannot declare an initial child")
			}
			if len(regions) < 2 {
				return defErr(CodeParallelRegions, n.ID, "parallel state needs at least 2 regions, has %d", len(regions))
			}
			for _, r := range regions {
				if t := g.nodes[r].Type; t != primitives.Atomic && t != primitives.Compound {
					return defErr(CodeParallelRegions, g.nodes[r].ID, "region of parallel %s must be atomic or compound, got %s", n.ID, t)
				}
			}
		case primitives.ShallowHistory, primitives.DeepHistory:
			if len(n.Children) > 0 {
				return defErr(CodeHistoryPlacement, n.ID, "history state cannot have children")
			}
			if n.Parent == g.Root() {
				return defErr(CodeHistoryPlacement, n.ID, "history state must be nested in a compound or parallel state")
			}
			if len(s.On) > 0 || len(s.Always) > 0 || len(s.Entry) > 0 || len(s.Exit) > 0 {
				return defErr(CodeInvalidState, n.ID, "history state cannot declare transitions or actions")
			}
		default:
			return defErr(CodeInvalidState, n.ID, "invalid state type %q", n.Type)
		}
	}
	return nil
}

func (b *graphBuilder) topLevelOf(i NodeIndex) NodeIndex {
	for b.g.nodes[i].Parent != b.g.Root() {
		i = b.g.nodes[i].Parent
	}
	return i
}

func (b *graphBuilder) linkTransitions() error {
	g := b.g
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		s := n.Config

		exact, wildcard := primitives.OrderPatterns(s.On)
		for _, pattern := range append(exact, wildcard...) {
			if strings.TrimSpace(pattern) == "" {
				return defErr(CodeInvalidTransition, n.ID, "empty event pattern")
			}
			if pattern == primitives.AlwaysEvent {
				return defErr(CodeInvalidTransition, n.ID, "event %q is reserved for eventless transitions", pattern)
			}
			var linked []*transition
			for k := range s.On[pattern] {
				t, err := b.link(NodeIndex(i), pattern, &s.On[pattern][k])
				if err != nil {
					return err
				}
				linked = append(linked, t)
			}
			if primitives.IsWildcardPattern(pattern) {
				n.wildcard = append(n.wildcard, patternGroup{pattern: pattern, transitions: linked})
				continue
			}
			if n.exact == nil {
				n.exact = make(map[string][]*transition)
			}
			n.exact[pattern] = linked
		}
		for k := range s.Always {
			t, err := b.link(NodeIndex(i), "", &s.Always[k])
			if err != nil {
				return err
			}
			n.always = append(n.always, t)
		}
	}
	return nil
}

func (b *graphBuilder) link(src NodeIndex, pattern string, tc *primitives.TransitionConfig) (*transition, error) {
	g := b.g
	srcID := g.nodes[src].ID
	if err := tc.Validate(); err != nil {
		return nil, defErr(CodeInvalidTransition, srcID, "%v", err)
	}
	t := &transition{
		source:   src,
		event:    pattern,
		internal: tc.Internal,
		guard:    tc.Guard,
		actions:  tc.Actions,
	}
	for _, ref := range tc.TargetRefs() {
		target, ok := g.Resolve(ref)
		if !ok || target == g.Root() {
			return nil, defErr(CodeDanglingTarget, srcID, "transition target %q not found", ref)
		}
		t.targets = append(t.targets, target)
	}
	if t.internal {
		for _, target := range t.targets {
			if !g.isDescendant(target, src) {
				return nil, defErr(CodeInvalidTransition, srcID, "internal transition target %q is not a descendant of its source", g.nodes[target].ID)
			}
		}
	}
	for x := 0; x < len(t.targets); x++ {
		for y := x + 1; y < len(t.targets); y++ {
			a, c := t.targets[x], t.targets[y]
			nested := a == c || g.isDescendant(a, c) || g.isDescendant(c, a)
			if nested || g.nodes[g.lca(a, c)].Type != primitives.Parallel {
				return nil, defErr(CodeInvalidTransition, srcID, "targets %q and %q are not in distinct parallel regions",
					g.nodes[a].ID, g.nodes[c].ID)
			}
		}
	}
	return t, nil
}

// Unreachable lists the states that neither default entry, parallel regions
// nor any transition target leads to from the initial state, in document
// order. Such states are legal (Restore can activate them) but usually a
// mistake. History pseudostates are never reported.
func (g *Graph) Unreachable() []string {
	reached := make([]bool, len(g.nodes))
	reached[g.Root()] = true
	var queue []NodeIndex
	mark := func(i NodeIndex) {
		for x := i; x != NoNode && !reached[x]; x = g.nodes[x].Parent {
			reached[x] = true
			queue = append(queue, x)
		}
	}
	mark(g.initial)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		n := &g.nodes[i]
		switch n.Type {
		case primitives.Compound:
			mark(n.initial)
		case primitives.Parallel:
			for _, c := range n.Children {
				mark(c)
			}
		case primitives.ShallowHistory, primitives.DeepHistory:
			mark(n.Parent)
		}
		for _, ts := range n.exact {
			for _, t := range ts {
				for _, target := range t.targets {
					mark(target)
				}
			}
		}
		for _, grp := range n.wildcard {
			for _, t := range grp.transitions {
				for _, target := range t.targets {
					mark(target)
				}
			}
		}
		for _, t := range n.always {
			for _, target := range t.targets {
				mark(target)
			}
		}
	}
	var out []string
	for i := 1; i < len(g.nodes); i++ {
		if !reached[i] && !g.nodes[i].Type.IsHistory() {
			out = append(out, g.nodes[i].ID)
		}
	}
	return out
}
