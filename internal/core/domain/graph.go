package domain

import (
	"container/heap"
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// NodeID indexes a node in a Graph.
type NodeID int

// BindingKind tells where an input slot gets its value from.
type BindingKind int

const (
	// BindingLiteral binds a slot to a concrete value declared on the node.
	BindingLiteral BindingKind = iota
	// BindingEdge binds a slot to an upstream node's output.
	BindingEdge
)

// InputBinding is the validated source of one input slot.
type InputBinding struct {
	Slot       InputSlot
	Kind       BindingKind
	Literal    any
	Source     NodeID
	SourceSlot string
}

// GraphNode is a validated pipeline node. Bindings are sorted by slot name;
// unbound optional slots have no binding.
type GraphNode struct {
	ID       NodeID
	Name     string
	Pod      *Pod
	Bindings []InputBinding
}

type arenaNode struct {
	GraphNode
	upstream   []NodeID
	downstream []NodeID
}

// Graph is the immutable, validated dependency graph of a pipeline.
// Nodes live in an arena and reference each other by NodeID only.
type Graph struct {
	pipeline *Pipeline
	nodes    []arenaNode
	index    map[string]NodeID
	order    []NodeID
	rank     []int
}

// BuildGraph validates the pipeline and returns its dependency graph.
//
// Checks run in order: dangling references, then missing or duplicate
// bindings, then cycles. The first failing check determines the error.
func BuildGraph(p *Pipeline) (*Graph, error) {
	g := &Graph{
		pipeline: p,
		nodes:    make([]arenaNode, len(p.Nodes)),
		index:    make(map[string]NodeID, len(p.Nodes)),
	}
	for i, n := range p.Nodes {
		g.nodes[i] = arenaNode{GraphNode: GraphNode{ID: NodeID(i), Name: n.Name, Pod: n.Pod}}
		g.index[n.Name] = NodeID(i)
	}

	if err := g.checkReferences(); err != nil {
		return nil, err
	}
	if err := g.bindInputs(); err != nil {
		return nil, err
	}
	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) checkReferences() error {
	for _, n := range g.pipeline.Nodes {
		for _, slot := range slices.Sorted(maps.Keys(n.Literals)) {
			if _, ok := n.Pod.Input(slot); !ok {
				return danglingError("literal binds an unknown input slot", SlotRef{Node: n.Name, Slot: slot})
			}
		}
	}

	for _, e := range g.pipeline.Edges {
		from, ok := g.index[e.From.Node]
		if !ok {
			return zerr.With(danglingError("edge source node does not exist", e.From), "edge", e.String())
		}
		if _, ok := g.nodes[from].Pod.Output(e.From.Slot); !ok {
			return zerr.With(danglingError("edge source is not an output slot", e.From), "edge", e.String())
		}
		to, ok := g.index[e.To.Node]
		if !ok {
			return zerr.With(danglingError("edge target node does not exist", e.To), "edge", e.String())
		}
		if _, ok := g.nodes[to].Pod.Input(e.To.Slot); !ok {
			return zerr.With(danglingError("edge target is not an input slot", e.To), "edge", e.String())
		}
	}
	return nil
}

func (g *Graph) bindInputs() error {
	incoming := make(map[SlotRef][]Edge, len(g.pipeline.Edges))
	for _, e := range g.pipeline.Edges {
		incoming[e.To] = append(incoming[e.To], e)
	}

	for i, n := range g.pipeline.Nodes {
		node := &g.nodes[i]
		for _, slot := range n.Pod.Inputs {
			ref := SlotRef{Node: n.Name, Slot: slot.Name}
			literal, hasLiteral := n.Literals[slot.Name]
			edges := incoming[ref]

			count := len(edges)
			if hasLiteral {
				count++
			}

			switch {
			case count > 1:
				return zerr.With(
					zerr.With(zerr.With(zerr.Wrap(ErrDuplicateBinding, "input slot is bound more than once"),
						"node", ref.Node), "slot", ref.Slot),
					"bindings", strconv.Itoa(count),
				)
			case count == 0:
				if slot.Optional {
					continue
				}
				return zerr.With(zerr.With(zerr.Wrap(ErrUnboundInput, "required input slot has no binding"),
					"node", ref.Node), "slot", ref.Slot)
			case hasLiteral:
				node.Bindings = append(node.Bindings, InputBinding{Slot: slot, Kind: BindingLiteral, Literal: literal})
			default:
				src := g.index[edges[0].From.Node]
				node.Bindings = append(node.Bindings, InputBinding{
					Slot:       slot,
					Kind:       BindingEdge,
					Source:     src,
					SourceSlot: edges[0].From.Slot,
				})
				g.link(src, node.ID)
			}
		}
	}

	for i := range g.nodes {
		slices.Sort(g.nodes[i].upstream)
		slices.Sort(g.nodes[i].downstream)
	}
	return nil
}

func (g *Graph) link(from, to NodeID) {
	if slices.Contains(g.nodes[to].upstream, from) {
		return
	}
	g.nodes[to].upstream = append(g.nodes[to].upstream, from)
	g.nodes[from].downstream = append(g.nodes[from].downstream, to)
}

// sort runs Kahn's algorithm. Ties between ready nodes are broken by
// ascending pod digest, then node name.
func (g *Graph) sort() error {
	inDegree := make([]int, len(g.nodes))
	ready := &nodeHeap{less: g.tieBreak}
	for i := range g.nodes {
		inDegree[i] = len(g.nodes[i].upstream)
		if inDegree[i] == 0 {
			heap.Push(ready, NodeID(i))
		}
	}

	g.order = make([]NodeID, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID)
		g.order = append(g.order, id)
		for _, down := range g.nodes[id].downstream {
			inDegree[down]--
			if inDegree[down] == 0 {
				heap.Push(ready, down)
			}
		}
	}

	if len(g.order) < len(g.nodes) {
		remaining := make([]bool, len(g.nodes))
		for i, d := range inDegree {
			remaining[i] = d > 0
		}
		members := g.cycleMembers(remaining)
		return zerr.With(
			zerr.With(zerr.Wrap(ErrCyclicDependency, "pipeline edges form a cycle"), "nodes", members),
			"cycle", strings.Join(members, ", "),
		)
	}

	g.rank = make([]int, len(g.nodes))
	for r, id := range g.order {
		g.rank[id] = r
	}
	return nil
}

func (g *Graph) tieBreak(a, b NodeID) bool {
	if c := g.nodes[a].Pod.Digest().Compare(g.nodes[b].Pod.Digest()); c != 0 {
		return c < 0
	}
	return g.nodes[a].Name < g.nodes[b].Name
}

// cycleMembers returns the names of nodes that sit on a cycle, found as the
// non-trivial strongly connected components among the nodes Kahn's
// algorithm could not remove. Nodes that only depend on a cycle are excluded.
func (g *Graph) cycleMembers(remaining []bool) []string {
	n := len(g.nodes)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = -1
	}
	low := make([]int, n)
	onStack := make([]bool, n)
	var stack []NodeID
	var members []string
	next := 0

	var connect func(v NodeID)
	connect = func(v NodeID) {
		indices[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.nodes[v].downstream {
			if !remaining[w] {
				continue
			}
			if indices[w] < 0 {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}

		if low[v] != indices[v] {
			return
		}
		var scc []NodeID
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 || slices.Contains(g.nodes[v].downstream, v) {
			for _, w := range scc {
				members = append(members, g.nodes[w].Name)
			}
		}
	}

	for i := range n {
		if remaining[i] && indices[i] < 0 {
			connect(NodeID(i))
		}
	}
	slices.Sort(members)
	return members
}

// Pipeline returns the pipeline the graph was built from.
func (g *Graph) Pipeline() *Pipeline {
	return g.pipeline
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) GraphNode {
	n := g.nodes[id].GraphNode
	n.Bindings = slices.Clone(n.Bindings)
	return n
}

// Lookup returns the id of the named node.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.index[name]
	return id, ok
}

// Order returns the topological order.
func (g *Graph) Order() []NodeID {
	return slices.Clone(g.order)
}

// Rank returns the position of id in the topological order.
func (g *Graph) Rank(id NodeID) int {
	return g.rank[id]
}

// Upstream returns the distinct nodes id depends on.
func (g *Graph) Upstream(id NodeID) []NodeID {
	return slices.Clone(g.nodes[id].upstream)
}

// Downstream returns the distinct nodes that depend on id.
func (g *Graph) Downstream(id NodeID) []NodeID {
	return slices.Clone(g.nodes[id].downstream)
}

// Descendants returns every node that transitively depends on id, in topological order.
func (g *Graph) Descendants(id NodeID) []NodeID {
	seen := make([]bool, len(g.nodes))
	queue := slices.Clone(g.nodes[id].downstream)
	var out []NodeID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, g.nodes[cur].downstream...)
	}
	slices.SortFunc(out, func(a, b NodeID) int { return g.rank[a] - g.rank[b] })
	return out
}

// Walk yields nodes in topological order.
func (g *Graph) Walk() iter.Seq[GraphNode] {
	return func(yield func(GraphNode) bool) {
		for _, id := range g.order {
			if !yield(g.Node(id)) {
				return
			}
		}
	}
}

func danglingError(msg string, ref SlotRef) error {
	return zerr.With(zerr.With(zerr.Wrap(ErrDanglingReference, msg), "node", ref.Node), "slot", ref.Slot)
}

type nodeHeap struct {
	ids  []NodeID
	less func(a, b NodeID) bool
}

func (h *nodeHeap) Len() int           { return len(h.ids) }
func (h *nodeHeap) Less(i, j int) bool { return h.less(h.ids[i], h.ids[j]) }
func (h *nodeHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *nodeHeap) Push(x any)         { h.ids = append(h.ids, x.(NodeID)) }

func (h *nodeHeap) Pop() any {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}
