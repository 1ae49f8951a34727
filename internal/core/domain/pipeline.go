package domain

import (
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// SlotRef names a slot on a pipeline node.
type SlotRef struct {
	Node string `json:"node"`
	Slot string `json:"slot"`
}

// ParseSlotRef parses the "node.slot" form.
func ParseSlotRef(s string) (SlotRef, error) {
	node, slot, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || node == "" || slot == "" {
		return SlotRef{}, zerr.With(zerr.Wrap(ErrInvalidSlotRef, "malformed slot reference"), "ref", s)
	}
	return SlotRef{Node: node, Slot: slot}, nil
}

// String returns the "node.slot" form.
func (r SlotRef) String() string {
	return r.Node + "." + r.Slot
}

// Edge binds an output slot of one node to an input slot of another.
type Edge struct {
	From SlotRef `json:"from"`
	To   SlotRef `json:"to"`
}

// String returns "from -> to".
func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

func compareEdges(a, b Edge) int {
	if c := strings.Compare(a.To.String(), b.To.String()); c != 0 {
		return c
	}
	return strings.Compare(a.From.String(), b.From.String())
}

// PipelineNode places a pod in a pipeline. Literals bind input slots to
// concrete values; the remaining inputs are bound by edges.
type PipelineNode struct {
	Name     string
	Pod      *Pod
	Literals map[string]any
}

// Pipeline is a named set of pod nodes plus the edges between them.
// A Pipeline returned by NewPipeline is hashed and must not be mutated.
type Pipeline struct {
	Annotation *Annotation
	Nodes      []PipelineNode
	Edges      []Edge

	digest    Digest
	canonical []byte
}

type pipelineDocument struct {
	Nodes map[string]nodeDocument `json:"nodes"`
	Edges []Edge                  `json:"edges,omitempty"`
}

type nodeDocument struct {
	Pod      Digest         `json:"pod"`
	Literals map[string]any `json:"literals,omitempty"`
}

// NewPipeline normalizes the nodes and edges and computes the pipeline digest.
// Structural validation of the graph is left to BuildGraph.
func NewPipeline(annotation *Annotation, nodes []PipelineNode, edges []Edge) (*Pipeline, error) {
	p := &Pipeline{
		Nodes: make([]PipelineNode, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
	}
	if annotation != nil {
		a := *annotation
		p.Annotation = &a
	}

	for _, n := range nodes {
		name := strings.TrimSpace(n.Name)
		if name == "" || strings.Contains(name, ".") {
			return nil, zerr.With(zerr.Wrap(ErrInvalidPipeline, "invalid node name"), "node", n.Name)
		}
		if n.Pod == nil {
			return nil, zerr.With(zerr.Wrap(ErrInvalidPipeline, "node has no pod"), "node", name)
		}

		literals := make(map[string]any, len(n.Literals))
		for slot, v := range n.Literals {
			norm, err := NormalizeValue(v)
			if err != nil {
				return nil, zerr.With(zerr.With(err, "node", name), "slot", slot)
			}
			literals[strings.TrimSpace(slot)] = norm
		}
		p.Nodes = append(p.Nodes, PipelineNode{Name: name, Pod: n.Pod, Literals: literals})
	}

	slices.SortFunc(p.Nodes, func(a, b PipelineNode) int { return strings.Compare(a.Name, b.Name) })
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i-1].Name == p.Nodes[i].Name {
			return nil, zerr.With(zerr.Wrap(ErrInvalidPipeline, "node declared twice"), "node", p.Nodes[i].Name)
		}
	}

	for _, e := range edges {
		p.Edges = append(p.Edges, Edge{
			From: SlotRef{Node: strings.TrimSpace(e.From.Node), Slot: strings.TrimSpace(e.From.Slot)},
			To:   SlotRef{Node: strings.TrimSpace(e.To.Node), Slot: strings.TrimSpace(e.To.Slot)},
		})
	}
	slices.SortFunc(p.Edges, compareEdges)

	b, err := encodeEnvelope(ClassPipeline, p.document())
	if err != nil {
		return nil, err
	}
	p.canonical = b
	p.digest = Hash(b)
	return p, nil
}

// DecodePipeline reconstructs a pipeline from its canonical bytes, resolving
// each node's pod digest through lookup.
func DecodePipeline(b []byte, lookup func(Digest) (*Pod, error)) (*Pipeline, error) {
	doc, err := decodeEnvelope[pipelineDocument](ClassPipeline, b)
	if err != nil {
		return nil, err
	}

	nodes := make([]PipelineNode, 0, len(doc.Nodes))
	for _, name := range slices.Sorted(maps.Keys(doc.Nodes)) {
		nd := doc.Nodes[name]
		pod, err := lookup(nd.Pod)
		if err != nil {
			return nil, zerr.With(err, "node", name)
		}
		nodes = append(nodes, PipelineNode{Name: name, Pod: pod, Literals: nd.Literals})
	}
	return NewPipeline(nil, nodes, doc.Edges)
}

// PodDigests returns the distinct pod digests referenced by the pipeline.
func (p *Pipeline) PodDigests() []Digest {
	seen := make(map[Digest]struct{}, len(p.Nodes))
	out := make([]Digest, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if _, ok := seen[n.Pod.Digest()]; ok {
			continue
		}
		seen[n.Pod.Digest()] = struct{}{}
		out = append(out, n.Pod.Digest())
	}
	slices.SortFunc(out, Digest.Compare)
	return out
}

// Digest returns the pipeline's identity.
func (p *Pipeline) Digest() Digest {
	return p.digest
}

// Canonical returns the canonical bytes the digest was computed from.
func (p *Pipeline) Canonical() []byte {
	return slices.Clone(p.canonical)
}

// Name returns the annotation name, or the short digest.
func (p *Pipeline) Name() string {
	if p.Annotation != nil && p.Annotation.Name != "" {
		return p.Annotation.Name
	}
	return p.digest.Short()
}

func (p *Pipeline) document() pipelineDocument {
	doc := pipelineDocument{
		Nodes: make(map[string]nodeDocument, len(p.Nodes)),
		Edges: p.Edges,
	}
	for _, n := range p.Nodes {
		doc.Nodes[n.Name] = nodeDocument{Pod: n.Pod.Digest(), Literals: n.Literals}
	}
	return doc
}
