// Package graph models manifests, files, modules, and artifacts as a typed
// graph. Node identity is a content-derived natural key, so building the
// graph twice from the same manifests produces the same nodes and edges;
// insertion is keyed upsert, never append.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// NodeType classifies a graph node.
type NodeType string

const (
	NodeManifest NodeType = "Manifest"
	NodeFile     NodeType = "File"
	NodeArtifact NodeType = "Artifact"
	NodeModule   NodeType = "Module"
)

// EdgeType classifies a graph edge.
type EdgeType string

const (
	EdgeSupersedes EdgeType = "Supersedes"
	EdgeCreates    EdgeType = "Creates"
	EdgeEdits      EdgeType = "Edits"
	EdgeReads      EdgeType = "Reads"
	EdgeDefines    EdgeType = "Defines"
	EdgeDeclares   EdgeType = "Declares"
	EdgeContains   EdgeType = "Contains"
)

// Node is one graph vertex. ID is a natural key like "file:src/parser.py".
type Node struct {
	ID    string
	Type  NodeType
	Attrs map[string]string
}

// Edge links two nodes by their IDs. The edge ID is derived from the
// triple, so the same relation never duplicates.
type Edge struct {
	ID       string
	Type     EdgeType
	SourceID string
	TargetID string
}

// Graph is an in-memory node/edge set with keyed upsert semantics.
type Graph struct {
	nodes map[string]*Node
	edges map[string]*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// ManifestID returns the node key for a manifest file.
func ManifestID(base string) string { return "manifest:" + base }

// FileID returns the node key for a source file path.
func FileID(path string) string { return "file:" + path }

// ArtifactID returns the node key for an artifact in a file. The name is
// the artifact's identity key, class-qualified for members.
func ArtifactID(file, name string) string { return "artifact:" + file + ":" + name }

// ModuleID returns the node key for the module containing a source file:
// the path with its extension dropped and separators dotted.
func ModuleID(path string) string {
	if i := strings.LastIndex(path, "."); i > 0 {
		path = path[:i]
	}
	return "module:" + strings.ReplaceAll(path, "/", ".")
}

// AddNode upserts a node by ID. Attributes merge, with the latest write
// winning per key.
func (g *Graph) AddNode(id string, typ NodeType, attrs map[string]string) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Type: typ, Attrs: make(map[string]string)}
		g.nodes[id] = n
	}
	for k, v := range attrs {
		n.Attrs[k] = v
	}
	return n
}

// AddEdge upserts an edge keyed by (type, source, target).
func (g *Graph) AddEdge(typ EdgeType, sourceID, targetID string) *Edge {
	id := fmt.Sprintf("%s:%s->%s", typ, sourceID, targetID)
	e, ok := g.edges[id]
	if !ok {
		e = &Edge{ID: id, Type: typ, SourceID: sourceID, TargetID: targetID}
		g.edges[id] = e
	}
	return e
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges ordered by ID.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesByType returns nodes of one type ordered by ID.
func (g *Graph) NodesByType(typ NodeType) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// EdgesFrom returns the edges leaving a node, ordered by ID.
func (g *Graph) EdgesFrom(sourceID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges() {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }
