package graph

import (
	"path/filepath"

	"covenant/internal/manifest"
	"covenant/internal/registry"
)

// Builder assembles the knowledge graph from a registry's active chain.
type Builder struct {
	registry *registry.Registry
}

// NewBuilder creates a builder over the given registry.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{registry: reg}
}

// Build resolves the directory's active manifests in chain order and emits
// their nodes and edges. Because every key is content-derived and insertion
// is upsert, building twice from an unchanged directory yields identical
// node and edge counts.
func (b *Builder) Build(dir string) (*Graph, error) {
	active, err := b.registry.ActiveManifests(dir)
	if err != nil {
		return nil, err
	}

	g := New()
	for _, m := range active {
		b.addManifest(g, m)
	}
	return g, nil
}

func (b *Builder) addManifest(g *Graph, m *manifest.Manifest) {
	base := filepath.Base(m.Path)
	mid := ManifestID(base)
	g.AddNode(mid, NodeManifest, map[string]string{
		"goal":     m.Goal,
		"taskType": string(m.TaskType),
	})

	for _, ref := range m.Supersedes {
		g.AddEdge(EdgeSupersedes, mid, ManifestID(filepath.Base(ref)))
	}

	categories := []struct {
		files []string
		edge  EdgeType
	}{
		{m.CreatableFiles, EdgeCreates},
		{m.EditableFiles, EdgeEdits},
		{m.ReadonlyFiles, EdgeReads},
	}
	for _, cat := range categories {
		for _, file := range cat.files {
			fid := b.addFile(g, file)
			g.AddEdge(cat.edge, mid, fid)
		}
	}

	if m.ExpectedArtifacts == nil {
		return
	}
	file := m.ExpectedArtifacts.File
	fid := b.addFile(g, file)
	for _, art := range m.ExpectedArtifacts.Contains {
		aid := ArtifactID(file, art.Key())
		g.AddNode(aid, NodeArtifact, map[string]string{
			"name": art.Name,
			"type": string(art.Type),
		})
		g.AddEdge(EdgeDefines, fid, aid)
		g.AddEdge(EdgeDeclares, mid, aid)
		if art.Class != "" {
			// Membership hangs off the owning class's artifact node,
			// whether or not a manifest declared that class explicitly.
			owner := ArtifactID(file, art.Class)
			g.AddNode(owner, NodeArtifact, map[string]string{"name": art.Class})
			g.AddEdge(EdgeContains, owner, aid)
		}
	}
}

// addFile upserts the file node and its enclosing module node.
func (b *Builder) addFile(g *Graph, file string) string {
	fid := FileID(file)
	g.AddNode(fid, NodeFile, map[string]string{"path": file})
	mid := ModuleID(file)
	g.AddNode(mid, NodeModule, nil)
	g.AddEdge(EdgeContains, mid, fid)
	return fid
}
