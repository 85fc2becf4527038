package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant"
	"covenant/internal/align"
	"covenant/internal/graph"
	"covenant/internal/track"
)

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
	assert.Error(t, validateFormat(""))
}

func TestFormatValidationText_Aligned(t *testing.T) {
	var buf bytes.Buffer
	formatValidationText(&buf, &covenant.ValidationReport{
		Manifest: "manifests/task-001-x.manifest.json",
		File:     "src/x.py",
		Mode:     "implementation",
		Category: "creatable",
		Aligned:  true,
		Commands: [][]string{{"pytest", "tests/test_x.py"}},
	})
	out := buf.String()
	assert.Contains(t, out, "OK manifests/task-001-x.manifest.json")
	assert.Contains(t, out, "pytest tests/test_x.py")
}

func TestFormatValidationText_Failures(t *testing.T) {
	var buf bytes.Buffer
	formatValidationText(&buf, &covenant.ValidationReport{
		Manifest: "manifests/task-001-x.manifest.json",
		Mode:     "behavioral",
		Errors: []*align.Error{
			{File: "src/x.py", Artifact: "Parser.parse", Kind: align.KindMissing, Detail: "never called"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "Parser.parse")
	assert.Contains(t, out, "never called")
}

func TestGraphSummary(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.FileID("src/a.py"), graph.NodeFile, nil)
	g.AddNode(graph.ManifestID("task-001-x.manifest.json"), graph.NodeManifest, nil)
	g.AddEdge(graph.EdgeCreates, graph.ManifestID("task-001-x.manifest.json"), graph.FileID("src/a.py"))

	report := graphSummary(g)
	require.Equal(t, 2, report.Nodes)
	require.Equal(t, 1, report.Edges)
	assert.Equal(t, 1, report.NodeTypes["File"])
	assert.Equal(t, 1, report.EdgeTypes["Creates"])

	var buf bytes.Buffer
	formatGraphText(&buf, report)
	assert.Contains(t, buf.String(), "2 nodes, 1 edges")
}

func TestFormatTrackingText(t *testing.T) {
	var buf bytes.Buffer
	formatTrackingText(&buf, &track.Report{
		Tracked:    []track.FileStatus{{Path: "src/a.py", State: track.StateTracked}},
		Registered: []track.FileStatus{{Path: "src/b.py", State: track.StateRegistered, Issues: []string{"declared without artifacts"}}},
	})
	out := buf.String()
	assert.Contains(t, out, "2 files: 1 tracked, 1 registered, 0 undeclared")
	assert.Contains(t, out, "declared without artifacts")
}
