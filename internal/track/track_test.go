package track

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant/internal/collect"
	"covenant/internal/manifest"
)

func writeSource(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))
}

func chainManifest(t *testing.T, raw string) *manifest.Manifest {
	t.Helper()
	var m manifest.Manifest
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return &m
}

func TestAnalyze_Classification(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeSource(t, root, "src/parser.py")
	writeSource(t, root, "src/orphan.py")
	writeSource(t, root, "src/config.py")
	writeSource(t, root, "tests/test_parser.py")

	manifests := []*manifest.Manifest{
		chainManifest(t, `{
			"goal": "parser", "taskType": "create",
			"creatableFiles": ["src/parser.py"],
			"readonlyFiles": ["tests/test_parser.py"],
			"expectedArtifacts": {"file": "src/parser.py", "contains": [{"type": "class", "name": "Parser"}]},
			"validationCommand": "pytest tests/test_parser.py -v"
		}`),
		chainManifest(t, `{
			"goal": "config", "taskType": "edit",
			"editableFiles": ["src/config.py"]
		}`),
	}

	report, err := Analyze(manifests, root, nil, nil)
	require.NoError(t, err)

	// parser.py: created, artifacts, test-linked → tracked.
	// test_parser.py: readonly-only but a test file → tracked, no penalty.
	require.Len(t, report.Tracked, 2)
	assert.Equal(t, "src/parser.py", report.Tracked[0].Path)
	assert.Equal(t, "tests/test_parser.py", report.Tracked[1].Path)

	// config.py: edited but no artifacts → registered with an issue.
	require.Len(t, report.Registered, 1)
	assert.Equal(t, "src/config.py", report.Registered[0].Path)
	assert.Contains(t, report.Registered[0].Issues, "declared without artifacts")

	// orphan.py appears in no manifest.
	require.Len(t, report.Undeclared, 1)
	assert.Equal(t, "src/orphan.py", report.Undeclared[0].Path)

	assert.Equal(t, 4, report.Total())
}

func TestAnalyze_ArtifactsWithoutTests(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeSource(t, root, "src/engine.py")

	manifests := []*manifest.Manifest{
		chainManifest(t, `{
			"goal": "engine", "taskType": "create",
			"creatableFiles": ["src/engine.py"],
			"expectedArtifacts": {"file": "src/engine.py", "contains": [{"type": "class", "name": "Engine"}]}
		}`),
	}

	report, err := Analyze(manifests, root, nil, nil)
	require.NoError(t, err)
	require.Len(t, report.Registered, 1)
	assert.Contains(t, report.Registered[0].Issues, "artifacts declared without behavioral tests")
}

func TestAnalyze_SkipsBuildAndIgnoreGlobs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeSource(t, root, "src/a.py")
	writeSource(t, root, "__pycache__/a.cpython-311.py")
	writeSource(t, root, "node_modules/pkg/index.js")
	writeSource(t, root, "generated/schema.py")

	report, err := Analyze(nil, root, []string{"generated/**"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Total())
	assert.Equal(t, "src/a.py", report.Undeclared[0].Path)
}

func TestAnalyze_UnsupportedFilesExcluded(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeSource(t, root, "README.md")
	writeSource(t, root, "data.json")
	writeSource(t, root, "src/a.py")

	report, err := Analyze(nil, root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total())
}

func TestAnalyze_CustomRegistry(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeSource(t, root, "src/a.py")
	writeSource(t, root, "src/b.ts")

	pythonOnly := collect.NewRegistry(collect.NewPythonCollector())
	report, err := Analyze(nil, root, nil, pythonOnly)
	require.NoError(t, err)
	require.Equal(t, 1, report.Total())
	assert.Equal(t, "src/a.py", report.Undeclared[0].Path)
}

func TestCommandTestRefs(t *testing.T) {
	t.Parallel()
	refs := CommandTestRefs([][]string{
		{"pytest", "tests/test_x.py::test_case", "-v"},
		{"mypy", "src"},
		{"python", "-m", "pytest", "tests/test_y.py"},
	})
	assert.Equal(t, []string{"tests/test_x.py", "tests/test_y.py"}, refs)
}
