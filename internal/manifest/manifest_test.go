package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidManifest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifest(t, dir, "task-001-add-parser.manifest.json", `{
		"goal": "Add the config parser",
		"taskType": "create",
		"version": "1",
		"creatableFiles": ["src/parser.py"],
		"readonlyFiles": ["tests/test_parser.py"],
		"expectedArtifacts": {
			"file": "src/parser.py",
			"contains": [
				{"type": "class", "name": "Parser", "bases": ["Base"]},
				{"type": "function", "name": "parse", "class": "Parser",
				 "args": [{"name": "text"}, {"name": "strict", "hasDefault": true}]}
			]
		},
		"validationCommand": "pytest tests/test_parser.py -v"
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Add the config parser", m.Goal)
	assert.Equal(t, TaskCreate, m.TaskType)
	assert.Equal(t, path, m.Path)
	require.NotNil(t, m.ExpectedArtifacts)
	assert.Equal(t, "src/parser.py", m.ExpectedArtifacts.File)
	require.Len(t, m.ExpectedArtifacts.Contains, 2)

	fn := m.ExpectedArtifacts.Contains[1]
	assert.Equal(t, "Parser.parse", fn.Key())
	assert.Equal(t, 1, fn.RequiredArgs())

	assert.Equal(t, [][]string{{"pytest", "tests/test_parser.py", "-v"}}, m.Commands())
}

func TestLoad_StringArgs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifest(t, dir, "task-002-x.manifest.json", `{
		"goal": "g", "taskType": "edit",
		"expectedArtifacts": {"file": "a.py", "contains": [
			{"type": "function", "name": "f", "args": ["x", "y: int"]}
		]}
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	args := m.ExpectedArtifacts.Contains[0].Args
	require.Len(t, args, 2)
	assert.Equal(t, Arg{Name: "x"}, args[0])
	assert.Equal(t, Arg{Name: "y", Type: "int"}, args[1])
}

func TestLoad_SchemaErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"goal": `},
		{"missing goal", `{"taskType": "create"}`},
		{"missing taskType", `{"goal": "g"}`},
		{"unknown taskType", `{"goal": "g", "taskType": "destroy"}`},
		{"unsupported version", `{"goal": "g", "taskType": "create", "version": "2"}`},
		{"bad command shape", `{"goal": "g", "taskType": "create", "validationCommand": 42}`},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, dir, fmt.Sprintf("task-%03d-bad.manifest.json", i+1), tc.content)
			_, err := Load(path)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, path, schemaErr.Path)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "task-001-x.manifest.json"))
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.False(t, errors.As(err, &schemaErr), "read failures are not schema errors")
}

func TestNormalizeCommands_StringCommand(t *testing.T) {
	t.Parallel()
	cmds, err := NormalizeCommands(json.RawMessage(`"pytest tests/t.py -v"`), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"pytest", "tests/t.py", "-v"}}, cmds)
}

func TestNormalizeCommands_Idempotent(t *testing.T) {
	t.Parallel()
	first, err := NormalizeCommands(json.RawMessage(`"pytest tests/t.py -v"`), nil)
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := NormalizeCommands(nil, encoded)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeCommands_MixedShapes(t *testing.T) {
	t.Parallel()
	cmds, err := NormalizeCommands(
		json.RawMessage(`["pytest", "tests/a.py"]`),
		json.RawMessage(`["mypy src", ["ruff", "check", "."]]`),
	)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"pytest", "tests/a.py"},
		{"mypy", "src"},
		{"ruff", "check", "."},
	}, cmds)
}

func TestDedupCommands(t *testing.T) {
	t.Parallel()
	cmds := DedupCommands([][]string{
		{"pytest", "a"},
		{"mypy", "src"},
		{"pytest", "a"},
	})
	assert.Equal(t, [][]string{{"pytest", "a"}, {"mypy", "src"}}, cmds)
}

func TestTaskNumber(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 12, TaskNumber("task-012-add-parser.manifest.json"))
	assert.Equal(t, 3, TaskNumber("/some/dir/task-003-snapshot-all.manifest.json"))
	assert.Equal(t, 0, TaskNumber("task-abc-x.manifest.json"))
	assert.Equal(t, 0, TaskNumber("notes.json"))
}

func TestIsManifestFile(t *testing.T) {
	t.Parallel()
	assert.True(t, IsManifestFile("task-001-x.manifest.json"))
	assert.True(t, IsManifestFile("task-042-snapshot-q3.manifest.json"))
	assert.False(t, IsManifestFile("task-001-x.json"))
	assert.False(t, IsManifestFile("manifest.json"))
	assert.False(t, IsManifestFile("task-x.manifest.json"))
}

func TestManifest_FileCategory(t *testing.T) {
	t.Parallel()
	m := &Manifest{
		CreatableFiles: []string{"src/a.py"},
		EditableFiles:  []string{"src/b.py"},
		ReadonlyFiles:  []string{"tests/test_a.py"},
	}
	cat, ok := m.FileCategory("src/a.py")
	require.True(t, ok)
	assert.Equal(t, CategoryCreatable, cat)

	cat, ok = m.FileCategory("src/b.py")
	require.True(t, ok)
	assert.Equal(t, CategoryEditable, cat)

	cat, ok = m.FileCategory("tests/test_a.py")
	require.True(t, ok)
	assert.Equal(t, CategoryReadonly, cat)

	_, ok = m.FileCategory("src/c.py")
	assert.False(t, ok)
}

func TestManifest_IsSnapshot(t *testing.T) {
	t.Parallel()
	byType := &Manifest{Path: "task-009-rollup.manifest.json", TaskType: TaskSnapshot}
	assert.True(t, byType.IsSnapshot())

	byName := &Manifest{Path: "task-010-snapshot-rollup.manifest.json", TaskType: TaskEdit}
	assert.True(t, byName.IsSnapshot())

	plain := &Manifest{Path: "task-011-fix.manifest.json", TaskType: TaskEdit}
	assert.False(t, plain.IsSnapshot())
}
