package align

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant/internal/collect"
	"covenant/internal/manifest"
)

func pythonCollection(t *testing.T, source string, mode collect.Mode) *collect.Collection {
	t.Helper()
	col, err := collect.NewPythonCollector().CollectSource(context.Background(), "src/parser.py", []byte(source), mode)
	require.NoError(t, err)
	return col
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		{"tests/test_x.py", true},
		{"pkg/tests/helpers.py", true},
		{"test_x.py", true},
		{"src/test_parser.py", true},
		{"src/testing_utils.py", false},
		{"src/my_test.py", false},
		{"contests/entry.py", false},
		{"src/parser.py", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTestFile(tc.path), tc.path)
	}
}

func TestCheck_ImplementationPass(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
class Parser(Base):
    def parse(self, text, strict=False):
        return text
`, collect.ModeDeclaration)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactClass, Name: "Parser", Bases: []string{"Base"}},
		{Type: manifest.ArtifactFunction, Name: "parse", Class: "Parser",
			Args: []manifest.Arg{{Name: "text"}, {Name: "strict", HasDefault: true}}},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryCreatable)
	assert.Empty(t, errs)
}

func TestCheck_ImplementationMissing(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
class Parser:
    pass
`, collect.ModeDeclaration)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactClass, Name: "Parser"},
		{Type: manifest.ArtifactFunction, Name: "parse", Class: "Parser"},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryEditable)
	require.Len(t, errs, 1)
	assert.Equal(t, KindMissing, errs[0].Kind)
	assert.Equal(t, "Parser.parse", errs[0].Artifact)
	assert.Equal(t, "src/parser.py", errs[0].File)
}

func TestCheck_SignatureMismatch(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
def parse(text):
    return text
`, collect.ModeDeclaration)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactFunction, Name: "parse",
			Args: []manifest.Arg{{Name: "text"}, {Name: "strict"}}},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryEditable)
	require.Len(t, errs, 1)
	assert.Equal(t, KindSignatureMismatch, errs[0].Kind)
	assert.Contains(t, errs[0].Detail, "strict")
}

func TestCheck_StrictRejectsSurplus(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
def parse(text):
    return text

def helper(x):
    return x

def _internal(x):
    return x
`, collect.ModeDeclaration)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactFunction, Name: "parse", Args: []manifest.Arg{{Name: "text"}}},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryCreatable)
	require.Len(t, errs, 1)
	assert.Equal(t, KindUnexpected, errs[0].Kind)
	assert.Equal(t, "helper", errs[0].Artifact)
}

func TestCheck_PermissiveAllowsSurplus(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
def parse(text):
    return text

def legacy_helper(x):
    return x
`, collect.ModeDeclaration)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactFunction, Name: "parse", Args: []manifest.Arg{{Name: "text"}}},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryEditable)
	assert.Empty(t, errs)
}

func TestCheck_TestFileExemptFromSurplus(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
def test_parse():
    pass

def fixture_builder():
    pass
`, collect.ModeDeclaration)

	errs := Check(nil, col, "tests/test_parser.py", ModeImplementation, manifest.CategoryCreatable)
	assert.Empty(t, errs)
}

func TestCheck_PrivateArtifactsExempt(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
class Parser:
    pass
`, collect.ModeDeclaration)

	// A declared private artifact is never required, even when absent.
	expected := []manifest.Artifact{
		{Type: manifest.ArtifactClass, Name: "Parser"},
		{Type: manifest.ArtifactFunction, Name: "_reset", Class: "Parser"},
	}

	errs := Check(expected, col, "src/parser.py", ModeImplementation, manifest.CategoryCreatable)
	assert.Empty(t, errs)
}

func TestCheck_BehavioralPass(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
p = Parser("x")
p.parse("text", True)
normalize("a")
`, collect.ModeUsage)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactClass, Name: "Parser"},
		{Type: manifest.ArtifactFunction, Name: "parse", Class: "Parser",
			Args: []manifest.Arg{{Name: "text"}, {Name: "strict", HasDefault: true}}},
		{Type: manifest.ArtifactFunction, Name: "normalize",
			Args: []manifest.Arg{{Name: "value"}}},
	}

	errs := Check(expected, col, "tests/test_parser.py", ModeBehavioral, manifest.CategoryReadonly)
	assert.Empty(t, errs)
}

func TestCheck_BehavioralNeverCalled(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
p = Parser("x")
`, collect.ModeUsage)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactClass, Name: "Parser"},
		{Type: manifest.ArtifactFunction, Name: "parse", Class: "Parser"},
	}

	errs := Check(expected, col, "tests/test_parser.py", ModeBehavioral, manifest.CategoryReadonly)
	require.Len(t, errs, 1)
	assert.Equal(t, KindMissing, errs[0].Kind)
	assert.Equal(t, "Parser.parse", errs[0].Artifact)
}

func TestCheck_BehavioralArgumentCount(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
foo(1)
`, collect.ModeUsage)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactFunction, Name: "foo",
			Args: []manifest.Arg{{Name: "a"}, {Name: "b"}}},
	}

	errs := Check(expected, col, "tests/test_foo.py", ModeBehavioral, manifest.CategoryReadonly)
	require.Len(t, errs, 1)
	assert.Equal(t, KindArgumentCount, errs[0].Kind)
	assert.Contains(t, errs[0].Detail, "missing b")
}

func TestCheck_BehavioralDefaultedArgsSatisfied(t *testing.T) {
	t.Parallel()
	col := pythonCollection(t, `
foo(1)
`, collect.ModeUsage)

	expected := []manifest.Artifact{
		{Type: manifest.ArtifactFunction, Name: "foo",
			Args: []manifest.Arg{{Name: "a"}, {Name: "b", HasDefault: true}}},
	}

	errs := Check(expected, col, "tests/test_foo.py", ModeBehavioral, manifest.CategoryReadonly)
	assert.Empty(t, errs)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	m, err := ParseMode("behavioral")
	require.NoError(t, err)
	assert.Equal(t, ModeBehavioral, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeImplementation, m)

	_, err = ParseMode("structural")
	assert.Error(t, err)
}

func TestTargetNotFound(t *testing.T) {
	t.Parallel()
	err := TargetNotFound("src/missing.py")
	assert.Equal(t, KindTargetNotFound, err.Kind)
	assert.Contains(t, err.Error(), "src/missing.py")
}
