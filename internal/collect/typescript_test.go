package collect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTS(t *testing.T, path, source string, mode Mode) *Collection {
	t.Helper()
	col, err := NewTypeScriptCollector().CollectSource(context.Background(), path, []byte(source), mode)
	require.NoError(t, err)
	return col
}

func TestTypeScript_Declarations(t *testing.T) {
	t.Parallel()
	col := collectTS(t, "app.ts", `
export const VERSION = "1.0";

export function render(view: string, force = false): void {}

export const compile = (source: string) => source;

interface Task {
  id: string;
  run(input: string): void;
}

enum Status { Open, Closed }

type Handler = (e: Event) => void;

export class Queue extends Base implements Task {
  size = 0;

  constructor(limit: number) {
    super();
  }

  push(item: string, priority?: number): void {}
}
`, ModeDeclaration)

	assert.True(t, col.Classes["Queue"])
	assert.True(t, col.Classes["Task"])
	assert.True(t, col.Classes["Status"])
	assert.True(t, col.Classes["Handler"])
	assert.Contains(t, col.ClassBases["Queue"], "Base")
	assert.Contains(t, col.ClassBases["Queue"], "Task")

	require.Contains(t, col.Functions, "render")
	params := col.Functions["render"]
	require.Len(t, params, 2)
	assert.Equal(t, Param{Name: "view", Type: "string"}, params[0])
	assert.True(t, params[1].HasDefault)

	// Arrow functions bound to const declare functions too.
	assert.Contains(t, col.Functions, "compile")
	assert.True(t, col.HasAttribute("", "VERSION"))

	// constructor is the implicit initializer, not a method artifact.
	assert.False(t, col.HasMethod("Queue", "constructor"))
	require.True(t, col.HasMethod("Queue", "push"))
	push := col.Methods["Queue"]["push"]
	require.Len(t, push, 2)
	assert.False(t, push[0].HasDefault)
	assert.True(t, push[1].HasDefault, "optional parameter")

	assert.True(t, col.HasAttribute("Queue", "size"))
	assert.True(t, col.HasAttribute("Task", "id"))
	assert.True(t, col.HasMethod("Task", "run"))
}

func TestTypeScript_JavaScriptGrammar(t *testing.T) {
	t.Parallel()
	col := collectTS(t, "app.js", `
function greet(name, punctuation = "!") {
  return name + punctuation;
}

class Widget {
  render(target) {}
}
`, ModeDeclaration)

	require.Contains(t, col.Functions, "greet")
	params := col.Functions["greet"]
	require.Len(t, params, 2)
	assert.Equal(t, Param{Name: "name"}, params[0])
	assert.True(t, params[1].HasDefault)
	assert.True(t, col.HasMethod("Widget", "render"))
}

func TestTypeScript_Usage(t *testing.T) {
	t.Parallel()
	col := collectTS(t, "main.ts", `
const q = new Queue(10);
q.push("a", 1);
render("home");
`, ModeUsage)

	assert.True(t, col.UsedClasses["Queue"])
	assert.Equal(t, "Queue", col.VarToClass["q"])
	assert.True(t, col.UsedMethodOn("Queue", "push"))
	assert.True(t, col.UsedFunctions["render"])
	assert.Equal(t, []int{1}, col.UsedArguments["Queue"])
	assert.Equal(t, []int{2}, col.UsedArguments["Queue.push"])
}

func TestTypeScript_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := NewTypeScriptCollector().CollectSource(context.Background(), "bad.ts", []byte("class {{{"), ModeBoth)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "typescript", parseErr.Language)
}

func TestTypeScript_SyntaxErrorLabelsJavaScript(t *testing.T) {
	t.Parallel()
	_, err := NewTypeScriptCollector().CollectSource(context.Background(), "bad.js", []byte("function (((("), ModeBoth)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "javascript", parseErr.Language)
}

func TestHTML_ScriptRegions(t *testing.T) {
	t.Parallel()
	col, err := NewHTMLCollector().CollectSource(context.Background(), "page.html", []byte(`<!DOCTYPE html>
<html>
<head>
<script>
function setup(root) {}
</script>
</head>
<body>
<div id="app"></div>
<script>
class App {
  mount(el) {}
}
setup(document.body);
</script>
</body>
</html>
`), ModeBoth)
	require.NoError(t, err)

	// Definitions from both script blocks merge into one inventory.
	assert.Contains(t, col.Functions, "setup")
	assert.True(t, col.Classes["App"])
	assert.True(t, col.HasMethod("App", "mount"))
	assert.True(t, col.UsedFunctions["setup"])
}

func TestHTML_BrokenScriptLabelsJavaScript(t *testing.T) {
	t.Parallel()
	_, err := NewHTMLCollector().CollectSource(context.Background(), "page.html", []byte(`<html><body>
<script>
function (((
</script>
</body></html>
`), ModeBoth)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "javascript", parseErr.Language)
}

func TestHTML_NoScripts(t *testing.T) {
	t.Parallel()
	col, err := NewHTMLCollector().CollectSource(context.Background(), "static.html", []byte(`<html><body><p>hello</p></body></html>`), ModeBoth)
	require.NoError(t, err)
	assert.Empty(t, col.Classes)
	assert.Empty(t, col.Functions)
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()
	reg := DefaultRegistry()

	cases := []struct {
		path string
		lang string
	}{
		{"src/a.py", "python"},
		{"pkg/b.go", "go"},
		{"web/c.ts", "typescript"},
		{"web/d.jsx", "typescript"},
		{"web/e.html", "html"},
	}
	for _, tc := range cases {
		c, ok := reg.ForFile(tc.path)
		require.True(t, ok, tc.path)
		assert.Equal(t, tc.lang, c.Language(), tc.path)
	}

	_, ok := reg.ForFile("README.md")
	assert.False(t, ok)
	assert.False(t, reg.Supports("data.json"))
	assert.Equal(t, []string{"python", "go", "typescript", "html"}, reg.Languages())
}
