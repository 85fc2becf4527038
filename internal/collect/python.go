package collect

import (
	"context"
	"os"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonCollector extracts declared and used artifacts from Python source
// using tree-sitter.
type PythonCollector struct{}

// NewPythonCollector creates a Python collector.
func NewPythonCollector() *PythonCollector { return &PythonCollector{} }

func (p *PythonCollector) Language() string { return "python" }

func (p *PythonCollector) Supports(path string) bool {
	return hasExt(path, ".py")
}

// Collect parses one Python file. Declaration mode records top-level
// functions and classes, methods and attributes scoped to their class, and
// module-level simple assignments; usage mode records calls, instantiations,
// and method calls on tracked receivers.
func (p *PythonCollector) Collect(ctx context.Context, path string, mode Mode) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.CollectSource(ctx, path, content, mode)
}

// CollectSource collects from in-memory source. Embedded-language
// composition and tests use this entry point directly.
func (p *PythonCollector) CollectSource(ctx context.Context, path string, content []byte, mode Mode) (*Collection, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Language: "python", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Language: "python", Err: errSyntax}
	}

	col := NewCollection()
	if mode.Has(ModeDeclaration) {
		for i := 0; i < int(root.NamedChildCount()); i++ {
			p.declareNode(root.NamedChild(i), content, col)
		}
	}
	if mode.Has(ModeUsage) {
		p.collectUsage(root, content, col)
	}
	return col, nil
}

// declareNode records declaration facts from one top-level node.
func (p *PythonCollector) declareNode(node *sitter.Node, content []byte, col *Collection) {
	switch node.Type() {
	case "class_definition":
		p.declareClass(node, content, col)

	case "function_definition":
		name := text(node.ChildByFieldName("name"), content)
		if name != "" {
			col.Functions[name] = p.params(node.ChildByFieldName("parameters"), content, false)
		}

	case "decorated_definition":
		if def := definitionInDecorated(node); def != nil {
			p.declareNode(def, content, col)
		}

	case "expression_statement":
		// Module-level simple assignments are file-scoped attributes.
		// Assignments inside function bodies never reach here: they are
		// locals, not artifacts.
		for _, name := range assignmentTargets(node, content) {
			col.AddAttribute("", name)
		}
	}
}

// declareClass records a class, its bases, methods, and attributes.
func (p *PythonCollector) declareClass(node *sitter.Node, content []byte, col *Collection) {
	name := text(node.ChildByFieldName("name"), content)
	if name == "" {
		return
	}
	col.Classes[name] = true

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := text(supers.NamedChild(i), content)
			// Keyword arguments (metaclass=...) are not bases.
			if base != "" && !strings.Contains(base, "=") {
				col.ClassBases[name] = append(col.ClassBases[name], base)
			}
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			p.declareMethod(child, content, name, col)
		case "decorated_definition":
			if def := definitionInDecorated(child); def != nil && def.Type() == "function_definition" {
				p.declareMethod(def, content, name, col)
			}
		case "expression_statement":
			for _, attr := range assignmentTargets(child, content) {
				col.AddAttribute(name, attr)
			}
		}
	}
}

// declareMethod records a method under its class, excluding the implicit
// self/cls parameter, and mines self.x assignments for instance attributes.
func (p *PythonCollector) declareMethod(node *sitter.Node, content []byte, class string, col *Collection) {
	name := text(node.ChildByFieldName("name"), content)
	if name == "" {
		return
	}
	col.AddMethod(class, name, p.params(node.ChildByFieldName("parameters"), content, true))

	if body := node.ChildByFieldName("body"); body != nil {
		p.selfAttributes(body, content, class, col)
	}
}

// selfAttributes walks a method body recording self.<name> = ... targets.
func (p *PythonCollector) selfAttributes(node *sitter.Node, content []byte, class string, col *Collection) {
	if node.Type() == "assignment" {
		left := node.ChildByFieldName("left")
		if left != nil && left.Type() == "attribute" {
			obj := text(left.ChildByFieldName("object"), content)
			attr := text(left.ChildByFieldName("attribute"), content)
			if obj == "self" && attr != "" {
				col.AddAttribute(class, attr)
			}
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		// Nested function/class definitions start a new scope.
		if child.Type() == "function_definition" || child.Type() == "class_definition" {
			continue
		}
		p.selfAttributes(child, content, class, col)
	}
}

// params extracts the declared parameter list. When isMethod is set, a
// leading self/cls is the implicit receiver and is dropped.
func (p *PythonCollector) params(node *sitter.Node, content []byte, isMethod bool) []Param {
	if node == nil {
		return nil
	}
	var out []Param
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var param Param
		switch child.Type() {
		case "identifier":
			param = Param{Name: text(child, content)}
		case "typed_parameter":
			// The name is the first named child; the type is a field.
			if child.NamedChildCount() > 0 {
				param = Param{
					Name: text(child.NamedChild(0), content),
					Type: text(child.ChildByFieldName("type"), content),
				}
			}
		case "default_parameter":
			param = Param{
				Name:       text(child.ChildByFieldName("name"), content),
				HasDefault: true,
			}
		case "typed_default_parameter":
			param = Param{
				Name:       text(child.ChildByFieldName("name"), content),
				Type:       text(child.ChildByFieldName("type"), content),
				HasDefault: true,
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			// *args / **kwargs absorb any surplus; treat as defaulted.
			param = Param{Name: text(child, content), HasDefault: true}
		default:
			continue
		}
		if param.Name == "" {
			continue
		}
		if isMethod && len(out) == 0 && (param.Name == "self" || param.Name == "cls") {
			isMethod = false // receiver consumed
			continue
		}
		out = append(out, param)
	}
	return out
}

// collectUsage walks the whole tree in document order recording calls,
// constructor invocations, and receiver bindings.
func (p *PythonCollector) collectUsage(node *sitter.Node, content []byte, col *Collection) {
	switch node.Type() {
	case "assignment":
		p.bindReceiver(node, content, col)
	case "call":
		p.recordCall(node, content, col)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.collectUsage(node.NamedChild(i), content, col)
	}
}

// bindReceiver tracks simple x = ClassName(...) assignments so later
// x.method() calls can be attributed to ClassName.
func (p *PythonCollector) bindReceiver(node *sitter.Node, content []byte, col *Collection) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "call" {
		return
	}
	callee := right.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" {
		return
	}
	class := text(callee, content)
	if isClassName(class) {
		col.VarToClass[text(left, content)] = class
	}
}

// recordCall records one call expression: a plain function call, a
// constructor invocation (capitalized callee), or a method call on a
// receiver. Argument counts are kept per call site.
func (p *PythonCollector) recordCall(node *sitter.Node, content []byte, col *Collection) {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		return
	}
	argc := callArgc(node.ChildByFieldName("arguments"))

	switch callee.Type() {
	case "identifier":
		name := text(callee, content)
		if name == "" {
			return
		}
		if isClassName(name) {
			col.UsedClasses[name] = true
		} else {
			col.UsedFunctions[name] = true
		}
		col.AddCallSite(name, argc)

	case "attribute":
		obj := callee.ChildByFieldName("object")
		attr := text(callee.ChildByFieldName("attribute"), content)
		if obj == nil || attr == "" {
			return
		}
		recv := text(obj, content)
		if obj.Type() != "identifier" && obj.Type() != "call" {
			return
		}
		// ClassName.method(...) and x.method(...) with a tracked binding
		// both resolve to the class; otherwise keep the raw receiver.
		key := recv
		if class, ok := col.VarToClass[recv]; ok {
			key = class
		}
		col.AddUsedMethod(key, attr)
		col.AddCallSite(key+"."+attr, argc)
	}
}

// callArgc counts arguments at a call site, keyword arguments included.
func callArgc(args *sitter.Node) int {
	if args == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if args.NamedChild(i).Type() != "comment" {
			n++
		}
	}
	return n
}

// definitionInDecorated returns the wrapped definition node.
func definitionInDecorated(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition", "function_definition":
			return child
		}
	}
	return nil
}

// assignmentTargets returns simple identifier targets of assignments inside
// an expression_statement.
func assignmentTargets(node *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "assignment" {
			continue
		}
		left := child.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			names = append(names, text(left, content))
		}
	}
	return names
}

// isClassName applies the constructor-call heuristic: a capitalized callee
// is an instantiation.
func isClassName(name string) bool {
	r := []rune(name)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

// text returns the source bytes spanned by a node, or "" for nil.
func text(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
