package collect

import (
	"context"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptCollector extracts declared and used artifacts from TypeScript
// and JavaScript source using tree-sitter. The grammar is chosen per file
// extension; interfaces, enums, and type aliases all land in the class
// inventory since manifests do not distinguish them.
type TypeScriptCollector struct{}

// NewTypeScriptCollector creates a TypeScript/JavaScript collector.
func NewTypeScriptCollector() *TypeScriptCollector { return &TypeScriptCollector{} }

func (t *TypeScriptCollector) Language() string { return "typescript" }

func (t *TypeScriptCollector) Supports(path string) bool {
	return hasExt(path, ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs")
}

func (t *TypeScriptCollector) Collect(ctx context.Context, path string, mode Mode) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return t.CollectSource(ctx, path, content, mode)
}

// CollectSource collects from in-memory source, picking the grammar from the
// path's extension.
func (t *TypeScriptCollector) CollectSource(ctx context.Context, path string, content []byte, mode Mode) (*Collection, error) {
	return t.collectWithLanguage(ctx, path, content, mode, grammarFor(path), labelFor(path))
}

// collectWithLanguage runs one collection pass under an explicit grammar.
// The HTML collector uses this to parse script regions as JavaScript. The
// label names the grammar actually applied, so parse errors report
// "javascript" for a .js file or an HTML script region, not the collector's
// own name.
func (t *TypeScriptCollector) collectWithLanguage(ctx context.Context, path string, content []byte, mode Mode, lang *sitter.Language, label string) (*Collection, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Language: label, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Language: label, Err: errSyntax}
	}

	col := NewCollection()
	if mode.Has(ModeDeclaration) {
		t.declareTree(root, content, col)
	}
	if mode.Has(ModeUsage) {
		t.collectUsage(root, content, col)
	}
	return col, nil
}

func grammarFor(path string) *sitter.Language {
	switch {
	case hasExt(path, ".tsx"):
		return tsx.GetLanguage()
	case hasExt(path, ".ts", ".mts", ".cts"):
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

func labelFor(path string) string {
	if hasExt(path, ".js", ".jsx", ".mjs", ".cjs") {
		return "javascript"
	}
	return "typescript"
}

// declareTree records declaration facts. The walk descends into export
// statements and module bodies but not into function bodies; nested helpers
// are locals, not artifacts.
func (t *TypeScriptCollector) declareTree(node *sitter.Node, content []byte, col *Collection) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration":
			t.declareClass(child, content, col)

		case "interface_declaration":
			t.declareInterface(child, content, col)

		case "enum_declaration", "type_alias_declaration":
			name := text(child.ChildByFieldName("name"), content)
			if name != "" {
				col.Classes[name] = true
			}

		case "function_declaration", "generator_function_declaration":
			name := text(child.ChildByFieldName("name"), content)
			if name != "" {
				col.Functions[name] = t.params(child.ChildByFieldName("parameters"), content)
			}

		case "lexical_declaration", "variable_declaration":
			t.declareVariables(child, content, col)

		case "export_statement", "ambient_declaration":
			t.declareTree(child, content, col)
		}
	}
}

func (t *TypeScriptCollector) declareClass(node *sitter.Node, content []byte, col *Collection) {
	name := text(node.ChildByFieldName("name"), content)
	if name == "" {
		return
	}
	col.Classes[name] = true

	// extends/implements live under class_heritage.
	for i := 0; i < int(node.ChildCount()); i++ {
		heritage := node.Child(i)
		if heritage.Type() != "class_heritage" {
			continue
		}
		for _, base := range heritageTypes(heritage, content) {
			col.ClassBases[name] = append(col.ClassBases[name], base)
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition":
			method := text(member.ChildByFieldName("name"), content)
			if method != "" && method != "constructor" {
				col.AddMethod(name, method, t.params(member.ChildByFieldName("parameters"), content))
			}
		case "public_field_definition", "field_definition", "property_signature":
			field := text(member.ChildByFieldName("name"), content)
			if field != "" {
				col.AddAttribute(name, field)
			}
		}
	}
}

func (t *TypeScriptCollector) declareInterface(node *sitter.Node, content []byte, col *Collection) {
	name := text(node.ChildByFieldName("name"), content)
	if name == "" {
		return
	}
	col.Classes[name] = true

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "extends_type_clause" || child.Type() == "extends_clause" {
			for _, base := range heritageTypes(child, content) {
				col.ClassBases[name] = append(col.ClassBases[name], base)
			}
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_signature":
			method := text(member.ChildByFieldName("name"), content)
			if method != "" {
				col.AddMethod(name, method, t.params(member.ChildByFieldName("parameters"), content))
			}
		case "property_signature":
			field := text(member.ChildByFieldName("name"), content)
			if field != "" {
				col.AddAttribute(name, field)
			}
		}
	}
}

// declareVariables records top-level const/let/var declarations. An arrow or
// function expression initializer declares a function; anything else is a
// file-scoped attribute.
func (t *TypeScriptCollector) declareVariables(node *sitter.Node, content []byte, col *Collection) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := text(decl.ChildByFieldName("name"), content)
		if name == "" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
			col.Functions[name] = t.params(value.ChildByFieldName("parameters"), content)
		} else {
			col.AddAttribute("", name)
		}
	}
}

// heritageTypes collects type names from an extends or implements clause.
func heritageTypes(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "identifier", "type_identifier":
				out = append(out, text(child, content))
			case "extends_clause", "implements_clause", "generic_type":
				walk(child)
			}
		}
	}
	walk(node)
	return out
}

func (t *TypeScriptCollector) params(node *sitter.Node, content []byte) []Param {
	if node == nil {
		return nil
	}
	var out []Param
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var param Param
		switch child.Type() {
		case "required_parameter":
			param = Param{
				Name: text(child.ChildByFieldName("pattern"), content),
				Type: typeAnnotation(child, content),
			}
			// A required parameter with an initializer is still optional
			// at the call site.
			if child.ChildByFieldName("value") != nil {
				param.HasDefault = true
			}
		case "optional_parameter":
			param = Param{
				Name:       text(child.ChildByFieldName("pattern"), content),
				Type:       typeAnnotation(child, content),
				HasDefault: true,
			}
		case "identifier":
			// JavaScript grammar: bare parameter names.
			param = Param{Name: text(child, content)}
		case "assignment_pattern":
			param = Param{Name: text(child.ChildByFieldName("left"), content), HasDefault: true}
		case "rest_pattern":
			param = Param{Name: text(child, content), HasDefault: true}
		default:
			continue
		}
		if param.Name == "" || param.Name == "this" {
			continue
		}
		out = append(out, param)
	}
	return out
}

// typeAnnotation returns the annotated type of a parameter, colon stripped.
func typeAnnotation(node *sitter.Node, content []byte) string {
	ann := node.ChildByFieldName("type")
	if ann == nil {
		return ""
	}
	// type_annotation wraps the actual type node after the colon.
	if ann.NamedChildCount() > 0 {
		return text(ann.NamedChild(0), content)
	}
	return text(ann, content)
}

func (t *TypeScriptCollector) collectUsage(node *sitter.Node, content []byte, col *Collection) {
	switch node.Type() {
	case "variable_declarator":
		t.bindReceiver(node, content, col)
	case "new_expression":
		if ctor := node.ChildByFieldName("constructor"); ctor != nil && ctor.Type() == "identifier" {
			name := text(ctor, content)
			col.UsedClasses[name] = true
			argc := 0
			if args := node.ChildByFieldName("arguments"); args != nil {
				argc = callArgc(args)
			}
			col.AddCallSite(name, argc)
		}
	case "call_expression":
		t.recordCall(node, content, col)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		t.collectUsage(node.NamedChild(i), content, col)
	}
}

// bindReceiver tracks const x = new ClassName(...) so later x.method()
// calls attribute to ClassName.
func (t *TypeScriptCollector) bindReceiver(node *sitter.Node, content []byte, col *Collection) {
	name := node.ChildByFieldName("name")
	value := node.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "identifier" || value.Type() != "new_expression" {
		return
	}
	ctor := value.ChildByFieldName("constructor")
	if ctor != nil && ctor.Type() == "identifier" {
		col.VarToClass[text(name, content)] = text(ctor, content)
	}
}

func (t *TypeScriptCollector) recordCall(node *sitter.Node, content []byte, col *Collection) {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		return
	}
	argc := 0
	if args := node.ChildByFieldName("arguments"); args != nil {
		argc = callArgc(args)
	}

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

	case "member_expression":
		object := callee.ChildByFieldName("object")
		property := text(callee.ChildByFieldName("property"), content)
		if object == nil || property == "" || object.Type() != "identifier" {
			return
		}
		recv := text(object, content)
		key := recv
		if class, ok := col.VarToClass[recv]; ok {
			key = class
		}
		col.AddUsedMethod(key, property)
		col.AddCallSite(key+"."+property, argc)
	}
}
