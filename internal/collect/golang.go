package collect

import (
	"context"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoCollector extracts declared and used artifacts from Go source using
// tree-sitter. Struct and interface types map to the class inventory;
// methods are keyed by their receiver's base type.
type GoCollector struct{}

// NewGoCollector creates a Go collector.
func NewGoCollector() *GoCollector { return &GoCollector{} }

func (g *GoCollector) Language() string { return "go" }

func (g *GoCollector) Supports(path string) bool {
	return hasExt(path, ".go")
}

func (g *GoCollector) Collect(ctx context.Context, path string, mode Mode) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return g.CollectSource(ctx, path, content, mode)
}

// CollectSource collects from in-memory Go source.
func (g *GoCollector) CollectSource(ctx context.Context, path string, content []byte, mode Mode) (*Collection, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Language: "go", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Language: "go", Err: errSyntax}
	}

	col := NewCollection()
	if mode.Has(ModeDeclaration) {
		for i := 0; i < int(root.NamedChildCount()); i++ {
			g.declareNode(root.NamedChild(i), content, col)
		}
	}
	if mode.Has(ModeUsage) {
		g.collectUsage(root, content, col)
	}
	return col, nil
}

func (g *GoCollector) declareNode(node *sitter.Node, content []byte, col *Collection) {
	switch node.Type() {
	case "function_declaration":
		name := text(node.ChildByFieldName("name"), content)
		if name != "" {
			col.Functions[name] = g.params(node.ChildByFieldName("parameters"), content)
		}

	case "method_declaration":
		recv := g.receiverType(node.ChildByFieldName("receiver"), content)
		name := text(node.ChildByFieldName("name"), content)
		if recv != "" && name != "" {
			col.AddMethod(recv, name, g.params(node.ChildByFieldName("parameters"), content))
		}

	case "type_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			spec := node.NamedChild(i)
			if spec.Type() == "type_spec" {
				g.declareType(spec, content, col)
			}
		}

	case "var_declaration", "const_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			spec := node.NamedChild(i)
			if spec.Type() != "var_spec" && spec.Type() != "const_spec" {
				continue
			}
			for j := 0; j < int(spec.NamedChildCount()); j++ {
				child := spec.NamedChild(j)
				if child.Type() == "identifier" {
					col.AddAttribute("", text(child, content))
				}
			}
		}
	}
}

// declareType records struct, interface, and alias type specs. Struct and
// interface names land in the class inventory; embedded types become bases;
// struct fields become class attributes.
func (g *GoCollector) declareType(spec *sitter.Node, content []byte, col *Collection) {
	name := text(spec.ChildByFieldName("name"), content)
	typ := spec.ChildByFieldName("type")
	if name == "" || typ == nil {
		return
	}
	col.Classes[name] = true

	switch typ.Type() {
	case "struct_type":
		g.declareStructFields(name, typ, content, col)
	case "interface_type":
		g.declareInterface(name, typ, content, col)
	}
}

func (g *GoCollector) declareStructFields(class string, typ *sitter.Node, content []byte, col *Collection) {
	fields := namedChildOfType(typ, "field_declaration_list")
	if fields == nil {
		return
	}
	for i := 0; i < int(fields.NamedChildCount()); i++ {
		field := fields.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		named := false
		for j := 0; j < int(field.NamedChildCount()); j++ {
			child := field.NamedChild(j)
			if child.Type() == "field_identifier" {
				col.AddAttribute(class, text(child, content))
				named = true
			}
		}
		if !named {
			// Anonymous field: embedding, the Go spelling of a base type.
			if t := field.ChildByFieldName("type"); t != nil {
				col.ClassBases[class] = append(col.ClassBases[class], baseTypeName(text(t, content)))
			}
		}
	}
}

func (g *GoCollector) declareInterface(class string, typ *sitter.Node, content []byte, col *Collection) {
	for i := 0; i < int(typ.NamedChildCount()); i++ {
		child := typ.NamedChild(i)
		switch child.Type() {
		case "method_elem", "method_spec":
			name := text(child.ChildByFieldName("name"), content)
			if name != "" {
				col.AddMethod(class, name, g.params(child.ChildByFieldName("parameters"), content))
			}
		case "type_identifier", "type_elem":
			col.ClassBases[class] = append(col.ClassBases[class], baseTypeName(text(child, content)))
		}
	}
}

// receiverType returns the base type name of a method receiver, with any
// pointer and type-parameter decoration stripped.
func (g *GoCollector) receiverType(recv *sitter.Node, content []byte) string {
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		decl := recv.NamedChild(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		if t := decl.ChildByFieldName("type"); t != nil {
			return baseTypeName(text(t, content))
		}
	}
	return ""
}

func (g *GoCollector) params(node *sitter.Node, content []byte) []Param {
	if node == nil {
		return nil
	}
	var out []Param
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		switch decl.Type() {
		case "parameter_declaration":
			typ := text(decl.ChildByFieldName("type"), content)
			named := false
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				child := decl.NamedChild(j)
				if child.Type() == "identifier" {
					out = append(out, Param{Name: text(child, content), Type: typ})
					named = true
				}
			}
			if !named && typ != "" {
				// Unnamed parameter (interface method spec).
				out = append(out, Param{Name: "_", Type: typ})
			}
		case "variadic_parameter_declaration":
			// Variadics absorb any surplus arguments.
			name := text(decl.ChildByFieldName("name"), content)
			if name == "" {
				name = "_"
			}
			out = append(out, Param{
				Name:       name,
				Type:       text(decl.ChildByFieldName("type"), content),
				HasDefault: true,
			})
		}
	}
	return out
}

func (g *GoCollector) collectUsage(node *sitter.Node, content []byte, col *Collection) {
	switch node.Type() {
	case "short_var_declaration":
		g.bindReceiver(node, content, col)
	case "composite_literal":
		if t := node.ChildByFieldName("type"); t != nil && t.Type() == "type_identifier" {
			col.UsedClasses[text(t, content)] = true
		}
	case "call_expression":
		g.recordCall(node, content, col)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		g.collectUsage(node.NamedChild(i), content, col)
	}
}

// bindReceiver tracks x := ClassName{...} and x := NewClassName(...) so
// later x.Method() calls attribute to ClassName.
func (g *GoCollector) bindReceiver(node *sitter.Node, content []byte, col *Collection) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.NamedChildCount() != 1 || right.NamedChildCount() != 1 {
		return
	}
	target := left.NamedChild(0)
	value := right.NamedChild(0)
	if target.Type() != "identifier" {
		return
	}

	var class string
	switch value.Type() {
	case "composite_literal":
		if t := value.ChildByFieldName("type"); t != nil && t.Type() == "type_identifier" {
			class = text(t, content)
		}
	case "unary_expression":
		// &ClassName{...}
		if operand := namedChildOfType(value, "composite_literal"); operand != nil {
			if t := operand.ChildByFieldName("type"); t != nil && t.Type() == "type_identifier" {
				class = text(t, content)
			}
		}
	case "call_expression":
		callee := value.ChildByFieldName("function")
		if callee != nil && callee.Type() == "identifier" {
			name := text(callee, content)
			if rest, ok := strings.CutPrefix(name, "New"); ok && rest != "" {
				class = rest
			}
		}
	}
	if class != "" {
		col.VarToClass[text(target, content)] = class
	}
}

func (g *GoCollector) recordCall(node *sitter.Node, content []byte, col *Collection) {
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
		col.UsedFunctions[name] = true
		col.AddCallSite(name, argc)

	case "selector_expression":
		operand := callee.ChildByFieldName("operand")
		field := text(callee.ChildByFieldName("field"), content)
		if operand == nil || field == "" || operand.Type() != "identifier" {
			return
		}
		recv := text(operand, content)
		key := recv
		if class, ok := col.VarToClass[recv]; ok {
			key = class
		}
		col.AddUsedMethod(key, field)
		col.AddCallSite(key+"."+field, argc)
	}
}

// baseTypeName strips pointer, generic, and package decoration from a type
// expression, leaving the bare type name.
func baseTypeName(expr string) string {
	expr = strings.TrimPrefix(strings.TrimSpace(expr), "*")
	if i := strings.IndexAny(expr, "["); i > 0 {
		expr = expr[:i]
	}
	if i := strings.LastIndex(expr, "."); i >= 0 {
		expr = expr[i+1:]
	}
	return expr
}

// namedChildOfType returns the first named child of the given kind.
func namedChildOfType(node *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == kind {
			return child
		}
	}
	return nil
}
