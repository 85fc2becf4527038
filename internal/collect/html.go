package collect

import (
	"context"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
)

// HTMLCollector extracts artifacts from the script regions of HTML
// documents. The outer document is parsed with the HTML grammar to locate
// script elements, and each script body is delegated to the JavaScript
// collector; the per-script results are merged into one collection so a
// function defined in one script block and called from another still
// resolves. Markup outside script elements declares nothing.
type HTMLCollector struct {
	scripts *TypeScriptCollector
}

// NewHTMLCollector creates an HTML collector.
func NewHTMLCollector() *HTMLCollector {
	return &HTMLCollector{scripts: NewTypeScriptCollector()}
}

func (h *HTMLCollector) Language() string { return "html" }

func (h *HTMLCollector) Supports(path string) bool {
	return hasExt(path, ".html", ".htm")
}

func (h *HTMLCollector) Collect(ctx context.Context, path string, mode Mode) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return h.CollectSource(ctx, path, content, mode)
}

// CollectSource collects from an in-memory HTML document.
func (h *HTMLCollector) CollectSource(ctx context.Context, path string, content []byte, mode Mode) (*Collection, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(html.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Language: "html", Err: err}
	}
	defer tree.Close()

	// The HTML grammar tolerates most malformed markup, so no HasError
	// rejection here; a truly broken script body fails in the delegate.

	col := NewCollection()
	for _, region := range scriptRegions(tree.RootNode()) {
		body := content[region.start:region.end]
		inner, err := h.scripts.collectWithLanguage(ctx, path, body, mode, javascript.GetLanguage(), "javascript")
		if err != nil {
			return nil, err
		}
		col.Merge(inner)
	}
	return col, nil
}

type byteRange struct {
	start, end uint32
}

// scriptRegions finds the raw_text spans of every script element in
// document order.
func scriptRegions(node *sitter.Node) []byteRange {
	var regions []byteRange
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "script_element" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "raw_text" {
					regions = append(regions, byteRange{child.StartByte(), child.EndByte()})
				}
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return regions
}
