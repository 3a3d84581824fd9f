// Package pysource is the source transformer.
// It parses Python source with tree-sitter to locate function and class
// spans precisely, then rewrites their bodies by slicing and re-splicing
// line ranges rather than regenerating the AST — so comments and
// surrounding whitespace the parser doesn't model survive untouched.
package pysource

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// FuncSpan locates a function or method definition and the internal spans
// the body-rewriting operations need: where the signature ends, where the
// docstring (if any) ends, and the column the body is indented to.
type FuncSpan struct {
	Target status.Target

	// SignatureEndLine is the 1-indexed line the "def ...:" header ends on
	// (multi-line signatures included).
	SignatureEndLine int

	// BodyIndentCol is the column (0-indexed) the first body statement
	// starts at; replacement text is re-indented to this column.
	BodyIndentCol int

	// DocstringEndLine is the 1-indexed line the function's docstring
	// literal ends on, or 0 if the function has none.
	DocstringEndLine int

	// ParentClass is the enclosing class's name, or "" for a free function.
	ParentClass string
}

// ClassSpan locates a class definition, the decorator-inclusive span
// needed for replace_class, and its methods in source order.
type ClassSpan struct {
	Target    status.Target
	BodyStart int // 1-indexed line the class body (first member) starts on
	IndentCol int // column the class (or its leading decorator) starts at
	Methods   []FuncSpan
}

// Parser wraps a tree-sitter parser configured for Python.
type Parser struct {
	ts *sitter.Parser
}

// New creates a Parser. Parsers are not safe for concurrent use across
// goroutines; callers create one per worker.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{ts: p}
}

// ParseFunctions returns every top-level and method function definition in
// the file, in source order.
func (p *Parser) ParseFunctions(relPath string, content []byte) ([]FuncSpan, error) {
	root, err := p.parse(content)
	if err != nil {
		return nil, err
	}
	var out []FuncSpan
	walk(root, relPath, content, "", func(fs FuncSpan) { out = append(out, fs) }, func(ClassSpan) {})
	return out, nil
}

// ParseClasses returns every class definition in the file, in source
// order, each carrying its own methods in source order.
func (p *Parser) ParseClasses(relPath string, content []byte) ([]ClassSpan, error) {
	root, err := p.parse(content)
	if err != nil {
		return nil, err
	}
	var out []ClassSpan
	walk(root, relPath, content, "", func(FuncSpan) {}, func(cs ClassSpan) { out = append(out, cs) })
	return out, nil
}

// FindFunction returns the FuncSpan matching the given target's node-ID.
func (p *Parser) FindFunction(relPath string, content []byte, nodeID string) (FuncSpan, error) {
	fns, err := p.ParseFunctions(relPath, content)
	if err != nil {
		return FuncSpan{}, err
	}
	for _, fn := range fns {
		if fn.Target.NodeID() == nodeID {
			return fn, nil
		}
	}
	return FuncSpan{}, fmt.Errorf("pysource: function %q not found in %s", nodeID, relPath)
}

// FindClass returns the ClassSpan matching the given target's node-ID.
func (p *Parser) FindClass(relPath string, content []byte, nodeID string) (ClassSpan, error) {
	classes, err := p.ParseClasses(relPath, content)
	if err != nil {
		return ClassSpan{}, err
	}
	for _, cls := range classes {
		if cls.Target.NodeID() == nodeID {
			return cls, nil
		}
	}
	return ClassSpan{}, fmt.Errorf("pysource: class %q not found in %s", nodeID, relPath)
}

func (p *Parser) parse(content []byte) (*sitter.Node, error) {
	tree, err := p.ts.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("pysource: parse failed: %w", err)
	}
	return tree.RootNode(), nil
}

// walk recursively descends the AST, emitting a FuncSpan for every
// function_definition and a ClassSpan for every class_definition,
// including ones reached through decorated_definition.
func walk(node *sitter.Node, relPath string, content []byte, parentClass string, onFunc func(FuncSpan), onClass func(ClassSpan)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			cs := parseClass(child, child, relPath, content)
			onClass(cs)
			for _, m := range cs.Methods {
				onFunc(m)
			}
			if body := child.ChildByFieldName("body"); body != nil {
				walk(body, relPath, content, cs.Target.Name, func(FuncSpan) {}, func(nested ClassSpan) { onClass(nested) })
			}

		case "function_definition":
			fs := parseFunc(child, child, relPath, content, parentClass)
			onFunc(fs)

		case "decorated_definition":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				switch inner.Type() {
				case "function_definition":
					fs := parseFunc(inner, child, relPath, content, parentClass)
					onFunc(fs)
				case "class_definition":
					cs := parseClass(inner, child, relPath, content)
					onClass(cs)
					for _, m := range cs.Methods {
						onFunc(m)
					}
					if body := inner.ChildByFieldName("body"); body != nil {
						walk(body, relPath, content, cs.Target.Name, func(FuncSpan) {}, func(nested ClassSpan) { onClass(nested) })
					}
				}
			}

		default:
			walk(child, relPath, content, parentClass, onFunc, onClass)
		}
	}
}

func parseFunc(node, spanNode *sitter.Node, relPath string, content []byte, parentClass string) FuncSpan {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = string(content[nameNode.StartByte():nameNode.EndByte()])
	}
	targetName := name
	if parentClass != "" {
		targetName = parentClass + "." + name
	}

	startLine := int(spanNode.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	sigEndLine := startLine

	fs := FuncSpan{
		Target: status.Target{
			RelPath:   relPath,
			Kind:      status.KindFunction,
			Name:      targetName,
			StartLine: startLine,
			EndLine:   endLine,
		},
		SignatureEndLine: sigEndLine,
		ParentClass:      parentClass,
	}

	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return fs
	}

	first := body.NamedChild(0)
	fs.SignatureEndLine = int(first.StartPoint().Row) // line before first body statement (1-indexed, exclusive)
	fs.BodyIndentCol = int(first.StartPoint().Column)

	if first.Type() == "expression_statement" && first.NamedChildCount() > 0 && first.NamedChild(0).Type() == "string" {
		fs.DocstringEndLine = int(first.EndPoint().Row) + 1
	}

	return fs
}

func parseClass(node, spanNode *sitter.Node, relPath string, content []byte) ClassSpan {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = string(content[nameNode.StartByte():nameNode.EndByte()])
	}

	startLine := int(spanNode.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1

	cs := ClassSpan{
		Target: status.Target{
			RelPath:   relPath,
			Kind:      status.KindClass,
			Name:      name,
			StartLine: startLine,
			EndLine:   endLine,
		},
		IndentCol: int(spanNode.StartPoint().Column),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cs
	}
	if body.NamedChildCount() > 0 {
		cs.BodyStart = int(body.NamedChild(0).StartPoint().Row) + 1
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "function_definition":
			cs.Methods = append(cs.Methods, parseFunc(member, member, relPath, content, name))
		case "decorated_definition":
			for j := 0; j < int(member.NamedChildCount()); j++ {
				inner := member.NamedChild(j)
				if inner.Type() == "function_definition" {
					cs.Methods = append(cs.Methods, parseFunc(inner, member, relPath, content, name))
				}
			}
		}
	}

	return cs
}

// IsTestPath reports whether a path segment or file name contains "test",
// the skip rule shared by every mutation strategy.
func IsTestPath(relPath string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if strings.Contains(strings.ToLower(seg), "test") {
			return true
		}
	}
	return false
}
