// Package jscheck parses JavaScript produced by the serializer with the
// tree-sitter JavaScript grammar. Validate reports syntax errors; Rebuild
// evaluates the small subset of the language the serializer emits and
// returns the value graph the program would build.
package jscheck

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("serialize-to-js.jscheck")

// maxErrors caps the errors collected from heavily malformed input.
const maxErrors = 50

// SyntaxError is one ERROR or MISSING node of a parse tree.
type SyntaxError struct {
	Line    int // 1-based
	Column  int // 0-based, in bytes
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// asExpression wraps src in parentheses so that a leading "{" is read as an
// object literal rather than a block. The newline keeps a trailing line
// comment from swallowing the closing parenthesis.
func asExpression(src string) []byte {
	return []byte("(" + src + "\n)")
}

// parse returns the tree for src. The caller closes it.
func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("jscheck: parse: %w", err)
	}
	return tree, nil
}

// Validate parses src as an expression and returns its syntax errors, at
// most maxErrors of them. A nil slice means src parsed cleanly.
func Validate(ctx context.Context, src string) ([]SyntaxError, error) {
	content := asExpression(src)
	tree, err := parse(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}
	var errs []SyntaxError
	collectSyntaxErrors(root, content, &errs, 0)
	log.Debugf("found %d syntax errors", len(errs))
	return errs, nil
}

func collectSyntaxErrors(node *sitter.Node, content []byte, errs *[]SyntaxError, depth int) {
	if depth > 1000 || len(*errs) >= maxErrors {
		return
	}
	if node.IsError() || node.IsMissing() {
		start, end := node.StartByte(), node.EndByte()
		if end > uint32(len(content)) {
			end = uint32(len(content))
		}
		msg := "syntax error"
		switch {
		case node.IsMissing():
			msg = "missing " + node.Type()
		case end > start && end-start < 100:
			msg = "unexpected " + truncate(string(content[start:end]), 50)
		}
		p := node.StartPoint()
		col := int(p.Column)
		if p.Row == 0 && col > 0 {
			col-- // opening parenthesis of asExpression
		}
		*errs = append(*errs, SyntaxError{
			Line:    int(p.Row) + 1,
			Column:  col,
			Message: msg,
		})
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), content, errs, depth+1)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
