// Package formatter serialises Candi ASTs and token streams as indented
// text for inspection and golden tests.
package formatter

import (
	"fmt"
	"strings"

	"github.com/ayzg/cand-lang-legacy/pkg/ast"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

const indent = "  "

// FormatTree renders one node per line, indented by depth, with the kind
// tag in brackets followed by the node's literal span.
func FormatTree(n *ast.Node) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n *ast.Node, depth int) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(b, "[%s] %s\n", n.Kind, n.Lit)
	for _, c := range n.Children {
		writeNode(b, c, depth+1)
	}
}

// FormatTokens renders a token stream one token per line with positions.
func FormatTokens(toks []lexer.Token) string {
	var b strings.Builder
	for _, t := range toks {
		fmt.Fprintf(&b, "%d:%d\t%q\n", t.Line, t.Col, t.Lit)
	}
	return b.String()
}
