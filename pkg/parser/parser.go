// Package parser implements the Candi parser: a family of cooperating
// routines, each specialised to one syntactic form, over an index range of
// the token vector.
package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/ayzg/cand-lang-legacy/pkg/ast"
	"github.com/ayzg/cand-lang-legacy/pkg/diagnostics"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

// Result is the outcome of one parsing routine. A pass (no match, nothing
// consumed) carries Valid=false and a node of kind none; an error carries
// Valid=false, a node of kind invalid and Err; success advances Pos one
// past the consumed tokens.
type Result struct {
	Node  *ast.Node
	Pos   int
	Valid bool
	Err   error
}

func pass(pos int) Result {
	return Result{Node: ast.New(ast.None, ""), Pos: pos, Valid: false}
}

func success(node *ast.Node, pos int) Result {
	return Result{Node: node, Pos: pos, Valid: true}
}

func failureAt(toks []lexer.Token, i, pos int, format string, args ...any) Result {
	lit, line, col := "<end>", 0, 0
	if i < len(toks) {
		lit, line, col = toks[i].Lit, toks[i].Line, toks[i].Col
	}
	return Result{
		Node:  ast.New(ast.Invalid, ""),
		Pos:   pos,
		Valid: false,
		Err:   diagnostics.Errorf(diagnostics.EParse, lit, line, col, format, args...),
	}
}

func failure(toks []lexer.Token, i int, err error) Result {
	return Result{Node: ast.New(ast.Invalid, ""), Pos: i, Valid: false, Err: err}
}

// Warnf is the sink for parser warnings (empty statements). The driver may
// replace it; the default writes to stderr.
var Warnf = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// SetWarnOutput redirects parser warnings to w.
func SetWarnOutput(w io.Writer) {
	Warnf = func(format string, args ...any) {
		fmt.Fprintf(w, "warning: "+format+"\n", args...)
	}
}

func spanOf(toks []lexer.Token, begin, end int) ast.Span {
	sp := ast.Span{Begin: begin, End: end}
	if begin < len(toks) {
		sp.Line = toks[begin].Line
		sp.Col = toks[begin].Col
	}
	return sp
}

func kindAt(toks []lexer.Token, i, end int) lexer.Kind {
	if i >= end || i >= len(toks) {
		return lexer.TokEOF
	}
	return toks[i].Kind
}

// --- Literal parsers -------------------------------------------------------

// ParseLiteral produces the leaf node for a single literal token.
func ParseLiteral(toks []lexer.Token, begin, end int) Result {
	kind, ok := literalKinds[kindAt(toks, begin, end)]
	if !ok {
		return failureAt(toks, begin, begin, "token is not a literal")
	}
	return success(leaf(toks, begin, kind), begin+1)
}

// --- Candi special objects -------------------------------------------------

var sigilKinds = map[lexer.Kind]ast.Kind{
	lexer.TokAType:     ast.AType,
	lexer.TokAValue:    ast.AValue,
	lexer.TokAIdentity: ast.AIdentity,
	lexer.TokAInt:      ast.AInt,
	lexer.TokAUint:     ast.AUint,
	lexer.TokAReal:     ast.AReal,
	lexer.TokAOctet:    ast.AOctet,
	lexer.TokABit:      ast.ABit,
	lexer.TokAPointer:  ast.APointer,
	lexer.TokAArray:    ast.AArray,
	lexer.TokAStr:      ast.AStr,
}

// ParseCandiSpecialObject parses a type sigil with its optional bracketed
// constraint.
func ParseCandiSpecialObject(toks []lexer.Token, begin, end int) Result {
	switch kindAt(toks, begin, end) {
	case lexer.TokAInt:
		return parseCsoIntRange(toks, begin, end, true)
	case lexer.TokAUint:
		return parseCsoIntRange(toks, begin, end, false)
	case lexer.TokAPointer:
		return parseCsoPointer(toks, begin, end)
	case lexer.TokAArray:
		return parseCsoArray(toks, begin, end)
	case lexer.TokAType, lexer.TokAValue, lexer.TokAIdentity,
		lexer.TokAReal, lexer.TokAOctet, lexer.TokABit, lexer.TokAStr:
		return success(leaf(toks, begin, sigilKinds[toks[begin].Kind]), begin+1)
	}
	return failureAt(toks, begin, begin, "token is not a Candi special object")
}

// parseCsoIntRange handles &int and &uint with an optional [n...m] range
// constraint; the signed form permits a unary minus on either bound.
func parseCsoIntRange(toks []lexer.Token, begin, end int, signed bool) Result {
	node := leaf(toks, begin, sigilKinds[toks[begin].Kind])
	if kindAt(toks, begin+1, end) != lexer.TokOpenFrame {
		return success(node, begin+1)
	}

	scope := FindFrameScope(toks, begin+1, end)
	if !scope.Valid {
		return failureAt(toks, begin+1, begin, "mismatched '[' in type constraint")
	}

	i := scope.ContainedBegin()
	bound := func() (*ast.Node, bool) {
		if signed && kindAt(toks, i, end) == lexer.TokMinus {
			minus := leaf(toks, i, ast.Negative)
			if kindAt(toks, i+1, end) != lexer.TokNumberLit {
				return nil, false
			}
			minus.PushBack(leaf(toks, i+1, ast.NumberLiteral))
			i += 2
			return minus, true
		}
		if kindAt(toks, i, end) != lexer.TokNumberLit {
			return nil, false
		}
		n := leaf(toks, i, ast.NumberLiteral)
		i++
		return n, true
	}

	lo, ok := bound()
	if !ok {
		return failureAt(toks, i, begin, "expected number literal in range constraint")
	}
	node.PushBack(lo)

	if kindAt(toks, i, end) != lexer.TokEllipsis {
		return failureAt(toks, i, begin, "expected '...' in range constraint")
	}
	i++

	hi, ok := bound()
	if !ok {
		return failureAt(toks, i, begin, "expected number literal in range constraint")
	}
	node.PushBack(hi)

	if i != scope.ContainedEnd() {
		return failureAt(toks, i, begin, "unexpected token in range constraint")
	}
	node.Span.End = scope.End
	return success(node, scope.End)
}

// parseCsoPointer handles &pointer[T] where T is an alnumus or a nested
// special object.
func parseCsoPointer(toks []lexer.Token, begin, end int) Result {
	node := leaf(toks, begin, ast.APointer)
	if kindAt(toks, begin+1, end) != lexer.TokOpenFrame {
		return failureAt(toks, begin, begin, "&pointer must be constrained to a type")
	}
	scope := FindFrameScope(toks, begin+1, end)
	if !scope.Valid || scope.IsEmpty() {
		return failureAt(toks, begin+1, begin, "&pointer constraint is malformed")
	}

	i := scope.ContainedBegin()
	if toks[i].Kind == lexer.TokAlnumus {
		node.PushBack(leaf(toks, i, ast.Alnumus))
		i++
	} else {
		inner := ParseCandiSpecialObject(toks, i, scope.ContainedEnd())
		if !inner.Valid {
			return failure(toks, begin, inner.Err)
		}
		node.PushBack(inner.Node)
		i = inner.Pos
	}
	if i != scope.ContainedEnd() {
		return failureAt(toks, i, begin, "unexpected token in &pointer constraint")
	}
	node.Span.End = scope.End
	return success(node, scope.End)
}

// parseCsoArray handles &array[T, n] with a mandatory size constraint.
func parseCsoArray(toks []lexer.Token, begin, end int) Result {
	node := leaf(toks, begin, ast.AArray)
	if kindAt(toks, begin+1, end) != lexer.TokOpenFrame {
		return failureAt(toks, begin, begin, "&array must be constrained to a type")
	}
	scope := FindFrameScope(toks, begin+1, end)
	if !scope.Valid || scope.IsEmpty() {
		return failureAt(toks, begin+1, begin, "&array constraint is malformed")
	}

	i := scope.ContainedBegin()
	if toks[i].Kind == lexer.TokAlnumus {
		node.PushBack(leaf(toks, i, ast.Alnumus))
		i++
	} else {
		inner := ParseCandiSpecialObject(toks, i, scope.ContainedEnd())
		if !inner.Valid {
			return failure(toks, begin, inner.Err)
		}
		node.PushBack(inner.Node)
		i = inner.Pos
	}

	if kindAt(toks, i, end) != lexer.TokComma ||
		kindAt(toks, i+1, end) != lexer.TokNumberLit {
		return failureAt(toks, i, begin, "&array must carry a size constraint")
	}
	node.PushBack(leaf(toks, i+1, ast.NumberLiteral))
	i += 2

	if i != scope.ContainedEnd() {
		return failureAt(toks, i, begin, "unexpected token in &array constraint")
	}
	node.Span.End = scope.End
	return success(node, scope.End)
}

// parseTypeConstraints builds a type-constraints node from a [ ] frame. The
// children are the comma-separated constraint entries: alnumus names or
// special objects.
func parseTypeConstraints(toks []lexer.Token, frame ScopeResult) Result {
	node := ast.NewAt(ast.TypeConstraints, "[]", spanOf(toks, frame.Begin, frame.End))
	if frame.IsEmpty() {
		return success(node, frame.End)
	}
	ranges, _ := FindSeparatedListScopes(toks, frame.Begin, frame.End, lexer.TokComma)
	for _, r := range ranges {
		if r.End <= r.Begin {
			return failureAt(toks, r.Begin, frame.Begin, "empty type constraint entry")
		}
		if toks[r.Begin].Kind == lexer.TokAlnumus && r.End == r.Begin+1 {
			node.PushBack(leaf(toks, r.Begin, ast.Alnumus))
			continue
		}
		cso := ParseCandiSpecialObject(toks, r.Begin, r.End)
		if !cso.Valid {
			return failure(toks, frame.Begin, cso.Err)
		}
		if cso.Pos != r.End {
			return failureAt(toks, cso.Pos, frame.Begin, "unexpected token in type constraint")
		}
		node.PushBack(cso.Node)
	}
	return success(node, frame.End)
}

// --- Value expressions -----------------------------------------------------

// ParseValueExpression delimits an identifier-led value statement up to its
// ';' and builds the expression tree for it.
func ParseValueExpression(toks []lexer.Token, begin, end int) Result {
	scope := FindOpenStatement(toks, toks[begin].Kind, lexer.TokEos, begin, end)
	if !scope.Valid {
		return failureAt(toks, begin, begin, "value statement is missing its ';'")
	}
	node, err := BuildStatement(toks, scope.Begin, scope.ContainedEnd(), nil)
	if err != nil {
		return failure(toks, begin, err)
	}
	return success(node, scope.End)
}

// --- Directive statements --------------------------------------------------

// ParseDirectiveType parses `type Name = <alnumus | CSO> ;`.
func ParseDirectiveType(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokType {
		return pass(begin)
	}
	if kindAt(toks, begin+1, end) != lexer.TokAlnumus {
		return failureAt(toks, begin+1, begin, "type directive must name an alnumus")
	}
	if kindAt(toks, begin+2, end) != lexer.TokSimpleAssign {
		return failureAt(toks, begin+2, begin, "type directive must assign with '='")
	}

	var typeExpr *ast.Node
	i := begin + 3
	if kindAt(toks, i, end) == lexer.TokAlnumus {
		typeExpr = leaf(toks, i, ast.Alnumus)
		i++
	} else {
		cso := ParseCandiSpecialObject(toks, i, end)
		if !cso.Valid {
			return failureAt(toks, i, begin, "type directive needs a type expression")
		}
		typeExpr = cso.Node
		i = cso.Pos
	}

	if kindAt(toks, i, end) != lexer.TokEos {
		return failureAt(toks, i, begin, "type directive must end with ';'")
	}

	node := ast.NewAt(ast.TypeDefinition, toks[begin].Lit, spanOf(toks, begin, i))
	node.PushBack(leaf(toks, begin+1, ast.Alnumus))
	node.PushBack(leaf(toks, begin+2, ast.SimpleAssignment))
	node.PushBack(typeExpr)
	return success(node, i+1)
}

// ParseDirectiveVar parses the four variable declaration forms.
func ParseDirectiveVar(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokVar {
		return pass(begin)
	}

	switch kindAt(toks, begin+1, end) {
	case lexer.TokAlnumus:
		name := leaf(toks, begin+1, ast.Alnumus)
		switch kindAt(toks, begin+2, end) {
		case lexer.TokEos:
			node := ast.NewAt(ast.AnonVariableDefinition, toks[begin].Lit, spanOf(toks, begin, begin+3))
			node.PushBack(name)
			return success(node, begin+3)
		case lexer.TokSimpleAssign:
			scope := FindStatement(toks, lexer.TokVar, lexer.TokEos, begin, end)
			if !scope.Valid {
				return failureAt(toks, begin, begin, "var statement is missing its ';'")
			}
			expr, err := BuildStatement(toks, begin+3, scope.ContainedEnd(), nil)
			if err != nil {
				return failure(toks, begin, err)
			}
			node := ast.NewAt(ast.AnonVariableDefinitionAssignment, toks[begin].Lit, spanOf(toks, begin, scope.ContainedEnd()))
			node.PushBack(name)
			node.PushBack(expr)
			return success(node, scope.End)
		}
		return failureAt(toks, begin+2, begin, "var statement must assign or end with ';'")

	case lexer.TokOpenFrame:
		return ParseConstrainedVariable(toks, begin, begin+1, end)
	}

	return failureAt(toks, begin+1, begin, "var directive was not followed by a name or type constraint")
}

// ParseConstrainedVariable parses `[<constraints>] name ;` and
// `[<constraints>] name = <expr> ;` with the frame opening at frameAt. head
// marks the statement's first token (the var keyword, or the frame itself
// for the keyword-less form accepted inside blocks).
func ParseConstrainedVariable(toks []lexer.Token, head, frameAt, end int) Result {
	frame := FindFrameScope(toks, frameAt, end)
	if !frame.Valid {
		return failureAt(toks, frameAt, head, "mismatched '[' in var type constraint")
	}
	constraints := parseTypeConstraints(toks, frame)
	if !constraints.Valid {
		return failure(toks, head, constraints.Err)
	}
	if kindAt(toks, frame.End, end) != lexer.TokAlnumus {
		return failureAt(toks, frame.End, head, "constrained var must name an alnumus")
	}
	name := leaf(toks, frame.End, ast.Alnumus)

	switch kindAt(toks, frame.End+1, end) {
	case lexer.TokEos:
		node := ast.NewAt(ast.ConstrainedVariableDefinition, toks[head].Lit, spanOf(toks, head, frame.End+2))
		node.PushBack(constraints.Node)
		node.PushBack(name)
		return success(node, frame.End+2)
	case lexer.TokSimpleAssign:
		scope := FindStatement(toks, toks[head].Kind, lexer.TokEos, head, end)
		if !scope.Valid {
			return failureAt(toks, head, head, "var statement is missing its ';'")
		}
		expr, err := BuildStatement(toks, frame.End+2, scope.ContainedEnd(), nil)
		if err != nil {
			return failure(toks, head, err)
		}
		node := ast.NewAt(ast.ConstrainedVariableDefinition, toks[head].Lit, spanOf(toks, head, scope.ContainedEnd()))
		node.PushBack(constraints.Node)
		node.PushBack(name)
		node.PushBack(leaf(toks, frame.End+1, ast.SimpleAssignment))
		node.PushBack(expr)
		return success(node, scope.End)
	}
	return failureAt(toks, frame.End+1, head, "constrained var must assign or end with ';'")
}

// ParseDirectiveFunc parses the four function definition forms.
func ParseDirectiveFunc(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokFunc {
		return pass(begin)
	}

	i := begin + 1
	var constraints *ast.Node
	if kindAt(toks, i, end) == lexer.TokOpenFrame {
		frame := FindFrameScope(toks, i, end)
		if !frame.Valid {
			return failureAt(toks, i, begin, "mismatched '[' in func type constraint")
		}
		cres := parseTypeConstraints(toks, frame)
		if !cres.Valid {
			return failure(toks, begin, cres.Err)
		}
		constraints = cres.Node
		i = frame.End
	}

	if kindAt(toks, i, end) != lexer.TokAlnumus {
		return failureAt(toks, i, begin, "func directive must name an alnumus")
	}
	name := leaf(toks, i, ast.Alnumus)
	i++

	var args *ast.Node
	if kindAt(toks, i, end) == lexer.TokOpenScope {
		scope := FindParenScope(toks, i, end)
		if !scope.Valid {
			return failureAt(toks, i, begin, "mismatched '(' in func arguments")
		}
		a, err := parseArgumentsScope(toks, scope)
		if err != nil {
			return failure(toks, begin, err)
		}
		args = a
		i = scope.End
	}

	if kindAt(toks, i, end) != lexer.TokOpenList {
		return failureAt(toks, i, begin, "func definition needs a '{' body")
	}
	body := FindListScope(toks, i, end)
	if !body.Valid {
		return failureAt(toks, i, begin, "mismatched '{' in func body")
	}
	block := ParseFunctionalBlock(toks, body.ContainedBegin(), body.ContainedEnd())
	if !block.Valid {
		return failure(toks, begin, block.Err)
	}
	if kindAt(toks, body.End, end) != lexer.TokEos {
		return failureAt(toks, body.End, begin,
			"expected ';' after functional block in function definition '%s'", name.Lit)
	}

	kind := ast.ShorthandVoidMethodDefinition
	switch {
	case constraints != nil && args != nil:
		kind = ast.ConstrainedMethodDefinition
	case constraints != nil:
		kind = ast.ShorthandConstrainedVoidMethodDefinition
	case args != nil:
		kind = ast.MethodDefinition
	}

	node := ast.NewAt(kind, toks[begin].Lit, spanOf(toks, begin, body.End))
	if constraints != nil {
		node.PushBack(constraints)
	}
	node.PushBack(name)
	if args != nil {
		node.PushBack(args)
	}
	node.PushBack(block.Node)
	return success(node, body.End+1)
}

// ParseDirectiveClass parses `class Name { <pragmatic-block> } ;`.
func ParseDirectiveClass(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokClass {
		return pass(begin)
	}
	if kindAt(toks, begin+1, end) != lexer.TokAlnumus {
		return failureAt(toks, begin+1, begin, "class directive must name an alnumus")
	}
	if kindAt(toks, begin+2, end) != lexer.TokOpenList {
		return failureAt(toks, begin+2, begin, "class definition needs a '{' body")
	}
	body := FindListScope(toks, begin+2, end)
	if !body.Valid {
		return failureAt(toks, begin+2, begin, "mismatched '{' in class body")
	}
	block := ParsePragmaticBlock(toks, body.ContainedBegin(), body.ContainedEnd())
	if !block.Valid {
		return failure(toks, begin, block.Err)
	}
	if kindAt(toks, body.End, end) != lexer.TokEos {
		return failureAt(toks, body.End, begin, "class definition must end with ';'")
	}

	node := ast.NewAt(ast.ClassDefinition, toks[begin].Lit, spanOf(toks, begin, body.End))
	node.PushBack(leaf(toks, begin+1, ast.Alnumus))
	node.PushBack(block.Node)
	return success(node, body.End+1)
}

// ParseDirectiveReturn parses `return <expr> ;`.
func ParseDirectiveReturn(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokReturn {
		return pass(begin)
	}
	scope := FindStatement(toks, lexer.TokReturn, lexer.TokEos, begin, end)
	if !scope.Valid {
		return failureAt(toks, begin, begin, "return statement is missing its ';'")
	}
	node := ast.NewAt(ast.Return, toks[begin].Lit, spanOf(toks, begin, scope.ContainedEnd()))
	expr := node.PushBack(ast.NewAt(ast.Expression, "", spanOf(toks, scope.ContainedBegin(), scope.ContainedEnd())))
	tree, err := BuildStatement(toks, scope.ContainedBegin(), scope.ContainedEnd(), nil)
	if err != nil {
		return failure(toks, begin, err)
	}
	expr.PushBack(tree)
	return success(node, scope.End)
}

// parseCondBlock reads a `(cond) { block }` clause pair starting at i.
func parseCondBlock(toks []lexer.Token, i, end int) (*ast.Node, *ast.Node, int, error) {
	if kindAt(toks, i, end) != lexer.TokOpenScope {
		return nil, nil, 0, diagnostics.Errorf(diagnostics.EParse, toks[min(i, len(toks)-1)].Lit,
			toks[min(i, len(toks)-1)].Line, toks[min(i, len(toks)-1)].Col, "expected '(' condition")
	}
	cond := FindParenScope(toks, i, end)
	if !cond.Valid || cond.IsEmpty() {
		return nil, nil, 0, exprErr(toks, i, "malformed condition scope")
	}
	condExpr := ast.NewAt(ast.Expression, "", spanOf(toks, cond.ContainedBegin(), cond.ContainedEnd()))
	tree, err := BuildStatement(toks, cond.ContainedBegin(), cond.ContainedEnd(), nil)
	if err != nil {
		return nil, nil, 0, err
	}
	condExpr.PushBack(tree)

	if kindAt(toks, cond.End, end) != lexer.TokOpenList {
		return nil, nil, 0, exprErr(toks, cond.End, "expected '{' block after condition")
	}
	body := FindListScope(toks, cond.End, end)
	if !body.Valid {
		return nil, nil, 0, exprErr(toks, cond.End, "mismatched '{' block")
	}
	block := ParseFunctionalBlock(toks, body.ContainedBegin(), body.ContainedEnd())
	if !block.Valid {
		return nil, nil, 0, block.Err
	}
	return condExpr, block.Node, body.End, nil
}

// ParseDirectiveIf parses an if/elif/else chain terminated by a single ';'.
func ParseDirectiveIf(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokIf {
		return pass(begin)
	}
	cond, block, i, err := parseCondBlock(toks, begin+1, end)
	if err != nil {
		return failure(toks, begin, err)
	}
	node := ast.NewAt(ast.If, toks[begin].Lit, spanOf(toks, begin, i))
	node.PushBack(cond)
	node.PushBack(block)

	for kindAt(toks, i, end) == lexer.TokElif {
		elifHead := i
		econd, eblock, next, err := parseCondBlock(toks, i+1, end)
		if err != nil {
			return failure(toks, begin, err)
		}
		elif := ast.NewAt(ast.Elif, toks[elifHead].Lit, spanOf(toks, elifHead, next))
		elif.PushBack(econd)
		elif.PushBack(eblock)
		node.PushBack(elif)
		i = next
	}

	if kindAt(toks, i, end) == lexer.TokElse {
		head := i
		if kindAt(toks, i+1, end) != lexer.TokOpenList {
			return failureAt(toks, i+1, begin, "else needs a '{' block")
		}
		body := FindListScope(toks, i+1, end)
		if !body.Valid {
			return failureAt(toks, i+1, begin, "mismatched '{' in else block")
		}
		block := ParseFunctionalBlock(toks, body.ContainedBegin(), body.ContainedEnd())
		if !block.Valid {
			return failure(toks, begin, block.Err)
		}
		els := ast.NewAt(ast.Else, toks[head].Lit, spanOf(toks, head, body.End))
		els.PushBack(block.Node)
		node.PushBack(els)
		i = body.End
	}

	if kindAt(toks, i, end) != lexer.TokEos {
		return failureAt(toks, i, begin, "if statement must end with ';'")
	}
	node.Span.End = i
	return success(node, i+1)
}

// ParseDirectiveWhile parses `while (<cond>) { <block> } ;`.
func ParseDirectiveWhile(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokWhile {
		return pass(begin)
	}
	cond, block, i, err := parseCondBlock(toks, begin+1, end)
	if err != nil {
		return failure(toks, begin, err)
	}
	if kindAt(toks, i, end) != lexer.TokEos {
		return failureAt(toks, i, begin, "while statement must end with ';'")
	}
	node := ast.NewAt(ast.While, toks[begin].Lit, spanOf(toks, begin, i))
	node.PushBack(cond)
	node.PushBack(block)
	return success(node, i+1)
}

// ParseDirectiveFor parses `for (<init>; <cond>; <step>) { <block> } ;`.
// Each clause is a value expression; the init clause commonly carries an
// assignment.
func ParseDirectiveFor(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokFor {
		return pass(begin)
	}
	if kindAt(toks, begin+1, end) != lexer.TokOpenScope {
		return failureAt(toks, begin+1, begin, "for statement needs a '(' clause list")
	}
	head := FindParenScope(toks, begin+1, end)
	if !head.Valid {
		return failureAt(toks, begin+1, begin, "mismatched '(' in for clauses")
	}
	clauses, _ := FindSeparatedListScopes(toks, head.Begin, head.End, lexer.TokEos)
	if len(clauses) != 3 {
		return failureAt(toks, head.Begin, begin, "for statement needs exactly three ';'-separated clauses")
	}

	node := ast.NewAt(ast.For, toks[begin].Lit, spanOf(toks, begin, head.End))
	for _, c := range clauses {
		clause := ast.NewAt(ast.Expression, "", spanOf(toks, c.Begin, c.End))
		tree, err := BuildStatement(toks, c.Begin, c.End, nil)
		if err != nil {
			return failure(toks, begin, err)
		}
		clause.PushBack(tree)
		node.PushBack(clause)
	}

	if kindAt(toks, head.End, end) != lexer.TokOpenList {
		return failureAt(toks, head.End, begin, "for statement needs a '{' block")
	}
	body := FindListScope(toks, head.End, end)
	if !body.Valid {
		return failureAt(toks, head.End, begin, "mismatched '{' in for block")
	}
	block := ParseFunctionalBlock(toks, body.ContainedBegin(), body.ContainedEnd())
	if !block.Valid {
		return failure(toks, begin, block.Err)
	}
	node.PushBack(block.Node)

	if kindAt(toks, body.End, end) != lexer.TokEos {
		return failureAt(toks, body.End, begin, "for statement must end with ';'")
	}
	node.Span.End = body.End
	return success(node, body.End+1)
}

// ParseDirectiveOn parses `on (<expr>) { <block> } ;`. Clause-level arm
// syntax beyond the directive-scope-block shape is left to the language
// owner; the whole block runs when the scrutinee is truthy.
func ParseDirectiveOn(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokOn {
		return pass(begin)
	}
	cond, block, i, err := parseCondBlock(toks, begin+1, end)
	if err != nil {
		return failure(toks, begin, err)
	}
	if kindAt(toks, i, end) != lexer.TokEos {
		return failureAt(toks, i, begin, "on statement must end with ';'")
	}
	node := ast.NewAt(ast.On, toks[begin].Lit, spanOf(toks, begin, i))
	node.PushBack(cond)
	node.PushBack(block)
	return success(node, i+1)
}

// ParseDirectivePrint parses `print <expr> ;`.
func ParseDirectivePrint(toks []lexer.Token, begin, end int) Result {
	if kindAt(toks, begin, end) != lexer.TokPrint {
		return pass(begin)
	}
	scope := FindStatement(toks, lexer.TokPrint, lexer.TokEos, begin, end)
	if !scope.Valid {
		return failureAt(toks, begin, begin, "print statement is missing its ';'")
	}
	node := ast.NewAt(ast.Print, toks[begin].Lit, spanOf(toks, begin, scope.ContainedEnd()))
	expr := node.PushBack(ast.NewAt(ast.Expression, "", spanOf(toks, scope.ContainedBegin(), scope.ContainedEnd())))
	tree, err := BuildStatement(toks, scope.ContainedBegin(), scope.ContainedEnd(), nil)
	if err != nil {
		return failure(toks, begin, err)
	}
	expr.PushBack(tree)
	return success(node, scope.End)
}

// parseLeafStatement handles `break ;` and `continue ;`.
func parseLeafStatement(toks []lexer.Token, begin, end int, kind ast.Kind) Result {
	if kindAt(toks, begin+1, end) != lexer.TokEos {
		return failureAt(toks, begin+1, begin, "%s must be followed by ';'", toks[begin].Lit)
	}
	return success(leaf(toks, begin, kind), begin+2)
}

// --- Blocks ----------------------------------------------------------------

// statement categories a block may admit
const (
	allowPragmatic = 1 << iota
	allowFunctional
)

func parseBlock(toks []lexer.Token, begin, end int, kind ast.Kind, allow int) Result {
	node := ast.NewAt(kind, "", spanOf(toks, begin, end))
	i := begin

	for i < end && toks[i].Kind != lexer.TokEOF {
		if toks[i].Kind == lexer.TokEos {
			Warnf("empty statement at line %d col %d", toks[i].Line, toks[i].Col)
			i++
			continue
		}

		r := pass(i)
		matched := true
		switch toks[i].Kind {
		// shared between the block families
		case lexer.TokVar:
			r = ParseDirectiveVar(toks, i, end)
		case lexer.TokOpenFrame:
			r = ParseConstrainedVariable(toks, i, i, end)
		case lexer.TokAlnumus:
			r = ParseValueExpression(toks, i, end)

		// declarations
		case lexer.TokType:
			r = ParseDirectiveType(toks, i, end)
			matched = allow&allowPragmatic != 0
		case lexer.TokFunc:
			r = ParseDirectiveFunc(toks, i, end)
			matched = allow&allowPragmatic != 0
		case lexer.TokClass:
			r = ParseDirectiveClass(toks, i, end)
			matched = allow&allowPragmatic != 0

		// executable statements
		case lexer.TokReturn:
			r = ParseDirectiveReturn(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokIf:
			r = ParseDirectiveIf(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokWhile:
			r = ParseDirectiveWhile(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokFor:
			r = ParseDirectiveFor(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokOn:
			r = ParseDirectiveOn(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokPrint:
			r = ParseDirectivePrint(toks, i, end)
			matched = allow&allowFunctional != 0
		case lexer.TokBreak:
			r = parseLeafStatement(toks, i, end, ast.Break)
			matched = allow&allowFunctional != 0
		case lexer.TokContinue:
			r = parseLeafStatement(toks, i, end, ast.Continue)
			matched = allow&allowFunctional != 0

		default:
			matched = false
		}
		if !matched {
			return failureAt(toks, i, i, "invalid statement in %s", kind)
		}
		if !r.Valid {
			return failure(toks, i, r.Err)
		}
		node.PushBack(r.Node)
		i = r.Pos
	}

	return success(node, i)
}

// ParsePragmaticBlock parses a sequence of declarations: types, vars,
// funcs, classes and identifier-led statements.
func ParsePragmaticBlock(toks []lexer.Token, begin, end int) Result {
	return parseBlock(toks, begin, end, ast.PragmaticBlock, allowPragmatic)
}

// ParseFunctionalBlock parses a sequence of executable statements.
func ParseFunctionalBlock(toks []lexer.Token, begin, end int) Result {
	return parseBlock(toks, begin, end, ast.FunctionalBlock, allowFunctional)
}

// --- Program ---------------------------------------------------------------

// ParseProgram parses a whole token stream (terminated by EOF). The top
// level admits declarations and executable statements alike, in one
// pragmatic block.
func ParseProgram(toks []lexer.Token) (*ast.Node, error) {
	r := parseBlock(toks, 0, len(toks), ast.PragmaticBlock, allowPragmatic|allowFunctional)
	if !r.Valid {
		return nil, r.Err
	}
	return r.Node, nil
}

// Parse tokenizes and parses source in one step.
func Parse(source string) (*ast.Node, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return ParseProgram(toks)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
