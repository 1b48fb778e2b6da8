package parser

import (
	"github.com/ayzg/cand-lang-legacy/pkg/ast"
	"github.com/ayzg/cand-lang-legacy/pkg/diagnostics"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

// Operator precedence, lowest to highest. Member access and the call
// postfix share the highest level; the scope-resolution operator sits with
// member access.
const (
	precAssign = 1
	precLogic  = 2
	precEqual  = 3
	precRel    = 4
	precAdd    = 5
	precMul    = 6
	precUnary  = 7
	precMember = 8
)

var binaryPrec = map[lexer.Kind]int{
	lexer.TokSimpleAssign: precAssign,
	lexer.TokAddAssign:    precAssign,
	lexer.TokSubAssign:    precAssign,
	lexer.TokMulAssign:    precAssign,
	lexer.TokDivAssign:    precAssign,
	lexer.TokRemAssign:    precAssign,
	lexer.TokOr:           precLogic,
	lexer.TokAnd:          precLogic,
	lexer.TokEqEq:         precEqual,
	lexer.TokBangEq:       precEqual,
	lexer.TokLt:           precRel,
	lexer.TokLtEq:         precRel,
	lexer.TokGt:           precRel,
	lexer.TokGtEq:         precRel,
	lexer.TokPlus:         precAdd,
	lexer.TokMinus:        precAdd,
	lexer.TokStar:         precMul,
	lexer.TokSlash:        precMul,
	lexer.TokPercent:      precMul,
	lexer.TokPeriod:       precMember,
	lexer.TokScopeRes:     precMember,
}

var binaryKinds = map[lexer.Kind]ast.Kind{
	lexer.TokSimpleAssign: ast.SimpleAssignment,
	lexer.TokAddAssign:    ast.AdditionAssignment,
	lexer.TokSubAssign:    ast.SubtractionAssignment,
	lexer.TokMulAssign:    ast.MultiplicationAssignment,
	lexer.TokDivAssign:    ast.DivisionAssignment,
	lexer.TokRemAssign:    ast.RemainderAssignment,
	lexer.TokOr:           ast.LogicalOr,
	lexer.TokAnd:          ast.LogicalAnd,
	lexer.TokEqEq:         ast.Equal,
	lexer.TokBangEq:       ast.NotEqual,
	lexer.TokLt:           ast.Less,
	lexer.TokLtEq:         ast.LessEq,
	lexer.TokGt:           ast.Greater,
	lexer.TokGtEq:         ast.GreaterEq,
	lexer.TokPlus:         ast.Addition,
	lexer.TokMinus:        ast.Subtraction,
	lexer.TokStar:         ast.Multiplication,
	lexer.TokSlash:        ast.Division,
	lexer.TokPercent:      ast.Remainder,
	lexer.TokPeriod:       ast.Period,
	lexer.TokScopeRes:     ast.ScopeRes,
}

var unaryKinds = map[lexer.Kind]ast.Kind{
	lexer.TokBang:  ast.Negation,
	lexer.TokMinus: ast.Negative,
	lexer.TokPlus:  ast.Positive,
}

var literalKinds = map[lexer.Kind]ast.Kind{
	lexer.TokNumberLit:   ast.NumberLiteral,
	lexer.TokRealLit:     ast.RealLiteral,
	lexer.TokUnsignedLit: ast.UnsignedLiteral,
	lexer.TokOctetLit:    ast.OctetLiteral,
	lexer.TokBitLit:      ast.BitLiteral,
	lexer.TokStringLit:   ast.StringLiteral,
	lexer.TokAlnumus:     ast.Alnumus,
	lexer.TokNoneLit:     ast.NoneLiteral,
}

func isRightAssoc(k lexer.Kind) bool {
	return binaryPrec[k] == precAssign
}

func leaf(toks []lexer.Token, i int, kind ast.Kind) *ast.Node {
	t := toks[i]
	return ast.NewAt(kind, t.Lit, ast.Span{Begin: i, End: i + 1, Line: t.Line, Col: t.Col})
}

func binaryNode(toks []lexer.Token, i int) *ast.Node {
	return leaf(toks, i, binaryKinds[toks[i].Kind])
}

func exprErr(toks []lexer.Token, i int, format string, args ...any) error {
	lit, line, col := "<end>", 0, 0
	if i < len(toks) {
		lit, line, col = toks[i].Lit, toks[i].Line, toks[i].Col
	} else if len(toks) > 0 {
		last := toks[len(toks)-1]
		line, col = last.Line, last.Col
	}
	return diagnostics.Errorf(diagnostics.EParse, lit, line, col, format, args...)
}

// BuildStatement builds the expression tree for toks[begin:end] in one
// left-to-right sweep. A non-nil lastPass is an unfinished binary operation
// holding its left-hand side as only child, with the cursor positioned at
// the binary operator to complete; statement parsers normally pass nil.
func BuildStatement(toks []lexer.Token, begin, end int, lastPass *ast.Node) (*ast.Node, error) {
	if begin >= end {
		return nil, exprErr(toks, begin, "empty expression")
	}

	var lhs *ast.Node
	cursor := begin
	if lastPass != nil {
		if lastPass.Front() == nil {
			return nil, exprErr(toks, begin, "unfinished operation has no left-hand side")
		}
		lhs = lastPass.Front()
	} else {
		operand, next, err := parseOperand(toks, begin, end, true)
		if err != nil {
			return nil, err
		}
		if next >= end {
			return operand, nil
		}
		lhs = operand
		cursor = next
	}

	node, next, err := climb(toks, lhs, cursor, end, 0)
	if err != nil {
		return nil, err
	}
	if next < end {
		return nil, exprErr(toks, next, "unexpected token after expression")
	}
	return node, nil
}

// parseOperand reads one operand at i: an optionally unary-prefixed literal,
// identifier, or parenthesised subexpression. allowSign permits a leading
// '-'/'+' sign; a sign directly after another unary operator reads as a
// binary operator missing its left operand and is rejected.
func parseOperand(toks []lexer.Token, i, end int, allowSign bool) (*ast.Node, int, error) {
	if i >= end {
		return nil, 0, exprErr(toks, i, "operator must be followed by an operand")
	}
	tok := toks[i]

	if kind, ok := unaryKinds[tok.Kind]; ok {
		if (tok.Kind == lexer.TokMinus || tok.Kind == lexer.TokPlus) && !allowSign {
			return nil, 0, exprErr(toks, i, "binary operator '%s' is missing its left operand", tok.Lit)
		}
		un := leaf(toks, i, kind)
		operand, next, err := parseOperand(toks, i+1, end, false)
		if err != nil {
			return nil, 0, err
		}
		// Member access and call postfix bind tighter than a unary prefix.
		for next < end {
			p, ok := operatorPrec(toks, next)
			if !ok || p <= precUnary {
				break
			}
			operand, next, err = climb(toks, operand, next, end, precMember)
			if err != nil {
				return nil, 0, err
			}
		}
		un.PushBack(operand)
		un.Span.End = operand.Span.End
		return un, next, nil
	}

	if tok.Kind == lexer.TokOpenScope {
		scope := FindScope(toks, i, end)
		if !scope.Valid {
			return nil, 0, exprErr(toks, i, "mismatched parenthesis")
		}
		if scope.IsEmpty() {
			return nil, 0, exprErr(toks, i, "empty parenthesis is not an operand")
		}
		inner, err := BuildStatement(toks, scope.ContainedBegin(), scope.ContainedEnd(), nil)
		if err != nil {
			return nil, 0, err
		}
		return inner, scope.End, nil
	}

	if kind, ok := literalKinds[tok.Kind]; ok {
		return leaf(toks, i, kind), i + 1, nil
	}

	return nil, 0, exprErr(toks, i, "token is not a valid operand")
}

// operatorPrec reports the precedence of the operator at i. The call
// postfix '(' acts as an operator at member-access precedence.
func operatorPrec(toks []lexer.Token, i int) (int, bool) {
	if toks[i].Kind == lexer.TokOpenScope {
		return precMember, true
	}
	p, ok := binaryPrec[toks[i].Kind]
	return p, ok
}

// climb is the precedence-climbing core. lhs is built, the cursor stands on
// an operator (or call postfix), and ops below minPrec return control to
// the caller.
func climb(toks []lexer.Token, lhs *ast.Node, i, end, minPrec int) (*ast.Node, int, error) {
	for i < end {
		p, ok := operatorPrec(toks, i)
		if !ok {
			return nil, 0, exprErr(toks, i, "expected an operator")
		}
		if p < minPrec {
			return lhs, i, nil
		}

		// Call postfix: the tree built so far is the callee.
		if toks[i].Kind == lexer.TokOpenScope {
			call, next, err := wrapCall(toks, lhs, i, end)
			if err != nil {
				return nil, 0, err
			}
			lhs = call
			i = next
			continue
		}

		opIdx := i
		rhs, next, err := parseOperand(toks, i+1, end, true)
		if err != nil {
			return nil, 0, err
		}

		for next < end {
			np, ok := operatorPrec(toks, next)
			if !ok {
				return nil, 0, exprErr(toks, next, "expected an operator")
			}
			if np > p || (np == p && isRightAssoc(toks[opIdx].Kind)) {
				bound := np
				if np > p {
					bound = p + 1
				}
				rhs, next, err = climb(toks, rhs, next, end, bound)
				if err != nil {
					return nil, 0, err
				}
				continue
			}
			break
		}

		op := binaryNode(toks, opIdx)
		op.PushBack(lhs)
		op.PushBack(rhs)
		op.Span = ast.Span{Begin: lhs.Span.Begin, End: rhs.Span.End,
			Line: toks[opIdx].Line, Col: toks[opIdx].Col}
		lhs = op
		i = next
	}
	return lhs, i, nil
}

// wrapCall turns lhs into a function-call node using the argument scope
// opening at i.
func wrapCall(toks []lexer.Token, lhs *ast.Node, i, end int) (*ast.Node, int, error) {
	scope := FindScope(toks, i, end)
	if !scope.Valid {
		return nil, 0, exprErr(toks, i, "mismatched parenthesis in arguments to function call operator")
	}
	args, err := parseArgumentsScope(toks, scope)
	if err != nil {
		return nil, 0, err
	}
	call := ast.NewAt(ast.FunctionCall, "()", ast.Span{
		Begin: lhs.Span.Begin, End: scope.End,
		Line: toks[i].Line, Col: toks[i].Col,
	})
	call.PushBack(lhs)
	call.PushBack(args)
	return call, scope.End, nil
}

// parseArgumentsScope builds an arguments node from a found ( ) scope; the
// children are the comma-split argument expressions.
func parseArgumentsScope(toks []lexer.Token, scope ScopeResult) (*ast.Node, error) {
	args := ast.NewAt(ast.Arguments, "()", ast.Span{
		Begin: scope.Begin, End: scope.End,
		Line: toks[scope.Begin].Line, Col: toks[scope.Begin].Col,
	})
	if scope.IsEmpty() {
		return args, nil
	}
	ranges, _ := FindSeparatedListScopes(toks, scope.Begin, scope.End, lexer.TokComma)
	for _, r := range ranges {
		expr, err := BuildStatement(toks, r.Begin, r.End, nil)
		if err != nil {
			return nil, err
		}
		args.PushBack(expr)
	}
	return args, nil
}
