package evaluator

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ayzg/cand-lang-legacy/pkg/ast"
	"github.com/ayzg/cand-lang-legacy/pkg/diagnostics"
)

// RuntimeError is a fatal evaluation error carrying the offending node's
// source position.
type RuntimeError struct {
	Diag diagnostics.Diagnostic
}

func (e *RuntimeError) Error() string { return e.Diag.String() }

func evalErr(n *ast.Node, format string, args ...any) error {
	return &RuntimeError{Diag: diagnostics.MakeDiag(
		diagnostics.EEval, fmt.Sprintf(format, args...), n.Lit, n.Span.Line, n.Span.Col)}
}

// control-flow signals threaded through the error return
type returnSignal struct {
	value Value
}

func (returnSignal) Error() string { return "return outside of a function body" }

type breakSignal struct{}

func (breakSignal) Error() string { return "break outside of a loop" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue outside of a loop" }

// Evaluator walks an AST against a scope tree. Print statements write to
// Out, which defaults to stdout.
type Evaluator struct {
	Out io.Writer
}

// New creates an evaluator writing print output to stdout.
func New() *Evaluator {
	return &Evaluator{Out: os.Stdout}
}

// Execute evaluates a parsed program in a fresh global scope and returns
// the last produced value together with the global environment.
func (ev *Evaluator) Execute(program *ast.Node) (Value, *Env, error) {
	env := NewEnv("global")
	val, err := ev.Eval(program, env)
	if err != nil {
		if _, ok := err.(returnSignal); ok {
			return nil, nil, evalErr(program, "return outside of a function body")
		}
		return nil, nil, err
	}
	return val, env, nil
}

// Eval dispatches on the node's kind tag.
func (ev *Evaluator) Eval(n *ast.Node, env *Env) (Value, error) {
	switch n.Kind {
	case ast.NumberLiteral:
		return evalNumberLiteral(n)
	case ast.RealLiteral:
		return evalRealLiteral(n)
	case ast.UnsignedLiteral:
		return evalUnsignedLiteral(n)
	case ast.OctetLiteral:
		return evalOctetLiteral(n)
	case ast.BitLiteral:
		return evalBitLiteral(n)
	case ast.StringLiteral:
		return evalStringLiteral(n)
	case ast.NoneLiteral:
		return NoneValue{}, nil

	case ast.Alnumus:
		v, ok := env.Get(n.Lit)
		if !ok {
			return nil, evalErr(n, "unbound name '%s'", n.Lit)
		}
		return v, nil

	case ast.Expression:
		if len(n.Children) != 1 {
			return nil, evalErr(n, "malformed expression node")
		}
		return ev.Eval(n.Children[0], env)

	case ast.Addition, ast.Subtraction, ast.Multiplication, ast.Division, ast.Remainder:
		return ev.evalArithmetic(n, env)
	case ast.Equal, ast.NotEqual, ast.Less, ast.LessEq, ast.Greater, ast.GreaterEq:
		return ev.evalComparison(n, env)
	case ast.LogicalAnd, ast.LogicalOr:
		return ev.evalLogical(n, env)
	case ast.Negation, ast.Negative, ast.Positive:
		return ev.evalUnary(n, env)
	case ast.Period:
		return ev.evalMemberAccess(n, env)

	case ast.SimpleAssignment:
		return ev.evalAssignment(n, env)
	case ast.AdditionAssignment, ast.SubtractionAssignment,
		ast.MultiplicationAssignment, ast.DivisionAssignment, ast.RemainderAssignment:
		return ev.evalCompoundAssignment(n, env)

	case ast.FunctionCall:
		return ev.evalFunctionCall(n, env)

	case ast.AnonVariableDefinition:
		return ev.evalVarDecl(n, env, n.Children[0], nil)
	case ast.AnonVariableDefinitionAssignment:
		return ev.evalVarDecl(n, env, n.Children[0], n.Children[1])
	case ast.ConstrainedVariableDefinition:
		// [constraints, name] or [constraints, name, '=', expr]; constraint
		// enforcement belongs to the type checker, out of scope here.
		if len(n.Children) >= 4 {
			return ev.evalVarDecl(n, env, n.Children[1], n.Children[3])
		}
		return ev.evalVarDecl(n, env, n.Children[1], nil)

	case ast.MethodDefinition, ast.ShorthandVoidMethodDefinition,
		ast.ConstrainedMethodDefinition, ast.ShorthandConstrainedVoidMethodDefinition:
		return ev.evalFunctionDecl(n, env)

	case ast.ClassDefinition:
		return ev.evalClassDecl(n, env)

	case ast.TypeDefinition:
		// Aliases carry no runtime weight in constant evaluation.
		return NoneValue{}, nil

	case ast.Return:
		val, err := ev.Eval(n.Children[0], env)
		if err != nil {
			return nil, err
		}
		return nil, returnSignal{value: val}

	case ast.If:
		return ev.evalIf(n, env)
	case ast.While:
		return ev.evalWhile(n, env)
	case ast.For:
		return ev.evalFor(n, env)
	case ast.On:
		return ev.evalOn(n, env)
	case ast.Break:
		return nil, breakSignal{}
	case ast.Continue:
		return nil, continueSignal{}

	case ast.Print:
		val, err := ev.Eval(n.Children[0], env)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(ev.writer(), val.Display())
		return val, nil

	case ast.PragmaticBlock, ast.FunctionalBlock:
		return ev.evalBlock(n, env)
	}

	return nil, evalErr(n, "cannot evaluate node of kind %s", n.Kind)
}

func (ev *Evaluator) writer() io.Writer {
	if ev.Out != nil {
		return ev.Out
	}
	return os.Stdout
}

// --- Literals --------------------------------------------------------------

func evalNumberLiteral(n *ast.Node) (Value, error) {
	v, err := strconv.ParseInt(n.Lit, 10, 64)
	if err != nil {
		return nil, evalErr(n, "malformed number literal")
	}
	return Number{Value: v}, nil
}

func evalRealLiteral(n *ast.Node) (Value, error) {
	v, err := strconv.ParseFloat(n.Lit, 64)
	if err != nil {
		return nil, evalErr(n, "malformed real literal")
	}
	return Real{Value: v}, nil
}

func evalUnsignedLiteral(n *ast.Node) (Value, error) {
	v, err := strconv.ParseUint(strings.TrimSuffix(n.Lit, "u"), 10, 32)
	if err != nil {
		return nil, evalErr(n, "malformed unsigned literal")
	}
	return Unsigned{Value: uint32(v)}, nil
}

func evalOctetLiteral(n *ast.Node) (Value, error) {
	lit := strings.TrimSuffix(n.Lit, "c")
	// Character form: 'x'c carries the character's byte value.
	if strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'") && len(lit) == 3 {
		return Byte{Value: lit[1]}, nil
	}
	v, err := strconv.ParseUint(lit, 10, 8)
	if err != nil {
		return nil, evalErr(n, "malformed octet literal")
	}
	return Byte{Value: uint8(v)}, nil
}

func evalBitLiteral(n *ast.Node) (Value, error) {
	switch n.Lit {
	case "1b":
		return Bit{Value: true}, nil
	case "0b":
		return Bit{Value: false}, nil
	}
	return nil, evalErr(n, "malformed bit literal")
}

func evalStringLiteral(n *ast.Node) (Value, error) {
	lit := n.Lit
	if len(lit) < 2 || lit[0] != '\'' || lit[len(lit)-1] != '\'' {
		return nil, evalErr(n, "malformed string literal")
	}
	lit = lit[1 : len(lit)-1]
	var buf strings.Builder
	for i := 0; i < len(lit); i++ {
		if lit[i] == '\\' && i+1 < len(lit) {
			i++
			switch lit[i] {
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			case '\\':
				buf.WriteByte('\\')
			case '\'':
				buf.WriteByte('\'')
			default:
				return nil, evalErr(n, "invalid escape in string literal")
			}
			continue
		}
		buf.WriteByte(lit[i])
	}
	return Str{Value: buf.String()}, nil
}

// --- Numeric promotion -----------------------------------------------------

// asReal reports the operand as a float when it sits anywhere in the
// numeric lattice.
func asReal(v Value) (float64, bool) {
	switch x := v.(type) {
	case Number:
		return float64(x.Value), true
	case Real:
		return x.Value, true
	case Unsigned:
		return float64(x.Value), true
	case Byte:
		return float64(x.Value), true
	case Bit:
		if x.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// asNumber reports the operand as an integer; reals do not narrow.
func asNumber(v Value) (int64, bool) {
	switch x := v.(type) {
	case Number:
		return x.Value, true
	case Unsigned:
		return int64(x.Value), true
	case Byte:
		return int64(x.Value), true
	case Bit:
		if x.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isReal(v Value) bool {
	_, ok := v.(Real)
	return ok
}

// --- Operators -------------------------------------------------------------

func (ev *Evaluator) evalArithmetic(n *ast.Node, env *Env) (Value, error) {
	left, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	right, err := ev.Eval(n.Children[1], env)
	if err != nil {
		return nil, err
	}

	// String concatenation rides on '+'.
	if n.Kind == ast.Addition {
		if ls, ok := left.(Str); ok {
			if rs, ok := right.(Str); ok {
				return Str{Value: ls.Value + rs.Value}, nil
			}
		}
	}

	// Same-type unsigned and octet arithmetic stays in its type; anything
	// mixed promotes through NUMBER, and REAL absorbs everything.
	if isReal(left) || isReal(right) {
		lf, lok := asReal(left)
		rf, rok := asReal(right)
		if !lok || !rok {
			return nil, evalErr(n, "operator '%s' requires numeric operands, got %s and %s",
				n.Lit, TypeName(left), TypeName(right))
		}
		switch n.Kind {
		case ast.Addition:
			return Real{Value: lf + rf}, nil
		case ast.Subtraction:
			return Real{Value: lf - rf}, nil
		case ast.Multiplication:
			return Real{Value: lf * rf}, nil
		case ast.Division:
			if rf == 0 {
				return nil, evalErr(n, "division by zero")
			}
			return Real{Value: lf / rf}, nil
		case ast.Remainder:
			return nil, evalErr(n, "operator '%%' is not defined for REAL operands")
		}
	}

	li, lok := asNumber(left)
	ri, rok := asNumber(right)
	if !lok || !rok {
		return nil, evalErr(n, "operator '%s' requires numeric operands, got %s and %s",
			n.Lit, TypeName(left), TypeName(right))
	}

	var out int64
	switch n.Kind {
	case ast.Addition:
		out = li + ri
	case ast.Subtraction:
		out = li - ri
	case ast.Multiplication:
		out = li * ri
	case ast.Division:
		if ri == 0 {
			return nil, evalErr(n, "division by zero")
		}
		out = li / ri
	case ast.Remainder:
		if ri == 0 {
			return nil, evalErr(n, "remainder by zero")
		}
		out = li % ri
	}

	if _, ok := left.(Unsigned); ok {
		if _, ok := right.(Unsigned); ok {
			return Unsigned{Value: uint32(out)}, nil
		}
	}
	if _, ok := left.(Byte); ok {
		if _, ok := right.(Byte); ok {
			return Byte{Value: uint8(out)}, nil
		}
	}
	return Number{Value: out}, nil
}

func (ev *Evaluator) evalComparison(n *ast.Node, env *Env) (Value, error) {
	left, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	right, err := ev.Eval(n.Children[1], env)
	if err != nil {
		return nil, err
	}

	if ls, lok := left.(Str); lok {
		if rs, rok := right.(Str); rok {
			return compareOrdered(n, strings.Compare(ls.Value, rs.Value))
		}
	}

	lf, lok := asReal(left)
	rf, rok := asReal(right)
	if !lok || !rok {
		switch n.Kind {
		case ast.Equal:
			return Bit{Value: left == right}, nil
		case ast.NotEqual:
			return Bit{Value: left != right}, nil
		}
		return nil, evalErr(n, "operator '%s' requires comparable operands, got %s and %s",
			n.Lit, TypeName(left), TypeName(right))
	}

	switch {
	case lf < rf:
		return compareOrdered(n, -1)
	case lf > rf:
		return compareOrdered(n, 1)
	default:
		return compareOrdered(n, 0)
	}
}

func compareOrdered(n *ast.Node, cmp int) (Value, error) {
	switch n.Kind {
	case ast.Equal:
		return Bit{Value: cmp == 0}, nil
	case ast.NotEqual:
		return Bit{Value: cmp != 0}, nil
	case ast.Less:
		return Bit{Value: cmp < 0}, nil
	case ast.LessEq:
		return Bit{Value: cmp <= 0}, nil
	case ast.Greater:
		return Bit{Value: cmp > 0}, nil
	case ast.GreaterEq:
		return Bit{Value: cmp >= 0}, nil
	}
	return nil, evalErr(n, "not an ordering operator")
}

func (ev *Evaluator) evalLogical(n *ast.Node, env *Env) (Value, error) {
	left, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	// Short circuit.
	if n.Kind == ast.LogicalAnd && !Truthy(left) {
		return Bit{Value: false}, nil
	}
	if n.Kind == ast.LogicalOr && Truthy(left) {
		return Bit{Value: true}, nil
	}
	right, err := ev.Eval(n.Children[1], env)
	if err != nil {
		return nil, err
	}
	return Bit{Value: Truthy(right)}, nil
}

func (ev *Evaluator) evalUnary(n *ast.Node, env *Env) (Value, error) {
	operand, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case ast.Negation:
		return Bit{Value: !Truthy(operand)}, nil
	case ast.Negative:
		switch x := operand.(type) {
		case Number:
			return Number{Value: -x.Value}, nil
		case Real:
			return Real{Value: -x.Value}, nil
		}
		return nil, evalErr(n, "unary '-' requires a signed numeric operand, got %s", TypeName(operand))
	case ast.Positive:
		if _, ok := asReal(operand); !ok {
			return nil, evalErr(n, "unary '+' requires a numeric operand, got %s", TypeName(operand))
		}
		return operand, nil
	}
	return nil, evalErr(n, "not a unary operator")
}

func (ev *Evaluator) evalMemberAccess(n *ast.Node, env *Env) (Value, error) {
	base, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	member := n.Children[1]
	if member.Kind != ast.Alnumus {
		return nil, evalErr(member, "member access needs a member name")
	}
	obj, ok := base.(*Object)
	if !ok {
		return nil, evalErr(n, "cannot access member '%s' on %s value", member.Lit, TypeName(base))
	}
	v, found := obj.Members[member.Lit]
	if !found {
		return nil, evalErr(member, "object '%s' has no member '%s'", obj.Name, member.Lit)
	}
	return v, nil
}

// --- Assignment ------------------------------------------------------------

func (ev *Evaluator) evalAssignment(n *ast.Node, env *Env) (Value, error) {
	target := n.Children[0]
	if target.Kind != ast.Alnumus {
		return nil, evalErr(target, "assignment target must be a name")
	}
	val, err := ev.Eval(n.Children[1], env)
	if err != nil {
		return nil, err
	}
	if !env.Assign(target.Lit, val) {
		return nil, evalErr(target, "assignment to unbound name '%s'", target.Lit)
	}
	return val, nil
}

func (ev *Evaluator) evalCompoundAssignment(n *ast.Node, env *Env) (Value, error) {
	target := n.Children[0]
	if target.Kind != ast.Alnumus {
		return nil, evalErr(target, "assignment target must be a name")
	}
	if !env.Has(target.Lit) {
		return nil, evalErr(target, "assignment to unbound name '%s'", target.Lit)
	}

	var op ast.Kind
	switch n.Kind {
	case ast.AdditionAssignment:
		op = ast.Addition
	case ast.SubtractionAssignment:
		op = ast.Subtraction
	case ast.MultiplicationAssignment:
		op = ast.Multiplication
	case ast.DivisionAssignment:
		op = ast.Division
	case ast.RemainderAssignment:
		op = ast.Remainder
	}
	desugared := ast.NewAt(op, strings.TrimSuffix(n.Lit, "="), n.Span)
	desugared.PushBack(target)
	desugared.PushBack(n.Children[1])

	val, err := ev.evalArithmetic(desugared, env)
	if err != nil {
		return nil, err
	}
	env.Assign(target.Lit, val)
	return val, nil
}

// --- Declarations ----------------------------------------------------------

func (ev *Evaluator) evalVarDecl(n *ast.Node, env *Env, name, init *ast.Node) (Value, error) {
	var val Value = NoneValue{}
	if init != nil {
		v, err := ev.Eval(init, env)
		if err != nil {
			return nil, err
		}
		val = v
	}
	if !env.Declare(name.Lit, val) {
		return nil, evalErr(name, "redeclaration of '%s' in scope '%s'", name.Lit, env.Name())
	}
	return val, nil
}

func (ev *Evaluator) evalFunctionDecl(n *ast.Node, env *Env) (Value, error) {
	// Positional children per kind: an optional type-constraints node,
	// the name, an optional arguments node, and the body.
	idx := 0
	if n.Children[idx].Kind == ast.TypeConstraints {
		idx++
	}
	name := n.Children[idx]
	idx++
	var params []string
	if idx < len(n.Children) && n.Children[idx].Kind == ast.Arguments {
		for _, p := range n.Children[idx].Children {
			if p.Kind != ast.Alnumus {
				return nil, evalErr(p, "function parameter must be a name")
			}
			params = append(params, p.Lit)
		}
		idx++
	}
	body := n.Children[idx]

	fn := &Function{Name: name.Lit, Params: params, Body: body, Captured: env}
	if !env.Declare(name.Lit, fn) {
		return nil, evalErr(name, "redeclaration of '%s' in scope '%s'", name.Lit, env.Name())
	}
	return fn, nil
}

func (ev *Evaluator) evalFunctionCall(n *ast.Node, env *Env) (Value, error) {
	callee, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*Function)
	if !ok {
		return nil, evalErr(n, "cannot call %s value", TypeName(callee))
	}

	argsNode := n.Children[1]
	if len(argsNode.Children) != len(fn.Params) {
		return nil, evalErr(n, "function '%s' expects %d arguments, got %d",
			fn.Name, len(fn.Params), len(argsNode.Children))
	}

	// Arguments evaluate left to right in the caller's scope.
	args := make([]Value, len(argsNode.Children))
	for i, a := range argsNode.Children {
		v, err := ev.Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	frame := fn.Captured.Child(fn.Name)
	for i, p := range fn.Params {
		if !frame.Declare(p, args[i]) {
			return nil, evalErr(n, "duplicate parameter '%s' in function '%s'", p, fn.Name)
		}
	}

	_, err = ev.Eval(fn.Body, frame)
	if err != nil {
		if ret, ok := err.(returnSignal); ok {
			return ret.value, nil
		}
		return nil, err
	}
	return NoneValue{}, nil
}

func (ev *Evaluator) evalClassDecl(n *ast.Node, env *Env) (Value, error) {
	name := n.Children[0]
	body := n.Children[1]

	objScope := env.Child(name.Lit)
	if _, err := ev.Eval(body, objScope); err != nil {
		return nil, err
	}

	members := make(map[string]Value, len(objScope.Bindings()))
	for k, v := range objScope.Bindings() {
		members[k] = v
	}
	obj := &Object{Name: name.Lit, Members: members}
	if !env.Declare(name.Lit, obj) {
		return nil, evalErr(name, "redeclaration of '%s' in scope '%s'", name.Lit, env.Name())
	}
	return obj, nil
}

// --- Control flow ----------------------------------------------------------

func (ev *Evaluator) evalIf(n *ast.Node, env *Env) (Value, error) {
	cond, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	if Truthy(cond) {
		return ev.Eval(n.Children[1], env.Child("if"))
	}
	for _, clause := range n.Children[2:] {
		switch clause.Kind {
		case ast.Elif:
			c, err := ev.Eval(clause.Children[0], env)
			if err != nil {
				return nil, err
			}
			if Truthy(c) {
				return ev.Eval(clause.Children[1], env.Child("elif"))
			}
		case ast.Else:
			return ev.Eval(clause.Children[0], env.Child("else"))
		}
	}
	return NoneValue{}, nil
}

func (ev *Evaluator) evalWhile(n *ast.Node, env *Env) (Value, error) {
	var last Value = NoneValue{}
	for {
		cond, err := ev.Eval(n.Children[0], env)
		if err != nil {
			return nil, err
		}
		if !Truthy(cond) {
			return last, nil
		}
		v, err := ev.Eval(n.Children[1], env.Child("while"))
		if err != nil {
			switch err.(type) {
			case breakSignal:
				return last, nil
			case continueSignal:
				continue
			}
			return nil, err
		}
		last = v
	}
}

func (ev *Evaluator) evalFor(n *ast.Node, env *Env) (Value, error) {
	// children: [init, cond, step, block]
	loopScope := env.Child("for")

	// The init clause may introduce its loop variable.
	init := n.Children[0].Children[0]
	if init.Kind == ast.SimpleAssignment &&
		init.Children[0].Kind == ast.Alnumus &&
		!loopScope.Has(init.Children[0].Lit) {
		v, err := ev.Eval(init.Children[1], loopScope)
		if err != nil {
			return nil, err
		}
		loopScope.Declare(init.Children[0].Lit, v)
	} else if _, err := ev.Eval(n.Children[0], loopScope); err != nil {
		return nil, err
	}
	var last Value = NoneValue{}
	for {
		cond, err := ev.Eval(n.Children[1], loopScope)
		if err != nil {
			return nil, err
		}
		if !Truthy(cond) {
			return last, nil
		}
		v, err := ev.Eval(n.Children[3], loopScope.Child("body"))
		if err != nil {
			switch err.(type) {
			case breakSignal:
				return last, nil
			case continueSignal:
			default:
				return nil, err
			}
		} else {
			last = v
		}
		if _, err := ev.Eval(n.Children[2], loopScope); err != nil {
			return nil, err
		}
	}
}

func (ev *Evaluator) evalOn(n *ast.Node, env *Env) (Value, error) {
	cond, err := ev.Eval(n.Children[0], env)
	if err != nil {
		return nil, err
	}
	if !Truthy(cond) {
		return NoneValue{}, nil
	}
	return ev.Eval(n.Children[1], env.Child("on"))
}

// --- Blocks ----------------------------------------------------------------

func (ev *Evaluator) evalBlock(n *ast.Node, env *Env) (Value, error) {
	var last Value = NoneValue{}
	for _, stmt := range n.Children {
		v, err := ev.Eval(stmt, env)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}
