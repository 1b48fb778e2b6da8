package parser

import (
	"io"
	"strings"
	"testing"

	"github.com/ayzg/cand-lang-legacy/pkg/ast"
	"github.com/ayzg/cand-lang-legacy/pkg/formatter"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

func init() {
	// Block tests exercise empty statements; keep their warnings quiet.
	SetWarnOutput(io.Discard)
}

type parseFn func([]lexer.Token, int, int) Result

func mustParse(t *testing.T, fn parseFn, source string) *ast.Node {
	t.Helper()
	tokens := toks(t, source)
	r := fn(tokens, 0, len(tokens))
	if !r.Valid {
		t.Fatalf("unexpected parse error for %q: %v", source, r.Err)
	}
	return r.Node
}

func mustNotParse(t *testing.T, fn parseFn, source string) {
	t.Helper()
	tokens := toks(t, source)
	if r := fn(tokens, 0, len(tokens)); r.Valid {
		t.Fatalf("expected parse error for %q, got:\n%s", source, formatter.FormatTree(r.Node))
	}
}

func expectNode(t *testing.T, got, want *ast.Node) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("node mismatch\ngot:\n%s\nwant:\n%s",
			formatter.FormatTree(got), formatter.FormatTree(want))
	}
}

// ---------------------------------------------------------------------------
// Variable declarations
// ---------------------------------------------------------------------------
func TestParseDirectiveVar(t *testing.T) {
	t.Run("anon declaration", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var foo;")
		expectNode(t, got, ast.New(ast.AnonVariableDefinition, "#var", alnum("foo")))
	})

	t.Run("anon declaration with assignment", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var foo = 1;")
		expectNode(t, got, ast.New(ast.AnonVariableDefinitionAssignment, "#var",
			alnum("foo"), num("1")))
	})

	t.Run("complex initialiser", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var foo = 1 + c * (3 / 4);")
		expectNode(t, got, ast.New(ast.AnonVariableDefinitionAssignment, "#var",
			alnum("foo"),
			ast.New(ast.Addition, "+",
				num("1"),
				ast.New(ast.Multiplication, "*",
					alnum("c"),
					ast.New(ast.Division, "/", num("3"), num("4"))))))
	})

	t.Run("constrained declaration", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var [int,Int] foo;")
		expectNode(t, got, ast.New(ast.ConstrainedVariableDefinition, "#var",
			ast.New(ast.TypeConstraints, "[]", alnum("int"), alnum("Int")),
			alnum("foo")))
	})

	t.Run("constrained declaration with assignment", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var [int,Int] foo = 1;")
		expectNode(t, got, ast.New(ast.ConstrainedVariableDefinition, "#var",
			ast.New(ast.TypeConstraints, "[]", alnum("int"), alnum("Int")),
			alnum("foo"),
			ast.New(ast.SimpleAssignment, "="),
			num("1")))
	})

	t.Run("keyword-less constrained form", func(t *testing.T) {
		tokens := toks(t, "[int,Int] foo = 1;")
		r := ParseConstrainedVariable(tokens, 0, 0, len(tokens))
		if !r.Valid {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		expectNode(t, r.Node, ast.New(ast.ConstrainedVariableDefinition, "[",
			ast.New(ast.TypeConstraints, "[]", alnum("int"), alnum("Int")),
			alnum("foo"),
			ast.New(ast.SimpleAssignment, "="),
			num("1")))
	})

	t.Run("sigil constraints", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveVar, "#var [&int[0...9]] foo;")
		expectNode(t, got, ast.New(ast.ConstrainedVariableDefinition, "#var",
			ast.New(ast.TypeConstraints, "[]",
				ast.New(ast.AInt, "&int", num("0"), num("9"))),
			alnum("foo")))
	})

	t.Run("missing semicolon", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveVar, "#var foo = 1")
	})
	t.Run("missing name", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveVar, "#var = 1;")
	})
	t.Run("invalid initialiser", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveVar, "#var foo = ;")
	})
}

// ---------------------------------------------------------------------------
// Type definitions
// ---------------------------------------------------------------------------
func TestParseDirectiveType(t *testing.T) {
	t.Run("alias to name", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveType, "#type IntAlias = Int;")
		expectNode(t, got, ast.New(ast.TypeDefinition, "#type",
			alnum("IntAlias"),
			ast.New(ast.SimpleAssignment, "="),
			alnum("Int")))
	})

	t.Run("alias to constrained sigil", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveType, "#type Int = &int[0...100];")
		expectNode(t, got, ast.New(ast.TypeDefinition, "#type",
			alnum("Int"),
			ast.New(ast.SimpleAssignment, "="),
			ast.New(ast.AInt, "&int", num("0"), num("100"))))
	})

	t.Run("missing assignment", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveType, "#type Foo Int;")
	})
	t.Run("missing semicolon", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveType, "#type Foo = Int")
	})
}

// ---------------------------------------------------------------------------
// Candi special objects
// ---------------------------------------------------------------------------
func TestParseCandiSpecialObject(t *testing.T) {
	t.Run("bare sigils", func(t *testing.T) {
		for source, kind := range map[string]ast.Kind{
			"&type": ast.AType, "&value": ast.AValue, "&identity": ast.AIdentity,
			"&real": ast.AReal, "&octet": ast.AOctet, "&bit": ast.ABit, "&str": ast.AStr,
			"&int": ast.AInt, "&uint": ast.AUint,
		} {
			got := mustParse(t, ParseCandiSpecialObject, source)
			if got.Kind != kind {
				t.Errorf("%s: expected kind %s, got %s", source, kind, got.Kind)
			}
		}
	})

	t.Run("int range", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&int[0...42]")
		expectNode(t, got, ast.New(ast.AInt, "&int", num("0"), num("42")))
	})

	t.Run("int range with negative bounds", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&int[-42...42]")
		expectNode(t, got, ast.New(ast.AInt, "&int",
			ast.New(ast.Negative, "-", num("42")),
			num("42")))

		got = mustParse(t, ParseCandiSpecialObject, "&int[-42...-7]")
		expectNode(t, got, ast.New(ast.AInt, "&int",
			ast.New(ast.Negative, "-", num("42")),
			ast.New(ast.Negative, "-", num("7"))))
	})

	t.Run("uint range", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&uint[0...9]")
		expectNode(t, got, ast.New(ast.AUint, "&uint", num("0"), num("9")))
	})

	t.Run("uint range rejects negative bound", func(t *testing.T) {
		mustNotParse(t, ParseCandiSpecialObject, "&uint[-1...9]")
	})

	t.Run("pointer to name", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&pointer[Foo]")
		expectNode(t, got, ast.New(ast.APointer, "&pointer", alnum("Foo")))
	})

	t.Run("pointer to sigil", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&pointer[&int[0...9]]")
		expectNode(t, got, ast.New(ast.APointer, "&pointer",
			ast.New(ast.AInt, "&int", num("0"), num("9"))))
	})

	t.Run("pointer requires constraint", func(t *testing.T) {
		mustNotParse(t, ParseCandiSpecialObject, "&pointer")
	})

	t.Run("array of name", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&array[Foo, 8]")
		expectNode(t, got, ast.New(ast.AArray, "&array", alnum("Foo"), num("8")))
	})

	t.Run("array of sigil", func(t *testing.T) {
		got := mustParse(t, ParseCandiSpecialObject, "&array[&octet, 16]")
		expectNode(t, got, ast.New(ast.AArray, "&array",
			ast.New(ast.AOctet, "&octet"), num("16")))
	})

	t.Run("array requires size", func(t *testing.T) {
		mustNotParse(t, ParseCandiSpecialObject, "&array[Foo]")
	})
}

// ---------------------------------------------------------------------------
// Function definitions
// ---------------------------------------------------------------------------
func TestParseDirectiveFunc(t *testing.T) {
	t.Run("shorthand void", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc, "#func tick { #return 1; };")
		if got.Kind != ast.ShorthandVoidMethodDefinition {
			t.Fatalf("expected shorthand void definition, got %s", got.Kind)
		}
		if got.Children[0].Lit != "tick" {
			t.Errorf("expected name child first, got %q", got.Children[0].Lit)
		}
		if got.Children[1].Kind != ast.FunctionalBlock {
			t.Errorf("expected functional block child, got %s", got.Children[1].Kind)
		}
	})

	t.Run("with arguments", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc, "#func add(x, y) { #return x + y; };")
		if got.Kind != ast.MethodDefinition {
			t.Fatalf("expected method definition, got %s", got.Kind)
		}
		args := got.Children[1]
		if args.Kind != ast.Arguments || len(args.Children) != 2 {
			t.Fatalf("expected 2 arguments, got %s with %d", args.Kind, len(args.Children))
		}
		if args.Children[0].Lit != "x" || args.Children[1].Lit != "y" {
			t.Errorf("argument names wrong: %q, %q", args.Children[0].Lit, args.Children[1].Lit)
		}
	})

	t.Run("empty argument list", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc, "#func nop() { #return none; };")
		if got.Kind != ast.MethodDefinition {
			t.Fatalf("expected method definition, got %s", got.Kind)
		}
		if len(got.Children[1].Children) != 0 {
			t.Errorf("expected no arguments")
		}
	})

	t.Run("constrained shorthand", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc, "#func [Int] tick { #return 1; };")
		if got.Kind != ast.ShorthandConstrainedVoidMethodDefinition {
			t.Fatalf("expected constrained shorthand, got %s", got.Kind)
		}
		if got.Children[0].Kind != ast.TypeConstraints {
			t.Errorf("expected constraints child first")
		}
	})

	t.Run("constrained with arguments", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc, "#func [Int] add(x) { #return x; };")
		if got.Kind != ast.ConstrainedMethodDefinition {
			t.Fatalf("expected constrained definition, got %s", got.Kind)
		}
		kinds := []ast.Kind{ast.TypeConstraints, ast.Alnumus, ast.Arguments, ast.FunctionalBlock}
		for i, k := range kinds {
			if got.Children[i].Kind != k {
				t.Errorf("child %d: expected %s, got %s", i, k, got.Children[i].Kind)
			}
		}
	})

	t.Run("multiple body statements", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveFunc,
			"#func f(x) { #var y = x + 1; #return y; };")
		body := got.Back()
		if body.Kind != ast.FunctionalBlock || len(body.Children) != 2 {
			t.Fatalf("expected 2 body statements, got %d", len(body.Children))
		}
	})

	t.Run("missing trailing semicolon", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveFunc, "#func tick { #return 1; }")
	})
	t.Run("missing body", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveFunc, "#func tick;")
	})
}

// ---------------------------------------------------------------------------
// Class definitions
// ---------------------------------------------------------------------------
func TestParseDirectiveClass(t *testing.T) {
	t.Run("empty class", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveClass, "#class Foo {};")
		expectNode(t, got, ast.New(ast.ClassDefinition, "#class",
			alnum("Foo"),
			ast.New(ast.PragmaticBlock, "")))
	})

	t.Run("class with members", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveClass, "#class Foo { #var a = 1; #var b = 2; };")
		block := got.Children[1]
		if block.Kind != ast.PragmaticBlock || len(block.Children) != 2 {
			t.Fatalf("expected 2 member statements, got %d", len(block.Children))
		}
	})

	t.Run("class with members and methods", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveClass,
			"#class Foo { #var a = 1; #func get { #return 1; }; };")
		block := got.Children[1]
		if len(block.Children) != 2 {
			t.Fatalf("expected 2 statements, got %d", len(block.Children))
		}
		if block.Children[1].Kind != ast.ShorthandVoidMethodDefinition {
			t.Errorf("expected method definition, got %s", block.Children[1].Kind)
		}
	})

	t.Run("missing semicolon", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveClass, "#class Foo {}")
	})
}

// ---------------------------------------------------------------------------
// Return statements
// ---------------------------------------------------------------------------
func TestParseDirectiveReturn(t *testing.T) {
	got := mustParse(t, ParseDirectiveReturn, "#return a;")
	expectNode(t, got, ast.New(ast.Return, "#return",
		ast.New(ast.Expression, "", alnum("a"))))

	got = mustParse(t, ParseDirectiveReturn, "#return x + 40;")
	expectNode(t, got, ast.New(ast.Return, "#return",
		ast.New(ast.Expression, "",
			ast.New(ast.Addition, "+", alnum("x"), num("40")))))

	mustNotParse(t, ParseDirectiveReturn, "#return a")
}

// ---------------------------------------------------------------------------
// Control flow statements
// ---------------------------------------------------------------------------
func TestParseDirectiveIf(t *testing.T) {
	t.Run("plain if", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveIf, "#if (a == 1) { b = 2; };")
		if got.Kind != ast.If || len(got.Children) != 2 {
			t.Fatalf("expected if with 2 children, got %s with %d", got.Kind, len(got.Children))
		}
	})

	t.Run("if else", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveIf, "#if (a) { b = 1; } #else { b = 2; };")
		if len(got.Children) != 3 || got.Children[2].Kind != ast.Else {
			t.Fatalf("expected else clause")
		}
	})

	t.Run("if elif else", func(t *testing.T) {
		got := mustParse(t, ParseDirectiveIf,
			"#if (a) { b = 1; } #elif (c) { b = 2; } #else { b = 3; };")
		if len(got.Children) != 4 {
			t.Fatalf("expected 4 children, got %d", len(got.Children))
		}
		if got.Children[2].Kind != ast.Elif || got.Children[3].Kind != ast.Else {
			t.Errorf("clause kinds wrong: %s, %s", got.Children[2].Kind, got.Children[3].Kind)
		}
	})

	t.Run("missing condition", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveIf, "#if { b = 1; };")
	})
	t.Run("missing terminator", func(t *testing.T) {
		mustNotParse(t, ParseDirectiveIf, "#if (a) { b = 1; }")
	})
}

func TestParseDirectiveWhile(t *testing.T) {
	got := mustParse(t, ParseDirectiveWhile, "#while (a < 10) { a = a + 1; };")
	if got.Kind != ast.While || len(got.Children) != 2 {
		t.Fatalf("expected while with condition and block")
	}
	if got.Children[0].Kind != ast.Expression || got.Children[1].Kind != ast.FunctionalBlock {
		t.Errorf("child kinds wrong: %s, %s", got.Children[0].Kind, got.Children[1].Kind)
	}
	mustNotParse(t, ParseDirectiveWhile, "#while (a < 10) { a = a + 1; }")
}

func TestParseDirectiveFor(t *testing.T) {
	got := mustParse(t, ParseDirectiveFor, "#for (i = 0; i < 10; i = i + 1) { a = a + i; };")
	if got.Kind != ast.For || len(got.Children) != 4 {
		t.Fatalf("expected for with 4 children, got %d", len(got.Children))
	}
	for i := 0; i < 3; i++ {
		if got.Children[i].Kind != ast.Expression {
			t.Errorf("clause %d: expected expression, got %s", i, got.Children[i].Kind)
		}
	}
	if got.Children[3].Kind != ast.FunctionalBlock {
		t.Errorf("expected block last, got %s", got.Children[3].Kind)
	}

	mustNotParse(t, ParseDirectiveFor, "#for (i = 0; i < 10) { a = 1; };")
}

func TestParseDirectiveOn(t *testing.T) {
	got := mustParse(t, ParseDirectiveOn, "#on (ready) { a = 1; };")
	if got.Kind != ast.On || len(got.Children) != 2 {
		t.Fatalf("expected on with condition and block")
	}
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------
func TestParsePragmaticBlock(t *testing.T) {
	t.Run("mixed directives", func(t *testing.T) {
		source := "#type Int = &int; #var a = 1; #func get { #return a; }; #class Foo { #var b = 2; };"
		got := mustParse(t, ParsePragmaticBlock, source)
		if got.Kind != ast.PragmaticBlock || len(got.Children) != 4 {
			t.Fatalf("expected 4 statements, got %d", len(got.Children))
		}
		kinds := []ast.Kind{
			ast.TypeDefinition,
			ast.AnonVariableDefinitionAssignment,
			ast.ShorthandVoidMethodDefinition,
			ast.ClassDefinition,
		}
		for i, k := range kinds {
			if got.Children[i].Kind != k {
				t.Errorf("statement %d: expected %s, got %s", i, k, got.Children[i].Kind)
			}
		}
	})

	t.Run("identifier statement", func(t *testing.T) {
		got := mustParse(t, ParsePragmaticBlock, "foo;")
		if len(got.Children) != 1 {
			t.Fatalf("expected 1 statement, got %d", len(got.Children))
		}
		expectNode(t, got.Children[0], alnum("foo"))
	})

	t.Run("assignment statement", func(t *testing.T) {
		got := mustParse(t, ParsePragmaticBlock, "foo = 1 + 2;")
		expectNode(t, got.Children[0], ast.New(ast.SimpleAssignment, "=",
			alnum("foo"),
			ast.New(ast.Addition, "+", num("1"), num("2"))))
	})

	t.Run("empty statement is skipped", func(t *testing.T) {
		got := mustParse(t, ParsePragmaticBlock, ";;#var a = 1;;")
		if len(got.Children) != 1 {
			t.Errorf("expected 1 statement after skipping empties, got %d", len(got.Children))
		}
	})

	t.Run("functional statement is rejected", func(t *testing.T) {
		mustNotParse(t, ParsePragmaticBlock, "#return 1;")
	})

	t.Run("invalid substatement aborts the block", func(t *testing.T) {
		mustNotParse(t, ParsePragmaticBlock, "#var a = 1; #var = 2;")
	})
}

func TestParseFunctionalBlock(t *testing.T) {
	t.Run("statement mix", func(t *testing.T) {
		source := "#var a = 1; a = a + 1; #if (a == 2) { #return a; }; #return 0;"
		got := mustParse(t, ParseFunctionalBlock, source)
		if got.Kind != ast.FunctionalBlock || len(got.Children) != 4 {
			t.Fatalf("expected 4 statements, got %d", len(got.Children))
		}
	})

	t.Run("loops and jumps", func(t *testing.T) {
		source := "#while (1b) { #break; }; #for (i = 0; i < 2; i = i + 1) { #continue; };"
		got := mustParse(t, ParseFunctionalBlock, source)
		if len(got.Children) != 2 {
			t.Fatalf("expected 2 statements, got %d", len(got.Children))
		}
	})

	t.Run("print statement", func(t *testing.T) {
		got := mustParse(t, ParseFunctionalBlock, "#print 1 + 1;")
		if got.Children[0].Kind != ast.Print {
			t.Errorf("expected print node, got %s", got.Children[0].Kind)
		}
	})

	t.Run("class declaration is rejected", func(t *testing.T) {
		mustNotParse(t, ParseFunctionalBlock, "#class Foo {};")
	})
}

// ---------------------------------------------------------------------------
// Whole programs
// ---------------------------------------------------------------------------
func TestParseProgram(t *testing.T) {
	source := `
// minimum program
#var a = 1;
#func add(x) {
	#return x + 40;
};
#class Foo {
	#var b = 2;
};
add(2);
`
	program, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if program.Kind != ast.PragmaticBlock || len(program.Children) != 4 {
		t.Fatalf("expected 4 top level statements, got %d", len(program.Children))
	}
	if program.Children[3].Kind != ast.FunctionCall {
		t.Errorf("expected trailing call statement, got %s", program.Children[3].Kind)
	}
}

func TestParseProgramFirstErrorWins(t *testing.T) {
	_, err := Parse("#var a = ;\n#var b = 1;")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "Line: 1") {
		t.Errorf("expected the first error's position, got %q", err.Error())
	}
}
