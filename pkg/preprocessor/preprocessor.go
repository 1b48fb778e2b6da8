// Package preprocessor implements Candi file inclusion and macro expansion
// over the token stream produced by the lexer.
package preprocessor

import (
	"os"
	"path/filepath"

	"github.com/ayzg/cand-lang-legacy/pkg/diagnostics"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

// Macro is a parameterised token template bound by a macro declaration.
type Macro struct {
	Name   string
	Params []string
	Body   []lexer.Token
}

// Preprocess runs include expansion followed by macro expansion. The
// filename anchors relative include paths.
func Preprocess(tokens []lexer.Token, filename string) ([]lexer.Token, error) {
	expanded, err := ExpandIncludes(tokens, filename, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	return ExpandMacros(expanded)
}

func preprocErr(tok lexer.Token, format string, args ...any) error {
	return diagnostics.Errorf(diagnostics.EPreproc, tok.Lit, tok.Line, tok.Col, format, args...)
}

// ExpandIncludes replaces each `include '<path>';` statement with the fully
// include-expanded token stream of the referenced file. Paths resolve
// relative to the including file's directory; cycles are detected through
// the visited set keyed by canonical path.
func ExpandIncludes(tokens []lexer.Token, filename string, visited map[string]bool) ([]lexer.Token, error) {
	self, err := filepath.Abs(filename)
	if err != nil {
		self = filename
	}
	visited[self] = true
	defer delete(visited, self)

	baseDir := filepath.Dir(filename)
	out := make([]lexer.Token, 0, len(tokens))

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if tok.Kind != lexer.TokInclude {
			out = append(out, tok)
			i++
			continue
		}
		if i+2 >= len(tokens) ||
			tokens[i+1].Kind != lexer.TokStringLit ||
			tokens[i+2].Kind != lexer.TokEos {
			return nil, preprocErr(tok, "include must be followed by a quoted path and ';'")
		}

		path := unquote(tokens[i+1].Lit)
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(baseDir, path)
		}
		abs, err := filepath.Abs(full)
		if err != nil {
			abs = full
		}
		if visited[abs] {
			return nil, preprocErr(tokens[i+1], "include cycle detected: '%s'", path)
		}

		content, err := os.ReadFile(full)
		if err != nil {
			return nil, diagnostics.Errorf(diagnostics.EIO, tokens[i+1].Lit,
				tokens[i+1].Line, tokens[i+1].Col, "cannot read included file '%s': %v", path, err)
		}
		included, err := lexer.Tokenize(string(content))
		if err != nil {
			return nil, err
		}
		expanded, err := ExpandIncludes(included, full, visited)
		if err != nil {
			return nil, err
		}
		// Splice without the included file's EOF.
		if n := len(expanded); n > 0 && expanded[n-1].Kind == lexer.TokEOF {
			expanded = expanded[:n-1]
		}
		out = append(out, expanded...)
		i += 3
	}

	return out, nil
}

// unquote strips the surrounding single quotes of a string literal token and
// resolves its escapes.
func unquote(lit string) string {
	if len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'' {
		lit = lit[1 : len(lit)-1]
	}
	buf := make([]byte, 0, len(lit))
	for i := 0; i < len(lit); i++ {
		if lit[i] == '\\' && i+1 < len(lit) {
			i++
			switch lit[i] {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			default:
				buf = append(buf, lit[i])
			}
			continue
		}
		buf = append(buf, lit[i])
	}
	return string(buf)
}

// ExpandMacros collects `macro name (params) { body };` declarations,
// strips them from the stream, and splices the bound body at each use site
// with positional parameter substitution. Expansion is transitive with a
// per-name guard against self-recursive templates.
func ExpandMacros(tokens []lexer.Token) ([]lexer.Token, error) {
	macros := make(map[string]*Macro)
	rest := make([]lexer.Token, 0, len(tokens))

	for i := 0; i < len(tokens); {
		if tokens[i].Kind != lexer.TokMacro {
			rest = append(rest, tokens[i])
			i++
			continue
		}
		m, next, err := parseMacroDecl(tokens, i)
		if err != nil {
			return nil, err
		}
		if _, dup := macros[m.Name]; dup {
			return nil, preprocErr(tokens[i+1], "macro '%s' redefined", m.Name)
		}
		macros[m.Name] = m
		i = next
	}

	return substitute(rest, macros, make(map[string]bool))
}

func parseMacroDecl(tokens []lexer.Token, i int) (*Macro, int, error) {
	// macro <alnumus> ( <alnumus>,... ) { <body> } ;
	at := tokens[i]
	if i+1 >= len(tokens) || tokens[i+1].Kind != lexer.TokAlnumus {
		return nil, 0, preprocErr(at, "macro declaration must name an alnumus")
	}
	name := tokens[i+1].Lit
	i += 2

	if i >= len(tokens) || tokens[i].Kind != lexer.TokOpenScope {
		return nil, 0, preprocErr(tokens[i-1], "macro '%s' must declare a parameter list", name)
	}
	i++
	var params []string
	for i < len(tokens) && tokens[i].Kind != lexer.TokCloseScope {
		switch tokens[i].Kind {
		case lexer.TokAlnumus:
			params = append(params, tokens[i].Lit)
		case lexer.TokComma:
		default:
			return nil, 0, preprocErr(tokens[i], "macro '%s': parameter must be an alnumus", name)
		}
		i++
	}
	if i >= len(tokens) {
		return nil, 0, preprocErr(at, "macro '%s': unterminated parameter list", name)
	}
	i++ // consume ')'

	if i >= len(tokens) || tokens[i].Kind != lexer.TokOpenList {
		return nil, 0, preprocErr(at, "macro '%s' must declare a '{' body", name)
	}
	depth := 1
	i++
	bodyStart := i
	for i < len(tokens) && depth > 0 {
		switch tokens[i].Kind {
		case lexer.TokOpenList:
			depth++
		case lexer.TokCloseList:
			depth--
		case lexer.TokEOF:
			return nil, 0, preprocErr(at, "macro '%s': unterminated body", name)
		}
		i++
	}
	if depth != 0 {
		return nil, 0, preprocErr(at, "macro '%s': unterminated body", name)
	}
	body := append([]lexer.Token(nil), tokens[bodyStart:i-1]...)

	if i >= len(tokens) || tokens[i].Kind != lexer.TokEos {
		return nil, 0, preprocErr(at, "macro '%s' must end with ';'", name)
	}
	return &Macro{Name: name, Params: params, Body: body}, i + 1, nil
}

// substitute expands macro use sites `name(args...)` in tokens. The
// expanding set carries names currently being expanded to stop infinite
// self-expansion.
func substitute(tokens []lexer.Token, macros map[string]*Macro, expanding map[string]bool) ([]lexer.Token, error) {
	out := make([]lexer.Token, 0, len(tokens))

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		m := (*Macro)(nil)
		if tok.Kind == lexer.TokAlnumus {
			m = macros[tok.Lit]
		}
		if m == nil || i+1 >= len(tokens) || tokens[i+1].Kind != lexer.TokOpenScope {
			out = append(out, tok)
			i++
			continue
		}
		if expanding[m.Name] {
			return nil, preprocErr(tok, "recursive expansion of macro '%s'", m.Name)
		}

		args, next, err := parseMacroArgs(tokens, i+1, m.Name)
		if err != nil {
			return nil, err
		}
		if len(args) != len(m.Params) {
			return nil, preprocErr(tok, "macro '%s' expects %d arguments, got %d",
				m.Name, len(m.Params), len(args))
		}

		byName := make(map[string][]lexer.Token, len(m.Params))
		for p, param := range m.Params {
			byName[param] = args[p]
		}

		// Body tokens take the call-site position so downstream diagnostics
		// point at the expansion.
		var spliced []lexer.Token
		for _, bt := range m.Body {
			if bt.Kind == lexer.TokAlnumus {
				if arg, ok := byName[bt.Lit]; ok {
					for _, at := range arg {
						at.Line, at.Col = tok.Line, tok.Col
						spliced = append(spliced, at)
					}
					continue
				}
			}
			bt.Line, bt.Col = tok.Line, tok.Col
			spliced = append(spliced, bt)
		}

		expanding[m.Name] = true
		expanded, err := substitute(spliced, macros, expanding)
		delete(expanding, m.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
		i = next
	}

	return out, nil
}

// parseMacroArgs splits the bracketed argument tokens at depth-zero commas.
// The cursor starts at the opening '('.
func parseMacroArgs(tokens []lexer.Token, i int, name string) ([][]lexer.Token, int, error) {
	open := tokens[i]
	depth := 1
	i++
	var args [][]lexer.Token
	var cur []lexer.Token
	sawAny := false

	for i < len(tokens) {
		t := tokens[i]
		switch {
		case lexer.IsOpenScope(t.Kind):
			depth++
			cur = append(cur, t)
		case lexer.IsCloseScope(t.Kind):
			depth--
			if depth == 0 {
				if sawAny || len(cur) > 0 {
					args = append(args, cur)
				}
				return args, i + 1, nil
			}
			cur = append(cur, t)
		case t.Kind == lexer.TokComma && depth == 1:
			args = append(args, cur)
			cur = nil
			sawAny = true
		case t.Kind == lexer.TokEOF:
			return nil, 0, preprocErr(open, "unterminated argument list for macro '%s'", name)
		default:
			cur = append(cur, t)
		}
		i++
	}
	return nil, 0, preprocErr(open, "unterminated argument list for macro '%s'", name)
}
