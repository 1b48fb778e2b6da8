package parser

import (
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
)

// ScopeResult is the half-open token range [Begin, End) of a balanced
// bracket pair or a delimited statement. Begin indexes the opening token and
// End is one past the closing token.
type ScopeResult struct {
	Valid bool
	Begin int
	End   int
	Err   string
}

// ContainedBegin is the first token inside the scope.
func (s ScopeResult) ContainedBegin() int { return s.Begin + 1 }

// ContainedEnd is one past the last token inside the scope.
func (s ScopeResult) ContainedEnd() int { return s.End - 1 }

// IsEmpty reports whether the scope contains no tokens.
func (s ScopeResult) IsEmpty() bool { return s.ContainedEnd() <= s.ContainedBegin() }

func invalidScope(at int, msg string) ScopeResult {
	return ScopeResult{Valid: false, Begin: at, End: at, Err: msg}
}

// FindScope returns the range of the balanced bracket pair opening at begin.
// Only nesting of the requested opener's family decides termination; other
// bracket families pass through as long as they are themselves balanced.
func FindScope(toks []lexer.Token, begin, end int) ScopeResult {
	if begin >= end || !lexer.IsOpenScope(toks[begin].Kind) {
		return invalidScope(begin, "expected an opening scope token")
	}
	open := toks[begin].Kind
	close := lexer.CloserFor(open)
	depth := 0
	var others []lexer.Kind // unclosed openers of the other families
	for i := begin; i < end; i++ {
		k := toks[i].Kind
		switch {
		case k == open:
			depth++
		case k == close:
			depth--
			if depth == 0 {
				if len(others) != 0 {
					return invalidScope(begin, "unbalanced brackets inside "+toks[begin].Lit)
				}
				return ScopeResult{Valid: true, Begin: begin, End: i + 1}
			}
		case lexer.IsOpenScope(k):
			others = append(others, k)
		case lexer.IsCloseScope(k):
			if len(others) == 0 || lexer.CloserFor(others[len(others)-1]) != k {
				return invalidScope(i, "unbalanced "+toks[i].Lit+" inside "+toks[begin].Lit)
			}
			others = others[:len(others)-1]
		}
	}
	return invalidScope(begin, "mismatched "+toks[begin].Lit)
}

// FindParenScope finds a ( ) scope opening at begin.
func FindParenScope(toks []lexer.Token, begin, end int) ScopeResult {
	if begin < end && toks[begin].Kind != lexer.TokOpenScope {
		return invalidScope(begin, "expected '('")
	}
	return FindScope(toks, begin, end)
}

// FindListScope finds a { } scope opening at begin.
func FindListScope(toks []lexer.Token, begin, end int) ScopeResult {
	if begin < end && toks[begin].Kind != lexer.TokOpenList {
		return invalidScope(begin, "expected '{'")
	}
	return FindScope(toks, begin, end)
}

// FindFrameScope finds a [ ] scope opening at begin.
func FindFrameScope(toks []lexer.Token, begin, end int) ScopeResult {
	if begin < end && toks[begin].Kind != lexer.TokOpenFrame {
		return invalidScope(begin, "expected '['")
	}
	return FindScope(toks, begin, end)
}

// FindStatement returns the range from an opening token of kind open to the
// first terminator at depth zero, skipping over balanced bracket interiors.
// A second occurrence of the opening kind before the terminator invalidates
// the statement; use FindOpenStatement to permit repeats.
func FindStatement(toks []lexer.Token, open, terminator lexer.Kind, begin, end int) ScopeResult {
	return findStatement(toks, open, terminator, begin, end, false)
}

// FindOpenStatement is FindStatement but the opening kind may reappear
// inside the statement (identifier-led statements reuse their identifier).
func FindOpenStatement(toks []lexer.Token, open, terminator lexer.Kind, begin, end int) ScopeResult {
	return findStatement(toks, open, terminator, begin, end, true)
}

func findStatement(toks []lexer.Token, open, terminator lexer.Kind, begin, end int, allowRepeats bool) ScopeResult {
	if begin >= end || toks[begin].Kind != open {
		return invalidScope(begin, "statement does not start with its opening token")
	}
	depth := 0
	// A statement led by a bracket token owns that bracket's interior.
	if lexer.IsOpenScope(open) {
		depth = 1
	}
	for i := begin + 1; i < end; i++ {
		k := toks[i].Kind
		switch {
		case lexer.IsOpenScope(k):
			depth++
		case lexer.IsCloseScope(k):
			depth--
			if depth < 0 {
				return invalidScope(i, "unbalanced "+toks[i].Lit+" inside statement")
			}
		case k == terminator && depth == 0:
			return ScopeResult{Valid: true, Begin: begin, End: i + 1}
		case k == open && depth == 0 && !allowRepeats:
			return invalidScope(i, "unexpected second "+toks[i].Lit+" before statement end")
		case k == lexer.TokEOF:
			return invalidScope(i, "unterminated statement")
		}
	}
	return invalidScope(begin, "unterminated statement")
}

// Range is a half-open token index range.
type Range struct {
	Begin int
	End   int
}

// FindSeparatedListScopes partitions the content of the bracketed region
// opening at begin into child ranges split at depth-zero separators. An
// empty region yields no ranges.
func FindSeparatedListScopes(toks []lexer.Token, begin, end int, sep lexer.Kind) ([]Range, ScopeResult) {
	scope := FindScope(toks, begin, end)
	if !scope.Valid {
		return nil, scope
	}
	if scope.IsEmpty() {
		return nil, scope
	}

	var ranges []Range
	depth := 0
	chunk := scope.ContainedBegin()
	for i := scope.ContainedBegin(); i < scope.ContainedEnd(); i++ {
		k := toks[i].Kind
		switch {
		case lexer.IsOpenScope(k):
			depth++
		case lexer.IsCloseScope(k):
			depth--
		case k == sep && depth == 0:
			ranges = append(ranges, Range{Begin: chunk, End: i})
			chunk = i + 1
		}
	}
	ranges = append(ranges, Range{Begin: chunk, End: scope.ContainedEnd()})
	return ranges, scope
}
