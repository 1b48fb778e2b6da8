// Package diagnostics defines Candi diagnostic types for lex, preprocess,
// parse and evaluation errors.
package diagnostics

import "fmt"

// Diagnostic code constants, one per pipeline stage.
const (
	ELex     = "E_LEX"
	EPreproc = "E_PREPROC"
	EParse   = "E_PARSE"
	EEval    = "E_EVAL"
	EIO      = "E_IO"
)

// Diagnostic describes a single error with the offending token's text and
// position. Line and Col are 1-based; zero means position unknown.
type Diagnostic struct {
	Code     string
	Message  string
	Offender string
	Line     int
	Col      int
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message, offender string, line, col int) Diagnostic {
	return Diagnostic{
		Code:     code,
		Message:  message,
		Offender: offender,
		Line:     line,
		Col:      col,
	}
}

// String renders the diagnostic in the fixed report form:
//
//	<kind> <message>. Offending token: <literal>| Line: <n>| Col: <m>
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s. Offending token: %s| Line: %d| Col: %d",
		d.Code, d.Message, d.Offender, d.Line, d.Col)
}

// Error is a Diagnostic that satisfies the error interface. Each stage wraps
// its first diagnostic in one of these and aborts.
type Error struct {
	Diag Diagnostic
}

func (e *Error) Error() string { return e.Diag.String() }

// Errorf creates a stage error with a formatted message.
func Errorf(code, offender string, line, col int, format string, args ...any) *Error {
	return &Error{Diag: MakeDiag(code, fmt.Sprintf(format, args...), offender, line, col)}
}
