// Package evaluator implements the Candi constant evaluator: a tree-walking
// interpreter over a lexically scoped environment.
package evaluator

import (
	"fmt"
	"strconv"

	"github.com/ayzg/cand-lang-legacy/pkg/ast"
)

// Value is the interface for all Candi runtime values.
// The sealed marker restricts implementations to this package.
type Value interface {
	value() // sealed marker
	Display() string
}

// Number is a signed integer value.
type Number struct {
	Value int64
}

func (Number) value()            {}
func (v Number) Display() string { return strconv.FormatInt(v.Value, 10) }

// Real is a floating point value.
type Real struct {
	Value float64
}

func (Real) value()            {}
func (v Real) Display() string { return strconv.FormatFloat(v.Value, 'g', -1, 64) }

// Unsigned is an unsigned integer value.
type Unsigned struct {
	Value uint32
}

func (Unsigned) value()            {}
func (v Unsigned) Display() string { return strconv.FormatUint(uint64(v.Value), 10) + "u" }

// Byte is an octet value.
type Byte struct {
	Value uint8
}

func (Byte) value()            {}
func (v Byte) Display() string { return strconv.FormatUint(uint64(v.Value), 10) + "c" }

// Bit is a boolean value.
type Bit struct {
	Value bool
}

func (Bit) value() {}
func (v Bit) Display() string {
	if v.Value {
		return "1b"
	}
	return "0b"
}

// Str is a byte-string value.
type Str struct {
	Value string
}

func (Str) value()            {}
func (v Str) Display() string { return v.Value }

// NoneValue is the none value.
type NoneValue struct{}

func (NoneValue) value()          {}
func (NoneValue) Display() string { return "none" }

// Function is a declared function capturing its declaring scope.
type Function struct {
	Name     string
	Params   []string
	Body     *ast.Node // functional block
	Captured *Env
}

func (*Function) value()            {}
func (f *Function) Display() string { return fmt.Sprintf("func %s", f.Name) }

// Object is the result of evaluating a class declaration: its member
// bindings collected from the class body's object scope.
type Object struct {
	Name    string
	Members map[string]Value
}

func (*Object) value()            {}
func (o *Object) Display() string { return fmt.Sprintf("object %s", o.Name) }

// Truthy reports the boolean interpretation of a value. Bits are their own
// truth; numbers are truthy when non-zero; none is falsy.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case Bit:
		return val.Value
	case Number:
		return val.Value != 0
	case Real:
		return val.Value != 0
	case Unsigned:
		return val.Value != 0
	case Byte:
		return val.Value != 0
	case Str:
		return val.Value != ""
	case NoneValue:
		return false
	default:
		return true
	}
}

// TypeName returns the value's type tag for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case Number:
		return "NUMBER"
	case Real:
		return "REAL"
	case Unsigned:
		return "UNSIGNED"
	case Byte:
		return "BYTE"
	case Bit:
		return "BIT"
	case Str:
		return "STRING"
	case NoneValue:
		return "NONE"
	case *Function:
		return "FUNCTION"
	case *Object:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}
