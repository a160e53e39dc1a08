package calc

import (
	"errors"
	"strconv"
)

// NodeError is an error indicating a well-formed construct that expressions
// are not permitted to contain, e.g. a lambda or a comparison. It implements
// InputError.
type NodeError struct {
	// Col is the position of the construct.
	Col int
	// Kind names the construct.
	Kind string
}

func (err *NodeError) Error() string {
	return errpos(err.Col, "node not permitted in expression: "+err.Kind)
}

func (err *NodeError) Pos() int {
	return err.Col
}

// NameError is an error from a lookup for a name that is neither a variable,
// a function, nor a constant.
type NameError struct {
	// Name is the name that was missing.
	Name string
}

func (err *NameError) Error() string {
	return "undefined name: " + strconv.Quote(err.Name)
}

// TypeError is an error indicating a value used in a way its type does not
// allow: calling a number, or using a function as a number. It implements
// InputError.
type TypeError struct {
	// Col is the position of the offending use.
	Col int
	// Name is the name involved, if the value had one.
	Name string
	// Reason describes the misuse.
	Reason string
}

func (err *TypeError) Error() string {
	if err.Name == "" {
		return errpos(err.Col, err.Reason)
	}
	return errpos(err.Col, strconv.Quote(err.Name)+" "+err.Reason)
}

func (err *TypeError) Pos() int {
	return err.Col
}

// CallError is an error indicating a function called with a number of
// arguments it does not accept. It implements InputError.
type CallError struct {
	// Col is the position of the call's open bracket.
	Col int
	// Func is the name of the function.
	Func string
	// Len is the number of arguments in the call.
	Len int
}

func (err *CallError) Error() string {
	s := "s"
	if err.Len == 1 {
		s = ""
	}
	return errpos(err.Col, "cannot call "+err.Func+" with "+strconv.Itoa(err.Len)+" argument"+s)
}

func (err *CallError) Pos() int {
	return err.Col
}

// ArithmeticError is an error from a numeric operation, e.g. division by zero
// or a function argument outside the function's domain.
type ArithmeticError struct {
	// Op is the operator or function name, if any.
	Op string
	// Reason describes the failure.
	Reason string
}

func (err *ArithmeticError) Error() string {
	if err.Op == "" {
		return err.Reason
	}
	return err.Op + ": " + err.Reason
}

var (
	_ InputError = (*NodeError)(nil)
	_ InputError = (*TypeError)(nil)
	_ InputError = (*CallError)(nil)
)

// IsArithmeticError reports whether err, or any error it wraps, is an
// *ArithmeticError.
func IsArithmeticError(err error) bool {
	var ae *ArithmeticError
	return errors.As(err, &ae)
}
