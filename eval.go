package calc

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Context is a context for evaluating expressions: the variables, functions,
// and constants visible to them, along with the arithmetic that computes
// them. It is not safe to use a Context concurrently.
type Context struct {
	arith  *Arith
	stack  []*apd.Decimal
	nums   map[string]*apd.Decimal
	names  map[string]*apd.Decimal
	consts map[string]*apd.Decimal
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type (
	varopt struct {
		name string
		val  *apd.Decimal
	}
	varsopt   map[string]*apd.Decimal
	digitsopt int
)

func (varopt) ctxOption()    {}
func (varsopt) ctxOption()   {}
func (digitsopt) ctxOption() {}

// SetVar sets the value of a variable in the context.
func SetVar(name string, val *apd.Decimal) ContextOption {
	return varopt{name, val}
}

// SetVars sets the values of any number of variables in the context.
func SetVars(vars map[string]*apd.Decimal) ContextOption {
	return varsopt(vars)
}

// Digits sets the number of significant digits in results.
func Digits(n int) ContextOption {
	return digitsopt(n)
}

// NewContext creates a new evaluation context. If no digits are given, the
// default is DefaultDigits.
func NewContext(opts ...ContextOption) *Context {
	var ctx Context
	return ctx.Clone(opts...)
}

// Eval evaluates an expression and returns its result rounded to the
// context's digits. The whole expression is checked for constructs that are
// not permitted before any of it is evaluated.
func (ctx *Context) Eval(e *Expr) (*apd.Decimal, error) {
	if len(ctx.stack) != 0 {
		panic("calc: Eval during Eval")
	}
	if err := permit(e.n); err != nil {
		return nil, err
	}
	if err := e.n.eval(ctx); err != nil {
		ctx.stack = ctx.stack[:0]
		return nil, err
	}
	if len(ctx.stack) != 1 {
		panic("calc: inconsistent stack: " + strconv.Itoa(len(ctx.stack)) + " items (bad AST?)")
	}
	r := new(apd.Decimal).Set(ctx.pop())
	if err := ctx.arith.Round(r, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Set sets the value of a variable. Returns ctx for chaining. Calling Set
// while the context is being used to evaluate an expression panics.
func (ctx *Context) Set(name string, value *apd.Decimal) *Context {
	if len(ctx.stack) > 0 {
		panic("calc: Set on in-use context")
	}
	ctx.names[name] = new(apd.Decimal).Set(value)
	return ctx
}

// Lookup returns a copy of the value of a variable. If there is no such
// variable in the context, then the result is nil.
func (ctx *Context) Lookup(name string) *apd.Decimal {
	v := ctx.names[name]
	if v == nil {
		return nil
	}
	return new(apd.Decimal).Set(v)
}

// Digits returns the number of significant digits in results.
func (ctx *Context) Digits() int {
	return ctx.arith.Digits()
}

// Arith returns the arithmetic the context uses.
func (ctx *Context) Arith() *Arith {
	return ctx.arith
}

// Clone creates a copy of a context and applies options to it.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		arith:  ctx.arith,
		nums:   ctx.nums,
		names:  make(map[string]*apd.Decimal, len(ctx.names)),
		consts: ctx.consts,
	}
	// First, check for a digits setting. Loop backward so we apply the last
	// one.
	for i := len(opts) - 1; i >= 0; i-- {
		if d, ok := opts[i].(digitsopt); ok {
			if n.arith == nil || n.arith.Digits() != int(d) {
				n.arith = NewArith(int(d))
			}
			break
		}
	}
	if n.arith == nil {
		n.arith = NewArith(DefaultDigits)
	}
	// Constants are computed to the working precision, so they change along
	// with it. Variables keep their exact values.
	if n.arith != ctx.arith || n.consts == nil {
		n.consts = constants(n.arith)
	}
	// Parsed literals are exact, so they survive a change of digits.
	n.nums = make(map[string]*apd.Decimal, len(ctx.nums))
	for k, v := range ctx.nums {
		n.nums[k] = v
	}
	for name, val := range ctx.names {
		// Values are never modified in place, so sharing is fine.
		n.names[name] = val
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		switch opt := opt.(type) {
		case varopt:
			n.names[opt.name] = new(apd.Decimal).Set(opt.val)
		case varsopt:
			for k, v := range opt {
				n.names[k] = new(apd.Decimal).Set(v)
			}
		case digitsopt:
			// Already done. Do nothing.
		default:
			panic("calc: unknown option type")
		}
	}
	return &n
}

// push ensures a settable value on the stack.
func (ctx *Context) push() *apd.Decimal {
	if len(ctx.stack) < cap(ctx.stack) {
		ctx.stack = ctx.stack[:len(ctx.stack)+1]
		if ctx.stack[len(ctx.stack)-1] == nil {
			ctx.stack[len(ctx.stack)-1] = new(apd.Decimal)
		}
	} else {
		ctx.stack = append(ctx.stack, new(apd.Decimal))
	}
	return ctx.stack[len(ctx.stack)-1]
}

// pop removes the top from the stack and returns it. The returned value may be
// modified by future node evaluations.
func (ctx *Context) pop() *apd.Decimal {
	r := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	return r
}

// top is a shortcut to get the top element of the stack.
func (ctx *Context) top() *apd.Decimal {
	return ctx.stack[len(ctx.stack)-1]
}

// num gets a possibly cached number from its text.
func (ctx *Context) num(s string) (*apd.Decimal, error) {
	if r := ctx.nums[s]; r != nil {
		return r, nil
	}
	r, err := ctx.arith.Parse(s)
	if err != nil {
		return nil, err
	}
	ctx.nums[s] = r
	return r, nil
}

// permit checks that every node in a tree is of a kind that may be
// evaluated. Anything not listed here is refused.
func permit(n *node) error {
	switch n.kind {
	case nodeNum, nodeName:
		return nil
	case nodeNeg, nodePos:
		return permit(n.left)
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow, nodeMod, nodeFloorDiv:
		if err := permit(n.left); err != nil {
			return err
		}
		return permit(n.right)
	case nodeCall:
		if err := permit(n.left); err != nil {
			return err
		}
		for _, a := range n.args {
			if err := permit(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return &NodeError{Col: n.pos, Kind: n.kind.describe()}
	}
}

// binary is the arithmetic for each binary operator node.
var binary = map[nodeKind]func(a *Arith, d, x, y *apd.Decimal) error{
	nodeAdd:      (*Arith).Add,
	nodeSub:      (*Arith).Sub,
	nodeMul:      (*Arith).Mul,
	nodeDiv:      (*Arith).Quo,
	nodePow:      (*Arith).Pow,
	nodeMod:      (*Arith).Mod,
	nodeFloorDiv: (*Arith).FloorQuo,
}

// eval pushes the node's value to the context's stack.
func (n *node) eval(ctx *Context) error {
	switch n.kind {
	case nodeNum:
		v, err := ctx.num(n.name)
		if err != nil {
			return err
		}
		ctx.push().Set(v)
	case nodeName:
		if v := ctx.names[n.name]; v != nil {
			ctx.push().Set(v)
			return nil
		}
		if globalfuncs[n.name] != nil {
			return &TypeError{Col: n.pos, Name: n.name, Reason: "is a function, not a number"}
		}
		if v := ctx.consts[n.name]; v != nil {
			ctx.push().Set(v)
			return nil
		}
		return &NameError{Name: n.name}
	case nodeCall:
		f, err := ctx.callee(n.left)
		if err != nil {
			return err
		}
		r := ctx.push()
		k := len(ctx.stack)
		for _, a := range n.args {
			if err := a.eval(ctx); err != nil {
				return err
			}
		}
		invoc := ctx.stack[k:len(ctx.stack):len(ctx.stack)]
		if !f.CanCall(len(invoc)) {
			return &CallError{Col: n.pos, Func: n.left.name, Len: len(invoc)}
		}
		if err := f.Call(ctx, invoc, r); err != nil {
			var ae *ArithmeticError
			if errors.As(err, &ae) {
				return &ArithmeticError{Op: n.left.name, Reason: ae.Reason}
			}
			return err
		}
		ctx.stack = ctx.stack[:k]
	case nodeNeg:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		v := ctx.top()
		return ctx.arith.Neg(v, v)
	case nodePos:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		v := ctx.top()
		return ctx.arith.Round(v, v)
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow, nodeMod, nodeFloorDiv:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		return binary[n.kind](ctx.arith, l, l, r)
	default:
		// permit already refuses these, but never evaluate what it missed.
		return &NodeError{Col: n.pos, Kind: n.kind.describe()}
	}
	return nil
}

// callee resolves the function a call node invokes. Only names of functions
// can be called.
func (ctx *Context) callee(n *node) (Func, error) {
	if n.kind != nodeName {
		return nil, &TypeError{Col: n.pos, Reason: "call target is not a function name"}
	}
	if ctx.names[n.name] != nil {
		return nil, &TypeError{Col: n.pos, Name: n.name, Reason: "is a variable, not a function"}
	}
	if f := globalfuncs[n.name]; f != nil {
		return f, nil
	}
	if ctx.consts[n.name] != nil {
		return nil, &TypeError{Col: n.pos, Name: n.name, Reason: "is a constant, not a function"}
	}
	return nil, &NameError{Name: n.name}
}

// Eval is a shortcut to parse an expression and return its result using the
// default functions.
func Eval(src io.RuneScanner, opts ...ContextOption) (*apd.Decimal, error) {
	a, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return NewContext(opts...).Eval(a)
}

// EvalString is a shortcut to parse and evaluate a string expression.
func EvalString(src string, opts ...ContextOption) (*apd.Decimal, error) {
	return Eval(strings.NewReader(src), opts...)
}
