package calc

import (
	"math"
	"math/big"
	"sort"

	"github.com/cockroachdb/apd/v3"
	"github.com/zephyrtronium/bigfloat"
)

// Func is a function from decimals to decimals.
type Func interface {
	// Call evaluates the function. The function arguments are passed in
	// invoc, which has a length for which CanCall returned true. Call may
	// modify the elements of invoc. The function must set r to its result and
	// should not use the value of r otherwise. Results need not be rounded;
	// the evaluator rounds them.
	Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error

	// CanCall returns whether the function can be called with n arguments.
	CanCall(n int) bool
}

var globalfuncs = map[string]Func{
	"sin":   float64fn(math.Sin),
	"cos":   float64fn(math.Cos),
	"tan":   float64fn(math.Tan),
	"asin":  float64fn(math.Asin),
	"acos":  float64fn(math.Acos),
	"atan":  float64fn(math.Atan),
	"atan2": float64dyadic(math.Atan2),
	"sinh":  float64fn(math.Sinh),
	"cosh":  float64fn(math.Cosh),
	"tanh":  float64fn(math.Tanh),

	"exp":  monadic((*apd.Context).Exp),
	"ln":   logarithm{natural: true},
	"log":  logarithm{},
	"sqrt": monadic((*apd.Context).Sqrt),
	"pow":  arithop((*Arith).Pow),
	"abs":  monadic((*apd.Context).Abs),

	"fact":      factorial{},
	"factorial": factorial{},

	"round": rounder{},
	"floor": monadic((*apd.Context).Floor),
	"ceil":  monadic((*apd.Context).Ceil),

	"deg": angle{toDegrees: true},
	"rad": angle{},
}

// Funcs returns the names of the functions available to expressions, in
// sorted order.
func Funcs() []string {
	r := make([]string, 0, len(globalfuncs))
	for k := range globalfuncs {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// Constants returns the names of the constants available to expressions, in
// sorted order.
func Constants() []string {
	return []string{"e", "pi"}
}

// constants computes pi and e to the precision of a.
func constants(a *Arith) map[string]*apd.Decimal {
	// Four bits per digit is a little more than enough.
	prec := uint(a.Digits())*4 + 16
	pi, err := a.FromBig(bigfloat.Pi(new(big.Float).SetPrec(prec)))
	if err != nil {
		panic("calc: computing pi: " + err.Error())
	}
	var one big.Float
	one.SetPrec(prec).SetInt64(1)
	e, err := a.FromBig(bigfloat.Exp(new(big.Float).SetPrec(prec), &one))
	if err != nil {
		panic("calc: computing e: " + err.Error())
	}
	return map[string]*apd.Decimal{"pi": pi, "e": e}
}

type monadicfn struct {
	f func(c *apd.Context, d, x *apd.Decimal) (apd.Condition, error)
}

func (m monadicfn) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	cond, err := m.f(&ctx.arith.c, r, invoc[0])
	return check("", r, cond, err)
}

func (m monadicfn) CanCall(n int) bool {
	return n == 1
}

// monadic wraps a decimal function of one variable into a Func. The
// functions of apd.Context have the right signature.
func monadic(f func(c *apd.Context, d, x *apd.Decimal) (apd.Condition, error)) Func {
	return monadicfn{f}
}

// arithop adapts an operator of Arith into a Func of two arguments.
type arithop func(a *Arith, d, x, y *apd.Decimal) error

func (f arithop) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	return f(ctx.arith, r, invoc[0], invoc[1])
}

func (arithop) CanCall(n int) bool {
	return n == 2
}

// float64fn is a function of one variable computed in native floating point.
// The result is as exact as the float, not the working precision.
type float64fn func(float64) float64

func (f float64fn) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	x, err := ctx.arith.Float64(invoc[0])
	if err != nil {
		return err
	}
	return setFloat(ctx.arith, r, f(x))
}

func (float64fn) CanCall(n int) bool {
	return n == 1
}

// float64dyadic is a function of two variables computed in native floating
// point.
type float64dyadic func(x, y float64) float64

func (f float64dyadic) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	x, err := ctx.arith.Float64(invoc[0])
	if err != nil {
		return err
	}
	y, err := ctx.arith.Float64(invoc[1])
	if err != nil {
		return err
	}
	return setFloat(ctx.arith, r, f(x, y))
}

func (float64dyadic) CanCall(n int) bool {
	return n == 2
}

// setFloat sets r to the decimal value of a float result.
func setFloat(a *Arith, r *apd.Decimal, v float64) error {
	switch {
	case math.IsNaN(v):
		return &ArithmeticError{Reason: "math domain error"}
	case math.IsInf(v, 0):
		return &ArithmeticError{Reason: "math range error"}
	}
	d, err := a.FromFloat64(v)
	if err != nil {
		return err
	}
	r.Set(d)
	return nil
}

// logarithm is ln, or log with an optional base that defaults to 10.
type logarithm struct {
	natural bool
}

func (l logarithm) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	x := invoc[0]
	if x.Sign() <= 0 {
		return &ArithmeticError{Reason: "math domain error"}
	}
	if l.natural {
		cond, err := ctx.arith.c.Ln(r, x)
		return check("", r, cond, err)
	}
	if len(invoc) == 1 {
		cond, err := ctx.arith.c.Log10(r, x)
		return check("", r, cond, err)
	}
	b := invoc[1]
	switch {
	case b.Sign() <= 0:
		return &ArithmeticError{Reason: "math domain error"}
	case b.Cmp(decimalOne) == 0:
		return &ArithmeticError{Reason: "division by zero"}
	}
	// Extra digits let exact results like log(8, 2) round to exact values.
	c := ctx.arith.c.WithPrecision(ctx.arith.c.Precision + 10)
	var lx, lb apd.Decimal
	cond, err := c.Ln(&lx, x)
	if err := check("", &lx, cond, err); err != nil {
		return err
	}
	cond, err = c.Ln(&lb, b)
	if err := check("", &lb, cond, err); err != nil {
		return err
	}
	cond, err = c.Quo(r, &lx, &lb)
	return check("", r, cond, err)
}

func (l logarithm) CanCall(n int) bool {
	if l.natural {
		return n == 1
	}
	return n == 1 || n == 2
}

// MaxFactorial is the largest argument accepted by fact and factorial.
const MaxFactorial = 10000

// factorial is the factorial of a non-negative integer, computed exactly
// before rounding.
type factorial struct{}

func (factorial) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	x := invoc[0]
	if !isInteger(x) {
		return &ArithmeticError{Reason: "only accepts integral values"}
	}
	if x.Negative && !x.IsZero() {
		return &ArithmeticError{Reason: "not defined for negative values"}
	}
	n, err := x.Int64()
	if err != nil || n > MaxFactorial {
		return &ArithmeticError{Reason: "argument too large"}
	}
	var b apd.BigInt
	b.MulRange(1, n)
	return ctx.arith.Round(r, apd.NewWithBigInt(&b, 0))
}

func (factorial) CanCall(n int) bool {
	return n == 1
}

// rounder rounds half to even at a number of decimal places, zero by
// default. Negative places round to tens, hundreds, and so on.
type rounder struct{}

func (rounder) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	x := invoc[0]
	var places int64
	if len(invoc) == 2 {
		if !isInteger(invoc[1]) {
			return &ArithmeticError{Reason: "ndigits must be an integer"}
		}
		var err error
		places, err = invoc[1].Int64()
		if err != nil || places > math.MaxInt32 || places < -math.MaxInt32 {
			return &ArithmeticError{Reason: "ndigits out of range"}
		}
	}
	if int64(x.Exponent) >= -places {
		// Already no finer than the requested place.
		r.Set(x)
		return nil
	}
	cond, err := ctx.arith.c.Quantize(r, x, int32(-places))
	return check("", r, cond, err)
}

func (rounder) CanCall(n int) bool {
	return n == 1 || n == 2
}

// angle converts between radians and degrees.
type angle struct {
	toDegrees bool
}

func (g angle) Call(ctx *Context, invoc []*apd.Decimal, r *apd.Decimal) error {
	pi := ctx.consts["pi"]
	half := apd.New(180, 0)
	var t apd.Decimal
	if g.toDegrees {
		if err := ctx.arith.Mul(&t, invoc[0], half); err != nil {
			return err
		}
		return ctx.arith.Quo(r, &t, pi)
	}
	if err := ctx.arith.Mul(&t, invoc[0], pi); err != nil {
		return err
	}
	return ctx.arith.Quo(r, &t, half)
}

func (angle) CanCall(n int) bool {
	return n == 1
}
