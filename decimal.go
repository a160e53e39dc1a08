package calc

import (
	"math"
	"math/big"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// DefaultDigits is the number of significant digits to which results are
// rounded unless Digits says otherwise.
const DefaultDigits = 28

// Arith performs decimal arithmetic rounded to a fixed number of significant
// digits. No operation produces a NaN or an infinity; those cases are
// reported as *ArithmeticError instead.
type Arith struct {
	c apd.Context
}

// NewArith creates decimal arithmetic with the given number of significant
// digits. If digits is not positive, DefaultDigits is used.
func NewArith(digits int) *Arith {
	if digits <= 0 {
		digits = DefaultDigits
	}
	return &Arith{c: apd.Context{
		Precision:   uint32(digits),
		MaxExponent: apd.MaxExponent,
		MinExponent: apd.MinExponent,
		Traps:       apd.DefaultTraps,
		Rounding:    apd.RoundHalfEven,
	}}
}

// Digits returns the number of significant digits in results.
func (a *Arith) Digits() int {
	return int(a.c.Precision)
}

var decimalOne = apd.New(1, 0)

// check converts the outcome of an apd operation to an error.
func check(op string, d *apd.Decimal, cond apd.Condition, err error) error {
	switch {
	case cond.DivisionByZero():
		return &ArithmeticError{Op: op, Reason: "division by zero"}
	case cond.DivisionUndefined(), cond.InvalidOperation():
		return &ArithmeticError{Op: op, Reason: "math domain error"}
	case cond.DivisionImpossible():
		return &ArithmeticError{Op: op, Reason: "integer part of result too large"}
	case cond.Overflow(), cond.SystemOverflow():
		return &ArithmeticError{Op: op, Reason: "result too large"}
	case cond.SystemUnderflow():
		return &ArithmeticError{Op: op, Reason: "result too small"}
	case err != nil:
		return &ArithmeticError{Op: op, Reason: err.Error()}
	case d.Form != apd.Finite:
		return &ArithmeticError{Op: op, Reason: "math range error"}
	}
	return nil
}

// Add sets d = x + y.
func (a *Arith) Add(d, x, y *apd.Decimal) error {
	cond, err := a.c.Add(d, x, y)
	return check("+", d, cond, err)
}

// Sub sets d = x - y.
func (a *Arith) Sub(d, x, y *apd.Decimal) error {
	cond, err := a.c.Sub(d, x, y)
	return check("-", d, cond, err)
}

// Mul sets d = x * y.
func (a *Arith) Mul(d, x, y *apd.Decimal) error {
	cond, err := a.c.Mul(d, x, y)
	return check("*", d, cond, err)
}

// Quo sets d = x / y.
func (a *Arith) Quo(d, x, y *apd.Decimal) error {
	if y.IsZero() {
		return &ArithmeticError{Op: "/", Reason: "division by zero"}
	}
	cond, err := a.c.Quo(d, x, y)
	return check("/", d, cond, err)
}

// Mod sets d to the remainder of x / y. The remainder has the sign of y,
// so that x == y*FloorQuo(x, y) + Mod(x, y).
func (a *Arith) Mod(d, x, y *apd.Decimal) error {
	if y.IsZero() {
		return &ArithmeticError{Op: "%", Reason: "modulo by zero"}
	}
	var r apd.Decimal
	cond, err := a.c.Rem(&r, x, y)
	if err := check("%", &r, cond, err); err != nil {
		return err
	}
	if !r.IsZero() && r.Negative != y.Negative {
		cond, err := a.c.Add(&r, &r, y)
		if err := check("%", &r, cond, err); err != nil {
			return err
		}
	}
	if r.IsZero() {
		r.Negative = false
	}
	d.Set(&r)
	return nil
}

// FloorQuo sets d to the quotient x / y rounded toward negative infinity.
func (a *Arith) FloorQuo(d, x, y *apd.Decimal) error {
	if y.IsZero() {
		return &ArithmeticError{Op: "//", Reason: "integer division by zero"}
	}
	var q, r apd.Decimal
	cond, err := a.c.QuoInteger(&q, x, y)
	if err := check("//", &q, cond, err); err != nil {
		return err
	}
	cond, err = a.c.Rem(&r, x, y)
	if err := check("//", &r, cond, err); err != nil {
		return err
	}
	if !r.IsZero() && r.Negative != y.Negative {
		cond, err := a.c.Sub(&q, &q, decimalOne)
		if err := check("//", &q, cond, err); err != nil {
			return err
		}
	}
	if q.IsZero() {
		q.Negative = false
	}
	d.Set(&q)
	return nil
}

// Pow sets d = x ** y.
func (a *Arith) Pow(d, x, y *apd.Decimal) error {
	switch {
	case y.IsZero():
		d.Set(decimalOne)
		return nil
	case x.IsZero() && y.Negative:
		return &ArithmeticError{Op: "**", Reason: "division by zero"}
	}
	cond, err := a.c.Pow(d, x, y)
	return check("**", d, cond, err)
}

// Neg sets d = -x.
func (a *Arith) Neg(d, x *apd.Decimal) error {
	cond, err := a.c.Neg(d, x)
	return check("-", d, cond, err)
}

// Round sets d to x rounded to the working precision.
func (a *Arith) Round(d, x *apd.Decimal) error {
	cond, err := a.c.Round(d, x)
	return check("+", d, cond, err)
}

// Parse converts the text of a number to a decimal. Every digit of the text
// is kept; rounding happens when the value is used in arithmetic.
func (a *Arith) Parse(s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return nil, &ArithmeticError{Reason: "cannot convert " + strconv.Quote(s) + " to decimal"}
	}
	return d, nil
}

// FromInt64 converts an integer to a decimal.
func (a *Arith) FromInt64(x int64) *apd.Decimal {
	return apd.New(x, 0)
}

// FromFloat64 converts a float to a decimal through its shortest decimal
// representation, then rounds it to the working precision.
func (a *Arith) FromFloat64(f float64) (*apd.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ArithmeticError{Reason: "cannot convert " + strconv.FormatFloat(f, 'g', -1, 64) + " to decimal"}
	}
	d, err := a.Parse(strconv.FormatFloat(f, 'g', -1, 64))
	if err != nil {
		return nil, err
	}
	return d, a.Round(d, d)
}

// FromBig converts a binary float to a decimal rounded to the working
// precision.
func (a *Arith) FromBig(f *big.Float) (*apd.Decimal, error) {
	if f.IsInf() {
		return nil, &ArithmeticError{Reason: "cannot convert " + f.String() + " to decimal"}
	}
	d, err := a.Parse(f.Text('e', a.Digits()+5))
	if err != nil {
		return nil, err
	}
	return d, a.Round(d, d)
}

// Float64 converts a decimal to the nearest float.
func (a *Arith) Float64(x *apd.Decimal) (float64, error) {
	f, err := x.Float64()
	if err != nil || math.IsInf(f, 0) {
		return 0, &ArithmeticError{Reason: "cannot convert " + x.String() + " to float"}
	}
	return f, nil
}

// Format renders a decimal for display. Trailing zeros are dropped. Values
// whose magnitude fits in the working precision are written in plain
// notation, others in scientific notation like 1.5E+40. Zero is always "0".
func (a *Arith) Format(x *apd.Decimal) string {
	var d apd.Decimal
	d.Reduce(x)
	if d.IsZero() {
		return "0"
	}
	adj := int64(d.Exponent) + d.NumDigits() - 1
	if adj > -7 && adj < int64(a.Digits()) {
		return d.Text('f')
	}
	return d.Text('G')
}

// isInteger reports whether x has no fractional part.
func isInteger(x *apd.Decimal) bool {
	var frac apd.Decimal
	x.Modf(nil, &frac)
	return frac.IsZero()
}
