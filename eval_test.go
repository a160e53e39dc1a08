package calc_test

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/zephyrtronium/calc"
)

func dec(s string) *apd.Decimal {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEval(t *testing.T) {
	type vv struct {
		n string
		v string
	}
	type vc struct {
		vars []vv
		r    string
	}
	cases := []struct {
		name string
		src  string
		r    []vc
	}{
		{"num", "1", []vc{{nil, "1"}}},
		{"ident", "x", []vc{
			{[]vv{{"x", "4"}}, "4"},
			{[]vv{{"x", "5.5"}}, "5.5"},
			{[]vv{{"x", "-6"}}, "-6"},
		}},
		{"plus", "+x", []vc{
			{[]vv{{"x", "4"}}, "4"},
			{[]vv{{"x", "5"}}, "5"},
		}},
		{"neg", "-x", []vc{
			{[]vv{{"x", "4"}}, "-4"},
			{[]vv{{"x", "-5"}}, "5"},
		}},
		{"negzero", "-0", []vc{{nil, "0"}}},
		{"add", "4+5+6", []vc{{nil, "15"}}},
		{"sub", "4-5-6", []vc{{nil, "-7"}}},
		{"mul", "4*5*6", []vc{{nil, "120"}}},
		{"div", "10/4", []vc{{nil, "2.5"}}},
		{"div-chain", "4/5/8", []vc{{nil, "0.1"}}},
		{"precedence", "2 + 3*4", []vc{{nil, "14"}}},
		{"parens", "(2 + 3)*4", []vc{{nil, "20"}}},
		{"third", "1/3", []vc{{nil, "0.3333333333333333333333333333"}}},
		{"two-thirds", "2/3", []vc{{nil, "0.6666666666666666666666666667"}}},
		{"tenths", "0.1 + 0.2", []vc{{nil, "0.3"}}},
		{"mod", "x % 3", []vc{
			{[]vv{{"x", "7"}}, "1"},
			{[]vv{{"x", "-7"}}, "2"},
			{[]vv{{"x", "6"}}, "0"},
			{[]vv{{"x", "-6"}}, "0"},
			{[]vv{{"x", "7.5"}}, "1.5"},
		}},
		{"mod-negative", "x % -3", []vc{
			{[]vv{{"x", "7"}}, "-2"},
			{[]vv{{"x", "-7"}}, "-1"},
		}},
		{"floordiv", "x // 2", []vc{
			{[]vv{{"x", "7"}}, "3"},
			{[]vv{{"x", "-7"}}, "-4"},
			{[]vv{{"x", "7.5"}}, "3"},
			{[]vv{{"x", "-1"}}, "-1"},
			{[]vv{{"x", "1"}}, "0"},
		}},
		{"floordiv-negative", "x // -2", []vc{
			{[]vv{{"x", "7"}}, "-4"},
			{[]vv{{"x", "-7"}}, "3"},
		}},
		{"divmod", "2*(x // 2) + x % 2", []vc{
			{[]vv{{"x", "17"}}, "17"},
			{[]vv{{"x", "-17"}}, "-17"},
			{[]vv{{"x", "-1.25"}}, "-1.25"},
		}},
		{"pow", "2**10", []vc{{nil, "1024"}}},
		{"pow-right", "2**3**2", []vc{{nil, "512"}}},
		{"pow-neg-exp", "2**-1", []vc{{nil, "0.5"}}},
		{"pow-unary", "-2**2", []vc{{nil, "-4"}}},
		{"pow-paren", "(-2)**3", []vc{{nil, "-8"}}},
		{"pow-zero", "x**0", []vc{
			{[]vv{{"x", "0"}}, "1"},
			{[]vv{{"x", "-3.5"}}, "1"},
		}},
		{"pi", "pi", []vc{{nil, "3.141592653589793238462643383"}}},
		{"e", "e", []vc{{nil, "2.718281828459045235360287471"}}},
		{"shadow-pi", "pi", []vc{{[]vv{{"pi", "3"}}, "3"}}},
		{"shadow-func", "sqrt * 2", []vc{{[]vv{{"sqrt", "4"}}, "8"}}},
		{"sci", "1e3 + 1", []vc{{nil, "1001"}}},
		{"small", "1.5e-10", []vc{{nil, "1.5E-10"}}},
		{"micro", "0.000001", []vc{{nil, "0.000001"}}},
		{"tenth-micro", "0.0000001", []vc{{nil, "1E-7"}}},
		{"large", "10**40", []vc{{nil, "1E+40"}}},
		{"large-frac", "1.5*10**40", []vc{{nil, "1.5E+40"}}},
		{"long-literal", "123456789012345678901234567890", []vc{{nil, "1.234567890123456789012345679E+29"}}},
		{"trailing-zeros", "1.500", []vc{{nil, "1.5"}}},
		{"round-tens", "round(1234, -2)", []vc{{nil, "1200"}}},
		{"sqrt", "sqrt(16)", []vc{{nil, "4"}}},
		{"abs", "abs(x)", []vc{
			{[]vv{{"x", "-3.5"}}, "3.5"},
			{[]vv{{"x", "2"}}, "2"},
		}},
		{"floor", "floor(x)", []vc{
			{[]vv{{"x", "-2.5"}}, "-3"},
			{[]vv{{"x", "2.5"}}, "2"},
		}},
		{"ceil", "ceil(x)", []vc{
			{[]vv{{"x", "2.1"}}, "3"},
			{[]vv{{"x", "-2.1"}}, "-2"},
		}},
		{"round", "round(x)", []vc{
			{[]vv{{"x", "2.5"}}, "2"},
			{[]vv{{"x", "3.5"}}, "4"},
			{[]vv{{"x", "-2.5"}}, "-2"},
			{[]vv{{"x", "0.5"}}, "0"},
			{[]vv{{"x", "7"}}, "7"},
		}},
		{"round-places", "round(x, 2)", []vc{
			{[]vv{{"x", "2.675"}}, "2.68"},
			{[]vv{{"x", "1.005"}}, "1"},
			{[]vv{{"x", "3"}}, "3"},
		}},
		{"round-half-even-places", "round(1.25, 1)", []vc{{nil, "1.2"}}},
		{"fact", "fact(x)", []vc{
			{[]vv{{"x", "0"}}, "1"},
			{[]vv{{"x", "5"}}, "120"},
			{[]vv{{"x", "5.0"}}, "120"},
			{[]vv{{"x", "20"}}, "2432902008176640000"},
		}},
		{"factorial", "factorial(10)", []vc{{nil, "3628800"}}},
		{"log-base", "log(8, 2)", []vc{{nil, "3"}}},
		{"log-base-ten", "log(100, 10)", []vc{{nil, "2"}}},
		{"ln-one", "ln(1)", []vc{{nil, "0"}}},
		{"exp-zero", "exp(0)", []vc{{nil, "1"}}},
		{"pow-func", "pow(2, 8)", []vc{{nil, "256"}}},
		{"cos", "cos(0)", []vc{{nil, "1"}}},
		{"sin", "sin(0)", []vc{{nil, "0"}}},
		{"sinh", "sinh(0)", []vc{{nil, "0"}}},
		{"call-expr", "sqrt(x*x)", []vc{
			{[]vv{{"x", "3"}}, "3"},
			{[]vv{{"x", "-3"}}, "3"},
		}},
		{"nested-call", "abs(floor(-x))", []vc{{[]vv{{"x", "1.5"}}, "2"}}},
	}
	ctx := calc.NewContext()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := calc.ParseString(c.src)
			if err != nil {
				t.Fatal(c.src, "failed to parse:", err)
			}
			for _, v := range c.r {
				ctx := ctx.Clone()
				for _, x := range v.vars {
					ctx.Set(x.n, dec(x.v))
				}
				r, err := ctx.Eval(a)
				if err != nil {
					t.Errorf("%s with %v: evaluation error: %v", c.src, v.vars, err)
					continue
				}
				if got := ctx.Arith().Format(r); got != v.r {
					t.Errorf("%s with %v: want %s, got %s", c.src, v.vars, v.r, got)
				}
			}
		})
	}
}

func TestEvalApprox(t *testing.T) {
	cases := []struct {
		src string
		r   float64
	}{
		{"sin(pi/6)", 0.5},
		{"cos(pi/3)", 0.5},
		{"tan(pi/4)", 1},
		{"asin(1)", math.Pi / 2},
		{"acos(0)", math.Pi / 2},
		{"atan(1)", math.Pi / 4},
		{"atan2(1, 1)", math.Pi / 4},
		{"atan2(-1, -1)", -3 * math.Pi / 4},
		{"cosh(1)", math.Cosh(1)},
		{"tanh(0.5)", math.Tanh(0.5)},
		{"sqrt(2)", math.Sqrt2},
		{"exp(1)", math.E},
		{"ln(e)", 1},
		{"ln(10)", math.Ln10},
		{"log(1000)", 3},
		{"log(2)", math.Log10(2)},
		{"deg(pi)", 180},
		{"rad(180)", math.Pi},
		{"deg(rad(30))", 30},
		{"4**0.5", 2},
		{"2**0.5", math.Sqrt2},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			r, err := calc.EvalString(c.src)
			if err != nil {
				t.Fatal("evaluation error:", err)
			}
			f, err := r.Float64()
			if err != nil {
				t.Fatal("conversion error:", err)
			}
			if math.Abs(f-c.r) > 1e-12*math.Max(1, math.Abs(c.r)) {
				t.Errorf("want %g, got %g (%s)", c.r, f, r)
			}
		})
	}
}

// TestEvalArith checks random arithmetic against the same arithmetic done
// directly with apd.
func TestEvalArith(t *testing.T) {
	c := apd.Context{
		Precision:   calc.DefaultDigits,
		MaxExponent: apd.MaxExponent,
		MinExponent: apd.MinExponent,
		Traps:       apd.DefaultTraps,
		Rounding:    apd.RoundHalfEven,
	}
	rng := rand.New(rand.NewSource(1))
	var gen func(depth int) (string, *apd.Decimal, bool)
	gen = func(depth int) (string, *apd.Decimal, bool) {
		if depth == 0 || rng.Intn(4) == 0 {
			n := rng.Intn(1000)
			return strconv.Itoa(n), apd.New(int64(n), 0), true
		}
		ls, l, ok := gen(depth - 1)
		if !ok {
			return "", nil, false
		}
		rs, r, ok := gen(depth - 1)
		if !ok {
			return "", nil, false
		}
		d := new(apd.Decimal)
		var op string
		var err error
		switch rng.Intn(4) {
		case 0:
			op = "+"
			_, err = c.Add(d, l, r)
		case 1:
			op = "-"
			_, err = c.Sub(d, l, r)
		case 2:
			op = "*"
			_, err = c.Mul(d, l, r)
		case 3:
			if r.IsZero() {
				return "", nil, false
			}
			op = "/"
			_, err = c.Quo(d, l, r)
		}
		if err != nil {
			return "", nil, false
		}
		return "(" + ls + " " + op + " " + rs + ")", d, true
	}
	for i := 0; i < 500; i++ {
		src, want, ok := gen(5)
		if !ok {
			continue
		}
		got, err := calc.EvalString(src)
		if err != nil {
			t.Errorf("%s: evaluation error: %v", src, err)
			continue
		}
		if got.Cmp(want) != 0 {
			t.Errorf("%s: want %s, got %s", src, want, got)
		}
	}
}

func TestEvalUndefNames(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		undef string
	}{
		{"ident", "x", "x"},
		{"add", "1 + x", "x"},
		{"call", "foo(1)", "foo"},
		{"arg", "sin(x)", "x"},
		{"callee-first", "foo(1/0)", "foo"},
		{"before-arity", "sin(1, y)", "y"},
		{"left-first", "a + b", "a"},
		{"unicode", "π", "π"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := calc.EvalString(c.src)
			var ne *calc.NameError
			if !errors.As(err, &ne) {
				t.Fatalf("wrong error: want NameError, got %#v", err)
			}
			if ne.Name != c.undef {
				t.Errorf("wrong name: want %q, got %q", c.undef, ne.Name)
			}
			if calc.IsSyntaxError(err) || calc.IsArithmeticError(err) {
				t.Errorf("NameError %v is classified as another kind", err)
			}
		})
	}
}

func TestEvalNodeError(t *testing.T) {
	cases := []struct {
		src  string
		kind string
	}{
		{"x = 1", "assignment"},
		{"(x := 1)", "assignment expression"},
		{"lambda: 1", "lambda"},
		{"lambda x: x", "lambda"},
		{"a.b", "attribute access"},
		{"__import__('os').system('ls')", "attribute access"},
		{"sin('x')", "string literal"},
		{"'s'", "string literal"},
		{"True", "non-numeric constant"},
		{"None + 1", "non-numeric constant"},
		{"[1]", "list"},
		{"(1, 2)", "tuple"},
		{"{1}", "set"},
		{"{1: 2}", "dict"},
		{"a[1]", "subscript"},
		{"[x for x in y]", "comprehension"},
		{"f(x=1)", "keyword argument"},
		{"1 if 1 else 2", "conditional expression"},
		{"sqrt(1 if 1 else 0)", "conditional expression"},
		{"1 < 2", "comparison"},
		{"1 and 2", "boolean operator"},
		{"not 1", "boolean operator"},
		{"~1", "bitwise operator"},
		{"1 & 2", "bitwise operator"},
		{"1 << 2", "bitwise operator"},
		// Refusal happens before any evaluation.
		{"1/0 + (lambda: 1)", "lambda"},
		{"undefined + [1]", "list"},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			_, err := calc.EvalString(c.src)
			var ne *calc.NodeError
			if !errors.As(err, &ne) {
				t.Fatalf("wrong error: want NodeError, got %#v", err)
			}
			if ne.Kind != c.kind {
				t.Errorf("wrong kind: want %q, got %q", c.kind, ne.Kind)
			}
			if !strings.Contains(err.Error(), c.kind) {
				t.Errorf("message %q does not name %q", err.Error(), c.kind)
			}
		})
	}
}

func TestEvalTypeError(t *testing.T) {
	cases := []struct {
		name string
		src  string
		vars []string
		msg  string
	}{
		{"func-value", "sin", nil, `"sin" is a function`},
		{"func-operand", "sin + 1", nil, `"sin" is a function`},
		{"call-const", "pi(2)", nil, `"pi" is a constant`},
		{"call-var", "x(2)", []string{"x"}, `"x" is a variable`},
		{"call-num", "(1)(2)", nil, "not a function name"},
		{"call-call", "sin(1)(2)", nil, "not a function name"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := calc.NewContext()
			for _, v := range c.vars {
				ctx.Set(v, apd.New(1, 0))
			}
			e, err := calc.ParseString(c.src)
			if err != nil {
				t.Fatal(c.src, "failed to parse:", err)
			}
			_, err = ctx.Eval(e)
			var te *calc.TypeError
			if !errors.As(err, &te) {
				t.Fatalf("wrong error: want TypeError, got %#v", err)
			}
			if !strings.Contains(err.Error(), c.msg) {
				t.Errorf("message %q does not contain %q", err.Error(), c.msg)
			}
		})
	}
}

func TestEvalFuncError(t *testing.T) {
	cases := []struct {
		name string
		src  string
		fn   string
		n    int
	}{
		{"sin0", "sin()", "sin", 0},
		{"sin2", "sin(1, 2)", "sin", 2},
		{"sqrt2", "sqrt(1, 2)", "sqrt", 2},
		{"log3", "log(1, 2, 3)", "log", 3},
		{"ln2", "ln(1, 2)", "ln", 2},
		{"round0", "round()", "round", 0},
		{"atan2-1", "atan2(1)", "atan2", 1},
		{"pow3", "pow(1, 2, 3)", "pow", 3},
		{"fact0", "fact()", "fact", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := calc.EvalString(c.src)
			var ce *calc.CallError
			if !errors.As(err, &ce) {
				t.Fatalf("wrong error: want CallError, got %#v", err)
			}
			if ce.Func != c.fn || ce.Len != c.n {
				t.Errorf("wrong call: want %s with %d, got %s with %d", c.fn, c.n, ce.Func, ce.Len)
			}
		})
	}
}

func TestEvalArithmeticError(t *testing.T) {
	cases := []struct {
		src string
		op  string
		msg string
	}{
		{"1/0", "/", "division by zero"},
		{"1/(2-2)", "/", "division by zero"},
		{"1 % 0", "%", "modulo by zero"},
		{"1 // 0", "//", "integer division by zero"},
		{"0 ** -1", "**", "division by zero"},
		{"(-8) ** (1/3)", "**", "math domain error"},
		{"10 ** 1000000", "**", "result too large"},
		{"sqrt(-1)", "sqrt", "math domain error"},
		{"ln(0)", "ln", "math domain error"},
		{"log(-1)", "log", "math domain error"},
		{"log(8, 1)", "log", "division by zero"},
		{"log(8, 0)", "log", "math domain error"},
		{"fact(-1)", "fact", "not defined for negative values"},
		{"fact(2.5)", "fact", "only accepts integral values"},
		{"factorial(100000)", "factorial", "argument too large"},
		{"asin(2)", "asin", "math domain error"},
		{"acos(-2)", "acos", "math domain error"},
		{"cosh(1000)", "cosh", "math range error"},
		{"round(1.5, 0.5)", "round", "ndigits must be an integer"},
		{"pow(0, -1)", "pow", "division by zero"},
		// Arguments are evaluated before the number of them is checked.
		{"sin(1/0, 2)", "/", "division by zero"},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			_, err := calc.EvalString(c.src)
			var ae *calc.ArithmeticError
			if !errors.As(err, &ae) {
				t.Fatalf("wrong error: want ArithmeticError, got %#v", err)
			}
			if ae.Op != c.op || ae.Reason != c.msg {
				t.Errorf("wrong error: want %s: %s, got %v", c.op, c.msg, err)
			}
			if !calc.IsArithmeticError(err) {
				t.Errorf("IsArithmeticError(%v) is false", err)
			}
		})
	}
}

func TestContextVars(t *testing.T) {
	x := apd.New(2, 0)
	ctx := calc.NewContext(calc.SetVar("x", x), calc.SetVars(map[string]*apd.Decimal{"y": apd.New(3, 0)}))
	x.SetInt64(100)
	if v := ctx.Lookup("x"); v == nil || v.Cmp(apd.New(2, 0)) != 0 {
		t.Errorf("x changed with its source: %v", v)
	}
	if v := ctx.Lookup("y"); v == nil || v.Cmp(apd.New(3, 0)) != 0 {
		t.Errorf("wrong y: %v", v)
	}
	if v := ctx.Lookup("z"); v != nil {
		t.Errorf("z should be nil, got %v", v)
	}
	ctx.Lookup("x").SetInt64(7)
	if v := ctx.Lookup("x"); v.Cmp(apd.New(2, 0)) != 0 {
		t.Errorf("modifying a looked up value changed x to %v", v)
	}

	c2 := ctx.Clone(calc.SetVar("x", apd.New(5, 0)))
	c2.Set("z", apd.New(1, 0))
	if v := ctx.Lookup("x"); v.Cmp(apd.New(2, 0)) != 0 {
		t.Errorf("clone modified the original x to %v", v)
	}
	if ctx.Lookup("z") != nil {
		t.Error("clone added z to the original")
	}
	if v := c2.Lookup("y"); v == nil || v.Cmp(apd.New(3, 0)) != 0 {
		t.Errorf("clone lost y: %v", v)
	}

	e, err := calc.ParseString("x * y")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		ctx  *calc.Context
		want int64
	}{{ctx, 6}, {c2, 15}} {
		r, err := c.ctx.Eval(e)
		if err != nil {
			t.Fatal(err)
		}
		if r.Cmp(apd.New(c.want, 0)) != 0 {
			t.Errorf("want %d, got %v", c.want, r)
		}
		r.SetInt64(0)
	}
	if v := ctx.Lookup("x"); v.Cmp(apd.New(2, 0)) != 0 {
		t.Errorf("modifying a result changed x to %v", v)
	}
}

func TestContextDigits(t *testing.T) {
	ctx := calc.NewContext()
	if ctx.Digits() != calc.DefaultDigits {
		t.Errorf("want %d digits by default, got %d", calc.DefaultDigits, ctx.Digits())
	}
	cases := []struct {
		digits int
		src    string
		want   string
	}{
		{5, "1/3", "0.33333"},
		{5, "2/3", "0.66667"},
		{10, "pi", "3.141592654"},
		{10, "e", "2.718281828"},
		{3, "12345", "1.23E+4"},
		{3, "123", "123"},
		{50, "1/7", "0.14285714285714285714285714285714285714285714285714"},
	}
	for _, c := range cases {
		t.Run(strconv.Itoa(c.digits)+"/"+c.src, func(t *testing.T) {
			ctx := ctx.Clone(calc.Digits(c.digits))
			if ctx.Digits() != c.digits {
				t.Errorf("want %d digits, got %d", c.digits, ctx.Digits())
			}
			e, err := calc.ParseString(c.src)
			if err != nil {
				t.Fatal(err)
			}
			r, err := ctx.Eval(e)
			if err != nil {
				t.Fatal(err)
			}
			if got := ctx.Arith().Format(r); got != c.want {
				t.Errorf("want %s, got %s", c.want, got)
			}
		})
	}
	// Variables keep every digit when the precision changes.
	ctx = calc.NewContext(calc.Digits(40), calc.SetVar("x", dec("1.0000000000000000000000000000000001")))
	r, err := ctx.Clone(calc.Digits(5)).Clone(calc.Digits(40)).Eval(mustParse(t, "x"))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.String(); got != "1.0000000000000000000000000000000001" {
		t.Errorf("variable lost digits: %s", got)
	}
}

func TestEvalReuse(t *testing.T) {
	ctx := calc.NewContext(calc.SetVar("x", apd.New(3, 0)))
	e := mustParse(t, "x**2 + 1")
	for i := 0; i < 3; i++ {
		r, err := ctx.Eval(e)
		if err != nil {
			t.Fatal(err)
		}
		if r.Cmp(apd.New(10, 0)) != 0 {
			t.Errorf("evaluation %d: want 10, got %v", i, r)
		}
	}
	// A failed evaluation leaves the context usable.
	if _, err := ctx.Eval(mustParse(t, "1 + 2*(3/0)")); err == nil {
		t.Error("no error from division by zero")
	}
	r, err := ctx.Eval(e)
	if err != nil || r.Cmp(apd.New(10, 0)) != 0 {
		t.Errorf("after error: want 10, got %v, %v", r, err)
	}
}

func mustParse(t *testing.T, src string) *calc.Expr {
	t.Helper()
	e, err := calc.ParseString(src)
	if err != nil {
		t.Fatal(src, "failed to parse:", err)
	}
	return e
}

func BenchmarkEval(b *testing.B) {
	cases := []struct {
		name string
		src  string
	}{
		{"num", "1"},
		{"name", "x"},
		{"arith", "1 + 2*x - x/3"},
		{"pow", "x**x**0.5"},
		{"call", "sqrt(x) + sin(x)"},
		{"fact", "fact(100)"},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			ctx := calc.NewContext(calc.SetVar("x", apd.New(7, 0)))
			e, err := calc.ParseString(c.src)
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ctx.Eval(e); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
