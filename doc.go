// Package calc implements a safe calculator over arbitrary-precision decimals.
//
// Expressions use conventional infix syntax: "2 + 3*4", "-2**2", "7 // 2",
// "log(8, 2)". The parser understands the whole of a familiar expression
// language, including lists, lambdas, comparisons, and attribute access, but
// the evaluator only permits a small closed set of node kinds: numbers, names,
// unary plus and minus, the seven arithmetic operators, and calls of the
// built-in functions. Anything else is rejected with a NodeError before any
// part of the expression is evaluated.
//
// Every result is a decimal rounded to a fixed number of significant digits,
// 28 unless a Context says otherwise.
package calc
