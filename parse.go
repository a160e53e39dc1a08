package calc

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expr    = Lambda | Assign | Cond
// Assign  = Cond ('=' | ':=') Expr
// Lambda  = 'lambda' [ param { ',' param } ] ':' Cond
// Cond    = Or [ 'if' Or 'else' Cond ]
// Or      = And { 'or' And }
// And     = Not { 'and' Not }
// Not     = 'not' Not | Cmp
// Cmp     = BitOr { cmpop BitOr }
// BitOr   = BitXor { '|' BitXor }
// BitXor  = BitAnd { '^' BitAnd }
// BitAnd  = Shift { '&' Shift }
// Shift   = Sum { ('<<' | '>>') Sum }
// Sum     = Term { ('+' | '-') Term }
// Term    = Unary { ('*' | '/' | '//' | '%' | '@' | '×' | '÷') Unary }
// Unary   = ('+' | '-' | '~') Unary | Power
// Power   = Postfix [ '**' Unary ]
// Postfix = Atom { '(' args ')' | '[' subscript ']' | '.' name }
// Atom    = num | str | name | '(' ... ')' | '[' ... ']' | '{' ... '}'
//
// Only numbers, names, calls, unary + and -, and the arithmetic operators
// + - * / // % ** are ever evaluated. The rest of the grammar exists so that
// the evaluator can reject it by kind.

// Expr is a parsed expression that can be evaluated with a context.
type Expr struct {
	// n is the root node of the expression.
	n *node
	// names is the list of names used in the expression.
	names []string
}

// keywords are identifiers which the parser treats specially.
var keywords = map[string]bool{
	"and":    true,
	"or":     true,
	"not":    true,
	"in":     true,
	"is":     true,
	"if":     true,
	"else":   true,
	"for":    true,
	"lambda": true,
	"True":   true,
	"False":  true,
	"None":   true,
}

// IsKeyword reports whether name is reserved by the expression grammar and
// so cannot be used as a variable.
func IsKeyword(name string) bool {
	return keywords[name]
}

// Parse parses an expression so it can be evaluated with a context. The given
// options are applied in order.
func Parse(src io.RuneScanner, opts ...ParseOption) (*Expr, error) {
	scan := lex(src)
	p := parsectx{
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.maxdepth <= 0 {
		p.maxdepth = DefaultMaxDepth
	}
	n, err := parseterm(scan, &p, exprprec)
	if err != nil {
		return nil, err
	}
	switch tok := scan.must(); tok.kind {
	case tokenEOF:
		if n == nil {
			return nil, &EmptyExpressionError{Col: tok.pos}
		}
	default:
		return nil, itShouldNotHaveEndedThisWay(tok, -1)
	}
	ex := Expr{
		n:     n,
		names: make([]string, 0, len(p.names)),
	}
	for k := range p.names {
		ex.names = append(ex.names, k)
	}
	sort.Strings(ex.names)
	return &ex, nil
}

// ParseString is a shortcut to parse a string expression.
func ParseString(src string, opts ...ParseOption) (*Expr, error) {
	return Parse(strings.NewReader(src), opts...)
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression, the result is nil with no error; callers must create an error
// in contexts where empty subexpressions are illegal.
func parseterm(scan *lexer, p *parsectx, until operator) (*node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxdepth {
		tok, _ := scan.next()
		return nil, &DepthError{Col: tok.pos, Max: p.maxdepth}
	}
	n, err := parselhs(scan, p, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenOp:
			if tok.text == "." {
				// Attribute access binds tighter than anything.
				name, err := scan.next()
				if err != nil {
					return nil, err
				}
				if name.kind != tokenIdent {
					return nil, &TokenError{Col: name.pos, Text: name.text, Want: "attribute name"}
				}
				n = &node{kind: nodeAttr, name: name.text, pos: tok.pos, left: n}
				continue
			}
			prec := binop(tok.text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: false}
			}
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, p, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				return nil, emptyexpr(scan)
			}
			n = &node{kind: prec.op, pos: tok.pos, left: n, right: rhs}
			if prec.op == nodeCompare {
				n.name = tok.text
			}
		case tokenIdent:
			switch tok.text {
			case "if":
				if !condprec.moreBinding(until) {
					scan.push(tok)
					return n, nil
				}
				n, err = parsecond(scan, p, n, tok)
				if err != nil {
					return nil, err
				}
			case "else", "for":
				// These end the subexpression in a conditional or
				// comprehension. Whoever started it checks that they belong.
				scan.push(tok)
				return n, nil
			case "and", "or", "in", "is", "not":
				prec := binop(tok.text)
				if tok.text == "not" {
					// Binary not only begins not in.
					prec = cmpprec
				}
				if !prec.moreBinding(until) {
					scan.push(tok)
					return n, nil
				}
				text := tok.text
				switch text {
				case "not":
					in, err := scan.next()
					if err != nil {
						return nil, err
					}
					if in.kind != tokenIdent || in.text != "in" {
						return nil, &TokenError{Col: in.pos, Text: in.text, Want: `"in"`}
					}
					text = "not in"
				case "is":
					not, err := scan.next()
					if err != nil {
						return nil, err
					}
					if not.kind == tokenIdent && not.text == "not" {
						text = "is not"
					} else {
						scan.push(not)
					}
				}
				rhs, err := parseterm(scan, p, prec)
				if err != nil {
					return nil, err
				}
				if rhs == nil {
					return nil, emptyexpr(scan)
				}
				n = &node{kind: prec.op, pos: tok.pos, left: n, right: rhs}
				if prec.op == nodeCompare {
					n.name = text
				}
			default:
				return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: "operator"}
			}
		case tokenOpen:
			switch tok.text {
			case "(":
				args, err := parseargs(scan, p, tok)
				if err != nil {
					return nil, err
				}
				n = &node{kind: nodeCall, pos: tok.pos, left: n, args: args}
			case "[":
				idx, err := parsesubscript(scan, p, tok)
				if err != nil {
					return nil, err
				}
				n = &node{kind: nodeSubscript, pos: tok.pos, left: n, right: idx}
			default:
				return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: "operator"}
			}
		case tokenNum, tokenStr:
			return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: "operator"}
		case tokenClose, tokenSep, tokenColon, tokenEOF:
			// End of expression.
			scan.push(tok)
			return n, nil
		default:
			panic("calc: unknown token: " + tok.String())
		}
	}
}

// parselhs parses the first component of a term. I.e., operators are unary
// and any encountered token must be valid as the start of a subexpression.
func parselhs(scan *lexer, p *parsectx, until operator) (*node, error) {
	tok, err := scan.next()
	if err != nil {
		return nil, err
	}
	var n *node
	switch tok.kind {
	case tokenNum:
		n = &node{kind: nodeNum, name: tok.text, pos: tok.pos}
	case tokenStr:
		n = &node{kind: nodeStr, name: tok.text, pos: tok.pos}
	case tokenIdent:
		switch tok.text {
		case "True", "False", "None":
			n = &node{kind: nodeConst, name: tok.text, pos: tok.pos}
		case "lambda":
			return parselambda(scan, p, tok)
		case "not":
			return parseunary(scan, p, until, tok, notprec)
		default:
			if keywords[tok.text] {
				return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: "expression"}
			}
			p.names[tok.text] = true
			n = &node{kind: nodeName, name: tok.text, pos: tok.pos}
		}
	case tokenOp:
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		return parseunary(scan, p, until, tok, prec)
	case tokenOpen:
		return parseseq(scan, p, tok)
	case tokenClose, tokenColon:
		// This might be part of an empty call f(), display [], or slice
		// a[:n], so just let the caller decide what to do.
		scan.push(tok)
		return nil, nil
	case tokenSep:
		return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("calc: unknown token: " + tok.String())
	}
	return n, nil
}

// parseunary parses the operand of a prefix operator.
func parseunary(scan *lexer, p *parsectx, until operator, tok lexToken, prec operator) (*node, error) {
	if !prec.moreBinding(until) {
		// x**-y -> x**(-y)
		// Just use the new operator's precedence to simplify.
		prec.prec, prec.right = until.prec, until.right
	}
	rhs, err := parseterm(scan, p, prec)
	if err != nil {
		return nil, err
	}
	if rhs == nil {
		return nil, emptyexpr(scan)
	}
	return &node{kind: prec.op, pos: tok.pos, left: rhs}, nil
}

// parsecond parses the remainder of a conditional expression after its if.
func parsecond(scan *lexer, p *parsectx, then *node, kw lexToken) (*node, error) {
	cond, err := parseterm(scan, p, condprec)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, emptyexpr(scan)
	}
	tok := scan.must()
	if tok.kind != tokenIdent || tok.text != "else" {
		return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: `"else"`}
	}
	orelse, err := parseterm(scan, p, lambdaprec)
	if err != nil {
		return nil, err
	}
	if orelse == nil {
		return nil, emptyexpr(scan)
	}
	return &node{kind: nodeIfExp, pos: kw.pos, left: then, args: []*node{cond, orelse}}, nil
}

// parselambda parses a lambda after its keyword.
func parselambda(scan *lexer, p *parsectx, kw lexToken) (*node, error) {
	n := &node{kind: nodeLambda, pos: kw.pos}
params:
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenColon && len(n.args) == 0 {
			break
		}
		if tok.kind != tokenIdent || keywords[tok.text] {
			return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: "parameter name"}
		}
		param := &node{kind: nodeName, name: tok.text, pos: tok.pos}
		n.args = append(n.args, param)
		tok, err = scan.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenOp && tok.text == "=" {
			param.left, err = parseterm(scan, p, lambdaprec)
			if err != nil {
				return nil, err
			}
			if param.left == nil {
				return nil, emptyexpr(scan)
			}
			tok = scan.must()
		}
		switch tok.kind {
		case tokenSep:
		case tokenColon:
			break params
		default:
			return nil, &TokenError{Col: tok.pos, Text: tok.text, Want: `"," or ":"`}
		}
	}
	body, err := parseterm(scan, p, lambdaprec)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, emptyexpr(scan)
	}
	n.left = body
	return n, nil
}

// parseargs parses the argument list of a call after its open bracket,
// through the matching close bracket.
func parseargs(scan *lexer, p *parsectx, open lexToken) ([]*node, error) {
	var args []*node
	for {
		a, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, bracketed(err, open)
		}
		end := scan.must()
		switch end.kind {
		case tokenClose:
			if end.text != ")" {
				return nil, &BracketError{Col: end.pos, Left: open.text, Right: end.text}
			}
			// f() and f(a,) are fine, but the caller checks f(,).
			if a != nil {
				args = append(args, keyword(a))
			}
			return args, nil
		case tokenSep:
			if a == nil {
				return nil, &SeparatorError{Col: end.pos, Sep: end.text}
			}
			args = append(args, keyword(a))
		case tokenIdent:
			// Only a generator argument can leave a keyword here.
			if end.text != "for" || a == nil {
				return nil, &TokenError{Col: end.pos, Text: end.text, Want: `")"`}
			}
			// parsecomp consumes the close bracket.
			comp, err := parsecomp(scan, p, a, end, open)
			if err != nil {
				return nil, err
			}
			return append(args, comp), nil
		case tokenEOF:
			return nil, &BracketError{Col: end.pos, Left: open.text, Right: ""}
		case tokenColon:
			return nil, &SeparatorError{Col: end.pos, Sep: end.text}
		default:
			panic("calc: parseterm ended on non-end token " + end.String())
		}
	}
}

// keyword converts an assignment to a name within an argument list into a
// keyword argument.
func keyword(a *node) *node {
	if a.kind == nodeAssign && a.left.kind == nodeName {
		return &node{kind: nodeKeyword, name: a.left.name, pos: a.pos, left: a.right}
	}
	return a
}

// parsesubscript parses the index or slice inside brackets following an
// expression, through the close bracket.
func parsesubscript(scan *lexer, p *parsectx, open lexToken) (*node, error) {
	parts := []*node{nil}
	for {
		a, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, bracketed(err, open)
		}
		parts[len(parts)-1] = a
		end := scan.must()
		switch end.kind {
		case tokenColon:
			if len(parts) == 3 {
				return nil, &SeparatorError{Col: end.pos, Sep: end.text}
			}
			parts = append(parts, nil)
		case tokenClose:
			if end.text != "]" {
				return nil, &BracketError{Col: end.pos, Left: open.text, Right: end.text}
			}
			if len(parts) > 1 {
				return &node{kind: nodeSlice, pos: open.pos, args: parts}, nil
			}
			if a == nil {
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			return a, nil
		case tokenSep:
			return nil, &SeparatorError{Col: end.pos, Sep: end.text}
		case tokenEOF:
			return nil, &BracketError{Col: end.pos, Left: open.text, Right: ""}
		default:
			return nil, &TokenError{Col: end.pos, Text: end.text, Want: `"]"`}
		}
	}
}

// parseseq parses a bracketed group, tuple, list, dict, set, or
// comprehension after its open bracket, through the matching close bracket.
func parseseq(scan *lexer, p *parsectx, open lexToken) (*node, error) {
	match := rightbracket(open.text)
	var items []*node
	comma, pairs := false, false
	for {
		a, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, bracketed(err, open)
		}
		end := scan.must()
		if end.kind == tokenColon && open.text == "{" && a != nil {
			v, err := parseterm(scan, p, exprprec)
			if err != nil {
				return nil, bracketed(err, open)
			}
			if v == nil {
				return nil, emptyexpr(scan)
			}
			a = &node{kind: nodePair, pos: end.pos, left: a, right: v}
			pairs = true
			end = scan.must()
		}
		switch end.kind {
		case tokenClose:
			if end.text != closebrackets[match] {
				return nil, itShouldNotHaveEndedThisWay(end, match)
			}
			if a != nil {
				items = append(items, a)
			}
			return display(open, items, comma, pairs), nil
		case tokenSep:
			if a == nil {
				return nil, &SeparatorError{Col: end.pos, Sep: end.text}
			}
			items = append(items, a)
			comma = true
		case tokenIdent:
			if end.text != "for" || a == nil || len(items) != 0 {
				return nil, &TokenError{Col: end.pos, Text: end.text, Want: strconv.Quote(closebrackets[match])}
			}
			return parsecomp(scan, p, a, end, open)
		case tokenEOF:
			return nil, itShouldNotHaveEndedThisWay(end, match)
		case tokenColon:
			return nil, &SeparatorError{Col: end.pos, Sep: end.text}
		default:
			panic("calc: parseterm ended on non-end token " + end.String())
		}
	}
}

// display builds the node for a bracketed sequence.
func display(open lexToken, items []*node, comma, pairs bool) *node {
	switch open.text {
	case "(":
		if len(items) == 1 && !comma {
			// Plain grouping.
			return items[0]
		}
		return &node{kind: nodeTuple, pos: open.pos, args: items}
	case "[":
		return &node{kind: nodeList, pos: open.pos, args: items}
	default:
		if pairs || len(items) == 0 {
			return &node{kind: nodeDict, pos: open.pos, args: items}
		}
		return &node{kind: nodeSet, pos: open.pos, args: items}
	}
}

// parsecomp parses the clauses of a comprehension after its first for,
// through the close bracket matching open.
func parsecomp(scan *lexer, p *parsectx, elem *node, kw, open lexToken) (*node, error) {
	n := &node{kind: nodeComp, name: open.text, pos: kw.pos, left: elem}
	for {
		target, err := parseterm(scan, p, cmpprec)
		if err != nil {
			return nil, bracketed(err, open)
		}
		if target == nil {
			return nil, emptyexpr(scan)
		}
		in := scan.must()
		if in.kind != tokenIdent || in.text != "in" {
			return nil, &TokenError{Col: in.pos, Text: in.text, Want: `"in"`}
		}
		iter, err := parseterm(scan, p, condprec)
		if err != nil {
			return nil, bracketed(err, open)
		}
		if iter == nil {
			return nil, emptyexpr(scan)
		}
		n.args = append(n.args,
			&node{kind: nodeKeyword, name: "for", pos: kw.pos, left: target},
			&node{kind: nodeKeyword, name: "in", pos: in.pos, left: iter},
		)
		tok := scan.must()
		for tok.kind == tokenIdent && tok.text == "if" {
			cond, err := parseterm(scan, p, condprec)
			if err != nil {
				return nil, bracketed(err, open)
			}
			if cond == nil {
				return nil, emptyexpr(scan)
			}
			n.args = append(n.args, &node{kind: nodeKeyword, name: "if", pos: tok.pos, left: cond})
			tok = scan.must()
		}
		switch {
		case tok.kind == tokenIdent && tok.text == "for":
			kw = tok
		case tok.kind == tokenClose && tok.text == closebrackets[rightbracket(open.text)]:
			return n, nil
		default:
			return nil, itShouldNotHaveEndedThisWay(tok, rightbracket(open.text))
		}
	}
}

// bracketed converts an empty expression error inside brackets into the more
// helpful unclosed bracket error.
func bracketed(err error, open lexToken) error {
	if ee, _ := err.(*EmptyExpressionError); ee != nil && ee.End == "" {
		return &BracketError{Col: ee.Col, Left: open.text}
	}
	return err
}

// emptyexpr creates the error for a subexpression that ended before it
// began. The token that ended it must be pushed.
func emptyexpr(scan *lexer) error {
	tok := scan.must()
	return &EmptyExpressionError{Col: tok.pos, End: tok.text}
}

// rightbracket gets the closing bracket index for an opening bracket.
func rightbracket(left string) int {
	r, sz := utf8.DecodeRuneInString(left)
	k := strings.IndexRune(OpenBrackets, r)
	if k < 0 || sz != len(left) {
		panic("calc: invalid bracket " + strconv.Quote(left))
	}
	return k
}

// leftbracket gets the opening bracket matching right. If right is no bracket,
// then the result is the empty string.
func leftbracket(right int) string {
	if right == -1 {
		return ""
	}
	return openbrackets[right]
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a subexpression. match is the bracket rune index that
// the expression should have matched, or -1 if none.
func itShouldNotHaveEndedThisWay(tok lexToken, match int) error {
	switch tok.kind {
	case tokenEOF:
		// Unexpected EOF implies an open bracket that was not closed.
		return &BracketError{Col: tok.pos, Left: leftbracket(match), Right: ""}
	case tokenClose:
		// A bracket could be the wrong bracket for the opening brace or any
		// bracket at the end of an input.
		return &BracketError{Col: tok.pos, Left: leftbracket(match), Right: tok.text}
	case tokenSep, tokenColon:
		// Separator outside a sequence.
		return &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenIdent, tokenOp:
		// A stray else or for, or an assignment where none is allowed.
		return &TokenError{Col: tok.pos, Text: tok.text}
	default:
		panic("calc: it really should not have ended this way: " + tok.String())
	}
}

// Names returns the names the expression refers to, variables and functions
// alike, in sorted order.
func (e *Expr) Names() []string {
	return append(([]string)(nil), e.names...)
}

// String creates a string representation of the parsed expression, with
// alternating round and square brackets grouping each term.
func (e *Expr) String() string {
	return e.n.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "=":
		return operator{1, true, nodeAssign}
	case ":=":
		return operator{1, true, nodeNamedExpr}
	case "or":
		return operator{4, false, nodeOr}
	case "and":
		return operator{5, false, nodeAnd}
	case "<", ">", "<=", ">=", "==", "!=", "in", "not in", "is", "is not":
		return operator{7, false, nodeCompare}
	case "|":
		return operator{8, false, nodeBitOr}
	case "^":
		return operator{9, false, nodeBitXor}
	case "&":
		return operator{10, false, nodeBitAnd}
	case "<<":
		return operator{11, false, nodeShl}
	case ">>":
		return operator{11, false, nodeShr}
	case "+":
		return operator{12, false, nodeAdd}
	case "-":
		return operator{12, false, nodeSub}
	case "*", "×":
		return operator{13, false, nodeMul}
	case "/", "÷":
		return operator{13, false, nodeDiv}
	case "//":
		return operator{13, false, nodeFloorDiv}
	case "%":
		return operator{13, false, nodeMod}
	case "@":
		return operator{13, false, nodeMatMul}
	case "**":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{14, true, nodePos}
	case "-":
		return operator{14, true, nodeNeg}
	case "~":
		return operator{14, true, nodeInvert}
	default:
		return operator{}
	}
}

var (
	// lambdaprec is the precedence of lambda bodies, conditional
	// alternatives, and parameter defaults: anything but assignment.
	lambdaprec = operator{2, false, nodeLambda}
	// condprec is the precedence of the conditional expression.
	condprec = operator{3, false, nodeIfExp}
	// notprec is the precedence of boolean negation.
	notprec = operator{6, true, nodeNot}
	// cmpprec is the precedence of comparisons.
	cmpprec = binop("<")
	// exprprec is the precedence required to parse an entire subexpression.
	exprprec = operator{-128, true, nodeNone}
)
