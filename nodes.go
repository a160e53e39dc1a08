package calc

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression.
type node struct {
	kind nodeKind

	// name is the literal text of numbers, strings, and names, or the operator
	// text of comparisons.
	name string
	// pos is the column of the token that created the node.
	pos int

	left  *node
	right *node
	// args holds call arguments, sequence items, lambda parameters, and the
	// extra operands of conditionals and comprehensions.
	args []*node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	// Permitted kinds.

	nodeNum      // literal number
	nodeName     // lookup(name)
	nodeCall     // left is the callee, args are the arguments
	nodeNeg      // -left
	nodePos      // +left
	nodeAdd      // left + right
	nodeSub      // left - right
	nodeMul      // left * right
	nodeDiv      // left / right
	nodePow      // left ** right
	nodeMod      // left % right
	nodeFloorDiv // left // right

	// Everything below is parsed so that it can be rejected.

	nodeStr       // string literal
	nodeConst     // True, False, None
	nodeAssign    // left = right
	nodeNamedExpr // left := right
	nodeKeyword   // name=left inside a call
	nodeAttr      // left.name
	nodeSubscript // left[right]
	nodeSlice     // args are start, stop, step; nil for omitted parts
	nodeList      // [args]
	nodeTuple     // (args)
	nodeDict      // {args}, each a nodePair
	nodeSet       // {args}
	nodePair      // left: right
	nodeComp      // left is the element, args are for/in/if clauses
	nodeLambda    // args are parameters, left is the body
	nodeIfExp     // left if args[0] else args[1]
	nodeCompare   // left name right
	nodeAnd       // left and right
	nodeOr        // left or right
	nodeNot       // not left
	nodeInvert    // ~left
	nodeBitAnd    // left & right
	nodeBitOr     // left | right
	nodeBitXor    // left ^ right
	nodeShl       // left << right
	nodeShr       // left >> right
	nodeMatMul    // left @ right
)

var nodeNames = [...]string{
	nodeNone:      "None",
	nodeNum:       "Num",
	nodeName:      "Name",
	nodeCall:      "Call",
	nodeNeg:       "Neg",
	nodePos:       "Pos",
	nodeAdd:       "Add",
	nodeSub:       "Sub",
	nodeMul:       "Mul",
	nodeDiv:       "Div",
	nodePow:       "Pow",
	nodeMod:       "Mod",
	nodeFloorDiv:  "FloorDiv",
	nodeStr:       "Str",
	nodeConst:     "Const",
	nodeAssign:    "Assign",
	nodeNamedExpr: "NamedExpr",
	nodeKeyword:   "Keyword",
	nodeAttr:      "Attr",
	nodeSubscript: "Subscript",
	nodeSlice:     "Slice",
	nodeList:      "List",
	nodeTuple:     "Tuple",
	nodeDict:      "Dict",
	nodeSet:       "Set",
	nodePair:      "Pair",
	nodeComp:      "Comp",
	nodeLambda:    "Lambda",
	nodeIfExp:     "IfExp",
	nodeCompare:   "Compare",
	nodeAnd:       "And",
	nodeOr:        "Or",
	nodeNot:       "Not",
	nodeInvert:    "Invert",
	nodeBitAnd:    "BitAnd",
	nodeBitOr:     "BitOr",
	nodeBitXor:    "BitXor",
	nodeShl:       "Shl",
	nodeShr:       "Shr",
	nodeMatMul:    "MatMul",
}

func (k nodeKind) String() string {
	if k < 0 || int(k) >= len(nodeNames) {
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
	return nodeNames[k]
}

// describe gives a human-readable name of the construct a node kind stands
// for, for error messages.
func (k nodeKind) describe() string {
	switch k {
	case nodeStr:
		return "string literal"
	case nodeConst:
		return "non-numeric constant"
	case nodeAssign:
		return "assignment"
	case nodeNamedExpr:
		return "assignment expression"
	case nodeKeyword:
		return "keyword argument"
	case nodeAttr:
		return "attribute access"
	case nodeSubscript:
		return "subscript"
	case nodeSlice:
		return "slice"
	case nodeList:
		return "list"
	case nodeTuple:
		return "tuple"
	case nodeDict:
		return "dict"
	case nodeSet:
		return "set"
	case nodePair:
		return "dict entry"
	case nodeComp:
		return "comprehension"
	case nodeLambda:
		return "lambda"
	case nodeIfExp:
		return "conditional expression"
	case nodeCompare:
		return "comparison"
	case nodeAnd, nodeOr, nodeNot:
		return "boolean operator"
	case nodeInvert, nodeBitAnd, nodeBitOr, nodeBitXor, nodeShl, nodeShr:
		return "bitwise operator"
	case nodeMatMul:
		return "matrix multiplication"
	default:
		return k.String()
	}
}

// binsyms are the operator spellings used when formatting binary nodes.
var binsyms = map[nodeKind]string{
	nodeAdd:       " + ",
	nodeSub:       " - ",
	nodeMul:       " * ",
	nodeDiv:       " / ",
	nodePow:       " ** ",
	nodeMod:       " % ",
	nodeFloorDiv:  " // ",
	nodeAssign:    " = ",
	nodeNamedExpr: " := ",
	nodeAnd:       " and ",
	nodeOr:        " or ",
	nodeBitAnd:    " & ",
	nodeBitOr:     " | ",
	nodeBitXor:    " ^ ",
	nodeShl:       " << ",
	nodeShr:       " >> ",
	nodeMatMul:    " @ ",
	nodePair:      ": ",
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b, false)
	return b.String()
}

func (n *node) fmt(b *strings.Builder, square bool) {
	if n == nil {
		return
	}
	var l, r byte = '(', ')'
	if square {
		l, r = '[', ']'
	}
	b.WriteByte(l)
	defer b.WriteByte(r)
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		n.left.fmt(b, !square)
		b.WriteByte('#')
		n.right.fmt(b, !square)
		b.WriteByte('$')
	case nodeNum, nodeName, nodeStr, nodeConst:
		b.WriteString(n.name)
	case nodeCall:
		n.left.fmt(b, !square)
		fmtlist(b, "(", ")", n.args, !square)
	case nodeNeg:
		b.WriteByte('-')
		n.left.fmt(b, !square)
	case nodePos:
		b.WriteByte('+')
		n.left.fmt(b, !square)
	case nodeInvert:
		b.WriteByte('~')
		n.left.fmt(b, !square)
	case nodeNot:
		b.WriteString("not ")
		n.left.fmt(b, !square)
	case nodeKeyword:
		b.WriteString(n.name)
		b.WriteByte('=')
		n.left.fmt(b, !square)
	case nodeAttr:
		n.left.fmt(b, !square)
		b.WriteByte('.')
		b.WriteString(n.name)
	case nodeSubscript:
		n.left.fmt(b, !square)
		b.WriteByte('[')
		n.right.fmt(b, !square)
		b.WriteByte(']')
	case nodeSlice:
		for i, a := range n.args {
			if i > 0 {
				b.WriteByte(':')
			}
			a.fmt(b, !square)
		}
	case nodeList:
		fmtlist(b, "[", "]", n.args, !square)
	case nodeTuple:
		fmtlist(b, "(", ",)", n.args, !square)
	case nodeDict, nodeSet:
		fmtlist(b, "{", "}", n.args, !square)
	case nodeComp:
		n.left.fmt(b, !square)
		for _, a := range n.args {
			b.WriteByte(' ')
			b.WriteString(a.name)
			b.WriteByte(' ')
			a.left.fmt(b, !square)
		}
	case nodeLambda:
		b.WriteString("lambda")
		for i, a := range n.args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte(' ')
			b.WriteString(a.name)
		}
		b.WriteString(": ")
		n.left.fmt(b, !square)
	case nodeIfExp:
		n.left.fmt(b, !square)
		b.WriteString(" if ")
		n.args[0].fmt(b, !square)
		b.WriteString(" else ")
		n.args[1].fmt(b, !square)
	case nodeCompare:
		n.left.fmt(b, !square)
		b.WriteString(" " + n.name + " ")
		n.right.fmt(b, !square)
	default:
		sym, ok := binsyms[n.kind]
		if !ok {
			panic("calc: invalid node kind " + n.kind.String() + " after writing " + b.String())
		}
		n.left.fmt(b, !square)
		b.WriteString(sym)
		n.right.fmt(b, !square)
	}
}

func fmtlist(b *strings.Builder, l, r string, args []*node, square bool) {
	b.WriteString(l)
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.fmt(b, square)
	}
	b.WriteString(r)
}
