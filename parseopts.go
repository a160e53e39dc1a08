package calc

// DefaultMaxDepth is the nesting limit the parser applies unless MaxDepth
// says otherwise.
const DefaultMaxDepth = 200

// ParseOption is an option for parsing.
type ParseOption interface {
	parseOption(parsectx) parsectx
}

type depthopt int

// parsectx holds general data for parsing. It is also a ParseOption.
type parsectx struct {
	// names is the set of names that have been seen this parse.
	names map[string]bool
	// depth is the current nesting depth of subexpressions.
	depth int
	// maxdepth is the nesting limit. Zero means DefaultMaxDepth.
	maxdepth int
}

// MaxDepth sets the deepest nesting of subexpressions the parser accepts.
// Each bracket, operator operand, and call argument is one level. Deeper
// input fails with a DepthError instead of consuming unbounded stack. n <= 0
// restores the default.
func MaxDepth(n int) ParseOption {
	return depthopt(n)
}

func (o depthopt) parseOption(p parsectx) parsectx {
	p.maxdepth = int(o)
	return p
}

// ParsingPreset creates a parsing preset that may be more efficient when using
// the same non-default parsing options for many calls to Parse. A preset
// panics when it would change any option from the default, but it is safe to
// apply other options after a preset.
func ParsingPreset(opts ...ParseOption) ParseOption {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	return &p
}

func (o *parsectx) parseOption(p parsectx) parsectx {
	if p.maxdepth != 0 {
		panic("calc: preset applied to non-default parse config")
	}
	p.maxdepth = o.maxdepth
	return p
}
