// Package session holds the state of an interactive calculator session and
// processes its input lines: expressions, variable assignments, memory
// commands, history, and unit conversions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"

	"github.com/zephyrtronium/calc"
	"github.com/zephyrtronium/calc/internal/journal"
	"github.com/zephyrtronium/calc/internal/units"
)

// Farewell is the message printed when the session ends.
const Farewell = "Exiting..."

// Journal receives every entry appended to the history.
type Journal interface {
	Append(ctx context.Context, kind, input, result string) error
}

// Options configures a session. Zero fields take defaults.
type Options struct {
	// Digits is the number of significant digits in results.
	Digits int
	// Window is the number of entries the history command shows.
	Window int
	// MaxInput is the longest line, in runes, that is processed.
	MaxInput int
	// MaxDepth is the deepest nesting the parser accepts.
	MaxDepth int
	// Echo prefixes expression results with their parse trees.
	Echo bool
	// Journal, if not nil, records history entries.
	Journal Journal
	// Logger receives debug logs for each line. Nil means slog.Default().
	Logger *slog.Logger
}

// Entry is one line of history.
type Entry struct {
	// Kind is journal.KindEval, journal.KindAssign, or journal.KindConvert.
	Kind string
	// Input is the expression, the assigned variable name, or a description
	// of the conversion.
	Input string
	// Result is the displayed value.
	Result string
}

func (e Entry) String() string {
	if e.Kind == journal.KindAssign {
		return e.Input + " = " + e.Result
	}
	return e.Input + " => " + e.Result
}

// Session is the state of a calculator session. Lines are applied one at a
// time even when Exec is called concurrently.
type Session struct {
	mu sync.Mutex

	base    *calc.Context
	popts   calc.ParseOption
	opts    Options
	vars    map[string]*apd.Decimal
	memory  *apd.Decimal
	history []Entry
	log     *slog.Logger
}

// New creates a session with no variables, zero memory, and empty history.
func New(opts Options) *Session {
	if opts.Digits <= 0 {
		opts.Digits = calc.DefaultDigits
	}
	if opts.Window <= 0 {
		opts.Window = 50
	}
	if opts.MaxInput <= 0 {
		opts.MaxInput = 4096
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		base:   calc.NewContext(calc.Digits(opts.Digits)),
		popts:  calc.ParsingPreset(calc.MaxDepth(opts.MaxDepth)),
		opts:   opts,
		vars:   make(map[string]*apd.Decimal),
		memory: new(apd.Decimal),
		log:    opts.Logger,
	}
}

// ErrExit is returned by Exec for a line that asks to end the session.
var ErrExit = errors.New("exit requested")

// Handle processes a line and renders the outcome for display. Errors are
// rendered as text beginning with "Error: ". If the line asks to end the
// session, the output is Farewell and exit is true.
func (s *Session) Handle(ctx context.Context, line string) (out string, exit bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "panic processing line", slog.String("line", line), slog.Any("panic", r))
			out, exit = fmt.Sprintf("Unexpected error: %v", r), false
		}
	}()
	out, err := s.Exec(ctx, line)
	switch {
	case errors.Is(err, ErrExit):
		return Farewell, true
	case err != nil:
		return "Error: " + err.Error(), false
	}
	return out, false
}

// Exec processes a line and returns its output. A line that fails changes
// nothing in the session.
func (s *Session) Exec(ctx context.Context, line string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	if n := utf8.RuneCountInString(line); n > s.opts.MaxInput {
		return "", &CommandError{Reason: "input of " + strconv.Itoa(n) + " characters is longer than the limit of " + strconv.Itoa(s.opts.MaxInput)}
	}
	switch strings.ToLower(line) {
	case "help", ":h", ":help", "ayuda":
		return s.help(), nil
	case "exit", ":q", ":quit", "salir":
		return "", ErrExit
	case ":history", "history":
		return s.showHistory(), nil
	case ":mem", "memory":
		return "memory = " + s.format(s.memory), nil
	case ":mc":
		s.memory = new(apd.Decimal)
		return "memory cleared", nil
	}
	if f := strings.Fields(line); strings.ToLower(f[0]) == ":convert" {
		return s.convert(ctx, f[1:])
	}
	switch cmd := strings.ToUpper(line); cmd {
	case "M+", "M-", "MR", "MC":
		return s.memoryCommand(cmd)
	}
	if name, src, ok := splitAssign(line); ok {
		return s.assign(ctx, name, src)
	}
	v, out, err := s.eval(line)
	if err != nil {
		s.log.DebugContext(ctx, "evaluation failed", slog.String("input", line), slog.Any("error", err))
		return "", err
	}
	s.log.DebugContext(ctx, "evaluated", slog.String("input", line), slog.String("result", v))
	s.record(ctx, Entry{Kind: journal.KindEval, Input: line, Result: v})
	return out, nil
}

// eval evaluates an expression with the session's variables. The result is
// the formatted value and the text to display.
func (s *Session) eval(src string) (string, string, error) {
	e, err := calc.ParseString(src, s.popts)
	if err != nil {
		return "", "", err
	}
	ctx := s.base.Clone(calc.SetVars(s.vars))
	r, err := ctx.Eval(e)
	if err != nil {
		return "", "", err
	}
	v := s.format(r)
	if s.opts.Echo {
		return v, e.String() + " : " + v, nil
	}
	return v, v, nil
}

func (s *Session) format(x *apd.Decimal) string {
	return s.base.Arith().Format(x)
}

// record appends an entry to the history and the journal.
func (s *Session) record(ctx context.Context, e Entry) {
	s.history = append(s.history, e)
	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.Append(ctx, e.Kind, e.Input, e.Result); err != nil {
		s.log.WarnContext(ctx, "journal append failed", slog.Any("error", err))
	}
}

// assign evaluates src and binds the result to name.
func (s *Session) assign(ctx context.Context, name, src string) (string, error) {
	if !isIdentifier(name) || calc.IsKeyword(name) {
		return "", &AssignError{Target: name}
	}
	if strings.TrimSpace(src) == "" {
		return "", &AssignError{Target: name, Reason: "nothing to assign"}
	}
	e, err := calc.ParseString(src, s.popts)
	if err != nil {
		return "", err
	}
	r, err := s.base.Clone(calc.SetVars(s.vars)).Eval(e)
	if err != nil {
		return "", err
	}
	v := s.format(r)
	s.vars[name] = r
	s.log.DebugContext(ctx, "assigned", slog.String("name", name), slog.String("value", v))
	s.record(ctx, Entry{Kind: journal.KindAssign, Input: name, Result: v})
	return name + " = " + v, nil
}

// memoryCommand applies one of M+, M-, MR, and MC.
func (s *Session) memoryCommand(cmd string) (string, error) {
	a := s.base.Arith()
	switch cmd {
	case "MR":
		return s.format(s.memory), nil
	case "MC":
		s.memory = new(apd.Decimal)
		return "memory cleared", nil
	}
	if len(s.history) == 0 {
		return "", &CommandError{Command: cmd, Reason: "history is empty, nothing to store"}
	}
	last := s.history[len(s.history)-1].Result
	v, err := a.Parse(last)
	if err != nil {
		return "", &CommandError{Command: cmd, Reason: "last result is not a number", Err: err}
	}
	m := new(apd.Decimal)
	if cmd == "M+" {
		err = a.Add(m, s.memory, v)
	} else {
		err = a.Sub(m, s.memory, v)
	}
	if err != nil {
		return "", &CommandError{Command: cmd, Reason: "cannot update memory", Err: err}
	}
	s.memory = m
	return "memory = " + s.format(m), nil
}

// convert applies a unit conversion. args are the fields after the command.
func (s *Session) convert(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "usage: :convert <key> <value>. Available conversions: " + strings.Join(units.Keys(), ", "), nil
	}
	key := args[0]
	x, err := strconv.ParseFloat(args[1], 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return "", &CommandError{Command: ":convert", Reason: "invalid value for conversion: " + strconv.Quote(args[1])}
	}
	r, err := units.Convert(key, x)
	if err != nil {
		return "", &CommandError{Command: ":convert", Reason: "cannot convert", Err: err}
	}
	d, err := s.base.Arith().FromFloat64(r)
	if err != nil {
		return "", &CommandError{Command: ":convert", Reason: "cannot convert", Err: err}
	}
	v := s.format(d)
	s.log.DebugContext(ctx, "converted", slog.String("key", key), slog.Float64("value", x), slog.String("result", v))
	s.record(ctx, Entry{
		Kind:   journal.KindConvert,
		Input:  "convert " + key + "(" + strconv.FormatFloat(x, 'g', -1, 64) + ")",
		Result: v,
	})
	return v, nil
}

func (s *Session) showHistory() string {
	if len(s.history) == 0 {
		return "history is empty"
	}
	h := s.history
	if len(h) > s.opts.Window {
		h = h[len(h)-s.opts.Window:]
	}
	var b strings.Builder
	for i, e := range h {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(e.String())
	}
	return b.String()
}

func (s *Session) help() string {
	return `Commands:
  help | :h          show this help
  :history           show the last ` + strconv.Itoa(s.opts.Window) + ` results
  :convert key v     convert units, e.g. :convert c_to_f 100
  :mem / :mc         show / clear memory
  M+ / M- / MR / MC  add the last result to memory, subtract it, show, clear
  exit | :q          quit

Functions: ` + strings.Join(calc.Funcs(), ", ") + `
Constants: ` + strings.Join(calc.Constants(), ", ") + `

Assignment: a = 3.5
Example: 2 * (3 + sin(pi/4)) - sqrt(9)

Conversions: ` + strings.Join(units.Keys(), ", ")
}

// Vars returns the names of the session's variables in sorted order.
func (s *Session) Vars() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := make([]string, 0, len(s.vars))
	for k := range s.vars {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// Lookup returns a copy of a variable's value, or nil if it is not set.
func (s *Session) Lookup(name string) *apd.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vars[name]
	if v == nil {
		return nil
	}
	return new(apd.Decimal).Set(v)
}

// Memory returns a copy of the memory register.
func (s *Session) Memory() *apd.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(apd.Decimal).Set(s.memory)
}

// History returns a copy of the full history, oldest first.
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.history...)
}

// splitAssign recognizes a line of the form name = expr. There must be
// exactly one = outside brackets and string literals that is not part of a
// comparison or :=.
func splitAssign(line string) (name, src string, ok bool) {
	depth := 0
	var quote rune
	esc := false
	at := -1
	var prev rune
	for i, r := range line {
		switch {
		case quote != 0:
			switch {
			case esc:
				esc = false
			case r == '\\':
				esc = true
			case r == quote:
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case strings.ContainsRune("([{", r):
			depth++
		case strings.ContainsRune(")]}", r):
			depth--
		case r == '=' && depth == 0:
			if strings.ContainsRune("=!<>:", prev) || strings.HasPrefix(line[i+1:], "=") {
				break
			}
			if at >= 0 {
				return "", "", false
			}
			at = i
		}
		prev = r
	}
	if at < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:at]), strings.TrimSpace(line[at+1:]), true
}

// isIdentifier reports whether s is a letter or underscore followed by
// letters, digits, and underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
