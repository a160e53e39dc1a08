package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode"

	"github.com/peterh/liner"

	"github.com/zephyrtronium/calc"
	"github.com/zephyrtronium/calc/internal/config"
	"github.com/zephyrtronium/calc/internal/journal"
	"github.com/zephyrtronium/calc/internal/session"
)

const banner = `Safe decimal calculator. Type "help" for commands, "exit" to quit.`

// commands are the session commands offered by completion.
var commands = []string{
	"help", ":help", "exit", ":quit", "history", ":history",
	":mem", ":mc", ":convert", "M+", "M-", "MR", "MC",
}

// prompter is the part of *liner.State the REPL loop uses.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// interactive runs the REPL on the terminal and returns the exit status.
func interactive(ctx context.Context, sess *session.Session, cfg config.Config) int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetWordCompleter(completer(sess))

	save := func() {}
	if cfg.HistoryFile != "" {
		path := cfg.HistoryFile
		if f, err := os.Open(path); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		save = func() {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				slog.Warn("creating history directory", slog.Any("error", err))
				return
			}
			f, err := os.Create(path)
			if err != nil {
				slog.Warn("saving history", slog.Any("error", err))
				return
			}
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	defer save()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		sig := <-sigc
		slog.Info("terminating on signal", slog.String("signal", sig.String()))
		save()
		ln.Close()
		fmt.Println()
		fmt.Println(session.Farewell)
		os.Exit(0)
	}()

	fmt.Println(banner)
	return repl(ctx, ln, sess, cfg.Prompt, os.Stdout)
}

// repl reads and handles lines until the input ends or a line asks to exit.
func repl(ctx context.Context, in prompter, sess *session.Session, prompt string, out io.Writer) int {
	for {
		line, err := in.Prompt(prompt)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(out)
			fmt.Fprintln(out, session.Farewell)
			return 0
		case err != nil:
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		if strings.TrimSpace(line) != "" {
			in.AppendHistory(line)
		}
		r, exit := sess.Handle(ctx, line)
		if r != "" {
			fmt.Fprintln(out, r)
		}
		if exit {
			return 0
		}
	}
}

// batch handles each line in order and reports whether all of them
// succeeded. An exit command stops processing.
func batch(ctx context.Context, sess *session.Session, lines []string, out io.Writer) bool {
	ok := true
	for _, line := range lines {
		r, err := sess.Exec(ctx, line)
		switch {
		case errors.Is(err, session.ErrExit):
			return ok
		case err != nil:
			fmt.Fprintln(out, "Error: "+err.Error())
			ok = false
		case r != "":
			fmt.Fprintln(out, r)
		}
	}
	return ok
}

// recentReader is the part of *journal.Journal that printTail uses.
type recentReader interface {
	Recent(ctx context.Context, n int) ([]journal.Record, error)
}

// printTail writes the newest n journal records, oldest first.
func printTail(ctx context.Context, w io.Writer, j recentReader, n int) error {
	recs, err := j.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	for _, r := range recs {
		e := session.Entry{Kind: r.Kind, Input: r.Input, Result: r.Result}
		fmt.Fprintf(w, "%s  %s\n", r.At.Format("2006-01-02 15:04:05"), e)
	}
	return nil
}

// completer completes the word under the cursor with function, constant,
// variable, and command names.
func completer(sess *session.Session) liner.WordCompleter {
	return func(line string, pos int) (string, []string, string) {
		return complete(line, pos, sess.Vars())
	}
}

func complete(line string, pos int, vars []string) (head string, completions []string, tail string) {
	r := []rune(line)
	if pos > len(r) {
		pos = len(r)
	}
	start := pos
	for start > 0 && isWordRune(r[start-1]) {
		start--
	}
	head, word, tail := string(r[:start]), string(r[start:pos]), string(r[pos:])
	var cands []string
	if strings.TrimSpace(head) == "" {
		cands = append(cands, commands...)
	}
	cands = append(cands, calc.Funcs()...)
	cands = append(cands, calc.Constants()...)
	cands = append(cands, vars...)
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if seen[c] || !strings.HasPrefix(c, word) {
			continue
		}
		seen[c] = true
		completions = append(completions, c)
	}
	return head, completions, tail
}

func isWordRune(r rune) bool {
	return r == '_' || r == ':' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
