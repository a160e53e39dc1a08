package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zephyrtronium/calc/internal/config"
	"github.com/zephyrtronium/calc/internal/journal"
	"github.com/zephyrtronium/calc/internal/session"
)

func main() {
	log.SetFlags(0)
	var (
		cfgpath, level, logfile string
		driver, dsn, inname     string
		digits, tail            int
		echo                    bool
		with                    [][2]string
	)
	addwith := func(s string) error {
		d := strings.SplitN(s, "=", 2)
		if len(d) != 2 {
			return fmt.Errorf(`variable definitions must be "name=value", not %q`, s)
		}
		with = append(with, [2]string{strings.TrimSpace(d[0]), strings.TrimSpace(d[1])})
		return nil
	}
	flag.StringVar(&cfgpath, "config", config.DefaultPath(), "TOML configuration file")
	flag.IntVar(&digits, "digits", 0, "significant digits in results (default from config, 28)")
	flag.StringVar(&level, "log-level", "", "log level: debug, info, warn, error, none")
	flag.StringVar(&logfile, "log-file", "", "log file path (if not set, logs to stderr)")
	flag.StringVar(&driver, "journal-driver", "", "journal database driver: sqlite3, mysql, postgres")
	flag.StringVar(&dsn, "journal-dsn", "", "journal data source name")
	flag.IntVar(&tail, "journal-tail", 0, "print the last N journal entries before starting")
	flag.BoolVar(&echo, "echo", false, "print parse trees along with results")
	flag.StringVar(&inname, "in", "", "file of lines to process, - for stdin")
	flag.Func("given", "name=value variable definition (any number of times)", addwith)
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg, err := config.Load(cfgpath, !set["config"])
	if err != nil {
		log.Fatal(err)
	}
	if set["digits"] {
		cfg.Digits = digits
	}
	if set["log-level"] {
		cfg.Log.Level = level
	}
	if set["log-file"] {
		cfg.Log.File = logfile
	}
	if set["journal-driver"] {
		cfg.Journal.Driver = driver
	}
	if set["journal-dsn"] {
		cfg.Journal.DSN = dsn
	}
	cfg.Echo = cfg.Echo || echo
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx := context.Background()
	opts := session.Options{
		Digits:   cfg.Digits,
		Window:   cfg.HistoryWindow,
		MaxInput: cfg.MaxInput,
		MaxDepth: cfg.MaxDepth,
		Echo:     cfg.Echo,
		Logger:   logger,
	}
	var jn *journal.Journal
	if cfg.Journal.Driver != "" {
		j, err := journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			log.Fatal(err)
		}
		jn = j
		opts.Journal = j
		if tail > 0 {
			if err := printTail(ctx, os.Stdout, j, tail); err != nil {
				log.Fatal(err)
			}
		}
	} else if tail > 0 {
		log.Fatal("-journal-tail needs a journal driver")
	}
	sess := session.New(opts)
	for _, d := range with {
		if _, err := sess.Exec(ctx, d[0]+" = "+d[1]); err != nil {
			log.Fatalf("setting %s: %v", d[0], err)
		}
	}

	lines := flag.Args()
	in, err := infile(inname)
	if err != nil {
		log.Fatal(err)
	}
	if in != nil {
		lines, err = readLines(in, lines)
		if err != nil {
			log.Fatal(err)
		}
	}
	var code int
	switch {
	case len(lines) > 0 || in != nil:
		if !batch(ctx, sess, lines, os.Stdout) {
			code = 1
		}
	default:
		code = interactive(ctx, sess, cfg)
	}
	if jn != nil {
		if err := jn.Close(); err != nil {
			logger.Error("closing journal", slog.Any("error", err))
		}
	}
	os.Exit(code)
}

// newLogger creates the JSON logger described by the log settings. The level
// "none" discards everything.
func newLogger(c config.Log) *slog.Logger {
	lvl, ok := logLevelFromString(c.Level)
	if !ok {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     lvl,
	}
	return slog.New(slog.NewJSONHandler(configureLogWriter(c.File), loggerOptions))
}

func configureLogWriter(logFile string) io.Writer {
	if logFile == "" {
		return os.Stderr
	}
	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	w, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	return w
}

// logLevelFromString maps a level name to a slog level. The second result is
// false when logging is disabled.
func logLevelFromString(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "none", "":
		return 0, false
	default:
		return slog.LevelError, true
	}
}

func infile(inname string) (io.Reader, error) {
	switch inname {
	case "":
		return nil, nil
	case "-":
		return os.Stdin, nil
	}
	f, err := os.Open(inname)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// readLines appends each line of r to lines.
func readLines(r io.Reader, lines []string) ([]string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
