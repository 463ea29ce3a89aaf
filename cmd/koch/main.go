package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/cognicore/koch/pkg/koch/config"
	"github.com/cognicore/koch/pkg/koch/store/backends"
)

type command struct {
	usage string
	flags func(fs *flag.FlagSet, o *overrides)
	run   func(ctx context.Context, a *app, o *overrides) error
}

var commands = map[string]command{
	"fetch":      {"download the pages of a URL table", fetchFlags, runFetch},
	"sample":     {"copy a random sample of a store", sampleFlags, runSample},
	"extract":    {"find the main content of fetched pages", nil, runExtract},
	"parse":      {"tokenize extracted content into words", nil, runParse},
	"textrank":   {"score document words with TextRank", nil, runTextRank},
	"tfidf":      {"score document words with tf-idf", nil, runTfIdf},
	"bayes":      {"classify documents with naive Bayes", nil, runBayes},
	"mutualinfo": {"score class keywords by mutual information", nil, runMutualInfo},
	"eval":       {"compare parsed text with labelled text", nil, runEval},
	"dump":       {"print the contents of a store", dumpFlags, runDump},
}

// overrides are command-line values applied on top of the config file
type overrides struct {
	configPath string
	verbose    bool
	debug      bool
	backend    string
	batchSize  int
	in         string
	out        string

	urls    stringList
	pattern string
	sample  int
	seed    int64
	limit   int
	width   int
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// app carries what every command needs
type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	debug  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "koch:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return flag.ErrHelp
	}
	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	var o overrides
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.BoolVar(&o.verbose, "v", false, "Debug logging")
	fs.BoolVar(&o.debug, "debug", false, "Keep output in memory and print it instead of storing it")
	fs.StringVar(&o.backend, "backend", "", "Store backend: "+strings.Join(backends.Names(), ", "))
	fs.IntVar(&o.batchSize, "batch-size", 0, "Writes per store batch")
	fs.StringVar(&o.in, "in", "", "Input path (overrides config)")
	fs.StringVar(&o.out, "out", "", "Output path (overrides config)")
	if cmd.flags != nil {
		cmd.flags(fs, &o)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.batchSize > 0 {
		cfg.Store.BatchSize = o.batchSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	a := &app{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})).With("cmd", name),
		stdout: stdout,
		debug:  o.debug,
	}
	return cmd.run(ctx, a, &o)
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: koch <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].usage)
	}
}

func pick(override, configured string) string {
	if override != "" {
		return override
	}
	return configured
}
