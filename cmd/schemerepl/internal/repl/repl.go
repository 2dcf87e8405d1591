// Package repl implements the interactive loop and the meta-command
// layer (":stats", ":gc", ":quit", etc.) that wraps the embeddable
// evaluator. It is the "illustrative client" spec §1 keeps out of the
// core library's scope: line editing, prompt formatting, and source-file
// I/O.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"github.com/schemecore/sch/diagnostics"
	"github.com/schemecore/sch/eval"
	"github.com/schemecore/sch/heap"
	"github.com/schemecore/sch/internal/lexer"
	"github.com/schemecore/sch/internal/reader"
	"github.com/schemecore/sch/internal/span"
)

// Options configures a Run invocation; it is filled in from command-line
// flags by cmd/schemerepl's root command.
type Options struct {
	NoInteractive   bool
	Verbose         bool
	ConfigPath      string
	GCThresholdHint int
}

// Profile is the shape of a --config YAML file: a custom prompt and a
// list of library files to preload before any script or REPL input, for
// hosts that want a standard prelude beyond the built-in one.
type Profile struct {
	Prompt  string   `yaml:"prompt"`
	Preload []string `yaml:"preload"`
}

func loadProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("repl: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("repl: parsing config %s: %w", path, err)
	}
	return p, nil
}

// Run drives the REPL: it loads any file arguments, then — unless
// NoInteractive — reads lines from in, feeding each through the
// lexer/reader/evaluator pipeline the same way a file load does, one
// top-level expression at a time.
func Run(ctx context.Context, in io.Reader, out io.Writer, fileArgs []string, opts Options) error {
	profile, err := loadProfile(opts.ConfigPath)
	if err != nil {
		return err
	}

	log := logr.Discard()
	if opts.Verbose {
		log = funcr.New(func(prefix, args string) {
			fmt.Fprintln(out, prefix, args)
		}, funcr.Options{})
	}

	arena := heap.NewArena()
	stdio := eval.NewStdIO(in, out)
	ev, err := eval.WithPrelude(arena, stdio, log)
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}

	sources := span.NewRegistry()
	parser := reader.New(ev.Arena())

	for _, path := range profile.Preload {
		if err := loadFile(ev, parser, sources, path, out); err != nil {
			return err
		}
	}
	for _, path := range fileArgs {
		if err := loadFile(ev, parser, sources, path, out); err != nil {
			return err
		}
	}

	if opts.NoInteractive {
		return nil
	}

	prompt := profile.Prompt
	if prompt == "" {
		prompt = "sch> "
	}
	return interactive(ctx, ev, parser, sources, in, out, prompt, opts.GCThresholdHint)
}

// loadFile tokenizes and parses path in full, evaluating each top-level
// expression as it completes. Unlike the REPL's line-at-a-time loop, a
// loaded file's prefix is never "incomplete" by the time loadFile sees
// it — ParseFinal reports a hard error if the file itself is malformed.
func loadFile(ev *eval.Evaluator, p *reader.Parser, sources *span.Registry, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("repl: reading %s: %w", path, err)
	}
	sourceID := sources.Add(path, data)
	toks, err := lexer.Tokenize(string(data), sourceID)
	if err != nil {
		printDiagnostic(out, string(data), err)
		return fmt.Errorf("repl: lexing %s failed", path)
	}
	p.PushTokens(toks)

	for {
		expr, err := p.ParseFinal()
		if err != nil {
			printDiagnostic(out, string(data), err)
			return fmt.Errorf("repl: parsing %s failed", path)
		}
		if expr == nil {
			return nil
		}
		if _, err := ev.Eval(expr); err != nil {
			printDiagnostic(out, string(data), err)
			return fmt.Errorf("repl: evaluating %s failed", path)
		}
	}
}

// interactive is the read-eval-print loop proper: each line is lexed and
// pushed onto the parser's token stream; Parse() is tried repeatedly
// (there may be more than one complete top-level form on one line, or a
// form may span several lines) until it reports "not yet", at which
// point the loop reads another line, per spec §4.2's incremental
// parsing contract.
func interactive(ctx context.Context, ev *eval.Evaluator, p *reader.Parser, sources *span.Registry, in io.Reader, out io.Writer, prompt string, gcEvery int) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var pending strings.Builder
	formCount := 0

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := scanner.Text()

		if meta, ok := parseMeta(line); ok {
			if handled := runMeta(ev, meta, out); handled {
				fmt.Fprint(out, prompt)
				continue
			}
		}

		pending.WriteString(line)
		pending.WriteByte('\n')

		sourceID := sources.Add("<repl>", []byte(pending.String()))
		toks, err := lexer.Tokenize(pending.String(), sourceID)
		if err != nil {
			printDiagnostic(out, pending.String(), err)
			pending.Reset()
			fmt.Fprint(out, prompt)
			continue
		}
		p.PushTokens(toks)

		for {
			expr, ok, err := p.Parse()
			if err != nil {
				printDiagnostic(out, pending.String(), err)
				pending.Reset()
				break
			}
			if !ok {
				if !p.Pending() {
					pending.Reset()
				}
				break
			}
			src := pending.String()
			pending.Reset()
			result, err := ev.Eval(expr)
			if err != nil {
				printDiagnostic(out, src, err)
				continue
			}
			fmt.Fprintln(out, eval.Repr(result))
			formCount++
			if gcEvery > 0 && formCount%gcEvery == 0 {
				stats := ev.CollectGarbage()
				fmt.Fprintf(out, "; gc: cons=%d envs=%d foreign=%d\n", stats.LiveCons, stats.LiveEnvs, stats.LiveForeign)
			}
		}

		if pending.Len() > 0 {
			fmt.Fprint(out, "...  ")
		} else {
			fmt.Fprint(out, prompt)
		}
	}
	return scanner.Err()
}

type metaCommand struct {
	name string
	args []string
}

func parseMeta(line string) (metaCommand, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		return metaCommand{}, false
	}
	fields, err := shlex.Split(trimmed[1:])
	if err != nil || len(fields) == 0 {
		return metaCommand{}, false
	}
	return metaCommand{name: fields[0], args: fields[1:]}, true
}

// runMeta handles a REPL meta-command; it reports true if the line was
// consumed as a command (even an unrecognized one), so the caller never
// hands a leading ":" to the lexer.
func runMeta(ev *eval.Evaluator, cmd metaCommand, out io.Writer) bool {
	switch cmd.name {
	case "quit", "exit":
		os.Exit(0)
	case "gc":
		stats := ev.CollectGarbage()
		fmt.Fprintf(out, "; collected: cons=%d envs=%d foreign=%d (freed %d/%d/%d)\n",
			stats.LiveCons, stats.LiveEnvs, stats.LiveForeign,
			stats.LastFreedCons, stats.LastFreedEnvs, stats.LastFreedForeign)
	case "stats":
		stats := ev.HeapStats()
		fmt.Fprintf(out, "; cons=%d envs=%d foreign=%d collections=%d\n",
			stats.LiveCons, stats.LiveEnvs, stats.LiveForeign, stats.Collections)
	default:
		fmt.Fprintf(out, "; unknown command: :%s\n", cmd.name)
	}
	return true
}

func printDiagnostic(out io.Writer, source string, err error) {
	if sp, ok := err.(diagnostics.Spanned); ok {
		fmt.Fprintln(out, diagnostics.Render(source, sp))
		return
	}
	fmt.Fprintln(out, err)
}
