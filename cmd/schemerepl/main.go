// Command schemerepl is the illustrative client spec §1 describes: "the
// companion REPL is an illustrative client" to the embeddable
// interpreter library in package eval. It owns line editing concerns
// (reading a line at a time, feeding it incrementally to the parser)
// and the host I/O bindings for print/read — none of which the core
// library touches directly (spec §5).
//
// Grounded on cmd/cue's cobra.Command tree (cuelang.org/go/cmd/cue/cmd):
// a root command builds shared state once, sub-commands attach flags
// via pflag, and --config can load a REPL profile from YAML.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemecore/sch/cmd/schemerepl/internal/repl"
)

func main() {
	os.Exit(Main())
}

// Main runs the command and returns the process exit code. Split out from
// main so the testscript harness can invoke it in-process as a subcommand.
func Main() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts repl.Options

	root := &cobra.Command{
		Use:   "schemerepl [file ...]",
		Short: "a REPL and script runner for the embeddable Scheme-like evaluator",
		Long: `schemerepl hosts the interpreter library interactively.

With no arguments it starts a line-oriented REPL reading from stdin.
Given one or more file arguments, each is loaded and evaluated in
order, and the REPL starts afterward unless --no-interactive is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return repl.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		},
	}

	flags := root.Flags()
	flags.BoolVar(&opts.NoInteractive, "no-interactive", false, "exit after loading files instead of starting a REPL")
	flags.BoolVar(&opts.Verbose, "verbose", false, "hand the evaluator a human-readable logger (the evaluator and heap emit no log lines)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a YAML REPL profile (prompt, prelude files)")
	flags.IntVar(&opts.GCThresholdHint, "gc-stats", 0, "force a garbage collection every N top-level forms (0 disables)")

	return root
}
