// Package main is the entry point for the propbridge CLI.
// propbridge runs catalogued gopter properties with tracing, renders
// counterexamples as Go or C# source and keeps falsified runs for replay.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomagicln/propbridge/internal/catalog"
)

// Build information, set via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries the streams and dependencies shared by the commands.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	catalog    *catalog.Catalog
	styles     styles
}

// Execute runs the root command with the given arguments and streams.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		catalog: catalog.Builtin(),
		styles:  newStyles(stdout),
	}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "propbridge",
		Short: "propbridge - traced property checks with source-code counterexamples",
		Long: `propbridge runs gopter properties through a tracing runner.

Failures are reported with the number of trials and shrink steps and the
shrunk counterexample rendered as Go or C# source, and are stored so that
they can be replayed with the same seed.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the config file (default: $PROPBRIDGE_CONFIG or the config directory)")

	rootCmd.AddCommand(
		a.renderCmd(),
		a.listCmd(),
		a.runCmd(),
		a.failuresCmd(),
		a.versionCmd(),
	)

	return rootCmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(a.stdout, "propbridge %s (commit: %s, built: %s)\n", version, commit, date)
			return err
		},
	}
}
