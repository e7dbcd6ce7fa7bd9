package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/leanovate/gopter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomagicln/propbridge/internal/catalog"
	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/config"
	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
	"github.com/nomagicln/propbridge/pkg/store"
)

// loadConfig loads the --config file, or the default one.
func (a *app) loadConfig() (*config.File, error) {
	if a.configPath != "" {
		return config.Load(a.configPath)
	}
	return config.LoadDefault()
}

// openStore opens the failure store of f, creating its directory.
func openStore(f *config.File) (*store.Store, error) {
	if f.Store.Path != store.Memory {
		if err := os.MkdirAll(filepath.Dir(f.Store.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return store.Open(f.Store.Path)
}

// notationFlags binds the rendering flags over a base configuration.
type notationFlags struct {
	format         string
	preferInit     bool
	paramNames     bool
	fullNames      bool
	skipAssignment bool
}

func (n *notationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&n.format, "format", "f", "", "Notation: "+strings.Join(notation.ListFormats(), ", "))
	cmd.Flags().BoolVar(&n.preferInit, "prefer-init", false, "Render field blocks instead of constructor calls")
	cmd.Flags().BoolVar(&n.paramNames, "param-names", false, "Name constructor arguments")
	cmd.Flags().BoolVar(&n.fullNames, "full-names", false, "Qualify type names with their package")
	cmd.Flags().BoolVar(&n.skipAssignment, "skip-assignment", false, "Render bare expressions without bindings")
}

// apply overrides base with the flags that were set on cmd.
func (n *notationFlags) apply(cmd *cobra.Command, base notation.Config) (notation.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		if !notation.ValidateFormat(n.format) {
			return base, fmt.Errorf("unknown format '%s' (available: %s)", n.format, strings.Join(notation.ListFormats(), ", "))
		}
		base = base.As(notation.Format(n.format))
	}
	if flags.Changed("prefer-init") {
		base = base.With(notation.WithPreferObjectInitialization(n.preferInit))
	}
	if flags.Changed("param-names") {
		base = base.With(notation.WithIncludeParameterNames(n.paramNames))
	}
	if flags.Changed("full-names") {
		base = base.With(notation.WithIncludeFullTypeNames(n.fullNames))
	}
	if flags.Changed("skip-assignment") {
		base = base.With(notation.WithSkipCreateAssignment(n.skipAssignment))
	}
	return base, nil
}

// renderCmd creates the render subcommand
func (a *app) renderCmd() *cobra.Command {
	var nf notationFlags

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render YAML or JSON values as source code",
		Long: `Render YAML or JSON values as Go or C# source.
Each YAML document is one value; several documents are bound to data0, data1, ...
Without a file the values are read from standard input.

Example:
  propbridge render values.yaml --format csharp
  echo '{"id": 1, "tags": [a, b]}' | propbridge render --skip-assignment`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadConfig()
			if err != nil {
				return err
			}
			nc, err := nf.apply(cmd, f.NotationConfig())
			if err != nil {
				return err
			}

			in := a.stdin
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer func() { _ = file.Close() }()
				in = file
			}

			values, err := decodeValues(in)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return fmt.Errorf("no values to render")
			}

			_, err = fmt.Fprintln(a.stdout, notation.RenderEach(values, nc))
			return err
		},
	}

	nf.register(cmd)
	return cmd
}

// decodeValues reads every YAML document of r.
func decodeValues(r io.Reader) ([]any, error) {
	dec := yaml.NewDecoder(r)
	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse input: %w", err)
		}
		values = append(values, v)
	}
}

// listCmd creates the list subcommand
func (a *app) listCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued properties",
		Long: `List the catalogued properties, optionally filtered by a predicate expression.

Example:
  propbridge list
  propbridge list --filter 'HasTag("notation") && !HasTag("slow")'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.catalog.Filter(filter)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintln(a.stdout, "No properties match.")
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tTAGS\tDESCRIPTION")
			_, _ = fmt.Fprintln(w, "----\t----\t-----------")
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, strings.Join(e.Tags, ","), e.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Predicate expression selecting properties")
	return cmd
}

// runOptions holds the flags of the run subcommand.
type runOptions struct {
	filter      string
	seed        int64
	replay      bool
	maxTest     int
	workers     int
	traceRuns   bool
	diagnostics bool
	verbose     bool
	notation    notationFlags
}

// runCmd creates the run subcommand
func (a *app) runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run catalogued properties",
		Long: `Run catalogued properties with the tracing runner.
Falsified runs are stored with their seed; --replay reruns a property with the
seed of its latest stored failure.

Example:
  propbridge run --filter 'HasTag("fast")'
  propbridge run --filter 'NameIs("telemetry/lateness")' --diagnostics
  propbridge run --filter 'NameIs("smoke/below-ten")' --replay`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.filter, "filter", "", "Predicate expression selecting properties")
	flags.Int64Var(&opts.seed, "seed", 0, "Seed for the random generator (0 picks one)")
	flags.BoolVar(&opts.replay, "replay", false, "Reuse the seed of the latest stored failure")
	flags.IntVar(&opts.maxTest, "max-test", 0, "Number of successful trials required")
	flags.IntVar(&opts.workers, "workers", 0, "Goroutines running trials")
	flags.BoolVar(&opts.traceRuns, "trace", false, "Trace every trial and shrink step")
	flags.BoolVar(&opts.diagnostics, "diagnostics", false, "Enable the diagnostic trace hooks and the background reporter")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print the arguments of every trial")
	opts.notation.register(cmd)

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts runOptions) error {
	f, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.diagnostics {
		f.Runner.TraceDiagnostics = true
	}

	nc, err := opts.notation.apply(cmd, f.NotationConfig())
	if err != nil {
		return err
	}

	entries, err := a.catalog.Filter(opts.filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(a.stdout, "No properties match.")
		return err
	}

	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rc := f.RunnerConfig().With(
		runner.ThrowOnFailure(true),
		runner.Writer(runner.WriterTo(a.stdout)),
	)
	if opts.traceRuns {
		rc = rc.With(runner.TraceRuns(true))
	}

	failed := 0
	for _, e := range entries {
		seed, err := a.seedFor(ctx, st, e.Name, opts)
		if err != nil {
			return err
		}

		base := check.DefaultConfig()
		if opts.verbose {
			base = check.VerboseConfig()
		}
		checkOpts := append(f.CheckOptions(), e.Options...)
		checkOpts = append(checkOpts,
			check.Name(e.Name),
			check.Replay(seed),
			check.WithRunner(runner.NopRunner{}),
			check.RunnerConfig(rc),
			check.Notation(nc),
		)
		if opts.maxTest > 0 {
			checkOpts = append(checkOpts, check.MaxTest(opts.maxTest))
		}
		if opts.workers > 0 {
			checkOpts = append(checkOpts, check.Workers(opts.workers))
		}

		ok, err := a.runEntry(ctx, st, e, seed, base.With(checkOpts...), rc.Events)
		if err != nil {
			return err
		}
		if !ok {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d properties failed", failed, len(entries))
	}
	return nil
}

// seedFor picks the seed of one run: --seed, the stored failure with
// --replay, or a fresh one.
func (a *app) seedFor(ctx context.Context, st *store.Store, name string, opts runOptions) (int64, error) {
	if opts.seed != 0 {
		return opts.seed, nil
	}
	if opts.replay {
		latest, err := st.Latest(ctx, name)
		if err == nil {
			return latest.Seed, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		_, _ = fmt.Fprintln(a.stdout, a.styles.faint.Render(fmt.Sprintf("no stored failure for %s, using a new seed", name)))
	}
	return time.Now().UnixNano(), nil
}

// runEntry checks one entry and reports the outcome. It returns false when
// the property was falsified or exhausted.
func (a *app) runEntry(ctx context.Context, st *store.Store, e catalog.Entry, seed int64, cfg check.Config, events *runner.TraceCalls) (bool, error) {
	_, _ = fmt.Fprintln(a.stdout, a.styles.title.Render(e.Name)+" "+a.styles.faint.Render(fmt.Sprintf("(seed %d)", seed)))

	start := time.Now()
	result, err := check.Run(ctx, e.Build(events), cfg)
	elapsed := time.Since(start)

	var failure *runner.FailureError
	switch {
	case errors.As(err, &failure):
		cause := ""
		if failure.Cause != nil {
			cause = failure.Cause.Error()
		}
		stored, recErr := st.Record(ctx, store.Failure{
			Property:       e.Name,
			Seed:           seed,
			Size:           failure.Size,
			Tests:          failure.Tests,
			Shrinks:        failure.Shrinks,
			Counterexample: failure.Counterexample,
			Cause:          cause,
		})
		if recErr != nil {
			return false, recErr
		}
		_, _ = fmt.Fprintln(a.stdout, a.styles.fail.Render("✗ "+e.Name+" failed"))
		_, _ = fmt.Fprintln(a.stdout, failure.Error())
		_, _ = fmt.Fprintln(a.stdout, a.styles.faint.Render("stored as "+stored.ID))
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%s: %w", e.Name, err)
	}

	if result.Status == gopter.TestExhausted {
		_, _ = fmt.Fprintln(a.stdout, a.styles.fail.Render(fmt.Sprintf("✗ %s: gave up after %s passed and %s discarded tests",
			e.Name, humanize.Comma(int64(result.Succeeded)), humanize.Comma(int64(result.Discarded)))))
		return false, nil
	}

	_, _ = fmt.Fprintln(a.stdout, a.styles.pass.Render(fmt.Sprintf("✓ %s: passed %s tests in %s",
		e.Name, humanize.Comma(int64(result.Succeeded)), elapsed.Round(time.Millisecond))))
	return true, nil
}

// failuresCmd creates the failures subcommand
func (a *app) failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect stored failures",
	}
	cmd.AddCommand(a.failuresListCmd(), a.failuresSearchCmd(), a.failuresClearCmd())
	return cmd
}

func (a *app) failuresListCmd() *cobra.Command {
	var property string
	var details bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored failures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.Store) error {
				failures, err := st.List(cmd.Context(), property)
				if err != nil {
					return err
				}
				return a.printFailures(failures, details)
			})
		},
	}

	cmd.Flags().StringVar(&property, "property", "", "Only list failures of this property")
	cmd.Flags().BoolVarP(&details, "details", "d", false, "Show the counterexamples")
	return cmd
}

func (a *app) failuresSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored failures",
		Long: `Search stored failures with an FTS5 query over the property name,
the counterexample and the cause.

Example:
  propbridge failures search NewSample
  propbridge failures search 'property:smoke AND cause:panicked'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.Store) error {
				failures, err := st.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printFailures(failures, true)
			})
		},
	}
	return cmd
}

func (a *app) failuresClearCmd() *cobra.Command {
	var property string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove stored failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.Store) error {
				n, err := st.Clear(cmd.Context(), property)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.stdout, "✓ Removed %d failure(s)\n", n)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&property, "property", "", "Only remove failures of this property")
	return cmd
}

func (a *app) withStore(fn func(*store.Store) error) error {
	f, err := a.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(f)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func (a *app) printFailures(failures []store.Failure, details bool) error {
	if len(failures) == 0 {
		_, err := fmt.Fprintln(a.stdout, "No failures stored.")
		return err
	}

	if details {
		for i, f := range failures {
			if i > 0 {
				_, _ = fmt.Fprintln(a.stdout)
			}
			_, _ = fmt.Fprintln(a.stdout, a.styles.title.Render(f.Property)+" "+a.styles.faint.Render(f.ID))
			_, _ = fmt.Fprintf(a.stdout, "  Recorded: %s (%s)\n", f.RecordedAt.Format(time.RFC3339), humanize.Time(f.RecordedAt))
			_, _ = fmt.Fprintf(a.stdout, "  Seed: %d\n", f.Seed)
			_, _ = fmt.Fprintf(a.stdout, "  Tests: %d, shrinks: %d, size: %d\n", f.Tests, f.Shrinks, f.Size)
			if f.Cause != "" {
				_, _ = fmt.Fprintf(a.stdout, "  Cause: %s\n", f.Cause)
			}
			_, _ = fmt.Fprintln(a.stdout, f.Counterexample)
		}
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROPERTY\tSEED\tTESTS\tSHRINKS\tRECORDED\tID")
	_, _ = fmt.Fprintln(w, "--------\t----\t-----\t-------\t--------\t--")
	for _, f := range failures {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n", f.Property, f.Seed, f.Tests, f.Shrinks, humanize.Time(f.RecordedAt), f.ID)
	}
	return w.Flush()
}
