package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/atomikpanda/autozsh/internal/audit"
	"github.com/atomikpanda/autozsh/internal/catalog"
	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/config"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/runner"
	"github.com/atomikpanda/autozsh/internal/selection"
)

type options struct {
	configFile string
	dryRun     bool
	rollback   bool
	yes        bool
	purge      bool
	features   []string
	onPrior    string
	verbosity  int
}

// errReported marks a flag error whose message and usage were already
// printed.
var errReported = stderrors.New("flag error reported")

func main() {
	color.Init()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := buildRoot(stdout, stderr)
	root.SetArgs(normalizeArgs(args))
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			color.Errorf(stderr, "%v", err)
		}
		return 1
	}
	return 0
}

// boolShorts are the single-letter flags accepted in either case.
const boolShorts = "drhvy"

// normalizeArgs lowercases short boolean flag clusters such as -D or -Rv.
// Everything after "--" is left alone.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		if a == "--" {
			break
		}
		if len(a) < 2 || a[0] != '-' || a[1] == '-' {
			continue
		}
		lower := strings.ToLower(a[1:])
		if strings.Trim(lower, boolShorts) == "" {
			out[i] = "-" + lower
		}
	}
	return out
}

func buildRoot(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "autozsh",
		Short: "Install and configure zsh, oh-my-zsh and friends, idempotently",
		Long: `autozsh installs zsh, the oh-my-zsh framework, the powerlevel10k theme,
a Nerd Font, plugins and optional command-line tools, then merges the
matching settings into ~/.zshrc. Running it again only fills in what is
missing. Every run that changes ~/.zshrc backs it up first, and -r undoes
an installation.`,
		Example: `  autozsh              install, choosing optional tools interactively
  autozsh -d           report what an install would do
  autozsh --yes --features fzf,zoxide
  autozsh -r           roll back
  autozsh -r --purge   roll back and delete ~/.oh-my-zsh`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, o)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		color.Errorf(stderr, "%v", err)
		fmt.Fprint(stderr, c.UsageString())
		return errReported
	})

	f := root.Flags()
	f.StringVarP(&o.configFile, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	f.BoolVarP(&o.dryRun, "dry-run", "d", false, "report what would be done without changing anything")
	f.BoolVarP(&o.rollback, "rollback", "r", false, "restore the latest backup and remove installed resources")
	f.BoolVarP(&o.yes, "yes", "y", false, "run unattended: never prompt")
	f.BoolVar(&o.purge, "purge", false, "with -r, also delete the whole framework directory (asks first)")
	f.StringSliceVar(&o.features, "features", nil, "optional features to install (comma separated, or all/none)")
	f.StringVar(&o.onPrior, "on-prior-install", "", "what to do about an existing installation when not prompting: update, abort, rollback, reinstall")
	f.CountVarP(&o.verbosity, "verbose", "v", "more log output (repeatable)")
	root.MarkFlagsMutuallyExclusive("dry-run", "rollback")

	root.AddCommand(historyCmd(), featuresCmd())
	return root
}

func runRoot(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	overrides := map[string]any{}
	if flags.Changed("features") {
		overrides["features"] = o.features
	}
	if o.yes {
		overrides["unattended"] = true
	}
	if o.dryRun {
		overrides["dry_run"] = true
	}
	if o.verbosity > 0 {
		overrides["verbosity"] = o.verbosity
	}
	if flags.Changed("on-prior-install") {
		overrides["on_prior_install"] = o.onPrior
	}

	s, err := config.Load(config.Options{Path: o.configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	logging.SetupLogger(s.Verbosity)
	logger := logging.GetLogger("main")
	logger.Debug().Str("config", s.Source).Str("rc", s.RCFile).Msg("settings loaded")

	cat, err := catalog.Load(s.Paths(), s.CatalogFile)
	if err != nil {
		return err
	}

	interactive := !s.Unattended && isTerminal()
	mode := selectionMode(s, flags.Changed("features"), interactive)
	var prompt runner.Prompter = runner.Unattended{Policy: s.OnPriorInstall, Yes: s.Unattended}
	if interactive {
		prompt = runner.Interactive{}
	}

	r, err := runner.New(s, cat, mode, prompt)
	if err != nil {
		return err
	}
	r.Purge = o.purge
	r.Out = cmd.OutOrStdout()
	r.Err = cmd.ErrOrStderr()

	var sum *runner.Summary
	switch {
	case o.rollback:
		sum, err = r.Rollback(ctx)
	case s.DryRun:
		sum, err = r.DryRun(ctx)
	default:
		sum, err = r.Install(ctx)
	}
	if sum != nil {
		sum.Print(cmd.OutOrStdout())
	}
	if errors.IsErrorCode(err, errors.ErrInterrupted) {
		logger.Info().Msg("interrupted by user")
	}
	return err
}

// selectionMode decides how optional features are chosen. An explicit
// --features always wins; configured features are used when nobody can
// be asked.
func selectionMode(s *config.Settings, featuresFlag, interactive bool) selection.Mode {
	switch {
	case featuresFlag:
		return selection.ModeExplicit
	case interactive:
		return selection.ModeInteractive
	case len(s.Features) > 0:
		return selection.ModeExplicit
	default:
		return selection.ModeUnattended
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// --- history -----------------------------------------------------------------

func historyCmd() *cobra.Command {
	var command string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show what earlier runs did",
		Example: `  autozsh history
  autozsh history --command rollback
  autozsh history --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trail := &audit.Trail{}
			entries, err := trail.Read(command, limit)
			if err != nil {
				return errors.Wrap(err, errors.ErrInvalidInput, "read history")
			}
			printHistory(cmd.OutOrStdout(), entries)
			fmt.Fprintf(cmd.OutOrStdout(), "\nhistory: %s\n", audit.DefaultPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "only show install, dry-run or rollback entries")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to show")
	return cmd
}

func printHistory(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no history)")
		return
	}
	fmt.Fprintln(w, color.Bold(fmt.Sprintf("%-19s  %-8s  %-19s  %-8s  %s",
		"TIME", "COMMAND", "STEP", "OUTCOME", "DETAIL")))
	fmt.Fprintln(w, color.Dim(strings.Repeat("-", 90)))
	for _, e := range entries {
		ts := e.Time.Local().Format(time.DateTime)
		outcome := fmt.Sprintf("%-8s", e.Outcome)
		switch e.Outcome {
		case audit.Success:
			outcome = color.Green(outcome)
		case audit.Failure:
			outcome = color.BoldRed(outcome)
		case audit.Warning:
			outcome = color.Yellow(outcome)
		case audit.Skipped:
			outcome = color.Dim(outcome)
		}
		detail := e.Detail
		if e.Feature != "" {
			detail = e.Feature + ": " + detail
		}
		if e.Error != "" {
			detail += " (" + e.Error + ")"
		}
		fmt.Fprintf(w, "%-19s  %-8s  %-19s  %s  %s\n", ts, e.Command, e.Step, outcome, detail)
	}
}

// --- features ----------------------------------------------------------------

func featuresCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "features [id]",
		Short: "List the features autozsh can install, or show one in detail",
		Example: `  autozsh features
  autozsh features fzf-tab`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(config.Options{Path: configFile})
			if err != nil {
				return err
			}
			cat, err := catalog.Load(s.Paths(), s.CatalogFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				f, ok := cat.Get(args[0])
				if !ok {
					return errors.Newf(errors.ErrInvalidInput, "unknown feature %q", args[0])
				}
				printFeature(w, f)
				return nil
			}
			for _, f := range cat.All() {
				kind := "always"
				if f.Optional {
					kind = "optional"
				}
				fmt.Fprintf(w, "%-24s %-9s %s\n", f.ID, kind, color.Dim(f.Description))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file")
	return cmd
}

func printFeature(w io.Writer, f catalog.Feature) {
	kind := "always installed"
	switch {
	case f.Optional:
		kind = "optional"
	case f.Foundational:
		kind = "required, a failure stops the install"
	}
	fmt.Fprintf(w, "%s (%s)\n", color.Bold(f.Label), f.ID)
	if f.Description != "" {
		fmt.Fprintf(w, "  %s\n", f.Description)
	}
	fmt.Fprintf(w, "  stage: %s, %s\n", f.Stage, kind)
	if len(f.Resources) > 0 {
		fmt.Fprintln(w, color.Dim("  resources:"))
		for _, r := range f.Resources {
			fmt.Fprintf(w, "    %s\n", r.Describe())
		}
	}
	if len(f.Directives) > 0 {
		fmt.Fprintln(w, color.Dim("  config:"))
		for _, d := range f.Directives {
			fmt.Fprintf(w, "    %s\n", d.Describe())
		}
	}
}
