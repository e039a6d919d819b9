// Package selection turns the user's choice of optional features into a
// normalized, deduplicated list of feature IDs.
package selection

import (
	"context"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
)

// Mode says how optional features are chosen.
type Mode int

const (
	// ModeUnattended selects no optional features.
	ModeUnattended Mode = iota
	// ModeExplicit takes the IDs given on the command line or in config.
	ModeExplicit
	// ModeInteractive shows the checklist.
	ModeInteractive
)

func (m Mode) String() string {
	switch m {
	case ModeExplicit:
		return "explicit"
	case ModeInteractive:
		return "interactive"
	default:
		return "unattended"
	}
}

// Prompter shows a checklist and returns the confirmed IDs.
type Prompter func(ctx context.Context, list *Checklist) ([]string, error)

// Resolver resolves optional feature selections.
type Resolver struct {
	Options []Option
	// Preselected is checked when the checklist opens.
	Preselected []string
	// IsTerminal reports whether an interactive prompt is possible.
	IsTerminal func() bool
	Prompt     Prompter
	// Warnings go here; nil discards them.
	Warnings io.Writer
}

// NewResolver returns a Resolver that prompts on the process terminal.
func NewResolver(opts []Option) *Resolver {
	return &Resolver{
		Options:    opts,
		IsTerminal: stdioIsTerminal,
		Prompt: func(ctx context.Context, list *Checklist) ([]string, error) {
			return RunChecklist(ctx, os.Stdin, os.Stdout, "Select optional features", list)
		},
		Warnings: os.Stderr,
	}
}

func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Resolve returns the selected optional feature IDs in option order.
//
// raw is only read in ModeExplicit. Entries may be comma separated;
// "all" selects every option and "none" nothing. An unknown ID is an
// ErrInvalidInput error.
func (r *Resolver) Resolve(ctx context.Context, mode Mode, raw []string) ([]string, error) {
	logger := logging.GetLogger("selection")

	switch mode {
	case ModeExplicit:
		ids, err := r.parse(raw)
		if err != nil {
			return nil, err
		}
		logger.Debug().Strs("features", ids).Msg("explicit selection")
		return ids, nil

	case ModeInteractive:
		if len(r.Options) == 0 {
			return nil, nil
		}
		if r.IsTerminal == nil || !r.IsTerminal() {
			if r.Warnings != nil {
				color.Warnf(r.Warnings, "no terminal available; skipping optional feature selection")
			}
			logger.Warn().Msg("no controlling terminal, selecting no optional features")
			return nil, nil
		}
		ids, err := r.Prompt(ctx, NewChecklist(r.Options, r.Preselected...))
		if err != nil {
			return nil, err
		}
		return r.normalize(ids), nil

	default:
		return nil, nil
	}
}

func (r *Resolver) parse(raw []string) ([]string, error) {
	var ids []string
	for _, item := range raw {
		for _, id := range strings.Split(item, ",") {
			id = strings.TrimSpace(id)
			switch id {
			case "":
				continue
			case "none":
				continue
			case "all":
				for _, o := range r.Options {
					ids = append(ids, o.ID)
				}
				continue
			}
			if !r.known(id) {
				return nil, errors.Newf(errors.ErrInvalidInput, "unknown optional feature %q (available: %s)", id, strings.Join(r.ids(), ", ")).
					WithDetail("feature", id)
			}
			ids = append(ids, id)
		}
	}
	return r.normalize(ids), nil
}

// normalize dedups ids and puts them in option order, dropping unknowns.
func (r *Resolver) normalize(ids []string) []string {
	var out []string
	for _, o := range r.Options {
		if slices.Contains(ids, o.ID) {
			out = append(out, o.ID)
		}
	}
	return out
}

func (r *Resolver) known(id string) bool {
	return slices.ContainsFunc(r.Options, func(o Option) bool { return o.ID == id })
}

func (r *Resolver) ids() []string {
	out := make([]string, len(r.Options))
	for i, o := range r.Options {
		out[i] = o.ID
	}
	return out
}
