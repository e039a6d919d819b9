package runner

import (
	"context"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/atomikpanda/autozsh/internal/config"
	"github.com/atomikpanda/autozsh/internal/errors"
)

// Prompter asks the user the orchestrator's yes/no and multiple-choice
// questions.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
	PriorInstall(ctx context.Context, where string) (config.PriorInstallPolicy, error)
}

// Unattended answers every question from configuration.
type Unattended struct {
	Policy config.PriorInstallPolicy
	// Yes answers confirmations affirmatively.
	Yes bool
}

func (u Unattended) Confirm(context.Context, string) (bool, error) { return u.Yes, nil }

func (u Unattended) PriorInstall(context.Context, string) (config.PriorInstallPolicy, error) {
	if u.Policy == "" {
		return config.PriorAbort, nil
	}
	return u.Policy, nil
}

// Interactive asks on the terminal with huh forms.
type Interactive struct {
	In  io.Reader
	Out io.Writer
}

func (p Interactive) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := p.run(ctx, field); err != nil {
		return false, err
	}
	return ok, nil
}

func (p Interactive) PriorInstall(ctx context.Context, where string) (config.PriorInstallPolicy, error) {
	choice := config.PriorAbort
	field := huh.NewSelect[config.PriorInstallPolicy]().
		Title("An existing installation was found").
		Description(where).
		Options(
			huh.NewOption("Update it in place", config.PriorUpdate),
			huh.NewOption("Abort", config.PriorAbort),
			huh.NewOption("Roll back, then stop", config.PriorRollback),
			huh.NewOption("Roll back, then reinstall", config.PriorReinstall),
		).
		Value(&choice)
	if err := p.run(ctx, field); err != nil {
		return "", err
	}
	return choice, nil
}

func (p Interactive) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field))
	if p.In != nil {
		form = form.WithInput(p.In)
	}
	if p.Out != nil {
		form = form.WithOutput(p.Out)
	}
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.Wrap(err, errors.ErrInterrupted, "cancelled")
		}
		return errors.Wrap(err, errors.ErrInterrupted, "prompt failed")
	}
	return nil
}
