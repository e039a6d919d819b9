// Package actions materializes catalog resources on disk. Each resource
// kind has its own Action; Fetcher picks one and reports an Outcome.
package actions

import (
	"context"
	"fmt"
	"io"
)

// Action is a single executable step produced from a resource spec.
type Action interface {
	// Describe returns a human-readable summary of the action.
	Describe() string
	// Run executes the action. When dryRun is true it only prints what
	// would happen to the action's writer.
	Run(ctx context.Context, dryRun bool) error
}

// Ensurer is implemented by every resource action. Ensure converges the
// resource and reports what it did; Plan reports what Ensure would do
// without touching anything.
//
// What counts as already in place:
//   - PackageAction: one of the package's executables is on PATH.
//   - DownloadAction: something already exists at the target path.
//   - VersionedDirectoryAction: never skipped outright; an existing
//     checkout is fast-forwarded.
type Ensurer interface {
	Action
	Ensure(ctx context.Context) Outcome
	Plan(ctx context.Context) string
}

// Status is the result category of Ensure.
type Status int

const (
	Created Status = iota
	Updated
	SkippedExisting
	Failed
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case SkippedExisting:
		return "skipped"
	default:
		return "failed"
	}
}

// PathKind says what an entry in Outcome.Paths is.
type PathKind string

const (
	PathDirectory PathKind = "directory"
	PathFile      PathKind = "file"
)

// CreatedPath is a filesystem path a resource action brought into being.
type CreatedPath struct {
	Path string
	Kind PathKind
}

// Outcome reports the result of ensuring one resource.
type Outcome struct {
	Status Status
	Target string
	// Reason is a short human explanation.
	Reason string
	// Warning is set when the resource is usable but something deserves
	// the user's attention (unmanaged directory, failed update).
	Warning string
	Err     error
	Paths   []CreatedPath
}

// OK reports whether the resource is in place.
func (o Outcome) OK() bool { return o.Status != Failed }

func (o Outcome) String() string {
	if o.Reason == "" {
		return fmt.Sprintf("%s %s", o.Status, o.Target)
	}
	return fmt.Sprintf("%s %s (%s)", o.Status, o.Target, o.Reason)
}

func failed(target string, err error) Outcome {
	return Outcome{Status: Failed, Target: target, Reason: err.Error(), Err: err}
}

// runVia is the shared Run implementation: dry runs print the plan, real
// runs call Ensure, print the outcome and surface its error.
func runVia(ctx context.Context, e Ensurer, dryRun bool, w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	if dryRun {
		fmt.Fprintf(w, "    %s: %s\n", e.Describe(), e.Plan(ctx))
		return nil
	}
	o := e.Ensure(ctx)
	fmt.Fprintf(w, "    %s\n", o)
	return o.Err
}
