// Package rcfile applies declarative directives to a free-form shell rc
// file. Unrelated lines are preserved verbatim and re-applying a directive
// never changes the result.
package rcfile

import (
	"fmt"
	"strings"

	"github.com/atomikpanda/autozsh/internal/errors"
)

// Kind is the directive variant.
type Kind int

const (
	KindSetScalar Kind = iota
	KindListMember
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindSetScalar:
		return "set"
	case KindListMember:
		return "list"
	case KindBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Directive is one declarative change to the rc file. Build values with
// SetScalar, EnsureListMember or EnsureBlock.
type Directive struct {
	Kind Kind

	// set-scalar: Key=Value. list: Key=(... Value ...). block: Key is the marker.
	Key   string
	Value string

	// block body, written verbatim
	Lines []string
}

// SetScalar ensures key=value is the first assignment to key.
func SetScalar(key, value string) Directive {
	return Directive{Kind: KindSetScalar, Key: key, Value: value}
}

// EnsureListMember ensures member is a token of the list assignment name=(...).
func EnsureListMember(name, member string) Directive {
	return Directive{Kind: KindListMember, Key: name, Value: member}
}

// EnsureBlock ensures lines are present, detected by marker.
func EnsureBlock(marker string, lines ...string) Directive {
	return Directive{Kind: KindBlock, Key: marker, Lines: lines}
}

// Validate rejects directives that could not be applied idempotently.
func (d Directive) Validate() error {
	switch d.Kind {
	case KindSetScalar, KindListMember:
		if strings.TrimSpace(d.Key) == "" {
			return errors.Newf(errors.ErrInvalidInput, "%s directive has an empty key", d.Kind)
		}
		if d.Key != strings.TrimSpace(d.Key) || strings.ContainsAny(d.Key, "=\n") {
			return errors.Newf(errors.ErrInvalidInput, "%s directive key %q is malformed", d.Kind, d.Key)
		}
		if strings.Contains(d.Value, "\n") {
			return errors.Newf(errors.ErrInvalidInput, "%s directive %q has a multi-line value", d.Kind, d.Key)
		}
		if d.Kind == KindListMember {
			if m := normalizeToken(d.Value); m == "" || m != d.Value || strings.ContainsAny(m, " \t()") {
				return errors.Newf(errors.ErrInvalidInput, "list member %q for %q is not a bare word", d.Value, d.Key)
			}
		}
	case KindBlock:
		if strings.TrimSpace(d.Key) == "" {
			return errors.New(errors.ErrInvalidInput, "block directive has an empty marker")
		}
		if strings.Contains(d.Key, "\n") {
			return errors.Newf(errors.ErrInvalidInput, "block marker %q spans lines", d.Key)
		}
		found := false
		for _, l := range d.Lines {
			if strings.Contains(l, d.Key) {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf(errors.ErrInvalidInput, "block %q does not contain its own marker", d.Key)
		}
	default:
		return errors.Newf(errors.ErrInvalidInput, "unknown directive kind %d", d.Kind)
	}
	return nil
}

// Describe returns a one-line summary used in logs and dry-run output.
func (d Directive) Describe() string {
	switch d.Kind {
	case KindSetScalar:
		return fmt.Sprintf("set %s=%s", d.Key, d.Value)
	case KindListMember:
		return fmt.Sprintf("ensure %s=(... %s ...)", d.Key, d.Value)
	case KindBlock:
		return fmt.Sprintf("ensure block %q (%d lines)", d.Key, len(d.Lines))
	default:
		return "unknown directive"
	}
}

func (d Directive) equal(o Directive) bool {
	if d.Kind != o.Kind || d.Key != o.Key || d.Value != o.Value || len(d.Lines) != len(o.Lines) {
		return false
	}
	for i := range d.Lines {
		if d.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}

// compare orders directives canonically: set-scalar, then list members,
// then blocks; within a kind by key, then value, then body.
func (d Directive) compare(o Directive) int {
	if d.Kind != o.Kind {
		return int(d.Kind) - int(o.Kind)
	}
	if c := strings.Compare(d.Key, o.Key); c != 0 {
		return c
	}
	if c := strings.Compare(d.Value, o.Value); c != 0 {
		return c
	}
	return strings.Compare(strings.Join(d.Lines, "\n"), strings.Join(o.Lines, "\n"))
}
