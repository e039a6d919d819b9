package rcfile

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
)

// Action records what applying one directive did to the file.
type Action int

const (
	NoOp Action = iota
	Replaced
	Appended
)

func (a Action) String() string {
	switch a {
	case Replaced:
		return "replaced"
	case Appended:
		return "appended"
	default:
		return "no-op"
	}
}

// Change pairs a directive with its effect.
type Change struct {
	Directive Directive
	Action    Action
}

// Result is the outcome of Apply or Preview.
type Result struct {
	Path    string
	Changes []Change
	// Created is true when the file did not exist before.
	Created bool
	// Written is true when new content was committed to disk.
	Written bool
	Content []byte
}

// Changed reports whether any directive modified the content.
func (r Result) Changed() bool {
	for _, c := range r.Changes {
		if c.Action != NoOp {
			return true
		}
	}
	return false
}

// Apply applies directives to the file at path and commits the result
// atomically. A missing file is treated as empty. Content that does not
// change is never rewritten.
func Apply(path string, directives []Directive) (Result, error) {
	return apply(path, directives, true)
}

// Preview computes what Apply would do without writing anything.
func Preview(path string, directives []Directive) (Result, error) {
	return apply(path, directives, false)
}

func apply(path string, directives []Directive, write bool) (Result, error) {
	logger := logging.GetLogger("rcfile")
	res := Result{Path: path}

	target, err := resolveTarget(path)
	if err != nil {
		return res, errors.Wrapf(err, errors.ErrConfigMerge, "resolve %s", path)
	}

	data, err := os.ReadFile(target)
	switch {
	case os.IsNotExist(err):
		res.Created = true
	case err != nil:
		return res, errors.Wrapf(err, errors.ErrConfigMerge, "read %s", path)
	}

	out, changes, err := ApplyBytes(data, directives)
	if err != nil {
		return res, err
	}
	res.Changes = changes
	res.Content = out

	if !res.Changed() {
		logger.Debug().Str("path", path).Msg("rc file already up to date")
		return res, nil
	}
	if !write {
		return res, nil
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}
	if err := writeAtomic(target, out, perm); err != nil {
		return res, errors.Wrapf(err, errors.ErrConfigMerge, "write %s", path)
	}
	res.Written = true
	for _, c := range changes {
		if c.Action != NoOp {
			logger.Info().Str("path", path).Str("action", c.Action.String()).Msg(c.Directive.Describe())
		}
	}
	return res, nil
}

// ApplyBytes applies directives to content in memory. Directives are
// validated, deduplicated and applied in canonical order, so the result
// does not depend on the order they were given in.
func ApplyBytes(content []byte, directives []Directive) ([]byte, []Change, error) {
	ordered, err := Canonical(directives)
	if err != nil {
		return nil, nil, err
	}
	doc := parse(content)
	changes := make([]Change, 0, len(ordered))
	for _, d := range ordered {
		changes = append(changes, Change{Directive: d, Action: doc.apply(d)})
	}
	for _, c := range changes {
		if c.Action != NoOp {
			return doc.bytes(), changes, nil
		}
	}
	return content, changes, nil
}

// Canonical validates directives and returns them sorted and deduplicated.
func Canonical(directives []Directive) ([]Directive, error) {
	for _, d := range directives {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	ordered := slices.Clone(directives)
	slices.SortStableFunc(ordered, Directive.compare)
	return slices.CompactFunc(ordered, Directive.equal), nil
}

// resolveTarget follows a symlinked rc file so the link itself survives
// the rename in writeAtomic.
func resolveTarget(path string) (string, error) {
	fi, err := os.Lstat(path)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	resolved, err := filepath.EvalSymlinks(path)
	if os.IsNotExist(err) {
		// dangling link: write where it points
		dest, rerr := os.Readlink(path)
		if rerr != nil {
			return "", rerr
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		return dest, nil
	}
	return resolved, err
}

// writeAtomic replaces path with data so readers see either the old or the
// new content, never a partial write.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".autozsh-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// WriteAtomic exposes the atomic replace used by Apply to the backup
// manager, which restores snapshots the same way.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	target, err := resolveTarget(path)
	if err != nil {
		return err
	}
	return writeAtomic(target, data, perm)
}

// --- line model --------------------------------------------------------------

type document struct {
	lines []string
}

func parse(content []byte) *document {
	if len(content) == 0 {
		return &document{}
	}
	s := strings.TrimSuffix(string(content), "\n")
	return &document{lines: strings.Split(s, "\n")}
}

func (d *document) bytes() []byte {
	if len(d.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(d.lines, "\n") + "\n")
}

func (d *document) apply(dir Directive) Action {
	switch dir.Kind {
	case KindSetScalar:
		return d.setScalar(dir.Key, dir.Value)
	case KindListMember:
		return d.ensureListMember(dir.Key, dir.Value)
	case KindBlock:
		return d.ensureBlock(dir.Key, dir.Lines)
	}
	return NoOp
}

func (d *document) setScalar(key, value string) Action {
	prefix := key + "="
	want := prefix + value
	for i, l := range d.lines {
		if !strings.HasPrefix(l, prefix) {
			continue
		}
		if l == want {
			return NoOp
		}
		d.lines[i] = want
		return Replaced
	}
	d.lines = append(d.lines, want)
	return Appended
}

func (d *document) ensureListMember(name, member string) Action {
	prefix := name + "=("
	open := -1
	for i, l := range d.lines {
		if strings.HasPrefix(l, prefix) {
			open = i
			break
		}
	}
	if open < 0 {
		d.lines = append(d.lines, prefix+member+")")
		return Appended
	}

	rest := d.lines[open][len(prefix):]
	if end := strings.IndexByte(rest, ')'); end >= 0 {
		inner, suffix := rest[:end], rest[end:]
		if hasToken(inner, member) {
			return NoOp
		}
		d.lines[open] = prefix + prependToken(inner, member) + suffix
		return Replaced
	}

	// multi-line list: tokens run until the line holding ')'
	tokens := []string{rest}
	for _, l := range d.lines[open+1:] {
		if end := strings.IndexByte(l, ')'); end >= 0 {
			tokens = append(tokens, l[:end])
			break
		}
		tokens = append(tokens, l)
	}
	if hasToken(strings.Join(tokens, " "), member) {
		return NoOp
	}
	if strings.TrimSpace(rest) != "" {
		d.lines[open] = prefix + prependToken(rest, member)
		return Replaced
	}
	indent := "  "
	if open+1 < len(d.lines) {
		next := d.lines[open+1]
		if ws := next[:len(next)-len(strings.TrimLeft(next, " \t"))]; ws != "" {
			indent = ws
		}
	}
	d.lines = slices.Insert(d.lines, open+1, indent+member)
	return Replaced
}

func (d *document) ensureBlock(marker string, lines []string) Action {
	for _, l := range d.lines {
		if strings.Contains(l, marker) {
			return NoOp
		}
	}
	d.lines = append(d.lines, "")
	d.lines = append(d.lines, lines...)
	return Appended
}

func prependToken(inner, member string) string {
	trimmed := strings.TrimLeft(inner, " \t")
	if strings.TrimSpace(trimmed) == "" {
		return member
	}
	return member + " " + trimmed
}

func hasToken(inner, member string) bool {
	for _, f := range strings.Fields(inner) {
		if normalizeToken(f) == member {
			return true
		}
	}
	return false
}

// normalizeToken strips the punctuation users put around list members.
func normalizeToken(tok string) string {
	return strings.Trim(tok, "\"',\\;")
}
