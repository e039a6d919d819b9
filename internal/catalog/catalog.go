// Package catalog holds the features autozsh can install. The built-in
// catalog is embedded; a user catalog may add features but not redefine
// built-in ones.
package catalog

import (
	_ "embed"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/rcfile"
	"github.com/atomikpanda/autozsh/internal/template"
)

//go:embed catalog.yaml
var builtin string

// Stage is the orchestrator step that installs a feature.
type Stage string

const (
	StagePackages  Stage = "packages"
	StageFramework Stage = "framework"
	StageTheme     Stage = "theme"
	StageTools     Stage = "tools"
	StageFonts     Stage = "fonts"
	StagePlugins   Stage = "plugins"
)

// Stages lists every stage in install order.
var Stages = []Stage{StagePackages, StageFramework, StageTheme, StageTools, StageFonts, StagePlugins}

// ResourceKind is the kind of an externally fetched artifact.
type ResourceKind string

const (
	KindVersionedDirectory ResourceKind = "versioned-directory"
	KindDownloadableFile   ResourceKind = "downloadable-file"
	KindPackage            ResourceKind = "package"
)

// ResourceSpec describes one artifact a feature needs.
type ResourceSpec struct {
	Kind   ResourceKind `yaml:"kind"`
	URL    string       `yaml:"url,omitempty"`
	Target string       `yaml:"target,omitempty"` // may use ~, $HOME, $ZSH, $ZSH_CUSTOM, $FONT_DIR

	// package kind
	Package string            `yaml:"package,omitempty"`
	Names   map[string]string `yaml:"names,omitempty"` // per package manager override
	Bin     string            `yaml:"bin,omitempty"`   // executable that proves it is installed
	AltBins []string          `yaml:"alt_bins,omitempty"`
}

// PackageName returns the package name for manager.
func (r ResourceSpec) PackageName(manager string) string {
	if n, ok := r.Names[manager]; ok && n != "" {
		return n
	}
	return r.Package
}

// Executables returns the binaries whose presence means the package is
// already installed.
func (r ResourceSpec) Executables() []string {
	bin := r.Bin
	if bin == "" {
		bin = r.Package
	}
	return append([]string{bin}, r.AltBins...)
}

// Describe returns a short label for logs and reports.
func (r ResourceSpec) Describe() string {
	if r.Kind == KindPackage {
		return "package " + r.Package
	}
	return string(r.Kind) + " " + r.Target
}

func (r ResourceSpec) validate() error {
	switch r.Kind {
	case KindVersionedDirectory, KindDownloadableFile:
		if r.URL == "" || r.Target == "" {
			return errors.Newf(errors.ErrInvalidInput, "%s resource needs url and target", r.Kind)
		}
	case KindPackage:
		if r.Package == "" {
			return errors.New(errors.ErrInvalidInput, "package resource needs a package name")
		}
	default:
		return errors.Newf(errors.ErrInvalidInput, "unknown resource kind %q", r.Kind)
	}
	return nil
}

// DirectiveSpec is the YAML form of an rc file directive. The directive
// kind is determined by which field is populated.
type DirectiveSpec struct {
	Set    string   `yaml:"set,omitempty"`
	Value  string   `yaml:"value,omitempty"`
	List   string   `yaml:"list,omitempty"`
	Member string   `yaml:"member,omitempty"`
	Block  string   `yaml:"block,omitempty"`
	Lines  []string `yaml:"lines,omitempty"`
}

// Directive converts the spec to an rcfile.Directive.
func (d DirectiveSpec) Directive() (rcfile.Directive, error) {
	var dir rcfile.Directive
	switch {
	case d.Set != "":
		dir = rcfile.SetScalar(d.Set, d.Value)
	case d.List != "":
		dir = rcfile.EnsureListMember(d.List, d.Member)
	case d.Block != "":
		dir = rcfile.EnsureBlock(d.Block, d.Lines...)
	default:
		return dir, errors.New(errors.ErrInvalidInput, "directive needs one of set, list or block")
	}
	return dir, dir.Validate()
}

// Feature is an installable unit: resources plus the rc file directives
// that configure them.
type Feature struct {
	ID           string
	Label        string
	Description  string
	Foundational bool
	Optional     bool
	Stage        Stage
	Resources    []ResourceSpec
	Directives   []rcfile.Directive
}

type featureYAML struct {
	ID           string          `yaml:"id"`
	Label        string          `yaml:"label"`
	Description  string          `yaml:"description"`
	Foundational bool            `yaml:"foundational"`
	Optional     bool            `yaml:"optional"`
	Stage        Stage           `yaml:"stage"`
	Resources    []ResourceSpec  `yaml:"resources"`
	Directives   []DirectiveSpec `yaml:"directives"`
}

type fileYAML struct {
	Features []featureYAML `yaml:"features"`
}

// Catalog is an ordered, immutable set of features.
type Catalog struct {
	features []Feature
	byID     map[string]int
}

// Load renders and parses the built-in catalog, then merges the user
// catalog at extraPath when it is not empty.
func Load(paths template.Paths, extraPath string) (*Catalog, error) {
	params := template.Params(paths)
	c, err := Parse(builtin, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "built-in catalog")
	}
	if extraPath == "" {
		return c, nil
	}
	data, err := os.ReadFile(extraPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "read catalog %s", extraPath)
	}
	extra, err := Parse(string(data), params)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "catalog %s", extraPath)
	}
	if err := c.Merge(extra); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse renders text as a template with params and decodes the result.
func Parse(text string, params map[string]any) (*Catalog, error) {
	rendered, err := template.Render(text, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "render catalog")
	}
	var f fileYAML
	if err := yaml.Unmarshal([]byte(rendered), &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "parse catalog")
	}

	c := &Catalog{byID: make(map[string]int)}
	for _, fy := range f.Features {
		feat, err := fy.feature()
		if err != nil {
			return nil, err
		}
		if err := c.add(feat); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (fy featureYAML) feature() (Feature, error) {
	feat := Feature{
		ID:           fy.ID,
		Label:        fy.Label,
		Description:  fy.Description,
		Foundational: fy.Foundational,
		Optional:     fy.Optional,
		Stage:        fy.Stage,
		Resources:    fy.Resources,
	}
	if feat.ID == "" {
		return feat, errors.New(errors.ErrInvalidInput, "feature without id")
	}
	if feat.Label == "" {
		feat.Label = feat.ID
	}
	if !slices.Contains(Stages, feat.Stage) {
		return feat, errors.Newf(errors.ErrInvalidInput, "feature %s: unknown stage %q", feat.ID, feat.Stage)
	}
	if feat.Optional && feat.Foundational {
		return feat, errors.Newf(errors.ErrInvalidInput, "feature %s: cannot be both optional and foundational", feat.ID)
	}
	for _, r := range feat.Resources {
		if err := r.validate(); err != nil {
			return feat, errors.Wrapf(err, errors.ErrInvalidInput, "feature %s", feat.ID)
		}
	}
	for _, ds := range fy.Directives {
		d, err := ds.Directive()
		if err != nil {
			return feat, errors.Wrapf(err, errors.ErrInvalidInput, "feature %s", feat.ID)
		}
		feat.Directives = append(feat.Directives, d)
	}
	return feat, nil
}

func (c *Catalog) add(f Feature) error {
	if _, dup := c.byID[f.ID]; dup {
		return errors.Newf(errors.ErrInvalidInput, "feature %q defined twice", f.ID)
	}
	c.byID[f.ID] = len(c.features)
	c.features = append(c.features, f)
	return nil
}

// Merge appends the features of other. Redefining an existing ID fails.
func (c *Catalog) Merge(other *Catalog) error {
	for _, f := range other.features {
		if err := c.add(f); err != nil {
			return err
		}
	}
	return nil
}

// All returns every feature in catalog order.
func (c *Catalog) All() []Feature {
	return slices.Clone(c.features)
}

// Get returns the feature with id.
func (c *Catalog) Get(id string) (Feature, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Feature{}, false
	}
	return c.features[i], true
}

// Optional returns the features offered for selection.
func (c *Catalog) Optional() []Feature {
	var out []Feature
	for _, f := range c.features {
		if f.Optional {
			out = append(out, f)
		}
	}
	return out
}

// Plan returns the mandatory features plus the selected optional ones, in
// catalog order. Unknown or non-optional IDs in selected are ignored.
func (c *Catalog) Plan(selected []string) []Feature {
	var out []Feature
	for _, f := range c.features {
		if !f.Optional || slices.Contains(selected, f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// ByStage filters features down to one stage, preserving order.
func ByStage(features []Feature, stage Stage) []Feature {
	var out []Feature
	for _, f := range features {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}

// ManagedTargets returns the expanded target of every directory and file
// resource. Rollback falls back to this list when no manifest exists.
func (c *Catalog) ManagedTargets(expand func(string) string) []string {
	var out []string
	for _, f := range c.features {
		for _, r := range f.Resources {
			if r.Kind == KindPackage {
				continue
			}
			out = append(out, expand(r.Target))
		}
	}
	return out
}
