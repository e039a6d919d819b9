// Package config loads autozsh settings from layered sources: embedded
// defaults, the user config file, AUTOZSH_* environment variables and
// command-line overrides, in increasing precedence.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/atomikpanda/autozsh/internal/ageutil"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/platform"
	"github.com/atomikpanda/autozsh/internal/template"
)

//go:embed embedded/defaults.yaml
var defaultConfig []byte

// EnvPrefix is the prefix of environment variables read as settings.
const EnvPrefix = "AUTOZSH_"

// PriorInstallPolicy says what to do when autozsh finds an earlier install
// and nobody is there to ask.
type PriorInstallPolicy string

const (
	PriorAbort     PriorInstallPolicy = "abort"
	PriorUpdate    PriorInstallPolicy = "update"
	PriorRollback  PriorInstallPolicy = "rollback"
	PriorReinstall PriorInstallPolicy = "reinstall"
)

// PriorInstallPolicies lists the valid policies in prompt order.
var PriorInstallPolicies = []PriorInstallPolicy{PriorUpdate, PriorAbort, PriorRollback, PriorReinstall}

// Valid reports whether p is a known policy.
func (p PriorInstallPolicy) Valid() bool {
	for _, v := range PriorInstallPolicies {
		if p == v {
			return true
		}
	}
	return false
}

// Settings is the resolved configuration passed to every component.
type Settings struct {
	RCFile         string             `koanf:"rc_file"`
	FrameworkDir   string             `koanf:"framework_dir"`
	CustomDir      string             `koanf:"custom_dir"`
	FontDir        string             `koanf:"font_dir"`
	Dependencies   []string           `koanf:"dependencies"`
	CatalogFile    string             `koanf:"catalog_file"`
	OnPriorInstall PriorInstallPolicy `koanf:"on_prior_install"`
	Features       []string           `koanf:"features"`
	Unattended     bool               `koanf:"unattended"`
	DryRun         bool               `koanf:"dry_run"`
	Verbosity      int                `koanf:"verbosity"`
	Backup         Backup             `koanf:"backup"`

	// Home is the user's home directory; not read from any source.
	Home string `koanf:"-"`
	// Source is the user config file that was loaded, if any.
	Source string `koanf:"-"`
}

// Backup holds the optional backup encryption settings.
type Backup struct {
	AgePassphrase string `koanf:"age_passphrase"`
	AgeIdentity   string `koanf:"age_identity"`
}

// Options controls Load.
type Options struct {
	// Path is an explicit config file. When set it must exist.
	Path string
	// Overrides are flag values keyed like the YAML file ("dry_run").
	Overrides map[string]any
	// GOOS selects platform defaults; empty means the running OS.
	GOOS string
}

// DefaultPath returns $XDG_CONFIG_HOME/autozsh/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "autozsh", "config.yaml")
}

// rawBytesProvider feeds embedded bytes to koanf.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]any, error) {
	return nil, errors.New(errors.ErrUnknown, "not implemented")
}

// Load resolves Settings from every layer and fills in derived paths.
func Load(opts Options) (*Settings, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "failed to load defaults")
	}

	// 2. User config file
	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path = DefaultPath()
	}
	source := ""
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to load config from %s", path)
		}
		source = path
		logger.Debug().Str("path", path).Msg("loaded user config")
	} else if explicit {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "config file %s", path)
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "failed to load env vars")
	}

	// 4. Flags
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrInvalidInput, "failed to apply flag overrides")
		}
	}

	var s Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &s, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "failed to unmarshal configuration")
	}
	s.Source = source

	goos := opts.GOOS
	if goos == "" {
		goos = platform.Current()
	}
	if err := s.finish(goos); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey maps AUTOZSH_RC_FILE to rc_file and AUTOZSH_BACKUP_AGE_IDENTITY
// to backup.age_identity. AUTOZSH_AGE_PASSPHRASE is accepted as a short form.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	switch {
	case key == "age_passphrase" || key == "age_identity":
		return "backup." + key
	case strings.HasPrefix(key, "backup_"):
		return "backup." + strings.TrimPrefix(key, "backup_")
	}
	return key
}

func (s *Settings) finish(goos string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, errors.ErrPrecondition, "cannot determine home directory")
	}
	s.Home = home

	s.RCFile = platform.ExpandPath(s.RCFile)
	s.FrameworkDir = platform.ExpandPath(s.FrameworkDir)
	if s.CustomDir == "" {
		s.CustomDir = filepath.Join(s.FrameworkDir, "custom")
	} else {
		s.CustomDir = platform.ExpandPath(s.CustomDir)
	}
	if s.FontDir == "" {
		s.FontDir = platform.FontDir(goos, home)
	} else {
		s.FontDir = platform.ExpandPath(s.FontDir)
	}
	if s.CatalogFile != "" {
		s.CatalogFile = platform.ExpandPath(s.CatalogFile)
	}
	if s.Backup.AgeIdentity != "" {
		s.Backup.AgeIdentity = platform.ExpandPath(s.Backup.AgeIdentity)
	}
	s.Dependencies = compact(s.Dependencies)
	s.Features = compact(s.Features)

	if s.RCFile == "" || s.FrameworkDir == "" {
		return errors.New(errors.ErrInvalidInput, "rc_file and framework_dir must not be empty")
	}
	if !s.OnPriorInstall.Valid() {
		return errors.Newf(errors.ErrInvalidInput, "on_prior_install must be one of update, abort, rollback, reinstall; got %q", s.OnPriorInstall).
			WithDetail("key", "on_prior_install")
	}
	if s.Verbosity < 0 {
		s.Verbosity = 0
	}
	return nil
}

// compact trims entries and drops empty ones and repeats.
func compact(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Paths returns the install locations catalog text is rendered with.
func (s *Settings) Paths() template.Paths {
	return template.Paths{
		Home:         s.Home,
		FrameworkDir: s.FrameworkDir,
		CustomDir:    s.CustomDir,
		FontDir:      s.FontDir,
	}
}

// Vars returns the variables resource targets may reference.
func (s *Settings) Vars() map[string]string {
	return map[string]string{
		"HOME":       s.Home,
		"ZSH":        s.FrameworkDir,
		"ZSH_CUSTOM": s.CustomDir,
		"FONT_DIR":   s.FontDir,
	}
}

// Roots returns the directories autozsh may create or remove paths in.
func (s *Settings) Roots() []string {
	roots := []string{s.Home}
	for _, r := range []string{s.FrameworkDir, s.CustomDir, s.FontDir} {
		if !strings.HasPrefix(r, s.Home+string(filepath.Separator)) {
			roots = append(roots, r)
		}
	}
	return roots
}

// BackupKey returns the age key for backups, or nil when encryption is off.
func (s *Settings) BackupKey() *ageutil.Key {
	k := &ageutil.Key{IdentityFile: s.Backup.AgeIdentity, Passphrase: s.Backup.AgePassphrase}
	if !k.Configured() {
		return nil
	}
	return k
}
