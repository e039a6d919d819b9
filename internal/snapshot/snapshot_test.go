package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/autozsh/internal/ageutil"
	"github.com/atomikpanda/autozsh/internal/manifest"
	"github.com/atomikpanda/autozsh/internal/rcfile"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var t0 = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func TestSnapshotNaming(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("alias g=git\n"), 0o644))

	m := &Manager{Now: fixedClock(t0)}
	r1, err := m.Snapshot(rc)
	require.NoError(t, err)
	assert.Equal(t, rc+".autozsh.20240309140507.bak", r1.Path)

	r2, err := m.Snapshot(rc)
	require.NoError(t, err)
	assert.Equal(t, rc+".autozsh.20240309140507_1.bak", r2.Path)

	latest, err := m.LatestSince(rc, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, r2.Path, latest.Path)

	data, err := os.ReadFile(r1.Path)
	require.NoError(t, err)
	assert.Equal(t, "alias g=git\n", string(data))
}

func TestSnapshotMissingSource(t *testing.T) {
	m := &Manager{}
	r, err := m.Snapshot(filepath.Join(t.TempDir(), ".zshrc"))
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestLatestOrdering(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, ".zshrc")
	names := []string{
		".zshrc.autozsh.20230101000000.bak",
		".zshrc.autozsh.20240101000000_2.bak",
		".zshrc.autozsh.20240101000000_10.bak",
		".zshrc.autozsh.20240101000000.bak",
		".zshrc.autozsh.garbage.bak",
		".zshrc.other",
		".bashrc.autozsh.20990101000000.bak",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o600))
	}

	m := &Manager{}
	all, err := m.List(rc)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ".zshrc.autozsh.20230101000000.bak", filepath.Base(all[0].Path))

	latest, err := m.LatestSince(rc, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ".zshrc.autozsh.20240101000000_10.bak", filepath.Base(latest.Path))

	none, err := m.LatestSince(filepath.Join(t.TempDir(), ".zshrc"), time.Time{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, ".zshrc")
	original := "# mine\nZSH_THEME=\"robbyrussell\"\nplugins=(git)\n"
	require.NoError(t, os.WriteFile(rc, []byte(original), 0o640))

	m := &Manager{Now: fixedClock(t0)}
	_, err := m.Snapshot(rc)
	require.NoError(t, err)

	_, err = rcfile.Apply(rc, []rcfile.Directive{
		rcfile.SetScalar("ZSH_THEME", `"powerlevel10k/powerlevel10k"`),
		rcfile.EnsureListMember("plugins", "zsh-autosuggestions"),
	})
	require.NoError(t, err)

	res, err := m.Rollback(context.Background(), RollbackOptions{RCFile: rc, Roots: []string{dir}})
	require.NoError(t, err)
	require.NotNil(t, res.Restored)

	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	info, err := os.Stat(rc)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestEncryptedBackup(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("export SECRET_TOKEN=abc\n"), 0o600))

	key := &ageutil.Key{Passphrase: "hunter2"}
	m := &Manager{Key: key, Now: fixedClock(t0)}
	r, err := m.Snapshot(rc)
	require.NoError(t, err)
	assert.True(t, r.Encrypted)
	assert.True(t, strings.HasSuffix(r.Path, ".bak.age"))

	raw, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "SECRET_TOKEN")

	require.NoError(t, os.WriteFile(rc, []byte("changed\n"), 0o600))
	changed, err := m.Restore(*r)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, "export SECRET_TOKEN=abc\n", string(data))

	// without the key the backup cannot be read
	_, err = (&Manager{}).Read(*r)
	assert.Error(t, err)
}

func TestRollbackEndToEndWithoutPriorConfig(t *testing.T) {
	home := t.TempDir()
	rc := filepath.Join(home, ".zshrc")
	state := filepath.Join(t.TempDir(), "manifest.yaml")

	mf, _, err := manifest.Load(state)
	require.NoError(t, err)

	plugin := filepath.Join(home, ".oh-my-zsh", "custom", "plugins", "zsh-autosuggestions")
	require.NoError(t, os.MkdirAll(plugin, 0o755))
	require.NoError(t, mf.Record(manifest.Entry{Path: plugin, Kind: manifest.KindDirectory, Feature: "zsh-autosuggestions"}))

	m := &Manager{Now: fixedClock(t0)}
	rec, err := m.Snapshot(rc)
	require.NoError(t, err)
	assert.Nil(t, rec)

	res, err := rcfile.Apply(rc, []rcfile.Directive{
		rcfile.SetScalar("ZSH_THEME", "P10K"),
		rcfile.EnsureListMember("plugins", "git"),
		rcfile.SetScalar("ENABLE_CORRECTION", "true"),
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.NoError(t, mf.MarkConfigCreated(rc))

	loaded, exists, err := manifest.Load(state)
	require.NoError(t, err)
	require.True(t, exists)

	rb, err := m.Rollback(context.Background(), RollbackOptions{
		RCFile:       rc,
		Manifest:     loaded,
		Roots:        []string{home},
		FrameworkDir: filepath.Join(home, ".oh-my-zsh"),
	})
	require.NoError(t, err)
	assert.True(t, rb.RemovedConfig)
	assert.Equal(t, []string{plugin}, rb.Removed)
	assert.True(t, rb.ManifestCleared)

	_, err = os.Stat(rc)
	assert.True(t, os.IsNotExist(err), "rc file should be gone")
	_, err = os.Stat(plugin)
	assert.True(t, os.IsNotExist(err))

	after, exists, err := manifest.Load(state)
	require.NoError(t, err)
	assert.True(t, exists, "manifest is kept after a rollback")
	assert.True(t, after.RolledBack())
	assert.Empty(t, after.Entries)
}

func TestRollbackTwiceAfterConfigCreated(t *testing.T) {
	home := t.TempDir()
	rc := filepath.Join(home, ".zshrc")
	state := filepath.Join(t.TempDir(), "manifest.yaml")
	m := &Manager{Now: fixedClock(t0)}

	mf, exists, err := manifest.Load(state)
	require.NoError(t, err)
	require.NoError(t, mf.Begin(exists, t0))
	require.NoError(t, os.WriteFile(rc, []byte("ZSH_THEME=\"p10k\"\n"), 0o644))
	require.NoError(t, mf.MarkConfigCreated(rc))

	// a later update run backs up the file autozsh wrote
	m.Now = fixedClock(t0.Add(time.Minute))
	_, err = m.Snapshot(rc)
	require.NoError(t, err)

	opts := func() RollbackOptions {
		loaded, _, err := manifest.Load(state)
		require.NoError(t, err)
		return RollbackOptions{RCFile: rc, Manifest: loaded, Roots: []string{home}}
	}

	res, err := m.Rollback(context.Background(), opts())
	require.NoError(t, err)
	assert.True(t, res.RemovedConfig)
	assert.NoFileExists(t, rc)

	res, err = m.Rollback(context.Background(), opts())
	require.NoError(t, err)
	assert.Nil(t, res.Restored)
	assert.False(t, res.RemovedConfig)
	assert.NotEmpty(t, res.Warnings)
	assert.NoFileExists(t, rc, "the backup of autozsh's own file must not come back")
}

func TestRollbackIgnoresBackupsFromEarlierCycles(t *testing.T) {
	home := t.TempDir()
	rc := filepath.Join(home, ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("# earlier cycle\n"), 0o644))

	m := &Manager{Now: fixedClock(t0)}
	_, err := m.Snapshot(rc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(rc, []byte("# mine\n"), 0o644))

	mf, _, err := manifest.Load(filepath.Join(t.TempDir(), "manifest.yaml"))
	require.NoError(t, err)
	require.NoError(t, mf.Begin(false, t0.Add(time.Hour)))

	res, err := m.Rollback(context.Background(), RollbackOptions{RCFile: rc, Manifest: mf, Roots: []string{home}})
	require.NoError(t, err)
	assert.Nil(t, res.Restored)
	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))

	require.True(t, mf.RolledBack())

	// the next install opens a new cycle; its backup is restored
	require.NoError(t, mf.Begin(true, t0.Add(90*time.Minute)))
	m.Now = fixedClock(t0.Add(2 * time.Hour))
	_, err = m.Snapshot(rc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(rc, []byte("# changed by autozsh\n"), 0o644))

	res, err = m.Rollback(context.Background(), RollbackOptions{RCFile: rc, Manifest: mf, Roots: []string{home}})
	require.NoError(t, err)
	require.NotNil(t, res.Restored)
	data, err = os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestLatestSince(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("x\n"), 0o644))
	m := &Manager{Now: fixedClock(t0)}
	first, err := m.Snapshot(rc)
	require.NoError(t, err)
	m.Now = fixedClock(t0.Add(time.Minute))
	second, err := m.Snapshot(rc)
	require.NoError(t, err)

	got, err := m.LatestSince(rc, t0)
	require.NoError(t, err)
	assert.Equal(t, second.Path, got.Path)

	got, err = m.LatestSince(rc, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.LatestSince(rc, time.Time{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, got.Path)
}

func TestRollbackRefusesOutsideRoots(t *testing.T) {
	home := t.TempDir()
	outside := t.TempDir()
	victim := filepath.Join(outside, "important")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))

	mf, _, err := manifest.Load(filepath.Join(t.TempDir(), "manifest.yaml"))
	require.NoError(t, err)
	require.NoError(t, mf.Record(manifest.Entry{Path: victim, Kind: manifest.KindFile}))
	require.NoError(t, mf.Record(manifest.Entry{Path: "relative/path", Kind: manifest.KindFile}))

	m := &Manager{}
	res, err := m.Rollback(context.Background(), RollbackOptions{
		RCFile:   filepath.Join(home, ".zshrc"),
		Manifest: mf,
		Roots:    []string{home},
	})
	require.NoError(t, err)
	assert.Len(t, res.Refused, 2)
	assert.False(t, res.ManifestCleared)
	assert.NotEmpty(t, res.Warnings)

	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestRollbackIsRerunnable(t *testing.T) {
	home := t.TempDir()
	target := filepath.Join(home, ".oh-my-zsh", "custom", "themes", "powerlevel10k")
	opts := RollbackOptions{
		RCFile:       filepath.Join(home, ".zshrc"),
		Fallback:     []string{target, filepath.Join(home, ".oh-my-zsh")},
		Roots:        []string{home},
		FrameworkDir: filepath.Join(home, ".oh-my-zsh"),
	}
	m := &Manager{}

	for i := 0; i < 2; i++ {
		res, err := m.Rollback(context.Background(), opts)
		require.NoError(t, err)
		assert.Empty(t, res.Removed)
		assert.Empty(t, res.Refused)
		assert.NotEmpty(t, res.Warnings)
	}
}

func TestRollbackFrameworkNeedsSeparateConfirmation(t *testing.T) {
	home := t.TempDir()
	framework := filepath.Join(home, ".oh-my-zsh")
	theme := filepath.Join(framework, "custom", "themes", "powerlevel10k")
	require.NoError(t, os.MkdirAll(theme, 0o755))

	opts := RollbackOptions{
		RCFile:       filepath.Join(home, ".zshrc"),
		Fallback:     []string{framework, theme},
		Roots:        []string{home},
		FrameworkDir: framework,
	}
	m := &Manager{}

	// generic removal never takes the framework directory
	res, err := m.Rollback(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{theme}, res.Removed)
	assert.Equal(t, []string{framework}, res.Kept)
	assert.DirExists(t, framework)

	// purge requested but declined
	var prompts []string
	opts.PurgeFramework = true
	opts.Confirm = func(_ context.Context, p string) (bool, error) {
		prompts = append(prompts, p)
		return false, nil
	}
	res, err = m.Rollback(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, res.Purged)
	assert.DirExists(t, framework)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], framework)

	// purge confirmed
	opts.Confirm = func(context.Context, string) (bool, error) { return true, nil }
	res, err = m.Rollback(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, res.Purged)
	assert.NoDirExists(t, framework)
}

func TestRollbackManifestKeepsFramework(t *testing.T) {
	home := t.TempDir()
	framework := filepath.Join(home, ".oh-my-zsh")
	require.NoError(t, os.MkdirAll(framework, 0o755))

	mf, _, err := manifest.Load(filepath.Join(t.TempDir(), "manifest.yaml"))
	require.NoError(t, err)
	require.NoError(t, mf.Record(manifest.Entry{Path: framework, Kind: manifest.KindDirectory, Feature: "oh-my-zsh"}))

	res, err := (&Manager{}).Rollback(context.Background(), RollbackOptions{
		RCFile:       filepath.Join(home, ".zshrc"),
		Manifest:     mf,
		Roots:        []string{home},
		FrameworkDir: framework,
	})
	require.NoError(t, err)
	assert.DirExists(t, framework)
	assert.Equal(t, []string{framework}, res.Kept)
	assert.True(t, res.ManifestCleared)
}
