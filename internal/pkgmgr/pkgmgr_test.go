package pkgmgr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/autozsh/internal/errors"
)

type recorder struct {
	calls []string
	fail  map[string]error
}

func (r *recorder) Run(_ context.Context, name string, args ...string) error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.calls = append(r.calls, line)
	if err, ok := r.fail[line]; ok {
		return err
	}
	return nil
}

func TestInstallArgs(t *testing.T) {
	tests := []struct {
		manager string
		first   string
		wantErr bool
	}{
		{"brew", "brew", false},
		{"apt", "apt-get", false},
		{"apt-get", "apt-get", false},
		{"dnf", "dnf", false},
		{"yum", "yum", false},
		{"pacman", "pacman", false},
		{"zypper", "zypper", false},
		{"apk", "apk", false},
		{"winget", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			args, err := installArgs(tt.manager, "zsh", "git")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.first, args[0])
			assert.Equal(t, []string{"zsh", "git"}, args[len(args)-2:])

			_, err = updateArgs(tt.manager)
			assert.NoError(t, err)
		})
	}
}

func TestManagerElevation(t *testing.T) {
	rec := &recorder{}
	m := &Manager{Family: "apt-get", Exec: rec}

	require.NoError(t, m.UpdateIndex(context.Background()))
	require.NoError(t, m.Install(context.Background(), "zsh", "fzf"))
	assert.Equal(t, []string{
		"sudo apt-get update",
		"sudo apt-get install -y zsh fzf",
	}, rec.calls)

	root := &Manager{Family: "dnf", Root: true, Exec: rec}
	assert.Equal(t, []string{"dnf", "install", "-y", "zsh"}, root.Command("zsh"))

	brew := &Manager{Family: "brew", Exec: rec}
	assert.False(t, brew.NeedsElevation())
	assert.Equal(t, []string{"brew", "install", "zsh"}, brew.Command("zsh"))
}

func TestInstallNothing(t *testing.T) {
	rec := &recorder{}
	m := &Manager{Family: "pacman", Exec: rec}
	require.NoError(t, m.Install(context.Background()))
	assert.Empty(t, rec.calls)
}

func TestInstallFailureIsResourceFetch(t *testing.T) {
	rec := &recorder{fail: map[string]error{"sudo apk add bat": fmt.Errorf("exit status 1")}}
	m := &Manager{Family: "apk", Exec: rec}
	err := m.Install(context.Background(), "bat")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceFetch))
}

// quietRecorder also captures output, like *shell.Runner.
type quietRecorder struct {
	recorder
	quiet []string
}

func (r *quietRecorder) Quiet(_ context.Context, name string, args ...string) error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.quiet = append(r.quiet, line)
	if err, ok := r.fail[line]; ok {
		return err
	}
	return nil
}

func TestUpdateIndexRunsQuietly(t *testing.T) {
	rec := &quietRecorder{recorder: recorder{fail: map[string]error{
		"sudo apt-get update": fmt.Errorf("apt-get update: exit status 100: E: Could not get lock"),
	}}}
	m := &Manager{Family: "apt-get", Exec: rec}

	err := m.UpdateIndex(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceFetch))
	assert.Contains(t, err.Error(), "E: Could not get lock")
	assert.Equal(t, []string{"sudo apt-get update"}, rec.quiet)
	assert.Empty(t, rec.calls)

	// installs still stream their output
	require.NoError(t, m.Install(context.Background(), "zsh"))
	assert.Equal(t, []string{"sudo apt-get install -y zsh"}, rec.calls)
}

func TestNewUnknownFamily(t *testing.T) {
	_, err := New("choco", &recorder{})
	assert.Error(t, err)
	m, err := New("zypper", &recorder{})
	require.NoError(t, err)
	assert.Equal(t, "zypper", m.Name())
}

func TestElevator(t *testing.T) {
	noSudo := func(string) (string, error) { return "", fmt.Errorf("not found") }
	hasSudo := func(string) (string, error) { return "/usr/bin/sudo", nil }

	t.Run("root", func(t *testing.T) {
		rec := &recorder{}
		e := &Elevator{Root: true, LookPath: noSudo, Exec: rec}
		assert.NoError(t, e.Ensure(context.Background()))
		assert.Empty(t, rec.calls)
	})

	t.Run("missing sudo", func(t *testing.T) {
		e := &Elevator{LookPath: noSudo, Exec: &recorder{}}
		err := e.Ensure(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	})

	t.Run("sudo refuses", func(t *testing.T) {
		rec := &recorder{fail: map[string]error{"sudo -v": fmt.Errorf("exit status 1")}}
		e := &Elevator{LookPath: hasSudo, Exec: rec}
		err := e.Ensure(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	})

	t.Run("primed once", func(t *testing.T) {
		rec := &recorder{}
		e := &Elevator{LookPath: hasSudo, Exec: rec}
		require.NoError(t, e.Ensure(context.Background()))
		require.NoError(t, e.Ensure(context.Background()))
		assert.Equal(t, []string{"sudo -v"}, rec.calls)
	})
}
