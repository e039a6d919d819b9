package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/autozsh/internal/errors"
)

func TestCurrent(t *testing.T) {
	assert.Equal(t, runtime.GOOS, Current())
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	assert.Equal(t, filepath.Join(home, "Documents"), ExpandPath("~/Documents"))
	assert.Equal(t, home, ExpandPath("~"))
}

func TestExpandPathEnvVar(t *testing.T) {
	t.Setenv("AUTOZSH_TEST_VAR", "/custom/path")
	assert.Equal(t, "/custom/path/sub", ExpandPath("$AUTOZSH_TEST_VAR/sub"))
	assert.Equal(t, "/absolute/path", ExpandPath("/absolute/path"))
}

func TestExpandPathWithVars(t *testing.T) {
	vars := map[string]string{
		"HOME":       "/home/u",
		"ZSH_CUSTOM": "/home/u/.oh-my-zsh/custom",
	}
	assert.Equal(t, "/home/u/.oh-my-zsh/custom/plugins/fzf-tab",
		ExpandPathWith("$ZSH_CUSTOM/plugins/fzf-tab", vars))
	assert.Equal(t, "/home/u/.zshrc", ExpandPathWith("~/.zshrc", vars))
}

func TestContained(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		roots []string
		ok    bool
	}{
		{"inside home", "/home/u/.oh-my-zsh", []string{"/home/u"}, true},
		{"nested", "/home/u/.oh-my-zsh/custom/plugins/x", []string{"/home/u"}, true},
		{"second root", "/opt/zsh/custom/x", []string{"/home/u", "/opt/zsh/custom"}, true},
		{"root itself", "/home/u", []string{"/home/u"}, false},
		{"traversal", "/home/u/../../etc/passwd", []string{"/home/u"}, false},
		{"sibling prefix", "/home/user2/x", []string{"/home/u"}, false},
		{"relative", "home/u/x", []string{"/home/u"}, false},
		{"empty", "", []string{"/home/u"}, false},
		{"no roots", "/home/u/x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Contained(tt.path, tt.roots...)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrUnsafePath))
		})
	}
}

func TestPackageManagerOS(t *testing.T) {
	tests := []struct {
		manager string
		want    string
	}{
		{"brew", "darwin"},
		{"apt", "linux"},
		{"apt-get", "linux"},
		{"dnf", "linux"},
		{"yum", "linux"},
		{"pacman", "linux"},
		{"zypper", "linux"},
		{"apk", "linux"},
		{"winget", ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			assert.Equal(t, tt.want, PackageManagerOS(tt.manager))
		})
	}
}

func TestDetectPackageManager(t *testing.T) {
	onPath := func(names ...string) func(string) (string, error) {
		return func(n string) (string, error) {
			for _, want := range names {
				if n == want {
					return "/usr/bin/" + n, nil
				}
			}
			return "", fmt.Errorf("not found")
		}
	}

	m, err := DetectPackageManager("linux", onPath("pacman", "brew"))
	require.NoError(t, err)
	assert.Equal(t, "pacman", m)

	m, err = DetectPackageManager("darwin", onPath("apt-get", "brew"))
	require.NoError(t, err)
	assert.Equal(t, "brew", m)

	_, err = DetectPackageManager("linux", onPath("brew"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestCheckOS(t *testing.T) {
	assert.NoError(t, CheckOS("linux"))
	assert.NoError(t, CheckOS("darwin"))
	err := CheckOS("windows")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
}

func TestFontDir(t *testing.T) {
	assert.Equal(t, "/Users/u/Library/Fonts", FontDir("darwin", "/Users/u"))
	assert.Equal(t, "/home/u/.local/share/fonts", FontDir("linux", "/home/u"))
}
