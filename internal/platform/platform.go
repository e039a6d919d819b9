// Package platform answers questions about the host: which OS it is, which
// package manager family it uses, and whether a path is inside the tree
// autozsh is allowed to touch.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atomikpanda/autozsh/internal/errors"
)

// Current returns the runtime.GOOS value ("darwin", "linux", ...).
func Current() string {
	return runtime.GOOS
}

// Supported reports whether autozsh can provision the given GOOS.
func Supported(goos string) bool {
	return goos == "linux" || goos == "darwin"
}

// ExpandPath expands a leading "~/" and environment variables in path.
func ExpandPath(path string) string {
	return ExpandPathWith(path, nil)
}

// ExpandPathWith is ExpandPath with extra variables that take precedence
// over the process environment (e.g. ZSH_CUSTOM before it is exported).
func ExpandPathWith(path string, vars map[string]string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home := homeDir(vars); home != "" {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.Expand(path, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

func homeDir(vars map[string]string) string {
	if h, ok := vars["HOME"]; ok && h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// Contained returns nil when path, once cleaned, lies strictly inside one
// of roots. Relative paths and paths equal to a root are rejected.
func Contained(path string, roots ...string) error {
	if path == "" || strings.Contains(path, "\x00") {
		return errors.New(errors.ErrUnsafePath, "empty or malformed path")
	}
	if !filepath.IsAbs(path) {
		return errors.Newf(errors.ErrUnsafePath, "path %q is not absolute", path).WithDetail("path", path)
	}
	clean := filepath.Clean(path)
	for _, root := range roots {
		if root == "" || !filepath.IsAbs(root) {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(root), clean)
		if err != nil {
			continue
		}
		if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return nil
	}
	return errors.Newf(errors.ErrUnsafePath, "path %q is outside the managed roots %v", path, roots).WithDetail("path", path)
}

// PackageManagers lists the supported package manager families in probe order.
var PackageManagers = []string{"apt-get", "dnf", "yum", "pacman", "zypper", "apk", "brew"}

// PackageManagerOS maps a package manager name to the OS it runs on.
// Returns "" for unknown managers.
func PackageManagerOS(manager string) string {
	switch manager {
	case "brew":
		return "darwin"
	case "apt", "apt-get", "dnf", "yum", "pacman", "zypper", "apk":
		return "linux"
	default:
		return ""
	}
}

// DetectPackageManager returns the first supported manager found on PATH
// that belongs to goos.
func DetectPackageManager(goos string, lookPath func(string) (string, error)) (string, error) {
	for _, m := range PackageManagers {
		if PackageManagerOS(m) != goos {
			continue
		}
		if _, err := lookPath(m); err == nil {
			return m, nil
		}
	}
	return "", errors.Newf(errors.ErrPrecondition,
		"unsupported platform: no supported package manager found on %s (tried %s)",
		goos, strings.Join(PackageManagers, ", "))
}

// FontDir returns the per-user font directory for goos.
func FontDir(goos, home string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Fonts")
	}
	return filepath.Join(home, ".local", "share", "fonts")
}

// CheckOS returns a precondition error when goos cannot be provisioned.
func CheckOS(goos string) error {
	if !Supported(goos) {
		return errors.New(errors.ErrPrecondition, fmt.Sprintf("unsupported platform: %s (autozsh supports linux and darwin)", goos))
	}
	return nil
}
