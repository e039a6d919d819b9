// Package probe answers read-only questions about the host. Every install
// decision is made from one of these checks.
package probe

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

// Probe performs capability checks. LookPath defaults to exec.LookPath.
type Probe struct {
	LookPath func(string) (string, error)
}

// New returns a Probe that searches the process PATH.
func New() *Probe {
	return &Probe{LookPath: exec.LookPath}
}

// Executable reports whether name resolves on PATH.
func (p *Probe) Executable(name string) bool {
	look := p.LookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(name)
	return err == nil
}

// DirExists reports whether path is an existing directory.
func (p *Probe) DirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// FileExists reports whether path exists and is not a directory.
func (p *Probe) FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// FileContainsLine reports whether any line of path matches pattern.
// A missing file or an invalid pattern yields false.
func (p *Probe) FileContainsLine(path, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if re.MatchString(sc.Text()) {
			return true
		}
	}
	return false
}

// VersionControlled reports whether dir holds git metadata.
func (p *Probe) VersionControlled(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
