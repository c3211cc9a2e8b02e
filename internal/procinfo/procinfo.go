// Package procinfo resolves a process id into an application identity and
// the live state of the shell running inside it.
package procinfo

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by sources on platforms without process
// introspection support.
var ErrUnsupported = errors.New("process introspection not supported on this platform")

// Identity describes the application owning a pid. Empty strings mean the
// value could not be resolved.
type Identity struct {
	PID         int    `json:"pid"`
	BundleID    string `json:"bundle_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// ShellState is the foreground shell found under an application. A zero
// ShellPID means no shell was found.
type ShellState struct {
	ShellPID       int    `json:"shell_pid,omitempty"`
	ShellType      string `json:"shell_type,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	RunningProcess string `json:"running_process,omitempty"`
}

// Found reports whether a shell was resolved.
func (s ShellState) Found() bool {
	return s.ShellPID > 0
}

// Process is one row of a process table snapshot.
type Process struct {
	PID  int
	PPID int
	// Name is the executable basename.
	Name string
}

// Source reads process information from the operating system.
type Source interface {
	// Processes returns a snapshot of every process visible to the caller.
	Processes() ([]Process, error)
	// Cwd returns the current working directory of pid.
	Cwd(pid int) (string, error)
}

// AppLookup resolves application metadata for a pid.
type AppLookup interface {
	BundleID(pid int) (string, bool)
	DisplayName(pid int) (string, bool)
}

var knownShells = map[string]bool{
	"bash":   true,
	"zsh":    true,
	"fish":   true,
	"sh":     true,
	"dash":   true,
	"tcsh":   true,
	"csh":    true,
	"ksh":    true,
	"nu":     true,
	"elvish": true,
	"ion":    true,
	"xonsh":  true,
}

// shellWrappers sit between a terminal and its shell.
var shellWrappers = map[string]bool{
	"login": true,
	"sshd":  true,
	"su":    true,
	"sudo":  true,
}

var multiplexers = []string{"tmux", "screen"}

// IsShell reports whether name is the basename of a known shell.
func IsShell(name string) bool {
	return knownShells[normalizeName(name)]
}

func isWrapper(name string) bool {
	name = normalizeName(name)
	if shellWrappers[name] {
		return true
	}
	for _, m := range multiplexers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// normalizeName reduces an executable path or login-shell argv[0] such as
// "-zsh" to its bare name.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimPrefix(filepath.Base(name), "-")
}
