// Package detect assembles the context of the application the user was
// working in when the hotkey fired: its identity, its shell, and the text on
// screen, all under hard time ceilings.
package detect

import (
	"time"

	"github.com/atinylittleshell/cmdk/internal/procinfo"
)

const (
	// DefaultDetectTimeout bounds DetectTerminal and DetectFull.
	DefaultDetectTimeout = 500 * time.Millisecond
	// DefaultCaptureTimeout bounds the hotkey fast path.
	DefaultCaptureTimeout = 200 * time.Millisecond
)

// TerminalContext describes the shell behind a terminal or IDE. All text is
// redacted.
type TerminalContext struct {
	ShellType      string `json:"shell_type,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	VisibleOutput  string `json:"visible_output,omitempty"`
	RunningProcess string `json:"running_process,omitempty"`
}

// AppContext is the full context of the frontmost application.
type AppContext struct {
	AppName         string           `json:"app_name"`
	Terminal        *TerminalContext `json:"terminal,omitempty"`
	ConsoleDetected bool             `json:"console_detected"`
	ConsoleLastLine string           `json:"console_last_line,omitempty"`
	// VisibleText holds text read from a non-terminal window.
	VisibleText string `json:"visible_text,omitempty"`
}

// Capture is what the hotkey fast path records before the overlay appears.
type Capture struct {
	Identity  procinfo.Identity `json:"identity"`
	WindowKey string            `json:"window_key"`
	// FocusedCwd is the working directory of the focused IDE terminal tab.
	FocusedCwd      string `json:"focused_cwd,omitempty"`
	PreCapturedText string `json:"pre_captured_text,omitempty"`
}

// ProcessResolver resolves identities and shells.
type ProcessResolver interface {
	Identity(pid int) procinfo.Identity
	ShellState(pid int) procinfo.ShellState
	ShellPID(pid int, cwdHint string) (int, bool)
}

// TextReader reads on-screen text through accessibility.
type TextReader interface {
	ReadTerminalText(pid int, bundleID string, timeout time.Duration) (string, bool)
	ReadFocusedText(pid int, timeout time.Duration) (string, bool)
	FocusedTabCwd(pid int) (string, bool)
}

// ConsoleDetector finds browser developer consoles.
type ConsoleDetector interface {
	Detect(pid int) (bool, string)
}
