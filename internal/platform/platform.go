// Package platform exposes the parts of the desktop environment the capture
// and injection pipeline talk to: the workspace (running applications),
// synthetic keyboard input and the AppleScript runner.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupported is returned on platforms other than macOS.
var ErrUnsupported = errors.New("platform: not supported on this operating system")

// Workspace answers questions about running applications.
type Workspace interface {
	// FrontmostPID returns the pid of the application that owns the menu bar.
	FrontmostPID() (int, bool)
	BundleID(pid int) (string, bool)
	// DisplayName returns the localized application name.
	DisplayName(pid int) (string, bool)
	// PIDForBundle returns the pid of the first running instance of bundleID.
	PIDForBundle(bundleID string) (int, bool)
	// Activate brings the application to the front.
	Activate(pid int) error
}

// Key is a macOS virtual key code.
type Key uint16

const (
	KeyV      Key = 0x09
	KeyU      Key = 0x20
	KeyReturn Key = 0x24
)

// Modifier is a set of modifier flags held while a key is pressed.
type Modifier uint64

const (
	ModNone    Modifier = 0
	ModControl Modifier = 1 << 18
	ModCommand Modifier = 1 << 20
)

// MaxUnicodeUnits is the number of UTF-16 code units a single synthetic
// keyboard event carries; longer strings are silently truncated by the OS.
const MaxUnicodeUnits = 20

// Keyboard posts synthetic keyboard events to the frontmost application.
type Keyboard interface {
	// TypeText posts one key event carrying text. Callers must keep text
	// within MaxUnicodeUnits UTF-16 code units.
	TypeText(text string) error
	// Press posts a key down and key up for key with mods held.
	Press(key Key, mods Modifier) error
}

// Scripter executes AppleScript source.
type Scripter interface {
	Run(ctx context.Context, script string) error
}

// OSAScript runs AppleScript through the osascript utility.
type OSAScript struct {
	logger *zap.Logger
}

func NewOSAScript(logger *zap.Logger) *OSAScript {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSAScript{logger: logger}
}

func (o *OSAScript) Run(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		o.logger.Debug("osascript failed", zap.Error(err), zap.String("output", msg))
		if msg != "" {
			return fmt.Errorf("osascript: %w: %s", err, msg)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

// EscapeAppleScript escapes s for use inside an AppleScript string literal.
func EscapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

const accessibilitySettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"

// OpenAccessibilitySettings opens the Accessibility pane of System Settings.
func OpenAccessibilitySettings(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "open", accessibilitySettingsURL).Run(); err != nil {
		return fmt.Errorf("failed to open accessibility settings: %w", err)
	}
	return nil
}
