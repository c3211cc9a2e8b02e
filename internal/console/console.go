// Package console detects an open developer console in a browser window and
// reads its most recent line.
package console

import (
	"strings"
	"time"

	"github.com/atinylittleshell/cmdk/internal/ax"
	"github.com/atinylittleshell/cmdk/internal/axtext"
	"go.uber.org/zap"
)

const consoleWalkDepth = 6

// titleMarkers identify developer tool windows, matched case-insensitively.
var titleMarkers = []string{
	"devtools",
	"web inspector",
	"developer tools",
	"browser console",
}

type Detector struct {
	system  ax.System
	timeout time.Duration
	logger  *zap.Logger
}

func NewDetector(system ax.System, timeout time.Duration, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = axtext.DefaultTimeout
	}
	return &Detector{system: system, timeout: timeout, logger: logger}
}

// Detect reports whether any window of pid is a developer console, and the
// last non-empty line of the first console text area found. A console whose
// text cannot be read yields (true, "").
func (d *Detector) Detect(pid int) (bool, string) {
	app, err := ax.OpenApplication(d.system, pid, d.timeout)
	if err != nil {
		d.logger.Debug("console: cannot open application", zap.Int("pid", pid), zap.Error(err))
		return false, ""
	}
	defer app.Close()

	windows, err := app.Elements(ax.AttrWindows)
	if err != nil {
		d.logger.Debug("console: cannot list windows", zap.Int("pid", pid), zap.Error(err))
		return false, ""
	}
	defer ax.CloseAll(windows)

	detected := false
	for _, win := range windows {
		title, err := win.String(ax.AttrTitle)
		if err != nil || !isConsoleTitle(title) {
			continue
		}
		detected = true
		if line := lastConsoleLine(win); line != "" {
			return true, line
		}
	}
	return detected, ""
}

func isConsoleTitle(title string) bool {
	title = strings.ToLower(title)
	for _, marker := range titleMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

func lastConsoleLine(win ax.Element) string {
	var line string
	ax.Walk(win, consoleWalkDepth, func(el ax.Element, _ int) bool {
		if ax.Role(el) != ax.RoleTextArea {
			return true
		}
		value, err := el.String(ax.AttrValue)
		if err != nil {
			return true
		}
		line = axtext.LastLine(value)
		return false
	})
	return line
}
