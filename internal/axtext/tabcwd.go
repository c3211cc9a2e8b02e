package axtext

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinylittleshell/cmdk/internal/ax"
	"go.uber.org/zap"
)

const tabCwdTimeout = 300 * time.Millisecond

// titleSeparators split terminal tab titles such as "zsh - ~/src/app" and
// "node: /Users/me/app".
var titleSeparators = []string{" - ", ": "}

// FocusedTabCwd guesses the working directory of the focused terminal tab of
// an IDE from the focused element's title, then from the last line of its
// value.
func (r *Reader) FocusedTabCwd(pid int) (string, bool) {
	r.activator.Activate(pid)

	app, err := ax.OpenApplication(r.system, pid, tabCwdTimeout)
	if err != nil {
		r.logger.Debug("tab cwd: cannot open application", zap.Int("pid", pid), zap.Error(err))
		return "", false
	}
	defer app.Close()

	focused, err := app.Element(ax.AttrFocusedUIElement)
	if err != nil {
		r.logger.Debug("tab cwd: no focused element", zap.Int("pid", pid), zap.Error(err))
		return "", false
	}
	defer focused.Close()

	if title, err := focused.String(ax.AttrTitle); err == nil {
		if dir, ok := r.dirFromText(title); ok {
			return dir, true
		}
	}
	if value, err := focused.String(ax.AttrValue); err == nil {
		if dir, ok := r.dirFromText(LastLine(value)); ok {
			return dir, true
		}
	}
	return "", false
}

// dirFromText tests every separator-delimited segment of text, then the
// whole text, as a directory path.
func (r *Reader) dirFromText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	var candidates []string
	for _, sep := range titleSeparators {
		if !strings.Contains(text, sep) {
			continue
		}
		for _, segment := range strings.Split(text, sep) {
			candidates = append(candidates, strings.TrimSpace(segment))
		}
	}
	candidates = append(candidates, text)

	for _, candidate := range candidates {
		if dir, ok := r.asDirectory(candidate); ok {
			return dir, true
		}
	}
	return "", false
}

func (r *Reader) asDirectory(candidate string) (string, bool) {
	if candidate == "~" || strings.HasPrefix(candidate, "~/") {
		home, err := r.homeDir()
		if err != nil || home == "" {
			return "", false
		}
		candidate = filepath.Join(home, strings.TrimPrefix(candidate, "~"))
	}
	if !filepath.IsAbs(candidate) {
		return "", false
	}
	candidate = filepath.Clean(candidate)
	if !r.isDir(candidate) {
		return "", false
	}
	return candidate, true
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func userHomeDir() (string, error) {
	return os.UserHomeDir()
}
