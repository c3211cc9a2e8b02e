package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinylittleshell/cmdk/internal/platform"
)

// clearLineChar is Ctrl-U, which erases the current shell input line.
const clearLineChar = 21

// writeScript types text into the current session of a scriptable terminal.
func (e *Engine) writeScript(ctx context.Context, bundleID, text string) error {
	size := e.cfg.ScriptChunkSize
	if size <= 0 {
		size = DefaultConfig().ScriptChunkSize
	}
	script := buildWriteScript(bundleID, scriptChunks(text, size), e.cfg.ScriptChunkDelay.Seconds())
	return e.scripter.Run(ctx, script)
}

func buildWriteScript(bundleID string, chunks []string, delaySeconds float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tell application id \"%s\"\n", platform.EscapeAppleScript(bundleID))
	b.WriteString("\ttell current session of current window\n")
	fmt.Fprintf(&b, "\t\twrite text (ASCII character %d) newline NO\n", clearLineChar)
	for i, chunk := range chunks {
		if i > 0 && delaySeconds > 0 {
			fmt.Fprintf(&b, "\t\tdelay %.3f\n", delaySeconds)
		}
		fmt.Fprintf(&b, "\t\twrite text \"%s\" newline NO\n", platform.EscapeAppleScript(chunk))
	}
	b.WriteString("\tend tell\n")
	b.WriteString("end tell")
	return b.String()
}

func confirmScript(bundleID string) string {
	return fmt.Sprintf("tell application id \"%s\"\n\ttell current session of current window\n\t\twrite text \"\" newline YES\n\tend tell\nend tell",
		platform.EscapeAppleScript(bundleID))
}
