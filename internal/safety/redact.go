// Package safety scrubs credentials out of captured screen text and flags
// shell commands that would destroy data if executed.
package safety

import "regexp"

// RedactedMarker replaces every secret found in captured text.
const RedactedMarker = "[REDACTED]"

// maxRedactionPasses bounds the fixpoint loop in Redact.
const maxRedactionPasses = 4

type redactionRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

var secretRedactionRules = []redactionRule{
	{
		name:        "aws-access-key",
		pattern:     regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		replacement: RedactedMarker,
	},
	{
		name:        "xai-key",
		pattern:     regexp.MustCompile(`xai-[a-zA-Z0-9]{32,}`),
		replacement: RedactedMarker,
	},
	{
		name:        "openai-key",
		pattern:     regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),
		replacement: RedactedMarker,
	},
	{
		name:        "github-token",
		pattern:     regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
		replacement: RedactedMarker,
	},
	{
		name:        "private-key-header",
		pattern:     regexp.MustCompile(`-----BEGIN [A-Z]+ PRIVATE KEY-----`),
		replacement: RedactedMarker,
	},
	{
		name:        "bearer-header",
		pattern:     regexp.MustCompile(`(?i)\b(authorization\s*:\s*bearer)\s+([^\s"']+)`),
		replacement: `$1 ` + RedactedMarker,
	},
	{
		name:        "secret-flag-equals",
		pattern:     regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:token|secret|password|passwd|api[_-]?key|access[_-]?key)[a-z0-9_-]*)\s*=\s*([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1=` + RedactedMarker,
	},
	{
		name:        "secret-flag",
		pattern:     regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:token|secret|password|passwd|api[_-]?key|access[_-]?key)[a-z0-9_-]*)\s+([^\s"'=-][^\s"']*|"[^"]*"|'[^']*')`),
		replacement: `$1 ` + RedactedMarker,
	},
	{
		name:        "secret-assignment",
		pattern:     regexp.MustCompile(`(?i)(api[_-]?key|token|password|secret|bearer)\s*[=:]\s*['"]?[a-zA-Z0-9+/]{16,}['"]?`),
		replacement: RedactedMarker,
	},
	{
		name:        "secret-export",
		pattern:     regexp.MustCompile(`(?i)export\s+\w*(secret|key|token|password)\w*\s*=\s*\S{16,}`),
		replacement: RedactedMarker,
	},
}

// Redact replaces every credential-shaped substring of text with
// RedactedMarker. It is pure, never fails and is idempotent.
func Redact(text string) string {
	if text == "" {
		return text
	}

	redacted := text
	for range maxRedactionPasses {
		next := applyRules(redacted)
		if next == redacted {
			break
		}
		redacted = next
	}
	return redacted
}

func applyRules(text string) string {
	for _, rule := range secretRedactionRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

// ContainsSecret reports whether Redact would change text.
func ContainsSecret(text string) bool {
	return Redact(text) != text
}
