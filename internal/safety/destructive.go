package safety

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"mvdan.cc/sh/v3/syntax"
)

// Verdict is the result of inspecting a shell command before it is run.
type Verdict struct {
	Destructive bool     `json:"destructive"`
	Reasons     []string `json:"reasons,omitempty"`
}

type destructivePattern struct {
	reason  string
	pattern *regexp.Regexp
}

var destructivePatterns = []destructivePattern{
	{"recursive delete", regexp.MustCompile(`\brm\s+-[^-]*r[^-]*f`)},
	{"recursive delete", regexp.MustCompile(`\brm\s+-[^-]*f[^-]*r`)},
	{"recursive delete", regexp.MustCompile(`\brm\s+-r\b`)},
	{"secure delete", regexp.MustCompile(`\bshred\b`)},
	{"file removal", regexp.MustCompile(`\bunlink\b`)},
	{"directory removal", regexp.MustCompile(`\brmdir\b`)},
	{"force push", regexp.MustCompile(`\bgit\s+push\s+.*--force\b`)},
	{"force push", regexp.MustCompile(`\bgit\s+push\s+.*-f\b`)},
	{"hard reset", regexp.MustCompile(`\bgit\s+reset\s+--hard\b`)},
	{"force clean", regexp.MustCompile(`\bgit\s+clean\s+.*-f\b`)},
	{"branch deletion", regexp.MustCompile(`\bgit\s+branch\s+.*-D\b`)},
	{"force rebase", regexp.MustCompile(`\bgit\s+rebase\s+.*--force\b`)},
	{"drop table", regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`)},
	{"drop database", regexp.MustCompile(`(?i)\bDROP\s+DATABASE\b`)},
	{"drop schema", regexp.MustCompile(`(?i)\bDROP\s+SCHEMA\b`)},
	{"drop index", regexp.MustCompile(`(?i)\bDROP\s+INDEX\b`)},
	{"truncate table", regexp.MustCompile(`(?i)\bTRUNCATE\s+TABLE\b`)},
	{"unbounded delete", regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+\S+\s*;`)},
	{"unbounded delete", regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+\S+\s*$`)},
	{"privileged delete", regexp.MustCompile(`\bsudo\s+rm\b`)},
	{"world-writable permissions", regexp.MustCompile(`\bchmod\s+777\b`)},
	{"filesystem creation", regexp.MustCompile(`\bmkfs\b`)},
	{"raw disk copy", regexp.MustCompile(`\bdd\s+if=`)},
	{"shutdown", regexp.MustCompile(`\bshutdown\b`)},
	{"reboot", regexp.MustCompile(`\breboot\b`)},
	{"force kill", regexp.MustCompile(`\bpkill\s+-9\b`)},
	{"kill all", regexp.MustCompile(`\bkillall\b`)},
	{"partition edit", regexp.MustCompile(`\bfdisk\b`)},
	{"disk erase", regexp.MustCompile(`\bdiskutil\s+erase\b`)},
	{"drive format", regexp.MustCompile(`\bformat\s+[A-Za-z]:`)},
	{"raw device write", regexp.MustCompile(`>\s*/dev/sd[a-z]`)},
	{"raw device write", regexp.MustCompile(`>\s*/dev/disk[0-9]`)},
}

// commandPrefixes run their arguments as a command of their own.
var commandPrefixes = map[string]bool{
	"sudo":    true,
	"doas":    true,
	"command": true,
	"exec":    true,
	"nohup":   true,
	"time":    true,
	"xargs":   true,
}

// CheckCommand inspects a shell command line. Patterns are matched against
// the raw text; when the line parses as shell, every simple command in it
// (including those nested in pipelines, lists and substitutions) is checked
// by name and flags as well.
func CheckCommand(command string) Verdict {
	var reasons []string
	for _, p := range destructivePatterns {
		if p.pattern.MatchString(command) {
			reasons = append(reasons, p.reason)
		}
	}
	reasons = append(reasons, inspectParsed(command)...)
	reasons = lo.Uniq(reasons)

	return Verdict{
		Destructive: len(reasons) > 0,
		Reasons:     reasons,
	}
}

// IsDestructive reports whether command matches any destructive pattern.
func IsDestructive(command string) bool {
	return CheckCommand(command).Destructive
}

func inspectParsed(command string) []string {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	var reasons []string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		args := make([]string, 0, len(call.Args))
		for _, word := range call.Args {
			args = append(args, wordText(word))
		}
		if reason, ok := classifyCall(args, false); ok {
			reasons = append(reasons, reason)
		}
		return true
	})
	return reasons
}

// wordText returns the literal and quoted text of word, ignoring expansions.
func wordText(word *syntax.Word) string {
	if lit := word.Lit(); lit != "" {
		return lit
	}
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		}
	}
	return sb.String()
}

func classifyCall(args []string, privileged bool) (string, bool) {
	if len(args) == 0 {
		return "", false
	}

	name := args[0]
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	rest := args[1:]

	if commandPrefixes[name] {
		operands := lo.DropWhile(rest, func(arg string) bool {
			return strings.HasPrefix(arg, "-")
		})
		return classifyCall(operands, privileged || name == "sudo" || name == "doas")
	}

	switch {
	case name == "rm":
		if privileged {
			return "privileged delete", true
		}
		if lo.SomeBy(rest, isRecursiveFlag) {
			return "recursive delete", true
		}
	case name == "git" && len(rest) > 0:
		return classifyGit(rest[0], rest[1:])
	case name == "dd":
		if lo.SomeBy(rest, func(arg string) bool { return strings.HasPrefix(arg, "of=/dev/") }) {
			return "raw device write", true
		}
	case name == "chmod":
		if lo.Contains(rest, "777") {
			return "world-writable permissions", true
		}
	case strings.HasPrefix(name, "mkfs"):
		return "filesystem creation", true
	case name == "shutdown" || name == "reboot" || name == "halt":
		return name, true
	case name == "killall":
		return "kill all", true
	case name == "diskutil" && len(rest) > 0 && strings.HasPrefix(strings.ToLower(rest[0]), "erase"):
		return "disk erase", true
	}
	return "", false
}

func isRecursiveFlag(arg string) bool {
	if arg == "--recursive" {
		return true
	}
	return strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") &&
		strings.ContainsAny(arg, "rR")
}

func classifyGit(sub string, args []string) (string, bool) {
	switch sub {
	case "push":
		if lo.SomeBy(args, func(arg string) bool {
			return arg == "-f" || arg == "--force" || strings.HasPrefix(arg, "--force-with-lease") ||
				(strings.HasPrefix(arg, "+") && len(arg) > 1)
		}) {
			return "force push", true
		}
	case "reset":
		if lo.Contains(args, "--hard") {
			return "hard reset", true
		}
	case "clean":
		if lo.SomeBy(args, func(arg string) bool {
			return arg == "--force" || (strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && strings.Contains(arg, "f"))
		}) {
			return "force clean", true
		}
	case "branch":
		if lo.SomeBy(args, func(arg string) bool { return arg == "-D" }) {
			return "branch deletion", true
		}
	case "checkout", "restore":
		if lo.Contains(args, ".") {
			return "discard changes", true
		}
	}
	return "", false
}
