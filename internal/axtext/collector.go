package axtext

import (
	"strings"
	"unicode/utf8"

	"github.com/atinylittleshell/cmdk/internal/ax"
)

// collector gathers element text under a byte budget shared by every walk
// and an element budget that resets per walk.
type collector struct {
	buf         strings.Builder
	seen        map[string]struct{}
	maxBytes    int
	maxElements int
}

func newCollector(maxBytes, maxElements int) *collector {
	return &collector{
		seen:        map[string]struct{}{},
		maxBytes:    maxBytes,
		maxElements: maxElements,
	}
}

func (c *collector) full() bool {
	return c.buf.Len() >= c.maxBytes
}

func (c *collector) Len() int {
	return c.buf.Len()
}

func (c *collector) String() string {
	return c.buf.String()
}

func (c *collector) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" || c.full() {
		return
	}
	if _, dup := c.seen[text]; dup {
		return
	}
	c.seen[text] = struct{}{}

	sep := ""
	if c.buf.Len() > 0 {
		sep = "\n"
	}
	remaining := c.maxBytes - c.buf.Len() - len(sep)
	if remaining <= 0 {
		return
	}
	c.buf.WriteString(sep)
	c.buf.WriteString(truncateUTF8(text, remaining))
}

func (c *collector) walk(root ax.Element, maxDepth int) {
	visited := 0
	ax.Walk(root, maxDepth, func(el ax.Element, _ int) bool {
		if c.full() || visited >= c.maxElements {
			return false
		}
		visited++
		c.add(elementText(el))
		return true
	})
}

// elementText returns the value of text-bearing roles and the title of
// everything else.
func elementText(el ax.Element) string {
	attr := ax.AttrTitle
	switch ax.Role(el) {
	case ax.RoleStaticText, ax.RoleTextField, ax.RoleTextArea, ax.RoleWebArea:
		attr = ax.AttrValue
	}
	text, err := el.String(attr)
	if err != nil {
		return ""
	}
	return text
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// LastLine returns the last non-empty line of s, trimmed.
func LastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
