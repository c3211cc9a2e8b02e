// Package axtext reads on-screen text from other applications through the
// accessibility tree, under hard time budgets.
package axtext

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/ax"
	"github.com/atinylittleshell/cmdk/internal/chain"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds each accessibility message during enrichment.
	DefaultTimeout = time.Second
	// FastTimeout bounds each accessibility message during the hotkey fast path.
	FastTimeout = 200 * time.Millisecond

	terminalWalkDepth = 5
	focusedWalkDepth  = 15
	subtreeWalkDepth  = 10
	maxElements       = 500
	maxTextBytes      = 4096
	// fallbackThreshold is the size below which the focused-window walk is
	// considered to have missed the content.
	fallbackThreshold = 200
)

var errNoText = errors.New("no text")

// Limits bounds a generic text read.
type Limits struct {
	MaxBytes    int
	MaxElements int
}

// DefaultLimits returns the standard read budget.
func DefaultLimits() Limits {
	return Limits{MaxBytes: maxTextBytes, MaxElements: maxElements}
}

// Reader reads terminal buffers and focused-window text.
type Reader struct {
	system    ax.System
	activator *Activator
	limits    Limits
	isDir     func(path string) bool
	homeDir   func() (string, error)
	logger    *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLimits overrides the generic text budget.
func WithLimits(limits Limits) Option {
	return func(r *Reader) {
		if limits.MaxBytes > 0 {
			r.limits.MaxBytes = limits.MaxBytes
		}
		if limits.MaxElements > 0 {
			r.limits.MaxElements = limits.MaxElements
		}
	}
}

// WithDirCheck replaces the filesystem probe used by FocusedTabCwd.
func WithDirCheck(isDir func(path string) bool, homeDir func() (string, error)) Option {
	return func(r *Reader) {
		r.isDir = isDir
		r.homeDir = homeDir
	}
}

func NewReader(system ax.System, activator *Activator, logger *zap.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{
		system:    system,
		activator: activator,
		limits:    DefaultLimits(),
		isDir:     isDirectory,
		homeDir:   userHomeDir,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// textPath is one way of locating a terminal's text buffer.
type textPath struct {
	name string
	read func(app ax.Element) (string, error)
}

var (
	focusedValuePath = textPath{name: "focused element value", read: readFocusedValue}
	windowWalkPath   = textPath{name: "focused window text area", read: readWindowTextArea}
)

// terminalPaths lists the paths tried per bundle id, in order.
var terminalPaths = map[string][]textPath{
	apps.BundleITerm2: {focusedValuePath, windowWalkPath},
}

var defaultTerminalPaths = []textPath{windowWalkPath, focusedValuePath}

func pathsFor(bundleID string) []textPath {
	if paths, ok := terminalPaths[bundleID]; ok {
		return paths
	}
	return defaultTerminalPaths
}

// ReadTerminalText reads the visible buffer of a native terminal.
func (r *Reader) ReadTerminalText(pid int, bundleID string, timeout time.Duration) (string, bool) {
	app, err := ax.OpenApplication(r.system, pid, timeout)
	if err != nil {
		r.logger.Debug("terminal text: cannot open application", zap.Int("pid", pid), zap.Error(err))
		return "", false
	}
	defer app.Close()

	steps := lo.Map(pathsFor(bundleID), func(p textPath, _ int) chain.Step[string] {
		return chain.Step[string]{Name: p.name, Try: func(context.Context) (string, error) {
			return p.read(app)
		}}
	})
	text, err := chain.First(context.Background(), r.logger, steps...)
	if err != nil {
		r.logger.Debug("terminal text unavailable", zap.Int("pid", pid), zap.String("bundleId", bundleID), zap.Error(err))
		return "", false
	}
	r.logger.Debug("terminal text read", zap.Int("pid", pid), zap.String("size", humanize.Bytes(uint64(len(text)))))
	return text, true
}

func readFocusedValue(app ax.Element) (string, error) {
	focused, err := app.Element(ax.AttrFocusedUIElement)
	if err != nil {
		return "", err
	}
	defer focused.Close()

	value, err := focused.String(ax.AttrValue)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", errNoText
	}
	return value, nil
}

func readWindowTextArea(app ax.Element) (string, error) {
	win, err := app.Element(ax.AttrFocusedWindow)
	if err != nil {
		return "", err
	}
	defer win.Close()

	var text string
	ax.Walk(win, terminalWalkDepth, func(el ax.Element, _ int) bool {
		if ax.Role(el) != ax.RoleTextArea {
			return true
		}
		value, err := el.String(ax.AttrValue)
		if err != nil || strings.TrimSpace(value) == "" {
			return true
		}
		text = value
		return false
	})
	if text == "" {
		return "", errNoText
	}
	return text, nil
}

// ReadFocusedText collects text from the focused window of any application.
// When the window walk yields little, the focused element, its subtree and
// its parent's subtree are read into the same budget.
func (r *Reader) ReadFocusedText(pid int, timeout time.Duration) (string, bool) {
	r.activator.Activate(pid)

	app, err := ax.OpenApplication(r.system, pid, timeout)
	if err != nil {
		r.logger.Debug("focused text: cannot open application", zap.Int("pid", pid), zap.Error(err))
		return "", false
	}
	defer app.Close()

	c := newCollector(r.limits.MaxBytes, r.limits.MaxElements)
	if win, err := app.Element(ax.AttrFocusedWindow); err == nil {
		c.walk(win, focusedWalkDepth)
		win.Close()
	} else {
		r.logger.Debug("focused text: no focused window", zap.Int("pid", pid), zap.Error(err))
	}

	if c.Len() < fallbackThreshold {
		r.readFocusedElement(app, c)
	}

	text := c.String()
	r.logger.Debug("focused text read", zap.Int("pid", pid), zap.String("size", humanize.Bytes(uint64(len(text)))))
	return text, text != ""
}

func (r *Reader) readFocusedElement(app ax.Element, c *collector) {
	focused, err := app.Element(ax.AttrFocusedUIElement)
	if err != nil {
		return
	}
	defer focused.Close()

	c.walk(focused, subtreeWalkDepth)
	if c.full() {
		return
	}
	if parent, err := focused.Element(ax.AttrParent); err == nil {
		c.walk(parent, subtreeWalkDepth)
		parent.Close()
	}
}
