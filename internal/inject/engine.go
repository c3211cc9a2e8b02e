// Package inject delivers generated commands back into the application the
// user was working in, using the least invasive mechanism the target
// supports and falling back to a clipboard paste.
package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/chain"
	"github.com/atinylittleshell/cmdk/internal/platform"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the pacing of an injection.
type Config struct {
	// ScriptChunkSize is the number of characters per AppleScript write.
	ScriptChunkSize  int
	ScriptChunkDelay time.Duration
	// TypedChunkDelay separates synthetic Unicode key events.
	TypedChunkDelay time.Duration
	// ResignDelay follows the overlay giving up focus.
	ResignDelay time.Duration
	// SettleDelay precedes the overlay taking focus back.
	SettleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		ScriptChunkSize:  32,
		ScriptChunkDelay: 20 * time.Millisecond,
		TypedChunkDelay:  15 * time.Millisecond,
		ResignDelay:      50 * time.Millisecond,
		SettleDelay:      120 * time.Millisecond,
	}
}

// PermissionChecker reports whether synthetic input may be posted.
type PermissionChecker interface {
	Granted() bool
}

// FocusController lets the overlay step out of the way while input is
// delivered.
type FocusController interface {
	Resign()
	Reacquire()
}

// NopFocus is a FocusController for callers without an overlay.
type NopFocus struct{}

func (NopFocus) Resign()    {}
func (NopFocus) Reacquire() {}

// Engine injects text and confirmation keystrokes into a target process.
type Engine struct {
	workspace  platform.Workspace
	keyboard   platform.Keyboard
	scripter   platform.Scripter
	permission PermissionChecker
	clipboard  Clipboard
	focus      FocusController
	catalog    *apps.Catalog
	cfg        Config
	sleep      func(time.Duration)
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithClipboard(c Clipboard) Option {
	return func(e *Engine) { e.clipboard = c }
}

func WithFocusController(f FocusController) Option {
	return func(e *Engine) { e.focus = f }
}

func WithCatalog(c *apps.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithSleep replaces the function used for every pacing delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func NewEngine(workspace platform.Workspace, keyboard platform.Keyboard, scripter platform.Scripter, permission PermissionChecker, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		workspace:  workspace,
		keyboard:   keyboard,
		scripter:   scripter,
		permission: permission,
		clipboard:  SystemClipboard{},
		focus:      NopFocus{},
		catalog:    apps.DefaultCatalog(),
		cfg:        DefaultConfig(),
		sleep:      time.Sleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Inject delivers text into target. The payload is copied to the clipboard
// in parallel and the copy has completed when Inject returns. Trailing line
// breaks are dropped so the command is never executed by the injection
// itself.
func (e *Engine) Inject(ctx context.Context, target procinfo.Identity, text string) error {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}
	if target.PID <= 0 {
		return &DeliveryError{Target: target, Err: errInvalidTarget}
	}

	var g errgroup.Group
	g.Go(func() error {
		return e.clipboard.WriteAll(text)
	})
	clipboardReady := sync.OnceValue(g.Wait)

	err := e.bracket(func() error {
		return chain.Do(ctx, e.logger, e.injectSteps(target, text, clipboardReady)...)
	})

	if clipErr := clipboardReady(); clipErr != nil {
		e.logger.Warn("failed to copy payload to clipboard", zap.Error(clipErr))
	}

	e.logger.Debug("injection finished",
		zap.Int("pid", target.PID),
		zap.String("bundleId", target.BundleID),
		zap.Int("length", len(text)),
		zap.Error(err))
	return e.classify(target, err)
}

// Confirm sends the execute keystroke to target.
func (e *Engine) Confirm(ctx context.Context, target procinfo.Identity) error {
	if target.PID <= 0 {
		return &DeliveryError{Target: target, Err: errInvalidTarget}
	}

	var steps []chain.Step[struct{}]
	if e.catalog.IsScriptable(target.BundleID) {
		steps = append(steps, chain.Action("applescript newline", func(ctx context.Context) error {
			return e.scripter.Run(ctx, confirmScript(target.BundleID))
		}))
	}
	steps = append(steps, chain.Action("return key", func(ctx context.Context) error {
		if err := e.prepare(target.PID); err != nil {
			return err
		}
		return e.keyboard.Press(platform.KeyReturn, platform.ModNone)
	}))

	err := e.bracket(func() error {
		return chain.Do(ctx, e.logger, steps...)
	})
	e.logger.Debug("confirm finished", zap.Int("pid", target.PID), zap.Error(err))
	return e.classify(target, err)
}

// bracket moves focus away from the overlay around fn.
func (e *Engine) bracket(fn func() error) error {
	e.focus.Resign()
	e.sleep(e.cfg.ResignDelay)
	err := fn()
	e.sleep(e.cfg.SettleDelay)
	e.focus.Reacquire()
	return err
}

func (e *Engine) classify(target procinfo.Identity, err error) error {
	if err == nil {
		return nil
	}
	var perm *PermissionError
	if errors.As(err, &perm) {
		return perm
	}
	return &DeliveryError{Target: target, Err: err}
}

// injectSteps lists the strategies for target in order. Scriptable
// terminals fall back to the generic path without a clear-line, matching
// how any other application is treated.
func (e *Engine) injectSteps(target procinfo.Identity, text string, clipboardReady func() error) []chain.Step[struct{}] {
	pid := target.PID
	switch {
	case e.catalog.IsScriptable(target.BundleID):
		return []chain.Step[struct{}]{
			chain.Action("applescript write", func(ctx context.Context) error {
				return e.writeScript(ctx, target.BundleID, text)
			}),
			e.typedStep(pid, text, false),
			e.pasteStep(pid, false, clipboardReady),
		}
	case e.catalog.IsTerminal(target.BundleID) || e.catalog.IsIDE(target.BundleID):
		return []chain.Step[struct{}]{
			e.typedStep(pid, text, true),
			e.pasteStep(pid, true, clipboardReady),
		}
	default:
		return []chain.Step[struct{}]{
			e.typedStep(pid, text, false),
			e.pasteStep(pid, false, clipboardReady),
		}
	}
}

// prepare runs the permission preflight and brings pid to the front. A
// missing permission halts the chain.
func (e *Engine) prepare(pid int) error {
	if e.permission != nil && !e.permission.Granted() {
		return chain.Halt(&PermissionError{})
	}
	if err := e.workspace.Activate(pid); err != nil {
		return fmt.Errorf("failed to activate pid %d: %w", pid, err)
	}
	return nil
}

func (e *Engine) clearLine() error {
	return e.keyboard.Press(platform.KeyU, platform.ModControl)
}

func (e *Engine) typedStep(pid int, text string, clear bool) chain.Step[struct{}] {
	return chain.Action("typed unicode", func(ctx context.Context) error {
		if err := e.prepare(pid); err != nil {
			return err
		}
		if clear {
			if err := e.clearLine(); err != nil {
				return fmt.Errorf("failed to clear line: %w", err)
			}
		}
		for i, chunk := range typedChunks(text, platform.MaxUnicodeUnits) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if i > 0 {
				e.sleep(e.cfg.TypedChunkDelay)
			}
			if err := e.keyboard.TypeText(chunk); err != nil {
				return fmt.Errorf("failed to type chunk %d: %w", i, err)
			}
		}
		return nil
	})
}

func (e *Engine) pasteStep(pid int, clear bool, clipboardReady func() error) chain.Step[struct{}] {
	return chain.Action("clipboard paste", func(context.Context) error {
		if err := e.prepare(pid); err != nil {
			return err
		}
		if err := clipboardReady(); err != nil {
			return fmt.Errorf("clipboard not ready: %w", err)
		}
		if clear {
			if err := e.clearLine(); err != nil {
				return fmt.Errorf("failed to clear line: %w", err)
			}
		}
		return e.keyboard.Press(platform.KeyV, platform.ModCommand)
	})
}
