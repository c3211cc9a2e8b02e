package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/axtext"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"github.com/atinylittleshell/cmdk/internal/safety"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const unknownBundle = "unknown"

// Detector resolves application context for a pid.
type Detector struct {
	procs          ProcessResolver
	text           TextReader
	console        ConsoleDetector
	catalog        *apps.Catalog
	detectTimeout  time.Duration
	captureTimeout time.Duration
	logger         *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithTimeouts overrides the detection and fast-capture ceilings. Zero
// values keep the defaults.
func WithTimeouts(detect, capture time.Duration) Option {
	return func(d *Detector) {
		if detect > 0 {
			d.detectTimeout = detect
		}
		if capture > 0 {
			d.captureTimeout = capture
		}
	}
}

func NewDetector(procs ProcessResolver, text TextReader, console ConsoleDetector, catalog *apps.Catalog, logger *zap.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = apps.DefaultCatalog()
	}
	d := &Detector{
		procs:          procs,
		text:           text,
		console:        console,
		catalog:        catalog,
		detectTimeout:  DefaultDetectTimeout,
		captureTimeout: DefaultCaptureTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// within runs work on its own goroutine and waits at most timeout. On
// timeout the result is dropped when the worker eventually finishes.
func within[T any](ctx context.Context, timeout time.Duration, work func() T) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		done <- work()
	}()

	select {
	case v := <-done:
		return v, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// DetectTerminal returns the terminal context of pid, or nil when pid hosts
// no shell, the ceiling expires, or ctx ends first.
func (d *Detector) DetectTerminal(ctx context.Context, pid int) *TerminalContext {
	app, ok := within(ctx, d.detectTimeout, func() *AppContext {
		return d.detect(pid, false)
	})
	if !ok {
		d.logger.Debug("terminal detection timed out", zap.Int("pid", pid), zap.Duration("timeout", d.detectTimeout))
		return nil
	}
	if app == nil {
		return nil
	}
	return app.Terminal
}

// DetectFull returns the application context of pid including browser
// console detection, or nil under the same conditions as DetectTerminal.
func (d *Detector) DetectFull(ctx context.Context, pid int) *AppContext {
	app, ok := within(ctx, d.detectTimeout, func() *AppContext {
		return d.detect(pid, true)
	})
	if !ok {
		d.logger.Debug("full detection timed out", zap.Int("pid", pid), zap.Duration("timeout", d.detectTimeout))
		return nil
	}
	return app
}

func (d *Detector) detect(pid int, full bool) *AppContext {
	id := d.procs.Identity(pid)
	shell := d.procs.ShellState(pid)
	isTerminal := d.catalog.IsTerminal(id.BundleID)
	isBrowser := d.catalog.IsBrowser(id.BundleID)

	if !shell.Found() && !isTerminal && !isBrowser {
		d.logger.Debug("no context for application", zap.Int("pid", pid), zap.String("bundleId", id.BundleID))
		return nil
	}

	app := &AppContext{AppName: apps.CleanDisplayName(id.DisplayName)}

	var visible string
	if d.catalog.HasAccessibleText(id.BundleID) {
		if text, ok := d.text.ReadTerminalText(pid, id.BundleID, axtext.DefaultTimeout); ok {
			visible = safety.Redact(text)
		}
	}
	if shell.Found() || visible != "" {
		app.Terminal = &TerminalContext{
			ShellType:      shell.ShellType,
			Cwd:            shell.Cwd,
			VisibleOutput:  visible,
			RunningProcess: shell.RunningProcess,
		}
	}

	if full && isBrowser && !shell.Found() && d.console != nil {
		detected, line := d.console.Detect(pid)
		app.ConsoleDetected = detected
		app.ConsoleLastLine = safety.Redact(line)
	}

	d.logger.Debug("detected application context",
		zap.Int("pid", pid),
		zap.String("bundleId", id.BundleID),
		zap.Bool("shell", shell.Found()),
		zap.String("visibleOutput", humanize.Bytes(uint64(len(visible)))),
		zap.Bool("console", app.ConsoleDetected))
	return app
}

// WindowKey identifies the window or terminal session behind pid. Terminals
// and IDEs are keyed by their foreground shell so each tab gets its own
// key; cwdHint picks between tabs of a multi-tab IDE.
func (d *Detector) WindowKey(pid int, cwdHint string) string {
	return d.windowKey(d.procs.Identity(pid), cwdHint)
}

func (d *Detector) windowKey(id procinfo.Identity, cwdHint string) string {
	if d.catalog.IsTerminal(id.BundleID) || d.catalog.IsIDE(id.BundleID) {
		if shellPID, ok := d.procs.ShellPID(id.PID, cwdHint); ok {
			return formatKey(id.BundleID, shellPID)
		}
	}
	return d.fallbackKey(id)
}

// Capture runs the hotkey fast path. The identity and window key are always
// resolved. The focused tab cwd and the pre-captured text share the capture
// ceiling; whichever read misses it is left empty, and a missing tab cwd
// only drops the hint used to pick between IDE tabs.
func (d *Detector) Capture(ctx context.Context, pid int) Capture {
	ctx, cancel := context.WithTimeout(ctx, d.captureTimeout)
	defer cancel()

	id := d.procs.Identity(pid)
	capture := Capture{Identity: id}

	if d.catalog.IsIDE(id.BundleID) {
		cwd, ok := within(ctx, d.captureTimeout, func() string {
			cwd, _ := d.text.FocusedTabCwd(pid)
			return cwd
		})
		if !ok {
			d.logger.Debug("focused tab cwd timed out", zap.Int("pid", pid), zap.Duration("timeout", d.captureTimeout))
		}
		capture.FocusedCwd = cwd
	}
	capture.WindowKey = d.windowKey(id, capture.FocusedCwd)

	if !d.catalog.IsGPUTerminal(id.BundleID) && !d.catalog.HasAccessibleText(id.BundleID) {
		text, ok := within(ctx, d.captureTimeout, func() string {
			text, _ := d.text.ReadFocusedText(pid, axtext.FastTimeout)
			return text
		})
		if !ok {
			d.logger.Debug("pre-capture timed out", zap.Int("pid", pid), zap.Duration("timeout", d.captureTimeout))
		}
		if text != "" {
			capture.PreCapturedText = safety.Redact(text)
		}
	}

	d.logger.Debug("fast capture",
		zap.Int("pid", pid),
		zap.String("windowKey", capture.WindowKey),
		zap.Bool("focusedCwd", capture.FocusedCwd != ""),
		zap.String("preCaptured", humanize.Bytes(uint64(len(capture.PreCapturedText)))))
	return capture
}

func (d *Detector) fallbackKey(id procinfo.Identity) string {
	return formatKey(id.BundleID, id.PID)
}

func formatKey(bundleID string, pid int) string {
	if bundleID == "" {
		bundleID = unknownBundle
	}
	return fmt.Sprintf("%s:%d", bundleID, pid)
}
