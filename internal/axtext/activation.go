package axtext

import (
	"sync"
	"time"

	"github.com/atinylittleshell/cmdk/internal/ax"
	"go.uber.org/zap"
)

const (
	activationTimeout = 2 * time.Second
	activationSettle  = 150 * time.Millisecond
)

// ActivationCache remembers which pids have already been asked to expose
// their full accessibility tree. Entries are never evicted.
type ActivationCache struct {
	mu   sync.Mutex
	pids map[int]struct{}
}

func NewActivationCache() *ActivationCache {
	return &ActivationCache{pids: map[int]struct{}{}}
}

func (c *ActivationCache) Contains(pid int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pids[pid]
	return ok
}

// Add inserts pid and reports whether it was new.
func (c *ActivationCache) Add(pid int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pids[pid]; ok {
		return false
	}
	c.pids[pid] = struct{}{}
	return true
}

func (c *ActivationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pids)
}

// Activator turns on the accessibility tree of Chromium and Electron based
// applications, which only build it once an assistive client asks.
type Activator struct {
	system ax.System
	cache  *ActivationCache
	sleep  func(time.Duration)
	logger *zap.Logger
}

// ActivatorOption configures an Activator.
type ActivatorOption func(*Activator)

// WithSleep replaces the function used to wait for the tree to populate.
func WithSleep(sleep func(time.Duration)) ActivatorOption {
	return func(a *Activator) {
		a.sleep = sleep
	}
}

func NewActivator(system ax.System, cache *ActivationCache, logger *zap.Logger, opts ...ActivatorOption) *Activator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewActivationCache()
	}
	a := &Activator{
		system: system,
		cache:  cache,
		sleep:  time.Sleep,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type flagResult int

const (
	flagFailed flagResult = iota
	flagApplied
	// flagMaybe is kAXErrorNotImplemented, which Electron returns even
	// though it honors the attribute.
	flagMaybe
)

func setFlag(el ax.Element, attr string) flagResult {
	err := el.SetBool(attr, true)
	if err == nil {
		return flagApplied
	}
	if code, ok := ax.CodeOf(err); ok && code == ax.CodeNotImplemented {
		return flagMaybe
	}
	return flagFailed
}

// Activate asks pid to build its accessibility tree once per process
// lifetime. Every outcome, including failure, is cached.
func (a *Activator) Activate(pid int) {
	if a == nil || pid <= 0 || a.cache.Contains(pid) {
		return
	}
	defer a.cache.Add(pid)

	app, err := ax.OpenApplication(a.system, pid, activationTimeout)
	if err != nil {
		a.logger.Debug("activation could not open application", zap.Int("pid", pid), zap.Error(err))
		return
	}
	defer app.Close()

	enhanced := setFlag(app, ax.AttrEnhancedUI)
	manual := setFlag(app, ax.AttrManualAccessibility)
	if enhanced == flagFailed && manual == flagFailed {
		if win, err := app.Element(ax.AttrFocusedWindow); err == nil {
			enhanced = setFlag(win, ax.AttrEnhancedUI)
			win.Close()
		}
	}

	a.logger.Debug("accessibility activation",
		zap.Int("pid", pid),
		zap.Int("enhancedUI", int(enhanced)),
		zap.Int("manualAccessibility", int(manual)))

	if enhanced != flagFailed || manual != flagFailed {
		a.sleep(activationSettle)
	}
}
