package axtext

import (
	"sync"
	"testing"
	"time"

	"github.com/atinylittleshell/cmdk/internal/ax"
	"github.com/atinylittleshell/cmdk/internal/ax/axtest"
	"github.com/stretchr/testify/assert"
)

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

func TestActivationCache(t *testing.T) {
	c := NewActivationCache()
	assert.False(t, c.Contains(1))
	assert.True(t, c.Add(1))
	assert.False(t, c.Add(1))
	assert.True(t, c.Contains(1))
	assert.Equal(t, 1, c.Len())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(i % 5)
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}

func TestActivate(t *testing.T) {
	t.Run("sets both flags once", func(t *testing.T) {
		app := axtest.New("AXApplication")
		sys := axtest.NewSystem()
		sys.AddApp(1, app)
		rec := &sleepRecorder{}
		cache := NewActivationCache()
		a := NewActivator(sys, cache, nil, WithSleep(rec.sleep))

		a.Activate(1)
		a.Activate(1)

		enhanced, ok := sys.Written(app, ax.AttrEnhancedUI)
		assert.True(t, ok)
		assert.True(t, enhanced)
		manual, ok := sys.Written(app, ax.AttrManualAccessibility)
		assert.True(t, ok)
		assert.True(t, manual)
		assert.Equal(t, []time.Duration{activationSettle}, rec.calls)
		assert.True(t, cache.Contains(1))
		assert.Contains(t, sys.Timeouts(), activationTimeout)
		assert.Zero(t, sys.Outstanding())
	})

	t.Run("not implemented still settles", func(t *testing.T) {
		app := axtest.New("AXApplication").
			FailSet(ax.AttrEnhancedUI, ax.CodeNotImplemented).
			FailSet(ax.AttrManualAccessibility, ax.CodeNotImplemented)
		sys := axtest.NewSystem()
		sys.AddApp(2, app)
		rec := &sleepRecorder{}

		NewActivator(sys, nil, nil, WithSleep(rec.sleep)).Activate(2)
		assert.Equal(t, []time.Duration{activationSettle}, rec.calls)
	})

	t.Run("falls back to the focused window", func(t *testing.T) {
		window := axtest.New(ax.RoleWindow)
		app := axtest.New("AXApplication", window).
			WithRef(ax.AttrFocusedWindow, window).
			FailSet(ax.AttrEnhancedUI, ax.CodeFailure).
			FailSet(ax.AttrManualAccessibility, ax.CodeAttributeUnsupported)
		sys := axtest.NewSystem()
		sys.AddApp(3, app)
		rec := &sleepRecorder{}

		NewActivator(sys, nil, nil, WithSleep(rec.sleep)).Activate(3)
		written, ok := sys.Written(window, ax.AttrEnhancedUI)
		assert.True(t, ok)
		assert.True(t, written)
		assert.Len(t, rec.calls, 1)
		assert.Zero(t, sys.Outstanding())
	})

	t.Run("failure is cached without settling", func(t *testing.T) {
		app := axtest.New("AXApplication").
			FailSet(ax.AttrEnhancedUI, ax.CodeFailure).
			FailSet(ax.AttrManualAccessibility, ax.CodeFailure)
		sys := axtest.NewSystem()
		sys.AddApp(4, app)
		rec := &sleepRecorder{}
		cache := NewActivationCache()

		NewActivator(sys, cache, nil, WithSleep(rec.sleep)).Activate(4)
		assert.Empty(t, rec.calls)
		assert.True(t, cache.Contains(4))
	})

	t.Run("unknown pid is cached", func(t *testing.T) {
		cache := NewActivationCache()
		NewActivator(axtest.NewSystem(), cache, nil, WithSleep(noSleep)).Activate(5)
		assert.True(t, cache.Contains(5))
	})

	t.Run("nil activator is a no-op", func(t *testing.T) {
		var a *Activator
		assert.NotPanics(t, func() { a.Activate(6) })
	})
}
