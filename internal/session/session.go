// Package session holds the capture of the most recent hotkey trigger and
// answers the overlay's requests against it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"go.uber.org/zap"
)

// ErrNoTarget is returned when no trigger has captured an application yet.
var ErrNoTarget = errors.New("no target application captured")

// Detector enriches a capture with the full application context.
type Detector interface {
	DetectFull(ctx context.Context, pid int) *detect.AppContext
}

// Injector delivers text and confirmations.
type Injector interface {
	Inject(ctx context.Context, target procinfo.Identity, text string) error
	Confirm(ctx context.Context, target procinfo.Identity) error
}

// Snapshot describes the current slot.
type Snapshot struct {
	TriggerID  string         `json:"trigger_id"`
	CapturedAt time.Time      `json:"captured_at"`
	Capture    detect.Capture `json:"capture"`
}

// Session is the single most-recent-trigger slot.
type Session struct {
	mu       sync.Mutex
	current  *Snapshot
	injectMu sync.Mutex
	detector Detector
	injector Injector
	now      func() time.Time
	logger   *zap.Logger
}

func New(detector Detector, injector Injector, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		detector: detector,
		injector: injector,
		now:      time.Now,
		logger:   logger,
	}
}

// Record replaces the slot with a new capture.
func (s *Session) Record(triggerID string, capture detect.Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Snapshot{
		TriggerID:  triggerID,
		CapturedAt: s.now(),
		Capture:    capture,
	}
}

// Clear empties the slot; until the next Record, Paste and Confirm return
// ErrNoTarget.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Current returns a copy of the slot.
func (s *Session) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

// Target is the identity captured by the most recent trigger.
func (s *Session) Target() (procinfo.Identity, bool) {
	snap, ok := s.Current()
	if !ok {
		return procinfo.Identity{}, false
	}
	return snap.Capture.Identity, true
}

// WindowKey is the key computed at trigger time, or "" before any trigger.
func (s *Session) WindowKey() string {
	snap, ok := s.Current()
	if !ok {
		return ""
	}
	return snap.Capture.WindowKey
}

// takePreCaptured returns the pre-captured text once per trigger.
func (s *Session) takePreCaptured() (Snapshot, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{}, "", false
	}
	text := s.current.Capture.PreCapturedText
	s.current.Capture.PreCapturedText = ""
	return *s.current, text, true
}

// AppContext runs full detection against the captured application and
// merges in the text pre-captured at trigger time.
func (s *Session) AppContext(ctx context.Context) *detect.AppContext {
	snap, preCaptured, ok := s.takePreCaptured()
	if !ok {
		return nil
	}
	id := snap.Capture.Identity

	app := s.detector.DetectFull(ctx, id.PID)
	if preCaptured == "" {
		return app
	}

	switch {
	case app == nil:
		app = &detect.AppContext{
			AppName:     apps.CleanDisplayName(id.DisplayName),
			VisibleText: preCaptured,
		}
	case app.Terminal != nil && app.Terminal.VisibleOutput == "":
		app.Terminal.VisibleOutput = preCaptured
	default:
		app.VisibleText = preCaptured
	}
	return app
}

// Paste injects text into the captured application.
func (s *Session) Paste(ctx context.Context, text string) error {
	target, ok := s.Target()
	if !ok {
		return ErrNoTarget
	}
	s.injectMu.Lock()
	defer s.injectMu.Unlock()

	s.logger.Debug("pasting into target", zap.Int("pid", target.PID), zap.String("bundleId", target.BundleID))
	return s.injector.Inject(ctx, target, text)
}

// Confirm sends the execute keystroke to the captured application.
func (s *Session) Confirm(ctx context.Context) error {
	target, ok := s.Target()
	if !ok {
		return ErrNoTarget
	}
	s.injectMu.Lock()
	defer s.injectMu.Unlock()

	s.logger.Debug("confirming in target", zap.Int("pid", target.PID), zap.String("bundleId", target.BundleID))
	return s.injector.Confirm(ctx, target)
}
