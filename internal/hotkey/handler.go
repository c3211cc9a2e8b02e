package hotkey

import (
	"context"

	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is what a trigger did.
type Outcome string

const (
	OutcomeDebounced Outcome = "debounced"
	OutcomeHidden    Outcome = "hidden"
	OutcomeShown     Outcome = "shown"
)

// Overlay is the command palette window.
type Overlay interface {
	Visible() bool
	Show()
	Hide()
}

// Frontmost reports the application that owns the menu bar.
type Frontmost interface {
	FrontmostPID() (int, bool)
}

// Capturer runs the fast capture path.
type Capturer interface {
	Capture(ctx context.Context, pid int) detect.Capture
}

// Recorder stores the capture of the most recent trigger.
type Recorder interface {
	Record(triggerID string, capture detect.Capture)
	// Clear forgets the previous target when a trigger captured none.
	Clear()
}

// Handler reacts to hotkey presses.
type Handler struct {
	debouncer *Debouncer
	frontmost Frontmost
	capturer  Capturer
	recorder  Recorder
	overlay   Overlay
	selfPID   int
	logger    *zap.Logger
}

// NewHandler builds a handler. selfPID is this process, which is never
// recorded as a target.
func NewHandler(debouncer *Debouncer, frontmost Frontmost, capturer Capturer, recorder Recorder, overlay Overlay, selfPID int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debouncer == nil {
		debouncer = NewDebouncer(DefaultDebounce, nil)
	}
	return &Handler{
		debouncer: debouncer,
		frontmost: frontmost,
		capturer:  capturer,
		recorder:  recorder,
		overlay:   overlay,
		selfPID:   selfPID,
		logger:    logger,
	}
}

// Trigger handles one hotkey press. A visible overlay is hidden. Otherwise
// the frontmost application is captured and recorded before the overlay is
// shown, since showing it moves focus.
func (h *Handler) Trigger(ctx context.Context) Outcome {
	if !h.debouncer.Allow() {
		h.logger.Debug("hotkey trigger debounced")
		return OutcomeDebounced
	}

	if h.overlay.Visible() {
		h.overlay.Hide()
		h.logger.Debug("hotkey hid overlay")
		return OutcomeHidden
	}

	triggerID := uuid.NewString()
	logger := h.logger.With(zap.String("triggerId", triggerID))

	if pid, ok := h.frontmost.FrontmostPID(); ok && pid != h.selfPID {
		capture := h.capturer.Capture(ctx, pid)
		h.recorder.Record(triggerID, capture)
		logger.Debug("captured frontmost application",
			zap.Int("pid", pid),
			zap.String("bundleId", capture.Identity.BundleID),
			zap.String("windowKey", capture.WindowKey))
	} else {
		h.recorder.Clear()
		logger.Debug("no external frontmost application", zap.Int("pid", pid))
	}

	h.overlay.Show()
	return OutcomeShown
}
