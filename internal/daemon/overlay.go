package daemon

import (
	"sync"

	"github.com/atinylittleshell/cmdk/internal/ipc"
	"go.uber.org/zap"
)

// Notifier broadcasts to connected overlay clients.
type Notifier interface {
	Notify(method string, params interface{}) error
}

// Overlay tracks the palette's visibility on behalf of the external window
// layer and tells it when to show, hide, or step out of the way.
type Overlay struct {
	mu        sync.Mutex
	visible   bool
	notifier  Notifier
	windowKey func() string
	logger    *zap.Logger
}

// NewOverlay builds an overlay proxy. windowKey supplies the key sent with
// every show so the palette can load the matching history.
func NewOverlay(notifier Notifier, windowKey func() string, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overlay{
		notifier:  notifier,
		windowKey: windowKey,
		logger:    logger,
	}
}

func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

func (o *Overlay) Show() {
	o.setVisible(true)
}

func (o *Overlay) Hide() {
	o.setVisible(false)
}

// MarkHidden records that the overlay closed itself (escape, click away)
// without echoing a toggle back to it.
func (o *Overlay) MarkHidden() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = false
}

func (o *Overlay) setVisible(visible bool) {
	o.mu.Lock()
	o.visible = visible
	o.mu.Unlock()

	params := ipc.OverlayToggleParams{Visible: visible}
	if visible && o.windowKey != nil {
		params.WindowKey = o.windowKey()
	}
	o.notify(ipc.NotificationOverlayToggle, params)
}

// Resign asks the overlay to release keyboard focus before injection.
func (o *Overlay) Resign() {
	o.notify(ipc.NotificationOverlayFocus, ipc.OverlayFocusParams{Focused: false})
}

// Reacquire hands keyboard focus back to the overlay after injection.
func (o *Overlay) Reacquire() {
	o.notify(ipc.NotificationOverlayFocus, ipc.OverlayFocusParams{Focused: true})
}

func (o *Overlay) notify(method string, params interface{}) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(method, params); err != nil {
		o.logger.Debug("overlay notification failed", zap.String("method", method), zap.Error(err))
	}
}
