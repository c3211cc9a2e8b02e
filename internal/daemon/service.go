// Package daemon wires the capture and injection components together and
// serves them to the overlay over the local socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/hotkey"
	"github.com/atinylittleshell/cmdk/internal/inject"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/atinylittleshell/cmdk/internal/safety"
	"github.com/atinylittleshell/cmdk/internal/session"
	"go.uber.org/zap"
)

type Trigger interface {
	Trigger(ctx context.Context) hotkey.Outcome
}

// Session is the most recent trigger as seen by the overlay.
type Session interface {
	AppContext(ctx context.Context) *detect.AppContext
	WindowKey() string
	Paste(ctx context.Context, text string) error
	Confirm(ctx context.Context) error
}

type History interface {
	Add(windowKey string, entry history.HistoryEntry) (*history.HistoryEntry, error)
	Get(windowKey string, limit int) ([]history.HistoryEntry, error)
}

type Permission interface {
	Granted() bool
	Request() bool
}

// Service answers IPC requests.
type Service struct {
	trigger      Trigger
	session      Session
	history      History
	permission   Permission
	openSettings func(ctx context.Context) error
	overlay      *Overlay
	logger       *zap.Logger
}

func NewService(trigger Trigger, sess Session, hist History, permission Permission, openSettings func(ctx context.Context) error, overlay *Overlay, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		trigger:      trigger,
		session:      sess,
		history:      hist,
		permission:   permission,
		openSettings: openSettings,
		overlay:      overlay,
		logger:       logger,
	}
}

// Register installs a handler for every method the daemon serves.
func (s *Service) Register(srv *ipc.Server) {
	srv.Handle(ipc.MethodHotkeyTrigger, s.handleTrigger)
	srv.Handle(ipc.MethodContextGet, s.handleContext)
	srv.Handle(ipc.MethodWindowKeyGet, s.handleWindowKey)
	srv.Handle(ipc.MethodInjectPaste, s.handlePaste)
	srv.Handle(ipc.MethodInjectConfirm, s.handleConfirm)
	srv.Handle(ipc.MethodOverlayHidden, s.handleOverlayHidden)
	srv.Handle(ipc.MethodHistoryGet, s.handleHistoryGet)
	srv.Handle(ipc.MethodHistoryAdd, s.handleHistoryAdd)
	srv.Handle(ipc.MethodSafetyCheck, s.handleSafetyCheck)
	srv.Handle(ipc.MethodPermissionsCheck, s.handlePermissionsCheck)
	srv.Handle(ipc.MethodPermissionsOpen, s.handlePermissionsOpen)
}

// decode reads optional params; absent params leave the zero value.
func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 || string(params) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, ipc.InvalidParams(err)
	}
	return v, nil
}

func (s *Service) handleTrigger(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return ipc.TriggerResult{Outcome: string(s.trigger.Trigger(ctx))}, nil
}

func (s *Service) handleContext(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return s.session.AppContext(ctx), nil
}

func (s *Service) handleWindowKey(context.Context, json.RawMessage) (interface{}, error) {
	return ipc.WindowKeyResult{WindowKey: s.session.WindowKey()}, nil
}

func (s *Service) handlePaste(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decode[ipc.PasteParams](params)
	if err != nil {
		return nil, err
	}
	if err := s.session.Paste(ctx, p.Text); err != nil {
		s.logger.Warn("paste failed", zap.Error(err))
		return nil, rpcError(err)
	}
	return struct{}{}, nil
}

func (s *Service) handleConfirm(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	if err := s.session.Confirm(ctx); err != nil {
		s.logger.Warn("confirm failed", zap.Error(err))
		return nil, rpcError(err)
	}
	return struct{}{}, nil
}

func (s *Service) handleOverlayHidden(context.Context, json.RawMessage) (interface{}, error) {
	s.overlay.MarkHidden()
	return struct{}{}, nil
}

func (s *Service) handleHistoryGet(_ context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decode[ipc.HistoryGetParams](params)
	if err != nil {
		return nil, err
	}
	key := p.WindowKey
	if key == "" {
		key = s.session.WindowKey()
	}
	if key == "" {
		return []history.HistoryEntry{}, nil
	}
	entries, err := s.history.Get(key, p.Limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []history.HistoryEntry{}
	}
	return entries, nil
}

func (s *Service) handleHistoryAdd(_ context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decode[ipc.HistoryAddParams](params)
	if err != nil {
		return nil, err
	}
	key := p.WindowKey
	if key == "" {
		key = s.session.WindowKey()
	}
	if key == "" {
		return nil, rpcError(session.ErrNoTarget)
	}

	// Stored output is always filtered.
	entry := history.HistoryEntry{
		Query:    p.Query,
		Response: p.Response,
		Terminal: history.TerminalSnapshot{
			Cwd:           p.Cwd,
			ShellType:     p.ShellType,
			VisibleOutput: safety.Redact(p.VisibleOutput),
		},
		IsError: p.IsError,
	}
	return s.history.Add(key, entry)
}

func (s *Service) handleSafetyCheck(_ context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decode[ipc.SafetyCheckParams](params)
	if err != nil {
		return nil, err
	}
	v := safety.CheckCommand(p.Command)
	return ipc.SafetyCheckResult{Destructive: v.Destructive, Reasons: v.Reasons}, nil
}

func (s *Service) handlePermissionsCheck(context.Context, json.RawMessage) (interface{}, error) {
	return permissionsResult(s.permission.Granted()), nil
}

func (s *Service) handlePermissionsOpen(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	if s.permission.Request() {
		return permissionsResult(true), nil
	}
	if s.openSettings != nil {
		if err := s.openSettings(ctx); err != nil {
			return nil, err
		}
	}
	return permissionsResult(false), nil
}

func permissionsResult(granted bool) ipc.PermissionsResult {
	if granted {
		return ipc.PermissionsResult{Granted: true}
	}
	return ipc.PermissionsResult{Message: inject.PermissionMessage}
}

// rpcError maps injection failures onto application error codes.
func rpcError(err error) error {
	var delivery *inject.DeliveryError
	switch {
	case errors.Is(err, session.ErrNoTarget):
		return &ipc.JSONRPCError{Code: ipc.CodeNoTarget, Message: err.Error()}
	case inject.IsPermission(err):
		return &ipc.JSONRPCError{Code: ipc.CodePermission, Message: err.Error(), Data: inject.PermissionMessage}
	case errors.As(err, &delivery):
		return &ipc.JSONRPCError{Code: ipc.CodeDelivery, Message: err.Error()}
	default:
		return err
	}
}
