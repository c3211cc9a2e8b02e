// Package ipc carries newline-delimited JSON-RPC 2.0 between the cmdk
// daemon and its clients (the overlay and the command line) over a local
// socket.
package ipc

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only protocol version spoken.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes, plus the application range used by cmdk.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeNoTarget   = -32001
	CodePermission = -32002
	CodeDelivery   = -32003
)

// Methods served by the daemon.
const (
	MethodHotkeyTrigger    = "hotkey.trigger"
	MethodContextGet       = "context.get"
	MethodWindowKeyGet     = "windowKey.get"
	MethodInjectPaste      = "inject.paste"
	MethodInjectConfirm    = "inject.confirm"
	MethodOverlayHidden    = "overlay.hidden"
	MethodHistoryGet       = "history.get"
	MethodHistoryAdd       = "history.add"
	MethodSafetyCheck      = "safety.check"
	MethodPermissionsCheck = "permissions.check"
	MethodPermissionsOpen  = "permissions.open"
)

// Notifications broadcast by the daemon.
const (
	NotificationOverlayToggle = "overlay.toggle"
	NotificationOverlayFocus  = "overlay.focus"
)

type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// incomingRequest is a request as read off the wire, params left raw for
// the handler to decode.
type incomingRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCNotification represents a JSON-RPC 2.0 notification (no ID).
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// InvalidParams wraps a params decoding failure.
func InvalidParams(err error) *JSONRPCError {
	return &JSONRPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
}

// TriggerResult reports what a hotkey press did.
type TriggerResult struct {
	Outcome string `json:"outcome"`
}

// OverlayToggleParams is sent with the overlay.toggle notification.
type OverlayToggleParams struct {
	Visible   bool   `json:"visible"`
	WindowKey string `json:"window_key,omitempty"`
}

// OverlayFocusParams asks the overlay to give up (false) or take back
// (true) keyboard focus around an injection.
type OverlayFocusParams struct {
	Focused bool `json:"focused"`
}

type WindowKeyResult struct {
	WindowKey string `json:"window_key,omitempty"`
}

type PasteParams struct {
	Text string `json:"text"`
}

type HistoryGetParams struct {
	// WindowKey defaults to the key of the most recent trigger.
	WindowKey string `json:"window_key,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type HistoryAddParams struct {
	WindowKey     string `json:"window_key,omitempty"`
	Query         string `json:"query"`
	Response      string `json:"response"`
	Cwd           string `json:"cwd,omitempty"`
	ShellType     string `json:"shell_type,omitempty"`
	VisibleOutput string `json:"visible_output,omitempty"`
	IsError       bool   `json:"is_error,omitempty"`
}

type SafetyCheckParams struct {
	Command string `json:"command"`
}

type SafetyCheckResult struct {
	Destructive bool     `json:"destructive"`
	Reasons     []string `json:"reasons,omitempty"`
}

type PermissionsResult struct {
	Granted bool   `json:"granted"`
	Message string `json:"message,omitempty"`
}
