// Package ax wraps the macOS accessibility API behind owned element handles.
//
// Every Element returned by this package holds one reference to a native
// object and must be released with Close exactly once. Close is idempotent so
// a deferred Close after an explicit one is harmless. Retain returns an
// independent handle that must be closed separately.
package ax

import (
	"errors"
	"fmt"
	"time"
)

// Attribute names.
const (
	AttrRole                = "AXRole"
	AttrValue               = "AXValue"
	AttrTitle               = "AXTitle"
	AttrChildren            = "AXChildren"
	AttrParent              = "AXParent"
	AttrWindows             = "AXWindows"
	AttrFocusedWindow       = "AXFocusedWindow"
	AttrFocusedUIElement    = "AXFocusedUIElement"
	AttrEnhancedUI          = "AXEnhancedUserInterface"
	AttrManualAccessibility = "AXManualAccessibility"
)

// Role values.
const (
	RoleStaticText = "AXStaticText"
	RoleTextField  = "AXTextField"
	RoleTextArea   = "AXTextArea"
	RoleWebArea    = "AXWebArea"
	RoleScrollArea = "AXScrollArea"
	RoleWindow     = "AXWindow"
)

// Code is an AXError value.
type Code int

const (
	CodeSuccess              Code = 0
	CodeFailure              Code = -25200
	CodeIllegalArgument      Code = -25201
	CodeInvalidUIElement     Code = -25202
	CodeCannotComplete       Code = -25204
	CodeAttributeUnsupported Code = -25205
	CodeNotImplemented       Code = -25208
	CodeAPIDisabled          Code = -25211
	CodeNoValue              Code = -25212
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeFailure:
		return "failure"
	case CodeIllegalArgument:
		return "illegal argument"
	case CodeInvalidUIElement:
		return "invalid element"
	case CodeCannotComplete:
		return "cannot complete"
	case CodeAttributeUnsupported:
		return "attribute unsupported"
	case CodeNotImplemented:
		return "not implemented"
	case CodeAPIDisabled:
		return "api disabled"
	case CodeNoValue:
		return "no value"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// Error is a failed accessibility call.
type Error struct {
	Op   string
	Attr string
	Code Code
}

func (e *Error) Error() string {
	if e.Attr == "" {
		return fmt.Sprintf("ax %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("ax %s %s: %s", e.Op, e.Attr, e.Code)
}

var (
	// ErrUnsupported is returned on platforms without an accessibility API.
	ErrUnsupported = errors.New("accessibility api not supported on this platform")
	// ErrReleased is returned when a closed handle is used.
	ErrReleased = errors.New("accessibility element already released")
	// ErrUnexpectedType is returned when an attribute holds a value of a
	// different type than requested.
	ErrUnexpectedType = errors.New("accessibility attribute has unexpected type")
)

// CodeOf extracts the AXError code carried by err.
func CodeOf(err error) (Code, bool) {
	var axErr *Error
	if errors.As(err, &axErr) {
		return axErr.Code, true
	}
	return 0, false
}

// Element is an owned handle to one accessibility object.
type Element interface {
	// String reads a string attribute.
	String(attr string) (string, error)
	// Element reads an attribute holding a single element.
	Element(attr string) (Element, error)
	// Elements reads an attribute holding an array of elements.
	Elements(attr string) ([]Element, error)
	// SetBool writes a boolean attribute.
	SetBool(attr string, value bool) error
	// SetTimeout bounds every message sent through this handle.
	SetTimeout(d time.Duration) error
	Retain() Element
	Close()
}

// System is the entry point to an accessibility implementation.
type System interface {
	// Application opens a handle to the application with the given pid.
	Application(pid int) (Element, error)
	// Trusted reports whether this process is trusted for accessibility.
	Trusted() bool
	// RequestTrust asks the OS to prompt the user when prompt is true and
	// returns the current trust state.
	RequestTrust(prompt bool) bool
}

// Role returns the role of el, or "" when it cannot be read.
func Role(el Element) string {
	role, err := el.String(AttrRole)
	if err != nil {
		return ""
	}
	return role
}

// Children returns the child handles of el.
func Children(el Element) ([]Element, error) {
	return el.Elements(AttrChildren)
}

// CloseAll releases every handle in els.
func CloseAll(els []Element) {
	for _, el := range els {
		el.Close()
	}
}

// OpenApplication opens a handle for pid with the given messaging timeout.
// A failure to set the timeout closes the handle.
func OpenApplication(sys System, pid int, timeout time.Duration) (Element, error) {
	if pid <= 0 {
		return nil, &Error{Op: "open", Code: CodeIllegalArgument}
	}
	app, err := sys.Application(pid)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := app.SetTimeout(timeout); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}
