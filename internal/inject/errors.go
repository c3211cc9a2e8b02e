package inject

import (
	"errors"
	"fmt"

	"github.com/atinylittleshell/cmdk/internal/procinfo"
)

// PermissionMessage tells the user how to grant the missing permission.
const PermissionMessage = "enable cmdk in System Settings → Privacy & Security → Accessibility"

// PermissionError means the process may not post synthetic input. It stops
// the fallback chain.
type PermissionError struct{}

func (*PermissionError) Error() string {
	return "accessibility permission not granted: " + PermissionMessage
}

// DeliveryError means no strategy could deliver to the target.
type DeliveryError struct {
	Target procinfo.Identity
	Err    error
}

func (e *DeliveryError) Error() string {
	name := e.Target.BundleID
	if name == "" {
		name = fmt.Sprintf("pid %d", e.Target.PID)
	}
	return fmt.Sprintf("failed to deliver input to %s: %v", name, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

var errInvalidTarget = errors.New("invalid target pid")

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var perm *PermissionError
	return errors.As(err, &perm)
}
