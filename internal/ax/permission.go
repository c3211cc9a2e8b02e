package ax

import (
	"go.uber.org/zap"
)

// PermissionChecker decides whether this process may drive other
// applications through accessibility and synthetic input.
type PermissionChecker struct {
	system   System
	probePID func() (int, bool)
	logger   *zap.Logger
}

// NewPermissionChecker builds a checker. probePID returns the pid of an
// always-running external application (the Dock) used for a live probe.
func NewPermissionChecker(system System, probePID func() (int, bool), logger *zap.Logger) *PermissionChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionChecker{
		system:   system,
		probePID: probePID,
		logger:   logger,
	}
}

// Granted reports whether permission is present. The trusted flag is
// consulted first; when it says no, a cross-process attribute read decides.
// Only CodeAPIDisabled from that probe counts as a definite denial, every
// other outcome is treated as granted.
func (p *PermissionChecker) Granted() bool {
	if p.system.Trusted() {
		return true
	}

	pid, ok := 0, false
	if p.probePID != nil {
		pid, ok = p.probePID()
	}
	if !ok {
		p.logger.Debug("permission probe target not found")
		return false
	}

	app, err := p.system.Application(pid)
	if err != nil {
		p.logger.Debug("permission probe could not open target", zap.Int("pid", pid), zap.Error(err))
		return false
	}
	defer app.Close()

	_, err = app.String(AttrRole)
	if code, ok := CodeOf(err); ok && code == CodeAPIDisabled {
		p.logger.Debug("permission probe denied", zap.Int("pid", pid))
		return false
	}
	p.logger.Debug("permission probe allowed", zap.Int("pid", pid), zap.NamedError("probeError", err))
	return true
}

// Request asks the OS to show its accessibility prompt if needed.
func (p *PermissionChecker) Request() bool {
	return p.system.RequestTrust(true)
}
