package daemon

import (
	"context"
	"errors"

	"github.com/atinylittleshell/cmdk/internal/config"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"go.uber.org/zap"
)

// ErrNoFrontmost is returned when no application is frontmost.
var ErrNoFrontmost = errors.New("no frontmost application")

// Inspection is everything the capture pipeline sees for one application,
// gathered without a running daemon.
type Inspection struct {
	Capture           detect.Capture      `json:"capture"`
	Shell             procinfo.ShellState `json:"shell"`
	Context           *detect.AppContext  `json:"context"`
	PermissionGranted bool                `json:"permission_granted"`
}

// Inspect runs the fast capture and full detection against pid, or against
// the frontmost application when pid is not positive.
func Inspect(ctx context.Context, cfg *config.Config, pid int, logger *zap.Logger) (*Inspection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := newComponents(cfg, logger)

	if pid <= 0 {
		front, ok := c.workspace.FrontmostPID()
		if !ok {
			return nil, ErrNoFrontmost
		}
		pid = front
	}
	logger.Debug("inspecting application", zap.Int("pid", pid))

	return &Inspection{
		Capture:           c.detector.Capture(ctx, pid),
		Shell:             c.resolver.ShellState(pid),
		Context:           c.detector.DetectFull(ctx, pid),
		PermissionGranted: c.permission.Granted(),
	}, nil
}
