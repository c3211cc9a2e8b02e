package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/ax"
	"github.com/atinylittleshell/cmdk/internal/axtext"
	"github.com/atinylittleshell/cmdk/internal/config"
	"github.com/atinylittleshell/cmdk/internal/console"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/hotkey"
	"github.com/atinylittleshell/cmdk/internal/inject"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/atinylittleshell/cmdk/internal/platform"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"github.com/atinylittleshell/cmdk/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options locates the daemon's files and supplies its settings.
type Options struct {
	Config      *config.Config
	ConfigPath  string
	SocketPath  string
	HistoryPath string
	// Level, when set, follows log_level across config reloads.
	Level *zap.AtomicLevel
}

// Daemon owns every long-lived component.
type Daemon struct {
	server     *ipc.Server
	history    *history.HistoryManager
	watcher    *config.Watcher
	socketPath string
	logger     *zap.Logger
}

// components is the capture pipeline shared by the daemon and one-off
// inspection.
type components struct {
	catalog    *apps.Catalog
	workspace  platform.Workspace
	resolver   *procinfo.Resolver
	detector   *detect.Detector
	permission *ax.PermissionChecker
}

func newComponents(cfg *config.Config, logger *zap.Logger) *components {
	catalog := apps.NewCatalog(cfg.Apps)
	system := ax.NewSystem()
	workspace := platform.NewWorkspace()

	var resolverOpts []procinfo.Option
	if cfg.DefaultShell != "" {
		resolverOpts = append(resolverOpts, procinfo.WithDefaultShell(cfg.DefaultShell))
	}
	resolver := procinfo.NewResolver(procinfo.NewSource(logger), workspace, logger, resolverOpts...)

	activator := axtext.NewActivator(system, axtext.NewActivationCache(), logger)
	reader := axtext.NewReader(system, activator, logger, axtext.WithLimits(cfg.TextLimits()))
	consoleDetector := console.NewDetector(system, axtext.DefaultTimeout, logger)
	detector := detect.NewDetector(resolver, reader, consoleDetector, catalog, logger,
		detect.WithTimeouts(cfg.Detection.DetectTimeout.Std(), cfg.Detection.CaptureTimeout.Std()))

	permission := ax.NewPermissionChecker(system, func() (int, bool) {
		return workspace.PIDForBundle(apps.BundleDock)
	}, logger)

	return &components{
		catalog:    catalog,
		workspace:  workspace,
		resolver:   resolver,
		detector:   detector,
		permission: permission,
	}
}

// New builds the component graph for the current platform.
func New(opts Options, logger *zap.Logger) (*Daemon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := newComponents(cfg, logger)

	server := ipc.NewServer(logger)

	var sess *session.Session
	overlay := NewOverlay(server, func() string { return sess.WindowKey() }, logger)

	engine := inject.NewEngine(c.workspace, platform.NewKeyboard(), platform.NewOSAScript(logger), c.permission, logger,
		inject.WithCatalog(c.catalog),
		inject.WithConfig(cfg.InjectSettings()),
		inject.WithFocusController(overlay))
	sess = session.New(c.detector, engine, logger)

	handler := hotkey.NewHandler(hotkey.NewDebouncer(cfg.Hotkey.Debounce.Std(), nil), c.workspace, c.detector, sess, overlay, os.Getpid(), logger)

	hist, err := history.NewHistoryManager(opts.HistoryPath, logger,
		history.WithLimits(cfg.History.MaxEntriesPerKey, cfg.History.MaxKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	NewService(handler, sess, hist, c.permission, platform.OpenAccessibilitySettings, overlay, logger).Register(server)

	d := &Daemon{
		server:     server,
		history:    hist,
		socketPath: opts.SocketPath,
		logger:     logger,
	}
	if opts.ConfigPath != "" {
		d.watcher = config.NewWatcher(opts.ConfigPath, config.NewLoader(logger), func(r *config.LoadResult) {
			applyReload(r.Config, opts.Level, logger)
		}, logger)
	}
	return d, nil
}

// applyReload applies the settings that can change without a restart.
func applyReload(cfg *config.Config, level *zap.AtomicLevel, logger *zap.Logger) {
	if level != nil && cfg.LogLevel != "" {
		if l, err := zapcore.ParseLevel(cfg.LogLevel); err == nil && l != level.Level() {
			level.SetLevel(l)
			logger.Info("log level changed", zap.String("level", l.String()))
		}
	}
	logger.Info("config reloaded; settings other than log_level apply after restart")
}

// Run serves until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	defer func() {
		if err := d.history.Close(); err != nil {
			d.logger.Debug("error closing history", zap.Error(err))
		}
	}()

	ln, err := ipc.Listen(d.socketPath)
	if err != nil {
		return err
	}

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer d.watcher.Stop()
		}
	}

	d.logger.Info("cmdk daemon started", zap.String("socket", d.socketPath))
	err = d.server.Serve(ctx, ln)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info("cmdk daemon stopped")
	return err
}
