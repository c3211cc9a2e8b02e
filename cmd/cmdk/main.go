package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atinylittleshell/cmdk/internal/config"
	"github.com/atinylittleshell/cmdk/internal/core"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/atinylittleshell/cmdk/internal/render"
	"github.com/atinylittleshell/cmdk/internal/styles"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

const defaultCallTimeout = 5 * time.Second

// cli carries the state shared by every subcommand.
type cli struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	socketPath string
	jsonOut    bool
	timeout    time.Duration

	cfg    *config.Config
	level  zap.AtomicLevel
	logger *zap.Logger
}

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr}
	if err := c.rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR("error: "+err.Error()))
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmdk",
		Short: "cmdk - command palette for whatever app you are in",
		Long: `cmdk captures the context of the frontmost application when its hotkey
fires, hands that context to the overlay, and types the chosen command back
into the application the user was working in.

Run "cmdk serve" to start the daemon; the other commands talk to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.cmdk/config.yaml)")
	flags.StringVar(&c.socketPath, "socket", "", "daemon socket (default from config or ~/.cmdk/cmdk.sock)")
	flags.BoolVar(&c.jsonOut, "json", false, "print JSON (default when stdout is not a terminal)")
	flags.DurationVar(&c.timeout, "timeout", defaultCallTimeout, "how long to wait for the daemon")

	root.AddCommand(
		c.serveCommand(),
		c.triggerCommand(),
		c.contextCommand(),
		c.keyCommand(),
		c.pasteCommand(),
		c.confirmCommand(),
		c.historyCommand(),
		c.permissionsCommand(),
		c.checkCommand(),
		c.inspectCommand(),
		c.versionCommand(),
	)
	return root
}

// setup loads the config and builds the logger before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command) error {
	if c.configPath == "" {
		c.configPath = core.ConfigFile()
	}
	result, err := config.NewLoader(nil).LoadFromFile(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = result.Config

	c.logger, c.level, err = c.initializeLogger()
	if err != nil {
		return err
	}
	c.logger.Info("-------- cmdk --------", zap.Strings("args", os.Args), zap.String("command", cmd.Name()))

	for _, e := range result.Errors {
		c.logger.Warn("config error", zap.String("path", c.configPath), zap.Error(e))
		fmt.Fprintln(c.errOut, styles.WARNING("config: "+e.Error()))
	}

	if !cmd.Flags().Changed("json") {
		if f, ok := c.out.(*os.File); ok {
			c.jsonOut = !term.IsTerminal(int(f.Fd()))
		}
	}
	return nil
}

func (c *cli) initializeLogger() (*zap.Logger, zap.AtomicLevel, error) {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if c.cfg.LogLevel != "" {
		if l, err := zapcore.ParseLevel(c.cfg.LogLevel); err == nil {
			logLevel.SetLevel(l)
		}
	}
	if BUILD_VERSION == "dev" {
		logLevel.SetLevel(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, logLevel, nil
}

func (c *cli) socket() string {
	switch {
	case c.socketPath != "":
		return c.socketPath
	case c.cfg != nil && c.cfg.SocketPath != "":
		return c.cfg.SocketPath
	default:
		return core.SocketFile()
	}
}

func (c *cli) printer() *render.Printer {
	width := render.DefaultWidth
	if f, ok := c.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return render.New(c.out, render.WithJSON(c.jsonOut), render.WithWidth(width))
}

// call sends one request to the daemon.
func (c *cli) call(ctx context.Context, method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := ipc.Dial(ctx, c.socket(), c.logger)
	if err != nil {
		fmt.Fprintln(c.errOut, styles.HINT("is `cmdk serve` running?"))
		return err
	}
	defer client.Close()

	err = client.Call(ctx, method, params, result)
	var rpcErr *ipc.JSONRPCError
	if errors.As(err, &rpcErr) {
		c.logger.Debug("daemon returned an error", zap.String("method", method), zap.Int("code", rpcErr.Code))
	}
	return err
}
