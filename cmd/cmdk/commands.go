package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atinylittleshell/cmdk/internal/core"
	"github.com/atinylittleshell/cmdk/internal/daemon"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/atinylittleshell/cmdk/internal/safety"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon that captures context and injects commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(daemon.Options{
				Config:      c.cfg,
				ConfigPath:  c.configPath,
				SocketPath:  c.socket(),
				HistoryPath: core.HistoryFile(),
				Level:       &c.level,
			}, c.logger)
			if err != nil {
				return err
			}
			return d.Run(ctx)
		},
	}
}

func (c *cli) triggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Act as if the hotkey was pressed",
		Long: `Captures the frontmost application and toggles the overlay, exactly like
the global hotkey. Bind this to a key in your hotkey tool of choice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ipc.TriggerResult
			if err := c.call(cmd.Context(), ipc.MethodHotkeyTrigger, nil, &result); err != nil {
				return err
			}
			return c.printer().Outcome(result)
		},
	}
}

func (c *cli) contextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Print the context of the application captured by the last trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var app *detect.AppContext
			if err := c.call(cmd.Context(), ipc.MethodContextGet, nil, &app); err != nil {
				return err
			}
			return c.printer().Context(app)
		},
	}
}

func (c *cli) keyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the window key of the last trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ipc.WindowKeyResult
			if err := c.call(cmd.Context(), ipc.MethodWindowKeyGet, nil, &result); err != nil {
				return err
			}
			return c.printer().WindowKey(result.WindowKey)
		},
	}
}

func (c *cli) pasteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paste [text...]",
		Short: "Type text into the application captured by the last trigger",
		Long: `Pastes text into the captured application without pressing Return.
Pass "-" to read the text from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}
			return c.call(cmd.Context(), ipc.MethodInjectPaste, ipc.PasteParams{Text: text}, nil)
		},
	}
}

func (c *cli) confirmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Press Return in the application captured by the last trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), ipc.MethodInjectConfirm, nil, nil)
		},
	}
}

func (c *cli) historyCommand() *cobra.Command {
	var params ipc.HistoryGetParams
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print past queries for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []history.HistoryEntry
			if err := c.call(cmd.Context(), ipc.MethodHistoryGet, params, &entries); err != nil {
				return err
			}
			return c.printer().History(entries)
		},
	}
	cmd.Flags().StringVar(&params.WindowKey, "key", "", "window key (default: the last trigger's)")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "most recent entries to print (0 for all)")
	return cmd
}

func (c *cli) permissionsCommand() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Check the accessibility permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method := ipc.MethodPermissionsCheck
			if open {
				method = ipc.MethodPermissionsOpen
			}
			var result ipc.PermissionsResult
			if err := c.call(cmd.Context(), method, nil, &result); err != nil {
				return err
			}
			return c.printer().Permissions(result)
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "prompt for the permission and open System Settings")
	return cmd
}

func (c *cli) checkCommand() *cobra.Command {
	var redact bool
	cmd := &cobra.Command{
		Use:   "check [command...]",
		Short: "Flag destructive shell commands, or redact secrets from stdin",
		Args: func(cmd *cobra.Command, args []string) error {
			if redact {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if redact {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				_, err = io.WriteString(c.out, safety.Redact(string(data)))
				return err
			}
			command := strings.Join(args, " ")
			return c.printer().Verdict(command, safety.CheckCommand(command))
		},
	}
	cmd.Flags().BoolVar(&redact, "redact", false, "print stdin with secrets replaced")
	return cmd
}

func (c *cli) inspectCommand() *cobra.Command {
	var (
		pid   int
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run the capture pipeline locally against one application",
		Long: `Runs the same capture and detection the daemon runs on a trigger, without
a daemon. Without --pid the frontmost application is inspected after --delay,
which leaves time to switch to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if pid <= 0 && delay > 0 {
				c.logger.Debug("waiting before inspecting frontmost application", zap.Duration("delay", delay))
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}

			in, err := daemon.Inspect(ctx, c.cfg, pid, c.logger)
			if err != nil {
				return err
			}
			return c.printer().Inspection(in)
		},
	}
	cmd.Flags().IntVar(&pid, "pid", 0, "application pid (default: the frontmost application)")
	cmd.Flags().DurationVar(&delay, "delay", 3*time.Second, "wait before reading the frontmost application")
	return cmd
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(c.out, BUILD_VERSION)
			return err
		},
	}
}
