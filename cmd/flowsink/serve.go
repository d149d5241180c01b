package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rugwirobaker/flowsink/internal/command"
	"github.com/rugwirobaker/flowsink/internal/config"
	"github.com/rugwirobaker/flowsink/internal/delegate"
	"github.com/rugwirobaker/flowsink/internal/flag"
	"github.com/rugwirobaker/flowsink/internal/server"
)

const (
	defaultSSHAddr        = ":2222"
	defaultSSHHostKeyPath = "/etc/flowsink/ssh/host_key"
	defaultShell          = "/bin/sh"
)

const defaultConfigFile = "/etc/flowsink/flowsink.conf"

func NewServeCommand() *cobra.Command {
	const (
		longDesc  = "Runs the flowsink daemon, accepting connections and bridging each one to a sink delegate."
		shortDesc = "Runs the flowsink daemon"
	)
	cmd := command.New("serve", shortDesc, longDesc, runServe)

	flag.Add(cmd,
		flag.String{
			Name:        "config",
			Description: "Path to the configuration file",
			Default:     defaultConfigFile,
		},
		flag.String{
			Name:        "socket-file",
			Description: "Path to the unix socket to listen on",
		},
		flag.String{
			Name:        "delegate",
			Description: "Which delegate to run: stream, vsock, ssh (or terminal)",
		},
		flag.Int{
			Name:        "vsock-cid",
			Description: "Vsock CID to dial when delegate=vsock",
		},
		flag.Int{
			Name:        "vsock-port",
			Description: "Vsock port to dial when delegate=vsock",
		},
		flag.String{
			Name:        "log-format",
			Description: "Log format: text or json",
		},
		flag.Bool{
			Name:        "log-timestamp",
			Description: "Include a timestamp in log lines",
		},
		flag.String{
			Name:        "log-path",
			Description: "Rotate logs to this file instead of stderr",
		},
	)

	return cmd
}

func runServe(ctx context.Context) error {
	configFile := flag.GetString(ctx, "config")

	cfg, err := config.FromFile(configFile)
	if err != nil {
		cfg = config.Default()
		slog.Warn("serve: no config file, using defaults", "path", configFile, "error", err)
	}
	cfg.OverrideWithFlags(ctx)

	if err := configureLogger(cfg); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	switch cfg.Delegate {
	case "ssh", "terminal":
		srv, err := delegate.NewTerminalServer(defaultSSHAddr, defaultSSHHostKeyPath, defaultShell, cfg.InitialWritable)
		if err != nil {
			return fmt.Errorf("build ssh server: %w", err)
		}
		slog.Info("serve: listening", "addr", defaultSSHAddr, "delegate", cfg.Delegate)
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ssh server: %w", err)
		}
		return nil
	default:
		if _, err := os.Stat(cfg.SocketFilePath); err == nil {
			os.Remove(cfg.SocketFilePath)
		}

		listener, err := net.Listen("unix", cfg.SocketFilePath)
		if err != nil {
			return fmt.Errorf("listen on socket: %w", err)
		}
		defer listener.Close()
		go func() {
			<-ctx.Done()
			_ = listener.Close()
		}()

		slog.Info("serve: listening", "socket", cfg.SocketFilePath, "delegate", cfg.Delegate)

		srv := server.New(listener, cfg)
		return srv.Run(ctx)
	}
}

func configureLogger(c *config.Config) error {
	if c.Log.Debug {
		server.LogLevel.Set(slog.LevelDebug)
	} else {
		server.LogLevel.Set(slog.LevelInfo)
	}

	opts := slog.HandlerOptions{Level: &server.LogLevel}
	if !c.Log.Timestamp {
		opts.ReplaceAttr = removeTime
	}

	var out io.Writer = os.Stderr
	if c.Log.Path != nil {
		out = &lumberjack.Logger{
			Filename:   *c.Log.Path,
			MaxSize:    64,
			MaxBackups: 3,
			MaxAge:     28,
		}
	}

	var handler slog.Handler
	switch c.Log.Format {
	case "text", "":
		handler = slog.NewTextHandler(out, &opts)
	case "json":
		handler = slog.NewJSONHandler(out, &opts)
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func removeTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
