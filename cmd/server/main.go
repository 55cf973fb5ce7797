package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/app"
	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
)

type flags struct {
	configPath  string
	addr        string
	maxClients  int
	banLog      string
	auditDB     string
	monitorAddr string
	logLevel    string
	noConsole   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "wirechat-server [port]",
		Short:         "Single room TCP chat server with an operator console",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to config file (default ./config.yaml)")
	fs.StringVar(&f.addr, "addr", "", "chat listen address")
	fs.IntVar(&f.maxClients, "max-clients", 0, "maximum number of connected clients")
	fs.StringVar(&f.banLog, "ban-log", "", "path to the ban log")
	fs.StringVar(&f.auditDB, "audit-db", "", "path to the sqlite ban audit database")
	fs.StringVar(&f.monitorAddr, "monitor-addr", "", "monitor HTTP listen address")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&f.noConsole, "no-console", false, "disable the operator console")

	return cmd
}

func run(cmd *cobra.Command, f flags, args []string) error {
	bootLogger := log.NewWithWriter("info", os.Stderr)

	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.UpdateFrom(config.Config{
		Addr:        f.addr,
		MaxClients:  f.maxClients,
		BanLogPath:  f.banLog,
		AuditDBPath: f.auditDB,
		MonitorAddr: f.monitorAddr,
		LogLevel:    f.logLevel,
	})
	if f.noConsole {
		cfg.Console = false
	}
	if len(args) == 1 {
		addr, err := withPort(cfg.Addr, args[0])
		if err != nil {
			return err
		}
		cfg.Addr = addr
	}

	logger := log.NewWithWriter(cfg.LogLevel, os.Stderr)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger, os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger.Info().Str("addr", application.Addr()).Int("max_clients", cfg.MaxClients).Msg("starting wirechat server")
	if cfg.Console {
		fmt.Fprintln(cmd.OutOrStdout(), core.HelpText)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	return nil
}

// withPort replaces the port of addr.
func withPort(addr, port string) (string, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(n)), nil
}
