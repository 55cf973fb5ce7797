package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/lineclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:          "wirechat-client <host> <port> [name]",
		Short:        "Terminal client for the wirechat TCP server",
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := lineclient.DefaultName
			if len(args) == 3 {
				name = args[2]
			}
			return run(cmd, args[0], args[1], name, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "dial-timeout", 5*time.Second, "connection timeout")
	return cmd
}

func run(cmd *cobra.Command, host, port, name string, timeout time.Duration) error {
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	err = lineclient.New(conn, name, os.Stdin, cmd.OutOrStdout()).Run(ctx)
	if errors.Is(err, lineclient.ErrBanned) {
		return nil
	}
	return err
}
