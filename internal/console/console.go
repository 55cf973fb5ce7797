// Package console runs the operator console: one admin command per input
// line, plain text replies.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
)

// Executor runs one console line. core.Hub implements it.
type Executor interface {
	Exec(ctx context.Context, line string) (core.AdminResult, error)
}

// Console reads commands from in and writes replies to out.
type Console struct {
	exec Executor
	in   io.Reader
	out  io.Writer
	log  *zerolog.Logger
}

// New builds a console.
func New(exec Executor, in io.Reader, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Console{exec: exec, in: in, out: out, log: logger}
}

// Run processes lines until ctx is done, input ends, or the operator quits.
// End of input stops the console only; the server keeps running.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err != nil {
					c.log.Warn().Err(err).Msg("console input failed, console stopped")
				} else {
					c.log.Info().Msg("console input closed, server keeps running")
				}
				return nil
			}

			if strings.TrimSpace(line) == "" {
				continue
			}
			res, err := c.exec.Exec(ctx, line)
			if err != nil {
				if errors.Is(err, core.ErrHubStopped) || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("console exec: %w", err)
			}
			if res.Output != "" {
				fmt.Fprintln(c.out, res.Output)
			}
			if res.Quit {
				return nil
			}
		}
	}
}
