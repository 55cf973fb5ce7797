package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Printf("tcp_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:4242", "chat server address")
	sender := flag.String("sender", "smoke-a", "name of the sending client")
	receiver := flag.String("receiver", "smoke-b", "name of the receiving client")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dialer := net.Dialer{}
	recv, err := dialer.DialContext(ctx, "tcp", *addr)
	if err != nil {
		return fmt.Errorf("dial receiver: %w", err)
	}
	defer recv.Close()

	deadline, _ := ctx.Deadline()
	_ = recv.SetDeadline(deadline)
	if _, err := fmt.Fprintf(recv, "%s\n", *receiver); err != nil {
		return fmt.Errorf("announce receiver: %w", err)
	}

	send, err := dialer.DialContext(ctx, "tcp", *addr)
	if err != nil {
		return fmt.Errorf("dial sender: %w", err)
	}
	defer send.Close()
	_ = send.SetDeadline(deadline)

	if _, err := fmt.Fprintf(send, "%s\n", *sender); err != nil {
		return fmt.Errorf("announce sender: %w", err)
	}

	r := bufio.NewReader(recv)
	joined := fmt.Sprintf("%s joined the chat.", *sender)
	if err := waitFor(r, joined); err != nil {
		return err
	}
	fmt.Printf("Join: %s\n", joined)

	if _, err := fmt.Fprintf(send, "%s\n", *text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}

	want := fmt.Sprintf("%s > %s", *sender, *text)
	if err := waitFor(r, want); err != nil {
		return err
	}
	fmt.Printf("Relayed: %s\n", want)
	return nil
}

func waitFor(r *bufio.Reader, want string) error {
	for {
		line, err := r.ReadString('\n')
		if strings.TrimRight(line, "\r\n") == want {
			return nil
		}
		if strings.HasPrefix(line, "BANNED") || strings.HasPrefix(line, "ERROR") {
			return fmt.Errorf("server refused the client: %s", strings.TrimSpace(line))
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return fmt.Errorf("timed out waiting for %q", want)
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}
