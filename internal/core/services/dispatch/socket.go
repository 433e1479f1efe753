package dispatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// DefaultAddr is where the learner connects in socket mode.
const DefaultAddr = "0.0.0.0:4444"

const maxLineLen = 64 * 1024

// ServeConn answers line-delimited queries on rw until the peer closes it.
// A nil return means the learner disconnected.
func (d *Dispatcher) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	sc := bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	w := bufio.NewWriter(rw)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		d.logger.Debug("Query received", "query", line)

		out := d.handle(ctx, line)
		if out.reply != "" {
			if _, err := w.WriteString(out.reply + "\n"); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
			d.logger.Debug("Response sent", "response", out.reply)
		}
		if out.err != nil {
			return out.err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("read query: %w", err)
	}
	return nil
}

// ListenAndServe accepts exactly one learner connection on addr and serves
// it. The listener closes as soon as the connection is accepted.
func (d *Dispatcher) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return d.Serve(ctx, ln)
}

// Serve accepts one connection from ln, then closes ln.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	d.logger.Info("Waiting for learner", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		stop()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("accept: %w", err)
	}
	stop()
	defer conn.Close()

	d.logger.Info("Connected by", "remote", conn.RemoteAddr().String())
	closeConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer closeConn()

	err = d.ServeConn(ctx, conn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
