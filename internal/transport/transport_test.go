package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeInstrument answers each CR-terminated command with reply(cmd).
// A reply of "" means stay silent.
func fakeInstrument(t *testing.T, conn net.Conn, reply func(cmd string) string) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			cmd, err := r.ReadString('\r')
			if err != nil {
				return
			}
			out := reply(strings.TrimSuffix(cmd, "\r"))
			if out == "" {
				continue
			}
			if _, err := conn.Write([]byte(out)); err != nil {
				return
			}
		}
	}()
}

func pipeConn(t *testing.T, timeout time.Duration, reply func(string) string) *Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	fakeInstrument(t, server, reply)
	return NewConn(client, Config{Timeout: timeout})
}

func TestConn_Query(t *testing.T) {
	c := pipeConn(t, time.Second, func(cmd string) string {
		if cmd == "CP" {
			return "Position is = B\r"
		}
		return "\r\n" + "ok " + cmd + "\r\n"
	})
	ctx := context.Background()

	got, err := c.Query(ctx, "CP")
	if err != nil {
		t.Fatalf("Query(CP) error = %v", err)
	}
	if got != "Position is = B" {
		t.Errorf("Query(CP) = %q", got)
	}

	// Leading blank lines and LF after CR are skipped.
	got, err = c.Query(ctx, "GO3")
	if err != nil {
		t.Fatalf("Query(GO3) error = %v", err)
	}
	if got != "ok GO3" {
		t.Errorf("Query(GO3) = %q", got)
	}
}

func TestConn_QueryTimeout(t *testing.T) {
	c := pipeConn(t, 50*time.Millisecond, func(string) string { return "" })

	start := time.Now()
	_, err := c.Query(context.Background(), "CP")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Query() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestConn_ContextDeadlineWins(t *testing.T) {
	c := pipeConn(t, 10*time.Second, func(string) string { return "" })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Query(ctx, "CP")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Query() error = %v, want ErrTimeout", err)
	}
}

func TestConn_CancelledContext(t *testing.T) {
	c := pipeConn(t, time.Second, func(string) string { return "x\r" })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Query(ctx, "CP"); !errors.Is(err, context.Canceled) {
		t.Errorf("Query() error = %v, want context.Canceled", err)
	}
}

func TestConn_Closed(t *testing.T) {
	c := pipeConn(t, time.Second, func(string) string { return "x\r" })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := c.Query(context.Background(), "CP"); !errors.Is(err, ErrClosed) {
		t.Errorf("Query() after Close error = %v, want ErrClosed", err)
	}
	if err := c.Send(context.Background(), "GO1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
}

func TestConn_PeerHangsUp(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(client, Config{Timeout: time.Second})

	go func() {
		r := bufio.NewReader(server)
		_, _ = r.ReadString('\r')
		server.Close()
	}()

	if _, err := c.Query(context.Background(), "CP"); !errors.Is(err, ErrClosed) {
		t.Errorf("Query() error = %v, want ErrClosed", err)
	}
}

func TestConn_LineTooLong(t *testing.T) {
	c := pipeConn(t, time.Second, func(string) string { return strings.Repeat("x", maxLineLength+10) + "\r" })

	if _, err := c.Query(context.Background(), "CP"); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("Query() error = %v, want ErrLineTooLong", err)
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			cmd, err := r.ReadString('\r')
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("echo " + strings.TrimSpace(cmd) + "\r"))
		}
	}()

	c, err := Open(context.Background(), Config{Type: TypeTCP, Address: ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	got, err := c.Query(context.Background(), "VR")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "echo VR" {
		t.Errorf("Query() = %q", got)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(context.Background(), Config{Type: "usb"}); err == nil {
		t.Error("Open(usb) succeeded")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := DialTCP(context.Background(), Config{Address: addr, Timeout: 200 * time.Millisecond}); err == nil {
		t.Error("DialTCP() to closed port succeeded")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BaudRate != 9600 || cfg.DataBits != 8 || cfg.StopBits != 1 || cfg.Parity != "N" {
		t.Errorf("serial defaults = %+v", cfg)
	}
	if cfg.Timeout != defaultTimeout || cfg.Terminator != '\r' {
		t.Errorf("timeout/terminator defaults = %v %q", cfg.Timeout, cfg.Terminator)
	}
}
