// Package transport provides the Unix-domain-socket GraphicsTransport used
// by the cmd/rdp-bridge entrypoint. The RDP graphics channel itself is out
// of scope for this module; this package only gets framed PDUs from the
// Multiplexer onto a byte stream a real RDP server process can consume,
// grounded in the teacher's cursor_socket.go/input.go accept-loop idiom.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/mux"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// writeTimeout bounds each frame write to the currently connected client.
// A stuck or dead peer must not be allowed to block the multiplexer
// indefinitely.
const writeTimeout = 2 * time.Second

// SocketTransport is a mux.Transport that writes each Item as a
// length-prefixed frame (u32 little-endian length, then payload) to
// whichever client is currently connected on its Unix socket. With no
// client connected, writes are dropped: there is nothing downstream to
// receive them, and the Multiplexer must not block on a missing peer.
type SocketTransport struct {
	path     string
	log      *slog.Logger
	listener net.Listener

	// OnConnect, if set, is called synchronously from the accept loop
	// each time a new client connection replaces the prior one (including
	// the first). A fresh client has no prior graphics state, so callers
	// typically use this to force the orchestrator's next tick to a
	// keyframe. Must not block.
	OnConnect func()

	mu      sync.Mutex
	conn    net.Conn
	running bool
}

// New builds a SocketTransport bound to path. Listen must be called
// before Write will have anywhere to send.
func New(path string, log *slog.Logger) *SocketTransport {
	if log == nil {
		log = slog.Default()
	}
	return &SocketTransport{path: path, log: log}
}

// Listen creates the Unix socket and starts accepting connections in the
// background until ctx is canceled. Only the most recently accepted
// connection receives writes; a prior connection is closed when a new
// one replaces it.
func (t *SocketTransport) Listen(ctx context.Context) error {
	os.Remove(t.path)
	ln, err := net.Listen("unix", t.path)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", t.path, err)
	}
	if err := os.Chmod(t.path, 0o660); err != nil {
		t.log.Warn("transport: chmod socket failed", "path", t.path, "error", err)
	}
	t.listener = ln
	t.running = true

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		ln.Close()
	}()

	go t.acceptLoop()
	return nil
}

func (t *SocketTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.mu.Lock()
			running := t.running
			t.mu.Unlock()
			if !running {
				return
			}
			t.log.Debug("transport: accept error", "error", err)
			continue
		}

		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.conn = conn
		t.mu.Unlock()
		t.log.Info("transport: graphics client connected")
		if t.OnConnect != nil {
			t.OnConnect()
		}
	}
}

// Write implements mux.Transport. It applies a write deadline so a stuck
// or dead peer cannot block the caller indefinitely; on any write failure
// (including a deadline timeout) the connection is torn down and a
// FatalError is returned so the multiplexer's drain loop stops instead of
// silently discarding frames.
func (t *SocketTransport) Write(ctx context.Context, item mux.Item) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		t.dropConn(conn)
		return rdperrors.Fatal("transport", fmt.Errorf("set write deadline: %w", err))
	}

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(item.Payload)))
	if _, err := conn.Write(hdr[:]); err != nil {
		t.dropConn(conn)
		return rdperrors.Fatal("transport", fmt.Errorf("write frame header: %w", err))
	}
	if _, err := conn.Write(item.Payload); err != nil {
		t.dropConn(conn)
		return rdperrors.Fatal("transport", fmt.Errorf("write frame payload: %w", err))
	}
	return nil
}

func (t *SocketTransport) dropConn(conn net.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()
}

// Close stops accepting new connections and closes the current client.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	t.running = false
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}
