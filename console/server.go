package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Server owns the guest's serial console. The replica side of its PTY
// pair is handed to the hypervisor as the serial device; everything
// the guest writes is appended to the serial log and mirrored to at
// most one client attached on a Unix socket.
type Server struct {
	primary *os.File
	replica *os.File
	ln      net.Listener
	log     *os.File

	mu     sync.Mutex
	client net.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewServer opens the PTY pair, the listening socket and the serial
// log. A stale socket from a previous run is removed first.
func NewServer(sockPath, logPath string) (*Server, error) {
	primary, replica, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open console pty: %w", err)
	}
	// Raw replica: the serial stream must pass through untouched, the
	// host tty layer would otherwise echo and rewrite line endings on
	// top of what the guest already does.
	if _, err := term.MakeRaw(int(replica.Fd())); err != nil {
		_ = primary.Close()
		_ = replica.Close()
		return nil, fmt.Errorf("raw console pty: %w", err)
	}

	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		_ = primary.Close()
		_ = replica.Close()
		return nil, fmt.Errorf("listen %s: %w", sockPath, err)
	}

	log, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		_ = ln.Close()
		_ = primary.Close()
		_ = replica.Close()
		return nil, fmt.Errorf("open serial log: %w", err)
	}

	return &Server{primary: primary, replica: replica, ln: ln, log: log}, nil
}

// TTY returns the replica end for the hypervisor's serial port.
func (s *Server) TTY() *os.File { return s.replica }

// Serve pumps console output and accepts clients until ctx is
// cancelled or the guest's stream ends.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	g := new(errgroup.Group)
	g.Go(func() error {
		// Once the guest's stream ends the session is over, tear the
		// listener down so Serve returns instead of idling.
		defer func() { _ = s.Close() }()
		return s.pumpOutput()
	})
	g.Go(s.acceptClients)
	return g.Wait()
}

// Close shuts the listener, the PTY pair, the serial log and any
// attached client. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		client := s.client
		s.client = nil
		s.mu.Unlock()
		if client != nil {
			_ = client.Close()
		}
		s.closeErr = errors.Join(s.ln.Close(), s.primary.Close(), s.replica.Close(), s.log.Close())
	})
	return s.closeErr
}

// pumpOutput fans guest output out to the serial log and the attached
// client. A client write failure only drops that client.
func (s *Server) pumpOutput() error {
	buf := make([]byte, 32*1024) //nolint:mnd
	for {
		n, err := s.primary.Read(buf)
		if n > 0 {
			_, _ = s.log.Write(buf[:n])
			s.mu.Lock()
			client := s.client
			s.mu.Unlock()
			if client != nil {
				if _, werr := client.Write(buf[:n]); werr != nil {
					s.dropClient(client)
				}
			}
		}
		if err != nil {
			if isCleanExit(err) {
				return nil
			}
			return fmt.Errorf("console read: %w", err)
		}
	}
}

// acceptClients admits one client at a time. Latecomers get told the
// console is busy rather than a silent hang.
func (s *Server) acceptClients() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("console accept: %w", err)
		}

		s.mu.Lock()
		busy := s.client != nil
		if !busy {
			s.client = conn
		}
		s.mu.Unlock()

		if busy {
			_, _ = conn.Write([]byte("console busy: another client is attached\r\n"))
			_ = conn.Close()
			continue
		}
		go s.pumpInput(conn)
	}
}

func (s *Server) pumpInput(conn net.Conn) {
	_, _ = io.Copy(s.primary, conn)
	s.dropClient(conn)
}

func (s *Server) dropClient(conn net.Conn) {
	s.mu.Lock()
	if s.client == conn {
		s.client = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}
