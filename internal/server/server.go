package server

import (
	"fmt"
	"sync/atomic"

	"github.com/zerodha/logf"
	"golang.org/x/sys/unix"

	"github.com/mr-karan/rosterdb/pkg/proto"
	"github.com/mr-karan/rosterdb/pkg/roster"
)

const (
	defaultMaxClients = 256
	listenBacklog     = 10

	// pollTimeoutMs bounds each readiness wait so the shutdown flag is
	// observed promptly.
	pollTimeoutMs = 100
)

// Opts represents configuration options for the protocol server.
type Opts struct {
	Port       int // TCP port to listen on. 0 picks an ephemeral port.
	MaxClients int // Size of the connection table. Defaults to 256.
}

// Server is the single-threaded protocol server. One goroutine owns the
// listener, every connection and the store; requests are strictly serialised
// by the event loop, so the store needs no locking.
type Server struct {
	lo    logf.Logger
	store *roster.Store
	opts  Opts

	listenFD int
	port     int

	// conns is the bounded connection table; nil entries are free slots.
	conns []*conn

	// quit is the only shared state: set from the signal watcher (or Stop)
	// and polled by the loop at every iteration.
	quit atomic.Bool
}

// New creates a protocol server around an open store.
func New(store *roster.Store, lo logf.Logger, opts Opts) *Server {
	if opts.MaxClients <= 0 {
		opts.MaxClients = defaultMaxClients
	}
	return &Server{
		lo:       lo,
		store:    store,
		opts:     opts,
		listenFD: -1,
		conns:    make([]*conn, opts.MaxClients),
	}
}

// Listen binds the listening socket. It must be called once before Run.
func (s *Server) Listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("error creating socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("error setting SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: s.opts.Port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("error binding port %d: %w", s.opts.Port, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return fmt.Errorf("error listening: %w", err)
	}

	// Re-read the bound address so Port works with an ephemeral port.
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("error reading bound address: %w", err)
	}
	inet4, ok := bound.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(fd)
		return fmt.Errorf("unexpected bound address family")
	}

	s.listenFD = fd
	s.port = inet4.Port

	s.lo.Info("server listening", "port", s.port)
	return nil
}

// Port returns the bound TCP port after Listen.
func (s *Server) Port() int {
	return s.port
}

// Stop flags the event loop to exit. Safe to call from any goroutine; the
// loop notices within one poll timeout.
func (s *Server) Stop() {
	s.quit.Store(true)
}

// Run drives the event loop until Stop is called. Each iteration polls the
// listener and every live connection, accepts new peers, reads and dispatches
// complete frames and reaps closed connections. Per-peer failures never abort
// the loop.
func (s *Server) Run() error {
	if s.listenFD < 0 {
		return fmt.Errorf("server is not listening, call Listen first")
	}
	defer s.closeAll()

	fds := make([]unix.PollFd, 0, len(s.conns)+1)

	for !s.quit.Load() {
		fds = fds[:0]
		fds = append(fds, unix.PollFd{Fd: int32(s.listenFD), Events: unix.POLLIN})
		for _, c := range s.conns {
			if c != nil {
				fds = append(fds, unix.PollFd{Fd: int32(c.fd), Events: unix.POLLIN})
			}
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("error polling: %w", err)
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			s.acceptOne()
		}

		for _, pfd := range fds[1:] {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			c := s.connByFD(int(pfd.Fd))
			if c == nil || c.state == stateClosed {
				continue
			}
			s.readConn(c)
			s.drainConn(c)
		}

		s.reap()
	}

	s.lo.Info("event loop exited")
	return nil
}

// acceptOne takes a single pending connection. When the table is full the
// socket is accepted and closed immediately with no response.
func (s *Server) acceptOne() {
	fd, _, err := unix.Accept(s.listenFD)
	if err != nil {
		if err != unix.EINTR {
			s.lo.Error("error accepting connection", "error", err)
		}
		return
	}

	slot := -1
	for i, c := range s.conns {
		if c == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		s.lo.Error("connection table full, dropping peer", "fd", fd)
		unix.Close(fd)
		return
	}

	s.conns[slot] = &conn{fd: fd, state: stateAwaitingHello}
	s.lo.Debug("accepted peer", "fd", fd, "slot", slot)
}

func (s *Server) connByFD(fd int) *conn {
	for _, c := range s.conns {
		if c != nil && c.fd == fd {
			return c
		}
	}
	return nil
}

// readConn pulls whatever is available into the free capacity of the peer's
// buffer. EOF or any error other than an interrupt closes the connection.
func (s *Server) readConn(c *conn) {
	n, err := unix.Read(c.fd, c.buf[c.pos:])
	if err == unix.EINTR {
		return
	}
	if err != nil {
		s.lo.Error("error reading from peer", "fd", c.fd, "error", err)
		c.state = stateClosed
		return
	}
	if n == 0 {
		s.lo.Debug("peer disconnected", "fd", c.fd)
		c.state = stateClosed
		return
	}
	c.pos += n
}

// drainConn dispatches as many complete frames as the buffer holds. After
// each frame the residual bytes are compacted to the front and the cached
// expected length is reset.
func (s *Server) drainConn(c *conn) {
	for c.state != stateClosed {
		frame, total, ok, err := proto.TryDecode(c.buf[:], c.pos)
		if err != nil {
			s.replyError(c, err.Error())
			return
		}
		c.expected = total
		if !ok {
			return
		}

		s.dispatch(c, frame)

		rem := c.pos - c.expected
		if rem > 0 {
			copy(c.buf[:rem], c.buf[c.expected:c.pos])
		}
		c.pos = rem
		c.expected = 0
	}
}

// reap closes and frees every connection marked Closed.
func (s *Server) reap() {
	for i, c := range s.conns {
		if c != nil && c.state == stateClosed {
			unix.Close(c.fd)
			s.conns[i] = nil
		}
	}
}

// closeAll tears down the listener and every live connection on loop exit.
func (s *Server) closeAll() {
	for i, c := range s.conns {
		if c != nil {
			unix.Close(c.fd)
			s.conns[i] = nil
		}
	}
	if s.listenFD >= 0 {
		unix.Close(s.listenFD)
		s.listenFD = -1
	}
}
