package ldapserver

import (
	"net"
	"sync"
)

// Server is the external Acceptor boundary (component F): it owns a
// net.Listener and turns each accepted connection into a Connection
// running its own dispatch loop goroutine.
type Server struct {
	cfg *Config

	mu        sync.Mutex
	listener  net.Listener
	conns     map[int]*Connection
	nextConn  int
	closeOnce sync.Once
	done      chan struct{}
}

// NewServer builds a Server from cfg. cfg is read at Serve time and
// must not be mutated afterward. A Config with a zero-value Logger
// logs nowhere; set Config.Logger to zerolog.New(os.Stderr) or similar
// to get output.
func NewServer(cfg *Config) *Server {
	return &Server{
		cfg:   cfg,
		conns: make(map[int]*Connection),
		done:  make(chan struct{}),
	}
}

// ListenAndServe listens on addr (":389" if empty) and serves until
// Stop is called or Serve returns an Accept error.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":389"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln until it is closed by Stop,
// spawning one Connection dispatch loop per accepted transport.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.cfg.logger().Info().Str("addr", ln.Addr().String()).Msg("listening")

	for {
		rw, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}

		conn := newConnection(rw, s.cfg)

		s.mu.Lock()
		s.nextConn++
		conn.Numero = s.nextConn
		s.conns[conn.Numero] = conn
		s.mu.Unlock()

		go func() {
			conn.serve()
			s.mu.Lock()
			delete(s.conns, conn.Numero)
			s.mu.Unlock()
		}()
	}
}

// Stop closes the listener and every currently accepted connection.
// Outstanding workers observe the resulting I/O error and unwind on
// their own; Stop does not wait for them to finish.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		conns := make([]*Connection, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		s.cfg.logger().Info().Msg("stopping: closing accepted connections")
		for _, c := range conns {
			c.Close()
		}
	})
}
