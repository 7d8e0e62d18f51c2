// Package server implements the TCP connection layer: an accept loop that
// spawns one goroutine per connection, each running a decode-dispatch-reply
// loop against a shared command dispatcher.
package server

import (
	"errors"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/grevgeny/toy-redis-server/internal/command"
	"github.com/grevgeny/toy-redis-server/internal/resp"
)

// Server accepts connections and dispatches commands against a shared
// Dispatcher.
type Server struct {
	addr       string
	dispatcher *command.Dispatcher
	log        *logrus.Logger

	listener net.Listener
}

// New builds a Server bound to host:port (not yet listening).
func New(host string, port int, dispatcher *command.Dispatcher, log *logrus.Logger) *Server {
	return &Server{
		addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		dispatcher: dispatcher,
		log:        log,
	}
}

// ListenAndServe binds the listener and accepts connections until Close is
// called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", s.addr).Info("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithField("component", "server").WithField("panic", rec).Error("recovered from panic in connection handler")
		}
	}()

	dec := resp.NewDecoder()
	buf := make([]byte, 4096)

	for {
		for {
			v, ok, err := dec.Next()
			if err != nil {
				return // malformed frame: fatal, close the connection
			}
			if !ok {
				break
			}
			args, ok := v.StringArray()
			if !ok {
				return
			}
			reply, _, err := s.dispatcher.Dispatch(conn, args)
			if err != nil {
				if _, werr := conn.Write(resp.EncodeError(err.Error())); werr != nil {
					return
				}
				continue
			}
			if reply != nil {
				if _, werr := conn.Write(reply); werr != nil {
					return
				}
			}
		}

		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		dec.Feed(buf[:n])
	}
}
