package broker

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// Server accepts broker connections and serves the framed request/response
// protocol.  Each connection gets its own goroutine which processes requests
// sequentially; consumer group state lives in the Broker, not the socket.
type Server struct {
	services.Service

	cfg    Config
	logger log.Logger

	broker   *Broker
	listener net.Listener

	connsMtx sync.Mutex
	conns    map[net.Conn]struct{}
	connsWG  sync.WaitGroup
}

func NewServer(cfg Config, logger log.Logger) (*Server, error) {
	b, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		broker: b,
		conns:  make(map[net.Conn]struct{}),
	}
	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s, nil
}

// Broker exposes the underlying registry, mostly for tests.
func (s *Server) Broker() *Broker {
	return s.broker
}

// Addr returns the bound listener address.  Only valid once the service is
// running; with Port 0 this is how tests learn the assigned port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) starting(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "binding broker listener")
	}
	s.listener = l

	level.Info(s.logger).Log("msg", "broker listening", "addr", l.Addr().String())
	return nil
}

func (s *Server) running(ctx context.Context) error {
	acceptErr := make(chan error, 1)

	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				acceptErr <- err
				return
			}

			s.trackConn(conn, true)
			s.connsWG.Add(1)
			go s.handleConn(conn)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-acceptErr:
		return errors.Wrap(err, "accepting connection")
	}
}

func (s *Server) stopping(_ error) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connsMtx.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMtx.Unlock()

	s.connsWG.Wait()
	return s.broker.Close()
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.connsMtx.Lock()
	defer s.connsMtx.Unlock()

	if add {
		s.conns[conn] = struct{}{}
		metricActiveConnections.Inc()
		return
	}
	delete(s.conns, conn)
	metricActiveConnections.Dec()
}

// handleConn serves one client: read one framed request, route it, write one
// framed response, repeat until the peer goes away.
func (s *Server) handleConn(conn net.Conn) {
	defer s.connsWG.Done()
	defer s.trackConn(conn, false)
	defer conn.Close()

	for {
		req, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				level.Debug(s.logger).Log("msg", "connection read failed", "peer", conn.RemoteAddr(), "err", err)
			}
			return
		}

		resp, err := s.broker.handleRequest(req)
		if err != nil {
			level.Warn(s.logger).Log("msg", "malformed request", "peer", conn.RemoteAddr(), "err", err)
			return
		}

		if err := protocol.WriteFrame(conn, resp); err != nil {
			level.Debug(s.logger).Log("msg", "connection write failed", "peer", conn.RemoteAddr(), "err", err)
			return
		}
	}
}
