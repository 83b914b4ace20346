package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// Server runs an http.Server in background until closed.
type Server struct {
	Address     string
	ReadTimeout time.Duration
	Handler     http.Handler

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

func (s *Server) String() string {
	return ServiceID + ".server"
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.Address)
	}

	base, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.server = &http.Server{
		Handler:     s.Handler,
		ReadTimeout: s.ReadTimeout,
		BaseContext: func(net.Listener) context.Context { return base },
	}

	if _, err := syncf.Go(ctx, func(ctx context.Context) {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}

		logf.Get(s).Resultf(ctx, logf.Debug, logf.Warn, "http server completed with %v", err)
	}); err != nil {
		cancel()
		_ = listener.Close()
		return err
	}

	logf.Get(s).Infof(ctx, "listening on %s", listener.Addr())
	return nil
}

// Addr returns the actual listener address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Streaming requests are interrupted via base context.
	s.cancel()
	ctx, cancel := syncf.Timeout(shutdownTimeout)(context.Background())
	defer cancel()
	return s.server.Shutdown(ctx)
}
