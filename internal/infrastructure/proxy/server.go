package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/doeshing/liftlog/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// Server runs a handler until its context is cancelled.
type Server struct {
	Addr    string
	Handler http.Handler
	Logger  ports.Logger
}

// Run listens on Addr and serves until ctx is done, then shuts down
// gracefully. ready, when not nil, receives the bound address.
func (s *Server) Run(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	if ready != nil {
		ready(ln.Addr().String())
	}
	s.Logger.Info("proxy listening", map[string]interface{}{"addr": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
