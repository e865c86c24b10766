package monitoring

import (
	"context"
	"errors"
	"net/http"

	"github.com/zmlAEQ/threshold-combiner/pkg/lifecycle"
	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
	"github.com/zmlAEQ/threshold-combiner/pkg/metrics"
)

// Service exposes the prometheus registry on a dedicated listener.
type Service struct {
	addr string
	srv  *http.Server
}

func New(addr string) *Service { return &Service{addr: addr} }

func (s *Service) Name() string { return "monitoring" }

func (s *Service) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorJ("service_op", map[string]any{"service": "monitoring", "op": "serve", "result": "error", "err": err.Error()})
		}
	}()
	logger.InfoJ("service_op", map[string]any{"service": "monitoring", "op": "start", "result": "ok", "addr": s.addr})
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

var _ lifecycle.Service = (*Service)(nil)
