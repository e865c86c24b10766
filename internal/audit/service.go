package audit

import (
	"context"

	"github.com/zmlAEQ/threshold-combiner/internal/combiner"
	"github.com/zmlAEQ/threshold-combiner/pkg/bus"
	"github.com/zmlAEQ/threshold-combiner/pkg/lifecycle"
	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
	"github.com/zmlAEQ/threshold-combiner/pkg/metrics"
)

// Service drains sign-outcome events from the bus and forwards them to the
// configured sink for discrepancy analysis. Observability only; it never
// affects request outcomes.
type Service struct {
	sub  bus.Subscriber
	sink Sink
}

func New(sub bus.Subscriber, sink Sink) *Service { return &Service{sub: sub, sink: sink} }

func (s *Service) Name() string { return "audit" }

func (s *Service) Start(ctx context.Context) error {
	if s.sub == nil || s.sink == nil {
		logger.Info("audit start (disabled)")
		return nil
	}
	go func() {
		for {
			select {
			case ev := <-s.sub:
				o, ok := ev.Body.(combiner.Outcome)
				if !ok || ev.Kind != bus.KindSignOutcome {
					continue
				}
				metrics.Inc("audit_events_total", map[string]string{"result": o.Result})
				s.sink.Publish(o)
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.InfoJ("service_op", map[string]any{"service": "audit", "op": "start", "result": "ok"})
	return nil
}

func (s *Service) Stop(ctx context.Context) error { return nil }

var _ lifecycle.Service = (*Service)(nil)
