package lifecycle

import (
	"context"
	"fmt"

	"github.com/zmlAEQ/threshold-combiner/pkg/logger"
)

// Service is a long-running component managed by the node binary.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts services in registration order and stops them in reverse.
type Manager struct{ services []Service }

func New() *Manager { return &Manager{} }

func (m *Manager) Add(s Service) { m.services = append(m.services, s) }

// StartAll starts every registered service. On the first failure it stops the
// already-started services in reverse order and returns the failure.
func (m *Manager) StartAll(ctx context.Context) error {
	for i, s := range m.services {
		if err := s.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if serr := m.services[j].Stop(ctx); serr != nil {
					logger.ErrorJ("service_op", map[string]any{"service": m.services[j].Name(), "op": "stop", "result": "error", "err": serr.Error()})
				}
			}
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
	}
	return nil
}

// StopAll stops services in reverse order; the first error is returned after
// all services have been given a chance to stop.
func (m *Manager) StopAll(ctx context.Context) error {
	var first error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && first == nil {
			first = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	return first
}
