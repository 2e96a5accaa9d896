// Package metrics exports kiosk activity to Prometheus.
package metrics

import (
	"context"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	cycles     *prometheus.CounterVec
	operations *prometheus.CounterVec
	dispensed  prometheus.Counter
	deposited  prometheus.Counter
}

// New creates the kiosk metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_cycles_total",
				Help: "Session cycles by outcome",
			},
			[]string{"outcome"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_operations_total",
				Help: "Executed operations by kind",
			},
			[]string{"operation"},
		),
		dispensed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atm_cash_dispensed_total",
			Help: "Cash handed out by withdrawals",
		}),
		deposited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atm_cash_deposited_total",
			Help: "Cash counted by deposits",
		}),
	}
	reg.MustRegister(m.cycles, m.operations, m.dispensed, m.deposited)

	return m
}

// Hooks returns controller hooks recording into m, chained after next.
func (m *Metrics) Hooks(next atm.Hooks) atm.Hooks {
	return atm.Hooks{
		OnCycleStart: func(ctx context.Context, s *atm.Session) {
			if next.OnCycleStart != nil {
				next.OnCycleStart(ctx, s)
			}
		},
		OnCycleEnd: func(ctx context.Context, s *atm.Session, o atm.Outcome) {
			m.cycles.WithLabelValues(string(o)).Inc()
			if next.OnCycleEnd != nil {
				next.OnCycleEnd(ctx, s, o)
			}
		},
		OnOperation: func(ctx context.Context, op atm.Operation) {
			m.operations.WithLabelValues(op.String()).Inc()
			if next.OnOperation != nil {
				next.OnOperation(ctx, op)
			}
		},
		OnDispense: func(ctx context.Context, amount int64) {
			m.dispensed.Add(float64(amount))
			if next.OnDispense != nil {
				next.OnDispense(ctx, amount)
			}
		},
		OnDeposit: func(ctx context.Context, amount int64) {
			m.deposited.Add(float64(amount))
			if next.OnDeposit != nil {
				next.OnDeposit(ctx, amount)
			}
		},
	}
}
