package atm

import "context"

// Hooks are optional callbacks fired by the Controller. They observe a
// session and never change its outcome.
type Hooks struct {
	OnCycleStart func(context.Context, *Session)
	OnCycleEnd   func(context.Context, *Session, Outcome)
	OnOperation  func(context.Context, Operation)
	OnDispense   func(context.Context, int64)
	OnDeposit    func(context.Context, int64)
}

func (h Hooks) cycleStart(ctx context.Context, s *Session) {
	if h.OnCycleStart != nil {
		h.OnCycleStart(ctx, s)
	}
}

func (h Hooks) cycleEnd(ctx context.Context, s *Session, o Outcome) {
	if h.OnCycleEnd != nil {
		h.OnCycleEnd(ctx, s, o)
	}
}

func (h Hooks) operation(ctx context.Context, op Operation) {
	if h.OnOperation != nil {
		h.OnOperation(ctx, op)
	}
}

func (h Hooks) dispense(ctx context.Context, amount int64) {
	if h.OnDispense != nil {
		h.OnDispense(ctx, amount)
	}
}

func (h Hooks) deposit(ctx context.Context, amount int64) {
	if h.OnDeposit != nil {
		h.OnDeposit(ctx, amount)
	}
}
