package atm

// State is the position of a session in the cycle
// Idle → CardPresented → Authenticated → AccountSelected → OperationSelected → Executed.
type State int

const (
	StateIdle State = iota
	StateCardPresented
	StateAuthenticated
	StateAccountSelected
	StateOperationSelected
	StateExecuted
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateCardPresented:     "card_presented",
	StateAuthenticated:     "authenticated",
	StateAccountSelected:   "account_selected",
	StateOperationSelected: "operation_selected",
	StateExecuted:          "executed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session holds what the kiosk knows about the current customer. A new
// Session is built for every cycle and dropped when the cycle ends.
type Session struct {
	State     State
	Card      *Card
	AccountID string
}

// NewSession returns an idle session with no card and no account.
func NewSession() *Session {
	return &Session{State: StateIdle}
}

func (s *Session) clear() {
	*s = Session{State: StateIdle}
}

// Outcome tells why a cycle ended.
type Outcome string

const (
	OutcomeNoCard      Outcome = "no_card"
	OutcomePINRejected Outcome = "pin_rejected"
	OutcomeNoAccount   Outcome = "no_account"
	OutcomeNoOperation Outcome = "no_operation"
	OutcomeCompleted   Outcome = "completed"
	OutcomeAborted     Outcome = "aborted"
)
