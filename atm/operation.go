package atm

import "fmt"

// Operation is a transaction kind offered after authentication. Its integer
// value is the key the customer presses in the operation menu.
type Operation int

const (
	OperationBalance  Operation = 1
	OperationDeposit  Operation = 2
	OperationWithdraw Operation = 3
)

// ParseOperation maps a keypad value to an Operation.
func ParseOperation(n int) (Operation, bool) {
	switch op := Operation(n); op {
	case OperationBalance, OperationDeposit, OperationWithdraw:
		return op, true
	}
	return 0, false
}

func (o Operation) String() string {
	switch o {
	case OperationBalance:
		return "balance"
	case OperationDeposit:
		return "deposit"
	case OperationWithdraw:
		return "withdraw"
	}
	return fmt.Sprintf("operation(%d)", int(o))
}
