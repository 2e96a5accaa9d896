package atm

import "errors"

var (
	// ErrNotSupported is returned by collaborators that are not wired to a
	// real device or backend. It stops the kiosk.
	ErrNotSupported = errors.New("not supported")

	// ErrDeclined is returned by an Authenticator refusing a ledger mutation.
	ErrDeclined = errors.New("declined by bank")

	errNoCard    = errors.New("no card in session")
	errNoAccount = errors.New("no account selected")
)
