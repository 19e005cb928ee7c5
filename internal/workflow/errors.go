package workflow

import "errors"

// Sentinel errors for the transfer workflow. Handlers branch on these with
// errors.Is instead of inspecting message text, so the HTTP layer can tell a
// precondition failure (state unchanged, fix the input) apart from a
// concurrency failure (refresh and retry).
var (
	// ErrIllegalTransition is returned when the requested status change is
	// not in the transition table. State is guaranteed unchanged.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrActorNotAllowed is returned when the transition exists but the
	// calling party may not trigger it.
	ErrActorNotAllowed = errors.New("actor may not perform this transition")

	// ErrAlreadyFinalized is returned on any transition attempt against a
	// request that has reached a terminal status.
	ErrAlreadyFinalized = errors.New("transfer request already finalized")

	// ErrConcurrentModification is returned when the persisted status no
	// longer matches the transition's expected source state at commit time.
	ErrConcurrentModification = errors.New("transfer request changed concurrently")

	// ErrInsufficientFunds is the authoritative funds failure raised inside
	// the completion transaction. Balances are left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrIncompleteEvidence is returned when a verification submission is
	// missing the selfie or the location fix.
	ErrIncompleteEvidence = errors.New("incomplete verification evidence")

	// ErrTransactionTimeout is returned when the completion transaction did
	// not commit within its bounded wait. The store guarantees the attempt
	// left no partial writes.
	ErrTransactionTimeout = errors.New("completion transaction timed out")
)
