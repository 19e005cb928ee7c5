// The workflow package is the single authority on transfer request statuses.
// Every status write in the application must be validated here first, so the
// legal transitions live in one table instead of being scattered across handlers.
package workflow

// Status is the lifecycle state of a transfer request.
type Status string

const (
	// StatusPending is the initial state, set when the sender creates the request.
	StatusPending Status = "pending"

	// StatusVerified means the recipient has attached identity evidence.
	// Only reachable when the request was created with verification required.
	StatusVerified Status = "verified"

	// StatusCompleted is terminal. Balances have been mutated and a ledger
	// entry exists. Nothing may leave this state.
	StatusCompleted Status = "completed"

	// StatusCancelled is terminal. No balance effect.
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a request in this status is finished for good.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Actor identifies who is attempting a transition.
type Actor string

const (
	ActorSender    Actor = "sender"
	ActorRecipient Actor = "recipient"

	// ActorSystem is the immediate completion path at creation time,
	// used when the request does not require verification.
	ActorSystem Actor = "system"
)

type transition struct {
	from Status
	to   Status
}

// rule describes who may trigger a transition and which verification flag
// the request must carry for the transition to be legal.
type rule struct {
	actors              []Actor
	requireVerification *bool
}

func boolPtr(b bool) *bool { return &b }

var transitions = map[transition]rule{
	{StatusPending, StatusVerified}:   {actors: []Actor{ActorRecipient}, requireVerification: boolPtr(true)},
	{StatusPending, StatusCompleted}:  {actors: []Actor{ActorSystem}, requireVerification: boolPtr(false)},
	{StatusVerified, StatusCompleted}: {actors: []Actor{ActorSender}, requireVerification: boolPtr(true)},
	{StatusPending, StatusCancelled}:  {actors: []Actor{ActorSender, ActorRecipient}},
	{StatusVerified, StatusCancelled}: {actors: []Actor{ActorSender, ActorRecipient}},
}

// ValidateTransition checks the transition table. It returns nil when the
// actor may move a request with the given verification flag from one status
// to another. Terminal source states always fail with ErrAlreadyFinalized so
// a double-tap approve or duplicate cancel is rejected without a crash.
func ValidateTransition(from, to Status, actor Actor, requireVerification bool) error {
	if !from.Valid() || !to.Valid() {
		return ErrIllegalTransition
	}

	if from.Terminal() {
		return ErrAlreadyFinalized
	}

	rule, ok := transitions[transition{from, to}]
	if !ok {
		return ErrIllegalTransition
	}

	if rule.requireVerification != nil && *rule.requireVerification != requireVerification {
		return ErrIllegalTransition
	}

	for _, allowed := range rule.actors {
		if actor == allowed {
			return nil
		}
	}

	return ErrActorNotAllowed
}
