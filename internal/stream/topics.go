package stream

// Transfer lifecycle topics. Producers publish after the database commit;
// consumers only drive notifications and audit, never money movement.
const (
	// TransferRequestedTopic announces a new verification-required request
	// so the recipient can be told action is needed.
	TransferRequestedTopic = "transfer.requested"

	// TransferVerifiedTopic announces attached evidence so the sender can
	// be prompted to approve.
	TransferVerifiedTopic = "transfer.verified"

	// TransferCompletedTopic announces a committed completion; drives
	// debit/credit alerts.
	TransferCompletedTopic = "transfer.completed"

	// TransferCancelledTopic announces a cancellation.
	TransferCancelledTopic = "transfer.cancelled"
)
