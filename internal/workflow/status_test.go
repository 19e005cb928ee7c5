package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateTransition_LegalPaths(t *testing.T) {
	tests := []struct {
		name                string
		from, to            Status
		actor               Actor
		requireVerification bool
	}{
		{"recipient verifies a pending request", StatusPending, StatusVerified, ActorRecipient, true},
		{"system completes immediately without verification", StatusPending, StatusCompleted, ActorSystem, false},
		{"sender approves a verified request", StatusVerified, StatusCompleted, ActorSender, true},
		{"sender cancels while pending", StatusPending, StatusCancelled, ActorSender, true},
		{"recipient cancels while pending", StatusPending, StatusCancelled, ActorRecipient, false},
		{"sender cancels after verification", StatusVerified, StatusCancelled, ActorSender, true},
		{"recipient cancels after verification", StatusVerified, StatusCancelled, ActorRecipient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.actor, tt.requireVerification)
			require.NoError(t, err)
		})
	}
}

func TestValidateTransition_IllegalPaths(t *testing.T) {
	tests := []struct {
		name                string
		from, to            Status
		actor               Actor
		requireVerification bool
		wantErr             error
	}{
		{"verified unreachable when verification not required", StatusPending, StatusVerified, ActorRecipient, false, ErrIllegalTransition},
		{"immediate completion illegal when verification required", StatusPending, StatusCompleted, ActorSystem, true, ErrIllegalTransition},
		{"sender cannot verify on recipient's behalf", StatusPending, StatusVerified, ActorSender, true, ErrActorNotAllowed},
		{"recipient cannot approve", StatusVerified, StatusCompleted, ActorRecipient, true, ErrActorNotAllowed},
		{"system cannot complete a verified request", StatusVerified, StatusCompleted, ActorSystem, true, ErrActorNotAllowed},
		{"sender cannot skip verification", StatusPending, StatusCompleted, ActorSender, true, ErrIllegalTransition},
		{"no transition out of completed", StatusCompleted, StatusCancelled, ActorSender, true, ErrAlreadyFinalized},
		{"no transition out of cancelled", StatusCancelled, StatusCompleted, ActorSender, true, ErrAlreadyFinalized},
		{"duplicate cancel is rejected idempotently", StatusCancelled, StatusCancelled, ActorRecipient, false, ErrAlreadyFinalized},
		{"double approval is rejected", StatusCompleted, StatusCompleted, ActorSender, true, ErrAlreadyFinalized},
		{"backwards transition", StatusVerified, StatusPending, ActorRecipient, true, ErrIllegalTransition},
		{"unknown status", Status("limbo"), StatusCompleted, ActorSender, true, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.actor, tt.requireVerification)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusVerified.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusCancelled.Terminal())
}

func TestEvidenceComplete(t *testing.T) {
	full := Evidence{SelfieURL: "https://res.example.com/selfie.jpg", Latitude: 6.5244, Longitude: 3.3792}
	require.False(t, full.Complete(), "location without capture time must not count as present")

	full.CapturedAt = time.Now()
	require.True(t, full.Complete())

	noSelfie := full
	noSelfie.SelfieURL = ""
	require.False(t, noSelfie.Complete())
}
