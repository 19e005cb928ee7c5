// Package verification orchestrates the recipient's evidence capture before
// a transfer request may become verified. The selfie and the location fix
// are independent, individually retryable steps; submission requires both
// and hands them to the repository in one atomic status write.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/seyialao/payguard/internal/gps"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/workflow"
)

// stepTimeout bounds each capture step so a stuck upload or an unanswered
// permission prompt fails closed instead of hanging the request.
const stepTimeout = 10 * time.Second

type Flow struct {
	Selfies   Uploader
	Transfers repository.TransferRepository
}

// Uploader mirrors file.Uploader; declared here so tests and alternative
// blob stores don't pull in the Cloudinary client.
type Uploader interface {
	UploadSelfie(ctx context.Context, fileName string) (string, error)
}

func New(selfies Uploader, transfers repository.TransferRepository) *Flow {
	return &Flow{
		Selfies:   selfies,
		Transfers: transfers,
	}
}

// CaptureSelfie uploads the photograph and returns its blob reference.
// Failure leaves no persisted side effect; the user may retry.
func (f *Flow) CaptureSelfie(ctx context.Context, fileName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	return f.Selfies.UploadSelfie(ctx, fileName)
}

// CaptureLocation acquires a one-shot fix from the provider. A denied
// permission surfaces gps.ErrPermissionDenied and halts the flow.
func (f *Flow) CaptureLocation(ctx context.Context, provider gps.Provider) (gps.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	return provider.Current(ctx)
}

// Submit attaches the evidence to the request and moves it to verified.
// The recipient is the only legal actor; both evidence items must be
// present. Any failure leaves the request pending.
func (f *Flow) Submit(ctx context.Context, requestID, recipientID, selfieURL string, fix *gps.Fix) (*models.TransferRequest, error) {
	evidence := workflow.Evidence{SelfieURL: selfieURL}
	if fix != nil {
		evidence.Latitude = fix.Latitude
		evidence.Longitude = fix.Longitude
		evidence.CapturedAt = fix.CapturedAt
	}

	if !evidence.Complete() {
		return nil, workflow.ErrIncompleteEvidence
	}

	req, found, err := f.Transfers.GetOne(requestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}

	if req.RecipientID != recipientID {
		return req, workflow.ErrActorNotAllowed
	}

	err = workflow.ValidateTransition(req.Status, workflow.StatusVerified, workflow.ActorRecipient, req.RequireVerification)
	if err != nil {
		return req, err
	}

	updated, err := f.Transfers.MarkVerified(requestID, evidence)
	if err != nil {
		// a cancel that won the race between validation and the
		// compare-and-swap write surfaces here
		if errors.Is(err, workflow.ErrAlreadyFinalized) || errors.Is(err, workflow.ErrConcurrentModification) {
			return updated, err
		}
		return nil, err
	}

	return updated, nil
}
