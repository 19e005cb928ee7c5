package verification

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seyialao/payguard/internal/gps"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/workflow"
)

// MockTransferRepo implements repository.TransferRepository; only the
// methods the flow touches carry expectations.
type MockTransferRepo struct {
	mock.Mock
}

func (m *MockTransferRepo) Insert(req *models.TransferRequest, tx *sqlx.Tx) (*models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) GetOne(id string) (*models.TransferRequest, bool, error) {
	args := m.Called(id)
	return args.Get(0).(*models.TransferRequest), args.Bool(1), args.Error(2)
}

func (m *MockTransferRepo) FindByReference(reference string) (*models.TransferRequest, bool, error) {
	return nil, false, nil
}

func (m *MockTransferRepo) FindPendingFor(userID string) ([]models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) FindHistoryFor(userID string) ([]models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) MarkVerified(id string, evidence workflow.Evidence) (*models.TransferRequest, error) {
	args := m.Called(id, evidence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepo) Cancel(id string) (*models.TransferRequest, error) {
	return nil, nil
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) UploadSelfie(ctx context.Context, fileName string) (string, error) {
	args := m.Called(fileName)
	return args.String(0), args.Error(1)
}

func pendingRequest() *models.TransferRequest {
	return &models.TransferRequest{
		ID:                  "req-1",
		SenderID:            "sender-1",
		RecipientID:         "recipient-1",
		Amount:              30_00,
		RequireVerification: true,
		Status:              workflow.StatusPending,
	}
}

func TestSubmit_MissingLocation(t *testing.T) {
	transfers := new(MockTransferRepo)
	flow := New(new(MockUploader), transfers)

	_, err := flow.Submit(context.Background(), "req-1", "recipient-1", "https://res.example.com/selfie.jpg", nil)
	require.ErrorIs(t, err, workflow.ErrIncompleteEvidence)

	// an incomplete submission must never reach the repository
	transfers.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestSubmit_MissingSelfie(t *testing.T) {
	transfers := new(MockTransferRepo)
	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: time.Now()}

	_, err := flow.Submit(context.Background(), "req-1", "recipient-1", "", fix)
	require.ErrorIs(t, err, workflow.ErrIncompleteEvidence)
	transfers.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestSubmit_AttachesEvidenceAtomically(t *testing.T) {
	transfers := new(MockTransferRepo)
	req := pendingRequest()

	capturedAt := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	wantEvidence := workflow.Evidence{
		SelfieURL:  "https://res.example.com/selfie.jpg",
		Latitude:   6.45,
		Longitude:  3.39,
		CapturedAt: capturedAt,
	}

	verified := *req
	verified.Status = workflow.StatusVerified

	transfers.On("GetOne", "req-1").Return(req, true, nil)
	transfers.On("MarkVerified", "req-1", wantEvidence).Return(&verified, nil)

	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: capturedAt}
	updated, err := flow.Submit(context.Background(), "req-1", "recipient-1", wantEvidence.SelfieURL, fix)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusVerified, updated.Status)

	transfers.AssertExpectations(t)
}

func TestSubmit_OnlyRecipientMayVerify(t *testing.T) {
	transfers := new(MockTransferRepo)
	transfers.On("GetOne", "req-1").Return(pendingRequest(), true, nil)

	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: time.Now()}
	_, err := flow.Submit(context.Background(), "req-1", "sender-1", "https://res.example.com/selfie.jpg", fix)
	require.ErrorIs(t, err, workflow.ErrActorNotAllowed)
	transfers.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestSubmit_VerificationNotRequired(t *testing.T) {
	req := pendingRequest()
	req.RequireVerification = false

	transfers := new(MockTransferRepo)
	transfers.On("GetOne", "req-1").Return(req, true, nil)

	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: time.Now()}
	_, err := flow.Submit(context.Background(), "req-1", "recipient-1", "https://res.example.com/selfie.jpg", fix)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestSubmit_RequestAlreadyCancelled(t *testing.T) {
	req := pendingRequest()
	req.Status = workflow.StatusCancelled

	transfers := new(MockTransferRepo)
	transfers.On("GetOne", "req-1").Return(req, true, nil)

	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: time.Now()}
	_, err := flow.Submit(context.Background(), "req-1", "recipient-1", "https://res.example.com/selfie.jpg", fix)
	require.ErrorIs(t, err, workflow.ErrAlreadyFinalized)
	transfers.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestSubmit_UnknownRequest(t *testing.T) {
	transfers := new(MockTransferRepo)
	transfers.On("GetOne", "missing").Return((*models.TransferRequest)(nil), false, nil)

	flow := New(new(MockUploader), transfers)

	fix := &gps.Fix{Latitude: 6.45, Longitude: 3.39, CapturedAt: time.Now()}
	_, err := flow.Submit(context.Background(), "missing", "recipient-1", "https://res.example.com/selfie.jpg", fix)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCaptureLocation_PermissionDenied(t *testing.T) {
	flow := New(new(MockUploader), new(MockTransferRepo))

	_, err := flow.CaptureLocation(context.Background(), gps.DeviceReport{Granted: false})
	require.ErrorIs(t, err, gps.ErrPermissionDenied)
}

func TestCaptureSelfie_ReturnsBlobReference(t *testing.T) {
	uploads := new(MockUploader)
	uploads.On("UploadSelfie", "/tmp/selfie.jpg").Return("https://res.example.com/selfie.jpg", nil)

	flow := New(uploads, new(MockTransferRepo))

	url, err := flow.CaptureSelfie(context.Background(), "/tmp/selfie.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://res.example.com/selfie.jpg", url)

	uploads.AssertExpectations(t)
}
