package handler

import (
	"bytes"
	dctx "context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seyialao/payguard/internal/context"
	"github.com/seyialao/payguard/internal/errHandler"
	"github.com/seyialao/payguard/internal/helper"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/workflow"
)

// MockTransferRepo implements TransferRepository but only mocks the
// methods each test needs.
type MockTransferRepo struct {
	mock.Mock
}

func (m *MockTransferRepo) Insert(req *models.TransferRequest, tx *sqlx.Tx) (*models.TransferRequest, error) {
	args := m.Called(req, tx)
	return args.Get(0).(*models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepo) GetOne(id string) (*models.TransferRequest, bool, error) {
	args := m.Called(id)
	req, _ := args.Get(0).(*models.TransferRequest)
	return req, args.Bool(1), args.Error(2)
}

func (m *MockTransferRepo) FindByReference(reference string) (*models.TransferRequest, bool, error) {
	args := m.Called(reference)
	req, _ := args.Get(0).(*models.TransferRequest)
	return req, args.Bool(1), args.Error(2)
}

func (m *MockTransferRepo) FindPendingFor(userID string) ([]models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) FindHistoryFor(userID string) ([]models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) MarkVerified(id string, evidence workflow.Evidence) (*models.TransferRequest, error) {
	return nil, nil
}

func (m *MockTransferRepo) Cancel(id string) (*models.TransferRequest, error) {
	args := m.Called(id)
	req, _ := args.Get(0).(*models.TransferRequest)
	return req, args.Error(1)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Complete(ctx dctx.Context, requestID string, actor workflow.Actor, actorID string) (*models.TransferRequest, *models.Transaction, error) {
	args := m.Called(requestID, actor, actorID)
	req, _ := args.Get(0).(*models.TransferRequest)
	entry, _ := args.Get(1).(*models.Transaction)
	return req, entry, args.Error(2)
}

func (m *MockLedgerRepo) GetByRequest(requestID string) (*models.Transaction, bool, error) {
	return nil, false, nil
}

func (m *MockLedgerRepo) FindAllForUser(userID string) ([]models.Transaction, error) {
	return nil, nil
}

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) GetOne(id string) (*models.User, bool, error) {
	args := m.Called(id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Bool(1), args.Error(2)
}

func (m *MockProfileRepo) GetByEmail(email string) (*models.User, bool, error) {
	return nil, false, nil
}

func (m *MockProfileRepo) CheckIfPhoneNumberExist(phoneNumber string) (bool, error) {
	return false, nil
}

func (m *MockProfileRepo) Balance(id string) (int64, bool, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	return log, nil
}

type MockReferenceCache struct {
	mock.Mock
}

func (m *MockReferenceCache) ClaimReference(ctx dctx.Context, reference string) (bool, error) {
	args := m.Called(reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferenceCache) ReleaseReference(ctx dctx.Context, reference string) error {
	return nil
}

type MockEventProducer struct {
	mock.Mock
}

func (m *MockEventProducer) ProduceMessage(topic, message string) error {
	m.Called(topic, message)
	return nil
}

type transferTestEnv struct {
	handler      *TransferHandler
	transferRepo *MockTransferRepo
	ledgerRepo   *MockLedgerRepo
	profileRepo  *MockProfileRepo
	cache        *MockReferenceCache
	events       *MockEventProducer
	wg           *sync.WaitGroup
}

func newTransferTestEnv() *transferTestEnv {
	transferRepo := new(MockTransferRepo)
	ledgerRepo := new(MockLedgerRepo)
	profileRepo := new(MockProfileRepo)
	cache := new(MockReferenceCache)
	events := new(MockEventProducer)

	baseURL := "http://localhost"
	var wg sync.WaitGroup
	help := helper.New(&baseURL, &wg, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := errHandler.New("", nil, logger, help)
	help.SetReporter(errorHandler)

	return &transferTestEnv{
		handler: &TransferHandler{
			TransferRepo: transferRepo,
			LedgerRepo:   ledgerRepo,
			ProfileRepo:  profileRepo,
			ActivityRepo: new(MockActivityRepo),
			Cache:        cache,
			Events:       events,
			Helper:       help,
			ErrHandler:   errorHandler,
		},
		transferRepo: transferRepo,
		ledgerRepo:   ledgerRepo,
		profileRepo:  profileRepo,
		cache:        cache,
		events:       events,
		wg:           &wg,
	}
}

func authenticatedRequest(method, target string, body []byte, user *models.User) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	return context.ContextSetAuthenticatedUser(req, user)
}

func approvedUser(id string, balance int64) *models.User {
	return &models.User{
		ID:                 id,
		FirstName:          "Test",
		LastName:           "User",
		Email:              id + "@example.com",
		WalletBalance:      balance,
		VerificationStatus: repository.VerificationApproved,
	}
}

func TestHandleInitiateTransfer_ImmediateCompletion(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 100_000)
	recipient := approvedUser("bbb-2", 0)

	env.cache.On("ClaimReference", "ref-001").Return(true, nil)
	env.transferRepo.On("FindByReference", "ref-001").Return(nil, false, nil)
	env.profileRepo.On("GetOne", recipient.ID).Return(recipient, true, nil)
	env.profileRepo.On("Balance", sender.ID).Return(int64(100_000), true, nil)

	pending := &models.TransferRequest{
		ID:          "req-1",
		Reference:   "ref-001",
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Amount:      25_000,
		Status:      workflow.StatusPending,
	}
	env.transferRepo.On("Insert", mock.Anything, (*sqlx.Tx)(nil)).Return(pending, nil)

	completed := *pending
	completed.Status = workflow.StatusCompleted
	entry := &models.Transaction{ID: "txn-1", TransferRequestID: pending.ID, Amount: pending.Amount}
	env.ledgerRepo.On("Complete", pending.ID, workflow.ActorSystem, "").Return(&completed, entry, nil)

	env.events.On("ProduceMessage", "transfer.completed", mock.Anything).Return(nil)

	body, _ := json.Marshal(map[string]any{
		"recipient_id":         recipient.ID,
		"amount":               25_000,
		"reference":            "ref-001",
		"require_verification": false,
	})

	rr := httptest.NewRecorder()
	env.handler.HandleInitiateTransfer(rr, authenticatedRequest("POST", "/transfers", body, sender))
	env.wg.Wait()

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Data TransferResponseData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "completed", resp.Data.Status)
	require.Equal(t, int64(25_000), resp.Data.Amount)

	env.ledgerRepo.AssertExpectations(t)
	env.events.AssertExpectations(t)
}

func TestHandleInitiateTransfer_DuplicateReference(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 100_000)

	env.cache.On("ClaimReference", "ref-001").Return(false, nil)

	body, _ := json.Marshal(map[string]any{
		"recipient_id": "bbb-2",
		"amount":       25_000,
		"reference":    "ref-001",
	})

	rr := httptest.NewRecorder()
	env.handler.HandleInitiateTransfer(rr, authenticatedRequest("POST", "/transfers", body, sender))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env.transferRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestHandleInitiateTransfer_InsufficientBalance(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 1_000)
	recipient := approvedUser("bbb-2", 0)

	env.cache.On("ClaimReference", "ref-002").Return(true, nil)
	env.transferRepo.On("FindByReference", "ref-002").Return(nil, false, nil)
	env.profileRepo.On("GetOne", recipient.ID).Return(recipient, true, nil)
	env.profileRepo.On("Balance", sender.ID).Return(int64(1_000), true, nil)

	body, _ := json.Marshal(map[string]any{
		"recipient_id":         recipient.ID,
		"amount":               25_000,
		"reference":            "ref-002",
		"require_verification": true,
	})

	rr := httptest.NewRecorder()
	env.handler.HandleInitiateTransfer(rr, authenticatedRequest("POST", "/transfers", body, sender))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env.transferRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestHandleInitiateTransfer_SelfTransfer(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 100_000)

	body, _ := json.Marshal(map[string]any{
		"recipient_id": sender.ID,
		"amount":       25_000,
		"reference":    "ref-003",
	})

	rr := httptest.NewRecorder()
	env.handler.HandleInitiateTransfer(rr, authenticatedRequest("POST", "/transfers", body, sender))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleApproveTransfer_Success(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 100_000)

	completed := &models.TransferRequest{
		ID:          "req-9",
		Reference:   "ref-009",
		SenderID:    sender.ID,
		RecipientID: "bbb-2",
		Amount:      40_000,
		Status:      workflow.StatusCompleted,
	}
	entry := &models.Transaction{ID: "txn-9", TransferRequestID: completed.ID, Amount: completed.Amount}

	env.ledgerRepo.On("Complete", "req-9", workflow.ActorSender, sender.ID).Return(completed, entry, nil)
	env.events.On("ProduceMessage", "transfer.completed", mock.Anything).Return(nil)

	req := authenticatedRequest("POST", "/transfers/req-9/approve", nil, sender)
	req.SetPathValue("id", "req-9")

	rr := httptest.NewRecorder()
	env.handler.HandleApproveTransfer(rr, req)
	env.wg.Wait()

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data TransferResponseData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "completed", resp.Data.Status)

	env.ledgerRepo.AssertExpectations(t)
	env.events.AssertExpectations(t)
}

func TestHandleApproveTransfer_AlreadyFinalized(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 100_000)

	cancelled := &models.TransferRequest{
		ID:       "req-9",
		SenderID: sender.ID,
		Status:   workflow.StatusCancelled,
	}

	env.ledgerRepo.On("Complete", "req-9", workflow.ActorSender, sender.ID).
		Return(cancelled, nil, workflow.ErrAlreadyFinalized)

	req := authenticatedRequest("POST", "/transfers/req-9/approve", nil, sender)
	req.SetPathValue("id", "req-9")

	rr := httptest.NewRecorder()
	env.handler.HandleApproveTransfer(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	env.events.AssertNotCalled(t, "ProduceMessage", mock.Anything, mock.Anything)
}

func TestHandleApproveTransfer_InsufficientFunds(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 0)

	verified := &models.TransferRequest{
		ID:       "req-9",
		SenderID: sender.ID,
		Status:   workflow.StatusVerified,
	}

	env.ledgerRepo.On("Complete", "req-9", workflow.ActorSender, sender.ID).
		Return(verified, nil, workflow.ErrInsufficientFunds)

	req := authenticatedRequest("POST", "/transfers/req-9/approve", nil, sender)
	req.SetPathValue("id", "req-9")

	rr := httptest.NewRecorder()
	env.handler.HandleApproveTransfer(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleCancelTransfer_RecipientCancels(t *testing.T) {
	env := newTransferTestEnv()

	recipient := approvedUser("bbb-2", 0)

	pending := &models.TransferRequest{
		ID:                  "req-5",
		SenderID:            "aaa-1",
		RecipientID:         recipient.ID,
		Amount:              10_000,
		RequireVerification: true,
		Status:              workflow.StatusPending,
	}
	cancelled := *pending
	cancelled.Status = workflow.StatusCancelled

	env.transferRepo.On("GetOne", "req-5").Return(pending, true, nil)
	env.transferRepo.On("Cancel", "req-5").Return(&cancelled, nil)
	env.events.On("ProduceMessage", "transfer.cancelled", mock.Anything).Return(nil)

	req := authenticatedRequest("POST", "/transfers/req-5/cancel", nil, recipient)
	req.SetPathValue("id", "req-5")

	rr := httptest.NewRecorder()
	env.handler.HandleCancelTransfer(rr, req)
	env.wg.Wait()

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data TransferResponseData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "cancelled", resp.Data.Status)
}

func TestHandleCancelTransfer_NotAParty(t *testing.T) {
	env := newTransferTestEnv()

	outsider := approvedUser("ccc-3", 0)

	pending := &models.TransferRequest{
		ID:          "req-5",
		SenderID:    "aaa-1",
		RecipientID: "bbb-2",
		Status:      workflow.StatusPending,
	}

	env.transferRepo.On("GetOne", "req-5").Return(pending, true, nil)

	req := authenticatedRequest("POST", "/transfers/req-5/cancel", nil, outsider)
	req.SetPathValue("id", "req-5")

	rr := httptest.NewRecorder()
	env.handler.HandleCancelTransfer(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	env.transferRepo.AssertNotCalled(t, "Cancel", mock.Anything)
}

func TestHandleCancelTransfer_AlreadyCompleted(t *testing.T) {
	env := newTransferTestEnv()

	sender := approvedUser("aaa-1", 0)

	completed := &models.TransferRequest{
		ID:          "req-5",
		SenderID:    sender.ID,
		RecipientID: "bbb-2",
		Status:      workflow.StatusCompleted,
	}

	env.transferRepo.On("GetOne", "req-5").Return(completed, true, nil)

	req := authenticatedRequest("POST", "/transfers/req-5/cancel", nil, sender)
	req.SetPathValue("id", "req-5")

	rr := httptest.NewRecorder()
	env.handler.HandleCancelTransfer(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	env.transferRepo.AssertNotCalled(t, "Cancel", mock.Anything)
}

func TestHandleTransferDetails_NotAParty(t *testing.T) {
	env := newTransferTestEnv()

	outsider := approvedUser("ccc-3", 0)

	pending := &models.TransferRequest{
		ID:          "req-5",
		SenderID:    "aaa-1",
		RecipientID: "bbb-2",
		Status:      workflow.StatusPending,
	}

	env.transferRepo.On("GetOne", "req-5").Return(pending, true, nil)

	req := authenticatedRequest("GET", "/transfers/req-5", nil, outsider)
	req.SetPathValue("id", "req-5")

	rr := httptest.NewRecorder()
	env.handler.HandleTransferDetails(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
}
