package handler

import (
	dctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/seyialao/payguard/internal/context"
	"github.com/seyialao/payguard/internal/errHandler"
	"github.com/seyialao/payguard/internal/gps"
	"github.com/seyialao/payguard/internal/helper"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/request"
	"github.com/seyialao/payguard/internal/response"
	"github.com/seyialao/payguard/internal/stream"
	"github.com/seyialao/payguard/internal/validator"
	"github.com/seyialao/payguard/internal/verification"
	"github.com/seyialao/payguard/internal/workflow"
)

var (
	ErrSelfTransfer        = errors.New("you can't transfer to your own account")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrUnverifiedSender    = errors.New("your profile has not been cleared for transfers")
	ErrUnverifiedRecipient = errors.New("recipient's profile has not been cleared for transfers")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateTransfer   = errors.New("this appears to be a duplicate transfer")
	ErrNotYourTransfer     = errors.New("you are not a party to this transfer request")
)

const (
	TransferActivityLogInitiatedDescription = "Transfer request initiated"
	TransferActivityLogVerifiedDescription  = "Transfer request verified"
	TransferActivityLogCompletedDescription = "Transfer request completed"
	TransferActivityLogCancelledDescription = "Transfer request cancelled"
)

// EventProducer is the slice of the Kafka stream the handler needs.
type EventProducer interface {
	ProduceMessage(topic, message string) error
}

// ReferenceCache is the idempotency fast path. The unique index on the
// reference column stays authoritative when the cache is unavailable.
type ReferenceCache interface {
	ClaimReference(ctx dctx.Context, reference string) (bool, error)
	ReleaseReference(ctx dctx.Context, reference string) error
}

type TransferHandler struct {
	TransferRepo repository.TransferRepository
	LedgerRepo   repository.LedgerRepository
	ProfileRepo  repository.ProfileReader
	ActivityRepo repository.ActivityRepository
	Flow         *verification.Flow
	Cache        ReferenceCache
	Events       EventProducer
	Helper       *helper.HelperRepository
	ErrHandler   *errHandler.ErrorHandler
}

func NewTransferHandler(handler *TransferHandler) *TransferHandler {
	return &TransferHandler{
		TransferRepo: handler.TransferRepo,
		LedgerRepo:   handler.LedgerRepo,
		ProfileRepo:  handler.ProfileRepo,
		ActivityRepo: handler.ActivityRepo,
		Flow:         handler.Flow,
		Cache:        handler.Cache,
		Events:       handler.Events,
		Helper:       handler.Helper,
		ErrHandler:   handler.ErrHandler,
	}
}

type TransferResponseData struct {
	ID                  string   `json:"id"`
	Reference           string   `json:"reference"`
	SenderID            string   `json:"sender_id"`
	RecipientID         string   `json:"recipient_id"`
	Amount              int64    `json:"amount"`
	RequireVerification bool     `json:"require_verification"`
	Status              string   `json:"status"`
	SelfieURL           string   `json:"selfie_url,omitempty"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	CreatedAt           string   `json:"created_at"`
	VerifiedAt          string   `json:"verified_at,omitempty"`
	CompletedAt         string   `json:"completed_at,omitempty"`
}

func newTransferResponseData(req *models.TransferRequest) *TransferResponseData {
	data := &TransferResponseData{
		ID:                  req.ID,
		Reference:           req.Reference,
		SenderID:            req.SenderID,
		RecipientID:         req.RecipientID,
		Amount:              req.Amount,
		RequireVerification: req.RequireVerification,
		Status:              string(req.Status),
		CreatedAt:           req.CreatedAt.Format(time.RFC3339),
	}

	if req.SelfieURL.Valid {
		data.SelfieURL = req.SelfieURL.String
	}
	if req.Latitude.Valid {
		data.Latitude = &req.Latitude.Float64
	}
	if req.Longitude.Valid {
		data.Longitude = &req.Longitude.Float64
	}
	if req.VerifiedAt.Valid {
		data.VerifiedAt = req.VerifiedAt.Time.Format(time.RFC3339)
	}
	if req.CompletedAt.Valid {
		data.CompletedAt = req.CompletedAt.Time.Format(time.RFC3339)
	}

	return data
}

// HandleInitiateTransfer creates a transfer request. When verification is
// not required the completion transaction runs right away, so the caller
// sees a completed transfer in the response; otherwise the request stays
// pending until the recipient submits evidence.
func (h *TransferHandler) HandleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RecipientID         string              `json:"recipient_id"`
		Amount              int64               `json:"amount"`
		Reference           string              `json:"reference"`
		RequireVerification bool                `json:"require_verification"`
		Validator           validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	sender := context.ContextGetAuthenticatedUser(r)

	input.Validator.Check(input.Amount > 0, "Amount must be greater than zero")
	input.Validator.Check(validator.NotBlank(input.Reference), "Reference is required")
	input.Validator.Check(validator.NotBlank(input.RecipientID), "Recipient is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	if input.RecipientID == sender.ID {
		response.JSONErrorResponse(w, nil, ErrSelfTransfer.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	// Idempotency fast path. A cache failure falls through to the
	// authoritative reference lookup below.
	claimed, err := h.Cache.ClaimReference(r.Context(), input.Reference)
	if err == nil && !claimed {
		response.JSONErrorResponse(w, nil, ErrDuplicateTransfer.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	_, found, err := h.TransferRepo.FindByReference(input.Reference)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if found {
		response.JSONErrorResponse(w, nil, ErrDuplicateTransfer.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	recipient, found, err := h.ProfileRepo.GetOne(input.RecipientID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		response.JSONErrorResponse(w, nil, ErrRecipientNotFound.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	// Both parties must have passed identity review before any transfer.
	if sender.VerificationStatus != repository.VerificationApproved {
		response.JSONErrorResponse(w, nil, ErrUnverifiedSender.Error(), http.StatusUnprocessableEntity, nil)
		return
	}
	if recipient.VerificationStatus != repository.VerificationApproved {
		response.JSONErrorResponse(w, nil, ErrUnverifiedRecipient.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	// Advisory funds check. The completion transaction re-checks under
	// lock; this one only exists to fail fast with a friendly message.
	balance, found, err := h.ProfileRepo.Balance(sender.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.ServerError(w, r, repository.ErrProfileNotFound)
		return
	}
	if balance < input.Amount {
		response.JSONErrorResponse(w, nil, ErrInsufficientBalance.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	created, err := h.TransferRepo.Insert(&models.TransferRequest{
		Reference:           input.Reference,
		SenderID:            sender.ID,
		RecipientID:         input.RecipientID,
		Amount:              input.Amount,
		RequireVerification: input.RequireVerification,
	}, nil)
	if err != nil {
		h.Helper.BackgroundTask(r, func() error {
			return h.Cache.ReleaseReference(dctx.Background(), input.Reference)
		})
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	message := "Transfer request created successfully"
	eventTopic := stream.TransferRequestedTopic

	if !created.RequireVerification {
		// immediate path: no verified stop-over, straight to the
		// completion transaction
		completed, _, err := h.LedgerRepo.Complete(r.Context(), created.ID, workflow.ActorSystem, "")
		if err != nil {
			h.transferError(w, r, err)
			return
		}

		created = completed
		message = "Transfer completed successfully"
		eventTopic = stream.TransferCompletedTopic
	}

	h.logTransferActivity(r, sender.ID, created.ID, TransferActivityLogInitiatedDescription)
	h.produceTransferEvent(r, eventTopic, created)

	err = response.JSONCreatedResponse(w, newTransferResponseData(created), message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleVerifyTransfer accepts the recipient's evidence as a multipart
// submission: a selfie image plus the device's location report. Both
// capture steps may be retried; nothing is persisted until Submit's single
// atomic status write.
func (h *TransferHandler) HandleVerifyTransfer(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	requestID := r.PathValue("id")

	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("invalid request data"))
		return
	}

	selfie, fileHeader, err := r.FormFile("selfie")
	if err != nil {
		response.JSONErrorResponse(w, nil, workflow.ErrIncompleteEvidence.Error(), http.StatusUnprocessableEntity, nil)
		return
	}
	defer selfie.Close()

	report, err := locationReportFromForm(r)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	fileExtension := filepath.Ext(fileHeader.Filename)

	tempFile, err := os.CreateTemp("", fmt.Sprintf("selfie-*%s", fileExtension))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	defer tempFile.Close()
	defer os.Remove(tempFile.Name())

	_, err = tempFile.ReadFrom(selfie)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	selfieURL, err := h.Flow.CaptureSelfie(r.Context(), tempFile.Name())
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	fix, err := h.Flow.CaptureLocation(r.Context(), report)
	if err != nil {
		h.transferError(w, r, err)
		return
	}

	verified, err := h.Flow.Submit(r.Context(), requestID, user.ID, selfieURL, &fix)
	if err != nil {
		h.transferError(w, r, err)
		return
	}

	h.logTransferActivity(r, user.ID, verified.ID, TransferActivityLogVerifiedDescription)
	h.produceTransferEvent(r, stream.TransferVerifiedTopic, verified)

	message := "Verification submitted successfully"

	err = response.JSONOkResponse(w, newTransferResponseData(verified), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleApproveTransfer is the sender's explicit approval of a verified
// request. All correctness lives in the completion transaction; the
// handler just maps its outcome.
func (h *TransferHandler) HandleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	requestID := r.PathValue("id")

	completed, entry, err := h.LedgerRepo.Complete(r.Context(), requestID, workflow.ActorSender, user.ID)
	if err != nil {
		h.transferError(w, r, err)
		return
	}

	h.logTransferActivity(r, user.ID, completed.ID, TransferActivityLogCompletedDescription)

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogLedgerEntity,
			EntityId:    entry.ID,
			Description: TransferActivityLogCompletedDescription,
		})
		return err
	})

	h.produceTransferEvent(r, stream.TransferCompletedTopic, completed)

	message := "Transfer completed successfully"

	err = response.JSONOkResponse(w, newTransferResponseData(completed), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleCancelTransfer lets either party back out while the request is
// still live. Cancellation never touches balances.
func (h *TransferHandler) HandleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	requestID := r.PathValue("id")

	req, found, err := h.TransferRepo.GetOne(requestID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	if !req.Involves(user.ID) {
		h.ErrHandler.Forbidden(w, r, ErrNotYourTransfer)
		return
	}

	actor := workflow.ActorRecipient
	if req.SenderID == user.ID {
		actor = workflow.ActorSender
	}

	err = workflow.ValidateTransition(req.Status, workflow.StatusCancelled, actor, req.RequireVerification)
	if err != nil {
		h.transferError(w, r, err)
		return
	}

	cancelled, err := h.TransferRepo.Cancel(requestID)
	if err != nil {
		h.transferError(w, r, err)
		return
	}

	h.logTransferActivity(r, user.ID, cancelled.ID, TransferActivityLogCancelledDescription)
	h.produceTransferEvent(r, stream.TransferCancelledTopic, cancelled)

	message := "Transfer request cancelled"

	err = response.JSONOkResponse(w, newTransferResponseData(cancelled), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandlePendingTransfers lists the requests still needing action from the
// authenticated user, newest first.
func (h *TransferHandler) HandlePendingTransfers(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	reqs, err := h.TransferRepo.FindPendingFor(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*TransferResponseData, len(reqs))
	for i := range reqs {
		data[i] = newTransferResponseData(&reqs[i])
	}

	message := "Data retrieved successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleTransferHistory lists the user's terminal-state requests.
func (h *TransferHandler) HandleTransferHistory(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	reqs, err := h.TransferRepo.FindHistoryFor(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*TransferResponseData, len(reqs))
	for i := range reqs {
		data[i] = newTransferResponseData(&reqs[i])
	}

	message := "Data retrieved successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *TransferHandler) HandleTransferDetails(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	requestID := r.PathValue("id")

	req, found, err := h.TransferRepo.GetOne(requestID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	if !req.Involves(user.ID) {
		h.ErrHandler.Forbidden(w, r, ErrNotYourTransfer)
		return
	}

	data := map[string]any{
		"transfer": newTransferResponseData(req),
	}

	if req.Status == workflow.StatusCompleted {
		entry, found, err := h.LedgerRepo.GetByRequest(req.ID)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}
		if found {
			data["transaction"] = map[string]any{
				"id":         entry.ID,
				"amount":     entry.Amount,
				"created_at": entry.CreatedAt.Format(time.RFC3339),
			}
		}
	}

	message := "Data retrieved successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// locationReportFromForm builds the device's location report from the
// submitted form fields. Parse failures are client errors; a missing grant
// becomes a permission denial inside the gps provider.
func locationReportFromForm(r *http.Request) (gps.DeviceReport, error) {
	report := gps.DeviceReport{}

	report.Granted = r.FormValue("location_granted") == "true"
	if !report.Granted {
		return report, nil
	}

	latitude, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		return report, errors.New("latitude must be a decimal number")
	}

	longitude, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		return report, errors.New("longitude must be a decimal number")
	}

	report.Latitude = latitude
	report.Longitude = longitude

	if capturedAt := r.FormValue("captured_at"); capturedAt != "" {
		ts, err := time.Parse(time.RFC3339, capturedAt)
		if err != nil {
			return report, errors.New("captured_at must be an RFC 3339 timestamp")
		}
		report.CapturedAt = ts
	}

	return report, nil
}

// transferError translates workflow and repository sentinels into HTTP
// responses, keeping the error kind visible to clients: precondition
// failures are 422, authorization failures 403, lost races 409, bounded
// waits 504.
func (h *TransferHandler) transferError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.ErrHandler.NotFound(w, r)

	case errors.Is(err, repository.ErrProfileNotFound):
		response.JSONErrorResponse(w, nil, ErrRecipientNotFound.Error(), http.StatusUnprocessableEntity, nil)

	case errors.Is(err, workflow.ErrAlreadyFinalized),
		errors.Is(err, workflow.ErrConcurrentModification):
		h.ErrHandler.Conflict(w, r, err)

	case errors.Is(err, workflow.ErrActorNotAllowed),
		errors.Is(err, gps.ErrPermissionDenied):
		h.ErrHandler.Forbidden(w, r, err)

	case errors.Is(err, workflow.ErrInsufficientFunds),
		errors.Is(err, workflow.ErrIllegalTransition),
		errors.Is(err, workflow.ErrIncompleteEvidence),
		errors.Is(err, gps.ErrUnavailable):
		response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)

	case errors.Is(err, workflow.ErrTransactionTimeout):
		h.ErrHandler.GatewayTimeout(w, r, err)

	default:
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *TransferHandler) logTransferActivity(r *http.Request, userID, entityID, description string) {
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      userID,
			Entity:      repository.ActivityLogTransferEntity,
			EntityId:    entityID,
			Description: description,
		})
		return err
	})
}

func (h *TransferHandler) produceTransferEvent(r *http.Request, topic string, req *models.TransferRequest) {
	payload, err := json.Marshal(newTransferResponseData(req))
	if err != nil {
		h.ErrHandler.ReportServerError(r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		return h.Events.ProduceMessage(topic, string(payload))
	})
}
