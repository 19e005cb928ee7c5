package handler

import (
	"net/http"
	"time"

	"github.com/seyialao/payguard/internal/context"
	"github.com/seyialao/payguard/internal/errHandler"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/response"
)

type WalletHandler struct {
	ProfileRepo repository.ProfileReader
	LedgerRepo  repository.LedgerRepository
	ErrHandler  *errHandler.ErrorHandler
}

func NewWalletHandler(handler *WalletHandler) *WalletHandler {
	return &WalletHandler{
		ProfileRepo: handler.ProfileRepo,
		LedgerRepo:  handler.LedgerRepo,
		ErrHandler:  handler.ErrHandler,
	}
}

// HandleWalletBalance reports the authenticated user's own balance in
// minor units. There is no endpoint for reading anyone else's.
func (h *WalletHandler) HandleWalletBalance(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	balance, found, err := h.ProfileRepo.Balance(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	data := map[string]any{
		"balance":  balance,
		"currency": "NGN",
	}

	message := "Data retrieved successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleWalletTransactions lists the user's committed ledger entries.
func (h *WalletHandler) HandleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	entries, err := h.LedgerRepo.FindAllForUser(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	type entryData struct {
		ID                string `json:"id"`
		TransferRequestID string `json:"transfer_request_id"`
		SenderID          string `json:"sender_id"`
		RecipientID       string `json:"recipient_id"`
		Amount            int64  `json:"amount"`
		CreatedAt         string `json:"created_at"`
	}

	data := make([]entryData, len(entries))
	for i, entry := range entries {
		data[i] = entryData{
			ID:                entry.ID,
			TransferRequestID: entry.TransferRequestID,
			SenderID:          entry.SenderID,
			RecipientID:       entry.RecipientID,
			Amount:            entry.Amount,
			CreatedAt:         entry.CreatedAt.Format(time.RFC3339),
		}
	}

	message := "Data retrieved successfully"

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
