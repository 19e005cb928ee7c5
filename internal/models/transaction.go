package models

import "time"

// Transaction is one append-only ledger entry. Exactly one exists per
// transfer request that reached the completed status, created in the same
// database transaction as the balance mutation.
type Transaction struct {
	ID                string    `db:"id"`
	TransferRequestID string    `db:"transfer_request_id"`
	SenderID          string    `db:"sender_id"`
	RecipientID       string    `db:"recipient_id"`
	Amount            int64     `db:"amount"`
	CreatedAt         time.Time `db:"created_at"`
}
