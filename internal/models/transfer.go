package models

import (
	"database/sql"
	"time"

	"github.com/seyialao/payguard/internal/workflow"
)

// TransferRequest tracks one peer-to-peer money movement attempt from
// creation through to a terminal outcome. Rows are never deleted; terminal
// requests are retained for history.
type TransferRequest struct {
	ID                  string          `db:"id"`
	Reference           string          `db:"reference"`
	SenderID            string          `db:"sender_id"`
	RecipientID         string          `db:"recipient_id"`
	Amount              int64           `db:"amount"`
	RequireVerification bool            `db:"require_verification"`
	Status              workflow.Status `db:"status"`

	// Evidence columns are populated iff the request has passed through
	// the verified status. They are written in the same statement as the
	// status change.
	SelfieURL          sql.NullString  `db:"selfie_url"`
	Latitude           sql.NullFloat64 `db:"latitude"`
	Longitude          sql.NullFloat64 `db:"longitude"`
	LocationCapturedAt sql.NullTime    `db:"location_captured_at"`

	CreatedAt   time.Time    `db:"created_at"`
	VerifiedAt  sql.NullTime `db:"verified_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

// Evidence reconstructs the workflow evidence payload from the stored columns.
func (t *TransferRequest) Evidence() workflow.Evidence {
	ev := workflow.Evidence{}
	if t.SelfieURL.Valid {
		ev.SelfieURL = t.SelfieURL.String
	}
	if t.Latitude.Valid {
		ev.Latitude = t.Latitude.Float64
	}
	if t.Longitude.Valid {
		ev.Longitude = t.Longitude.Float64
	}
	if t.LocationCapturedAt.Valid {
		ev.CapturedAt = t.LocationCapturedAt.Time
	}
	return ev
}

// Involves reports whether the user is a party to the request.
func (t *TransferRequest) Involves(userID string) bool {
	return t.SenderID == userID || t.RecipientID == userID
}
