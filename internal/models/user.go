package models

import (
	"database/sql"
	"time"
)

// User is a profile record. WalletBalance is held in minor currency units
// (kobo) and is only ever written by the ledger completion transaction.
type User struct {
	ID                 string         `db:"id"`
	FirstName          string         `db:"first_name"`
	LastName           string         `db:"last_name"`
	PhoneNumber        string         `db:"phone_number"`
	Email              string         `db:"email"`
	Image              sql.NullString `db:"image"`
	WalletBalance      int64          `db:"wallet_balance"`
	VerificationStatus string         `db:"verification_status"`
	HashedPassword     string         `db:"hashed_password"`
	CreatedAt          time.Time      `db:"created_at"`
	VerifiedAt         sql.NullTime   `db:"verified_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
	DeletedAt          sql.NullTime   `db:"deleted_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
