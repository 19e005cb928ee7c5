package models

import "time"

// ActivityLog is an audit trail row. Entity and EntityId are polymorphic so
// one table serves users, transfer requests and ledger transactions alike.
type ActivityLog struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Entity      string    `db:"entity"`
	EntityId    string    `db:"entity_id"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}
