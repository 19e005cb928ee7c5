// Every workflow action, synchronous or asynchronous, leaves an activity
// log row. Entity and entity_id are polymorphic so the same table traces
// users, transfer requests and ledger transactions.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/seyialao/payguard/internal/models"
)

type ActivityRepository interface {
	Insert(log *models.ActivityLog) (*models.ActivityLog, error)
}

const (
	ActivityLogTransferEntity = "transfer_request"
	ActivityLogLedgerEntity   = "transaction"
	ActivityLogUserEntity     = "user"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var inserted models.ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := repo.db.GetContext(ctx, &inserted, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}
