// The ledger repository owns the completion transaction: the only code path
// in the application allowed to write wallet balances. Debit, credit, the
// terminal status write and the ledger append commit or abort as one unit.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/workflow"
)

// completionTimeout bounds the wait for the commit. On expiry the store
// rolls the attempt back and the caller sees ErrTransactionTimeout with
// state exactly as before.
const completionTimeout = 5 * time.Second

type LedgerRepository interface {
	// Complete finalizes a transfer: re-reads the request status under
	// lock, validates the transition for the acting party, checks funds
	// authoritatively, mutates both balances and appends exactly one
	// transaction record. Any error means nothing was written.
	Complete(ctx context.Context, requestID string, actor workflow.Actor, actorID string) (*models.TransferRequest, *models.Transaction, error)

	GetByRequest(requestID string) (*models.Transaction, bool, error)
	FindAllForUser(userID string) ([]models.Transaction, error)
}

type LedgerRepositoryImpl struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &LedgerRepositoryImpl{db: db}
}

func (repo *LedgerRepositoryImpl) Complete(ctx context.Context, requestID string, actor workflow.Actor, actorID string) (*models.TransferRequest, *models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	// rollback is a no-op after a successful commit
	defer tx.Rollback()

	var req models.TransferRequest

	// The row lock serializes concurrent approve/cancel attempts on the
	// same request; the loser re-reads a status that fails validation.
	query := `SELECT * FROM transfer_requests WHERE id = $1 FOR UPDATE`

	err = tx.GetContext(ctx, &req, query, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	err = workflow.ValidateTransition(req.Status, workflow.StatusCompleted, actor, req.RequireVerification)
	if err != nil {
		return &req, nil, err
	}

	if actor == workflow.ActorSender && req.SenderID != actorID {
		return &req, nil, workflow.ErrActorNotAllowed
	}

	if req.RequireVerification && !req.Evidence().Complete() {
		return &req, nil, workflow.ErrIncompleteEvidence
	}

	// Lock both profile rows in id order so two completions that share a
	// party cannot deadlock each other.
	firstID, secondID := req.SenderID, req.RecipientID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	var parties []struct {
		ID            string `db:"id"`
		WalletBalance int64  `db:"wallet_balance"`
	}

	query = `
		SELECT id, wallet_balance FROM users
		WHERE id IN ($1, $2) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE`

	err = tx.SelectContext(ctx, &parties, query, firstID, secondID)
	if err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}
	if len(parties) != 2 {
		return &req, nil, ErrProfileNotFound
	}

	var senderBalance int64
	for _, party := range parties {
		if party.ID == req.SenderID {
			senderBalance = party.WalletBalance
		}
	}

	// the authoritative funds check; the one at creation time is advisory
	if senderBalance < req.Amount {
		return &req, nil, workflow.ErrInsufficientFunds
	}

	query = `UPDATE users SET wallet_balance = wallet_balance - $1, updated_at = now() WHERE id = $2`
	if _, err = tx.ExecContext(ctx, query, req.Amount, req.SenderID); err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	query = `UPDATE users SET wallet_balance = wallet_balance + $1, updated_at = now() WHERE id = $2`
	if _, err = tx.ExecContext(ctx, query, req.Amount, req.RecipientID); err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	var completed models.TransferRequest

	// Second compare-and-swap guard on the status write itself.
	query = `
		UPDATE transfer_requests
		SET status = $1, completed_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING *`

	err = tx.GetContext(ctx, &completed, query, workflow.StatusCompleted, req.ID, req.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return &req, nil, workflow.ErrConcurrentModification
	}
	if err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	var entry models.Transaction

	query = `
		INSERT INTO transactions (transfer_request_id, sender_id, recipient_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err = tx.GetContext(ctx, &entry, query, req.ID, req.SenderID, req.RecipientID, req.Amount)
	if err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, asWorkflowInfraErr(err)
	}

	return &completed, &entry, nil
}

func (repo *LedgerRepositoryImpl) GetByRequest(requestID string) (*models.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var entry models.Transaction

	query := `SELECT * FROM transactions WHERE transfer_request_id = $1`

	err := repo.db.GetContext(ctx, &entry, query, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &entry, true, err
}

func (repo *LedgerRepositoryImpl) FindAllForUser(userID string) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var entries []models.Transaction

	query := `
		SELECT * FROM transactions
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC`

	err := repo.db.SelectContext(ctx, &entries, query, userID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// asWorkflowInfraErr maps a blown deadline to the workflow's timeout
// sentinel and passes every other infrastructure error through untouched.
func asWorkflowInfraErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return workflow.ErrTransactionTimeout
	}
	return err
}
