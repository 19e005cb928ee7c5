// Transfer request rows are only ever mutated through the compare-and-swap
// updates below. Each update names the status it expects to find, so a
// transition that lost a race fails cleanly instead of overwriting a
// terminal state.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/workflow"
)

type TransferRepository interface {
	Insert(req *models.TransferRequest, tx *sqlx.Tx) (*models.TransferRequest, error)
	GetOne(id string) (*models.TransferRequest, bool, error)
	FindByReference(reference string) (*models.TransferRequest, bool, error)
	FindPendingFor(userID string) ([]models.TransferRequest, error)
	FindHistoryFor(userID string) ([]models.TransferRequest, error)

	// MarkVerified attaches evidence and moves pending -> verified in one
	// statement. There is no window where the status is verified but the
	// evidence columns are empty.
	MarkVerified(id string, evidence workflow.Evidence) (*models.TransferRequest, error)

	// Cancel moves pending or verified -> cancelled. No balance effect.
	Cancel(id string) (*models.TransferRequest, error)
}

type TransferRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) TransferRepository {
	return &TransferRepositoryImpl{db: db}
}

func (repo *TransferRepositoryImpl) Insert(req *models.TransferRequest, tx *sqlx.Tx) (*models.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created models.TransferRequest

	query := `
		INSERT INTO transfer_requests (reference, sender_id, recipient_id, amount, require_verification)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	if tx != nil {
		err := tx.GetContext(ctx, &created, query,
			req.Reference,
			req.SenderID,
			req.RecipientID,
			req.Amount,
			req.RequireVerification,
		)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &created, query,
			req.Reference,
			req.SenderID,
			req.RecipientID,
			req.Amount,
			req.RequireVerification,
		)
		if err != nil {
			return nil, err
		}
	}

	return &created, nil
}

func (repo *TransferRepositoryImpl) GetOne(id string) (*models.TransferRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var req models.TransferRequest

	query := `SELECT * FROM transfer_requests WHERE id = $1`

	err := repo.db.GetContext(ctx, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &req, true, err
}

func (repo *TransferRepositoryImpl) FindByReference(reference string) (*models.TransferRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var req models.TransferRequest

	query := `SELECT * FROM transfer_requests WHERE reference = $1`

	err := repo.db.GetContext(ctx, &req, query, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &req, true, err
}

// FindPendingFor returns the requests that still need action from either
// party, newest first. This list drives UI only; completion never trusts it.
func (repo *TransferRepositoryImpl) FindPendingFor(userID string) ([]models.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var reqs []models.TransferRequest

	query := `
		SELECT * FROM transfer_requests
		WHERE (sender_id = $1 OR recipient_id = $1) AND status IN ($2, $3)
		ORDER BY created_at DESC`

	err := repo.db.SelectContext(ctx, &reqs, query, userID, workflow.StatusPending, workflow.StatusVerified)
	if err != nil {
		return nil, err
	}

	return reqs, nil
}

func (repo *TransferRepositoryImpl) FindHistoryFor(userID string) ([]models.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var reqs []models.TransferRequest

	query := `
		SELECT * FROM transfer_requests
		WHERE (sender_id = $1 OR recipient_id = $1) AND status IN ($2, $3)
		ORDER BY created_at DESC`

	err := repo.db.SelectContext(ctx, &reqs, query, userID, workflow.StatusCompleted, workflow.StatusCancelled)
	if err != nil {
		return nil, err
	}

	return reqs, nil
}

func (repo *TransferRepositoryImpl) MarkVerified(id string, evidence workflow.Evidence) (*models.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var updated models.TransferRequest

	query := `
		UPDATE transfer_requests
		SET status = $1, selfie_url = $2, latitude = $3, longitude = $4,
		    location_captured_at = $5, verified_at = now(), updated_at = now()
		WHERE id = $6 AND status = $7 AND require_verification = TRUE
		RETURNING *`

	err := repo.db.GetContext(ctx, &updated, query,
		workflow.StatusVerified,
		evidence.SelfieURL,
		evidence.Latitude,
		evidence.Longitude,
		evidence.CapturedAt,
		id,
		workflow.StatusPending,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.classifyLostUpdate(id, workflow.StatusPending)
	}
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (repo *TransferRepositoryImpl) Cancel(id string) (*models.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var updated models.TransferRequest

	query := `
		UPDATE transfer_requests
		SET status = $1, updated_at = now()
		WHERE id = $2 AND (status = $3 OR status = $4)
		RETURNING *`

	err := repo.db.GetContext(ctx, &updated, query,
		workflow.StatusCancelled,
		id,
		workflow.StatusPending,
		workflow.StatusVerified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.classifyLostUpdate(id, workflow.StatusPending)
	}
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// classifyLostUpdate re-reads the row after a compare-and-swap matched
// nothing, so the caller can tell "already finished" from "someone else got
// there first" from "never existed". The current row is returned alongside
// the error so the client can refresh its view.
func (repo *TransferRepositoryImpl) classifyLostUpdate(id string, expected workflow.Status) (*models.TransferRequest, error) {
	current, found, err := repo.GetOne(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if current.Status.Terminal() {
		return current, workflow.ErrAlreadyFinalized
	}
	if current.Status != expected {
		return current, workflow.ErrConcurrentModification
	}

	// Status still matches but the update touched nothing; the row must
	// not have satisfied the remaining guards (e.g. verification not
	// required on this request).
	return current, workflow.ErrIllegalTransition
}
