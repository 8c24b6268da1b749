package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roktosheba/donor-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const responseColumns = `id, request_id, donor_id, status, accepted_at, created_at`

// ResponseRepository is the storage interface for donor responses.
type ResponseRepository interface {
	CreateResponse(ctx context.Context, input models.ResponseInput) (*models.DonorResponse, error)
	GetResponseByID(ctx context.Context, responseID int64) (*models.DonorResponse, error)
	FindResponse(ctx context.Context, requestID int64, donorID string) (*models.DonorResponse, error)
	CountAccepted(ctx context.Context, requestID int64) (int, error)
	TransitionResponse(ctx context.Context, responseID int64, next models.ResponseStatus, now time.Time) (*models.TransitionResult, error)
	ListByRequest(ctx context.Context, requestID int64) ([]models.DonorResponse, error)
	ListByDonor(ctx context.Context, donorID string) ([]models.DonorResponse, error)
}

// PostgresResponseRepository implements ResponseRepository against Postgres.
type PostgresResponseRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresResponseRepository creates a new PostgresResponseRepository.
func NewPostgresResponseRepository(db *pgxpool.Pool) *PostgresResponseRepository {
	return &PostgresResponseRepository{DB: db}
}

// CreateResponse inserts a Pending response. The capacity re-check and the
// insert run in one transaction with the request row locked, so two donors
// cannot both take the last slot. A unique-pair violation from a lost race
// maps to the same "already responded" message as the pre-check.
func (r *PostgresResponseRepository) CreateResponse(ctx context.Context, input models.ResponseInput) (*models.DonorResponse, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var unitsNeeded float64
	var status models.RequestStatus
	lockQuery := `SELECT units_needed, status FROM blood_requests WHERE id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, lockQuery, input.RequestID).Scan(&unitsNeeded, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
		}
		return nil, err
	}

	if status != models.OpenRequest && status != models.PendingRequest {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeRequestNotOpen, "this request is no longer accepting donors")
	}

	var acceptedCount int
	countQuery := `SELECT COUNT(*) FROM donor_responses WHERE request_id = $1 AND status = $2`
	if err = tx.QueryRow(ctx, countQuery, input.RequestID, models.AcceptedResponse).Scan(&acceptedCount); err != nil {
		return nil, err
	}
	if unitsNeeded > 0 && float64(acceptedCount) >= unitsNeeded {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeCapacityReached, models.MsgCapacityReached)
	}

	newResponse := models.DonorResponse{
		RequestID: input.RequestID,
		DonorID:   input.DonorID,
		Status:    models.PendingResponse,
		CreatedAt: time.Now().UTC(),
	}
	insertQuery := `INSERT INTO donor_responses (request_id, donor_id, status, created_at)
	                VALUES ($1, $2, $3, $4) RETURNING id`
	err = tx.QueryRow(ctx, insertQuery, newResponse.RequestID, newResponse.DonorID, newResponse.Status, newResponse.CreatedAt).Scan(&newResponse.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeAlreadyResponded, models.MsgAlreadyResponded)
		}
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &newResponse, nil
}

// GetResponseByID returns a response by id.
func (r *PostgresResponseRepository) GetResponseByID(ctx context.Context, responseID int64) (*models.DonorResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM donor_responses WHERE id = $1`
	response, err := scanResponse(r.DB.QueryRow(ctx, query, responseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "response not found")
		}
		return nil, err
	}
	return response, nil
}

// FindResponse returns the response for a (request, donor) pair, or nil when
// there is none.
func (r *PostgresResponseRepository) FindResponse(ctx context.Context, requestID int64, donorID string) (*models.DonorResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM donor_responses WHERE request_id = $1 AND donor_id = $2`
	response, err := scanResponse(r.DB.QueryRow(ctx, query, requestID, donorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return response, nil
}

// CountAccepted counts the accepted responses for a request. This count, not
// the cached donors_assigned column, is the source of truth for capacity.
func (r *PostgresResponseRepository) CountAccepted(ctx context.Context, requestID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM donor_responses WHERE request_id = $1 AND status = $2`
	err := r.DB.QueryRow(ctx, query, requestID, models.AcceptedResponse).Scan(&count)
	return count, err
}

// TransitionResponse moves a Pending response to Accepted or Declined and, in
// the same transaction, recomputes the request's accepted count, resolves its
// status and stamps the donor's last confirmed donation on Accept. The status
// and capacity checks repeat under the row locks: the service's pre-checks
// read without locking and can lose a race against a concurrent decision.
func (r *PostgresResponseRepository) TransitionResponse(ctx context.Context, responseID int64, next models.ResponseStatus, now time.Time) (*models.TransitionResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	response, err := scanResponse(tx.QueryRow(ctx, `SELECT `+responseColumns+` FROM donor_responses WHERE id = $1 FOR UPDATE`, responseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "response not found")
		}
		return nil, err
	}

	var unitsNeeded float64
	var requestStatus models.RequestStatus
	lockQuery := `SELECT units_needed, status FROM blood_requests WHERE id = $1 FOR UPDATE`
	if err = tx.QueryRow(ctx, lockQuery, response.RequestID).Scan(&unitsNeeded, &requestStatus); err != nil {
		return nil, err
	}

	var acceptedCount int
	countQuery := `SELECT COUNT(*) FROM donor_responses WHERE request_id = $1 AND status = $2`
	if err = tx.QueryRow(ctx, countQuery, response.RequestID, models.AcceptedResponse).Scan(&acceptedCount); err != nil {
		return nil, err
	}

	if response.Status == next {
		return &models.TransitionResult{
			Response:      *response,
			AcceptedCount: acceptedCount,
			RequestStatus: requestStatus,
		}, nil
	}
	if response.Status != models.PendingResponse {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeConflict,
			fmt.Sprintf("response is already %s and cannot change", response.Status))
	}

	if next == models.AcceptedResponse {
		// Pending offers may outnumber the open slots, so accepting one
		// must re-check capacity against the locked request row.
		if unitsNeeded > 0 && float64(acceptedCount) >= unitsNeeded {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeCapacityReached, models.MsgCapacityReached)
		}

		// The donor's approval is re-validated at decision time; applications
		// can be revoked between the offer and the decision.
		var applicationStatus models.ApplicationStatus
		appQuery := `SELECT status FROM donor_applications WHERE user_id = $1 FOR UPDATE`
		err = tx.QueryRow(ctx, appQuery, response.DonorID).Scan(&applicationStatus)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if applicationStatus != models.ApprovedApplication {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeDonorNotApproved, "the donor's application is no longer approved")
		}

		stampQuery := `UPDATE donor_applications SET last_donation_date = $1, updated_at = $1 WHERE user_id = $2`
		if _, err = tx.Exec(ctx, stampQuery, now, response.DonorID); err != nil {
			return nil, err
		}
	}

	var acceptedAt *time.Time
	if next == models.AcceptedResponse {
		acceptedAt = &now
	}
	updateQuery := `UPDATE donor_responses SET status = $1, accepted_at = $2 WHERE id = $3`
	if _, err = tx.Exec(ctx, updateQuery, next, acceptedAt, responseID); err != nil {
		return nil, err
	}
	response.Status = next
	response.AcceptedAt = acceptedAt

	if err = tx.QueryRow(ctx, countQuery, response.RequestID, models.AcceptedResponse).Scan(&acceptedCount); err != nil {
		return nil, err
	}

	resolvedStatus := models.ResolveRequestStatus(acceptedCount, unitsNeeded, requestStatus)
	requestUpdate := `UPDATE blood_requests SET donors_assigned = $1, status = $2, updated_at = now() WHERE id = $3`
	if _, err = tx.Exec(ctx, requestUpdate, acceptedCount, resolvedStatus, response.RequestID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.TransitionResult{
		Response:      *response,
		AcceptedCount: acceptedCount,
		RequestStatus: resolvedStatus,
	}, nil
}

// ListByRequest returns all responses on a request, oldest first.
func (r *PostgresResponseRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.DonorResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM donor_responses WHERE request_id = $1 ORDER BY id`
	return r.queryResponses(ctx, query, requestID)
}

// ListByDonor returns all responses made by a donor, newest first.
func (r *PostgresResponseRepository) ListByDonor(ctx context.Context, donorID string) ([]models.DonorResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM donor_responses WHERE donor_id = $1 ORDER BY id DESC`
	return r.queryResponses(ctx, query, donorID)
}

func (r *PostgresResponseRepository) queryResponses(ctx context.Context, query string, args ...interface{}) ([]models.DonorResponse, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []models.DonorResponse
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *response)
	}
	return responses, rows.Err()
}

func scanResponse(row pgx.Row) (*models.DonorResponse, error) {
	var response models.DonorResponse
	err := row.Scan(
		&response.ID,
		&response.RequestID,
		&response.DonorID,
		&response.Status,
		&response.AcceptedAt,
		&response.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &response, nil
}
