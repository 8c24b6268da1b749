package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/roktosheba/donor-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// requestColumns is the select list shared by every request query, including
// the three LEFT JOINed region tiers.
const requestColumns = `
	r.id, r.user_id, r.patient_name, r.gender, r.required_by, r.blood_group,
	r.units_needed, r.hospital, r.location, r.lat, r.lng, r.urgency, r.status,
	r.upvote_count, r.donors_assigned, r.created_at, r.updated_at,
	dv.id, dv.name, dv.lat, dv.lng,
	dt.id, dt.name, dt.lat, dt.lng,
	up.id, up.name, up.lat, up.lng`

const requestFrom = `
	FROM blood_requests r
	LEFT JOIN divisions dv ON r.division_id = dv.id
	LEFT JOIN districts dt ON r.district_id = dt.id
	LEFT JOIN upazilas up ON r.upazila_id = up.id`

// RequestRepository is the storage interface for blood requests.
type RequestRepository interface {
	GetFeedWindow(ctx context.Context, filters models.FeedFilters, cursor *int64, limit int) ([]models.Request, error)
	CountSince(ctx context.Context, filters models.FeedFilters, sinceID int64) (int, error)
	GetSince(ctx context.Context, filters models.FeedFilters, sinceID int64) ([]models.Request, error)
	CreateRequest(ctx context.Context, input models.RequestInput) (*models.Request, error)
	GetRequestByID(ctx context.Context, requestID int64) (*models.Request, error)
	EditRequest(ctx context.Context, requestID int64, updateFields map[string]interface{}) (*models.Request, error)
	CloseRequest(ctx context.Context, requestID int64) (*models.Request, error)
	ToggleUpvote(ctx context.Context, requestID int64, userID string) (*models.Request, error)
}

// PostgresRequestRepository implements RequestRepository against Postgres.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRequestRepository creates a new PostgresRequestRepository.
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

// feedFilterClauses builds WHERE clauses for the optional feed filters.
func feedFilterClauses(filters models.FeedFilters, argIndex int) ([]string, []interface{}, int) {
	var clauses []string
	var args []interface{}

	if len(filters.BloodGroups) > 0 {
		clauses = append(clauses, fmt.Sprintf("r.blood_group = ANY($%d)", argIndex))
		args = append(args, pq.Array(filters.BloodGroups))
		argIndex++
	}
	if len(filters.Urgencies) > 0 {
		clauses = append(clauses, fmt.Sprintf("r.urgency = ANY($%d)", argIndex))
		args = append(args, pq.Array(filters.Urgencies))
		argIndex++
	}
	return clauses, args, argIndex
}

// GetFeedWindow returns up to limit requests in descending id order,
// restricted to ids before the cursor when one is given.
func (r *PostgresRequestRepository) GetFeedWindow(ctx context.Context, filters models.FeedFilters, cursor *int64, limit int) ([]models.Request, error) {
	clauses, args, argIndex := feedFilterClauses(filters, 1)

	if cursor != nil {
		clauses = append(clauses, fmt.Sprintf("r.id < $%d", argIndex))
		args = append(args, *cursor)
		argIndex++
	}

	query := "SELECT" + requestColumns + requestFrom
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY r.id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	return r.queryRequests(ctx, query, args...)
}

// CountSince counts requests inserted after the given id.
func (r *PostgresRequestRepository) CountSince(ctx context.Context, filters models.FeedFilters, sinceID int64) (int, error) {
	clauses, args, argIndex := feedFilterClauses(filters, 1)
	clauses = append(clauses, fmt.Sprintf("r.id > $%d", argIndex))
	args = append(args, sinceID)

	query := "SELECT COUNT(*) FROM blood_requests r WHERE " + strings.Join(clauses, " AND ")

	var count int
	if err := r.DB.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetSince returns all requests inserted after the given id, newest first.
func (r *PostgresRequestRepository) GetSince(ctx context.Context, filters models.FeedFilters, sinceID int64) ([]models.Request, error) {
	clauses, args, argIndex := feedFilterClauses(filters, 1)
	clauses = append(clauses, fmt.Sprintf("r.id > $%d", argIndex))
	args = append(args, sinceID)

	query := "SELECT" + requestColumns + requestFrom +
		" WHERE " + strings.Join(clauses, " AND ") + " ORDER BY r.id DESC"

	return r.queryRequests(ctx, query, args...)
}

// CreateRequest inserts a new blood request.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, input models.RequestInput) (*models.Request, error) {
	now := time.Now().UTC()
	insertQuery := `
		INSERT INTO blood_requests (user_id, patient_name, gender, required_by, blood_group,
		                            units_needed, hospital, location, lat, lng,
		                            division_id, district_id, upazila_id, urgency, status,
		                            created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id`
	var requestID int64
	err := r.DB.QueryRow(
		ctx,
		insertQuery,
		input.UserID,
		input.PatientName,
		input.Gender,
		input.RequiredBy,
		input.BloodGroup,
		input.UnitsNeeded,
		input.Hospital,
		input.Location,
		input.Lat,
		input.Lng,
		input.DivisionID,
		input.DistrictID,
		input.UpazilaID,
		input.Urgency,
		models.OpenRequest,
		now).Scan(&requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	return r.GetRequestByID(ctx, requestID)
}

// GetRequestByID returns a request with its region tiers.
func (r *PostgresRequestRepository) GetRequestByID(ctx context.Context, requestID int64) (*models.Request, error) {
	query := "SELECT" + requestColumns + requestFrom + " WHERE r.id = $1"
	request, err := scanRequest(r.DB.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
		}
		return nil, err
	}
	return request, nil
}

// EditRequest updates the editable fields of a request.
func (r *PostgresRequestRepository) EditRequest(ctx context.Context, requestID int64, updateFields map[string]interface{}) (*models.Request, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	if patientName, ok := updateFields["patientName"].(string); ok && patientName != "" {
		updates = append(updates, fmt.Sprintf("patient_name = $%d", argIndex))
		args = append(args, patientName)
		argIndex++
	}
	if hospital, ok := updateFields["hospital"].(string); ok && hospital != "" {
		updates = append(updates, fmt.Sprintf("hospital = $%d", argIndex))
		args = append(args, hospital)
		argIndex++
	}
	if location, ok := updateFields["location"].(string); ok && location != "" {
		updates = append(updates, fmt.Sprintf("location = $%d", argIndex))
		args = append(args, location)
		argIndex++
	}
	if units, ok := updateFields["unitsNeeded"].(float64); ok && units > 0 {
		updates = append(updates, fmt.Sprintf("units_needed = $%d", argIndex))
		args = append(args, units)
		argIndex++
	}
	if urgency, ok := updateFields["urgency"].(string); ok && urgency != "" {
		allowedUrgencies := map[models.Urgency]bool{
			models.Normal:   true,
			models.Urgent:   true,
			models.Critical: true,
		}
		if !allowedUrgencies[models.Urgency(urgency)] {
			return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, fmt.Sprintf("invalid urgency parameter: %s", urgency))
		}
		updates = append(updates, fmt.Sprintf("urgency = $%d", argIndex))
		args = append(args, urgency)
		argIndex++
	}
	if requiredBy, ok := updateFields["requiredBy"].(string); ok && requiredBy != "" {
		parsed, err := time.Parse(time.RFC3339, requiredBy)
		if err != nil {
			return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid requiredBy parameter, must be RFC 3339")
		}
		updates = append(updates, fmt.Sprintf("required_by = $%d", argIndex))
		args = append(args, parsed)
		argIndex++
	}

	if len(updates) == 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "no valid fields to update")
	}

	updates = append(updates, "updated_at = now()")
	updateQuery := fmt.Sprintf("UPDATE blood_requests SET %s WHERE id = $%d", strings.Join(updates, ", "), argIndex)
	args = append(args, requestID)

	if _, err := r.DB.Exec(ctx, updateQuery, args...); err != nil {
		return nil, err
	}
	return r.GetRequestByID(ctx, requestID)
}

// CloseRequest marks a request Closed.
func (r *PostgresRequestRepository) CloseRequest(ctx context.Context, requestID int64) (*models.Request, error) {
	updateQuery := `UPDATE blood_requests SET status = $1, updated_at = now() WHERE id = $2`
	if _, err := r.DB.Exec(ctx, updateQuery, models.ClosedRequest, requestID); err != nil {
		return nil, err
	}
	return r.GetRequestByID(ctx, requestID)
}

// ToggleUpvote inserts or removes the caller's upvote and recomputes the
// cached upvote_count in the same transaction as the row change.
func (r *PostgresRequestRepository) ToggleUpvote(ctx context.Context, requestID int64, userID string) (*models.Request, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	existsQuery := `SELECT EXISTS(SELECT 1 FROM request_upvotes WHERE request_id = $1 AND user_id = $2)`
	if err = tx.QueryRow(ctx, existsQuery, requestID, userID).Scan(&exists); err != nil {
		return nil, err
	}

	if exists {
		_, err = tx.Exec(ctx, `DELETE FROM request_upvotes WHERE request_id = $1 AND user_id = $2`, requestID, userID)
	} else {
		_, err = tx.Exec(ctx, `INSERT INTO request_upvotes (request_id, user_id) VALUES ($1, $2)`, requestID, userID)
	}
	if err != nil {
		return nil, err
	}

	recountQuery := `
		UPDATE blood_requests
		SET upvote_count = (SELECT COUNT(*) FROM request_upvotes WHERE request_id = $1),
		    updated_at = now()
		WHERE id = $1`
	if _, err = tx.Exec(ctx, recountQuery, requestID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetRequestByID(ctx, requestID)
}

func (r *PostgresRequestRepository) queryRequests(ctx context.Context, query string, args ...interface{}) ([]models.Request, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, rows.Err()
}

// scanRequest reads one joined request row, folding the nullable region
// columns into Region values.
func scanRequest(row pgx.Row) (*models.Request, error) {
	var request models.Request
	var dvID, dtID, upID *int64
	var dvName, dtName, upName *string
	var dvLat, dvLng, dtLat, dtLng, upLat, upLng *float64

	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.PatientName,
		&request.Gender,
		&request.RequiredBy,
		&request.BloodGroup,
		&request.UnitsNeeded,
		&request.Hospital,
		&request.Location,
		&request.Lat,
		&request.Lng,
		&request.Urgency,
		&request.Status,
		&request.UpvoteCount,
		&request.DonorsAssigned,
		&request.CreatedAt,
		&request.UpdatedAt,
		&dvID, &dvName, &dvLat, &dvLng,
		&dtID, &dtName, &dtLat, &dtLng,
		&upID, &upName, &upLat, &upLng,
	)
	if err != nil {
		return nil, err
	}

	request.Division = newRegion(dvID, dvName, dvLat, dvLng)
	request.District = newRegion(dtID, dtName, dtLat, dtLng)
	request.Upazila = newRegion(upID, upName, upLat, upLng)
	return &request, nil
}

func newRegion(id *int64, name *string, lat, lng *float64) *models.Region {
	if id == nil {
		return nil
	}
	region := &models.Region{ID: *id, Lat: lat, Lng: lng}
	if name != nil {
		region.Name = *name
	}
	return region
}
