package repository

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/roktosheba/donor-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the read interface over the user directory.
type UserRepository interface {
	GetDonorProfile(ctx context.Context, userID string) (*models.DonorProfile, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// PostgresUserRepository implements UserRepository against Postgres.
type PostgresUserRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// GetDonorProfile reads the profile fields relevant to eligibility and
// scoring: verification flag, blood group, address, the three region tiers
// and the donor application.
func (r *PostgresUserRepository) GetDonorProfile(ctx context.Context, userID string) (*models.DonorProfile, error) {
	query := `
		SELECT u.id, u.name, u.email, u.email_verified, COALESCE(u.blood_group, ''), u.address,
		       dv.id, dv.name, dv.lat, dv.lng,
		       dt.id, dt.name, dt.lat, dt.lng,
		       up.id, up.name, up.lat, up.lng,
		       da.status, da.last_donation_date, da.updated_at
		FROM users u
		LEFT JOIN divisions dv ON u.division_id = dv.id
		LEFT JOIN districts dt ON u.district_id = dt.id
		LEFT JOIN upazilas up ON u.upazila_id = up.id
		LEFT JOIN donor_applications da ON da.user_id = u.id
		WHERE u.id = $1`

	var profile models.DonorProfile
	var dvID, dtID, upID *int64
	var dvName, dtName, upName *string
	var dvLat, dvLng, dtLat, dtLng, upLat, upLng *float64
	var application models.DonorApplication
	var appStatus *string
	var appUpdated *time.Time

	err := r.DB.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Name,
		&profile.Email,
		&profile.EmailVerified,
		&profile.BloodGroup,
		&profile.Address,
		&dvID, &dvName, &dvLat, &dvLng,
		&dtID, &dtName, &dtLat, &dtLng,
		&upID, &upName, &upLat, &upLng,
		&appStatus,
		&application.LastDonationDate,
		&appUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "user does not exist")
		}
		return nil, err
	}

	profile.Division = newRegion(dvID, dvName, dvLat, dvLng)
	profile.District = newRegion(dtID, dtName, dtLat, dtLng)
	profile.Upazila = newRegion(upID, upName, upLat, upLng)

	if appStatus != nil {
		application.UserID = profile.UserID
		application.Status = models.ApplicationStatus(*appStatus)
		if appUpdated != nil {
			application.UpdatedAt = *appUpdated
		}
		profile.Application = &application
	}
	return &profile, nil
}

// UserExists reports whether a user with the given id exists.
func (r *PostgresUserRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	err := r.DB.QueryRow(ctx, query, userID).Scan(&exists)
	return exists, err
}
