package services

import (
	"context"
	"net/http"

	"github.com/roktosheba/donor-service/internal/compat"
	"github.com/roktosheba/donor-service/internal/models"
	"github.com/roktosheba/donor-service/internal/repository"
	"github.com/roktosheba/donor-service/internal/utils"
)

// RequestService handles the owner-side request operations.
type RequestService struct {
	Requests repository.RequestRepository
	Users    repository.UserRepository
}

// NewRequestService creates a new RequestService.
func NewRequestService(requests repository.RequestRepository, users repository.UserRepository) *RequestService {
	return &RequestService{Requests: requests, Users: users}
}

// Create validates and inserts a new blood request. The owner must exist,
// be email-verified and have a usable profile.
func (s *RequestService) Create(ctx context.Context, input models.RequestInput) (*models.Request, error) {
	if input.UserID == "" || input.PatientName == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "userId and patientName are required")
	}
	userID, err := utils.ParseUserID(input.UserID)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	input.UserID = userID
	if !compat.IsKnownGroup(input.BloodGroup) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid bloodGroup, must be one of the eight ABO/Rh groups")
	}
	if input.UnitsNeeded <= 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "unitsNeeded must be positive")
	}
	if input.RequiredBy.IsZero() {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "requiredBy is required")
	}
	if input.Urgency == "" {
		input.Urgency = models.Normal
	}
	allowedUrgencies := map[models.Urgency]bool{
		models.Normal:   true,
		models.Urgent:   true,
		models.Critical: true,
	}
	if !allowedUrgencies[input.Urgency] {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid urgency, must be 'Normal', 'Urgent' or 'Critical'")
	}

	owner, err := s.Users.GetDonorProfile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !owner.EmailVerified {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.CodeEmailUnverified, "you must verify your email address before posting a request")
	}
	if owner.Name == "" || (owner.Address == "" && owner.Division == nil) {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.CodeValidation, "complete your profile before posting a request")
	}

	return s.Requests.CreateRequest(ctx, input)
}

// Get returns a single request.
func (s *RequestService) Get(ctx context.Context, requestID int64) (*models.Request, error) {
	return s.Requests.GetRequestByID(ctx, requestID)
}

// Edit applies an owner's partial update to a request.
func (s *RequestService) Edit(ctx context.Context, requestID int64, actorID string, updateFields map[string]interface{}) (*models.Request, error) {
	request, err := s.ownedRequest(ctx, requestID, actorID)
	if err != nil {
		return nil, err
	}
	if request.Status == models.ClosedRequest {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeConflict, "a closed request cannot be edited")
	}
	return s.Requests.EditRequest(ctx, requestID, updateFields)
}

// Close marks a request Closed on behalf of its owner.
func (s *RequestService) Close(ctx context.Context, requestID int64, actorID string) (*models.Request, error) {
	if _, err := s.ownedRequest(ctx, requestID, actorID); err != nil {
		return nil, err
	}
	return s.Requests.CloseRequest(ctx, requestID)
}

// ToggleUpvote adds or removes the caller's upvote on a request.
func (s *RequestService) ToggleUpvote(ctx context.Context, requestID int64, userID string) (*models.Request, error) {
	if userID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "userId is required")
	}
	userID, err := utils.ParseUserID(userID)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	exists, err := s.Users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "user does not exist")
	}
	if _, err := s.Requests.GetRequestByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.Requests.ToggleUpvote(ctx, requestID, userID)
}

func (s *RequestService) ownedRequest(ctx context.Context, requestID int64, actorID string) (*models.Request, error) {
	if actorID == "" {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "userId is required")
	}
	request, err := s.Requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != actorID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.CodeAuthorization, "only the request owner can modify this request")
	}
	return request, nil
}
