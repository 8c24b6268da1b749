package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/roktosheba/donor-service/internal/compat"
	"github.com/roktosheba/donor-service/internal/models"
	"github.com/roktosheba/donor-service/internal/repository"
	"github.com/roktosheba/donor-service/internal/utils"
)

// CooldownDays is the minimum number of calendar days between a donor's
// confirmed donations.
const CooldownDays = 90

// EligibilityResult is the outcome of the donor eligibility check.
type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func ineligible(code, reason string) EligibilityResult {
	return EligibilityResult{Eligible: false, Code: code, Reason: reason}
}

// CheckEligibility decides whether a donor may respond to a request. The
// checks run in a fixed order and the first failure wins; every failure
// carries a stable code and a user-facing reason. acceptedCount is the count
// of Accepted responses, not the cached donors_assigned column.
func CheckEligibility(donor *models.DonorProfile, request *models.Request, existing *models.DonorResponse, acceptedCount int, now time.Time) EligibilityResult {
	if !donor.EmailVerified {
		return ineligible(models.CodeEmailUnverified, "you must verify your email address before responding")
	}

	if donor.Application == nil || donor.Application.Status != models.ApprovedApplication {
		if donor.Application != nil && donor.Application.Status == models.PendingApplication {
			return ineligible(models.CodeDonorNotApproved, "your donor application is still pending review")
		}
		return ineligible(models.CodeDonorNotApproved, "you need an approved donor application to respond")
	}

	if request.UserID == donor.UserID {
		return ineligible(models.CodeOwnRequest, "you cannot respond to your own request")
	}

	if request.Status != models.OpenRequest && request.Status != models.PendingRequest {
		return ineligible(models.CodeRequestNotOpen, "this request is no longer accepting donors")
	}

	if request.UnitsNeeded > 0 && float64(acceptedCount) >= request.UnitsNeeded {
		return ineligible(models.CodeCapacityReached, models.MsgCapacityReached)
	}

	if existing != nil {
		return ineligible(models.CodeAlreadyResponded, models.MsgAlreadyResponded)
	}

	if !compat.CanDonate(donor.BloodGroup, request.BloodGroup) {
		return ineligible(models.CodeIncompatible,
			fmt.Sprintf("your blood group %s cannot donate to %s", donor.BloodGroup, request.BloodGroup))
	}

	if donor.Application.LastDonationDate != nil {
		resumeOn := donor.Application.LastDonationDate.AddDate(0, 0, CooldownDays)
		if now.Before(resumeOn) {
			daysLeft := int(math.Ceil(resumeOn.Sub(now).Hours() / 24))
			plural := "days"
			if daysLeft == 1 {
				plural = "day"
			}
			return ineligible(models.CodeCooldownActive,
				fmt.Sprintf("you must wait %d more %s; you can donate again on %s", daysLeft, plural, resumeOn.Format("2 January 2006")))
		}
	}

	return EligibilityResult{Eligible: true}
}

// EligibilityService answers "can this donor respond to this request" by
// gathering the inputs CheckEligibility needs.
type EligibilityService struct {
	Requests  repository.RequestRepository
	Responses repository.ResponseRepository
	Users     repository.UserRepository
}

// NewEligibilityService creates a new EligibilityService.
func NewEligibilityService(requests repository.RequestRepository, responses repository.ResponseRepository, users repository.UserRepository) *EligibilityService {
	return &EligibilityService{Requests: requests, Responses: responses, Users: users}
}

// CanRespond runs the eligibility check for a donor against a request.
func (s *EligibilityService) CanRespond(ctx context.Context, donorID string, requestID int64) (*EligibilityResult, error) {
	donorID, err := utils.ParseUserID(donorID)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	donor, err := s.Users.GetDonorProfile(ctx, donorID)
	if err != nil {
		return nil, err
	}
	request, err := s.Requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Responses.FindResponse(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}
	acceptedCount, err := s.Responses.CountAccepted(ctx, requestID)
	if err != nil {
		return nil, err
	}

	result := CheckEligibility(donor, request, existing, acceptedCount, time.Now().UTC())
	return &result, nil
}
