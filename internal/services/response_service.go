package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/roktosheba/donor-service/internal/models"
	"github.com/roktosheba/donor-service/internal/notify"
	"github.com/roktosheba/donor-service/internal/repository"
	"github.com/roktosheba/donor-service/internal/utils"
)

// ResponseService runs the donor response lifecycle: create a Pending offer,
// then let the request owner accept or decline it.
type ResponseService struct {
	Responses repository.ResponseRepository
	Requests  repository.RequestRepository
	Users     repository.UserRepository
	Notifier  notify.Notifier
	Mailer    notify.Mailer
	Logger    *log.Logger
}

// NewResponseService creates a new ResponseService.
func NewResponseService(responses repository.ResponseRepository, requests repository.RequestRepository, users repository.UserRepository, notifier notify.Notifier, mailer notify.Mailer, logger *log.Logger) *ResponseService {
	return &ResponseService{
		Responses: responses,
		Requests:  requests,
		Users:     users,
		Notifier:  notifier,
		Mailer:    mailer,
		Logger:    logger,
	}
}

// Create inserts a Pending response after the full eligibility gate. The
// storage layer re-checks capacity and the unique pair under a transaction,
// so a pre-check that passes here can still lose the race and come back as
// the same "already responded" or capacity message.
func (s *ResponseService) Create(ctx context.Context, input models.ResponseInput) (*models.DonorResponse, error) {
	if input.RequestID <= 0 || input.DonorID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "requestId and donorId are required")
	}
	donorID, err := utils.ParseUserID(input.DonorID)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	input.DonorID = donorID

	donor, err := s.Users.GetDonorProfile(ctx, input.DonorID)
	if err != nil {
		return nil, err
	}
	request, err := s.Requests.GetRequestByID(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Responses.FindResponse(ctx, input.RequestID, input.DonorID)
	if err != nil {
		return nil, err
	}
	acceptedCount, err := s.Responses.CountAccepted(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}

	result := CheckEligibility(donor, request, existing, acceptedCount, time.Now().UTC())
	if !result.Eligible {
		return nil, models.NewErrorResponse(eligibilityStatus(result.Code), result.Code, result.Reason)
	}

	response, err := s.Responses.CreateResponse(ctx, input)
	if err != nil {
		return nil, err
	}

	s.fireAndForget(func(ctx context.Context) error {
		message := fmt.Sprintf("%s has offered to donate %s blood for %s", donor.Name, request.BloodGroup, request.PatientName)
		return s.Notifier.NotifyUser(ctx, request.UserID, message, requestLink(request.ID))
	})

	return response, nil
}

// Transition applies the owner's Accepted/Declined decision to a response.
// Re-sending the current status is an idempotent no-op that still returns
// the current counts.
func (s *ResponseService) Transition(ctx context.Context, responseID int64, next models.ResponseStatus, actorID string) (*models.TransitionResult, error) {
	if actorID == "" {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "userId is required")
	}

	allowedDecision := map[models.ResponseStatus]bool{
		models.AcceptedResponse: true,
		models.DeclinedResponse: true,
	}
	if !allowedDecision[next] {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid decision, must be either 'Accepted' or 'Declined'")
	}

	response, err := s.Responses.GetResponseByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	request, err := s.Requests.GetRequestByID(ctx, response.RequestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != actorID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.CodeAuthorization, "only the request owner can decide on responses")
	}

	if response.Status == next {
		acceptedCount, err := s.Responses.CountAccepted(ctx, response.RequestID)
		if err != nil {
			return nil, err
		}
		return &models.TransitionResult{
			Response:      *response,
			AcceptedCount: acceptedCount,
			RequestStatus: request.Status,
		}, nil
	}
	if response.Status != models.PendingResponse {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeConflict,
			fmt.Sprintf("response is already %s and cannot change", response.Status))
	}

	result, err := s.Responses.TransitionResponse(ctx, responseID, next, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.notifyDecision(request, result)
	return result, nil
}

// notifyDecision runs the post-commit side effects of an owner decision:
// tell the donor, and on Accept share contact details both ways by email.
func (s *ResponseService) notifyDecision(request *models.Request, result *models.TransitionResult) {
	donorID := result.Response.DonorID

	s.fireAndForget(func(ctx context.Context) error {
		var message string
		if result.Response.Status == models.AcceptedResponse {
			message = fmt.Sprintf("your offer to donate for %s was accepted", request.PatientName)
		} else {
			message = fmt.Sprintf("your offer to donate for %s was declined", request.PatientName)
		}
		return s.Notifier.NotifyUser(ctx, donorID, message, requestLink(request.ID))
	})

	if result.Response.Status != models.AcceptedResponse {
		return
	}

	s.fireAndForget(func(ctx context.Context) error {
		donor, err := s.Users.GetDonorProfile(ctx, donorID)
		if err != nil {
			return err
		}
		owner, err := s.Users.GetDonorProfile(ctx, request.UserID)
		if err != nil {
			return err
		}

		subject := fmt.Sprintf("Donation confirmed for %s", request.PatientName)
		if err := s.Mailer.SendAcceptanceEmail(ctx, donor.Email, subject,
			fmt.Sprintf("Your offer was accepted. Requester: %s <%s>. Hospital: %s.", owner.Name, owner.Email, request.Hospital)); err != nil {
			return err
		}
		return s.Mailer.SendAcceptanceEmail(ctx, owner.Email, subject,
			fmt.Sprintf("You accepted a donor. Donor: %s <%s>, blood group %s.", donor.Name, donor.Email, donor.BloodGroup))
	})
}

// ListByRequest returns the responses on a request; owner only.
func (s *ResponseService) ListByRequest(ctx context.Context, requestID int64, actorID string) ([]models.DonorResponse, error) {
	request, err := s.Requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != actorID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.CodeAuthorization, "only the request owner can view responses")
	}
	return s.Responses.ListByRequest(ctx, requestID)
}

// ListByDonor returns the donor's own responses.
func (s *ResponseService) ListByDonor(ctx context.Context, donorID string) ([]models.DonorResponse, error) {
	if donorID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "userId is required")
	}
	donorID, err := utils.ParseUserID(donorID)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	exists, err := s.Users.UserExists(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "user does not exist")
	}
	return s.Responses.ListByDonor(ctx, donorID)
}

// fireAndForget runs a side effect detached from the request: failures are
// logged, never returned, and the caller does not wait.
func (s *ResponseService) fireAndForget(effect func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := effect(ctx); err != nil {
			s.Logger.Printf("side effect failed: %v", err)
		}
	}()
}

// eligibilityStatus maps an eligibility code to an HTTP status.
func eligibilityStatus(code string) int {
	switch code {
	case models.CodeRequestNotOpen, models.CodeCapacityReached, models.CodeAlreadyResponded:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

func requestLink(requestID int64) string {
	return fmt.Sprintf("/requests/%d", requestID)
}
