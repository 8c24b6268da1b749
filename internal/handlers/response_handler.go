package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/roktosheba/donor-service/internal/models"
	"github.com/roktosheba/donor-service/internal/services"
	"github.com/roktosheba/donor-service/internal/utils"
)

// ResponseHandler handles the donor response endpoints.
type ResponseHandler struct {
	Service *services.ResponseService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(service *services.ResponseService, logger *log.Logger, timeout time.Duration) *ResponseHandler {
	return &ResponseHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *ResponseHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	if errorResponse, ok := err.(*models.ErrorResponse); ok {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Code, errorResponse.Message)
		return
	}
	h.Logger.Println(err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, models.CodeDependency, fallback)
}

// CreateResponse handles a donor's offer on a request.
func (h *ResponseHandler) CreateResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.ResponseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid request body")
		return
	}

	response, err := h.Service.Create(ctx, input)
	if err != nil {
		h.respondError(w, err, "failed to create response")
		return
	}
	respondJSON(w, h.Logger, response)
}

// SubmitDecision handles the owner's Accepted/Declined decision.
func (h *ResponseHandler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	responseID, err := utils.ParseID("responseId", r.PathValue("responseId"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, err.Error())
		return
	}
	decision := r.URL.Query().Get("decision")
	actorID := r.URL.Query().Get("userId")

	result, err := h.Service.Transition(ctx, responseID, models.ResponseStatus(decision), actorID)
	if err != nil {
		h.respondError(w, err, "failed to submit decision")
		return
	}
	respondJSON(w, h.Logger, result)
}

// GetRequestResponses handles the owner's view of a request's responses.
func (h *ResponseHandler) GetRequestResponses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID, err := utils.ParseID("requestId", r.PathValue("requestId"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, err.Error())
		return
	}
	actorID := r.URL.Query().Get("userId")

	responses, err := h.Service.ListByRequest(ctx, requestID, actorID)
	if err != nil {
		h.respondError(w, err, "failed to load responses")
		return
	}
	if responses == nil {
		responses = []models.DonorResponse{}
	}
	respondJSON(w, h.Logger, responses)
}

// GetMyResponses handles a donor's view of their own responses.
func (h *ResponseHandler) GetMyResponses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	donorID := r.URL.Query().Get("userId")

	responses, err := h.Service.ListByDonor(ctx, donorID)
	if err != nil {
		h.respondError(w, err, "failed to load responses")
		return
	}
	if responses == nil {
		responses = []models.DonorResponse{}
	}
	respondJSON(w, h.Logger, responses)
}
