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

// RequestHandler handles the owner-side request endpoints and the
// eligibility dry-run.
type RequestHandler struct {
	Service     *services.RequestService
	Eligibility *services.EligibilityService
	Logger      *log.Logger
	Timeout     time.Duration
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(service *services.RequestService, eligibility *services.EligibilityService, logger *log.Logger, timeout time.Duration) *RequestHandler {
	return &RequestHandler{
		Service:     service,
		Eligibility: eligibility,
		Logger:      logger,
		Timeout:     timeout,
	}
}

func (h *RequestHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	if errorResponse, ok := err.(*models.ErrorResponse); ok {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Code, errorResponse.Message)
		return
	}
	h.Logger.Println(err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, models.CodeDependency, fallback)
}

func respondJSON(w http.ResponseWriter, logger *log.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Println(err)
	}
}

// CreateRequest handles request creation.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid request body")
		return
	}

	request, err := h.Service.Create(ctx, input)
	if err != nil {
		h.respondError(w, err, "failed to create request")
		return
	}
	respondJSON(w, h.Logger, request)
}

// GetRequest handles single-request reads.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
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

	request, err := h.Service.Get(ctx, requestID)
	if err != nil {
		h.respondError(w, err, "failed to load request")
		return
	}
	respondJSON(w, h.Logger, request)
}

// EditRequest handles owner edits of a request.
func (h *RequestHandler) EditRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only PATCH is allowed")
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

	var updateFields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updateFields); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid request body")
		return
	}

	request, err := h.Service.Edit(ctx, requestID, actorID, updateFields)
	if err != nil {
		h.respondError(w, err, "failed to update request")
		return
	}
	respondJSON(w, h.Logger, request)
}

// CloseRequest handles owner closure of a request.
func (h *RequestHandler) CloseRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only PUT is allowed")
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

	request, err := h.Service.Close(ctx, requestID, actorID)
	if err != nil {
		h.respondError(w, err, "failed to close request")
		return
	}
	respondJSON(w, h.Logger, request)
}

// ToggleUpvote handles the upvote toggle on a request.
func (h *RequestHandler) ToggleUpvote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID, err := utils.ParseID("requestId", r.PathValue("requestId"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, err.Error())
		return
	}
	userID := r.URL.Query().Get("userId")

	request, err := h.Service.ToggleUpvote(ctx, requestID, userID)
	if err != nil {
		h.respondError(w, err, "failed to update upvote")
		return
	}
	respondJSON(w, h.Logger, request)
}

// CheckEligibility handles the "can I donate" dry run for a request.
func (h *RequestHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
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
	donorID := r.URL.Query().Get("userId")
	if donorID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "userId is required")
		return
	}

	result, err := h.Eligibility.CanRespond(ctx, donorID, requestID)
	if err != nil {
		h.respondError(w, err, "failed to check eligibility")
		return
	}
	respondJSON(w, h.Logger, result)
}
