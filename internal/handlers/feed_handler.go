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

// FeedHandler serves the ranked request feed.
type FeedHandler struct {
	Service *services.FeedService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(service *services.FeedService, logger *log.Logger, timeout time.Duration) *FeedHandler {
	return &FeedHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// GetFeed handles requests for one page of the ranked feed.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	viewerID := r.URL.Query().Get("userId")
	cursor := r.URL.Query().Get("cursor")
	filters := utils.FeedFiltersFromQuery(r.URL.Query())

	page, err := h.Service.Page(ctx, viewerID, filters, cursor)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Code, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, models.CodeDependency, "failed to load the request feed, please try again")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(page); err != nil {
		h.Logger.Println(err)
	}
}

// GetNewItems handles requests for everything posted after a known id.
func (h *FeedHandler) GetNewItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	viewerID := r.URL.Query().Get("userId")
	sinceID := r.URL.Query().Get("sinceId")
	filters := utils.FeedFiltersFromQuery(r.URL.Query())

	items, err := h.Service.NewItemsSince(ctx, viewerID, filters, sinceID)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Code, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, models.CodeDependency, "failed to load new requests, please try again")
		return
	}

	if items == nil {
		items = []models.ScoredRequest{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(items); err != nil {
		h.Logger.Println(err)
	}
}
