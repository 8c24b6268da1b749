package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/roktosheba/donor-service/internal/models"

	"github.com/google/uuid"
)

// SendErrorResponse writes an error as JSON.
func SendErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// ParseID parses a positive int64 path or query value.
func ParseID(name, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter, must be a positive integer", name)
	}
	return id, nil
}

// ParseUserID validates a user id, which is a UUID.
func ParseUserID(value string) (string, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid userId parameter, must be a UUID")
	}
	return id.String(), nil
}

// FeedFiltersFromQuery reads the repeatable bloodGroup/urgency filters.
func FeedFiltersFromQuery(query url.Values) models.FeedFilters {
	return models.FeedFilters{
		BloodGroups: query["bloodGroup"],
		Urgencies:   query["urgency"],
	}
}
