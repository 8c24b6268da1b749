package models

import "time"

type ResponseStatus string // Status of a donor response

const (
	PendingResponse  ResponseStatus = "Pending"  // Offer awaiting the owner's decision
	AcceptedResponse ResponseStatus = "Accepted" // Offer accepted by the owner
	DeclinedResponse ResponseStatus = "Declined" // Offer declined by the owner
)

// DonorResponse represents a donor's offer on a blood request.
type DonorResponse struct {
	ID         int64          `json:"id"`
	RequestID  int64          `json:"requestId"`
	DonorID    string         `json:"donorId"`
	Status     ResponseStatus `json:"status"`
	AcceptedAt *time.Time     `json:"acceptedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ResponseInput is the request body for creating a donor response.
type ResponseInput struct {
	RequestID int64  `json:"requestId"`
	DonorID   string `json:"donorId"`
}

// TransitionResult is the outcome of an owner decision on a response.
type TransitionResult struct {
	Response      DonorResponse `json:"response"`
	AcceptedCount int           `json:"acceptedCount"`
	RequestStatus RequestStatus `json:"requestStatus"`
}
