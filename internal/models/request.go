package models

import "time"

type (
	BloodGroup    string // Blood group of a user or a request
	Urgency       string // Urgency tier of a request
	RequestStatus string // Lifecycle status of a request
)

const (
	Normal   Urgency = "Normal"   // Routine need
	Urgent   Urgency = "Urgent"   // Needed within days
	Critical Urgency = "Critical" // Needed immediately

	OpenRequest      RequestStatus = "Open"      // Accepting donors
	PendingRequest   RequestStatus = "Pending"   // Partially staffed
	FulfilledRequest RequestStatus = "Fulfilled" // Accepted donors cover units needed
	ClosedRequest    RequestStatus = "Closed"    // Closed by the owner
)

// ResolveRequestStatus is the single authoritative status transition for a
// request after its accepted-donor count changes. Fulfilled wins when the
// accepted count covers the units needed; otherwise Closed and Pending are
// preserved and the request stays Open.
func ResolveRequestStatus(acceptedCount int, unitsNeeded float64, current RequestStatus) RequestStatus {
	if unitsNeeded > 0 && float64(acceptedCount) >= unitsNeeded {
		return FulfilledRequest
	}
	switch current {
	case ClosedRequest:
		return ClosedRequest
	case PendingRequest:
		return PendingRequest
	}
	return OpenRequest
}

// Region is an administrative area with optional coordinates.
type Region struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

// Request represents a posted blood-donation need.
type Request struct {
	ID             int64         `json:"id"`
	UserID         string        `json:"userId"`
	PatientName    string        `json:"patientName"`
	Gender         string        `json:"gender"`
	RequiredBy     time.Time     `json:"requiredBy"`
	BloodGroup     BloodGroup    `json:"bloodGroup"`
	UnitsNeeded    float64       `json:"unitsNeeded"`
	Hospital       string        `json:"hospital"`
	Location       string        `json:"location"`
	Lat            *float64      `json:"lat,omitempty"`
	Lng            *float64      `json:"lng,omitempty"`
	Division       *Region       `json:"division,omitempty"`
	District       *Region       `json:"district,omitempty"`
	Upazila        *Region       `json:"upazila,omitempty"`
	Urgency        Urgency       `json:"urgency"`
	Status         RequestStatus `json:"status"`
	UpvoteCount    int           `json:"upvoteCount"`
	DonorsAssigned int           `json:"donorsAssigned"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// RequestInput is the request body for creating a blood request.
type RequestInput struct {
	UserID      string     `json:"userId"`
	PatientName string     `json:"patientName"`
	Gender      string     `json:"gender"`
	RequiredBy  time.Time  `json:"requiredBy"`
	BloodGroup  BloodGroup `json:"bloodGroup"`
	UnitsNeeded float64    `json:"unitsNeeded"`
	Hospital    string     `json:"hospital"`
	Location    string     `json:"location"`
	Lat         *float64   `json:"lat,omitempty"`
	Lng         *float64   `json:"lng,omitempty"`
	DivisionID  *int64     `json:"divisionId,omitempty"`
	DistrictID  *int64     `json:"districtId,omitempty"`
	UpazilaID   *int64     `json:"upazilaId,omitempty"`
	Urgency     Urgency    `json:"urgency"`
}

// FeedFilters narrows the candidate window of the request feed.
type FeedFilters struct {
	BloodGroups []string `json:"bloodGroups,omitempty"`
	Urgencies   []string `json:"urgencies,omitempty"`
}

// ScoredRequest is a request together with its relevance score.
type ScoredRequest struct {
	Request
	Score float64 `json:"score"`
}

// FeedPage is one page of the ranked request feed.
type FeedPage struct {
	Items          []ScoredRequest `json:"items"`
	HasMore        bool            `json:"hasMore"`
	NextCursor     *int64          `json:"nextCursor"`
	NewSinceCursor int             `json:"newSinceCursor"`
}
