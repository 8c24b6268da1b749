package models

import "time"

type ApplicationStatus string // Status of a donor application

const (
	PendingApplication  ApplicationStatus = "Pending"  // Application awaiting review
	ApprovedApplication ApplicationStatus = "Approved" // Donor may respond to requests
	RejectedApplication ApplicationStatus = "Rejected" // Donor may not respond
)

// DonorApplication carries a user's donor approval state.
type DonorApplication struct {
	UserID           string            `json:"userId"`
	Status           ApplicationStatus `json:"status"`
	LastDonationDate *time.Time        `json:"lastDonationDate,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// DonorProfile is the subset of a user relevant to eligibility and scoring.
type DonorProfile struct {
	UserID        string            `json:"userId"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	EmailVerified bool              `json:"emailVerified"`
	BloodGroup    BloodGroup        `json:"bloodGroup"`
	Address       string            `json:"address"`
	Division      *Region           `json:"division,omitempty"`
	District      *Region           `json:"district,omitempty"`
	Upazila       *Region           `json:"upazila,omitempty"`
	Application   *DonorApplication `json:"application,omitempty"`
}
