package compat

import "github.com/roktosheba/donor-service/internal/models"

// donorRecipients maps a donor's blood group to the set of recipient groups
// it can give to. Compatibility is directional, not symmetric.
var donorRecipients = map[models.BloodGroup][]models.BloodGroup{
	"O-":  {"O-", "O+", "A-", "A+", "B-", "B+", "AB-", "AB+"},
	"O+":  {"O+", "A+", "B+", "AB+"},
	"A-":  {"A-", "A+", "AB-", "AB+"},
	"A+":  {"A+", "AB+"},
	"B-":  {"B-", "B+", "AB-", "AB+"},
	"B+":  {"B+", "AB+"},
	"AB-": {"AB-", "AB+"},
	"AB+": {"AB+"},
}

// urgencyWeights maps an urgency tier to its scoring weight.
var urgencyWeights = map[models.Urgency]float64{
	models.Critical: 100,
	models.Urgent:   60,
	models.Normal:   10,
}

// CanDonate reports whether a donor group may give to a recipient group.
func CanDonate(donor, recipient models.BloodGroup) bool {
	for _, r := range donorRecipients[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}

// IsKnownGroup reports whether the blood group is one of the eight known groups.
func IsKnownGroup(group models.BloodGroup) bool {
	_, ok := donorRecipients[group]
	return ok
}

// UrgencyWeight returns the scoring weight for an urgency tier.
func UrgencyWeight(urgency models.Urgency) float64 {
	return urgencyWeights[urgency]
}
