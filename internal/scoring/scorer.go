package scoring

import (
	"strings"
	"time"

	"github.com/roktosheba/donor-service/internal/compat"
	"github.com/roktosheba/donor-service/internal/geo"
	"github.com/roktosheba/donor-service/internal/models"
)

const (
	maxDistanceKm     = 100.0
	nearDistanceKm    = 15.0
	veryNearKm        = 5.0
	decayWindowHours  = 72.0
	proximityMaxBonus = 60.0
)

// Score computes the relevance of a request for a viewer at a given moment.
// Pure and deterministic: the same inputs always produce the same score, so
// the ordering of a page is reproducible within a single fetch.
//
// The score is a sum of independent terms:
//
//	proximity (or address token overlap when coordinates are missing),
//	regional affinity, blood compatibility, urgency, temporal, recency,
//	fulfillment pressure, status penalty, location-name substring bonus.
func Score(req *models.Request, viewer ViewerContext, now time.Time) float64 {
	score := proximityTerm(req, viewer)
	score += regionalAffinityTerm(req, viewer)
	score += compatibilityTerm(req, viewer)
	score += compat.UrgencyWeight(req.Urgency)
	score += temporalTerm(req, now)
	score += recencyTerm(req, now)
	score += fulfillmentTerm(req)
	score += statusTerm(req)
	score += locationNameTerm(req, viewer)
	return score
}

// proximityTerm decays linearly from 60 at 0 km to 0 at 100 km, with flat
// bonuses inside 15 km and 5 km. When either side lacks coordinates it falls
// back to a coarse token overlap between the viewer's address and the
// request's location text.
func proximityTerm(req *models.Request, viewer ViewerContext) float64 {
	reqLat, reqLng, ok := requestCoordinates(req)
	if !ok || viewer.Lat == nil || viewer.Lng == nil {
		return tokenOverlapBonus(req, viewer)
	}

	distance := geo.DistanceKm(*viewer.Lat, *viewer.Lng, reqLat, reqLng)
	if distance > maxDistanceKm {
		distance = maxDistanceKm
	}

	term := proximityMaxBonus * (1 - distance/maxDistanceKm)
	if distance <= nearDistanceKm {
		term += 12
	}
	if distance <= veryNearKm {
		term += 10
	}
	return term
}

// requestCoordinates resolves the request's coordinates: its own pair first,
// then the most specific region that has one.
func requestCoordinates(req *models.Request) (float64, float64, bool) {
	if req.Lat != nil && req.Lng != nil {
		return *req.Lat, *req.Lng, true
	}
	for _, region := range []*models.Region{req.Upazila, req.District, req.Division} {
		if region != nil && region.Lat != nil && region.Lng != nil {
			return *region.Lat, *region.Lng, true
		}
	}
	return 0, 0, false
}

func tokenOverlapBonus(req *models.Request, viewer ViewerContext) float64 {
	if viewer.Address == "" || req.Location == "" {
		return 0
	}
	location := strings.ToLower(req.Location)
	for _, token := range strings.FieldsFunc(viewer.Address, func(r rune) bool {
		return r == ' ' || r == ',' || r == '-' || r == '.'
	}) {
		if len(token) > 2 && strings.Contains(location, token) {
			return 12
		}
	}
	return 0
}

// regionalAffinityTerm rewards a shared administrative region. Only the
// closest matching tier counts; tiers are not summed.
func regionalAffinityTerm(req *models.Request, viewer ViewerContext) float64 {
	switch {
	case regionMatches(req.Upazila, viewer.UpazilaID):
		return 55
	case regionMatches(req.District, viewer.DistrictID):
		return 38
	case regionMatches(req.Division, viewer.DivisionID):
		return 18
	}
	return 0
}

func regionMatches(region *models.Region, viewerID *int64) bool {
	return region != nil && viewerID != nil && region.ID == *viewerID
}

func compatibilityTerm(req *models.Request, viewer ViewerContext) float64 {
	if viewer.BloodGroup != "" && compat.CanDonate(viewer.BloodGroup, req.BloodGroup) {
		return 80
	}
	return 0
}

// temporalTerm penalizes overdue requests and boosts those due soon. The
// overdue penalty bottoms out at -76 after 72 hours; the upcoming bonus
// decays from 50 (due now) to 0 (due 72h out or later).
func temporalTerm(req *models.Request, now time.Time) float64 {
	hoursUntilDue := req.RequiredBy.Sub(now).Hours()
	if hoursUntilDue < 0 {
		overdue := -hoursUntilDue
		if overdue > decayWindowHours {
			overdue = decayWindowHours
		}
		return -40 - 0.5*overdue
	}
	if hoursUntilDue >= decayWindowHours {
		return 0
	}
	return 50 * (1 - hoursUntilDue/decayWindowHours)
}

// recencyTerm decays from 18 at creation to 0 after 72 hours.
func recencyTerm(req *models.Request, now time.Time) float64 {
	age := now.Sub(req.CreatedAt).Hours()
	if age < 0 {
		age = 0
	}
	if age >= decayWindowHours {
		return 0
	}
	return 18 * (1 - age/decayWindowHours)
}

// fulfillmentTerm pushes staffed requests down without removing them from
// the candidate set, so counts and audit views stay consistent.
func fulfillmentTerm(req *models.Request) float64 {
	if req.UnitsNeeded <= 0 {
		return 0
	}
	ratio := float64(req.DonorsAssigned) / req.UnitsNeeded
	if ratio > 1 {
		ratio = 1
	}
	term := (1 - ratio) * 14
	if ratio >= 1 {
		term -= 60
	}
	return term
}

func statusTerm(req *models.Request) float64 {
	switch req.Status {
	case models.OpenRequest:
		return 0
	case models.PendingRequest:
		return -25
	default:
		return -100
	}
}

// locationNameTerm adds a bonus per region tier whose name appears in the
// request's location text. Unlike regional affinity, tiers are additive.
func locationNameTerm(req *models.Request, viewer ViewerContext) float64 {
	if req.Location == "" {
		return 0
	}
	location := strings.ToLower(req.Location)

	var term float64
	if viewer.DivisionName != "" && strings.Contains(location, viewer.DivisionName) {
		term += 6
	}
	if viewer.DistrictName != "" && strings.Contains(location, viewer.DistrictName) {
		term += 8
	}
	if viewer.UpazilaName != "" && strings.Contains(location, viewer.UpazilaName) {
		term += 10
	}
	return term
}
