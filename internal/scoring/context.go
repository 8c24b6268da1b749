package scoring

import (
	"strings"

	"github.com/roktosheba/donor-service/internal/models"
)

// ViewerContext carries the derived scoring inputs for the user viewing the
// feed. It is built from a profile, never persisted.
type ViewerContext struct {
	Lat          *float64
	Lng          *float64
	BloodGroup   models.BloodGroup
	Address      string // lower-cased free-text address
	DivisionID   *int64
	DistrictID   *int64
	UpazilaID    *int64
	DivisionName string // lower-cased
	DistrictName string // lower-cased
	UpazilaName  string // lower-cased
}

// NewViewerContext builds a scoring context from a donor profile. Coordinates
// come from the most specific region that has them: upazila, then district,
// then division. A nil profile yields an empty context, which is still valid
// for scoring.
func NewViewerContext(profile *models.DonorProfile) ViewerContext {
	if profile == nil {
		return ViewerContext{}
	}

	viewer := ViewerContext{
		BloodGroup: profile.BloodGroup,
		Address:    strings.ToLower(profile.Address),
	}

	if profile.Division != nil {
		viewer.DivisionID = &profile.Division.ID
		viewer.DivisionName = strings.ToLower(profile.Division.Name)
	}
	if profile.District != nil {
		viewer.DistrictID = &profile.District.ID
		viewer.DistrictName = strings.ToLower(profile.District.Name)
	}
	if profile.Upazila != nil {
		viewer.UpazilaID = &profile.Upazila.ID
		viewer.UpazilaName = strings.ToLower(profile.Upazila.Name)
	}

	for _, region := range []*models.Region{profile.Upazila, profile.District, profile.Division} {
		if region != nil && region.Lat != nil && region.Lng != nil {
			viewer.Lat = region.Lat
			viewer.Lng = region.Lng
			break
		}
	}

	return viewer
}
