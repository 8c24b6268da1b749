package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/roktosheba/donor-service/internal/compat"
	"github.com/roktosheba/donor-service/internal/models"
	"github.com/roktosheba/donor-service/internal/repository"
	"github.com/roktosheba/donor-service/internal/scoring"
	"github.com/roktosheba/donor-service/internal/utils"
)

// PageSize is the number of requests per feed page.
const PageSize = 10

// FeedService serves the ranked, cursor-paginated request feed.
type FeedService struct {
	Requests repository.RequestRepository
	Users    repository.UserRepository
}

// NewFeedService creates a new FeedService.
func NewFeedService(requests repository.RequestRepository, users repository.UserRepository) *FeedService {
	return &FeedService{Requests: requests, Users: users}
}

// Page fetches one page of the feed for a viewer.
//
// The candidate window is fetched in descending id order and only that window
// is scored and re-sorted; nextCursor is the id of the last row of the
// window in storage order, computed before sorting. The next page's id <
// cursor predicate therefore never skips or repeats rows, at the cost of
// never producing a global top-K across the whole table. That trade-off is
// deliberate: full-table scoring would not scale, and rows inserted behind
// the cursor are surfaced by NewItemsSince instead.
func (s *FeedService) Page(ctx context.Context, viewerID string, filters models.FeedFilters, cursorStr string) (*models.FeedPage, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var cursor *int64
	if cursorStr != "" {
		parsed, err := strconv.ParseInt(cursorStr, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid cursor parameter, must be a positive integer")
		}
		cursor = &parsed
	}

	viewer, err := s.viewerContext(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	window, err := s.Requests.GetFeedWindow(ctx, filters, cursor, PageSize+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(window) > PageSize
	if hasMore {
		window = window[:PageSize]
	}

	page := &models.FeedPage{
		Items:   rankWindow(window, viewer, time.Now().UTC()),
		HasMore: hasMore,
	}
	if len(window) > 0 {
		lastID := window[len(window)-1].ID
		page.NextCursor = &lastID
	}

	if cursor != nil {
		newCount, err := s.Requests.CountSince(ctx, filters, *cursor)
		if err != nil {
			return nil, err
		}
		page.NewSinceCursor = newCount
	}
	return page, nil
}

// NewItemsSince fetches and ranks every request inserted after sinceId, for
// client-side "N new posts" banners. Polling cadence is the client's concern;
// callers must de-duplicate by id when merging into a displayed list.
func (s *FeedService) NewItemsSince(ctx context.Context, viewerID string, filters models.FeedFilters, sinceStr string) ([]models.ScoredRequest, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
	if err != nil || sinceID <= 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, "invalid sinceId parameter, must be a positive integer")
	}

	viewer, err := s.viewerContext(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	window, err := s.Requests.GetSince(ctx, filters, sinceID)
	if err != nil {
		return nil, err
	}
	return rankWindow(window, viewer, time.Now().UTC()), nil
}

// viewerContext resolves the scoring context. An empty viewer id yields an
// empty context: the viewer-independent terms still produce a valid ranking.
func (s *FeedService) viewerContext(ctx context.Context, viewerID string) (scoring.ViewerContext, error) {
	if viewerID == "" {
		return scoring.ViewerContext{}, nil
	}
	viewerID, err := utils.ParseUserID(viewerID)
	if err != nil {
		return scoring.ViewerContext{}, models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, err.Error())
	}
	profile, err := s.Users.GetDonorProfile(ctx, viewerID)
	if err != nil {
		return scoring.ViewerContext{}, err
	}
	return scoring.NewViewerContext(profile), nil
}

// rankWindow scores the fetched window and sorts it by descending score.
// The sort is stable, so ties keep the storage order (descending id).
func rankWindow(window []models.Request, viewer scoring.ViewerContext, now time.Time) []models.ScoredRequest {
	items := make([]models.ScoredRequest, 0, len(window))
	for i := range window {
		items = append(items, models.ScoredRequest{
			Request: window[i],
			Score:   scoring.Score(&window[i], viewer, now),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items
}

func validateFilters(filters models.FeedFilters) error {
	for _, group := range filters.BloodGroups {
		if !compat.IsKnownGroup(models.BloodGroup(group)) {
			return models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, fmt.Sprintf("invalid bloodGroup parameter: %s", group))
		}
	}
	allowedUrgencies := map[models.Urgency]bool{
		models.Normal:   true,
		models.Urgent:   true,
		models.Critical: true,
	}
	for _, urgency := range filters.Urgencies {
		if !allowedUrgencies[models.Urgency(urgency)] {
			return models.NewErrorResponse(http.StatusBadRequest, models.CodeValidation, fmt.Sprintf("invalid urgency parameter: %s", urgency))
		}
	}
	return nil
}
