package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/roktosheba/donor-service/internal/models"
)

// memStore is an in-memory stand-in for the Postgres repositories. It mirrors
// the transactional behavior the real layer guarantees: capacity re-check on
// insert, unique (request, donor) pair, counter recomputation on transition.
type memStore struct {
	mu        sync.Mutex
	requests  map[int64]*models.Request
	responses map[int64]*models.DonorResponse
	profiles  map[string]*models.DonorProfile
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		requests:  make(map[int64]*models.Request),
		responses: make(map[int64]*models.DonorResponse),
		profiles:  make(map[string]*models.DonorProfile),
		nextID:    1,
	}
}

func (s *memStore) addRequest(req models.Request) *models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := req
	s.requests[stored.ID] = &stored
	return &stored
}

func (s *memStore) addProfile(profile models.DonorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := profile
	s.profiles[stored.UserID] = &stored
}

// --- RequestRepository ---

func (s *memStore) GetFeedWindow(_ context.Context, filters models.FeedFilters, cursor *int64, limit int) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var window []models.Request
	for _, req := range s.requests {
		if cursor != nil && req.ID >= *cursor {
			continue
		}
		if !matchesFilters(req, filters) {
			continue
		}
		window = append(window, *req)
	}
	sort.Slice(window, func(i, j int) bool { return window[i].ID > window[j].ID })
	if len(window) > limit {
		window = window[:limit]
	}
	return window, nil
}

func (s *memStore) CountSince(_ context.Context, filters models.FeedFilters, sinceID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, req := range s.requests {
		if req.ID > sinceID && matchesFilters(req, filters) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) GetSince(_ context.Context, filters models.FeedFilters, sinceID int64) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var window []models.Request
	for _, req := range s.requests {
		if req.ID > sinceID && matchesFilters(req, filters) {
			window = append(window, *req)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].ID > window[j].ID })
	return window, nil
}

func (s *memStore) CreateRequest(_ context.Context, input models.RequestInput) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	req := &models.Request{
		ID:          s.nextID,
		UserID:      input.UserID,
		PatientName: input.PatientName,
		Gender:      input.Gender,
		RequiredBy:  input.RequiredBy,
		BloodGroup:  input.BloodGroup,
		UnitsNeeded: input.UnitsNeeded,
		Hospital:    input.Hospital,
		Location:    input.Location,
		Urgency:     input.Urgency,
		Status:      models.OpenRequest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.requests[req.ID] = req
	return req, nil
}

func (s *memStore) GetRequestByID(_ context.Context, requestID int64) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
	}
	copied := *req
	return &copied, nil
}

func (s *memStore) EditRequest(_ context.Context, requestID int64, updateFields map[string]interface{}) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
	}
	if patientName, ok := updateFields["patientName"].(string); ok && patientName != "" {
		req.PatientName = patientName
	}
	if hospital, ok := updateFields["hospital"].(string); ok && hospital != "" {
		req.Hospital = hospital
	}
	copied := *req
	return &copied, nil
}

func (s *memStore) CloseRequest(_ context.Context, requestID int64) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
	}
	req.Status = models.ClosedRequest
	copied := *req
	return &copied, nil
}

func (s *memStore) ToggleUpvote(_ context.Context, requestID int64, _ string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
	}
	req.UpvoteCount++
	copied := *req
	return &copied, nil
}

// --- ResponseRepository ---

func (s *memStore) CreateResponse(_ context.Context, input models.ResponseInput) (*models.DonorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[input.RequestID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "request not found")
	}
	for _, existing := range s.responses {
		if existing.RequestID == input.RequestID && existing.DonorID == input.DonorID {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeAlreadyResponded, models.MsgAlreadyResponded)
		}
	}
	if req.UnitsNeeded > 0 && float64(s.countAcceptedLocked(input.RequestID)) >= req.UnitsNeeded {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeCapacityReached, models.MsgCapacityReached)
	}

	response := &models.DonorResponse{
		ID:        s.nextID,
		RequestID: input.RequestID,
		DonorID:   input.DonorID,
		Status:    models.PendingResponse,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.responses[response.ID] = response
	copied := *response
	return &copied, nil
}

func (s *memStore) GetResponseByID(_ context.Context, responseID int64) (*models.DonorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, ok := s.responses[responseID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "response not found")
	}
	copied := *response
	return &copied, nil
}

func (s *memStore) FindResponse(_ context.Context, requestID int64, donorID string) (*models.DonorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, response := range s.responses {
		if response.RequestID == requestID && response.DonorID == donorID {
			copied := *response
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CountAccepted(_ context.Context, requestID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countAcceptedLocked(requestID), nil
}

func (s *memStore) countAcceptedLocked(requestID int64) int {
	count := 0
	for _, response := range s.responses {
		if response.RequestID == requestID && response.Status == models.AcceptedResponse {
			count++
		}
	}
	return count
}

func (s *memStore) TransitionResponse(_ context.Context, responseID int64, next models.ResponseStatus, now time.Time) (*models.TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, ok := s.responses[responseID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.CodeValidation, "response not found")
	}
	req := s.requests[response.RequestID]

	if response.Status == next {
		copied := *response
		return &models.TransitionResult{
			Response:      copied,
			AcceptedCount: s.countAcceptedLocked(response.RequestID),
			RequestStatus: req.Status,
		}, nil
	}
	if response.Status != models.PendingResponse {
		return nil, models.NewErrorResponse(http.StatusConflict, models.CodeConflict,
			fmt.Sprintf("response is already %s and cannot change", response.Status))
	}

	if next == models.AcceptedResponse {
		if req.UnitsNeeded > 0 && float64(s.countAcceptedLocked(response.RequestID)) >= req.UnitsNeeded {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeCapacityReached, models.MsgCapacityReached)
		}
		profile := s.profiles[response.DonorID]
		if profile == nil || profile.Application == nil || profile.Application.Status != models.ApprovedApplication {
			return nil, models.NewErrorResponse(http.StatusConflict, models.CodeDonorNotApproved, "the donor's application is no longer approved")
		}
		profile.Application.LastDonationDate = &now
		response.AcceptedAt = &now
	} else {
		response.AcceptedAt = nil
	}
	response.Status = next

	acceptedCount := s.countAcceptedLocked(response.RequestID)
	resolved := models.ResolveRequestStatus(acceptedCount, req.UnitsNeeded, req.Status)
	req.DonorsAssigned = acceptedCount
	req.Status = resolved

	copied := *response
	return &models.TransitionResult{
		Response:      copied,
		AcceptedCount: acceptedCount,
		RequestStatus: resolved,
	}, nil
}

func (s *memStore) ListByRequest(_ context.Context, requestID int64) ([]models.DonorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var responses []models.DonorResponse
	for _, response := range s.responses {
		if response.RequestID == requestID {
			responses = append(responses, *response)
		}
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].ID < responses[j].ID })
	return responses, nil
}

func (s *memStore) ListByDonor(_ context.Context, donorID string) ([]models.DonorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var responses []models.DonorResponse
	for _, response := range s.responses {
		if response.DonorID == donorID {
			responses = append(responses, *response)
		}
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].ID > responses[j].ID })
	return responses, nil
}

// --- UserRepository ---

func (s *memStore) GetDonorProfile(_ context.Context, userID string) (*models.DonorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, models.CodeAuthorization, "user does not exist")
	}
	copied := *profile
	return &copied, nil
}

func (s *memStore) UserExists(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profiles[userID]
	return ok, nil
}

func matchesFilters(req *models.Request, filters models.FeedFilters) bool {
	if len(filters.BloodGroups) > 0 && !containsString(filters.BloodGroups, string(req.BloodGroup)) {
		return false
	}
	if len(filters.Urgencies) > 0 && !containsString(filters.Urgencies, string(req.Urgency)) {
		return false
	}
	return true
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyUser(_ context.Context, _, message, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// recordingMailer captures sent mail for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendAcceptanceEmail(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
