package services

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/roktosheba/donor-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID      = "5f0f8a3e-7c4d-4b6a-9a1e-000000000001"
	donorOneID   = "5f0f8a3e-7c4d-4b6a-9a1e-000000000002"
	donorTwoID   = "5f0f8a3e-7c4d-4b6a-9a1e-000000000003"
	donorThreeID = "5f0f8a3e-7c4d-4b6a-9a1e-000000000004"
)

type responseFixture struct {
	store    *memStore
	notifier *recordingNotifier
	mailer   *recordingMailer
	svc      *ResponseService
}

func newResponseFixture(t *testing.T) *responseFixture {
	t.Helper()
	store := newMemStore()
	notifier := &recordingNotifier{}
	mailer := &recordingMailer{}

	owner := *approvedDonor(ownerID, "B+")
	owner.Name = "Request Owner"
	owner.Email = "owner@example.com"
	store.addProfile(owner)
	for _, id := range []string{donorOneID, donorTwoID, donorThreeID} {
		store.addProfile(*approvedDonor(id, "O-"))
	}
	store.addRequest(models.Request{
		ID:          1,
		UserID:      ownerID,
		PatientName: "Patient One",
		BloodGroup:  "A+",
		UnitsNeeded: 2,
		Hospital:    "Dhaka Medical College",
		Urgency:     models.Urgent,
		Status:      models.OpenRequest,
		RequiredBy:  time.Now().UTC().Add(24 * time.Hour),
		CreatedAt:   time.Now().UTC(),
	})

	svc := NewResponseService(store, store, store, notifier, mailer,
		log.New(io.Discard, "", 0))
	return &responseFixture{store: store, notifier: notifier, mailer: mailer, svc: svc}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}

func TestResponseCreate(t *testing.T) {
	fx := newResponseFixture(t)

	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	assert.Equal(t, models.PendingResponse, response.Status)
	assert.Equal(t, int64(1), response.RequestID)
	assert.Equal(t, donorOneID, response.DonorID)
	assert.Nil(t, response.AcceptedAt)

	eventually(t, func() bool { return fx.notifier.count() == 1 }, "owner notification")
}

func TestResponseCreateValidation(t *testing.T) {
	fx := newResponseFixture(t)

	_, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 0, DonorID: donorOneID})
	requireErrorStatus(t, err, 400, models.CodeValidation)

	_, err = fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: "not-a-uuid"})
	requireErrorStatus(t, err, 400, models.CodeValidation)
}

func TestResponseCreateDuplicate(t *testing.T) {
	fx := newResponseFixture(t)

	_, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	_, err = fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	requireErrorStatus(t, err, 409, models.CodeAlreadyResponded)
}

func TestResponseCreateIncompatibleDonor(t *testing.T) {
	fx := newResponseFixture(t)
	incompatible := *approvedDonor(donorOneID, "AB+")
	fx.store.addProfile(incompatible)

	_, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	requireErrorStatus(t, err, 403, models.CodeIncompatible)
}

func TestResponseTransitionAuthorization(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, "")
	requireErrorStatus(t, err, 401, models.CodeAuthorization)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, donorTwoID)
	requireErrorStatus(t, err, 403, models.CodeAuthorization)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.ResponseStatus("Maybe"), ownerID)
	requireErrorStatus(t, err, 400, models.CodeValidation)
}

func TestResponseAcceptFulfillsRequest(t *testing.T) {
	fx := newResponseFixture(t)

	first, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)
	second, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorTwoID})
	require.NoError(t, err)

	result, err := fx.svc.Transition(context.Background(), first.ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AcceptedCount)
	assert.Equal(t, models.OpenRequest, result.RequestStatus)
	require.NotNil(t, result.Response.AcceptedAt)

	result, err = fx.svc.Transition(context.Background(), second.ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AcceptedCount)
	assert.Equal(t, models.FulfilledRequest, result.RequestStatus)

	req, err := fx.store.GetRequestByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, req.DonorsAssigned)
	assert.Equal(t, models.FulfilledRequest, req.Status)

	// A fulfilled request stops accepting offers.
	_, err = fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorThreeID})
	requireErrorStatus(t, err, 409, models.CodeRequestNotOpen)

	// Accepting stamps the donor's last donation date.
	donor, err := fx.store.GetDonorProfile(context.Background(), donorOneID)
	require.NoError(t, err)
	require.NotNil(t, donor.Application.LastDonationDate)

	// Donor notification per decision, plus the create notifications.
	eventually(t, func() bool { return fx.notifier.count() == 4 }, "decision notifications")
	// Contact-exchange mail goes to both sides for each accept.
	eventually(t, func() bool { return fx.mailer.count() == 4 }, "acceptance emails")
}

func TestResponseAcceptBeyondCapacity(t *testing.T) {
	fx := newResponseFixture(t)

	// Pending offers are not capped, so all three donors can offer on a
	// two-unit request.
	var offers []*models.DonorResponse
	for _, id := range []string{donorOneID, donorTwoID, donorThreeID} {
		offer, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: id})
		require.NoError(t, err)
		offers = append(offers, offer)
	}

	_, err := fx.svc.Transition(context.Background(), offers[0].ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)
	_, err = fx.svc.Transition(context.Background(), offers[1].ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)

	// Accepting a third donor would exceed the units needed.
	_, err = fx.svc.Transition(context.Background(), offers[2].ID, models.AcceptedResponse, ownerID)
	requireErrorStatus(t, err, 409, models.CodeCapacityReached)

	req, err := fx.store.GetRequestByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, req.DonorsAssigned)
	assert.Equal(t, models.FulfilledRequest, req.Status)

	// The losing offer is untouched and the owner can still decline it.
	third, err := fx.store.GetResponseByID(context.Background(), offers[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingResponse, third.Status)
	result, err := fx.svc.Transition(context.Background(), offers[2].ID, models.DeclinedResponse, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AcceptedCount)
}

func TestResponseStoreRechecksStatusUnderLock(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = fx.store.TransitionResponse(context.Background(), response.ID, models.AcceptedResponse, now)
	require.NoError(t, err)

	// A decline that passed its unlocked pre-checks before the accept
	// committed is rejected once it holds the row.
	_, err = fx.store.TransitionResponse(context.Background(), response.ID, models.DeclinedResponse, now)
	requireErrorStatus(t, err, 409, models.CodeConflict)

	// Re-sending the same decision stays an idempotent no-op.
	result, err := fx.store.TransitionResponse(context.Background(), response.ID, models.AcceptedResponse, now)
	require.NoError(t, err)
	assert.Equal(t, models.AcceptedResponse, result.Response.Status)
	assert.Equal(t, 1, result.AcceptedCount)
}

func TestResponseCreateConcurrentDuplicate(t *testing.T) {
	fx := newResponseFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			requireErrorStatus(t, err, 409, models.CodeAlreadyResponded)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	listed, err := fx.store.ListByRequest(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestResponseTransitionIdempotent(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	first, err := fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)

	again, err := fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)
	assert.Equal(t, first.AcceptedCount, again.AcceptedCount)
	assert.Equal(t, models.AcceptedResponse, again.Response.Status)

	// The no-op repeat does not re-send mail.
	eventually(t, func() bool { return fx.mailer.count() == 2 }, "acceptance emails")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, fx.mailer.count())
}

func TestResponseTerminalStateConflict(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, ownerID)
	require.NoError(t, err)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.DeclinedResponse, ownerID)
	requireErrorStatus(t, err, 409, models.CodeConflict)
}

func TestResponseAcceptRevokedApplication(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	revoked := *approvedDonor(donorOneID, "O-")
	revoked.Application.Status = models.RejectedApplication
	fx.store.addProfile(revoked)

	_, err = fx.svc.Transition(context.Background(), response.ID, models.AcceptedResponse, ownerID)
	requireErrorStatus(t, err, 409, models.CodeDonorNotApproved)
}

func TestResponseDecline(t *testing.T) {
	fx := newResponseFixture(t)
	response, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)

	result, err := fx.svc.Transition(context.Background(), response.ID, models.DeclinedResponse, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.DeclinedResponse, result.Response.Status)
	assert.Zero(t, result.AcceptedCount)
	assert.Equal(t, models.OpenRequest, result.RequestStatus)

	// Declining never shares contact details.
	eventually(t, func() bool { return fx.notifier.count() == 2 }, "donor notified")
	assert.Zero(t, fx.mailer.count())
}

func TestResponseListings(t *testing.T) {
	fx := newResponseFixture(t)
	_, err := fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorOneID})
	require.NoError(t, err)
	_, err = fx.svc.Create(context.Background(), models.ResponseInput{RequestID: 1, DonorID: donorTwoID})
	require.NoError(t, err)

	listed, err := fx.svc.ListByRequest(context.Background(), 1, ownerID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = fx.svc.ListByRequest(context.Background(), 1, donorOneID)
	requireErrorStatus(t, err, 403, models.CodeAuthorization)

	mine, err := fx.svc.ListByDonor(context.Background(), donorOneID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, donorOneID, mine[0].DonorID)

	_, err = fx.svc.ListByDonor(context.Background(), "")
	requireErrorStatus(t, err, 400, models.CodeValidation)

	_, err = fx.svc.ListByDonor(context.Background(), "not-a-uuid")
	requireErrorStatus(t, err, 400, models.CodeValidation)

	_, err = fx.svc.ListByDonor(context.Background(), "5f0f8a3e-7c4d-4b6a-9a1e-0000000000ff")
	requireErrorStatus(t, err, 401, models.CodeAuthorization)
}
