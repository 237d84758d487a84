package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/helphub-api/models"
)

func TestAssign_Success(t *testing.T) {
	store, _ := setupTestStore(t)
	clock := newTestClock()
	coordinator := NewAssignmentCoordinator(store, NewOtpGenerator(clock.Now, nil))

	volunteer := createVolunteer(t, store)
	request := createRequest(t, store)

	result, err := coordinator.Assign(context.Background(), request.ID, volunteer.ID)
	require.NoError(t, err)

	assert.Regexp(t, sixDigits, result.OTP)
	assert.Equal(t, models.RequestStatusAssigned, result.Request.Status)
	require.NotNil(t, result.Request.AssignedVolunteerID)
	assert.Equal(t, volunteer.ID, *result.Request.AssignedVolunteerID)
	assert.Equal(t, models.AvailabilityBusy, result.Volunteer.Availability)
	assert.Equal(t, 1, result.Volunteer.TotalJobs)

	stored := reloadRequest(t, store, request.ID)
	require.NotNil(t, stored.OTP.Code)
	assert.Equal(t, result.OTP, *stored.OTP.Code)
	assert.Equal(t, 0, stored.OTP.Attempts)
	assert.True(t, clock.Now().Equal(*stored.OTP.GeneratedAt))
}

func TestAssign_AlreadyAssignedLeavesBothUnchanged(t *testing.T) {
	store, _ := setupTestStore(t)
	coordinator := NewAssignmentCoordinator(store, NewOtpGenerator(nil, nil))

	first := createVolunteer(t, store)
	second := createVolunteer(t, store)
	request := createRequest(t, store)

	assigned, err := coordinator.Assign(context.Background(), request.ID, first.ID)
	require.NoError(t, err)

	requestBefore := reloadRequest(t, store, request.ID)
	secondBefore := reloadVolunteer(t, store, second.ID)

	_, err = coordinator.Assign(context.Background(), request.ID, second.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)

	requestAfter := reloadRequest(t, store, request.ID)
	secondAfter := reloadVolunteer(t, store, second.ID)

	assert.Equal(t, *requestBefore.AssignedVolunteerID, *requestAfter.AssignedVolunteerID)
	assert.Equal(t, assigned.OTP, *requestAfter.OTP.Code)
	assert.Equal(t, models.RequestStatusAssigned, requestAfter.Status)
	assert.Equal(t, secondBefore.Availability, secondAfter.Availability)
	assert.Equal(t, secondBefore.TotalJobs, secondAfter.TotalJobs)
}

func TestAssign_Failures(t *testing.T) {
	store, _ := setupTestStore(t)
	coordinator := NewAssignmentCoordinator(store, NewOtpGenerator(nil, nil))

	available := createVolunteer(t, store)
	busy := createVolunteer(t, store, withAvailability(models.AvailabilityBusy))
	unavailable := createVolunteer(t, store, withAvailability(models.AvailabilityUnavailable))
	inactive := createVolunteer(t, store, func(v *models.Volunteer) { v.IsActive = false })

	tests := []struct {
		name        string
		requestID   func() uuid.UUID
		volunteerID uuid.UUID
		wantErr     error
	}{
		{
			name:        "unknown request",
			requestID:   uuid.New,
			volunteerID: available.ID,
			wantErr:     ErrNotFound,
		},
		{
			name:        "unknown volunteer",
			requestID:   func() uuid.UUID { return createRequest(t, store).ID },
			volunteerID: uuid.New(),
			wantErr:     ErrNotFound,
		},
		{
			name:        "busy volunteer",
			requestID:   func() uuid.UUID { return createRequest(t, store).ID },
			volunteerID: busy.ID,
			wantErr:     ErrVolunteerUnavailable,
		},
		{
			name:        "unavailable volunteer",
			requestID:   func() uuid.UUID { return createRequest(t, store).ID },
			volunteerID: unavailable.ID,
			wantErr:     ErrVolunteerUnavailable,
		},
		{
			name:        "inactive volunteer",
			requestID:   func() uuid.UUID { return createRequest(t, store).ID },
			volunteerID: inactive.ID,
			wantErr:     ErrVolunteerUnavailable,
		},
		{
			name: "cancelled request",
			requestID: func() uuid.UUID {
				return createRequest(t, store, withStatus(models.RequestStatusCancelled)).ID
			},
			volunteerID: available.ID,
			wantErr:     ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestID := tt.requestID()
			_, err := coordinator.Assign(context.Background(), requestID, tt.volunteerID)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			if stored, findErr := store.Requests().FindByID(context.Background(), requestID); findErr == nil {
				assert.Nil(t, stored.OTP.Code, "a failed claim stores no code")
			}
		})
	}

	assert.Equal(t, models.AvailabilityAvailable, reloadVolunteer(t, store, available.ID).Availability)
	assert.Equal(t, 0, reloadVolunteer(t, store, available.ID).TotalJobs)
}

func TestAssign_ConcurrentClaimsOnOneRequest(t *testing.T) {
	store, _ := setupTestStore(t)
	coordinator := NewAssignmentCoordinator(store, NewOtpGenerator(nil, nil))
	request := createRequest(t, store)

	const racers = 8
	volunteers := make([]*models.Volunteer, racers)
	for i := range volunteers {
		volunteers[i] = createVolunteer(t, store)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner uuid.UUID
		wins   int
		errs   []error
	)
	for _, v := range volunteers {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := coordinator.Assign(context.Background(), request.ID, id)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				winner = id
				return
			}
			errs = append(errs, err)
		}(v.ID)
	}
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one volunteer wins the request")
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrInvalidState), "losers see InvalidState, got %v", err)
	}

	stored := reloadRequest(t, store, request.ID)
	assert.Equal(t, winner, *stored.AssignedVolunteerID)

	for _, v := range volunteers {
		current := reloadVolunteer(t, store, v.ID)
		if v.ID == winner {
			assert.Equal(t, models.AvailabilityBusy, current.Availability)
			assert.Equal(t, 1, current.TotalJobs)
			continue
		}
		assert.Equal(t, models.AvailabilityAvailable, current.Availability)
		assert.Equal(t, 0, current.TotalJobs)
	}
}

func TestAssign_ConcurrentClaimsByOneVolunteer(t *testing.T) {
	store, _ := setupTestStore(t)
	coordinator := NewAssignmentCoordinator(store, NewOtpGenerator(nil, nil))
	volunteer := createVolunteer(t, store)

	requests := []*models.Request{createRequest(t, store), createRequest(t, store), createRequest(t, store)}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, r := range requests {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := coordinator.Assign(context.Background(), id, volunteer.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, ErrVolunteerUnavailable)
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "a volunteer holds one request at a time")
	assert.Equal(t, 1, reloadVolunteer(t, store, volunteer.ID).TotalJobs)
}
