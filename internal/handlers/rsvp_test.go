package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/handlers/testutil"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
)

func rsvpPath(event models.Event) string {
	return "/api/events/" + event.ID + "/rsvp"
}

func TestRSVPHandler_CreateThenUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	vehicle := env.CreateVehicle(member)
	event := env.CreateEvent("Rollins Pass", models.EventTypeRun, testutil.Now.Add(72*time.Hour))
	token := env.Token(member)

	resp := env.Request(http.MethodPost, rsvpPath(event), map[string]any{
		"status":     "going",
		"vehicle_id": vehicle.ID,
	}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created models.RSVP
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.Equal(t, "GOING", created.Status)
	require.Equal(t, member.ID, created.MemberID)
	require.NotNil(t, created.VehicleID)
	require.False(t, created.IsRider)

	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{
		"status":      "GOING",
		"guest_count": 2,
	}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated models.RSVP
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &updated)
	require.Equal(t, created.ID, updated.ID)
	require.Nil(t, updated.VehicleID)
	require.True(t, updated.IsRider)
	require.Equal(t, 2, updated.GuestCount)

	var count int64
	require.NoError(t, env.DB.Model(&models.RSVP{}).Where("event_id = ?", event.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRSVPHandler_GuestRunLimit(t *testing.T) {
	env := testutil.NewEnv(t)
	guest := env.CreateMember(membership.StatusActive, membership.TypeGuest, membership.RoleUser)
	token := env.Token(guest)

	for i := 0; i < 3; i++ {
		run := env.CreateEvent("Run", models.EventTypeRun, testutil.Now.AddDate(0, 0, 7*(i+1)))
		resp := env.Request(http.MethodPost, rsvpPath(run), map[string]any{"status": "GOING"}, token)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}

	fourth := env.CreateEvent("One Too Many", models.EventTypeRun, testutil.Now.AddDate(0, 2, 0))
	resp := env.Request(http.MethodPost, rsvpPath(fourth), map[string]any{"status": "GOING"}, token)
	require.Equal(t, http.StatusConflict, resp.Code)
	payload := testutil.DecodeResponse(t, resp)
	require.False(t, payload.Success)
	require.Equal(t, "GUEST_RUN_LIMIT", payload.Error.Code)

	resp = env.Request(http.MethodPost, rsvpPath(fourth), map[string]any{"status": "CANT_GO"}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	meeting := env.CreateEvent("Meeting", models.EventTypeMeeting, testutil.Now.AddDate(0, 1, 0))
	resp = env.Request(http.MethodPost, rsvpPath(meeting), map[string]any{"status": "GOING"}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func TestRSVPHandler_RejectsBadSubmissions(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	other := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	own := env.CreateVehicle(member)
	foreign := env.CreateVehicle(other)
	event := env.CreateEvent("Gold Creek", models.EventTypeRun, testutil.Now.Add(48*time.Hour))
	token := env.Token(member)

	resp := env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING"}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "MAYBE"}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, testutil.DecodeResponse(t, resp).Error.Message, "status must be one of")

	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING", "guest_count": -1}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING", "vehicle_id": foreign.ID}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VEHICLE_NOT_OWNED", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING", "vehicle_id": own.ID, "is_rider": true}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, "/api/events/missing/rsvp", map[string]any{"status": "GOING"}, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "EVENT_NOT_FOUND", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestRSVPHandler_ParticipationRules(t *testing.T) {
	env := testutil.NewEnv(t)
	event := env.CreateEvent("Kingston Peak", models.EventTypeRun, testutil.Now.Add(24*time.Hour))

	inactive := env.CreateMember(membership.StatusInactive, membership.TypeFull, membership.RoleUser)
	resp := env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING"}, env.Token(inactive))
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, "ACCOUNT_INACTIVE", testutil.DecodeResponse(t, resp).Error.Code)

	target := env.CreateMember(membership.StatusPastDue, membership.TypeFull, membership.RoleUser)
	peer := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING", "member_id": target.ID}, env.Token(peer))
	require.Equal(t, http.StatusForbidden, resp.Code)

	officer := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleOfficer)
	resp = env.Request(http.MethodPost, rsvpPath(event), map[string]any{"status": "GOING", "member_id": target.ID}, env.Token(officer))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var saved models.RSVP
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &saved)
	require.Equal(t, target.ID, saved.MemberID)
}
