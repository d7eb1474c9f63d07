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

func TestEventHandler_Upcoming(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	token := env.Token(member)

	env.CreateEvent("Yesterday", models.EventTypeRun, testutil.Now.Add(-24*time.Hour))
	env.CreateEvent("Later", models.EventTypeSocial, testutil.Now.AddDate(0, 3, 0))
	env.CreateEvent("Soon", models.EventTypeRun, testutil.Now.Add(2*time.Hour))
	env.CreateEvent("Next Year", models.EventTypeRun, time.Date(2026, time.January, 3, 9, 0, 0, 0, time.UTC))

	resp := env.Request(http.MethodGet, "/api/events/upcoming", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	payload := testutil.DecodeResponse(t, resp)
	require.Equal(t, 2, payload.Meta.Count)

	var events []models.Event
	testutil.DecodeInto(t, payload.Data, &events)
	require.Len(t, events, 2)
	require.Equal(t, "Soon", events[0].Title)
	require.Equal(t, "Later", events[1].Title)

	resp = env.Request(http.MethodGet, "/api/events/upcoming?count=1", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &events)
	require.Len(t, events, 1)
	require.Equal(t, "Soon", events[0].Title)

	resp = env.Request(http.MethodGet, "/api/events/upcoming", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
