package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/handlers/testutil"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
)

func memberPath(member models.Member, action string) string {
	return "/api/members/" + member.ID + "/" + action
}

func logItems(t *testing.T, env *testutil.Env, member models.Member) []models.MembershipLogItem {
	t.Helper()
	var items []models.MembershipLogItem
	require.NoError(t, env.DB.Where("user_id = ?", member.ID).Order("time ASC").Find(&items).Error)
	return items
}

func TestMemberHandler_Unlock(t *testing.T) {
	env := testutil.NewEnv(t)
	officer := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleOfficer)
	user := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	locked := env.CreateMember(membership.StatusLocked, membership.TypeGuest, membership.RoleUser)

	resp := env.Request(http.MethodPost, memberPath(locked, "unlock"), nil, env.Token(user))
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, membership.StatusLocked, env.Reload(locked).AccountStatus)

	resp = env.Request(http.MethodPost, memberPath(locked, "unlock"), nil, env.Token(officer))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var member models.Member
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &member)
	require.Equal(t, membership.StatusActive, member.AccountStatus)

	items := logItems(t, env, locked)
	require.Len(t, items, 1)
	require.Equal(t, string(membership.CodeAccountUnlocked), items[0].MessageCode)
	require.NotNil(t, items[0].LoggerID)
	require.Equal(t, officer.ID, *items[0].LoggerID)

	resp = env.Request(http.MethodPost, memberPath(locked, "unlock"), nil, env.Token(officer))
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "TRANSITION_NOT_ALLOWED", testutil.DecodeResponse(t, resp).Error.Code)
	require.Len(t, logItems(t, env, locked), 1)

	resp = env.Request(http.MethodPost, "/api/members/nobody/unlock", nil, env.Token(officer))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMemberHandler_Reject(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleAdmin)
	locked := env.CreateMember(membership.StatusLocked, membership.TypeGuest, membership.RoleUser)
	token := env.Token(admin)

	resp := env.Request(http.MethodPost, memberPath(locked, "reject"), map[string]any{"reason": "   "}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, memberPath(locked, "reject"), map[string]any{"reason": "spam signup"}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, membership.StatusRejected, env.Reload(locked).AccountStatus)

	items := logItems(t, env, locked)
	require.Len(t, items, 1)
	require.Equal(t, "Account rejected: spam signup", items[0].Message)
}

func TestMemberHandler_RecordDues(t *testing.T) {
	env := testutil.NewEnv(t)
	officer := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleOfficer)
	pastDue := env.CreateMember(membership.StatusPastDue, membership.TypeFull, membership.RoleUser)
	token := env.Token(officer)

	resp := env.Request(http.MethodPost, memberPath(pastDue, "dues"), nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	stored := env.Reload(pastDue)
	require.Equal(t, membership.StatusActive, stored.AccountStatus)
	require.Equal(t, testutil.Now.Year(), stored.DuesPaidYear)

	resp = env.Request(http.MethodPost, memberPath(pastDue, "dues"), map[string]any{"year": 2026}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, 2026, env.Reload(pastDue).DuesPaidYear)

	resp = env.Request(http.MethodPost, memberPath(pastDue, "dues"), map[string]any{"year": 1999}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	items := logItems(t, env, pastDue)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, string(membership.CodeDuesPaid), item.MessageCode)
	}
}

func TestMemberHandler_MembershipLog(t *testing.T) {
	env := testutil.NewEnv(t)
	officer := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleOfficer)
	member := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)
	stranger := env.CreateMember(membership.StatusActive, membership.TypeFull, membership.RoleUser)

	resp := env.Request(http.MethodPost, memberPath(member, "membership-log"), map[string]any{
		"code":    "office_added",
		"message": `"Treasurer" office added`,
	}, env.Token(officer))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created models.MembershipLogItem
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.Equal(t, string(membership.CodeOfficeAdded), created.MessageCode)
	require.Equal(t, officer.ID, *created.LoggerID)

	resp = env.Request(http.MethodPost, memberPath(member, "membership-log"), map[string]any{
		"code":    "JOINED",
		"message": "activity codes are not membership codes",
	}, env.Token(officer))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, memberPath(member, "membership-log"), map[string]any{
		"code":    "TITLE_ADDED",
		"message": "self-granted",
	}, env.Token(member))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodGet, memberPath(member, "membership-log"), nil, env.Token(member))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	payload := testutil.DecodeResponse(t, resp)
	require.Equal(t, 1, payload.Meta.Count)

	resp = env.Request(http.MethodGet, memberPath(member, "membership-log"), nil, env.Token(officer))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodGet, memberPath(member, "membership-log"), nil, env.Token(stranger))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodGet, "/api/members/nobody/membership-log", nil, env.Token(officer))
	require.Equal(t, http.StatusNotFound, resp.Code)
}
