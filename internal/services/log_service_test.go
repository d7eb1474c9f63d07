package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	apperrors "github.com/charlesng35/clubhouse/pkg/errors"
)

func TestLogServiceListActivity(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewLogService(db, nil)
	require.NoError(t, err)
	member := seedMember(t, db, "trailboss", membership.StatusActive, membership.TypeFull)

	entries := []struct {
		code    membership.MessageCode
		message string
	}{
		{membership.CodeJoined, "Joined"},
		{membership.CodeProfilePhotoSubmitted, "Added a new profile photo"},
		{membership.CodeRigbookPhotoSubmitted, "Added a new rigbook photo"},
	}
	for i, entry := range entries {
		require.NoError(t, db.Create(&models.ActivityLogItem{
			Time:        serviceNow.Add(time.Duration(i) * time.Hour),
			Message:     entry.message,
			MessageCode: string(entry.code),
			Link:        "/profile/" + member.Username,
			UserID:      member.ID,
		}).Error)
	}

	feed, err := svc.ListActivity(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	require.Equal(t, "Added a new rigbook photo", feed[0].Message)
	require.Equal(t, "/profile/trailboss", feed[0].Link)

	joined, err := svc.ListActivity(context.Background(), membership.CodeJoined, 10)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, "Joined", joined[0].Message)

	_, err = svc.ListActivity(context.Background(), membership.CodeDuesPaid, 10)
	require.True(t, apperrors.Is(err, apperrors.ErrBadRequest.Code))
}

func TestLogServiceLogEntry(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewLogService(db, nil)
	require.NoError(t, err)
	officer := seedOfficer(t, db, "secretary")
	member := seedMember(t, db, "member", membership.StatusActive, membership.TypeFull)
	actor := Actor{ID: officer.ID, Role: officer.Role}
	at := time.Date(2025, time.February, 3, 18, 0, 0, 0, time.UTC)

	_, err = svc.LogEntry(context.Background(), ManualLogEntry{
		MemberID: member.ID,
		Actor:    Actor{ID: member.ID, Role: membership.RoleUser},
		Code:     membership.CodeTitleAdded,
		Message:  "Charter Member",
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.LogEntry(context.Background(), ManualLogEntry{MemberID: member.ID, Actor: actor, Code: membership.CodeJoined, Message: "Joined"})
	require.True(t, apperrors.Is(err, apperrors.ErrBadRequest.Code))

	_, err = svc.LogEntry(context.Background(), ManualLogEntry{MemberID: member.ID, Actor: actor, Code: membership.CodeTitleAdded, Message: " "})
	require.True(t, apperrors.Is(err, apperrors.ErrBadRequest.Code))

	_, err = svc.LogEntry(context.Background(), ManualLogEntry{MemberID: "missing", Actor: actor, Code: membership.CodeTitleAdded, Message: "Charter Member"})
	require.ErrorIs(t, err, ErrMemberNotFound)

	item, err := svc.LogEntry(context.Background(), ManualLogEntry{
		MemberID: member.ID,
		Actor:    actor,
		Code:     membership.CodeTitleAdded,
		Message:  " \"Charter Member\" title added ",
		Time:     at,
	})
	require.NoError(t, err)
	require.Equal(t, `"Charter Member" title added`, item.Message)
	require.NotNil(t, item.LoggerID)
	require.Equal(t, officer.ID, *item.LoggerID)
	require.True(t, item.Time.Equal(at))
}

func TestListMembershipLogNewestFirstWithLimit(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewLogService(db, nil)
	require.NoError(t, err)
	member := seedMember(t, db, "member", membership.StatusActive, membership.TypeFull)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&models.MembershipLogItem{
			Time:        serviceNow.Add(time.Duration(i) * time.Hour),
			Message:     fmt.Sprintf("entry %d", i),
			MessageCode: string(membership.CodeAccountChanged),
			UserID:      member.ID,
		}).Error)
	}

	items, err := svc.ListMembershipLog(context.Background(), member.ID, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "entry 4", items[0].Message)
	require.Equal(t, "entry 3", items[1].Message)

	require.Equal(t, defaultLogLimit, clampLimit(-1))
	require.Equal(t, maxLogLimit, clampLimit(10_000))
}
