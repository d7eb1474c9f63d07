package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"member", func() *BaseModel { return &(&Member{}).BaseModel }},
		{"vehicle", func() *BaseModel { return &(&Vehicle{}).BaseModel }},
		{"event", func() *BaseModel { return &(&Event{}).BaseModel }},
		{"rsvp", func() *BaseModel { return &(&RSVP{}).BaseModel }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			require.NoError(t, model.BeforeCreate(nil))
			require.NotEmpty(t, model.ID)
		})
	}

	kept := BaseModel{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	require.Equal(t, "fixed", kept.ID)
}

func TestLogItemsGenerateIDs(t *testing.T) {
	membership := &MembershipLogItem{}
	require.NoError(t, membership.BeforeCreate(nil))
	require.NotEmpty(t, membership.ID)

	activity := &ActivityLogItem{ID: "a1"}
	require.NoError(t, activity.BeforeCreate(nil))
	require.Equal(t, "a1", activity.ID)
}

func TestMemberFullName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", Member{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}.FullName())
	require.Equal(t, "ada", Member{Username: "ada"}.FullName())
}

func TestEventIsRun(t *testing.T) {
	require.True(t, Event{Type: EventTypeRun}.IsRun())
	require.False(t, Event{Type: EventTypeMeeting}.IsRun())
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.False(t, CacheEntry{}.Expired(now))
	require.False(t, CacheEntry{ExpiresAt: now.Add(time.Second)}.Expired(now))
	require.True(t, CacheEntry{ExpiresAt: now}.Expired(now))
}
