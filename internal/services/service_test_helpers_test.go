package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/database/testutil"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedMember(t *testing.T, db *gorm.DB, username string, status membership.AccountStatus, accountType membership.AccountType) *models.Member {
	t.Helper()

	member := &models.Member{
		Username:      username,
		Email:         username + "@example.com",
		FirstName:     username,
		LastName:      "Member",
		Role:          membership.RoleUser,
		AccountStatus: status,
		AccountType:   accountType,
	}
	require.NoError(t, db.Create(member).Error)
	return member
}

func seedOfficer(t *testing.T, db *gorm.DB, username string) *models.Member {
	t.Helper()

	officer := seedMember(t, db, username, membership.StatusActive, membership.TypeFull)
	require.NoError(t, db.Model(officer).Update("role", string(membership.RoleOfficer)).Error)
	officer.Role = membership.RoleOfficer
	return officer
}

func seedEvent(t *testing.T, db *gorm.DB, title, eventType string, start time.Time) *models.Event {
	t.Helper()

	event := &models.Event{
		Title:     title,
		Type:      eventType,
		StartTime: start.UTC(),
		EndTime:   start.Add(4 * time.Hour).UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func seedVehicle(t *testing.T, db *gorm.DB, owner *models.Member, name string) *models.Vehicle {
	t.Helper()

	vehicle := &models.Vehicle{OwnerID: owner.ID, Year: 2004, Make: "Jeep", Model: "Wrangler", Name: name}
	require.NoError(t, db.Create(vehicle).Error)
	return vehicle
}

func fixedNow(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
