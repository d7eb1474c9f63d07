package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrateCreatesClubTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))

	migrator := db.Migrator()
	for _, model := range []any{
		&models.Member{},
		&models.Vehicle{},
		&models.Event{},
		&models.RSVP{},
		&models.MembershipLogItem{},
		&models.ActivityLogItem{},
		&models.CacheEntry{},
	} {
		require.True(t, migrator.HasTable(model), "expected table for %T", model)
	}
	require.True(t, migrator.HasIndex(&models.RSVP{}, "idx_rsvp_member_event"))
}

func TestRSVPUniquePerMemberAndEvent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	member := models.Member{Username: "guest", Email: "guest@example.com"}
	require.NoError(t, db.Create(&member).Error)
	event := models.Event{Title: "Rollins Pass", Type: models.EventTypeRun}
	require.NoError(t, db.Create(&event).Error)

	require.NoError(t, db.Create(&models.RSVP{MemberID: member.ID, EventID: event.ID, Status: "GOING"}).Error)
	require.Error(t, db.Create(&models.RSVP{MemberID: member.ID, EventID: event.ID, Status: "CANT_GO"}).Error)
}

func TestMemberDefaults(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	member := models.Member{Username: "newbie", Email: "newbie@example.com"}
	require.NoError(t, db.Create(&member).Error)

	var stored models.Member
	require.NoError(t, db.First(&stored, "id = ?", member.ID).Error)
	require.EqualValues(t, "LOCKED", stored.AccountStatus)
	require.EqualValues(t, "GUEST", stored.AccountType)
	require.EqualValues(t, "USER", stored.Role)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", Path: "memory:" + t.Name(), MaxOpenConns: 1})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
