package common

import (
	"fmt"
	"testing"
	"time"

	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Each test gets its own named in-memory database so state never leaks
// between tests sharing the process.
func setupTestEnv(t *testing.T, name string) (*gorm.DB, redismock.ClientMock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	// One pooled connection: concurrent transactions queue up instead of
	// tripping shared-cache table locks.
	inner, err := gdb.DB()
	require.NoError(t, err)
	inner.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.InstructorProfile{},
		&models.AvailabilitySlot{},
		&models.SlotLock{},
		&models.Booking{},
		&models.Payment{},
	))
	db.NewDB(gdb)
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)
	return gdb, mock
}

func seedUser(t *testing.T, gdb *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Name: "Test User", Email: email}
	require.NoError(t, gdb.Create(&user).Error)
	return &user
}

func seedInstructor(t *testing.T, gdb *gorm.DB, slug string) *models.InstructorProfile {
	t.Helper()
	profile := models.InstructorProfile{
		Name:          "Ada Instructor",
		Slug:          slug,
		PriceAmount:   120,
		PriceCurrency: "usd",
		Timezone:      "UTC",
	}
	require.NoError(t, gdb.Create(&profile).Error)
	return &profile
}

func seedSlot(t *testing.T, gdb *gorm.DB, instructorId uint, start time.Time, status types.SlotStatus) *models.AvailabilitySlot {
	t.Helper()
	slot := models.AvailabilitySlot{
		InstructorProfileID: instructorId,
		StartTime:           start,
		EndTime:             start.Add(30 * time.Minute),
		Timezone:            "UTC",
		Status:              status,
	}
	require.NoError(t, gdb.Create(&slot).Error)
	return &slot
}

func seedLock(t *testing.T, gdb *gorm.DB, slotId uint, token string, until time.Time, userId *uint) *models.SlotLock {
	t.Helper()
	reason := "slot-reservation"
	lock := models.SlotLock{
		SlotID:      slotId,
		Token:       token,
		LockedUntil: until,
		UserID:      userId,
		Reason:      &reason,
	}
	require.NoError(t, gdb.Create(&lock).Error)
	return &lock
}

func expectAcquire(mock redismock.ClientMock, slotId uint, acquired bool) {
	mock.Regexp().
		ExpectSetNX(lib.SlotLockKey(slotId), `.+`, config.SlotLockTTL()).
		SetVal(acquired)
}
