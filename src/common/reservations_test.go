package common

import (
	"testing"
	"time"

	"mbs/src/models"
	"mbs/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSlotIssuesHold(t *testing.T) {
	gdb, mock := setupTestEnv(t, "lock_slot_hold")
	instructor := seedInstructor(t, gdb, "ada-lock-hold")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	user := seedUser(t, gdb, "holder@example.com")
	expectAcquire(mock, slot.ID, true)

	result, err := LockSlot(slot.ID, &user.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, result.SlotID)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, int64(300000), result.TTLMs)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), result.LockedUntil, 5*time.Second)

	var stored models.AvailabilitySlot
	require.NoError(t, gdb.First(&stored, slot.ID).Error)
	assert.Equal(t, types.SLOT_RESERVED, stored.Status)

	var lock models.SlotLock
	require.NoError(t, gdb.Where("slot_id = ?", slot.ID).First(&lock).Error)
	assert.Equal(t, result.Token, lock.Token)
	require.NotNil(t, lock.UserID)
	assert.Equal(t, user.ID, *lock.UserID)
	require.NotNil(t, lock.Reason)
	assert.Equal(t, "slot-reservation", *lock.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSlotRefusedWhileHeld(t *testing.T) {
	gdb, mock := setupTestEnv(t, "lock_slot_held")
	instructor := seedInstructor(t, gdb, "ada-lock-held")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	expectAcquire(mock, slot.ID, true)

	first, err := LockSlot(slot.ID, nil, nil)
	require.NoError(t, err)

	// The durable lock row refuses the second claim before the store is
	// even consulted.
	_, err = LockSlot(slot.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSlotAlreadyLocked)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.NotEmpty(t, first.Token)
}

func TestLockSlotRefusedByStore(t *testing.T) {
	gdb, mock := setupTestEnv(t, "lock_slot_store_refusal")
	instructor := seedInstructor(t, gdb, "ada-lock-store")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	expectAcquire(mock, slot.ID, false)

	_, err := LockSlot(slot.ID, nil, nil)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestLockSlotUnknownSlot(t *testing.T) {
	setupTestEnv(t, "lock_slot_unknown")
	_, err := LockSlot(9999, nil, nil)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestLockSlotUnavailableStates(t *testing.T) {
	gdb, _ := setupTestEnv(t, "lock_slot_states")
	instructor := seedInstructor(t, gdb, "ada-lock-states")
	disabled := seedSlot(t, gdb, instructor.ID, time.Now().Add(time.Hour), types.SLOT_DISABLED)
	booked := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_BOOKED)

	_, err := LockSlot(disabled.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = LockSlot(booked.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestLockSlotAfterExpiry(t *testing.T) {
	gdb, mock := setupTestEnv(t, "lock_slot_expiry")
	instructor := seedInstructor(t, gdb, "ada-lock-expiry")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	seedLock(t, gdb, slot.ID, "stale-token", time.Now().Add(-time.Minute), nil)
	expectAcquire(mock, slot.ID, true)

	result, err := LockSlot(slot.ID, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, "stale-token", result.Token)
}

func TestReleaseSlotRevertsStatus(t *testing.T) {
	gdb, mock := setupTestEnv(t, "release_slot")
	instructor := seedInstructor(t, gdb, "ada-release")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	expectAcquire(mock, slot.ID, true)

	result, err := LockSlot(slot.ID, nil, nil)
	require.NoError(t, err)

	require.NoError(t, ReleaseSlot(slot.ID, result.Token))

	var stored models.AvailabilitySlot
	require.NoError(t, gdb.First(&stored, slot.ID).Error)
	assert.Equal(t, types.SLOT_AVAILABLE, stored.Status)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	// Releasing the same token again reports the lock as gone.
	assert.ErrorIs(t, ReleaseSlot(slot.ID, result.Token), ErrLockNotFound)
}

func TestReleaseSlotUnknownSlot(t *testing.T) {
	setupTestEnv(t, "release_slot_unknown")
	assert.ErrorIs(t, ReleaseSlot(4242, "whatever"), ErrSlotNotFound)
}

func TestReleaseSlotUnknownToken(t *testing.T) {
	gdb, _ := setupTestEnv(t, "release_slot_token")
	instructor := seedInstructor(t, gdb, "ada-release-token")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_RESERVED)
	seedLock(t, gdb, slot.ID, "real-token", time.Now().Add(5*time.Minute), nil)

	assert.ErrorIs(t, ReleaseSlot(slot.ID, "forged-token"), ErrLockNotFound)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMarkSlotAsBooked(t *testing.T) {
	gdb, mock := setupTestEnv(t, "mark_slot_booked")
	instructor := seedInstructor(t, gdb, "ada-booked")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_AVAILABLE)
	expectAcquire(mock, slot.ID, true)

	_, err := LockSlot(slot.ID, nil, nil)
	require.NoError(t, err)

	require.NoError(t, MarkSlotAsBooked(slot.ID))

	var stored models.AvailabilitySlot
	require.NoError(t, gdb.First(&stored, slot.ID).Error)
	assert.Equal(t, types.SLOT_BOOKED, stored.Status)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	// A booked slot can no longer be claimed.
	_, err = LockSlot(slot.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestReleaseSlotAfterRefund(t *testing.T) {
	gdb, _ := setupTestEnv(t, "release_after_refund")
	instructor := seedInstructor(t, gdb, "ada-refund")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(2*time.Hour), types.SLOT_BOOKED)
	seedLock(t, gdb, slot.ID, "paid-token", time.Now().Add(10*time.Minute), nil)

	require.NoError(t, ReleaseSlotAfterRefund(slot.ID))

	var stored models.AvailabilitySlot
	require.NoError(t, gdb.First(&stored, slot.ID).Error)
	assert.Equal(t, types.SLOT_AVAILABLE, stored.Status)

	var count int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
