package common

import (
	"context"
	"errors"
	"log"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LockSlotResult struct {
	SlotID      uint      `json:"slot_id"`
	Token       string    `json:"token"`
	LockedUntil time.Time `json:"locked_until"`
	TTLMs       int64     `json:"ttl_ms"`
}

// LockSlot places a short-lived hold on a slot. The Redis key is the
// authoritative exclusion; the SlotLock row and the RESERVED status are the
// durable projection written afterwards in one transaction. If that
// transaction fails the Redis hold is left to lapse on its own TTL rather
// than released, a competing claim must not slip in while the caller
// retries.
func LockSlot(slotId uint, userId *uint, reason *string) (*LockSlotResult, error) {
	db := db.GetDb()
	var slot models.AvailabilitySlot
	if err := db.
		Preload("Locks").
		Preload("Booking").
		Where(&models.AvailabilitySlot{ID: slotId}).
		First(&slot).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	hasBooking := slot.Booking != nil && slot.Booking.Status != types.BOOKING_CANCELLED
	if slot.Status == types.SLOT_DISABLED || slot.Status == types.SLOT_BOOKED || hasBooking {
		return nil, ErrSlotUnavailable
	}
	now := time.Now()
	for _, l := range slot.Locks {
		if l.LockedUntil.After(now) {
			return nil, ErrSlotAlreadyLocked
		}
	}

	token := uuid.NewString()
	ttl := config.SlotLockTTL()
	acquired, err := lib.AcquireSlotLock(context.Background(), slotId, token, ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockNotAcquired
	}
	lockedUntil := now.Add(ttl)
	lockReason := "slot-reservation"
	if reason != nil && *reason != "" {
		lockReason = *reason
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		lock := models.SlotLock{
			SlotID:      slotId,
			Token:       token,
			LockedUntil: lockedUntil,
			UserID:      userId,
			Reason:      &lockReason,
		}
		if err := tx.Create(&lock).Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.AvailabilitySlot{}).
			Where("id = ?", slotId).
			Update("status", types.SLOT_RESERVED).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error persisting lock for slot %d, hold will lapse with its TTL: %s\n", slotId, err.Error())
		return nil, err
	}
	return &LockSlotResult{
		SlotID:      slotId,
		Token:       token,
		LockedUntil: lockedUntil,
		TTLMs:       ttl.Milliseconds(),
	}, nil
}

// ReleaseSlot gives up a hold early. Unknown token on a known slot is
// NotFound, releasing twice is therefore safe. The slot only reverts to
// AVAILABLE when nothing else still claims it.
func ReleaseSlot(slotId uint, token string) error {
	db := db.GetDb()
	var slot models.AvailabilitySlot
	if err := db.
		Preload("Booking").
		Where(&models.AvailabilitySlot{ID: slotId}).
		First(&slot).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		return err
	}
	var lock models.SlotLock
	if err := db.
		Where(&models.SlotLock{SlotID: slotId, Token: token}).
		First(&lock).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLockNotFound
		}
		return err
	}
	if _, err := lib.ReleaseSlotLock(context.Background(), slotId, token); err != nil {
		log.Printf("Error releasing lock entry for slot %d: %s\n", slotId, err.Error())
	}
	hasBooking := slot.Booking != nil && slot.Booking.Status != types.BOOKING_CANCELLED
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.SlotLock{}, lock.ID).Error; err != nil {
			return err
		}
		var liveLocks int64
		if err := tx.
			Model(&models.SlotLock{}).
			Where("slot_id = ? AND locked_until > ?", slotId, time.Now()).
			Count(&liveLocks).
			Error; err != nil {
			return err
		}
		if liveLocks == 0 && slot.Status == types.SLOT_RESERVED && !hasBooking {
			if err := tx.
				Model(&models.AvailabilitySlot{}).
				Where("id = ?", slotId).
				Update("status", types.SLOT_AVAILABLE).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkSlotAsBooked finalizes a slot after payment: every hold is purged and
// the slot is pinned to BOOKED.
func MarkSlotAsBooked(slotId uint) error {
	return purgeSlotLocks(slotId, types.SLOT_BOOKED)
}

// ReleaseSlotAfterRefund reopens a slot once its booking was refunded.
func ReleaseSlotAfterRefund(slotId uint) error {
	return purgeSlotLocks(slotId, types.SLOT_AVAILABLE)
}

func purgeSlotLocks(slotId uint, status types.SlotStatus) error {
	db := db.GetDb()
	var slot models.AvailabilitySlot
	if err := db.
		Preload("Locks").
		Where(&models.AvailabilitySlot{ID: slotId}).
		First(&slot).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		return err
	}
	for _, l := range slot.Locks {
		if _, err := lib.ReleaseSlotLock(context.Background(), slotId, l.Token); err != nil {
			log.Printf("Error releasing lock entry for slot %d: %s\n", slotId, err.Error())
		}
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("slot_id = ?", slotId).Delete(&models.SlotLock{}).Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.AvailabilitySlot{}).
			Where("id = ?", slotId).
			Update("status", status).
			Error; err != nil {
			return err
		}
		return nil
	})
}
