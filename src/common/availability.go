package common

import (
	"context"
	"log"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"
	"time"
)

type SlotView struct {
	ID             uint             `json:"id"`
	InstructorID   uint             `json:"instructor_id"`
	StartTimeUTC   string           `json:"start_time_utc"`
	EndTimeUTC     string           `json:"end_time_utc"`
	StartTimeLocal string           `json:"start_time_local"`
	EndTimeLocal   string           `json:"end_time_local"`
	Timezone       string           `json:"timezone"`
	Status         types.SlotStatus `json:"status"`
	IsLocked       bool             `json:"is_locked"`
	LockedUntil    *string          `json:"locked_until,omitempty"`
	LockedBy       *uint            `json:"locked_by,omitempty"`
	LockReason     *string          `json:"lock_reason,omitempty"`
	HasBooking     bool             `json:"has_booking"`
}

type AvailabilityView struct {
	InstructorID uint       `json:"instructor_id"`
	Date         string     `json:"date"`
	Timezone     string     `json:"timezone"`
	Slots        []SlotView `json:"slots"`
}

// GetDailyAvailability projects one UTC day of an instructor's slots. The
// read path never fails: any storage error degrades to an empty slot list so
// browsing stays up while the engine recovers.
func GetDailyAvailability(instructorId uint, date time.Time) *AvailabilityView {
	if err := CleanupExpiredLocks(); err != nil {
		log.Printf("Failed to cleanup expired locks, continuing anyway: %s\n", err.Error())
	}
	d := date.UTC()
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	view := &AvailabilityView{
		InstructorID: instructorId,
		Date:         dayStart.Format("2006-01-02"),
		Timezone:     "UTC",
		Slots:        []SlotView{},
	}
	var slots []models.AvailabilitySlot
	db := db.GetDb()
	if err := db.
		Where(&models.AvailabilitySlot{InstructorProfileID: instructorId}).
		Where("start_time >= ? AND start_time < ?", dayStart, dayEnd).
		Order("start_time asc").
		Preload("Locks").
		Preload("Booking").
		Find(&slots).Error; err != nil {
		log.Printf("Failed to fetch availability for instructor %d: %s\n", instructorId, err.Error())
		return view
	}
	if len(slots) > 0 && slots[0].Timezone != "" {
		view.Timezone = slots[0].Timezone
	}
	now := time.Now()
	for _, slot := range slots {
		view.Slots = append(view.Slots, newSlotView(&slot, now))
	}
	return view
}

func newSlotView(slot *models.AvailabilitySlot, now time.Time) SlotView {
	var liveLock *models.SlotLock
	for i := range slot.Locks {
		if slot.Locks[i].LockedUntil.After(now) {
			liveLock = &slot.Locks[i]
			break
		}
	}
	status := slot.Status
	if liveLock != nil && status == types.SLOT_AVAILABLE {
		status = types.SLOT_RESERVED
	}
	view := SlotView{
		ID:             slot.ID,
		InstructorID:   slot.InstructorProfileID,
		StartTimeUTC:   slot.StartTime.UTC().Format(time.RFC3339),
		EndTimeUTC:     slot.EndTime.UTC().Format(time.RFC3339),
		StartTimeLocal: formatInTimezone(slot.StartTime, slot.Timezone),
		EndTimeLocal:   formatInTimezone(slot.EndTime, slot.Timezone),
		Timezone:       slot.Timezone,
		Status:         status,
		IsLocked:       liveLock != nil,
		HasBooking:     slot.Booking != nil && slot.Booking.Status != types.BOOKING_CANCELLED,
	}
	if liveLock != nil {
		until := liveLock.LockedUntil.UTC().Format(time.RFC3339)
		view.LockedUntil = &until
		view.LockedBy = liveLock.UserID
		view.LockReason = liveLock.Reason
	}
	return view
}

func formatInTimezone(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006, 15:04")
}

// CleanupExpiredLocks reaps lock rows whose expiry has passed. Each matching
// Redis key is released best-effort first; the rows go in one batch delete.
// Slot status is left alone, the projector derives it from live rows.
func CleanupExpiredLocks() error {
	db := db.GetDb()
	var expired []models.SlotLock
	if err := db.Where("locked_until < ?", time.Now()).Find(&expired).Error; err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(expired))
	for _, l := range expired {
		if _, err := lib.ReleaseSlotLock(context.Background(), l.SlotID, l.Token); err != nil {
			log.Printf("Error releasing lock entry for slot %d: %s\n", l.SlotID, err.Error())
		}
		ids = append(ids, l.ID)
	}
	if err := db.Where("id IN ?", ids).Delete(&models.SlotLock{}).Error; err != nil {
		return err
	}
	log.Printf("Cleaned up %d expired slot locks\n", len(ids))
	return nil
}
