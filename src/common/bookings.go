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
	"mbs/src/utils"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateBooking turns a valid slot hold into a PENDING booking. The booking
// row, the hold extension and the slot status all commit in one transaction
// against a row-locked slot, so two redeemed tokens can never both produce a
// booking. Meet-link and notification dispatch happen after commit and are
// fire-and-forget.
func CreateBooking(params *types.CreateBookingRequestBody, userId uint) (*models.Booking, error) {
	dbi := db.GetDb()
	var booking models.Booking
	err := dbi.Transaction(func(tx *gorm.DB) error {
		var slot models.AvailabilitySlot
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.AvailabilitySlot{ID: params.SlotID}).
			First(&slot).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return err
		}
		var existing int64
		if err := tx.
			Model(&models.Booking{}).
			Where("slot_id = ? AND status <> ?", params.SlotID, types.BOOKING_CANCELLED).
			Count(&existing).
			Error; err != nil {
			return err
		}
		if existing > 0 || slot.Status == types.SLOT_BOOKED {
			return ErrSlotAlreadyBooked
		}
		var instructor models.InstructorProfile
		if err := tx.
			Where(&models.InstructorProfile{ID: slot.InstructorProfileID}).
			First(&instructor).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstructorMissing
			}
			return err
		}
		var lock models.SlotLock
		if err := tx.
			Where(&models.SlotLock{SlotID: params.SlotID, Token: params.LockToken}).
			First(&lock).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLockRequired
			}
			return err
		}
		now := time.Now()
		if lock.LockedUntil.Before(now) {
			return ErrLockExpired
		}
		if lock.UserID != nil && *lock.UserID != userId {
			return ErrLockOwnedByAnotherUser
		}
		timezone := utils.ResolveTimezone(params.Timezone, slot.Timezone, instructor.Timezone)
		booking = models.Booking{
			UserID:              userId,
			InstructorProfileID: instructor.ID,
			SlotID:              slot.ID,
			Status:              types.BOOKING_PENDING,
			ScheduledStart:      slot.StartTime,
			ScheduledEnd:        slot.EndTime,
			Timezone:            timezone,
			PriceAmount:         instructor.PriceAmount,
			PriceCurrency:       instructor.PriceCurrency,
			Notes:               params.Notes,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		// The hold only ever grows here: a lock already extended past the
		// grace window keeps its later expiry.
		extended := now.Add(config.BookingHoldExtension())
		if lock.LockedUntil.After(extended) {
			extended = lock.LockedUntil
		}
		if err := tx.
			Model(&models.SlotLock{}).
			Where("id = ?", lock.ID).
			Updates(map[string]any{
				"locked_until": extended,
				"reason":       "booking-payment",
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.AvailabilitySlot{}).
			Where("id = ?", slot.ID).
			Update("status", types.SLOT_RESERVED).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := lib.ExtendSlotLock(context.Background(), params.SlotID, params.LockToken, config.BookingHoldExtension()); err != nil {
		log.Printf("Error extending lock entry for slot %d: %s\n", params.SlotID, err.Error())
	}

	go EnqueueMeetLinkJob(booking.ID)
	go NotifyBookingCreated(booking.ID)

	var out models.Booking
	if err := dbi.
		Preload("Instructor").
		Preload("Slot").
		Where(&models.Booking{ID: booking.ID}).
		First(&out).
		Error; err != nil {
		log.Printf("Error reloading booking %d: %s\n", booking.ID, err.Error())
		return &booking, nil
	}
	return &out, nil
}

func GetBooking(bookingId uint) (*models.Booking, error) {
	db := db.GetDb()
	var booking models.Booking
	if err := db.
		Preload("Instructor").
		Preload("Slot").
		Preload("Payments").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func GetUserBookings(userId uint) ([]models.Booking, error) {
	db := db.GetDb()
	var bookings []models.Booking
	err := db.
		Preload("Instructor").
		Preload("Slot").
		Where(&models.Booking{UserID: userId}).
		Order("scheduled_start asc").
		Find(&bookings).
		Error
	return bookings, err
}

func GetInstructorBookings(instructorId uint) ([]models.Booking, error) {
	db := db.GetDb()
	var bookings []models.Booking
	err := db.
		Preload("User").
		Preload("Slot").
		Where(&models.Booking{InstructorProfileID: instructorId}).
		Order("scheduled_start asc").
		Find(&bookings).
		Error
	return bookings, err
}

// MarkBookingPaymentInitiated records the checkout session once Stripe
// reports it completed.
func MarkBookingPaymentInitiated(bookingId uint, checkoutSessionId string) error {
	db := db.GetDb()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingId, types.BOOKING_PENDING).
			Updates(map[string]any{
				"status":              types.BOOKING_PAYMENT_INITIATED,
				"checkout_session_id": checkoutSessionId,
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Payment{}).
			Where("booking_id = ? AND checkout_session_id = ?", bookingId, checkoutSessionId).
			Update("status", types.PAYMENT_PROCESSING).
			Error; err != nil {
			return err
		}
		return nil
	})
}

// ConfirmBooking flips a booking to CONFIRMED after payment capture and
// finalizes its slot.
func ConfirmBooking(bookingId uint, paymentIntentId string) error {
	dbi := db.GetDb()
	var booking models.Booking
	err := dbi.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.Booking{ID: bookingId}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			Updates(map[string]any{
				"status":            types.BOOKING_CONFIRMED,
				"payment_intent_id": paymentIntentId,
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Payment{}).
			Where("booking_id = ?", bookingId).
			Updates(map[string]any{
				"status":            types.PAYMENT_SUCCEEDED,
				"payment_intent_id": paymentIntentId,
			}).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := MarkSlotAsBooked(booking.SlotID); err != nil {
		return err
	}
	go NotifyBookingConfirmed(bookingId)
	return nil
}

// MarkBookingRefunded records a refund reported by the payment provider and
// reopens the slot. Unlike CancelBooking it never calls out to Stripe.
func MarkBookingRefunded(bookingId uint) error {
	dbi := db.GetDb()
	var booking models.Booking
	if err := dbi.
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	err := dbi.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			Update("status", types.BOOKING_CANCELLED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Payment{}).
			Where("booking_id = ?", bookingId).
			Update("status", types.PAYMENT_REFUNDED).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ReleaseSlotAfterRefund(booking.SlotID)
}

// CancelBooking cancels a booking, refunding through Stripe when a payment
// was captured, and reopens the slot.
func CancelBooking(bookingId uint) error {
	dbi := db.GetDb()
	var booking models.Booking
	if err := dbi.
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if booking.PaymentIntentId != nil {
		if _, err := lib.RefundBookingPayment(*booking.PaymentIntentId); err != nil {
			log.Printf("Error refunding payment for booking %d: %s\n", bookingId, err.Error())
			return err
		}
	}
	err := dbi.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			Update("status", types.BOOKING_CANCELLED).
			Error; err != nil {
			return err
		}
		if booking.PaymentIntentId != nil {
			if err := tx.
				Model(&models.Payment{}).
				Where("booking_id = ?", bookingId).
				Update("status", types.PAYMENT_REFUNDED).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ReleaseSlotAfterRefund(booking.SlotID)
}
