package common

import (
	"sync"
	"testing"
	"time"

	"mbs/src/models"
	"mbs/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingFromHold(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_from_hold")
	instructor := seedInstructor(t, gdb, "ada-booking")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "booker@example.com")
	seedLock(t, gdb, slot.ID, "hold-token", time.Now().Add(4*time.Minute), &user.ID)

	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "hold-token",
	}, user.ID)
	require.NoError(t, err)
	assert.Equal(t, types.BOOKING_PENDING, booking.Status)
	assert.Equal(t, user.ID, booking.UserID)
	assert.Equal(t, instructor.ID, booking.InstructorProfileID)
	assert.Equal(t, instructor.PriceAmount, booking.PriceAmount)
	assert.Equal(t, "usd", booking.PriceCurrency)
	assert.Equal(t, "UTC", booking.Timezone)
	assert.Equal(t, slot.StartTime.Unix(), booking.ScheduledStart.Unix())

	// Creating the booking stretches the hold to cover the payment window.
	var lock models.SlotLock
	require.NoError(t, gdb.Where("slot_id = ?", slot.ID).First(&lock).Error)
	assert.True(t, lock.LockedUntil.After(time.Now().Add(9*time.Minute)))
	require.NotNil(t, lock.Reason)
	assert.Equal(t, "booking-payment", *lock.Reason)

	var stored models.AvailabilitySlot
	require.NoError(t, gdb.First(&stored, slot.ID).Error)
	assert.Equal(t, types.SLOT_RESERVED, stored.Status)
}

func TestCreateBookingResolvesRequestedTimezone(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_timezone")
	instructor := seedInstructor(t, gdb, "ada-booking-tz")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "tz@example.com")
	seedLock(t, gdb, slot.ID, "tz-token", time.Now().Add(4*time.Minute), &user.ID)

	tz := "Europe/Berlin"
	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "tz-token",
		Timezone:  &tz,
	}, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", booking.Timezone)
}

func TestCreateBookingRequiresLock(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_requires_lock")
	instructor := seedInstructor(t, gdb, "ada-booking-nolock")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_AVAILABLE)
	user := seedUser(t, gdb, "nolock@example.com")

	_, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "never-issued",
	}, user.ID)
	assert.ErrorIs(t, err, ErrLockRequired)

	var count int64
	require.NoError(t, gdb.Model(&models.Booking{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCreateBookingExpiredLock(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_expired_lock")
	instructor := seedInstructor(t, gdb, "ada-booking-expired")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "expired@example.com")
	seedLock(t, gdb, slot.ID, "expired-token", time.Now().Add(-time.Second), &user.ID)

	_, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "expired-token",
	}, user.ID)
	assert.ErrorIs(t, err, ErrLockExpired)
}

func TestCreateBookingWrongOwner(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_wrong_owner")
	instructor := seedInstructor(t, gdb, "ada-booking-owner")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	holder := seedUser(t, gdb, "holder2@example.com")
	intruder := seedUser(t, gdb, "intruder@example.com")
	seedLock(t, gdb, slot.ID, "owned-token", time.Now().Add(4*time.Minute), &holder.ID)

	_, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "owned-token",
	}, intruder.ID)
	assert.ErrorIs(t, err, ErrLockOwnedByAnotherUser)
}

func TestCreateBookingNoDoubleBooking(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_double")
	instructor := seedInstructor(t, gdb, "ada-booking-double")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	first := seedUser(t, gdb, "first@example.com")
	second := seedUser(t, gdb, "second@example.com")
	seedLock(t, gdb, slot.ID, "first-token", time.Now().Add(4*time.Minute), &first.ID)

	_, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "first-token",
	}, first.ID)
	require.NoError(t, err)

	seedLock(t, gdb, slot.ID, "second-token", time.Now().Add(4*time.Minute), &second.ID)
	_, err = CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "second-token",
	}, second.ID)
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	var count int64
	require.NoError(t, gdb.Model(&models.Booking{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateBookingConcurrentClaims(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_race")
	instructor := seedInstructor(t, gdb, "ada-booking-race")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	first := seedUser(t, gdb, "racer-one@example.com")
	second := seedUser(t, gdb, "racer-two@example.com")
	seedLock(t, gdb, slot.ID, "race-token-1", time.Now().Add(4*time.Minute), &first.ID)
	seedLock(t, gdb, slot.ID, "race-token-2", time.Now().Add(4*time.Minute), &second.ID)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errs[0] = CreateBooking(&types.CreateBookingRequestBody{
			SlotID:    slot.ID,
			LockToken: "race-token-1",
		}, first.ID)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errs[1] = CreateBooking(&types.CreateBookingRequestBody{
			SlotID:    slot.ID,
			LockToken: "race-token-2",
		}, second.ID)
	}()
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
		}
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, gdb.Model(&models.Booking{}).Where("slot_id = ?", slot.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConfirmBookingFinalizesSlot(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_confirm")
	instructor := seedInstructor(t, gdb, "ada-booking-confirm")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "confirm@example.com")
	seedLock(t, gdb, slot.ID, "confirm-token", time.Now().Add(4*time.Minute), &user.ID)

	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "confirm-token",
	}, user.ID)
	require.NoError(t, err)

	require.NoError(t, ConfirmBooking(booking.ID, "pi_test_123"))

	var stored models.Booking
	require.NoError(t, gdb.First(&stored, booking.ID).Error)
	assert.Equal(t, types.BOOKING_CONFIRMED, stored.Status)
	require.NotNil(t, stored.PaymentIntentId)
	assert.Equal(t, "pi_test_123", *stored.PaymentIntentId)

	var storedSlot models.AvailabilitySlot
	require.NoError(t, gdb.First(&storedSlot, slot.ID).Error)
	assert.Equal(t, types.SLOT_BOOKED, storedSlot.Status)

	var locks int64
	require.NoError(t, gdb.Model(&models.SlotLock{}).Where("slot_id = ?", slot.ID).Count(&locks).Error)
	assert.EqualValues(t, 0, locks)
}

func TestConfirmBookingUnknown(t *testing.T) {
	setupTestEnv(t, "booking_confirm_unknown")
	assert.ErrorIs(t, ConfirmBooking(777, "pi_missing"), ErrBookingNotFound)
}

func TestMarkBookingPaymentInitiated(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_payment_initiated")
	instructor := seedInstructor(t, gdb, "ada-booking-pay")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "pay@example.com")
	seedLock(t, gdb, slot.ID, "pay-token", time.Now().Add(4*time.Minute), &user.ID)

	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "pay-token",
	}, user.ID)
	require.NoError(t, err)

	sessionId := "cs_test_123"
	payment := models.Payment{
		BookingID:         booking.ID,
		CheckoutSessionId: &sessionId,
		Amount:            booking.PriceAmount,
		Currency:          booking.PriceCurrency,
		Status:            types.PAYMENT_CREATED,
	}
	require.NoError(t, gdb.Create(&payment).Error)

	require.NoError(t, MarkBookingPaymentInitiated(booking.ID, sessionId))

	var stored models.Booking
	require.NoError(t, gdb.First(&stored, booking.ID).Error)
	assert.Equal(t, types.BOOKING_PAYMENT_INITIATED, stored.Status)

	var storedPayment models.Payment
	require.NoError(t, gdb.First(&storedPayment, payment.ID).Error)
	assert.Equal(t, types.PAYMENT_PROCESSING, storedPayment.Status)
}

func TestCancelBookingReopensSlot(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_cancel")
	instructor := seedInstructor(t, gdb, "ada-booking-cancel")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "cancel@example.com")
	seedLock(t, gdb, slot.ID, "cancel-token", time.Now().Add(4*time.Minute), &user.ID)

	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "cancel-token",
	}, user.ID)
	require.NoError(t, err)

	require.NoError(t, CancelBooking(booking.ID))

	var stored models.Booking
	require.NoError(t, gdb.First(&stored, booking.ID).Error)
	assert.Equal(t, types.BOOKING_CANCELLED, stored.Status)

	var storedSlot models.AvailabilitySlot
	require.NoError(t, gdb.First(&storedSlot, slot.ID).Error)
	assert.Equal(t, types.SLOT_AVAILABLE, storedSlot.Status)
}

func TestMarkBookingRefundedReopensSlot(t *testing.T) {
	gdb, _ := setupTestEnv(t, "booking_refund")
	instructor := seedInstructor(t, gdb, "ada-booking-refund")
	slot := seedSlot(t, gdb, instructor.ID, time.Now().Add(3*time.Hour), types.SLOT_RESERVED)
	user := seedUser(t, gdb, "refund@example.com")
	seedLock(t, gdb, slot.ID, "refund-token", time.Now().Add(4*time.Minute), &user.ID)

	booking, err := CreateBooking(&types.CreateBookingRequestBody{
		SlotID:    slot.ID,
		LockToken: "refund-token",
	}, user.ID)
	require.NoError(t, err)
	require.NoError(t, ConfirmBooking(booking.ID, "pi_refund_1"))

	require.NoError(t, MarkBookingRefunded(booking.ID))

	var stored models.Booking
	require.NoError(t, gdb.First(&stored, booking.ID).Error)
	assert.Equal(t, types.BOOKING_CANCELLED, stored.Status)

	var storedSlot models.AvailabilitySlot
	require.NoError(t, gdb.First(&storedSlot, slot.ID).Error)
	assert.Equal(t, types.SLOT_AVAILABLE, storedSlot.Status)
}
