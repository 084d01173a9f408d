package models

import (
	"mbs/src/types"
	"time"
)

type Booking struct {
	ID                  uint                `gorm:"primarykey" json:"id"`
	UserID              uint                `gorm:"index" json:"user_id,omitempty"`
	InstructorProfileID uint                `gorm:"index" json:"instructor_profile_id,omitempty"`
	SlotID              uint                `gorm:"index" json:"slot_id,omitempty"`
	Status              types.BookingStatus `gorm:"default:'PENDING'" json:"status,omitempty"`
	ScheduledStart      time.Time           `json:"scheduled_start,omitempty"`
	ScheduledEnd        time.Time           `json:"scheduled_end,omitempty"`
	Timezone            string              `json:"timezone,omitempty"`
	PriceAmount         float64             `json:"price_amount,omitempty"`
	PriceCurrency       string              `json:"price_currency,omitempty"`
	Notes               *string             `json:"notes,omitempty"`
	MeetLink            *string             `json:"meet_link,omitempty"`
	CheckoutSessionId   *string             `json:"-"`
	PaymentIntentId     *string             `json:"-"`

	User       *User              `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Instructor *InstructorProfile `gorm:"foreignKey:instructor_profile_id" json:"instructor,omitempty"`
	Slot       *AvailabilitySlot  `gorm:"foreignKey:slot_id" json:"slot,omitempty"`
	Payments   []Payment          `gorm:"foreignKey:booking_id" json:"payments,omitempty"`

	types.Timestamps
}
