package models

import "mbs/src/types"

type Payment struct {
	ID                uint                `gorm:"primarykey" json:"id"`
	BookingID         uint                `gorm:"index" json:"booking_id,omitempty"`
	Provider          string              `gorm:"default:'stripe'" json:"provider,omitempty"`
	CheckoutSessionId *string             `json:"-"`
	PaymentIntentId   *string             `json:"-"`
	Amount            float64             `json:"amount,omitempty"`
	Currency          string              `json:"currency,omitempty"`
	Status            types.PaymentStatus `gorm:"default:'created'" json:"status,omitempty"`

	Booking *Booking `gorm:"foreignKey:booking_id" json:"booking,omitempty"`

	types.Timestamps
}
