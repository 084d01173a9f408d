package models

import "mbs/src/types"

type InstructorProfile struct {
	ID            uint         `gorm:"primarykey" json:"id"`
	Name          string       `json:"name,omitempty"`
	Slug          string       `gorm:"uniqueIndex" json:"slug,omitempty"`
	Headline      *string      `json:"headline,omitempty"`
	About         *string      `json:"about,omitempty"`
	PriceAmount   float64      `json:"price_amount,omitempty"`
	PriceCurrency string       `gorm:"default:'usd'" json:"price_currency,omitempty"`
	Timezone      string       `gorm:"default:'UTC'" json:"timezone,omitempty"`
	CalendarID    *string      `json:"-"`
	CalendarToken *types.JSONB `gorm:"type:jsonb" json:"-"`

	Slots []AvailabilitySlot `gorm:"foreignKey:instructor_profile_id" json:"slots,omitempty"`

	types.Timestamps
}
