package models

import (
	"mbs/src/types"
	"time"
)

type AvailabilitySlot struct {
	ID                  uint             `gorm:"primarykey" json:"id"`
	InstructorProfileID uint             `gorm:"index" json:"instructor_profile_id,omitempty"`
	StartTime           time.Time        `gorm:"index" json:"start_time,omitempty"`
	EndTime             time.Time        `json:"end_time,omitempty"`
	Timezone            string           `gorm:"default:'UTC'" json:"timezone,omitempty"`
	Status              types.SlotStatus `gorm:"default:'AVAILABLE'" json:"status,omitempty"`

	Instructor *InstructorProfile `gorm:"foreignKey:instructor_profile_id" json:"instructor,omitempty"`
	Locks      []SlotLock         `gorm:"foreignKey:slot_id" json:"locks,omitempty"`
	Booking    *Booking           `gorm:"foreignKey:slot_id" json:"booking,omitempty"`

	types.Timestamps
}
