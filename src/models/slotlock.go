package models

import (
	"mbs/src/types"
	"time"
)

// SlotLock is the durable record of a hold on a slot. The matching Redis key
// is the authoritative exclusion; rows that outlive their Redis key are
// reaped by the expiry sweeper.
type SlotLock struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	SlotID      uint      `gorm:"index" json:"slot_id,omitempty"`
	Token       string    `gorm:"uniqueIndex" json:"token,omitempty"`
	LockedUntil time.Time `gorm:"index" json:"locked_until,omitempty"`
	UserID      *uint     `json:"user_id,omitempty"`
	Reason      *string   `json:"reason,omitempty"`

	Slot *AvailabilitySlot `gorm:"foreignKey:slot_id" json:"slot,omitempty"`
	User *User             `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}
