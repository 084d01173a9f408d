package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Environment string

const (
	Production Environment = "production"
	Test       Environment = "test"
	Local      Environment = "local"
)

type SlotStatus string

const (
	SLOT_AVAILABLE SlotStatus = "AVAILABLE"
	SLOT_RESERVED  SlotStatus = "RESERVED"
	SLOT_BOOKED    SlotStatus = "BOOKED"
	SLOT_DISABLED  SlotStatus = "DISABLED"
)

type BookingStatus string

const (
	BOOKING_PENDING           BookingStatus = "PENDING"
	BOOKING_PAYMENT_INITIATED BookingStatus = "PAYMENT_INITIATED"
	BOOKING_CONFIRMED         BookingStatus = "CONFIRMED"
	BOOKING_CANCELLED         BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PAYMENT_CREATED    PaymentStatus = "created"
	PAYMENT_PROCESSING PaymentStatus = "processing"
	PAYMENT_SUCCEEDED  PaymentStatus = "succeeded"
	PAYMENT_REFUNDED   PaymentStatus = "refunded"
	PAYMENT_FAILED     PaymentStatus = "failed"
)

// Handler consumes a raw message body pulled off a queue.
type Handler func(payload string)

type LockSlotRequestBody struct {
	SlotID uint    `json:"slot_id" binding:"required"`
	Reason *string `json:"reason,omitempty"`
}

type ReleaseSlotRequestBody struct {
	SlotID uint   `json:"slot_id" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

type CreateBookingRequestBody struct {
	SlotID    uint    `json:"slot_id" binding:"required"`
	LockToken string  `json:"lock_token" binding:"required"`
	Timezone  *string `json:"timezone,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type CreateInstructorRequestBody struct {
	Name          string  `json:"name" binding:"required"`
	Headline      *string `json:"headline,omitempty"`
	About         *string `json:"about,omitempty"`
	PriceAmount   float64 `json:"price_amount" binding:"required"`
	PriceCurrency string  `json:"price_currency,omitempty"`
	Timezone      string  `json:"timezone,omitempty"`
}

type GenerateSlotsRequestBody struct {
	Date        string `json:"date" binding:"required,bookabledate"`
	SlotMinutes int    `json:"slot_minutes" binding:"required,min=15,max=240"`
	StartHour   int    `json:"start_hour" binding:"min=0,max=23"`
	EndHour     int    `json:"end_hour" binding:"required,min=1,max=24,gtfield=StartHour"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type Oauth2FlowState struct {
	InstructorID uint   `json:"instructor_id"`
	Nonce        string `json:"nonce"`
	Redirect     string `json:"redirect"`
}
