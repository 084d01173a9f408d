package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/models"
	"mbs/src/types"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func GenerateJWT(email string, userId uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"email": email,
		"sub":   fmt.Sprint(userId),
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// WithSuffix namespaces a queue by environment so local and deployed runs
// never share one.
func WithSuffix(queue string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		suffix = config.API_ENV
	}
	if suffix == "" {
		return queue
	}
	return fmt.Sprintf("%s_%s", queue, suffix)
}

func IsProd() bool {
	return config.API_ENV == string(types.Production)
}

// ResolveTimezone picks the effective timezone for a booking: the request
// wins, then the slot, then the instructor, then UTC. Unparseable names fall
// through to the next candidate.
func ResolveTimezone(requested *string, slotTimezone string, instructorTimezone string) string {
	candidates := []string{}
	if requested != nil {
		candidates = append(candidates, *requested)
	}
	candidates = append(candidates, slotTimezone, instructorTimezone)
	for _, tz := range candidates {
		if tz == "" {
			continue
		}
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
		log.Printf("Ignoring unknown timezone %q\n", tz)
	}
	return "UTC"
}

func CreateInstructorProfile(params *types.CreateInstructorRequestBody) (uint, error) {
	currency := params.PriceCurrency
	if currency == "" {
		currency = "usd"
	}
	timezone := params.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	profile := models.InstructorProfile{
		Name:          params.Name,
		Slug:          slug.Make(params.Name),
		Headline:      params.Headline,
		About:         params.About,
		PriceAmount:   params.PriceAmount,
		PriceCurrency: currency,
		Timezone:      timezone,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.InstructorProfile{}).Where("slug = ?", profile.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			profile.Slug = fmt.Sprintf("%s-%d", profile.Slug, time.Now().UnixMilli())
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return profile.ID, nil
}

// GenerateDailySlots seeds fixed-length AVAILABLE slots for one UTC day,
// skipping ranges that would overlap an existing slot.
func GenerateDailySlots(instructorId uint, date time.Time, slotMinutes int, startHour int, endHour int) ([]uint, error) {
	if slotMinutes <= 0 {
		return nil, errors.New("slot length must be positive")
	}
	if endHour <= startHour {
		return nil, errors.New("end hour must be after start hour")
	}
	d := date.UTC()
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, time.UTC)
	dayEnd := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Add(time.Duration(endHour) * time.Hour)

	var instructor models.InstructorProfile
	ids := []uint{}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&models.InstructorProfile{ID: instructorId}).First(&instructor).Error; err != nil {
			return err
		}
		var existing []models.AvailabilitySlot
		if err := tx.
			Where(&models.AvailabilitySlot{InstructorProfileID: instructorId}).
			Where("start_time < ? AND end_time > ?", dayEnd, dayStart).
			Find(&existing).Error; err != nil {
			return err
		}
		step := time.Duration(slotMinutes) * time.Minute
		for start := dayStart; !start.Add(step).After(dayEnd); start = start.Add(step) {
			end := start.Add(step)
			overlaps := false
			for _, s := range existing {
				if start.Before(s.EndTime) && end.After(s.StartTime) {
					overlaps = true
					break
				}
			}
			if overlaps {
				continue
			}
			slot := models.AvailabilitySlot{
				InstructorProfileID: instructorId,
				StartTime:           start,
				EndTime:             end,
				Timezone:            instructor.Timezone,
				Status:              types.SLOT_AVAILABLE,
			}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
			ids = append(ids, slot.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}
