package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"
const DATE_PARSE_FORMAT = "2006-01-02"

var (
	API_ENV             = os.Getenv("API_ENV")
	API_HOST            = os.Getenv("API_HOST")
	API_SECRET          = os.Getenv("API_SECRET")
	SMTP_FROM           = os.Getenv("SMTP_FROM")
	OAUTH_CLIENT_ID     = os.Getenv("OAUTH_CLIENT_ID")
	OAUTH_CLIENT_SECRET = os.Getenv("OAUTH_CLIENT_SECRET")
)

func durationFromEnvMs(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// SlotLockTTL is how long a slot hold lasts before it lapses on its own.
func SlotLockTTL() time.Duration {
	return durationFromEnvMs("SLOT_LOCK_TTL_MS", 5*time.Minute)
}

// BookingHoldExtension is the minimum remaining hold granted to a slot
// once a booking has been created against it.
func BookingHoldExtension() time.Duration {
	return durationFromEnvMs("BOOKING_HOLD_EXTENSION_MS", 10*time.Minute)
}

// LockSweepInterval is how often the expired-lock sweeper runs.
func LockSweepInterval() time.Duration {
	return durationFromEnvMs("SLOT_LOCK_SWEEP_INTERVAL_MS", time.Minute)
}
