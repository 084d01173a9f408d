package common

import (
	"context"
	"encoding/json"
	"log"
	"mbs/src/db"
	"mbs/src/lib"
	awslib "mbs/src/lib/aws"
	"mbs/src/models"
	"mbs/src/types"
	"mbs/src/utils"
	"os"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const MeetLinkJobsQueue = "MeetLinkJobs"

// EnqueueMeetLinkJob queues meet-link creation for a booking. Failures only
// log, a booking must never fail because its meet link is late.
func EnqueueMeetLinkJob(bookingId uint) {
	payload := types.JSONB{"booking_id": bookingId}
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == string(types.Local) {
		if err := lib.KafkaProduceMessage("meetlinks", utils.WithSuffix(MeetLinkJobsQueue), payload); err != nil {
			log.Printf("Error queueing meet link job for booking %d: %s\n", bookingId, err.Error())
		}
		return
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		log.Printf("Error serializing meet link job for booking %d: %s\n", bookingId, err.Error())
		return
	}
	if err := lib.SQSProduceMessage(utils.WithSuffix(MeetLinkJobsQueue), string(body)); err != nil {
		log.Printf("Error queueing meet link job for booking %d: %s\n", bookingId, err.Error())
	}
}

// MeetLinkJobsConsumer drains the meet-link queue. Local runs poll Kafka,
// deployed environments listen on SQS.
func MeetLinkJobsConsumer() {
	queue := utils.WithSuffix(MeetLinkJobsQueue)
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == string(types.Local) {
		if err := lib.KafkaConsumeTopic("meetlinks", queue, func(value []byte) {
			handleMeetLinkJob(string(value))
		}); err != nil {
			log.Printf("Error starting meet link consumer: %s\n", err.Error())
		}
		return
	}
	consumer := awslib.NewSQSConsumer(queue, handleMeetLinkJob)
	consumer.Listen()
}

func handleMeetLinkJob(body string) {
	bookingId := uint(gjson.Get(body, "booking_id").Uint())
	if bookingId == 0 {
		log.Printf("Discarding meet link job with no booking id: %s\n", body)
		return
	}
	if err := ProcessMeetLinkJob(bookingId); err != nil {
		log.Printf("Error processing meet link job for booking %d: %s\n", bookingId, err.Error())
	}
}

// ProcessMeetLinkJob creates a calendar event with a Meet conference on the
// instructor's connected calendar and stores the link on the booking.
func ProcessMeetLinkJob(bookingId uint) error {
	dbi := db.GetDb()
	var booking models.Booking
	if err := dbi.
		Preload("Instructor").
		Preload("User").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		return err
	}
	if booking.Instructor == nil || booking.Instructor.CalendarToken == nil {
		log.Printf("Instructor for booking %d has no calendar connected, skipping meet link\n", bookingId)
		return nil
	}
	raw, err := json.Marshal(booking.Instructor.CalendarToken)
	if err != nil {
		return err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return err
	}
	svc, err := lib.GAPICreateCalendarService(context.Background(), &tok, nil)
	if err != nil {
		return err
	}
	attendees := []string{}
	if booking.User != nil && booking.User.Email != "" {
		attendees = append(attendees, booking.User.Email)
	}
	calId := "primary"
	if booking.Instructor.CalendarID != nil {
		calId = *booking.Instructor.CalendarID
	}
	link, err := lib.GAPIAddMeetEvent(svc, &lib.MeetEventInput{
		CalendarID:     calId,
		Summary:        "Mentoring session",
		Description:    "Booked through the mentor booking service",
		Start:          booking.ScheduledStart,
		End:            booking.ScheduledEnd,
		Timezone:       booking.Timezone,
		AttendeeEmails: attendees,
	})
	if err != nil {
		return err
	}
	return dbi.Transaction(func(tx *gorm.DB) error {
		return tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingId).
			Update("meet_link", link).
			Error
	})
}
