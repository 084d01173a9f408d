package common

import (
	"fmt"
	"log"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/lib"
	awslib "mbs/src/lib/aws"
	"mbs/src/lib/mailer"
	"mbs/src/models"
	"mbs/src/types"
	"mbs/src/utils"
	"os"

	"github.com/tidwall/gjson"
)

// NotifyBookingCreated emails the learner that their booking is pending
// payment. Queue failures only log.
func NotifyBookingCreated(bookingId uint) {
	booking, err := bookingForNotification(bookingId)
	if err != nil {
		log.Printf("Error loading booking %d for notification: %s\n", bookingId, err.Error())
		return
	}
	body := fmt.Sprintf(`
	<p>Your booking with %s is reserved.</p>
	<p>Scheduled for %s (%s).</p>
	<p>Complete payment to confirm your session.</p>
	`, booking.Instructor.Name, booking.ScheduledStart.Format("Mon, 02 Jan 2006 15:04"), booking.Timezone)
	if err := mailer.NewMailerMessage(&lib.SendMailInput{
		From:     config.SMTP_FROM,
		FromName: "noreply",
		To:       []string{booking.User.Email},
		Subject:  "Your session is reserved",
		Body:     body,
		Html:     true,
	}); err != nil {
		log.Printf("Could not queue booking-created email for booking %d: %s\n", bookingId, err.Error())
	}
}

// NotifyBookingConfirmed emails both sides once payment is captured.
func NotifyBookingConfirmed(bookingId uint) {
	booking, err := bookingForNotification(bookingId)
	if err != nil {
		log.Printf("Error loading booking %d for notification: %s\n", bookingId, err.Error())
		return
	}
	meetLink := "will follow shortly"
	if booking.MeetLink != nil {
		meetLink = *booking.MeetLink
	}
	body := fmt.Sprintf(`
	<p>Your session with %s is confirmed.</p>
	<p>Scheduled for %s (%s).</p>
	<p>Meet link: %s</p>
	`, booking.Instructor.Name, booking.ScheduledStart.Format("Mon, 02 Jan 2006 15:04"), booking.Timezone, meetLink)
	if err := mailer.NewMailerMessage(&lib.SendMailInput{
		From:     config.SMTP_FROM,
		FromName: "noreply",
		To:       []string{booking.User.Email},
		Subject:  "Your session is confirmed",
		Body:     body,
		Html:     true,
	}); err != nil {
		log.Printf("Could not queue booking-confirmed email for booking %d: %s\n", bookingId, err.Error())
	}
}

func bookingForNotification(bookingId uint) (*models.Booking, error) {
	dbi := db.GetDb()
	var booking models.Booking
	if err := dbi.
		Preload("Instructor").
		Preload("User").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error; err != nil {
		return nil, err
	}
	if booking.Instructor == nil || booking.User == nil {
		return nil, ErrInstructorMissing
	}
	return &booking, nil
}

// EmailQueueConsumer drains the mail queue. Local runs poll Kafka and send
// over SMTP; deployed environments listen on SQS and deliver through SES.
func EmailQueueConsumer() {
	emailQueue := utils.WithSuffix(os.Getenv("EMAIL_QUEUE"))
	if os.Getenv("API_ENV") == string(types.Local) {
		if err := lib.KafkaConsumeTopic("emails", emailQueue, func(value []byte) {
			handleQueuedEmail(string(value))
		}); err != nil {
			log.Printf("Error starting email consumer: %s\n", err.Error())
		}
		return
	}
	consumer := awslib.NewSQSConsumer(emailQueue, handleQueuedEmail)
	consumer.Listen()
}

func handleQueuedEmail(body string) {
	input := emailFromPayload(body)
	if os.Getenv("API_ENV") == string(types.Local) {
		if err := lib.SendMail(input); err != nil {
			log.Printf("Error sending queued email: %s\n", err.Error())
		}
		return
	}
	if _, err := awslib.SESSendMessage(awslib.BuildEmailInput(input.From, input.To, input.Subject, input.Body, input.Html)); err != nil {
		log.Printf("Error sending queued email through SES: %s\n", err.Error())
	}
}

// emailFromPayload maps a queued mail message back onto SendMailInput. The
// keys mirror what mailer.NewMailerMessage serializes.
func emailFromPayload(body string) *lib.SendMailInput {
	to := []string{}
	for _, addr := range gjson.Get(body, "to").Array() {
		to = append(to, addr.String())
	}
	return &lib.SendMailInput{
		From:     gjson.Get(body, "from").String(),
		FromName: gjson.Get(body, "from-name").String(),
		To:       to,
		ReplyTo:  gjson.Get(body, "reply-to").String(),
		Subject:  gjson.Get(body, "subject").String(),
		Body:     gjson.Get(body, "body").String(),
		Html:     gjson.Get(body, "html").Bool(),
	}
}
