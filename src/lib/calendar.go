package lib

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func GAPICreateCalendarService(ctx context.Context, tok *oauth2.Token, conf *oauth2.Config) (svc *calendar.Service, err error) {
	if conf == nil {
		conf = &oauth2.Config{
			Endpoint: google.Endpoint,
			Scopes: []string{
				calendar.CalendarCalendarsScope,
				calendar.CalendarEventsScope,
			},
		}
	}
	return calendar.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tok)))
}

type MeetEventInput struct {
	CalendarID     string
	Summary        string
	Description    string
	Start          time.Time
	End            time.Time
	Timezone       string
	AttendeeEmails []string
}

// GAPIAddMeetEvent inserts a calendar event with a Google Meet conference
// attached and returns the meet link.
func GAPIAddMeetEvent(svc *calendar.Service, input *MeetEventInput) (*string, error) {
	attendees := []*calendar.EventAttendee{}
	for _, email := range input.AttendeeEmails {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	evtId := strings.ReplaceAll(uuid.NewString(), "-", "")
	event := &calendar.Event{
		Id:          evtId,
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format("2006-01-02T15:04:05-0700"),
			TimeZone: input.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format("2006-01-02T15:04:05-0700"),
			TimeZone: input.Timezone,
		},
		Attendees: attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}
	calId := input.CalendarID
	if calId == "" {
		calId = "primary"
	}
	created, err := svc.Events.Insert(calId, event).ConferenceDataVersion(1).Do()
	if err != nil {
		return nil, err
	}
	return &created.HangoutLink, nil
}
