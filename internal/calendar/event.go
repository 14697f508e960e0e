// Package calendar types calendar actions and issues the calendar tool
// calls.
//
// [Decode] turns action params into an [EventInput] and enforces the
// required fields. [EventInput.CreateArgs] and [EventInput.UpdateArgs]
// produce the remote tool's argument objects. Updates merge with the
// existing event, so fields the caller did not mention are preserved.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/nugget/lifeops/internal/action"
)

// ErrInvalidInterval is returned when an event ends before it starts or
// a date-time cannot be parsed.
var ErrInvalidInterval = errors.New("invalid event interval")

var requirements = map[action.Kind][]action.Requirement{
	action.CreateCalendarEvent: {
		action.Field("title"),
		action.Field("startDateTime"),
		action.Field("endDateTime"),
	},
	action.UpdateCalendarEvent: {action.OneOf("eventId", "eventName")},
	action.DeleteCalendarEvent: {action.OneOf("eventId", "eventName")},
	action.ListCalendarEvents:  nil,
}

// Requirements returns the hard-required parameters for a calendar kind.
func Requirements(kind action.Kind) []action.Requirement {
	return requirements[kind]
}

// EventInput is a calendar action's parameters.
type EventInput struct {
	ID   string // eventId
	Name string // eventName, resolved to ID before dispatch

	Title string
	Start string
	End   string

	// Description is nil when not supplied. An empty string clears the
	// existing description on update.
	Description *string

	Location        string
	Attendees       []string
	TimeZone        string
	ReminderMinutes *int

	// Listing window.
	TimeMin    string
	TimeMax    string
	MaxResults int
}

// Decode validates params for a calendar kind and decodes them.
func Decode(kind action.Kind, p action.Params) (*EventInput, error) {
	reqs, ok := requirements[kind]
	if !ok {
		return nil, fmt.Errorf("%s is not a calendar action", kind)
	}
	if missing := p.Missing(reqs); len(missing) > 0 {
		return nil, &action.ValidationError{Kind: kind, Fields: missing}
	}

	in := &EventInput{
		ID:        p.String("eventId"),
		Name:      p.String("eventName"),
		Title:     p.String("title"),
		Start:     p.String("startDateTime"),
		End:       p.String("endDateTime"),
		Location:  p.String("location"),
		Attendees: p.Strings("attendees"),
		TimeZone:  p.String("timeZone"),
		TimeMin:   p.String("timeMin"),
		TimeMax:   p.String("timeMax"),
	}
	if p.Present("description") {
		d := p.String("description")
		in.Description = &d
	}
	if n, ok := p.Int("reminderMinutes"); ok {
		in.ReminderMinutes = &n
	}
	if n, ok := p.Int("maxResults"); ok && n > 0 {
		in.MaxResults = n
	}

	if kind == action.CreateCalendarEvent {
		if _, _, err := Duration(in.Start, in.End); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// layouts accepted for event date-times, most specific first.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseDateTime(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidInterval, s)
}

// Duration derives the (hours, minutes) pair the calendar tool accepts
// from an event's start and end. Seconds are truncated.
func Duration(start, end string) (hours, minutes int, err error) {
	s, err := parseDateTime(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := parseDateTime(end)
	if err != nil {
		return 0, 0, err
	}
	if e.Before(s) {
		return 0, 0, fmt.Errorf("%w: end %s is before start %s", ErrInvalidInterval, end, start)
	}
	total := int(e.Sub(s) / time.Minute)
	return total / 60, total % 60, nil
}

func (in *EventInput) zone(fallback string) string {
	switch {
	case in.TimeZone != "":
		return in.TimeZone
	case fallback != "":
		return fallback
	}
	return "UTC"
}

// CreateArgs builds the create-event arguments.
func (in *EventInput) CreateArgs(calendarID, defaultZone string) (map[string]any, error) {
	hours, minutes, err := Duration(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	attendees := in.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	args := map[string]any{
		"calendar_id":            calendarID,
		"summary":                in.Title,
		"start_datetime":         in.Start,
		"event_duration_hour":    hours,
		"event_duration_minutes": minutes,
		"timezone":               in.zone(defaultZone),
		"attendees":              attendees,
	}
	if in.Description != nil {
		args["description"] = *in.Description
	}
	in.optional(args)
	return args, nil
}

// UpdateArgs builds the update-event arguments for the event with the
// given id. Title, description, attendees and location come from
// existing unless the input overrides them. Duration is sent only when
// both start and end are given.
func (in *EventInput) UpdateArgs(calendarID, eventID, defaultZone string, existing *Event) (map[string]any, error) {
	args := map[string]any{
		"calendar_id":  calendarID,
		"event_id":     eventID,
		"timezone":     in.zone(defaultZone),
		"send_updates": true,
	}

	if existing != nil {
		if existing.Summary != "" {
			args["summary"] = existing.Summary
		}
		if existing.Description != "" {
			args["description"] = existing.Description
		}
		if len(existing.Attendees) > 0 {
			args["attendees"] = existing.Attendees
		}
		if existing.Location != "" {
			args["location"] = existing.Location
		}
	}

	if in.Start != "" {
		args["start_datetime"] = in.Start
		if in.End != "" {
			hours, minutes, err := Duration(in.Start, in.End)
			if err != nil {
				return nil, err
			}
			args["event_duration_hour"] = hours
			args["event_duration_minutes"] = minutes
		}
	}

	if in.Title != "" {
		args["summary"] = in.Title
	}
	if in.Description != nil {
		args["description"] = *in.Description
	}
	if len(in.Attendees) > 0 {
		args["attendees"] = in.Attendees
	}
	in.optional(args)
	return args, nil
}

func (in *EventInput) optional(args map[string]any) {
	if in.Location != "" {
		args["location"] = in.Location
	}
	if in.ReminderMinutes != nil {
		args["reminder_minutes"] = *in.ReminderMinutes
	}
}
