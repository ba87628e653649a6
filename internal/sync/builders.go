package sync

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/emsham/tethru/internal/crm"
)

// summaryPrefix namespaces every event this engine writes, so
// externally-created events are visually distinguishable and never adopted
// by reconciliation.
const summaryPrefix = "[Tethru] "

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// yearlyRule is the yearly recurrence rule shared by birthday and undated
// important-date events.
var yearlyRule = "RRULE:" + (&rrule.ROption{Freq: rrule.YEARLY}).RRuleString()

// BuildTaskEvent maps a task to its calendar event payload. Returns nil when
// the task has no due date and therefore no place on a calendar.
//
// A task with a due time becomes a timed event with a synthetic one-hour
// duration; its reminder offset, when configured, becomes a single override
// reminder. Without a time the event is all-day, spanning exactly the due
// date (the end date is exclusive in calendar all-day semantics).
func BuildTaskEvent(t crm.Task) *calendar.Event {
	if t.DueDate == "" {
		return nil
	}

	event := &calendar.Event{
		Summary:     summaryPrefix + t.Title,
		Description: t.Description,
	}

	if t.DueTime != "" {
		start, err := time.Parse(dateTimeLayout, t.DueDate+"T"+t.DueTime+":00")
		if err != nil {
			return nil
		}
		event.Start = &calendar.EventDateTime{DateTime: start.Format(dateTimeLayout)}
		event.End = &calendar.EventDateTime{DateTime: start.Add(time.Hour).Format(dateTimeLayout)}

		if t.ReminderBefore > 0 {
			event.Reminders = &calendar.EventReminders{
				UseDefault: false,
				Overrides: []*calendar.EventReminder{
					{Method: "popup", Minutes: int64(t.ReminderBefore)},
				},
				ForceSendFields: []string{"UseDefault"},
			}
		}
		return event
	}

	due, err := time.Parse(dateLayout, t.DueDate)
	if err != nil {
		return nil
	}
	event.Start = &calendar.EventDateTime{Date: due.Format(dateLayout)}
	event.End = &calendar.EventDateTime{Date: due.AddDate(0, 0, 1).Format(dateLayout)}
	return event
}

// BuildBirthdayEvent maps a contact's birthday to an all-day event recurring
// yearly, anchored at the current year's occurrence of the stored MM-DD.
// Returns nil when the contact has no birthday on file.
func BuildBirthdayEvent(c crm.Contact, now time.Time) *calendar.Event {
	day, ok := monthDayInYear(c.Birthday, now.Year())
	if !ok {
		return nil
	}
	return &calendar.Event{
		Summary:    summaryPrefix + fmt.Sprintf("%s's birthday", c.FullName()),
		Start:      &calendar.EventDateTime{Date: day.Format(dateLayout)},
		End:        &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
		Recurrence: []string{yearlyRule},
	}
}

// BuildImportantDateEvent maps one of a contact's important dates to an
// all-day event. The event recurs yearly only when no explicit year was
// stored; a dated entry is a one-off and must not recur.
func BuildImportantDateEvent(c crm.Contact, d crm.ImportantDate, now time.Time) *calendar.Event {
	year := d.Year
	if year == 0 {
		year = now.Year()
	}
	day, ok := monthDayInYear(d.Date, year)
	if !ok {
		return nil
	}

	event := &calendar.Event{
		Summary: summaryPrefix + fmt.Sprintf("%s (%s)", d.Label, c.FullName()),
		Start:   &calendar.EventDateTime{Date: day.Format(dateLayout)},
		End:     &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
	}
	if d.Year == 0 {
		event.Recurrence = []string{yearlyRule}
	}
	return event
}

// BuildFollowUpEvent maps a contact's next follow-up to a single all-day
// event. Returns nil when no follow-up is scheduled.
func BuildFollowUpEvent(c crm.Contact) *calendar.Event {
	if c.NextFollowUp == "" {
		return nil
	}
	day, err := time.Parse(dateLayout, c.NextFollowUp)
	if err != nil {
		return nil
	}
	return &calendar.Event{
		Summary: summaryPrefix + fmt.Sprintf("Follow up with %s", c.FullName()),
		Start:   &calendar.EventDateTime{Date: day.Format(dateLayout)},
		End:     &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
	}
}

// monthDayInYear resolves an MM-DD string against a year. Feb 29 in a
// non-leap year normalizes to Mar 1, which time.Date handles.
func monthDayInYear(monthDay string, year int) (time.Time, bool) {
	t, err := time.Parse("01-02", monthDay)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
