package crm

import "time"

// Task is a CRM task record as stored in the document store.
// Only the fields relevant to calendar sync are modeled here.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContactID   string `json:"contactId,omitempty"`

	// DueDate is the task's due date in YYYY-MM-DD form, empty when unset.
	DueDate string `json:"dueDate,omitempty"`

	// DueTime is an optional HH:MM time of day for the due date.
	DueTime string `json:"dueTime,omitempty"`

	// ReminderBefore is the reminder offset in minutes before the event
	// start, zero when no explicit reminder is configured.
	ReminderBefore int `json:"reminderBefore,omitempty"`

	Completed bool   `json:"completed"`
	Priority  string `json:"priority,omitempty"`
}

// Schedulable reports whether the task currently maps to a calendar event.
func (t Task) Schedulable() bool {
	return t.DueDate != ""
}

// ImportantDate is a custom recurring-or-dated entry on a contact.
type ImportantDate struct {
	ID    string `json:"id"`
	Label string `json:"label"`

	// Date is the month and day in MM-DD form.
	Date string `json:"date"`

	// Year, when non-zero, pins the date to a specific year. A dated entry
	// does not recur.
	Year int `json:"year,omitempty"`
}

// Contact is a CRM contact record as stored in the document store.
type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// Birthday is the month and day in MM-DD form, empty when unknown.
	Birthday string `json:"birthday,omitempty"`

	ImportantDates []ImportantDate `json:"importantDates,omitempty"`

	// NextFollowUp is the next follow-up date in YYYY-MM-DD form.
	NextFollowUp string `json:"nextFollowUp,omitempty"`
}

// FullName returns the contact's display name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// SourceType identifies which kind of CRM fact a calendar event represents.
type SourceType string

const (
	SourceTask          SourceType = "task"
	SourceBirthday      SourceType = "birthday"
	SourceImportantDate SourceType = "importantDate"
	SourceFollowUp      SourceType = "followUp"
)

// Mapping associates a CRM fact with the external calendar event that
// represents it. The (SourceType, SourceID, ImportantDateSubID) tuple is the
// idempotency key: at most one mapping may exist per tuple. Rows are immutable
// pointer data; the external event is updated in place, the row is not.
type Mapping struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"sourceType"`
	SourceID   string     `json:"sourceId"`

	// ImportantDateSubID distinguishes multiple important dates on the same
	// contact. Empty for every other source type.
	ImportantDateSubID string `json:"importantDateSubId,omitempty"`

	ExternalEventID string    `json:"externalEventId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Settings holds the per-user calendar sync configuration. Created implicitly
// with defaults on first read.
type Settings struct {
	Connected          bool       `json:"connected"`
	SyncTasks          bool       `json:"syncTasks"`
	SyncBirthdays      bool       `json:"syncBirthdays"`
	SyncImportantDates bool       `json:"syncImportantDates"`
	SyncFollowUps      bool       `json:"syncFollowUps"`
	LastSyncAt         *time.Time `json:"lastSyncAt,omitempty"`
}

// DefaultSettings returns the implicit first-read settings: all sync toggles
// on, not connected.
func DefaultSettings() Settings {
	return Settings{
		SyncTasks:          true,
		SyncBirthdays:      true,
		SyncImportantDates: true,
		SyncFollowUps:      true,
	}
}
