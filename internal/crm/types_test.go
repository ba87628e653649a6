package crm

import "testing"

func TestTaskSchedulable(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"with due date", Task{DueDate: "2026-04-01"}, true},
		{"with due date and time", Task{DueDate: "2026-04-01", DueTime: "14:00"}, true},
		{"no due date", Task{Title: "someday"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Schedulable(); got != tt.want {
				t.Errorf("Schedulable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContactFullName(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{"both names", Contact{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", Contact{FirstName: "Ada"}, "Ada"},
		{"last only", Contact{LastName: "Lovelace"}, "Lovelace"},
		{"neither", Contact{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.contact.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	set := DefaultSettings()
	if set.Connected {
		t.Error("default settings must not be connected")
	}
	if !set.SyncTasks || !set.SyncBirthdays || !set.SyncImportantDates || !set.SyncFollowUps {
		t.Error("all sync toggles default to on")
	}
	if set.LastSyncAt != nil {
		t.Error("LastSyncAt defaults to unset")
	}
}
