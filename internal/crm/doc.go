// Package crm holds the CRM-side domain model consumed by the calendar sync
// engine: tasks, contacts and their important dates, plus the sync settings
// and mapping records the engine owns.
//
// Tasks and contacts are read-only collaborators; the document store that
// produces them is external to this subsystem and is consumed through the
// TaskSource and ContactSource interfaces.
package crm
