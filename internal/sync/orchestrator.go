package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/instrumentation"
	"github.com/emsham/tethru/internal/logging"
)

// Action is the sync instruction derived from a change diff.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Calendar is the external calendar surface the orchestrator writes to.
// Satisfied by *gcal.Client.
type Calendar interface {
	CreateEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
}

// Ledger is the persisted mapping table backing idempotency. Satisfied by
// *store.Store.
type Ledger interface {
	InsertMapping(ctx context.Context, m crm.Mapping) error
	FindMapping(ctx context.Context, sourceType crm.SourceType, sourceID, subID string) (*crm.Mapping, error)
	FindMappingsByRoot(ctx context.Context, sourceID string) ([]crm.Mapping, error)
	AllMappings(ctx context.Context) ([]crm.Mapping, error)
	DeleteMapping(ctx context.Context, id string) error
	DeleteAllMappings(ctx context.Context) error
}

// SettingsStore persists the per-user sync settings. Satisfied by
// *store.Store.
type SettingsStore interface {
	GetSettings(ctx context.Context) (crm.Settings, error)
	PutSettings(ctx context.Context, set crm.Settings) error
}

// Syncer drives per-entity synchronization against the external calendar:
// it consults the mapping ledger, builds event payloads, and issues
// create/update/delete calls so repeated syncs of the same fact converge on
// exactly one external event.
type Syncer struct {
	cal        Calendar
	ledger     Ledger
	settings   SettingsStore
	calendarID string
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// NewSyncer creates a sync orchestrator writing to the given calendar.
// An empty calendarID targets the primary calendar.
func NewSyncer(cal Calendar, ledger Ledger, settings SettingsStore, calendarID string, logger *slog.Logger) *Syncer {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cal:        cal,
		ledger:     ledger,
		settings:   settings,
		calendarID: calendarID,
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics attaches a metrics recorder.
func (s *Syncer) SetMetrics(metrics *instrumentation.Metrics) {
	s.metrics = metrics
}

// SyncTask syncs a single task. A no-op when the task toggle is off.
func (s *Syncer) SyncTask(ctx context.Context, action Action, t crm.Task, set crm.Settings) error {
	if !set.SyncTasks {
		return nil
	}
	var event *calendar.Event
	if action != ActionDelete {
		event = BuildTaskEvent(t)
	}
	return s.syncOne(ctx, action, crm.SourceTask, t.ID, "", event)
}

// SyncBirthday syncs a contact's birthday event. A no-op when the birthday
// toggle is off.
func (s *Syncer) SyncBirthday(ctx context.Context, action Action, c crm.Contact, set crm.Settings) error {
	if !set.SyncBirthdays {
		return nil
	}
	var event *calendar.Event
	if action != ActionDelete {
		event = BuildBirthdayEvent(c, s.now())
	}
	return s.syncOne(ctx, action, crm.SourceBirthday, c.ID, "", event)
}

// SyncImportantDate syncs one of a contact's important dates. Each date has
// its own mapping row, keyed by the date's sub id.
func (s *Syncer) SyncImportantDate(ctx context.Context, action Action, c crm.Contact, d crm.ImportantDate, set crm.Settings) error {
	if !set.SyncImportantDates {
		return nil
	}
	var event *calendar.Event
	if action != ActionDelete {
		event = BuildImportantDateEvent(c, d, s.now())
	}
	return s.syncOne(ctx, action, crm.SourceImportantDate, c.ID, d.ID, event)
}

// SyncFollowUp syncs a contact's next follow-up reminder. A no-op when the
// follow-up toggle is off.
func (s *Syncer) SyncFollowUp(ctx context.Context, action Action, c crm.Contact, set crm.Settings) error {
	if !set.SyncFollowUps {
		return nil
	}
	var event *calendar.Event
	if action != ActionDelete {
		event = BuildFollowUpEvent(c)
	}
	return s.syncOne(ctx, action, crm.SourceFollowUp, c.ID, "", event)
}

// SyncContactDates syncs a contact's full date surface: birthday, follow-up,
// and every important date. Sub-syncs fail independently; the joined error
// reports all of them.
func (s *Syncer) SyncContactDates(ctx context.Context, action Action, c crm.Contact, set crm.Settings) error {
	var errs []error
	if err := s.SyncBirthday(ctx, action, c, set); err != nil {
		errs = append(errs, err)
	}
	if err := s.SyncFollowUp(ctx, action, c, set); err != nil {
		errs = append(errs, err)
	}
	for _, d := range c.ImportantDates {
		if err := s.SyncImportantDate(ctx, action, c, d, set); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanupDeletedContact removes every mapped event rooted at the contact id,
// across all source types. Individual delete failures are logged and
// tolerated; a missing external event is not an error.
func (s *Syncer) CleanupDeletedContact(ctx context.Context, contactID string) error {
	mappings, err := s.ledger.FindMappingsByRoot(ctx, contactID)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		if err := s.cal.DeleteEvent(ctx, s.calendarID, m.ExternalEventID); err != nil {
			s.logger.Warn("failed to delete event for removed contact",
				logging.Operation("sync.cleanupContact"),
				logging.Source(string(m.SourceType), m.SourceID),
				logging.EventID(m.ExternalEventID),
				logging.Err(err),
			)
		}
		if err := s.ledger.DeleteMapping(ctx, m.ID); err != nil {
			s.logger.Warn("failed to delete mapping for removed contact",
				logging.Operation("sync.cleanupContact"),
				logging.Err(err),
			)
		}
	}
	return nil
}

// Result accumulates the outcome of a full reconciliation pass.
type Result struct {
	// Synced counts entities that synced without error.
	Synced int

	// Errors collects per-item failure messages; the pass itself never
	// aborts on one item.
	Errors []string
}

// Success reports whether the pass completed without any item failing.
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

// FullSync reconciles every current entity unconditionally: each incomplete
// task with a due date and each contact is synced as an update (which
// creates when no mapping exists, since reconciliation cannot know a priori
// whether one does). Per-item failures are recorded and iteration
// continues. Finishes by recording the sync time in settings.
func (s *Syncer) FullSync(ctx context.Context, tasks []crm.Task, contacts []crm.Contact) (*Result, error) {
	set, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, t := range tasks {
		if t.Completed || !t.Schedulable() {
			continue
		}
		if err := s.SyncTask(ctx, ActionUpdate, t, set); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
			continue
		}
		result.Synced++
	}
	for _, c := range contacts {
		if err := s.SyncContactDates(ctx, ActionUpdate, c, set); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("contact %s: %v", c.ID, err))
			continue
		}
		result.Synced++
	}

	now := s.now()
	set, err = s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	set.LastSyncAt = &now
	if err := s.settings.PutSettings(ctx, set); err != nil {
		return nil, err
	}

	status := instrumentation.ResultSuccess
	if !result.Success() {
		status = instrumentation.ResultError
	}
	s.metrics.RecordFullSync(ctx, status, len(result.Errors))
	s.logger.Info("full sync finished",
		logging.Operation("sync.full"),
		slog.Int("synced", result.Synced),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// Disconnect tears down the external footprint: every mapped event is
// deleted (tolerating missing events), the ledger is wiped, and settings are
// marked disconnected. Credential revocation is the OAuth manager's job and
// happens separately.
func (s *Syncer) Disconnect(ctx context.Context) error {
	mappings, err := s.ledger.AllMappings(ctx)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		if err := s.cal.DeleteEvent(ctx, s.calendarID, m.ExternalEventID); err != nil {
			s.logger.Warn("failed to delete event during disconnect",
				logging.Operation("sync.disconnect"),
				logging.EventID(m.ExternalEventID),
				logging.Err(err),
			)
		}
	}
	if err := s.ledger.DeleteAllMappings(ctx); err != nil {
		return err
	}

	set, err := s.settings.GetSettings(ctx)
	if err != nil {
		return err
	}
	set.Connected = false
	return s.settings.PutSettings(ctx, set)
}

// syncOne is the shared create/update/delete core. A nil event on a
// non-delete action means the entity is no longer schedulable and is treated
// as an implicit delete.
func (s *Syncer) syncOne(ctx context.Context, action Action, sourceType crm.SourceType, sourceID, subID string, event *calendar.Event) error {
	start := s.now()
	err := s.applySync(ctx, action, sourceType, sourceID, subID, event)

	status := instrumentation.ResultSuccess
	if err != nil {
		status = instrumentation.ResultError
	}
	s.metrics.RecordSync(ctx, string(sourceType), string(action), status, s.now().Sub(start))

	if err != nil {
		s.logger.Error("sync failed",
			logging.Operation("sync.one"),
			logging.Source(string(sourceType), sourceID),
			logging.Action(string(action)),
			logging.Err(err),
		)
		return err
	}
	s.logger.Debug("synced",
		logging.Operation("sync.one"),
		logging.Source(string(sourceType), sourceID),
		logging.Action(string(action)),
	)
	return nil
}

func (s *Syncer) applySync(ctx context.Context, action Action, sourceType crm.SourceType, sourceID, subID string, event *calendar.Event) error {
	if action == ActionDelete || event == nil {
		mapping, err := s.ledger.FindMapping(ctx, sourceType, sourceID, subID)
		if err != nil {
			return err
		}
		if mapping == nil {
			// Nothing mapped: deleting is a no-op.
			return nil
		}
		if err := s.cal.DeleteEvent(ctx, s.calendarID, mapping.ExternalEventID); err != nil {
			return err
		}
		return s.ledger.DeleteMapping(ctx, mapping.ID)
	}

	mapping, err := s.ledger.FindMapping(ctx, sourceType, sourceID, subID)
	if err != nil {
		return err
	}
	if mapping == nil {
		created, err := s.cal.CreateEvent(ctx, s.calendarID, event)
		if err != nil {
			return err
		}
		return s.ledger.InsertMapping(ctx, crm.Mapping{
			ID:                 uuid.NewString(),
			SourceType:         sourceType,
			SourceID:           sourceID,
			ImportantDateSubID: subID,
			ExternalEventID:    created.Id,
			CreatedAt:          s.now(),
		})
	}

	// The mapping row already points at the right external id; only the
	// event itself is updated.
	_, err = s.cal.UpdateEvent(ctx, s.calendarID, mapping.ExternalEventID, event)
	return err
}
