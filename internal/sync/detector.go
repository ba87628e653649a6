package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/instrumentation"
	"github.com/emsham/tethru/internal/logging"
)

// DefaultDebounceWindow is the delay after the last observed change before
// queued syncs are dispatched. It coalesces bursts of edits (fast typing
// into a task title) into a single external write per entity.
const DefaultDebounceWindow = 2 * time.Second

type entityKind int

const (
	kindTask entityKind = iota
	kindContact
)

func (k entityKind) String() string {
	if k == kindTask {
		return "task"
	}
	return "contact"
}

type pendingKey struct {
	kind entityKind
	id   string
}

// pendingEntry holds the latest action and entity state observed for an id
// within the debounce window. Last action wins per id.
type pendingEntry struct {
	action  Action
	task    crm.Task
	contact crm.Contact
}

// Detector observes the task and contact collections, diffs each update
// against the previous snapshot, and enqueues debounced sync requests.
//
// All state is owned by the Run goroutine: observations, the pending map,
// the debounce timer, and the sequential drain all execute on it, so two
// drains can never race on the ledger's lookup-then-create path.
type Detector struct {
	syncer   *Syncer
	settings SettingsStore
	window   time.Duration
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	prevTasks    map[string]crm.Task
	prevContacts map[string]crm.Contact
	pending      map[pendingKey]*pendingEntry
	order        []pendingKey
	timer        *time.Timer
}

// NewDetector creates a change detector dispatching to the given syncer.
// A zero window selects DefaultDebounceWindow.
func NewDetector(syncer *Syncer, settings SettingsStore, window time.Duration, logger *slog.Logger) *Detector {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		syncer:       syncer,
		settings:     settings,
		window:       window,
		logger:       logger,
		prevTasks:    make(map[string]crm.Task),
		prevContacts: make(map[string]crm.Contact),
		pending:      make(map[pendingKey]*pendingEntry),
	}
}

// SetMetrics attaches a metrics recorder.
func (d *Detector) SetMetrics(metrics *instrumentation.Metrics) {
	d.metrics = metrics
}

// Run consumes collection snapshots until ctx is cancelled. The debounce
// timer is cleared on teardown so no sync fires after the surrounding
// context is gone.
func (d *Detector) Run(ctx context.Context, tasks <-chan []crm.Task, contacts <-chan []crm.Contact) error {
	d.timer = time.NewTimer(d.window)
	d.stopTimer()
	defer d.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ts, ok := <-tasks:
			if !ok {
				tasks = nil
				continue
			}
			d.ObserveTasks(ts)

		case cs, ok := <-contacts:
			if !ok {
				contacts = nil
				continue
			}
			d.ObserveContacts(cs)

		case <-d.timer.C:
			d.Drain(ctx)
		}
	}
}

// Prime seeds the previous snapshots without enqueueing anything. Called
// once at daemon startup so existing entities do not flood the queue as
// creates; the periodic full sync covers anything missed while the daemon
// was down.
func (d *Detector) Prime(tasks []crm.Task, contacts []crm.Contact) {
	d.prevTasks = make(map[string]crm.Task, len(tasks))
	for _, t := range tasks {
		d.prevTasks[t.ID] = t
	}
	d.prevContacts = make(map[string]crm.Contact, len(contacts))
	for _, c := range contacts {
		d.prevContacts[c.ID] = c
	}
}

// ObserveTasks diffs the current task collection against the previous
// snapshot and enqueues one action per changed id. The snapshot is replaced
// after diffing.
func (d *Detector) ObserveTasks(current []crm.Task) {
	next := make(map[string]crm.Task, len(current))
	for _, t := range current {
		next[t.ID] = t
		prev, seen := d.prevTasks[t.ID]
		switch {
		case !seen:
			d.enqueue(pendingKey{kindTask, t.ID}, &pendingEntry{action: ActionCreate, task: t})
		case taskChanged(prev, t):
			d.enqueue(pendingKey{kindTask, t.ID}, &pendingEntry{action: ActionUpdate, task: t})
		}
	}
	for id := range d.prevTasks {
		if _, still := next[id]; !still {
			d.enqueue(pendingKey{kindTask, id}, &pendingEntry{action: ActionDelete})
		}
	}
	d.prevTasks = next
}

// ObserveContacts diffs the current contact collection against the previous
// snapshot and enqueues one action per changed id.
func (d *Detector) ObserveContacts(current []crm.Contact) {
	next := make(map[string]crm.Contact, len(current))
	for _, c := range current {
		next[c.ID] = c
		prev, seen := d.prevContacts[c.ID]
		switch {
		case !seen:
			d.enqueue(pendingKey{kindContact, c.ID}, &pendingEntry{action: ActionCreate, contact: c})
		case contactChanged(prev, c):
			d.enqueue(pendingKey{kindContact, c.ID}, &pendingEntry{action: ActionUpdate, contact: c})
		}
	}
	for id := range d.prevContacts {
		if _, still := next[id]; !still {
			d.enqueue(pendingKey{kindContact, id}, &pendingEntry{action: ActionDelete})
		}
	}
	d.prevContacts = next
}

// Pending returns the number of queued sync requests.
func (d *Detector) Pending() int {
	return len(d.pending)
}

// enqueue records the latest action for an id and re-arms the shared
// debounce timer. The timer is always cleared before being reset, so only
// the most recent scheduling call survives.
func (d *Detector) enqueue(key pendingKey, entry *pendingEntry) {
	if _, queued := d.pending[key]; !queued {
		d.order = append(d.order, key)
		d.metrics.AddPending(context.Background(), 1)
	}
	d.pending[key] = entry

	if d.timer != nil {
		d.stopTimer()
		d.timer.Reset(d.window)
	}
}

// stopTimer stops the timer and drains a fired-but-unread tick.
func (d *Detector) stopTimer() {
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
}

// Drain dispatches every pending entry to the orchestrator sequentially, in
// enqueue order. Per-item failures are logged and do not stop the drain.
func (d *Detector) Drain(ctx context.Context) {
	if len(d.pending) == 0 {
		return
	}

	set, err := d.settings.GetSettings(ctx)
	if err != nil {
		// Keep the queue and retry after another window.
		d.logger.Warn("failed to load settings, deferring drain", logging.Err(err))
		if d.timer != nil {
			d.stopTimer()
			d.timer.Reset(d.window)
		}
		return
	}

	entries := d.order
	pending := d.pending
	d.order = nil
	d.pending = make(map[pendingKey]*pendingEntry)
	d.metrics.AddPending(ctx, -int64(len(entries)))

	for _, key := range entries {
		entry := pending[key]
		var err error
		switch key.kind {
		case kindTask:
			task := entry.task
			if entry.action == ActionDelete {
				task = crm.Task{ID: key.id}
			}
			err = d.syncer.SyncTask(ctx, entry.action, task, set)
		case kindContact:
			if entry.action == ActionDelete {
				err = d.syncer.CleanupDeletedContact(ctx, key.id)
			} else {
				err = d.syncer.SyncContactDates(ctx, entry.action, entry.contact, set)
			}
		}
		if err != nil {
			d.logger.Warn("queued sync failed",
				logging.Operation("sync.drain"),
				logging.Source(key.kind.String(), key.id),
				logging.Action(string(entry.action)),
				logging.Err(err),
			)
		}
	}
}

// taskChanged reports whether any sync-relevant task field differs.
func taskChanged(a, b crm.Task) bool {
	return a.Title != b.Title ||
		a.DueDate != b.DueDate ||
		a.DueTime != b.DueTime ||
		a.Description != b.Description ||
		a.Completed != b.Completed ||
		a.ContactID != b.ContactID
}

// contactChanged reports whether any sync-relevant contact field differs.
// The important-dates list is compared by serialized form.
func contactChanged(a, b crm.Contact) bool {
	return a.FirstName != b.FirstName ||
		a.LastName != b.LastName ||
		a.Birthday != b.Birthday ||
		a.NextFollowUp != b.NextFollowUp ||
		importantDatesFingerprint(a) != importantDatesFingerprint(b)
}

func importantDatesFingerprint(c crm.Contact) string {
	if len(c.ImportantDates) == 0 {
		return ""
	}
	raw, err := json.Marshal(c.ImportantDates)
	if err != nil {
		return ""
	}
	return string(raw)
}
