package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsham/tethru/internal/crm"
)

func newDetectorFixture() (*syncFixture, *Detector) {
	f := newSyncFixture()
	d := NewDetector(f.syncer, f.settings, time.Minute, nil)
	return f, d
}

func TestObserveTasksDiffs(t *testing.T) {
	_, d := newDetectorFixture()

	d.ObserveTasks([]crm.Task{
		{ID: "t1", Title: "new", DueDate: "2026-04-01"},
	})
	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, ActionCreate, d.pending[pendingKey{kindTask, "t1"}].action)

	// Unchanged snapshot enqueues nothing new.
	before := d.Pending()
	d.ObserveTasks([]crm.Task{
		{ID: "t1", Title: "new", DueDate: "2026-04-01"},
	})
	assert.Equal(t, before, d.Pending())

	d.ObserveTasks([]crm.Task{
		{ID: "t1", Title: "renamed", DueDate: "2026-04-01"},
	})
	assert.Equal(t, ActionUpdate, d.pending[pendingKey{kindTask, "t1"}].action)

	d.ObserveTasks(nil)
	assert.Equal(t, ActionDelete, d.pending[pendingKey{kindTask, "t1"}].action)
	assert.Equal(t, 1, d.Pending(), "one entry per id, last action wins")
}

func TestObserveContactsDiffs(t *testing.T) {
	_, d := newDetectorFixture()

	contact := crm.Contact{ID: "c1", FirstName: "Ada", Birthday: "12-10"}
	d.ObserveContacts([]crm.Contact{contact})
	assert.Equal(t, ActionCreate, d.pending[pendingKey{kindContact, "c1"}].action)

	contact.ImportantDates = []crm.ImportantDate{{ID: "d1", Label: "x", Date: "06-20"}}
	d.ObserveContacts([]crm.Contact{contact})
	assert.Equal(t, ActionUpdate, d.pending[pendingKey{kindContact, "c1"}].action)

	d.ObserveContacts(nil)
	assert.Equal(t, ActionDelete, d.pending[pendingKey{kindContact, "c1"}].action)
}

func TestRapidEditsCollapseToOneDispatch(t *testing.T) {
	f, d := newDetectorFixture()

	// Three edits to the same task inside one debounce window.
	d.ObserveTasks([]crm.Task{{ID: "t1", Title: "a", DueDate: "2026-04-01"}})
	d.ObserveTasks([]crm.Task{{ID: "t1", Title: "ab", DueDate: "2026-04-01"}})
	d.ObserveTasks([]crm.Task{{ID: "t1", Title: "abc", DueDate: "2026-04-01"}})
	require.Equal(t, 1, d.Pending())

	d.Drain(context.Background())
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, 1, f.cal.creates, "a burst of edits makes exactly one external write")
	assert.Equal(t, 0, f.cal.updates)

	m, err := f.ledger.FindMapping(context.Background(), crm.SourceTask, "t1", "")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "[Tethru] abc", f.cal.events[m.ExternalEventID].Summary, "the dispatched state is the latest observed")
}

func TestDrainDispatchesContactDeleteAsCleanup(t *testing.T) {
	f, d := newDetectorFixture()
	ctx := context.Background()

	contact := crm.Contact{ID: "c1", FirstName: "Ada", Birthday: "12-10"}
	d.ObserveContacts([]crm.Contact{contact})
	d.Drain(ctx)
	require.Len(t, f.ledger.rows, 1)

	d.ObserveContacts(nil)
	d.Drain(ctx)
	assert.Empty(t, f.ledger.rows)
	assert.Empty(t, f.cal.events)
}

func TestDrainContinuesPastFailures(t *testing.T) {
	f, d := newDetectorFixture()
	f.cal.failCreateFor["[Tethru] broken"] = true

	d.ObserveTasks([]crm.Task{
		{ID: "t1", Title: "broken", DueDate: "2026-04-01"},
		{ID: "t2", Title: "fine", DueDate: "2026-04-02"},
	})
	d.Drain(context.Background())

	assert.Equal(t, 0, d.Pending())
	assert.Len(t, f.ledger.rows, 1, "the failing item is dropped, the rest still syncs")
}

func TestPrimeSuppressesStartupCreates(t *testing.T) {
	_, d := newDetectorFixture()

	existing := []crm.Task{{ID: "t1", Title: "old", DueDate: "2026-04-01"}}
	d.Prime(existing, []crm.Contact{{ID: "c1", FirstName: "Ada"}})

	d.ObserveTasks(existing)
	assert.Equal(t, 0, d.Pending(), "primed entities must not re-enqueue as creates")

	d.ObserveTasks([]crm.Task{{ID: "t1", Title: "edited", DueDate: "2026-04-01"}})
	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, ActionUpdate, d.pending[pendingKey{kindTask, "t1"}].action)
}

func TestRunDispatchesAfterDebounceWindow(t *testing.T) {
	f := newSyncFixture()
	d := NewDetector(f.syncer, f.settings, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks := make(chan []crm.Task, 1)
	contacts := make(chan []crm.Contact)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, tasks, contacts) }()

	tasks <- []crm.Task{{ID: "t1", Title: "watched", DueDate: "2026-04-01"}}

	require.Eventually(t, func() bool {
		return f.cal.createCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
