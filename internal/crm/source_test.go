package crm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTaskSourceSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"t1","title":"Call","dueDate":"2026-04-01","dueTime":"14:00","reminderBefore":30},
		{"id":"t2","title":"Someday","completed":true}
	]`), 0o600))

	src := NewFileTaskSource(path, nil)
	tasks, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "14:00", tasks[0].DueTime)
	assert.Equal(t, 30, tasks[0].ReminderBefore)
	assert.True(t, tasks[1].Completed)
}

func TestFileSourceMissingFileIsEmpty(t *testing.T) {
	src := NewFileTaskSource(filepath.Join(t.TempDir(), "nope.json"), nil)
	tasks, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFileSourceMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	src := NewFileTaskSource(path, nil)
	_, err := src.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestFileContactSourceSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"c1","firstName":"Ada","lastName":"Lovelace","birthday":"12-10",
		 "importantDates":[{"id":"d1","label":"Anniversary","date":"06-20"}],
		 "nextFollowUp":"2026-04-10"}
	]`), 0o600))

	src := NewFileContactSource(path, nil)
	contacts, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "12-10", contacts[0].Birthday)
	require.Len(t, contacts[0].ImportantDates, 1)
	assert.Equal(t, "06-20", contacts[0].ImportantDates[0].Date)
}

func TestFileTaskSourceSubscribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewFileTaskSource(path, nil)
	updates, err := src.Subscribe(ctx)
	require.NoError(t, err)

	// An exporter-style atomic replace: write a temp file, rename over.
	tmp := filepath.Join(dir, "tasks.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`[{"id":"t1","title":"New","dueDate":"2026-04-01"}]`), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case tasks := <-updates:
		require.Len(t, tasks, 1)
		assert.Equal(t, "t1", tasks[0].ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no snapshot emitted after file change")
	}

	cancel()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, open := <-updates:
			if !open {
				return
			}
			// Drain any snapshot buffered before cancellation.
		case <-deadline:
			t.Fatal("channel not closed after cancellation")
		}
	}
}
