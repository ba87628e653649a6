package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// TaskSource provides read access to the externally-owned task collection.
type TaskSource interface {
	// Snapshot returns the current state of the collection.
	Snapshot(ctx context.Context) ([]Task, error)

	// Subscribe emits a fresh snapshot after every observed mutation of the
	// collection. The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan []Task, error)
}

// ContactSource provides read access to the externally-owned contact
// collection.
type ContactSource interface {
	Snapshot(ctx context.Context) ([]Contact, error)
	Subscribe(ctx context.Context) (<-chan []Contact, error)
}

// FileTaskSource reads tasks from a JSON array file exported by the CRM and
// watches it for changes.
type FileTaskSource struct {
	path   string
	logger *slog.Logger
}

// NewFileTaskSource creates a task source backed by the given JSON file.
func NewFileTaskSource(path string, logger *slog.Logger) *FileTaskSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileTaskSource{path: path, logger: logger}
}

// Snapshot reads and decodes the task file.
func (s *FileTaskSource) Snapshot(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := readJSONFile(s.path, &tasks); err != nil {
		return nil, fmt.Errorf("failed to read tasks from %s: %w", s.path, err)
	}
	return tasks, nil
}

// Subscribe watches the task file and emits a snapshot on every change.
func (s *FileTaskSource) Subscribe(ctx context.Context) (<-chan []Task, error) {
	out := make(chan []Task, 1)
	err := watchFile(ctx, s.path, s.logger, func() {
		tasks, err := s.Snapshot(ctx)
		if err != nil {
			s.logger.Warn("failed to reload tasks", "path", s.path, "error", err)
			return
		}
		select {
		case out <- tasks:
		case <-ctx.Done():
		}
	}, func() { close(out) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FileContactSource reads contacts from a JSON array file exported by the CRM
// and watches it for changes.
type FileContactSource struct {
	path   string
	logger *slog.Logger
}

// NewFileContactSource creates a contact source backed by the given JSON file.
func NewFileContactSource(path string, logger *slog.Logger) *FileContactSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileContactSource{path: path, logger: logger}
}

// Snapshot reads and decodes the contact file.
func (s *FileContactSource) Snapshot(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := readJSONFile(s.path, &contacts); err != nil {
		return nil, fmt.Errorf("failed to read contacts from %s: %w", s.path, err)
	}
	return contacts, nil
}

// Subscribe watches the contact file and emits a snapshot on every change.
func (s *FileContactSource) Subscribe(ctx context.Context) (<-chan []Contact, error) {
	out := make(chan []Contact, 1)
	err := watchFile(ctx, s.path, s.logger, func() {
		contacts, err := s.Snapshot(ctx)
		if err != nil {
			s.logger.Warn("failed to reload contacts", "path", s.path, "error", err)
			return
		}
		select {
		case out <- contacts:
		case <-ctx.Done():
		}
	}, func() { close(out) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readJSONFile decodes a JSON file into v. A missing file decodes as an empty
// collection so a fresh CRM export directory works without setup.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// watchFile watches the directory containing path and invokes emit whenever
// the file is written, created, renamed or removed. Editors and exporters
// typically replace files atomically, so the parent directory is watched
// rather than the file itself.
func watchFile(ctx context.Context, path string, logger *slog.Logger, emit func(), done func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	go func() {
		defer done()
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					emit()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "path", path, "error", err)
			}
		}
	}()
	return nil
}
