package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// audioExtensions are the file types the spool will enqueue.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".m4a":  true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
	".flac": true,
	".webm": true,
}

// Spool turns audio files dropped into a directory into pending jobs.
// It runs on the store side, next to the HTTP API, as a second intake path.
type Spool struct {
	store  *Store
	dir    string
	logger *slog.Logger

	// seen guards against double-enqueueing a file; fsnotify can deliver
	// several events for one drop.
	seen map[string]bool
}

// NewSpool creates a Spool enqueueing into store from dir.
func NewSpool(store *Store, dir string, logger *slog.Logger) *Spool {
	return &Spool{
		store:  store,
		dir:    dir,
		logger: logger,
		seen:   make(map[string]bool),
	}
}

// Run watches the spool directory until ctx is cancelled. Files already
// present at startup are enqueued first, so jobs dropped while the store
// was down are not lost.
func (s *Spool) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch spool directory: %w", err)
	}
	s.logger.Info("watching spool directory", "path", s.dir)

	if err := s.scanExisting(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("spool watcher error", "error", err)
		}
	}
}

func (s *Spool) scanExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.enqueue(filepath.Join(s.dir, entry.Name()))
	}
	return nil
}

func (s *Spool) handleEvent(event fsnotify.Event) {
	// Create fires when the drop starts; Rename-in shows up as Create too.
	// Writes into existing files are ignored so a slow copy enqueues once.
	if !event.Op.Has(fsnotify.Create) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}
	s.enqueue(event.Name)
}

func (s *Spool) enqueue(path string) {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".tmp") || strings.HasPrefix(name, ".") {
		return
	}
	if !audioExtensions[strings.ToLower(filepath.Ext(name))] {
		s.logger.Warn("ignoring non-audio file in spool", "file", name)
		return
	}
	if s.seen[path] {
		return
	}
	s.seen[path] = true

	job := s.store.Create(path)
	s.logger.Info("enqueued spooled audio file",
		"job_id", job.ID, "file", name)
}
