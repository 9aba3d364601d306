// Package mirror checks a project out to a real directory and watches it,
// syncing manual edits back into the file store. It is the filesystem
// counterpart of the in-app editor: whichever side writes last wins.
package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// Store is the file store surface the mirror reads from and writes back to.
type Store interface {
	GetFiles(projectID string) ([]types.FileNode, error)
	SaveFile(projectID string, file types.FileNode) error
}

// Mirror maintains a two-way bridge between one project and a directory.
type Mirror struct {
	store       Store
	projectID   string
	dir         string
	debounceDur time.Duration // Debounce rapid saves

	mu     sync.Mutex
	byPath map[string]types.FileNode // slash-separated relative path -> node
}

// New creates a mirror for the given project rooted at dir.
func New(store Store, projectID, dir string) *Mirror {
	return &Mirror{
		store:       store,
		projectID:   projectID,
		dir:         dir,
		debounceDur: 500 * time.Millisecond,
		byPath:      make(map[string]types.FileNode),
	}
}

// Dir returns the mirror root.
func (m *Mirror) Dir() string {
	return m.dir
}

// Checkout writes every project file under the mirror root, fanning the
// writes out concurrently. Binary assets stored as data URLs are skipped;
// they have no useful on-disk text form.
func (m *Mirror) Checkout(ctx context.Context) error {
	files, err := m.store.GetFiles(m.projectID)
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", m.projectID, err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, f := range files {
		if f.IsBinary {
			logging.MirrorDebug("Checkout skipping binary asset %s", f.Name)
			continue
		}
		file := f
		m.mu.Lock()
		m.byPath[file.Name] = file
		m.mu.Unlock()

		g.Go(func() error {
			target := filepath.Join(m.dir, filepath.FromSlash(file.Name))
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
			}
			if err := os.WriteFile(target, []byte(file.Content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logging.Mirror("Checked out project %s to %s (%d files)", m.projectID, m.dir, len(files))
	return nil
}

// Watch blocks syncing filesystem edits back to the store until ctx is
// cancelled. Checkout must have run first so the path index is populated.
func (m *Mirror) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the root and every existing subdirectory
	err = filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.dir, err)
	}

	logging.Mirror("Watching %s for project %s", m.dir, m.projectID)

	// Editors save with truncate-then-write sequences, so a file must sit
	// quiet for debounceDur before it is read. Syncing on the raw event
	// would capture the truncated intermediate state.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.noteEvent(watcher, event, pending)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.MirrorError("Watcher error: %v", err)
		case <-ticker.C:
			m.flushSettled(pending)
		}
	}
}

func (m *Mirror) noteEvent(watcher *fsnotify.Watcher, event fsnotify.Event, pending map[string]time.Time) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			watcher.Add(event.Name)
		}
		return
	}

	pending[event.Name] = time.Now()
}

// flushSettled syncs every pending path whose last event is older than the
// debounce window.
func (m *Mirror) flushSettled(pending map[string]time.Time) {
	now := time.Now()
	for path, last := range pending {
		if now.Sub(last) < m.debounceDur {
			continue
		}
		delete(pending, path)

		rel, err := filepath.Rel(m.dir, path)
		if err != nil {
			continue
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, ".") {
			continue
		}

		if err := m.syncFile(name, path); err != nil {
			if os.IsNotExist(err) {
				continue // removed before it settled
			}
			logging.MirrorError("Sync of %s failed: %v", name, err)
		}
	}
}

// syncFile pushes one on-disk file back into the store, creating a node for
// paths the project has never seen.
func (m *Mirror) syncFile(name, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	node, known := m.byPath[name]
	m.mu.Unlock()

	if known && node.Content == string(content) {
		return nil
	}

	if !known {
		node = types.FileNode{
			ID:       fmt.Sprintf("f_%s", uuid.NewString()),
			Name:     name,
			Language: types.LanguageForPath(name),
		}
	}
	node.Content = string(content)
	node.LastModified = types.NowMillis()

	if err := m.store.SaveFile(m.projectID, node); err != nil {
		return err
	}

	m.mu.Lock()
	m.byPath[name] = node
	m.mu.Unlock()

	logging.MirrorDebug("Synced %s (%d bytes)", name, len(content))
	return nil
}
