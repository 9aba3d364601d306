// Package store implements the File Store: durable per-project persistence
// of FileNode lists and snapshot history.
//
// The persisted layout is a key/value scheme:
//
//	project_<id>_files     -> JSON array of FileNode
//	project_<id>_snapshots -> JSON array of up to SnapshotLimit Snapshots, newest first
//
// backed by a single SQLite table. All read-modify-write cycles run under one
// mutex, so concurrent savers cannot clobber each other's whole-list writes.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// DefaultSnapshotLimit caps the per-project snapshot ring.
const DefaultSnapshotLimit = 10

// FileStore persists per-project file lists and snapshots in SQLite.
type FileStore struct {
	db            *sql.DB
	mu            sync.RWMutex
	dbPath        string
	snapshotLimit int
}

// NewFileStore initializes the SQLite database at the given path.
// Use ":memory:" for an ephemeral store.
func NewFileStore(path string) (*FileStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewFileStore")
	defer timer.Stop()

	logging.Store("Initializing FileStore at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &FileStore{db: db, dbPath: path, snapshotLimit: DefaultSnapshotLimit}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("FileStore initialization complete")
	return s, nil
}

// initialize creates the required tables.
func (s *FileStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspace_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// SetSnapshotLimit overrides the per-project snapshot cap.
func (s *FileStore) SetSnapshotLimit(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.snapshotLimit = n
	s.mu.Unlock()
}

// Close closes the database connection.
func (s *FileStore) Close() error {
	logging.Store("Closing FileStore database connection")
	return s.db.Close()
}

func filesKey(projectID string) string {
	return fmt.Sprintf("project_%s_files", projectID)
}

func snapshotsKey(projectID string) string {
	return fmt.Sprintf("project_%s_snapshots", projectID)
}

// getValue reads a raw value. Missing keys return ("", sql.ErrNoRows).
func (s *FileStore) getValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM workspace_kv WHERE key = ?", key).Scan(&value)
	return value, err
}

func (s *FileStore) putValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO workspace_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

func (s *FileStore) deleteValue(key string) error {
	_, err := s.db.Exec("DELETE FROM workspace_kv WHERE key = ?", key)
	return err
}

// seedProject clones the default template with project-scoped ids and fresh
// timestamps, persists the result, and returns it. Caller holds the lock.
func (s *FileStore) seedProject(projectID string) ([]types.FileNode, error) {
	now := types.NowMillis()
	files := DefaultFiles()
	for i := range files {
		files[i].ID = fmt.Sprintf("%s_%s_%s", files[i].ID, projectID, uuid.NewString())
		files[i].LastModified = now
	}
	if err := s.writeFiles(projectID, files); err != nil {
		return nil, err
	}
	logging.Store("Seeded project %s with %d template files", projectID, len(files))
	return files, nil
}

func (s *FileStore) writeFiles(projectID string, files []types.FileNode) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal file list: %w", err)
	}
	if err := s.putValue(filesKey(projectID), string(data)); err != nil {
		return fmt.Errorf("failed to persist file list: %w", err)
	}
	return nil
}

// loadFiles reads the persisted list, seeding on absence and reseeding on a
// corrupt record (fail closed: log and fall back to the template rather than
// crash the read). Caller holds the lock.
func (s *FileStore) loadFiles(projectID string) ([]types.FileNode, error) {
	raw, err := s.getValue(filesKey(projectID))
	if err == sql.ErrNoRows {
		return s.seedProject(projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}

	var files []types.FileNode
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		logging.StoreError("Corrupt file list for project %s, reseeding: %v", projectID, err)
		return s.seedProject(projectID)
	}
	return files, nil
}

// GetFiles returns the persisted list for a project, seeding it from the
// default template on first read. An empty project id returns an empty list
// without touching storage.
func (s *FileStore) GetFiles(projectID string) ([]types.FileNode, error) {
	if projectID == "" {
		return []types.FileNode{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("GetFiles: project=%s", projectID)
	return s.loadFiles(projectID)
}

// HasProject reports whether a project has a persisted file list. Unlike
// GetFiles it never seeds, so callers handling untrusted ids can reject
// unknown projects without creating storage records.
func (s *FileStore) HasProject(projectID string) (bool, error) {
	if projectID == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := s.getValue(filesKey(projectID))
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check project %s: %w", projectID, err)
	}
	return true, nil
}

// SaveFile replaces the node with a matching id (refreshing its timestamp) or
// appends it, then persists the whole list. Appending a node whose name is
// already taken by a different live file is rejected: name is the canonical
// key at the store boundary.
func (s *FileStore) SaveFile(projectID string, file types.FileNode) error {
	if projectID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.loadFiles(projectID)
	if err != nil {
		return err
	}

	file.LastModified = types.NowMillis()

	replaced := false
	for i := range files {
		if files[i].ID == file.ID {
			files[i] = file
			replaced = true
			break
		}
	}
	if !replaced {
		for i := range files {
			if files[i].Name == file.Name {
				return fmt.Errorf("file name %q already exists in project %s", file.Name, projectID)
			}
		}
		files = append(files, file)
	}

	logging.StoreDebug("SaveFile: project=%s file=%s replaced=%v", projectID, file.Name, replaced)
	return s.writeFiles(projectID, files)
}

// DeleteFile removes the node with the given id. Deleting an unknown id is a
// no-op.
func (s *FileStore) DeleteFile(projectID, fileID string) error {
	if projectID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.loadFiles(projectID)
	if err != nil {
		return err
	}

	filtered := files[:0]
	for _, f := range files {
		if f.ID != fileID {
			filtered = append(filtered, f)
		}
	}

	logging.StoreDebug("DeleteFile: project=%s file_id=%s remaining=%d", projectID, fileID, len(filtered))
	return s.writeFiles(projectID, filtered)
}

// DeleteProject removes a project's file list and snapshot history.
// Session deletion cascades here so no orphaned lists accumulate.
func (s *FileStore) DeleteProject(projectID string) error {
	if projectID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteValue(filesKey(projectID)); err != nil {
		return fmt.Errorf("failed to delete file list: %w", err)
	}
	if err := s.deleteValue(snapshotsKey(projectID)); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	logging.Store("Deleted project %s", projectID)
	return nil
}

// TakeSnapshot deep-copies the current file list into a described snapshot,
// prepends it to the project's capped history, persists, and returns it.
func (s *FileStore) TakeSnapshot(projectID, description string) (types.Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryStore, "TakeSnapshot")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.loadFiles(projectID)
	if err != nil {
		return types.Snapshot{}, err
	}

	snap := types.Snapshot{
		ID:          fmt.Sprintf("snap_%s", uuid.NewString()),
		Timestamp:   types.NowMillis(),
		Description: description,
		Files:       types.CloneFiles(files),
	}

	snaps, err := s.loadSnapshots(projectID)
	if err != nil {
		return types.Snapshot{}, err
	}

	snaps = append([]types.Snapshot{snap}, snaps...)
	if len(snaps) > s.snapshotLimit {
		snaps = snaps[:s.snapshotLimit]
	}

	if err := s.writeSnapshots(projectID, snaps); err != nil {
		return types.Snapshot{}, err
	}

	logging.Store("Snapshot taken: project=%s id=%s files=%d", projectID, snap.ID, len(snap.Files))
	return snap, nil
}

// Snapshots returns the project's snapshot history, newest first.
func (s *FileStore) Snapshots(projectID string) ([]types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSnapshots(projectID)
}

// RestoreSnapshot replaces the project's live file list with a deep copy of
// the named snapshot's files.
func (s *FileStore) RestoreSnapshot(projectID, snapshotID string) ([]types.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps, err := s.loadSnapshots(projectID)
	if err != nil {
		return nil, err
	}

	for _, snap := range snaps {
		if snap.ID == snapshotID {
			files := types.CloneFiles(snap.Files)
			if err := s.writeFiles(projectID, files); err != nil {
				return nil, err
			}
			logging.Store("Restored snapshot %s for project %s (%d files)", snapshotID, projectID, len(files))
			return files, nil
		}
	}

	return nil, fmt.Errorf("snapshot %s not found for project %s", snapshotID, projectID)
}

func (s *FileStore) loadSnapshots(projectID string) ([]types.Snapshot, error) {
	raw, err := s.getValue(snapshotsKey(projectID))
	if err == sql.ErrNoRows {
		return []types.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	var snaps []types.Snapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		logging.StoreError("Corrupt snapshot history for project %s, discarding: %v", projectID, err)
		return []types.Snapshot{}, nil
	}
	return snaps, nil
}

func (s *FileStore) writeSnapshots(projectID string, snaps []types.Snapshot) error {
	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	if err := s.putValue(snapshotsKey(projectID), string(data)); err != nil {
		return fmt.Errorf("failed to persist snapshots: %w", err)
	}
	return nil
}
