package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"directory-server-lite/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

type Store struct {
	mu sync.RWMutex

	sessionsStateFile string
	persistMu         sync.Mutex

	sessionsByID map[string]model.DirectorySession

	versions *viewVersions
}

func New() *Store {
	return NewWithOptions(Options{})
}

type Options struct {
	SessionsStateFile string
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		sessionsByID:      make(map[string]model.DirectorySession),
		versions:          newViewVersions(),
		sessionsStateFile: opts.SessionsStateFile,
	}

	if s.sessionsStateFile != "" {
		if err := s.loadSessionsFromFile(s.sessionsStateFile); err != nil {
			slog.Warn("sessions persistence: load failed", "file", s.sessionsStateFile, "error", err)
		}
	}

	return s
}

type persistedSessionsFile struct {
	Version  int                      `json:"version"`
	Sessions []model.DirectorySession `json:"sessions"`
	SavedAt  int64                    `json:"savedAt"`
}

func (s *Store) loadSessionsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedSessionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported sessions state version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range file.Sessions {
		if sess.ID == "" {
			continue
		}
		if sess.Query == "" || sess.Mode != model.SearchModeServer {
			sess.Mode = model.SearchModeClient
		}
		s.sessionsByID[sess.ID] = sess
	}
	return nil
}

func (s *Store) snapshotSessionsLocked() []model.DirectorySession {
	result := make([]model.DirectorySession, 0, len(s.sessionsByID))
	for _, sess := range s.sessionsByID {
		result = append(result, sess)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *Store) persistSessionsSnapshot(sessions []model.DirectorySession) {
	path := s.sessionsStateFile
	if path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Warn("sessions persistence: mkdir failed", "dir", dir, "error", err)
		return
	}

	file := persistedSessionsFile{Version: 1, Sessions: sessions, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		slog.Warn("sessions persistence: marshal failed", "error", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		slog.Warn("sessions persistence: create temp failed", "error", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		slog.Warn("sessions persistence: chmod temp failed", "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		slog.Warn("sessions persistence: write temp failed", "error", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		slog.Warn("sessions persistence: sync temp failed", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		slog.Warn("sessions persistence: close temp failed", "error", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		slog.Warn("sessions persistence: rename failed", "error", err)
	}
}

func (s *Store) CreateSession(nowMillis int64) model.DirectorySession {
	s.mu.Lock()
	sess := model.DirectorySession{
		ID:         uuid.NewString(),
		Mode:       model.SearchModeClient,
		CreatedAt:  nowMillis,
		UpdatedAt:  nowMillis,
		LastSeenAt: nowMillis,
	}
	s.sessionsByID[sess.ID] = sess
	snapshot := s.snapshotSessionsLocked()
	s.mu.Unlock()

	s.persistSessionsSnapshot(snapshot)
	return sess
}

func (s *Store) GetSession(sessionID string) (model.DirectorySession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessionsByID[sessionID]
	return sess, ok
}

func (s *Store) ListSessions() []model.DirectorySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotSessionsLocked()
}

// Touch records client activity. It is not persisted.
func (s *Store) Touch(sessionID string, nowMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessionsByID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastSeenAt = nowMillis
	s.sessionsByID[sessionID] = sess
	return nil
}

// UpdateSearch stores the session's search state. Unchanged state is not
// rewritten.
func (s *Store) UpdateSearch(sessionID, query string, mode model.SearchMode, nowMillis int64) (model.DirectorySession, error) {
	s.mu.Lock()
	sess, ok := s.sessionsByID[sessionID]
	if !ok {
		s.mu.Unlock()
		return model.DirectorySession{}, ErrSessionNotFound
	}
	sess.LastSeenAt = nowMillis
	if sess.Query == query && sess.Mode == mode {
		s.sessionsByID[sessionID] = sess
		s.mu.Unlock()
		return sess, nil
	}
	sess.Query = query
	sess.Mode = mode
	sess.UpdatedAt = nowMillis
	s.sessionsByID[sessionID] = sess
	snapshot := s.snapshotSessionsLocked()
	s.mu.Unlock()

	s.persistSessionsSnapshot(snapshot)
	return sess, nil
}

func (s *Store) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	if _, ok := s.sessionsByID[sessionID]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessionsByID, sessionID)
	s.versions.forget(sessionID)
	snapshot := s.snapshotSessionsLocked()
	s.mu.Unlock()

	s.persistSessionsSnapshot(snapshot)
	return true
}

// ExpireIdle removes sessions last seen before cutoffMillis and returns
// their ids.
func (s *Store) ExpireIdle(cutoffMillis int64) []string {
	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessionsByID {
		if sess.LastSeenAt < cutoffMillis {
			expired = append(expired, id)
			delete(s.sessionsByID, id)
			s.versions.forget(id)
		}
	}
	if len(expired) == 0 {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.snapshotSessionsLocked()
	s.mu.Unlock()

	sort.Strings(expired)
	s.persistSessionsSnapshot(snapshot)
	return expired
}

// NextViewVersion returns a per-session, strictly increasing view version,
// or 0 once the session is gone.
func (s *Store) NextViewVersion(sessionID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessionsByID[sessionID]; !ok {
		return 0
	}
	return s.versions.next(sessionID)
}
