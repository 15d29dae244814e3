// Package directory hosts the list and detail screens of the user
// directory. A Service owns the paged caches shared by every session and
// the Screen mounted for each session.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"directory-server-lite/internal/model"
	"directory-server-lite/internal/query"
	"directory-server-lite/internal/search"
	"directory-server-lite/internal/store"
	"directory-server-lite/internal/userapi"
)

var ErrSessionClosed = errors.New("session closed")

// Source is the remote user API.
type Source interface {
	ListUsers(ctx context.Context, limit, skip int) (model.UsersPage, error)
	SearchUsers(ctx context.Context, query string, limit, skip int) (model.UsersPage, error)
	GetUser(ctx context.Context, id int) (model.User, error)
}

// Notifier receives every view change of a mounted screen and every
// session that goes away.
type Notifier interface {
	ViewChanged(sessionID string, view ListView)
	SessionClosed(sessionID string)
}

type Config struct {
	PageSize       int
	ListOptions    query.Options
	SearchOptions  query.Options
	DetailOptions  query.Options
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
}

func DefaultConfig() Config {
	opts := query.DefaultOptions()
	opts.ShouldRetry = userapi.IsRetryable
	return Config{
		PageSize:       userapi.DefaultLimit,
		ListOptions:    opts.WithStaleTime(5 * time.Minute),
		SearchOptions:  opts.WithStaleTime(2 * time.Minute),
		DetailOptions:  opts.WithStaleTime(10 * time.Minute),
		SessionIdleTTL: 30 * time.Minute,
		SweepInterval:  time.Minute,
	}
}

type Service struct {
	ctx      context.Context
	source   Source
	sessions *store.Store
	notifier Notifier
	cfg      Config
	now      func() time.Time

	base     *query.InfiniteCache[model.User]
	searches *query.InfiniteCache[model.User]
	detail   *query.Cache[int, model.User]

	mu      sync.Mutex
	screens map[string]*Screen
}

// NewService builds a service whose fetches run under ctx. notifier may be nil.
func NewService(ctx context.Context, source Source, sessions *store.Store, cfg Config, notifier Notifier) *Service {
	cfg.PageSize = userapi.ClampLimit(cfg.PageSize)
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	s := &Service{
		ctx:      ctx,
		source:   source,
		sessions: sessions,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		base:     query.NewInfiniteCache[model.User](ctx, cfg.ListOptions),
		searches: query.NewInfiniteCache[model.User](ctx, cfg.SearchOptions),
		screens:  make(map[string]*Screen),
	}
	s.detail = query.NewCache[int, model.User](ctx, source.GetUser, cfg.DetailOptions)
	return s
}

func (s *Service) PageSize() int { return s.cfg.PageSize }

func (s *Service) nowMillis() int64 { return s.now().UnixMilli() }

func baseKey(limit int) string {
	return fmt.Sprintf("users:infinite:%d", limit)
}

func searchKey(q string, limit int) string {
	return fmt.Sprintf("search-users:%q:%d", q, limit)
}

func toPage(p model.UsersPage) query.Page[model.User] {
	return query.Page[model.User]{Items: p.Users, Total: p.Total, Skip: p.Skip, Limit: p.Limit}
}

func (s *Service) listPage(ctx context.Context, skip, limit int) (query.Page[model.User], error) {
	p, err := s.source.ListUsers(ctx, limit, skip)
	if err != nil {
		return query.Page[model.User]{}, err
	}
	return toPage(p), nil
}

func (s *Service) searchPage(q string) query.PageFetcher[model.User] {
	return func(ctx context.Context, skip, limit int) (query.Page[model.User], error) {
		p, err := s.source.SearchUsers(ctx, q, limit, skip)
		if err != nil {
			return query.Page[model.User]{}, err
		}
		return toPage(p), nil
	}
}

// Mount creates a session in Browsing and starts loading the first page.
func (s *Service) Mount() (*Screen, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	sess := s.sessions.CreateSession(s.nowMillis())
	screen := newScreen(s, sess.ID, restoredState(sess))

	s.mu.Lock()
	s.screens[sess.ID] = screen
	s.mu.Unlock()

	slog.Debug("directory session mounted", "session_id", sess.ID)
	return screen, nil
}

func restoredState(sess model.DirectorySession) search.State {
	return search.Normalize(search.State{Query: sess.Query, Mode: sess.Mode})
}

// Screen returns the mounted screen of a session and records activity. A
// session known to the store but not in memory, such as one restored from
// the state file, is mounted again with its saved search state.
func (s *Service) Screen(sessionID string) (*Screen, error) {
	now := s.nowMillis()
	if err := s.sessions.Touch(sessionID, now); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if screen, ok := s.screens[sessionID]; ok {
		return screen, nil
	}
	sess, ok := s.sessions.GetSession(sessionID)
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	screen := newScreen(s, sessionID, restoredState(sess))
	s.screens[sessionID] = screen
	slog.Debug("directory session restored", "session_id", sessionID, "query", sess.Query, "mode", sess.Mode)
	return screen, nil
}

func (s *Service) Exists(sessionID string) bool {
	_, ok := s.sessions.GetSession(sessionID)
	return ok
}

func (s *Service) Unmount(sessionID string) bool {
	if !s.sessions.DeleteSession(sessionID) {
		return false
	}
	s.closeScreen(sessionID)
	return true
}

func (s *Service) closeScreen(sessionID string) {
	s.mu.Lock()
	screen, ok := s.screens[sessionID]
	delete(s.screens, sessionID)
	s.mu.Unlock()

	if ok {
		screen.close()
	}
	if s.notifier != nil {
		s.notifier.SessionClosed(sessionID)
	}
}

type SweepStats struct {
	ExpiredSessions int
	ListEntries     int
	SearchEntries   int
	DetailEntries   int
}

// Sweep expires idle sessions, then drops cache entries nobody uses.
func (s *Service) Sweep(now time.Time) SweepStats {
	var stats SweepStats
	if s.cfg.SessionIdleTTL > 0 {
		expired := s.sessions.ExpireIdle(now.Add(-s.cfg.SessionIdleTTL).UnixMilli())
		for _, id := range expired {
			s.closeScreen(id)
		}
		stats.ExpiredSessions = len(expired)
	}
	stats.ListEntries = s.base.Sweep(now)
	stats.SearchEntries = s.searches.Sweep(now)
	stats.DetailEntries = s.detail.Sweep(now)
	return stats
}

// Run sweeps on every tick until ctx is done, then closes every screen.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			stats := s.Sweep(s.now())
			if stats != (SweepStats{}) {
				slog.Debug("directory sweep",
					"expired_sessions", stats.ExpiredSessions,
					"list_entries", stats.ListEntries,
					"search_entries", stats.SearchEntries,
					"detail_entries", stats.DetailEntries,
				)
			}
		}
	}
}

// Close stops every mounted screen. Sessions stay in the store.
func (s *Service) Close() {
	s.mu.Lock()
	screens := s.screens
	s.screens = make(map[string]*Screen)
	s.mu.Unlock()

	for _, screen := range screens {
		screen.close()
	}
}
