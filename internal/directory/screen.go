package directory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"directory-server-lite/internal/model"
	"directory-server-lite/internal/query"
	"directory-server-lite/internal/search"
)

// Screen is the list screen of one session. Every operation is a single
// state update under the screen lock; cache fetches run in the background
// and report back through subscriptions.
type Screen struct {
	svc *Service
	id  string

	mu          sync.Mutex
	state       search.State
	closed      bool
	base        *query.Infinite[model.User]
	unsubBase   func()
	server      *query.Infinite[model.User]
	serverKey   string
	unsubServer func()

	version atomic.Int64
	dirty   chan struct{}
	done    chan struct{}
}

func newScreen(svc *Service, id string, state search.State) *Screen {
	s := &Screen{
		svc:   svc,
		id:    id,
		state: state,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.bumpVersion()

	s.base = svc.base.Get(baseKey(svc.cfg.PageSize), svc.cfg.PageSize, svc.listPage)
	s.unsubBase = s.base.Subscribe(s.changed)

	s.mu.Lock()
	s.syncServerLocked()
	s.mu.Unlock()

	go s.pump()
	s.base.Start()
	return s
}

func (s *Screen) ID() string { return s.id }

func (s *Screen) State() search.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetQuery applies a text change. It never calls the remote source itself;
// a search fetch starts only when the new state enables the search cache.
func (s *Screen) SetQuery(text string) error {
	return s.dispatch(search.QueryChanged{Text: text})
}

// EscalateToServer switches a non-empty query to server search.
func (s *Screen) EscalateToServer() error {
	return s.dispatch(search.Escalated{})
}

func (s *Screen) Clear() error {
	return s.dispatch(search.Cleared{})
}

// LoadMore asks the authoritative paged cache for its next page and reports
// whether a request was issued.
func (s *Screen) LoadMore() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}

	switch s.state.Phase() {
	case search.Browsing:
		return s.base.FetchNextPage(), nil
	case search.ServerSearching:
		if s.server == nil {
			return false, nil
		}
		return s.server.FetchNextPage(), nil
	default:
		return false, nil
	}
}

// Refresh refetches the base listing. It only applies while browsing.
func (s *Screen) Refresh() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	if s.state.Phase() != search.Browsing {
		return false, nil
	}
	return s.base.Refetch(), nil
}

func (s *Screen) View() ListView {
	s.mu.Lock()
	state := s.state
	base := s.base.Snapshot()
	var server query.InfiniteSnapshot[model.User]
	if s.server != nil {
		server = s.server.Snapshot()
	}
	s.mu.Unlock()

	d := search.Select(state, sourceOf(base), sourceOf(server))
	return buildListView(s.id, s.version.Load(), state, d)
}

// Wait blocks until the authoritative cache has no fetch in flight.
func (s *Screen) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	q := s.base
	if s.state.Phase() == search.ServerSearching && s.server != nil {
		q = s.server
	}
	s.mu.Unlock()
	return q.Wait(ctx)
}

func (s *Screen) dispatch(e search.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev := s.state
	s.state = search.Reduce(s.state, e)
	next := s.state
	if next != prev {
		s.syncServerLocked()
	}
	s.mu.Unlock()

	if next == prev {
		return nil
	}
	if _, err := s.svc.sessions.UpdateSearch(s.id, next.Query, next.Mode, s.svc.nowMillis()); err != nil {
		return fmt.Errorf("save search state: %w", err)
	}
	s.changed()
	return nil
}

// syncServerLocked keeps the search subscription in line with the state:
// subscribed to the query's cache in ServerSearching, detached otherwise.
// A detached fetch still completes into its cache.
func (s *Screen) syncServerLocked() {
	if s.state.Phase() != search.ServerSearching {
		s.dropServerLocked()
		return
	}

	key := searchKey(s.state.Query, s.svc.cfg.PageSize)
	if s.server != nil && s.serverKey == key {
		return
	}
	s.dropServerLocked()

	s.server = s.svc.searches.Get(key, s.svc.cfg.PageSize, s.svc.searchPage(s.state.Query))
	s.serverKey = key
	s.unsubServer = s.server.Subscribe(s.changed)
	s.server.Start()
}

func (s *Screen) dropServerLocked() {
	if s.unsubServer != nil {
		s.unsubServer()
	}
	s.server = nil
	s.serverKey = ""
	s.unsubServer = nil
}

// changed runs on cache notifications and state changes. It must not take
// the screen lock: caches notify from inside screen operations.
func (s *Screen) changed() {
	select {
	case <-s.done:
		return
	default:
	}
	s.bumpVersion()
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Screen) bumpVersion() {
	v := s.svc.sessions.NextViewVersion(s.id)
	for {
		cur := s.version.Load()
		if v <= cur || s.version.CompareAndSwap(cur, v) {
			return
		}
	}
}

// pump publishes the latest view after each burst of changes.
func (s *Screen) pump() {
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
		}
		if s.svc.notifier == nil {
			continue
		}
		view := s.View()
		select {
		case <-s.done:
			return
		default:
		}
		s.svc.notifier.ViewChanged(s.id, view)
	}
}

func (s *Screen) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.dropServerLocked()
	s.unsubBase()
	s.mu.Unlock()

	close(s.done)
}

func sourceOf(snap query.InfiniteSnapshot[model.User]) search.Source {
	return search.Source{
		Users:              snap.Items(),
		HasData:            snap.HasData(),
		IsLoading:          snap.IsLoading(),
		IsFetchingNextPage: snap.IsFetchingNextPage,
		HasNextPage:        snap.HasNextPage,
		Err:                snap.Err,
	}
}
