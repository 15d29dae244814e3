package directory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"directory-server-lite/internal/model"
	"directory-server-lite/internal/query"
	"directory-server-lite/internal/search"
	"directory-server-lite/internal/store"
	"directory-server-lite/internal/userapi"
)

type call struct {
	q     string
	limit int
	skip  int
}

type fakeSource struct {
	mu          sync.Mutex
	users       []model.User
	listCalls   []call
	searchCalls []call
	getCalls    int
	listErr     error
	gate        chan struct{}
}

func newFakeSource(users []model.User) *fakeSource {
	return &fakeSource{users: users}
}

func (f *fakeSource) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func page(users []model.User, limit, skip int) model.UsersPage {
	end := min(skip+limit, len(users))
	start := min(skip, end)
	return model.UsersPage{Users: users[start:end], Total: len(users), Skip: skip, Limit: limit}
}

func (f *fakeSource) ListUsers(ctx context.Context, limit, skip int) (model.UsersPage, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, call{limit: limit, skip: skip})
	err := f.listErr
	users := f.users
	f.mu.Unlock()

	if werr := f.wait(ctx); werr != nil {
		return model.UsersPage{}, werr
	}
	if err != nil {
		return model.UsersPage{}, err
	}
	return page(users, limit, skip), nil
}

func (f *fakeSource) SearchUsers(ctx context.Context, q string, limit, skip int) (model.UsersPage, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, call{q: q, limit: limit, skip: skip})
	users := f.users
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return model.UsersPage{}, err
	}
	return page(search.Filter(users, q), limit, skip), nil
}

func (f *fakeSource) GetUser(ctx context.Context, id int) (model.User, error) {
	f.mu.Lock()
	f.getCalls++
	users := f.users
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, &userapi.Error{Kind: userapi.KindHTTP, StatusCode: http.StatusNotFound}
}

func (f *fakeSource) calls() (list, searches []call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.listCalls...), append([]call(nil), f.searchCalls...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	views  []ListView
	closed []string
}

func (n *recordingNotifier) ViewChanged(sessionID string, view ListView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
}

func (n *recordingNotifier) SessionClosed(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, sessionID)
}

func (n *recordingNotifier) snapshot() ([]ListView, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ListView(nil), n.views...), append([]string(nil), n.closed...)
}

func threeUsers() []model.User {
	return []model.User{
		{ID: 1, FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Username: "johnd",
			Company: &model.Company{Name: "Acme", Title: "Engineer"}},
		{ID: 2, FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Username: "janes"},
		{ID: 3, FirstName: "Alice", LastName: "Johnson", Email: "alice@example.com", Username: "alicej"},
	}
}

func manyUsers(n int) []model.User {
	users := make([]model.User, n)
	for i := range users {
		users[i] = model.User{
			ID:        i + 1,
			FirstName: fmt.Sprintf("User%d", i+1),
			LastName:  "Test",
			Email:     fmt.Sprintf("user%d@example.com", i+1),
			Username:  fmt.Sprintf("user%d", i+1),
		}
	}
	return users
}

func testConfig() Config {
	opts := query.Options{RetryCount: 0, StaleTime: time.Hour, GCTime: time.Minute}
	return Config{
		PageSize:       30,
		ListOptions:    opts,
		SearchOptions:  opts,
		DetailOptions:  opts,
		SessionIdleTTL: time.Minute,
		SweepInterval:  time.Minute,
	}
}

func newTestService(t *testing.T, src Source, notifier Notifier) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(ctx, src, store.New(), testConfig(), notifier)
	t.Cleanup(func() {
		svc.Close()
		cancel()
	})
	return svc
}

func settle(t *testing.T, s *Screen) ListView {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return s.View()
}

func rowIDs(v ListView) []int {
	ids := make([]int, len(v.Rows))
	for i, r := range v.Rows {
		ids[i] = r.ID
	}
	return ids
}
