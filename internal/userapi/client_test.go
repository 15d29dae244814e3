package userapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"directory-server-lite/internal/model"
)

func TestClient_ListUsersSendsPagingParams(t *testing.T) {
	var gotPath, gotLimit, gotSkip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		gotSkip = r.URL.Query().Get("skip")
		_ = json.NewEncoder(w).Encode(model.UsersPage{
			Users: []model.User{{ID: 1, FirstName: "John", LastName: "Doe"}},
			Total: 100,
			Skip:  30,
			Limit: 30,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	page, err := c.ListUsers(context.Background(), 30, 30)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if gotPath != "/users" || gotLimit != "30" || gotSkip != "30" {
		t.Fatalf("unexpected request: path=%q limit=%q skip=%q", gotPath, gotLimit, gotSkip)
	}
	if page.Total != 100 || len(page.Users) != 1 || page.Users[0].FullName() != "John Doe" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestClient_SearchUsersSendsQuery(t *testing.T) {
	var gotPath, gotQ, gotLimit, gotSkip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQ = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		gotSkip = r.URL.Query().Get("skip")
		_ = json.NewEncoder(w).Encode(model.UsersPage{})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	if _, err := c.SearchUsers(context.Background(), "xyz", 0, 0); err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if gotPath != "/users/search" || gotQ != "xyz" || gotLimit != "30" || gotSkip != "0" {
		t.Fatalf("unexpected request: path=%q q=%q limit=%q skip=%q", gotPath, gotQ, gotLimit, gotSkip)
	}
}

func TestClient_GetUserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"User with id '999' not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), 999)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("expected 404 to be final")
	}
	if Message(err) != "User with id '999' not found" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.ListUsers(context.Background(), 30, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if Message(err) != NetworkErrorMessage {
		t.Fatalf("expected network message, got %q", Message(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected network failure to be retryable")
	}
}

func TestClient_TimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, 50*time.Millisecond)
	_, err := c.GetUser(context.Background(), 1)
	if Message(err) != NetworkErrorMessage {
		t.Fatalf("expected network message, got %q", Message(err))
	}
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.ListUsers(context.Background(), 30, 0)
	if Message(err) != UnexpectedErrorMessage {
		t.Fatalf("expected unexpected message, got %q", Message(err))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 30, -1: 30, 5: 20, 20: 20, 30: 30, 50: 50, 100: 50}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d): expected %d, got %d", in, want, got)
		}
	}
}
