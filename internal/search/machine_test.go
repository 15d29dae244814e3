package search

import (
	"testing"

	"directory-server-lite/internal/model"
)

func sampleUsers() []model.User {
	return []model.User{
		{ID: 1, FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Username: "johnd"},
		{ID: 2, FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Username: "janes"},
		{ID: 3, FirstName: "Alice", LastName: "Johnson", Email: "alice@example.com", Username: "alicej"},
	}
}

func TestReduce_Transitions(t *testing.T) {
	s := Initial()
	if s.Phase() != Browsing || s.Mode != ModeClient {
		t.Fatalf("expected browsing/client, got %v/%v", s.Phase(), s.Mode)
	}

	s = Reduce(s, QueryChanged{Text: "jo"})
	if s.Phase() != ClientFiltering {
		t.Fatalf("expected client filtering, got %v", s.Phase())
	}

	s = Reduce(s, Escalated{})
	if s.Phase() != ServerSearching {
		t.Fatalf("expected server searching, got %v", s.Phase())
	}

	s = Reduce(s, QueryChanged{Text: "joh"})
	if s.Phase() != ServerSearching || s.Query != "joh" {
		t.Fatalf("expected server mode to persist across edits, got %+v", s)
	}

	s = Reduce(s, QueryChanged{Text: ""})
	if s != Initial() {
		t.Fatalf("expected reset on empty query, got %+v", s)
	}

	s = Reduce(Reduce(s, QueryChanged{Text: "x"}), Escalated{})
	s = Reduce(s, Cleared{})
	if s != Initial() {
		t.Fatalf("expected reset on clear, got %+v", s)
	}
}

func TestReduce_EscalateWithEmptyQueryIgnored(t *testing.T) {
	s := Reduce(Initial(), Escalated{})
	if s.Mode != ModeClient || s.Phase() != Browsing {
		t.Fatalf("expected escalation ignored, got %+v", s)
	}
}

func TestReduce_ServerModeOnlyWithQuery(t *testing.T) {
	events := []Event{
		QueryChanged{Text: "a"}, Escalated{}, QueryChanged{Text: ""}, Escalated{},
		QueryChanged{Text: "b"}, Cleared{}, Escalated{}, QueryChanged{Text: "c"}, Escalated{},
	}
	s := Initial()
	for i, e := range events {
		s = Reduce(s, e)
		if s.Mode == ModeServer && s.Query == "" {
			t.Fatalf("step %d: server mode with empty query", i)
		}
	}
}

func TestNormalize(t *testing.T) {
	s := Normalize(State{Query: "", Mode: ModeServer})
	if s.Mode != ModeClient {
		t.Fatalf("expected client mode, got %v", s.Mode)
	}
	s = Normalize(State{Query: "q", Mode: "bogus"})
	if s.Mode != ModeClient {
		t.Fatalf("expected client mode, got %v", s.Mode)
	}
	s = Normalize(State{Query: "q", Mode: ModeServer})
	if s.Phase() != ServerSearching {
		t.Fatalf("expected server searching, got %v", s.Phase())
	}
}

func TestMatches(t *testing.T) {
	users := sampleUsers()
	cases := []struct {
		query string
		want  []int
	}{
		{"John", []int{1, 3}},
		{"john doe", []int{1}},
		{"jane.smith", []int{2}},
		{"ALICEJ", []int{3}},
		{"xyz", nil},
	}
	for _, tc := range cases {
		got := Filter(users, tc.query)
		if len(got) != len(tc.want) {
			t.Fatalf("query %q: expected %v, got %d users", tc.query, tc.want, len(got))
		}
		for i, u := range got {
			if u.ID != tc.want[i] {
				t.Fatalf("query %q: expected %v, got id %d at %d", tc.query, tc.want, u.ID, i)
			}
		}
	}
}

func TestFilter_EmptyQueryReturnsAll(t *testing.T) {
	if got := Filter(sampleUsers(), ""); len(got) != 3 {
		t.Fatalf("expected 3 users, got %d", len(got))
	}
}
