// Package search holds the hybrid client/server search state machine that
// drives the user list: a pure reducer over search events and a pure
// selector that turns the state plus the two paged caches into what the list
// must show.
package search

import (
	"strings"

	"directory-server-lite/internal/model"
)

type Mode = model.SearchMode

const (
	ModeClient = model.SearchModeClient
	ModeServer = model.SearchModeServer
)

type Phase int

const (
	Browsing Phase = iota
	ClientFiltering
	ServerSearching
)

func (p Phase) String() string {
	switch p {
	case ClientFiltering:
		return "client-filtering"
	case ServerSearching:
		return "server-searching"
	default:
		return "browsing"
	}
}

type State struct {
	Query string
	Mode  Mode
}

func Initial() State {
	return State{Mode: ModeClient}
}

// Normalize repairs a state restored from outside the reducer.
func Normalize(s State) State {
	if s.Query == "" || s.Mode != ModeServer {
		s.Mode = ModeClient
	}
	return s
}

func (s State) Phase() Phase {
	switch {
	case s.Query == "":
		return Browsing
	case s.Mode == ModeServer:
		return ServerSearching
	default:
		return ClientFiltering
	}
}

type Event interface {
	isEvent()
}

type QueryChanged struct {
	Text string
}

type Escalated struct{}

type Cleared struct{}

func (QueryChanged) isEvent() {}
func (Escalated) isEvent()    {}
func (Cleared) isEvent()      {}

func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case QueryChanged:
		if ev.Text == "" {
			return Initial()
		}
		s.Query = ev.Text
		if s.Mode != ModeServer {
			s.Mode = ModeClient
		}
		return s
	case Escalated:
		if s.Query == "" {
			return Initial()
		}
		s.Mode = ModeServer
		return s
	case Cleared:
		return Initial()
	default:
		return s
	}
}

// Matches reports whether query is a case-insensitive substring of the
// user's full name, email or username.
func Matches(u model.User, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName), q) ||
		strings.Contains(strings.ToLower(u.Email), q) ||
		strings.Contains(strings.ToLower(u.Username), q)
}

func Filter(users []model.User, query string) []model.User {
	if query == "" {
		return users
	}
	out := make([]model.User, 0)
	for _, u := range users {
		if Matches(u, query) {
			out = append(out, u)
		}
	}
	return out
}
