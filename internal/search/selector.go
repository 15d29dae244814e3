package search

import "directory-server-lite/internal/model"

// Source is the part of a paged cache the selector looks at.
type Source struct {
	Users              []model.User
	HasData            bool
	IsLoading          bool
	IsFetchingNextPage bool
	HasNextPage        bool
	Err                error
}

type Kind int

const (
	KindList Kind = iota
	KindLoading
	KindError
	KindNoResults
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindError:
		return "error"
	case KindNoResults:
		return "no-results"
	default:
		return "list"
	}
}

type Authority int

const (
	AuthorityBase Authority = iota
	AuthorityClientFilter
	AuthorityServer
)

func (a Authority) String() string {
	switch a {
	case AuthorityClientFilter:
		return "client-filter"
	case AuthorityServer:
		return "server"
	default:
		return "base"
	}
}

type Footer int

const (
	FooterNone Footer = iota
	FooterLocalHint
	FooterPageLoading
)

type Decision struct {
	Phase     Phase
	Authority Authority
	Kind      Kind
	Users     []model.User
	Err       error

	// LoadedCount is the number of base listing users the client filter runs over.
	LoadedCount int
	MatchCount  int

	CanEscalate    bool
	Footer         Footer
	RefreshEnabled bool
	HasNextPage    bool
}

func (p Phase) authority() Authority {
	switch p {
	case ClientFiltering:
		return AuthorityClientFilter
	case ServerSearching:
		return AuthorityServer
	default:
		return AuthorityBase
	}
}

// Select decides what the list shows. Rules are applied in priority order:
// loading, error, no results, list.
func Select(s State, base, server Source) Decision {
	phase := s.Phase()

	src := base
	var users []model.User
	switch phase {
	case ServerSearching:
		src = server
		users = server.Users
	case ClientFiltering:
		users = Filter(base.Users, s.Query)
	default:
		users = base.Users
	}

	d := Decision{
		Phase:          phase,
		Authority:      phase.authority(),
		Users:          users,
		LoadedCount:    len(base.Users),
		RefreshEnabled: phase == Browsing,
		HasNextPage:    phase != ClientFiltering && src.HasNextPage,
	}
	if phase == ClientFiltering {
		d.MatchCount = len(users)
	}

	switch {
	case !src.HasData && src.IsLoading:
		d.Kind = KindLoading
		d.Users = nil
	case !src.HasData && src.Err != nil:
		d.Kind = KindError
		d.Err = src.Err
		d.Users = nil
	case s.Query != "" && len(users) == 0 && !src.IsLoading:
		d.Kind = KindNoResults
		d.CanEscalate = phase == ClientFiltering
	default:
		d.Kind = KindList
		d.CanEscalate = phase == ClientFiltering
		switch {
		case phase == ClientFiltering && len(users) > 0:
			d.Footer = FooterLocalHint
		case phase != ClientFiltering && src.IsFetchingNextPage:
			d.Footer = FooterPageLoading
		}
	}
	return d
}
