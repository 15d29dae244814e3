package directory

import (
	"fmt"
	"strconv"

	"directory-server-lite/internal/format"
	"directory-server-lite/internal/model"
	"directory-server-lite/internal/search"
	"directory-server-lite/internal/userapi"
)

const (
	RouteHome       = "Home"
	RouteUserDetail = "UserDetail"

	SearchPlaceholder = "Search users by name, email, or username..."

	ActionEscalate = "escalate"
)

// Route names a destination. UserDetail carries only the user id.
type Route struct {
	Name   string       `json:"name"`
	Params *RouteParams `json:"params,omitempty"`
	Path   string       `json:"path"`
}

type RouteParams struct {
	UserID int `json:"userId"`
}

func HomeRoute() Route {
	return Route{Name: RouteHome, Path: "/v1/directory/view"}
}

func UserDetailRoute(userID int) Route {
	return Route{
		Name:   RouteUserDetail,
		Params: &RouteParams{UserID: userID},
		Path:   "/v1/users/" + strconv.Itoa(userID),
	}
}

type ListView struct {
	SessionID      string      `json:"sessionId"`
	Version        int64       `json:"version"`
	Phase          string      `json:"phase"`
	Kind           string      `json:"kind"`
	SearchBar      SearchBar   `json:"searchBar"`
	Rows           []Row       `json:"rows"`
	EmptyState     *EmptyState `json:"emptyState,omitempty"`
	Footer         *Footer     `json:"footer,omitempty"`
	RefreshEnabled bool        `json:"refreshEnabled"`
	HasNextPage    bool        `json:"hasNextPage"`
}

type SearchBar struct {
	Query       string `json:"query"`
	Placeholder string `json:"placeholder"`
	HelperText  string `json:"helperText,omitempty"`
}

type Row struct {
	ID          int    `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Image       string `json:"image"`
	Initials    string `json:"initials"`
	CompanyLine string `json:"companyLine"`
	Route       Route  `json:"route"`
}

type EmptyState struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionText  string `json:"actionText,omitempty"`
	Action      string `json:"action,omitempty"`
}

type Footer struct {
	Kind       string `json:"kind"`
	HelperText string `json:"helperText,omitempty"`
	ActionText string `json:"actionText,omitempty"`
	Action     string `json:"action,omitempty"`
}

func buildListView(sessionID string, version int64, state search.State, d search.Decision) ListView {
	v := ListView{
		SessionID:      sessionID,
		Version:        version,
		Phase:          d.Phase.String(),
		Kind:           d.Kind.String(),
		SearchBar:      searchBar(state, d),
		Rows:           make([]Row, 0, len(d.Users)),
		RefreshEnabled: d.RefreshEnabled,
		HasNextPage:    d.HasNextPage,
	}

	switch d.Kind {
	case search.KindError:
		v.EmptyState = &EmptyState{
			Icon:        "⚠️",
			Title:       "Error Loading Users",
			Description: userapi.Message(d.Err),
		}
		return v
	case search.KindLoading:
		return v
	case search.KindNoResults:
		v.EmptyState = noResults(state, d)
		return v
	}

	for _, u := range d.Users {
		v.Rows = append(v.Rows, rowOf(u))
	}
	switch d.Footer {
	case search.FooterLocalHint:
		v.Footer = &Footer{
			Kind:       "local-hint",
			HelperText: fmt.Sprintf("Showing %d results from loaded data", d.MatchCount),
			ActionText: "Load More Results from Server",
			Action:     ActionEscalate,
		}
	case search.FooterPageLoading:
		v.Footer = &Footer{Kind: "page-loading"}
	}
	return v
}

func searchBar(state search.State, d search.Decision) SearchBar {
	bar := SearchBar{Query: state.Query, Placeholder: SearchPlaceholder}
	switch d.Phase {
	case search.ClientFiltering:
		bar.HelperText = fmt.Sprintf("Filtering %d loaded users", d.LoadedCount)
	case search.ServerSearching:
		bar.HelperText = fmt.Sprintf(`Searching all users for "%s"`, state.Query)
	}
	return bar
}

func noResults(state search.State, d search.Decision) *EmptyState {
	if d.CanEscalate {
		return &EmptyState{
			Icon:        "🔍",
			Title:       "No Results",
			Description: `No users found in loaded data. Try "Load More" to search all users.`,
			ActionText:  "Search All Users",
			Action:      ActionEscalate,
		}
	}
	return &EmptyState{
		Icon:        "🔍",
		Title:       "No Results",
		Description: fmt.Sprintf("No users found for '%s'", state.Query),
	}
}

func rowOf(u model.User) Row {
	return Row{
		ID:          u.ID,
		FullName:    u.FullName(),
		Email:       u.Email,
		Username:    u.Username,
		Image:       u.Image,
		Initials:    format.Initials(u.FirstName, u.LastName),
		CompanyLine: companyLine(u.Company),
		Route:       UserDetailRoute(u.ID),
	}
}

func companyLine(c *model.Company) string {
	title, name := "No title", "N/A"
	if c != nil && c.Title != "" {
		title = c.Title
	}
	if c != nil && c.Name != "" {
		name = c.Name
	}
	return title + " at " + name
}
