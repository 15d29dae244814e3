package directory

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"directory-server-lite/internal/format"
	"directory-server-lite/internal/model"
	"directory-server-lite/internal/userapi"
)

var ErrInvalidUserID = errors.New("invalid user id")

const (
	DetailLoading = "loading"
	DetailError   = "error"
	DetailSuccess = "success"
)

type DetailView struct {
	UserID     int              `json:"userId"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	EmptyState *EmptyState      `json:"emptyState,omitempty"`
	Profile    *ProfileSection  `json:"profile,omitempty"`
	Contact    *ContactSection  `json:"contact,omitempty"`
	Personal   *PersonalSection `json:"personal,omitempty"`
	Company    *CompanySection  `json:"company,omitempty"`
	Address    *AddressSection  `json:"address,omitempty"`
	Back       Route            `json:"back"`
}

type ProfileSection struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Image    string `json:"image"`
	Initials string `json:"initials"`
}

type ContactSection struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	EmailLink string `json:"emailLink,omitempty"`
	PhoneLink string `json:"phoneLink,omitempty"`
}

type PersonalSection struct {
	Age        string `json:"age"`
	Gender     string `json:"gender"`
	BirthDate  string `json:"birthDate"`
	BloodGroup string `json:"bloodGroup"`
}

type CompanySection struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Department string `json:"department"`
}

type AddressSection struct {
	Lines     []string `json:"lines"`
	Formatted string   `json:"formatted"`
}

// ParseUserID validates a UserDetail route parameter.
func ParseUserID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return id, nil
}

// Detail fetches one user through the detail cache and renders it. The
// returned error is the upstream failure, if any; the view describes it
// either way.
func (s *Service) Detail(ctx context.Context, id int) (DetailView, error) {
	if id <= 0 {
		return DetailView{}, ErrInvalidUserID
	}
	u, err := s.detail.Get(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DetailView{}, ctxErr
		}
		return detailError(id, err), err
	}
	return detailSuccess(u), nil
}

// PeekDetail renders whatever is cached without blocking. A missing or stale
// entry is fetched in the background.
func (s *Service) PeekDetail(id int) (DetailView, error) {
	if id <= 0 {
		return DetailView{}, ErrInvalidUserID
	}
	res := s.detail.Peek(id)
	switch {
	case res.HasValue:
		s.detail.Prefetch(id)
		return detailSuccess(res.Value), nil
	case res.Err != nil && !res.IsFetching:
		return detailError(id, res.Err), res.Err
	default:
		if !res.IsFetching {
			s.detail.Prefetch(id)
		}
		return DetailView{UserID: id, Status: DetailLoading, Back: HomeRoute()}, nil
	}
}

func detailError(id int, err error) DetailView {
	msg := userapi.Message(err)
	return DetailView{
		UserID: id,
		Status: DetailError,
		Error:  msg,
		EmptyState: &EmptyState{
			Icon:        "⚠️",
			Title:       "Error Loading User",
			Description: msg,
		},
		Back: HomeRoute(),
	}
}

func detailSuccess(u model.User) DetailView {
	v := DetailView{
		UserID: u.ID,
		Status: DetailSuccess,
		Profile: &ProfileSection{
			FullName: u.FullName(),
			Username: "@" + u.Username,
			Image:    u.Image,
			Initials: format.Initials(u.FirstName, u.LastName),
		},
		Contact: &ContactSection{
			Email: u.Email,
			Phone: format.PhoneNumber(u.Phone),
		},
		Personal: &PersonalSection{
			Age:        strconv.Itoa(u.Age) + " years old",
			Gender:     u.Gender,
			BirthDate:  format.Date(u.BirthDate),
			BloodGroup: u.BloodGroup,
		},
		Back: HomeRoute(),
	}
	if format.IsValidEmail(u.Email) {
		v.Contact.EmailLink = "mailto:" + format.Email(u.Email)
	}
	if format.IsValidPhoneNumber(u.Phone) {
		v.Contact.PhoneLink = "tel:" + telNumber(u.Phone)
	}

	if u.Company != nil {
		v.Company = &CompanySection{
			Name:       u.Company.Name,
			Title:      u.Company.Title,
			Department: u.Company.Department,
		}
	}
	if a := u.Address; a != nil {
		v.Address = &AddressSection{
			Lines:     addressLines(a),
			Formatted: format.Address(a.Address, a.City, a.State, a.PostalCode),
		}
	}
	return v
}

func addressLines(a *model.Address) []string {
	lines := make([]string, 0, 3)
	if a.Address != "" {
		lines = append(lines, a.Address)
	}
	cityLine := strings.TrimSpace(format.Address(a.City, a.State) + " " + a.PostalCode)
	if cityLine != "" {
		lines = append(lines, cityLine)
	}
	if a.Country != "" {
		lines = append(lines, a.Country)
	}
	return lines
}

func telNumber(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
