package model

import "strings"

type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	StateCode  string `json:"stateCode,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Company struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Department string   `json:"department"`
	Address    *Address `json:"address,omitempty"`
}

type User struct {
	ID         int      `json:"id"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	MaidenName string   `json:"maidenName,omitempty"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Username   string   `json:"username"`
	BirthDate  string   `json:"birthDate"`
	Image      string   `json:"image"`
	BloodGroup string   `json:"bloodGroup"`
	Address    *Address `json:"address,omitempty"`
	Company    *Company `json:"company,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type UsersPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

type SearchMode string

const (
	SearchModeClient SearchMode = "client"
	SearchModeServer SearchMode = "server"
)

type DirectorySession struct {
	ID         string     `json:"id"`
	Query      string     `json:"query"`
	Mode       SearchMode `json:"mode"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
	LastSeenAt int64      `json:"lastSeenAt"`
}
