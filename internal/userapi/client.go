package userapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"directory-server-lite/internal/model"
)

const (
	DefaultBaseURL = "https://dummyjson.com"
	DefaultTimeout = 10 * time.Second

	DefaultLimit = 30
	MinLimit     = 20
	MaxLimit     = 50

	usersPath  = "/users"
	searchPath = "/users/search"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// ClampLimit applies the page-size convention: 0 means the default,
// anything else is kept inside [MinLimit, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func (c *Client) ListUsers(ctx context.Context, limit, skip int) (model.UsersPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(ClampLimit(limit)))
	params.Set("skip", strconv.Itoa(max(skip, 0)))

	var page model.UsersPage
	if err := c.get(ctx, usersPath, params, &page); err != nil {
		return model.UsersPage{}, err
	}
	return page, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string, limit, skip int) (model.UsersPage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(ClampLimit(limit)))
	params.Set("skip", strconv.Itoa(max(skip, 0)))

	var page model.UsersPage
	if err := c.get(ctx, searchPath, params, &page); err != nil {
		return model.UsersPage{}, err
	}
	return page, nil
}

func (c *Client) GetUser(ctx context.Context, id int) (model.User, error) {
	var u model.User
	if err := c.get(ctx, usersPath+"/"+strconv.Itoa(id), nil, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return &Error{Kind: KindUnexpected, Err: fmt.Errorf("new request %s: %w", path, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("get %s: %w", path, err)}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("read %s: %w", path, err)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return &Error{
			Kind:          KindHTTP,
			StatusCode:    res.StatusCode,
			ServerMessage: eb.Message,
			Err:           fmt.Errorf("get %s: status %d", path, res.StatusCode),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindUnexpected, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}
