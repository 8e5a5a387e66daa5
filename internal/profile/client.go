// Package profile talks to the remote user-profile service. Only the
// interface surface the auth flows consume is modeled here; profile CRUD,
// search indexing and notifications live in that service.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// ErrNotFound reports a login or user ID the profile service does not know.
var ErrNotFound = errors.New("profile not found")

// Profile is the projection of a remote profile the auth flows need.
type Profile struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsActive bool   `json:"isActive"`
}

// Availability is the result of a username/email availability check.
type Availability struct {
	UsernameAvailable bool `json:"usernameAvailable"`
	EmailAvailable    bool `json:"emailAvailable"`
}

// CreateProfileInput carries the attributes pushed to the profile service
// at registration.
type CreateProfileInput struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Client is the remote collaborator boundary. Implementations must bound
// every call; an ambiguous upstream answer is an error, never a silent
// success.
type Client interface {
	FindByLogin(ctx context.Context, identifier string) (*Profile, error)
	FindByID(ctx context.Context, userID int64) (*Profile, error)
	CheckAvailability(ctx context.Context, username, email string) (*Availability, error)
	CreateProfile(ctx context.Context, input CreateProfileInput) error
	// UnbindTelegram is best-effort cleanup at logout.
	UnbindTelegram(ctx context.Context, userID int64) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// ConfigFromEnv reads the profile service endpoint from env vars.
func ConfigFromEnv() Config {
	base := os.Getenv("PROFILE_SERVICE_URL")
	if base == "" {
		base = "http://localhost:8432/eco-profile"
	}
	timeout := 5 * time.Second
	if v := os.Getenv("PROFILE_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return Config{BaseURL: base, Timeout: timeout}
}

// HTTPClient is the JSON-over-HTTP implementation of Client.
type HTTPClient struct {
	base    string
	httpc   *http.Client
	timeout time.Duration
}

func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		base:    cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
	}
}

func (c *HTTPClient) FindByLogin(ctx context.Context, identifier string) (*Profile, error) {
	var p Profile
	path := "/profiles/by-login/" + url.PathEscape(identifier)
	if err := c.getJSON(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) FindByID(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	path := "/profiles/" + strconv.FormatInt(userID, 10)
	if err := c.getJSON(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) CheckAvailability(ctx context.Context, username, email string) (*Availability, error) {
	q := url.Values{"username": {username}, "email": {email}}
	var a Availability
	if err := c.getJSON(ctx, "/profiles/availability?"+q.Encode(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) CreateProfile(ctx context.Context, input CreateProfileInput) error {
	body, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/profiles", bytes.NewReader(body), nil)
}

func (c *HTTPClient) UnbindTelegram(ctx context.Context, userID int64) error {
	path := "/profiles/" + strconv.FormatInt(userID, 10) + "/telegram"
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.base+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.base+path, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("profile service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("profile service responded %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
