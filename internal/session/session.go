// Package session obtains and persists the service's session cookie.
//
// Archive downloads require a logged-in session. The cookie is stored on
// disk and reused until it is within RefreshWindow of expiring, at which
// point a new one is requested with the configured credentials.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ioutils "github.com/handiism/quicksong/internal/io"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/sirupsen/logrus"
)

// CookieName is the name of the session cookie.
const CookieName = "osu_session"

// RefreshWindow is how long before expiry a cookie is replaced.
const RefreshWindow = 3 * 24 * time.Hour

var (
	// ErrNoSession is returned when a login response sets no session cookie.
	ErrNoSession = errors.New("login response carries no session cookie")

	// ErrNoCredentials is returned when a login is needed but no username
	// or password is configured.
	ErrNoCredentials = errors.New("no credentials configured")
)

// Cookie is the persisted session cookie.
type Cookie struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// Header returns the value of a Cookie request header.
func (c Cookie) Header() string {
	return (&http.Cookie{Name: CookieName, Value: c.Value}).String()
}

// NeedsRefresh reports whether the cookie is missing, has no known
// expiry, or expires within RefreshWindow of now.
func (c Cookie) NeedsRefresh(now time.Time) bool {
	if c.Value == "" || c.Expires.IsZero() {
		return true
	}
	return c.Expires.Before(now.Add(RefreshWindow))
}

// FormPoster posts a form and returns the cookies set in response.
type FormPoster interface {
	PostForm(ctx context.Context, url string, form url.Values) ([]*http.Cookie, error)
}

// Login signs in and returns the session cookie.
func Login(ctx context.Context, client FormPoster, baseURL, username, password string, now time.Time) (Cookie, error) {
	if username == "" || password == "" {
		return Cookie{}, ErrNoCredentials
	}

	form := url.Values{"username": {username}, "password": {password}}
	cookies, err := client.PostForm(ctx, osu.SessionURL(baseURL), form)
	if err != nil {
		return Cookie{}, fmt.Errorf("login: %w", err)
	}

	for _, c := range cookies {
		if c.Name != CookieName {
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		return Cookie{Value: c.Value, Expires: expires}, nil
	}
	return Cookie{}, ErrNoSession
}

// Store reads and writes a cookie file.
type Store struct {
	path string
}

// NewStore creates a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the cookie file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored cookie. A missing file yields the zero Cookie.
func (s *Store) Load() (Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cookie{}, nil
		}
		return Cookie{}, err
	}

	var c Cookie
	if err := json.Unmarshal(data, &c); err != nil {
		return Cookie{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return c, nil
}

// Save replaces the stored cookie.
func (s *Store) Save(c Cookie) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return ioutils.WriteFile(s.path, data, 0o600)
}

// Provider hands out a valid cookie, logging in when the stored one is
// missing or about to expire.
type Provider struct {
	Store    *Store
	Client   FormPoster
	BaseURL  string
	Username string
	Password string
	Logger   logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Get returns a cookie that does not need a refresh.
func (p *Provider) Get(ctx context.Context) (Cookie, error) {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	stored, err := p.Store.Load()
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable cookie file")
	}
	if !stored.NeedsRefresh(now()) {
		return stored, nil
	}

	log.WithField("file", p.Store.Path()).Info("requesting a new session cookie")
	c, err := Login(ctx, p.Client, p.BaseURL, p.Username, p.Password, now())
	if err != nil {
		return Cookie{}, err
	}
	if err := p.Store.Save(c); err != nil {
		log.WithError(err).Warn("saving cookie failed")
	}
	return c, nil
}
