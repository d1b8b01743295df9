package scraper

import (
	"fmt"
	"time"

	"github.com/jgoulah/watersync/internal/config"
)

const (
	defaultBaseURL = "https://myaccount-water.sfpuc.org"

	// The login page and login POST target are the portal's opaque
	// tokenized paths; they are stable but not human-readable.
	loginPagePath = "/~~~QUFBQUFBV1pwbU05OHZldjhIZG5YMU1GUTVYNmp5MllUVE9Ga21wU2prWi9wTGlZZlE9PQ==ZZZ"
	loginPostPath = "/~~~QUFBQUFBVU9uVGUrWmFxM2NuN2ZDbDM5Uy93cXhpbnNuakpTTUVlck01NFA1TXhtNnc9PQ==ZZZ"
	landingPath   = "/MY_ACCOUNT_RSF.aspx"
	usagePath     = "/USE_HOURLY.aspx"

	// welcomeMarker must appear on the landing page after a successful login
	welcomeMarker = "Welcome"

	// portalTimezone is the civil timezone all portal timestamps are in
	portalTimezone = "America/Los_Angeles"

	userAgent = "Mozilla/5.0"

	httpTimeout = 30 * time.Second
)

// Client scrapes hourly water usage from the SFPUC account portal.
// Login() opens a fresh authenticated Session; sessions are single-cycle
// and never reused because the portal's anti-forgery tokens rotate per
// request.
type Client struct {
	baseURL  string
	username string
	password string
	cookies  []config.Cookie
	loc      *time.Location
}

// New creates a portal client for the given account credentials
func New(username, password string) (*Client, error) {
	loc, err := time.LoadLocation(portalTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading portal timezone: %w", err)
	}

	return &Client{
		baseURL:  defaultBaseURL,
		username: username,
		password: password,
		loc:      loc,
	}, nil
}

// SetCookies seeds saved browser cookies (from 'watersync capture') into
// new sessions. The saved session is still validated against the landing
// page before the form login is skipped.
func (c *Client) SetCookies(cookies []config.Cookie) {
	c.cookies = cookies
}

// SetBaseURL overrides the portal base URL (used by tests)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Location returns the portal's civil timezone
func (c *Client) Location() *time.Location {
	return c.loc
}

// AuthError represents a login failure: bad credentials, missing hidden
// fields, an unexpected status, or a missing landing-page marker
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Message, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("auth error: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ParseError indicates an expected element was missing from a portal page
// (changed markup, or an expired session serving a different page)
type ParseError struct {
	Field string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: hidden field %s not found in page", e.Field)
}

// RangeError indicates the available date range could not be determined
type RangeError struct {
	StatusCode int
	Message    string
}

func (e *RangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("range error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("range error: %s", e.Message)
}
