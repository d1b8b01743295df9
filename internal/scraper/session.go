package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jgoulah/watersync/internal/config"
)

// Session is an authenticated portal session bound to a cookie jar. It is
// owned by exactly one sync cycle and discarded at cycle end; per-day
// requests through it must stay sequential because the portal's tokens
// are single-use.
type Session struct {
	client     *http.Client // follows redirects (page GETs, downloads)
	noRedirect *http.Client // stops at the first redirect (form POSTs)
	baseURL    string
	loc        *time.Location
}

// Login executes the webforms login handshake and returns an authenticated
// session, or an *AuthError. No retry is attempted here; retry policy
// belongs to the cycle level.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	s := &Session{
		client: &http.Client{Jar: jar, Timeout: httpTimeout},
		noRedirect: &http.Client{
			Jar:     jar,
			Timeout: httpTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: c.baseURL,
		loc:     c.loc,
	}

	// Saved browser cookies can short-circuit the form login when the
	// server-side session is still alive
	if len(c.cookies) > 0 {
		s.seedCookies(c.cookies)
		if err := s.checkLanding(ctx); err == nil {
			return s, nil
		}
	}

	// Step 1: fetch the login page for a fresh token set
	body, status, err := s.getPage(ctx, c.baseURL+loginPagePath)
	if err != nil {
		return nil, &AuthError{Message: "fetching login page", Err: err}
	}
	if status != http.StatusOK {
		return nil, &AuthError{StatusCode: status, Message: "login page unavailable"}
	}

	fields, err := ExtractHiddenFields(body)
	if err != nil {
		return nil, &AuthError{Message: "extracting login page tokens", Err: err}
	}

	// Step 2: submit credentials with the tokens, without following the
	// post-login redirect
	form := url.Values{}
	for k, v := range fields.FormValues() {
		form.Set(k, v)
	}
	form.Set("tb_USER_ID", c.username)
	form.Set("tb_USER_PSWD", c.password)
	form.Set("btn_SIGN_IN_BUTTON", "Sign in")

	resp, err := s.postForm(ctx, c.baseURL+loginPostPath, form)
	if err != nil {
		return nil, &AuthError{Message: "submitting login form", Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Step 3: complete server-side session establishment
	if location := resp.Header.Get("Location"); location != "" {
		if _, _, err := s.getPage(ctx, c.baseURL+location); err != nil {
			return nil, &AuthError{Message: "following login redirect", Err: err}
		}
	}

	// Step 4: confirm via the landing page marker
	if err := s.checkLanding(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// checkLanding fetches the account landing page and requires HTTP 200 plus
// the success marker in the body
func (s *Session) checkLanding(ctx context.Context) error {
	body, status, err := s.getPage(ctx, s.baseURL+landingPath)
	if err != nil {
		return &AuthError{Message: "fetching landing page", Err: err}
	}
	if status != http.StatusOK {
		return &AuthError{StatusCode: status, Message: "landing page rejected session"}
	}
	if !strings.Contains(body, welcomeMarker) {
		return &AuthError{StatusCode: status, Message: "landing page missing success marker"}
	}
	return nil
}

// seedCookies loads saved browser cookies into the session jar
func (s *Session) seedCookies(cookies []config.Cookie) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	s.client.Jar.SetCookies(u, httpCookies)
}

// getPage GETs a URL (following redirects) and returns the body and status
func (s *Session) getPage(ctx context.Context, pageURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

// postForm submits a form-encoded POST without following redirects. The
// caller owns the response body.
func (s *Session) postForm(ctx context.Context, postURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", s.baseURL)
	req.Header.Set("Referer", s.baseURL+usagePath)

	resp, err := s.noRedirect.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting form: %w", err)
	}

	return resp, nil
}
