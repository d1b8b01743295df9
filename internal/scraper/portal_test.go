package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakePortal simulates the SFPUC webforms stack: rotating hidden tokens,
// a cookie-based session, and redirect-driven export downloads.
type fakePortal struct {
	t *testing.T

	mu           sync.Mutex
	tokenCounter int
	currentToken string // only the most recently issued token is valid
	username     string
	password     string

	// behavior switches
	omitWelcome     bool // landing page without the success marker
	omitViewState   bool // login page missing a hidden field
	omitAvailRange  bool // usage page without the date literals
	wrongDownloadCT bool // serve the export as text/html
	failDates       map[string]bool // SD values whose download 500s

	// counters
	loginPosts  int
	exportPosts int
	downloads   int

	// TSV payloads per SD date, header line included
	dayPayloads map[string]string

	server *httptest.Server
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		t:           t,
		username:    "testuser",
		password:    "testpass",
		dayPayloads: map[string]string{},
		failDates:   map[string]bool{},
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

// issueToken rotates the anti-forgery token; the previous one is dead
func (p *fakePortal) issueToken() string {
	p.tokenCounter++
	p.currentToken = fmt.Sprintf("token-%d", p.tokenCounter)
	return p.currentToken
}

func (p *fakePortal) hiddenFieldsHTML(token string) string {
	return fmt.Sprintf(`
<input type="hidden" id="__VIEWSTATE" value=%q />
<input type="hidden" id="__VIEWSTATEGENERATOR" value="GEN" />
<input type="hidden" id="__EVENTVALIDATION" value="EV-%s" />`, token, token)
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == loginPagePath:
		token := p.issueToken()
		page := "<html><body><form>" + p.hiddenFieldsHTML(token) + "</form></body></html>"
		if p.omitViewState {
			page = strings.Replace(page, "__VIEWSTATE\"", "__SOMETHING_ELSE\"", 1)
		}
		fmt.Fprint(w, page)

	case r.Method == http.MethodPost && r.URL.Path == loginPostPath:
		p.loginPosts++
		r.ParseForm()
		if r.PostForm.Get("__VIEWSTATE") != p.currentToken {
			http.Error(w, "stale viewstate", http.StatusInternalServerError)
			return
		}
		if r.PostForm.Get("tb_USER_ID") != p.username || r.PostForm.Get("tb_USER_PSWD") != p.password {
			// The real portal re-renders the login page on bad credentials
			fmt.Fprint(w, "<html><body>Sign in failed</body></html>")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "fake-session", Path: "/"})
		w.Header().Set("Location", landingPath)
		w.WriteHeader(http.StatusFound)

	case r.Method == http.MethodGet && r.URL.Path == landingPath:
		if c, err := r.Cookie("ASP.NET_SessionId"); err != nil || c.Value != "fake-session" {
			fmt.Fprint(w, "<html><body>Please sign in</body></html>")
			return
		}
		if p.omitWelcome {
			fmt.Fprint(w, "<html><body>Account home</body></html>")
			return
		}
		fmt.Fprint(w, "<html><body>Welcome back</body></html>")

	case r.Method == http.MethodGet && r.URL.Path == usagePath:
		token := p.issueToken()
		avail := `<script>var chart = {"startDate":"Sat, 01 Jun 2024 00:00:00 GMT","endDate":"Mon, 03 Jun 2024 00:00:00 GMT"};</script>`
		if p.omitAvailRange {
			avail = "<script>var chart = {};</script>"
		}
		fmt.Fprint(w, "<html><body><form>"+p.hiddenFieldsHTML(token)+"</form>"+avail+"</body></html>")

	case r.Method == http.MethodPost && r.URL.Path == usagePath:
		p.exportPosts++
		r.ParseForm()
		if r.PostForm.Get("__VIEWSTATE") != p.currentToken {
			http.Error(w, "stale viewstate", http.StatusInternalServerError)
			return
		}
		if r.PostForm.Get("dl_UOM") != "GALLONS" {
			http.Error(w, "bad unit", http.StatusBadRequest)
			return
		}
		sd := r.PostForm.Get("SD")
		// Token is consumed by this POST
		p.currentToken = ""
		w.Header().Set("Location", "/download/"+strings.ReplaceAll(sd, "/", "-"))
		w.WriteHeader(http.StatusFound)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/download/"):
		p.downloads++
		sd := strings.ReplaceAll(strings.TrimPrefix(r.URL.Path, "/download/"), "-", "/")
		if p.failDates[sd] {
			http.Error(w, "export unavailable", http.StatusInternalServerError)
			return
		}
		if p.wrongDownloadCT {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>Session expired</body></html>")
			return
		}
		payload, ok := p.dayPayloads[sd]
		if !ok {
			payload = "Hour\tConsumption\n"
		}
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		fmt.Fprint(w, payload)

	default:
		http.NotFound(w, r)
	}
}

// newTestClient returns a client pointed at the fake portal
func newTestClient(t *testing.T, p *fakePortal) *Client {
	client, err := New(p.username, p.password)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	client.SetBaseURL(p.server.URL)
	return client
}
