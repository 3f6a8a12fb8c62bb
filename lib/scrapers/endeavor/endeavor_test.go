package endeavor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"endeavor-cli/lib/telemetry"
	"endeavor-cli/lib/timezone"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type portalOptions struct {
	// withhold this session cookie on login to simulate bad credentials
	withholdCookie string
	rejectLogin    bool
	// ids whose hours POST should come back non-2xx
	failPostIds map[string]bool
	listing     string
}

// fake portal recording every request in arrival order
type portal struct {
	mu       sync.Mutex
	requests []string
	opts     portalOptions
	server   *httptest.Server
}

func newPortal(t *testing.T, opts portalOptions) *portal {
	p := &portal{opts: opts}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *portal) record(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, r.Method+" "+r.URL.RequestURI())
}

func (p *portal) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

func (p *portal) handle(w http.ResponseWriter, r *http.Request) {
	p.record(r)

	switch r.URL.Path {
	case "/horas", "/mobile_v2/tarefa.asp":
		w.WriteHeader(http.StatusOK)
	case "/mobile_v2/login.asp":
		if p.opts.rejectLogin {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for _, name := range sessionCookies {
			if name == p.opts.withholdCookie {
				continue
			}
			http.SetCookie(w, &http.Cookie{Name: name, Value: "opaque-token", Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
	case "/mobile_v2/time_line.asp":
		w.Write([]byte(p.opts.listing))
	case "/mobile_v2/apontamento.asp":
		if r.Method == http.MethodPost && p.opts.failPostIds[r.URL.Query().Get("app_id")] {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "/mobile_v2/finalizar.asp":
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, p *portal, emulateBrowser bool) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:        p.server.URL,
		EmulateBrowser: emulateBrowser,
	})
	require.NoError(t, err)
	return client
}

func login(t *testing.T, client *Client) {
	t.Helper()
	err := client.Login(context.Background(), "user", "hunter2")
	require.NoError(t, err)
}

func listingPage(rows ...string) string {
	return fmt.Sprintf(
		`<html><body><div class="wrapper fullheight-side"><div class="main-panel full-height">`+
			`<div class="content"><div><div class="col-md-12"><div><div>%s</div></div></div></div></div>`+
			`</div></div></body></html>`,
		strings.Join(rows, ""),
	)
}

func entryRow(id, date, customer, project string) string {
	return fmt.Sprintf(
		`<div class="d-flex"><div class="flex-1 ml-3 pt-1">`+
			`<h6><b>%s - %s</b></h6><span>%s<br/>%s</span>`+
			`</div></div>`,
		id, date, customer, project,
	)
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/endeavor")
	defer cleanup()

	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, false)

	login(t, client)
	require.Equal(t, []string{"POST /mobile_v2/login.asp?Action=Login"}, p.recorded())
}

func TestLoginEmulateBrowser(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, true)

	login(t, client)
	require.Equal(t, []string{
		"GET /horas",
		"POST /mobile_v2/login.asp?Action=Login",
	}, p.recorded())
}

func TestLoginMissingCookie(t *testing.T) {
	p := newPortal(t, portalOptions{withholdCookie: "ENDEAVORp"})
	client := newTestClient(t, p, false)

	err := client.Login(context.Background(), "user", "hunter2")
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorContains(t, err, "ENDEAVORp")
}

func TestLoginRejected(t *testing.T) {
	p := newPortal(t, portalOptions{rejectLogin: true})
	client := newTestClient(t, p, false)

	err := client.Login(context.Background(), "user", "hunter2")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestPendingEntries(t *testing.T) {
	today := timezone.Today()
	older := today.AddDate(0, 0, -3)
	recent := today.AddDate(0, 0, -1)
	future := today.AddDate(0, 0, 2)

	// deliberately out of order to exercise the sort
	p := newPortal(t, portalOptions{listing: listingPage(
		entryRow("102", recent.Format(dateLayout), "Acme Corp", "PRJ-9"),
		entryRow("103", future.Format(dateLayout), "Acme Corp", "PRJ-9"),
		entryRow("101", older.Format(dateLayout), "Globex", "PRJ-4"),
	)})
	client := newTestClient(t, p, false)
	login(t, client)

	entries, err := client.PendingEntries(context.Background(), true)
	require.NoError(t, err)
	expected := []Entry{
		{ID: "101", Date: older, Customer: "Globex", ProjectNumber: "PRJ-4"},
		{ID: "102", Date: recent, Customer: "Acme Corp", ProjectNumber: "PRJ-9"},
		{ID: "103", Date: future, Customer: "Acme Corp", ProjectNumber: "PRJ-9"},
	}
	if diff := cmp.Diff(expected, entries); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}

	entries, err = client.PendingEntries(context.Background(), false)
	require.NoError(t, err)
	if diff := cmp.Diff(expected[:2], entries); diff != "" {
		t.Fatalf("unexpected entries without future days (-want +got):\n%s", diff)
	}
}

func TestPendingEntriesEmpty(t *testing.T) {
	p := newPortal(t, portalOptions{listing: listingPage()})
	client := newTestClient(t, p, false)
	login(t, client)

	entries, err := client.PendingEntries(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPendingEntriesMalformedContainer(t *testing.T) {
	today := timezone.Today()

	// second container misses the project number fragment, the whole
	// listing must fail rather than return partial results
	malformed := `<div class="d-flex"><div class="flex-1 ml-3 pt-1">` +
		`<h6><b>102 - ` + today.Format(dateLayout) + `</b></h6><span>Acme Corp</span>` +
		`</div></div>`
	p := newPortal(t, portalOptions{listing: listingPage(
		entryRow("101", today.Format(dateLayout), "Globex", "PRJ-4"),
		malformed,
	)})
	client := newTestClient(t, p, false)
	login(t, client)

	entries, err := client.PendingEntries(context.Background(), true)
	require.Error(t, err)
	require.Nil(t, entries)
}

func TestPendingEntriesUnauthenticated(t *testing.T) {
	p := newPortal(t, portalOptions{listing: listingPage()})
	client := newTestClient(t, p, false)

	_, err := client.PendingEntries(context.Background(), true)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Empty(t, p.recorded())
}

func TestSubmitRequestOrder(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, true)
	login(t, client)

	err := client.Submit(context.Background(), "42", DefaultHoursForm())
	require.NoError(t, err)

	require.Equal(t, []string{
		"GET /horas",
		"POST /mobile_v2/login.asp?Action=Login",
		"GET /mobile_v2/tarefa.asp?app_id=42",
		"GET /mobile_v2/apontamento.asp?hist=&app_id=42",
		"POST /mobile_v2/apontamento.asp?Action=Post&app_id=42",
		"GET /mobile_v2/finalizar.asp?app_id=42",
	}, p.recorded())
}

func TestSubmitSkipsWarmups(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, false)
	login(t, client)

	err := client.Submit(context.Background(), "42", DefaultHoursForm())
	require.NoError(t, err)

	require.Equal(t, []string{
		"POST /mobile_v2/login.asp?Action=Login",
		"POST /mobile_v2/apontamento.asp?Action=Post&app_id=42",
		"GET /mobile_v2/finalizar.asp?app_id=42",
	}, p.recorded())
}

func TestSubmitAbortsAfterRejectedStep(t *testing.T) {
	p := newPortal(t, portalOptions{failPostIds: map[string]bool{"42": true}})
	client := newTestClient(t, p, false)
	login(t, client)

	err := client.Submit(context.Background(), "42", DefaultHoursForm())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)

	for _, req := range p.recorded() {
		require.NotContains(t, req, "finalizar")
	}
}

func TestSubmitUnauthenticated(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, false)

	err := client.Submit(context.Background(), "42", DefaultHoursForm())
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSubmitAllDeduplicatesIds(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, false)
	login(t, client)

	outcomes, err := client.SubmitAll(
		context.Background(),
		[]string{"1", "2", "2", "3"},
		DefaultHoursForm(),
	)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, id := range []string{"1", "2", "3"} {
		outcome, ok := outcomes[id]
		require.True(t, ok)
		require.NoError(t, outcome)

		posts := 0
		for _, req := range p.recorded() {
			if req == "POST /mobile_v2/apontamento.asp?Action=Post&app_id="+id {
				posts++
			}
		}
		require.Equal(t, 1, posts)
	}
}

func TestSubmitAllPartialFailure(t *testing.T) {
	p := newPortal(t, portalOptions{failPostIds: map[string]bool{"2": true}})
	client := newTestClient(t, p, false)
	login(t, client)

	outcomes, err := client.SubmitAll(
		context.Background(),
		[]string{"1", "2", "3"},
		DefaultHoursForm(),
	)
	require.Error(t, err)
	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes["1"])
	require.NoError(t, outcomes["3"])
	require.Error(t, outcomes["2"])

	var statusErr *StatusError
	require.ErrorAs(t, outcomes["2"], &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestSubmitAllCancelled(t *testing.T) {
	p := newPortal(t, portalOptions{})
	client := newTestClient(t, p, false)
	login(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := client.SubmitAll(ctx, []string{"1", "2"}, DefaultHoursForm())
	require.Error(t, err)
	// cancellation still yields one outcome per id, never a truncated set
	require.Len(t, outcomes, 2)
	require.Error(t, outcomes["1"])
	require.Error(t, outcomes["2"])
}
