package endeavor

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"time"

	"endeavor-cli/lib/htmlutil"
	"endeavor-cli/lib/telemetry"
	"endeavor-cli/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/endeavor")

const DefaultBaseUrl = "https://www.endeavor.net.br"

// cookies the portal sets on a successful login, their values are
// opaque session tokens and must not be inspected beyond presence
var sessionCookies = [...]string{"ENDEAVORu", "ENDEAVORp"}

var ErrUnauthenticated = errors.New("session is not authenticated, call Login first")
var ErrLoginFailed = errors.New("authentication did not establish a session")

// StatusError reports a request that completed with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP status code %d", e.URL, e.StatusCode)
}

func ensureSuccess(res *resty.Response) error {
	if res.IsSuccess() {
		return nil
	}
	return &StatusError{URL: res.Request.URL, StatusCode: res.StatusCode()}
}

// extraction paths into the timeline page, fixed at construction so
// selector drift is visible in one place
type pageSelectors struct {
	entryContainers string
	entryInfo       string
	idDate          string
	projectInfo     string
}

func defaultSelectors() pageSelectors {
	return pageSelectors{
		entryContainers: "body > div.wrapper.fullheight-side > div.main-panel.full-height > " +
			"div.content > div > div.col-md-12 > div > div > div.d-flex",
		entryInfo: "div.flex-1.ml-3.pt-1",
		idDate:    "h6 > b",
		// direct child of the info block, its text nodes are the
		// customer and the project number
		projectInfo: "span",
	}
}

// Client drives the timesheet portal through its web UI. The cookie
// jar is shared by every request and is safe for concurrent use, so a
// single logged-in client may run many submissions at once.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	jar            http.CookieJar
	emulateBrowser bool
	selectors      pageSelectors
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// when set, harmless warm-up requests are issued around the real
	// workflow and browser-like headers are attached to every request
	EmulateBrowser bool
}

func NewClient(opts ClientOptions) (*Client, error) {
	rawUrl := opts.BaseUrl
	if rawUrl == "" {
		rawUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	// the portal only speaks HTTP/1.1 and is sensitive to header
	// casing, net/http writes canonical Title-Case headers there
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.String())
	client.SetTransport(transport)
	client.SetCookieJar(jar)
	client.SetTimeout(time.Second * 30)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	if opts.EmulateBrowser {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(
			client.GetClient().Transport,
			cloudflarebp.Options{
				AddMissingHeaders: true,
				Headers: map[string]string{
					"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
					"Accept-Language": "en-US,en;q=0.5",
					"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
				},
			},
		)
	}

	telemetry.InstrumentResty(client, "scrapers/endeavor/http")

	return &Client{
		BaseUrl:        baseUrl,
		Http:           client,
		jar:            jar,
		emulateBrowser: opts.EmulateBrowser,
		selectors:      defaultSelectors(),
	}, nil
}

func (c *Client) cookie(name string) *http.Cookie {
	for _, cookie := range c.jar.Cookies(c.BaseUrl) {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func (c *Client) hasSessionCookies() bool {
	for _, name := range sessionCookies {
		if c.cookie(name) == nil {
			return false
		}
	}
	return true
}

// issues a request whose only purpose is to mimic natural browser
// navigation, the body is discarded
func (c *Client) warmup(ctx context.Context, path string) error {
	if !c.emulateBrowser {
		return nil
	}
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return fmt.Errorf("warm-up %s: %w", path, err)
	}
	if err := ensureSuccess(res); err != nil {
		return fmt.Errorf("warm-up: %w", err)
	}
	return nil
}

// Login authenticates against the portal. The portal answers 200 even
// on bad credentials, so success is judged solely by the presence of
// the session cookies afterwards.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	err := c.warmup(ctx, "/horas")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "landing page warm-up failed")
		return fmt.Errorf("login: %w", err)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"UserLogon": username,
			"UserPwd":   password,
		}).
		Post("/mobile_v2/login.asp?Action=Login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return fmt.Errorf("login: %w", err)
	}
	if err := ensureSuccess(res); err != nil {
		span.SetStatus(codes.Error, "login request rejected")
		return fmt.Errorf("login: %w", err)
	}

	for _, name := range sessionCookies {
		if c.cookie(name) == nil {
			span.SetStatus(codes.Error, ErrLoginFailed.Error())
			return fmt.Errorf("cookie %s not found after login: %w", name, ErrLoginFailed)
		}
	}
	return nil
}

// PendingEntries fetches the timeline page and returns the entries
// found on it, sorted ascending by date. Entries dated after today in
// portal time are dropped unless includeFuture is set. An empty
// timeline is not an error here, that is caller policy.
func (c *Client) PendingEntries(ctx context.Context, includeFuture bool) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "client:PendingEntries")
	defer span.End()

	if !c.hasSessionCookies() {
		span.SetStatus(codes.Error, ErrUnauthenticated.Error())
		return nil, ErrUnauthenticated
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/mobile_v2/time_line.asp")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch timeline")
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if err := ensureSuccess(res); err != nil {
		span.SetStatus(codes.Error, "timeline request rejected")
		return nil, fmt.Errorf("list entries: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries, err := c.extractEntries(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract entries")
		return nil, fmt.Errorf("list entries: %w", err)
	}

	today := timezone.Today()
	var kept []Entry
	for _, entry := range entries {
		if includeFuture || !entry.Date.After(today) {
			kept = append(kept, entry)
		}
	}
	slices.SortStableFunc(kept, func(a, b Entry) int {
		return a.Date.Compare(b.Date)
	})
	return kept, nil
}

// the timeline markup is untrusted, a single malformed container
// means the page structure drifted and fails the whole extraction
// rather than returning a partial listing
func (c *Client) extractEntries(doc *goquery.Document) ([]Entry, error) {
	var entries []Entry
	var extractErr error

	doc.Find(c.selectors.entryContainers).EachWithBreak(func(i int, container *goquery.Selection) bool {
		info := container.Find(c.selectors.entryInfo).First()
		if info.Length() == 0 {
			extractErr = fmt.Errorf("entry %d: info block not found", i)
			return false
		}

		idDateNode := info.Find(c.selectors.idDate).First()
		if idDateNode.Length() == 0 {
			extractErr = fmt.Errorf("entry %d: cannot find 'id - date' field", i)
			return false
		}

		projectNode := info.ChildrenFiltered(c.selectors.projectInfo).First()
		if projectNode.Length() == 0 {
			extractErr = fmt.Errorf("entry %d: cannot find project field", i)
			return false
		}
		projectInfo := htmlutil.TextFragments(projectNode.Nodes[0])

		entry, err := ParseEntry(idDateNode.Text(), projectInfo)
		if err != nil {
			extractErr = fmt.Errorf("entry %d: %w", i, err)
			return false
		}
		entries = append(entries, entry)
		return true
	})

	if extractErr != nil {
		return nil, extractErr
	}
	return entries, nil
}
