package umaps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lalmajed/citysh/lib/htmlutil"
	"github.com/lalmajed/citysh/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("citysh.internal.umaps")

// Blocked means the portal served an interstitial instead of the app
// shell, the session will not get usable cookies.
var Blocked = fmt.Errorf("portal returned a block or maintenance page")

type ClientOptions struct {
	// portal that issues session cookies and hosts the query proxy
	BaseUrl string
	// proxy endpoint path on the portal, discovered again at bootstrap
	ProxyPath string
	// upstream map server url up to and including /MapServer
	MapServer string
	// layer index under the map server
	Layer     int
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts      ClientOptions
	proxyPath string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 120
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", opts.UserAgent)
	client.SetHeader("referer", opts.BaseUrl+"/")
	client.SetHeader("origin", opts.BaseUrl)
	client.SetHeader("accept", "application/json, text/plain, */*")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "umaps/http")

	c := &Client{
		BaseUrl:   baseUrl,
		Http:      client,
		opts:      opts,
		proxyPath: opts.ProxyPath,
	}
	return c, nil
}

var blockedTitleRegex = regexp.MustCompile(`(?i)access denied|forbidden|blocked|under maintenance`)
var proxyUrlRegex = regexp.MustCompile(`proxyUrl\s*[:=]\s*["']([^"']+)["']`)

func findProxyPath(doc *goquery.Document) string {
	for _, script := range doc.Find("script").Nodes {
		groups := proxyUrlRegex.FindStringSubmatch(htmlutil.GetText(script))
		if len(groups) < 2 {
			continue
		}
		return groups[1]
	}
	return ""
}

// Bootstrap fetches the portal homepage so the cookie jar picks up the
// session cookies the proxy checks for. It also verifies the app shell
// actually loaded and re-discovers the proxy path from the embedded app
// config when present.
func (c *Client) Bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Bootstrap")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("accept", "text/html,application/xhtml+xml").
		Get("/")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch portal homepage")
		span.RecordError(err)
		return fmt.Errorf("bootstrap: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "portal homepage returned a bad status")
		return &StatusError{StatusCode: res.StatusCode(), URL: res.Request.URL}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse portal homepage")
		span.RecordError(err)
		return fmt.Errorf("bootstrap: %w", err)
	}

	title := htmlutil.CleanText(doc.Find("title").Text())
	if blockedTitleRegex.MatchString(title) {
		span.SetStatus(codes.Error, "portal served a block page")
		return fmt.Errorf("%w: %q", Blocked, title)
	}

	if proxy := findProxyPath(doc); proxy != "" && strings.HasPrefix(proxy, "/") {
		c.proxyPath = proxy
		slog.DebugContext(ctx, "discovered proxy path from app config", "path", proxy)
	}

	cookies := c.Http.GetClient().Jar.Cookies(c.BaseUrl)
	slog.DebugContext(ctx, "session bootstrapped",
		"title", title,
		"cookies", len(cookies),
	)
	return nil
}

// the proxy takes the full upstream url as its query string, the
// upstream's own parameters ride along after a second '?'
func (c *Client) proxiedUrl(params url.Values) string {
	target := fmt.Sprintf("%s/%d/query", c.opts.MapServer, c.opts.Layer)
	return fmt.Sprintf("%s?%s?%s", c.proxyPath, target, params.Encode())
}

func (c *Client) query(ctx context.Context, params url.Values) (*Page, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.proxiedUrl(params))
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode(), URL: res.Request.URL}
	}

	var page Page
	err = json.Unmarshal(res.Body(), &page)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if page.Error != nil {
		if page.Error.Code == http.StatusForbidden || page.Error.Code == http.StatusTooManyRequests {
			return nil, &ThrottleError{Code: page.Error.Code, Message: page.Error.Message}
		}
		return nil, page.Error
	}
	return &page, nil
}

// QueryPage issues exactly one request for one page of features. Retry
// and pacing are the caller's concern.
func (c *Client) QueryPage(ctx context.Context, req QueryRequest) (*Page, error) {
	ctx, span := tracer.Start(ctx, "client:QueryPage")
	defer span.End()

	outFields := "*"
	if len(req.OutFields) > 0 {
		outFields = strings.Join(req.OutFields, ",")
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("where", req.Where)
	params.Set("outFields", outFields)
	params.Set("resultOffset", strconv.FormatInt(req.Offset, 10))
	params.Set("resultRecordCount", strconv.FormatInt(req.Count, 10))
	if req.ReturnGeometry {
		params.Set("returnGeometry", "true")
	} else {
		params.Set("returnGeometry", "false")
	}
	if req.OrderBy != "" {
		params.Set("orderByFields", req.OrderBy)
	}

	page, err := c.query(ctx, params)
	if err != nil {
		span.SetStatus(codes.Error, "query failed")
		span.RecordError(err)
		return nil, err
	}
	return page, nil
}

// Count runs the returnCountOnly preflight for the where clause.
func (c *Client) Count(ctx context.Context, where string) (int64, error) {
	ctx, span := tracer.Start(ctx, "client:Count")
	defer span.End()

	params := url.Values{}
	params.Set("f", "json")
	params.Set("where", where)
	params.Set("returnCountOnly", "true")

	page, err := c.query(ctx, params)
	if err != nil {
		span.SetStatus(codes.Error, "count preflight failed")
		span.RecordError(err)
		return 0, err
	}
	if page.Count == nil {
		err = &DecodeError{Err: fmt.Errorf("count missing from response")}
		span.SetStatus(codes.Error, "count preflight failed")
		span.RecordError(err)
		return 0, err
	}
	return *page.Count, nil
}
