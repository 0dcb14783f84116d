package restclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is reported in the default User-Agent header.
const Version = "0.1"

// DefaultTimeout bounds every request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DataArg is the argument name that carries the request body.
const DataArg = "data"

// searchPathRe matches the text-search endpoint, which does not challenge for
// credentials and therefore gets them injected up front.
var searchPathRe = regexp.MustCompile(`^/search\..*`)

// Args are the arguments of one invocation. DataArg is the JSON body, keys
// matching path placeholders fill the path and the rest become query
// parameters.
type Args map[string]any

// Invoker runs table operations by name. *Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args Args) (Result, error)
}

var _ Invoker = (*Client)(nil)

// Options configures a Client.
type Options struct {
	Username           string
	Password           string            // password, or API token when UseAPIToken is set
	UseAPIToken        bool              // appends "/token" to Username
	Headers            map[string]string // replaces the default headers when non-nil
	UserAgent          string            // default User-Agent, "zencamp <Version>" if empty
	InsecureSkipVerify bool              // skips TLS certificate validation
	Timeout            time.Duration     // per request, DefaultTimeout if zero
	HTTPClient         *http.Client      // base client; its transport gains basic auth
	Logger             *zerolog.Logger
}

// Client dispatches the operations of one Table against one account. It holds
// no per-call state and is safe for concurrent use.
type Client struct {
	baseURL    string
	table      Table
	username   string
	password   string
	headers    map[string]string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a client for the service described by table at baseURL.
func New(baseURL string, table Table, opts Options) *Client {
	username := opts.Username
	if opts.UseAPIToken {
		username += "/token"
	}

	headers := opts.Headers
	if headers == nil {
		ua := opts.UserAgent
		if ua == "" {
			ua = "zencamp " + Version
		}
		headers = map[string]string{
			"User-Agent":   ua,
			"Content-Type": "application/json",
		}
	}
	hdrs := make(map[string]string, len(headers))
	for k, v := range headers {
		hdrs[k] = v
	}

	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = log.With().Str("component", "restclient").Str("service", table.Service()).Logger()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		table:      table,
		username:   username,
		password:   opts.Password,
		headers:    hdrs,
		httpClient: newHTTPClient(opts, username),
		logger:     logger,
	}
}

func newHTTPClient(opts Options, username string) *http.Client {
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.Timeout
		if hc.Timeout == 0 {
			hc.Timeout = DefaultTimeout
		}
	}

	transport := hc.Transport
	if opts.InsecureSkipVerify {
		transport = skipVerify(transport)
	}
	if username != "" && opts.Password != "" {
		transport = newBasicAuthTransport(transport, username, opts.Password)
	}
	hc.Transport = transport
	return &hc
}

// skipVerify returns a copy of base that does not validate certificates. A nil
// base means http.DefaultTransport. Round trippers other than *http.Transport
// are returned unchanged.
func skipVerify(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	t, ok := base.(*http.Transport)
	if !ok {
		return base
	}
	t = t.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	}
	t.TLSClientConfig.InsecureSkipVerify = true
	return t
}

// Invoke runs the named operation. The caller's args are not modified.
func (c *Client) Invoke(ctx context.Context, name string, args Args) (Result, error) {
	op, req, err := c.NewRequest(ctx, name, args)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("operation", name).Str("method", op.Method).Msg("request failed")
		return Result{}, &Error{Kind: KindTransport, Operation: name, Err: err}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Operation: name, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.logger.Debug().
		Str("operation", name).
		Str("method", op.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	meta := &ResponseMeta{StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	result, err := Interpret(meta, content, op.Status)
	if re, ok := err.(*Error); ok {
		re.Operation = name
	}
	return result, err
}

// NewRequest builds the HTTP request Invoke would send for name and args.
func (c *Client) NewRequest(ctx context.Context, name string, args Args) (Operation, *http.Request, error) {
	op, ok := c.table.Lookup(name)
	if !ok {
		return Operation{}, nil, unknownOperation(name)
	}

	remaining := make(Args, len(args))
	for k, v := range args {
		remaining[k] = v
	}
	body, hasBody := remaining[DataArg]
	delete(remaining, DataArg)
	if !hasBody {
		body = nil
	}

	path := ResolvePath(op.Path, remaining)

	keys := make([]string, 0, len(remaining))
	for k := range remaining {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	query := url.Values{}
	for _, k := range keys {
		if !op.Allows(k) {
			return op, nil, unexpectedParameter(k, name)
		}
		query.Set(k, fmt.Sprint(remaining[k]))
	}
	rawURL := c.baseURL + path + "?" + query.Encode()

	payload, err := json.Marshal(body)
	if err != nil {
		return op, nil, fmt.Errorf("encoding %s request body: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return op, nil, fmt.Errorf("building %s request: %w", name, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if searchPathRe.MatchString(op.Path) {
		token := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		req.Header.Set("Authorization", "Basic "+token)
	} else {
		req.Header.Del("Authorization")
	}
	return op, req, nil
}

// ResolvePath substitutes every {{name}} token in template with the matching
// entry of args, deleting the entries it uses. Tokens without an entry become
// the empty string.
func ResolvePath(template string, args Args) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(tok string) string {
		key := placeholderRe.FindStringSubmatch(tok)[1]
		v, ok := args[key]
		if !ok {
			return ""
		}
		delete(args, key)
		return fmt.Sprint(v)
	})
}

var identifierRe = regexp.MustCompile(`.*/(\d+)\.(json|xml)`)

// IDFromURL returns the numeric identifier of a resource URL such as
// https://example.com/projects/1/todos/42.json, or "" if there is none.
func IDFromURL(u string) string {
	m := identifierRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}
