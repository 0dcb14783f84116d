package restclient

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// basicAuthTransport answers HTTP Basic challenges. A request without an
// Authorization header is first sent as is; when the server replies 401 with
// a Basic challenge the request is replayed once with credentials and the
// host is remembered, so later requests to it authenticate up front.
type basicAuthTransport struct {
	base     http.RoundTripper
	username string
	password string

	mu    sync.Mutex
	hosts map[string]bool
}

func newBasicAuthTransport(base http.RoundTripper, username, password string) *basicAuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &basicAuthTransport{
		base:     base,
		username: username,
		password: password,
		hosts:    make(map[string]bool),
	}
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	if t.known(req.URL.Host) {
		authed, err := t.withCredentials(req)
		if err != nil {
			return nil, err
		}
		return t.base.RoundTrip(authed)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !isBasicChallenge(resp.Header) {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	authed, err := t.withCredentials(req)
	if err != nil {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, err = t.base.RoundTrip(authed)
	if err == nil && resp.StatusCode != http.StatusUnauthorized {
		t.remember(req.URL.Host)
	}
	return resp, err
}

func (t *basicAuthTransport) withCredentials(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	r.SetBasicAuth(t.username, t.password)
	return r, nil
}

func (t *basicAuthTransport) known(host string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hosts[host]
}

func (t *basicAuthTransport) remember(host string) {
	t.mu.Lock()
	t.hosts[host] = true
	t.mu.Unlock()
}

func isBasicChallenge(h http.Header) bool {
	for _, v := range h.Values("WWW-Authenticate") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "basic") {
			return true
		}
	}
	return false
}
