package crawler

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// Defaults for NewHTTPClient.
const (
	DefaultUserAgent   = "Mozilla/5.0 (compatible; sitecrawler/1.0)"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// FetchClient performs a single GET and returns the response as received.
// Implementations must not follow redirects.
type FetchClient interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	// URL is the address that was requested.
	URL string

	StatusCode int
	Header     http.Header

	// Body is the response body, cut at the client's size cap.
	Body []byte
}

// Location returns the Location header, or "".
func (r *Response) Location() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// IsRedirect reports whether the response is a 301, 302, 303, 307 or 308
// carrying a Location. A 3xx without Location is a final response.
func (r *Response) IsRedirect() bool {
	if r == nil {
		return false
	}
	switch r.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return r.Location() != ""
	default:
		return false
	}
}

// HTTPClient is the net/http FetchClient.
type HTTPClient struct {
	client      *http.Client
	transport   http.RoundTripper
	proxyAddr   string
	timeout     time.Duration
	userAgent   string
	cookie      string
	headers     map[string]string
	maxBodySize int64
	limiter     *rate.Limiter
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithProxy routes every request through the SOCKS5 proxy at addr ("host:port").
func WithProxy(addr string) ClientOption {
	return func(c *HTTPClient) {
		c.proxyAddr = addr
	}
}

// WithTimeout sets the overall timeout of a single GET.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// WithCookie sends a raw cookie string (e.g. "session=abc") with every request.
func WithCookie(cookie string) ClientOption {
	return func(c *HTTPClient) {
		c.cookie = cookie
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *HTTPClient) {
		c.headers = headers
	}
}

// WithMaxBodySize caps how many bytes of a body are read.
func WithMaxBodySize(n int64) ClientOption {
	return func(c *HTTPClient) {
		c.maxBodySize = n
	}
}

// WithDelay waits at least d between two requests. Zero disables the delay.
func WithDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTransport replaces the underlying round tripper. WithProxy is ignored
// when a transport is set.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *HTTPClient) {
		c.transport = rt
	}
}

// NewHTTPClient creates an HTTPClient. It only fails for an invalid proxy address.
func NewHTTPClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.transport
	if transport == nil {
		t := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}
		if c.proxyAddr != "" {
			dial, err := socks5DialContext(c.proxyAddr)
			if err != nil {
				return nil, err
			}
			t.Proxy = nil
			t.DialContext = dial
		}
		transport = t
	}

	c.client = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		// Redirects are followed by Resolver, one hop at a time.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

func socks5DialContext(addr string) (func(ctx context.Context, network, address string) (net.Conn, error), error) {
	if !isValidProxyAddress(addr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, addr)
	}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, address string) (net.Conn, error) {
		return dialer.Dial(network, address)
	}, nil
}

// isValidProxyAddress reports whether addr is host:port with a port in 1-65535.
func isValidProxyAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Get implements FetchClient.
func (c *HTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
