package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/sitecrawler/internal/model"
)

var (
	// ErrHostRequired is returned when external redirects are disallowed but
	// no host was given to compare redirect targets against.
	ErrHostRequired = errors.New("host is required when external redirects are not followed")

	// ErrExternalRedirect matches an *ExternalRedirectError.
	ErrExternalRedirect = errors.New("redirect to an external host is not allowed")

	// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTransport wraps network and protocol failures of a GET.
	ErrTransport = errors.New("request failed")

	// ErrRootNotCrawled is returned by CrawlSite when the site root yields no page.
	ErrRootNotCrawled = errors.New("site root could not be crawled")

	// ErrInvalidProxyAddress is returned for a proxy address that is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// ExternalRedirectError reports a redirect to a host other than the allowed one.
type ExternalRedirectError struct {
	From model.URL
	To   model.URL
	Host string
}

// Error implements error.
func (e *ExternalRedirectError) Error() string {
	return fmt.Sprintf("redirect from %s to %s leaves host %s", e.From, e.To, e.Host)
}

// Is reports whether target is ErrExternalRedirect.
func (e *ExternalRedirectError) Is(target error) bool {
	return target == ErrExternalRedirect
}
