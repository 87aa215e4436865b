package crawler

import (
	"context"
	"fmt"

	"github.com/nao1215/sitecrawler/internal/model"
)

// RedirectPolicy controls how Resolver follows redirects.
type RedirectPolicy struct {
	// Limit is the number of redirect hops allowed. A chain of exactly Limit
	// hops succeeds; 0 rejects the first redirect.
	Limit int

	// FollowExternal allows redirects to any host. When false, every redirect
	// target must be on Host.
	FollowExternal bool

	// Host is the absolute base URL ("https://example.com") or bare authority
	// redirect targets are compared against. Ports are significant.
	Host string
}

// Hop is one response seen while resolving a URL.
type Hop struct {
	// URL is the address that was requested.
	URL model.URL

	Response *Response

	// Location is the resolved redirect target, empty for a final response.
	Location model.URL
}

// Resolver follows redirects one hop at a time.
type Resolver struct {
	client FetchClient
}

// NewResolver creates a Resolver issuing requests through client.
func NewResolver(client FetchClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve GETs u and follows redirects under policy. It returns the final
// response and the URL it was fetched from; u itself is never changed.
//
// observe, when not nil, sees every response before the policy is applied.
// On failure the returned URL is the last address requested and the response
// is the one that triggered the failure, if any.
func (r *Resolver) Resolve(ctx context.Context, u model.URL, policy RedirectPolicy, observe func(Hop)) (*Response, model.URL, error) {
	if !policy.FollowExternal && policy.Host == "" {
		return nil, u, ErrHostRequired
	}

	current := u
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, current, err
		}

		resp, err := r.client.Get(ctx, current.String())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, current, ctxErr
			}
			return nil, current, fmt.Errorf("%w: %s: %w", ErrTransport, current, err)
		}

		if !resp.IsRedirect() {
			if observe != nil {
				observe(Hop{URL: current, Response: resp})
			}
			return resp, current, nil
		}

		next := model.NewURL(resp.Location())
		if next.IsRelative() {
			// Relative locations are joined to scheme://host, not the hop's path.
			next = current.Base().Resolve(next)
		}
		if observe != nil {
			observe(Hop{URL: current, Response: resp, Location: next})
		}

		if !policy.FollowExternal && !next.IsRelativeTo(policy.Host) {
			return resp, current, &ExternalRedirectError{From: current, To: next, Host: policy.Host}
		}
		if count >= policy.Limit {
			return resp, current, fmt.Errorf("%w: stopped at %s after %d redirects", ErrTooManyRedirects, current, count)
		}

		count++
		current = next
	}
}
