package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/cwygoda/feedgrab/internal/domain"
)

// DefaultMaxRedirects is the redirect budget of one media fetch.
const DefaultMaxRedirects = 3

// RedirectingFetcher downloads media, following at most maxRedirects
// redirects per Fetch. The budget covers the whole redirect chain.
type RedirectingFetcher struct {
	hc           *http.Client
	maxRedirects int
	log          *zap.Logger
}

// NewRedirectingFetcher creates a fetcher on top of hc. hc is copied so that
// redirects reach the fetcher instead of being followed by net/http. A
// negative maxRedirects falls back to DefaultMaxRedirects.
func NewRedirectingFetcher(hc *http.Client, maxRedirects int, log *zap.Logger) *RedirectingFetcher {
	if hc == nil {
		hc = NewDownloadClient(0)
	}
	if maxRedirects < 0 {
		maxRedirects = DefaultMaxRedirects
	}
	c := *hc
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &RedirectingFetcher{hc: &c, maxRedirects: maxRedirects, log: log}
}

// Fetch returns the body of the resource at rawURL.
func (f *RedirectingFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &domain.TransportError{Op: http.MethodGet, URL: rawURL, Err: err}
	}

	budget := f.maxRedirects
	for {
		data, next, err := f.get(ctx, target)
		if err != nil || next == nil {
			return data, err
		}
		if budget == 0 {
			return nil, fmt.Errorf("%s after %d redirects: %w", rawURL, f.maxRedirects, domain.ErrRetryLimitExceeded)
		}
		budget--
		f.log.Debug("redirected, retrying",
			zap.String("url", rawURL),
			zap.String("location", next.String()),
			zap.Int("budget", budget),
		)
		target = next
	}
}

// get performs one request. It returns the body on 200 or the resolved
// redirect target on a redirect status.
func (f *RedirectingFetcher) get(ctx context.Context, target *url.URL) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), Err: err}
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), Err: err}
		}
		return data, nil, nil

	case isRedirect(resp.StatusCode):
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), StatusCode: resp.StatusCode}
		}
		next, err := target.Parse(loc)
		if err != nil {
			return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), Err: fmt.Errorf("bad location %q: %w", loc, err)}
		}
		return nil, next, nil

	default:
		return nil, nil, &domain.TransportError{Op: http.MethodGet, URL: target.String(), StatusCode: resp.StatusCode}
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
