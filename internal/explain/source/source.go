// Package source fetches model-explanation files from HTTP(S) URLs or S3
// objects.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MaxObjectBytes bounds a single explanation file.
const MaxObjectBytes = 64 << 20

// Fetcher reads the raw bytes stored at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Router dispatches a location to the fetcher registered for its scheme.
type Router struct {
	http Fetcher
	s3   Fetcher
}

// NewRouter builds a Router. A nil fetcher disables its scheme.
func NewRouter(httpFetcher, s3Fetcher Fetcher) *Router {
	return &Router{http: httpFetcher, s3: s3Fetcher}
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", location, err)
	}
	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = r.http
	case "s3":
		f = r.s3
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher for scheme %q", u.Scheme)
	}
	return f.Fetch(ctx, location)
}
