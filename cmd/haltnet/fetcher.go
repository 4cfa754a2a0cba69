package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/haltnet/gtfs"
	"github.com/theoremus-urban-solutions/haltnet/realtime"
)

// fetcher reads feeds from URLs or local files.
type fetcher struct {
	httpClient *http.Client
}

func newFetcher(timeoutMS int) *fetcher {
	c := &http.Client{}
	if timeoutMS > 0 {
		c.Timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	return &fetcher{httpClient: c}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// fetch returns the raw bytes of a feed. An empty urlOrPath returns nil.
func (f *fetcher) fetch(ctx context.Context, urlOrPath string) ([]byte, error) {
	if urlOrPath == "" {
		return nil, nil
	}
	if !isURL(urlOrPath) {
		return os.ReadFile(urlOrPath)
	}
	return realtime.Fetch(ctx, f.httpClient, urlOrPath)
}

// static loads the schedule feed, preferring a local path over a URL.
func (f *fetcher) static(ctx context.Context, path, url string) (*gtfs.Feed, error) {
	if path != "" {
		return gtfs.LoadFile(path)
	}
	return gtfs.Fetch(ctx, f.httpClient, url)
}
