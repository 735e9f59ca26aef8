package bgcut

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/die-net/lrucache"
	"github.com/gregjones/httpcache"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/pkg/errors"
)

const (
	defaultCacheBytes = 256 * 1024 * 1024
	defaultCacheTTL   = time.Hour
	defaultMaxBytes   = 32 * 1024 * 1024
	defaultTimeout    = 30 * time.Second
)

// Fetcher loads remote images through an in-memory HTTP cache, so repeated
// requests for the same asset honor the origin's cache headers instead of
// downloading again.
type Fetcher struct {
	client   *http.Client
	cache    *lrucache.LruCache
	maxBytes int64
}

// FetcherOption configures a Fetcher built by NewFetcher.
type FetcherOption func(*Fetcher)

// WithTransport sets the round tripper underneath the cache.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *Fetcher) {
		f.client.Transport.(*httpcache.Transport).Transport = rt
	}
}

// WithMaxBytes caps the size of a fetched body.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithCache sets the cache capacity in bytes and the maximum entry age.
func WithCache(maxBytes int64, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = lrucache.New(maxBytes, int64(ttl.Seconds()))
		f.client.Transport.(*httpcache.Transport).Cache = f.cache
	}
}

// WithTimeout bounds each request, body included.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// NewFetcher returns a Fetcher with a 256MB, one hour response cache, a 32MB
// body limit and a 30s timeout, adjusted by opts.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	c := lrucache.New(defaultCacheBytes, int64(defaultCacheTTL.Seconds()))
	f := &Fetcher{
		client: &http.Client{
			Transport: httpcache.NewTransport(c),
			Timeout:   defaultTimeout,
		},
		cache:    c,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheSize reports the bytes currently held by the response cache.
func (f *Fetcher) CacheSize() int64 { return f.cache.Size() }

// Fetch downloads and decodes the image at url. Transport failures, non-200
// answers and oversized bodies yield *FetchError; undecodable bodies yield
// *DecodeError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*PixelBuffer, error) {
	data, err := f.fetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(data))
}

func (f *Fetcher) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	logger.Entry(ctx).WithField("url", url).
		WithField("status", resp.StatusCode).
		WithField("cached", resp.Header.Get(httpcache.XFromCache) != "").
		Debug("fetched image")

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: url, Err: errors.Errorf("body exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}
