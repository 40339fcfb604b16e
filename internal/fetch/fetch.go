package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Hour

	maxAttempts = 3

	userAgent = "comicshelf/1.0"
)

// Fetcher is the single entry point for outbound HTTP calls. It owns a
// bounded, TTL-expiring response cache and applies retry with exponential
// backoff. It deliberately never returns an error: exhausted failures are
// logged and surface as a nil body, which callers treat as "no data".
type Fetcher struct {
	client *http.Client
	cache  *expirable.LRU[string, []byte]
	log    zerolog.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

func New(log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		cache:  expirable.NewLRU[string, []byte](defaultCacheSize, nil, defaultCacheTTL),
		log:    log,
		sleep:  wait,
	}
}

// Get performs a GET with caching and retries. The cache key is the URL
// plus the sorted query parameters; headers are not part of the key. A
// nil return means the request failed on every attempt or was rejected
// with a non-retryable status.
func (f *Fetcher) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) []byte {
	key := cacheKey(rawURL, params)

	if body, ok := f.cache.Get(key); ok {
		f.log.Debug().Str("url", rawURL).Msg("cache hit")
		return body
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, retryable := f.attempt(ctx, rawURL, params, headers, attempt)
		if body != nil {
			f.cache.Add(key, body)
			return body
		}
		if !retryable || attempt == maxAttempts-1 {
			break
		}
		f.sleep(ctx, time.Duration(1<<attempt)*time.Second)
	}

	f.log.Error().Str("url", rawURL).Msg("request failed after retries")
	return nil
}

// attempt runs a single request. It returns the body on success, or nil
// and whether the failure is worth retrying.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, params url.Values, headers http.Header, attempt int) (body []byte, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.log.Warn().Err(err).Str("url", rawURL).Msg("build request")
		return nil, false
	}
	req.URL.RawQuery = params.Encode()
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("request failed")
		return nil, true
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		f.log.Warn().Int("status", resp.StatusCode).Str("url", rawURL).Int("attempt", attempt+1).Msg("http error")
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			// no point retrying auth or not-found errors
			return nil, false
		}
		return nil, true
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("read body")
		return nil, true
	}
	return b, false
}

func cacheKey(rawURL string, params url.Values) string {
	// url.Values.Encode sorts by key, so equal parameter sets always
	// produce the same key regardless of insertion order.
	return rawURL + "?" + params.Encode()
}

func wait(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
