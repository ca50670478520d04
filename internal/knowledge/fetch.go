package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// ErrDisallowed is returned for URLs excluded by the host's robots.txt
var ErrDisallowed = errors.New("disallowed by robots.txt")

const maxPageBytes = 5 << 20

// FetcherConfig controls polite page retrieval
type FetcherConfig struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Fetcher downloads fact-checking articles and turns them into documents
type Fetcher struct {
	client *http.Client
	robots *RobotsChecker
	cfg    FetcherConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "factstream/0.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &Fetcher{
		client:   client,
		robots:   NewRobotsChecker(client, cfg.UserAgent),
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiter(host string, crawlDelay time.Duration) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[host]; ok {
		return l
	}
	limit := rate.Limit(f.cfg.RequestsPerSecond)
	if crawlDelay > 0 {
		limit = rate.Every(crawlDelay)
	}
	l := rate.NewLimiter(limit, 1)
	f.limiters[host] = l
	return l
}

// Fetch retrieves one page and extracts its fact-check content
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Document{}, fmt.Errorf("invalid url %q", rawURL)
	}

	allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return Document{}, err
	}
	if !allowed {
		return Document{}, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	if err := f.limiter(u.Host, delay).Wait(ctx); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	content := ExtractFactCheck(doc, rawURL)
	if content == "" {
		return Document{}, fmt.Errorf("no content extracted from %s", rawURL)
	}

	return Document{
		ID:      rawURL,
		Content: content,
		Metadata: map[string]any{
			"source":         rawURL,
			"url":            rawURL,
			"source_type":    "fact_checking_organization",
			"date_retrieved": resp.Header.Get("Date"),
		},
	}, nil
}

// LoadURLs fetches every URL into s, skipping the ones that fail
func (f *Fetcher) LoadURLs(ctx context.Context, s Store, urls []string) (int, error) {
	loaded := 0
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		log.Printf("knowledge: loading fact-check content from %s", u)
		doc, err := f.Fetch(ctx, u)
		if err != nil {
			log.Printf("knowledge: error loading from %s: %v", u, err)
			continue
		}
		if _, err := s.Add(ctx, doc); err != nil {
			log.Printf("knowledge: error storing %s: %v", u, err)
			continue
		}
		loaded++
	}
	log.Printf("knowledge: loaded %d of %d urls", loaded, len(urls))
	return loaded, nil
}
