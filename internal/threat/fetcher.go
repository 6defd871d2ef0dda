package threat

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"hashfeed/internal/metrics"
)

const (
	// DefaultFeedURL is the ThreatFox export of recently seen SHA256 hashes.
	DefaultFeedURL   = "https://threatfox.abuse.ch/export/csv/sha256/recent/"
	DefaultUserAgent = "ThreatIntel-Crawler/1.0"
	DefaultTimeout   = 60 * time.Second
)

// FetcherOptions configures a ThreatFoxFetcher.
type FetcherOptions struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// ThreatFoxFetcher downloads the abuse.ch ThreatFox CSV export.
type ThreatFoxFetcher struct {
	url       string
	userAgent string
	client    *http.Client
}

func NewThreatFoxFetcher(opts FetcherOptions) *ThreatFoxFetcher {
	u := opts.URL
	if u == "" {
		u = DefaultFeedURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		to := opts.Timeout
		if to <= 0 {
			to = DefaultTimeout
		}
		client = &http.Client{Timeout: to}
	}
	return &ThreatFoxFetcher{url: u, userAgent: ua, client: client}
}

func (f *ThreatFoxFetcher) Name() string { return "threatfox_sha256" }

// Fetch performs a single GET and returns the body split into lines.
// Any transport error or a final status >= 400 fails the fetch; there is no retry.
func (f *ThreatFoxFetcher) Fetch(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	lines, err := f.fetch(ctx)
	if err != nil {
		metrics.FetchFailures.Inc()
		return nil, err
	}
	slog.Debug("feed fetched", "source", f.Name(), "lines", len(lines), "elapsed", time.Since(start))
	return lines, nil
}

func (f *ThreatFoxFetcher) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not build request for %s", f.url)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch %s", f.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(ErrUnexpectedStatus, "GET %s: %s", f.url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read body of %s", f.url)
	}
	return splitLines(string(body)), nil
}

// splitLines breaks body on "\n", dropping a "\r" before it. A trailing
// newline does not produce an empty last line. Line length is unbounded.
func splitLines(body string) []string {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
