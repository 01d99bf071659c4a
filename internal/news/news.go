// Package news scrapes a couple of market RSS feeds for headline titles.
// Strictly best effort: a dead feed is skipped, never an error.
package news

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var defaultFeeds = []string{
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://www.investing.com/rss/market_overview.rss",
}

var (
	titleRe = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
	tagRe   = regexp.MustCompile(`(?s)<.*?>`)
)

type Fetcher struct {
	feeds []string
	httpc *http.Client
}

// NewFetcher builds a fetcher over the given feed URLs, falling back to
// the default feeds when none are given.
func NewFetcher(feeds ...string) *Fetcher {
	if len(feeds) == 0 {
		feeds = defaultFeeds
	}
	return &Fetcher{feeds: feeds, httpc: &http.Client{Timeout: 15 * time.Second}}
}

// Headlines returns up to limit distinct titles across the feeds, in feed
// order. The first title of each feed is the channel name and is skipped.
func (f *Fetcher) Headlines(ctx context.Context, limit int) []string {
	var items []string
	seen := make(map[string]struct{})

	for _, feed := range f.feeds {
		body, err := f.get(ctx, feed)
		if err != nil {
			log.Debug().Err(err).Str("feed", feed).Msg("news feed unavailable")
			continue
		}
		matches := titleRe.FindAllStringSubmatch(body, 10)
		for i, m := range matches {
			if i == 0 {
				continue
			}
			title := strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
			if title == "" {
				continue
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			items = append(items, title)
			if len(items) >= limit {
				return items
			}
		}
	}
	return items
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return string(body), err
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unexpected status " + http.StatusText(e.code) }
