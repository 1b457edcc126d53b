package origin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/httpx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const maxBodyBytes = 8 << 20

type WebConfig struct {
	Platform string
	// FeedTemplate turns a handle into a feed URL. "%s" means the handle already is one.
	FeedTemplate string
	// SearchTemplate is a feed URL taking an escaped query; empty disables Search.
	SearchTemplate string
	UserAgent      string
	Timeout        time.Duration
	Retry          httpx.RetryPolicy
}

// Web lists items from RSS/Atom feeds and reads metadata from article pages.
type Web struct {
	cfg    WebConfig
	client *http.Client
	log    *logger.Logger
}

func NewWeb(baseLog *logger.Logger, cfg WebConfig) *Web {
	if cfg.Platform == "" {
		cfg.Platform = "web"
	}
	if cfg.FeedTemplate == "" {
		cfg.FeedTemplate = "%s"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "frontline-backend/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry == (httpx.RetryPolicy{}) {
		cfg.Retry = httpx.DefaultRetryPolicy
	}
	return &Web{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    baseLog.With("client", "WebOrigin", "platform", cfg.Platform),
	}
}

func (w *Web) Platform() string { return w.cfg.Platform }

func (w *Web) feedURL(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", fmt.Errorf("empty handle: %w", apperr.ErrPermanent)
	}
	if w.cfg.FeedTemplate == "%s" {
		u, err := url.Parse(handle)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("handle %q is not a feed url: %w", handle, apperr.ErrPermanent)
		}
		return handle, nil
	}
	return fmt.Sprintf(w.cfg.FeedTemplate, url.QueryEscape(handle)), nil
}

// handleFromFeed inverts FeedTemplate for a discovered feed link.
func (w *Web) handleFromFeed(feed string) string {
	if feed == "" || w.cfg.FeedTemplate == "%s" {
		return feed
	}
	prefix, suffix, _ := strings.Cut(w.cfg.FeedTemplate, "%s")
	if !strings.HasPrefix(feed, prefix) || !strings.HasSuffix(feed, suffix) {
		return ""
	}
	h, err := url.QueryUnescape(strings.TrimSuffix(strings.TrimPrefix(feed, prefix), suffix))
	if err != nil {
		return ""
	}
	return h
}

func (w *Web) get(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	var body []byte
	var final *url.URL
	err := httpx.Retry(ctx, w.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", w.cfg.UserAgent)
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := httpx.CheckResponse(resp); err != nil {
			return err
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		final = resp.Request.URL
		return err
	}, func(err error, wait time.Duration) {
		w.log.Debug("origin retry", "url", rawURL, "error", err, "wait", wait.String())
	})
	if err != nil {
		return nil, nil, err
	}
	return body, final, nil
}

func (w *Web) FetchLatestItems(ctx context.Context, handle string, limit int) ([]Item, error) {
	feedURL, err := w.feedURL(handle)
	if err != nil {
		return nil, err
	}
	return w.readFeed(ctx, feedURL, limit)
}

func (w *Web) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if w.cfg.SearchTemplate == "" {
		return nil, nil
	}
	return w.readFeed(ctx, fmt.Sprintf(w.cfg.SearchTemplate, url.QueryEscape(query)), limit)
}

func (w *Web) readFeed(ctx context.Context, feedURL string, limit int) ([]Item, error) {
	body, _, err := w.get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %v: %w", feedURL, err, apperr.ErrPermanent)
	}
	out := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil || strings.TrimSpace(it.Link) == "" {
			continue
		}
		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: strings.TrimSpace(it.Description),
		}
		switch {
		case it.PublishedParsed != nil:
			d := it.PublishedParsed.UTC()
			item.UploadDate = &d
		case it.UpdatedParsed != nil:
			d := it.UpdatedParsed.UTC()
			item.UploadDate = &d
		}
		out = append(out, item)
	}
	// Newest first; undated items keep feed order at the end.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].UploadDate, out[j].UploadDate
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w *Web) FetchMetadata(ctx context.Context, itemURL string) (*Metadata, error) {
	body, final, err := w.get(ctx, itemURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", itemURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", itemURL, err)
	}
	meta := func(selectors ...string) string {
		for _, sel := range selectors {
			if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
				return v
			}
		}
		return ""
	}

	md := &Metadata{
		Title:        meta(`meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description:  meta(`meta[property="og:description"]`, `meta[name="description"]`),
		Thumbnail:    meta(`meta[property="og:image"]`, `meta[name="twitter:image"]`),
		VideoURL:     meta(`meta[property="og:video:url"]`, `meta[property="og:video"]`),
		UploaderName: meta(`meta[property="og:site_name"]`, `meta[name="author"]`),
	}
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if raw := meta(`meta[property="article:published_time"]`, `meta[itemprop="datePublished"]`, `meta[itemprop="uploadDate"]`); raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			t = t.UTC()
			md.UploadDate = &t
		}
	}
	if href, ok := doc.Find(`link[rel="alternate"][type="application/rss+xml"], link[rel="alternate"][type="application/atom+xml"]`).First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil && final != nil {
			md.UploaderID = w.handleFromFeed(final.ResolveReference(ref).String())
		}
	}

	if art, err := readability.FromReader(bytes.NewReader(body), final); err == nil {
		md.Text = strings.TrimSpace(art.TextContent)
		if md.Title == "" {
			md.Title = strings.TrimSpace(art.Title)
		}
		if md.Description == "" {
			md.Description = strings.TrimSpace(art.Excerpt)
		}
		if md.Thumbnail == "" {
			md.Thumbnail = strings.TrimSpace(art.Image)
		}
		if md.UploaderName == "" {
			md.UploaderName = strings.TrimSpace(art.SiteName)
		}
	} else {
		w.log.Debug("readability failed", "url", itemURL, "error", err)
	}
	if md.Text == "" {
		md.Text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	return md, nil
}
