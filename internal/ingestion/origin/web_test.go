package origin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Front Reports</title>
  <link>http://example.org</link>
  <item><title>Older report</title><link>http://example.org/older</link><pubDate>Mon, 14 Mar 2011 10:00:00 GMT</pubDate></item>
  <item><title>Undated</title><link>http://example.org/undated</link></item>
  <item><title>Newest report</title><link>http://example.org/newest</link><pubDate>Sun, 27 Mar 2011 10:00:00 GMT</pubDate></item>
  <item><title>No link</title></item>
</channel>
</rss>`

const testArticle = `<!DOCTYPE html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Clashes reported near Saraqib">
<meta property="og:description" content="Fighting continued overnight.">
<meta property="og:image" content="http://example.org/thumb.jpg">
<meta property="og:site_name" content="Front Reports">
<meta property="article:published_time" content="2012-02-03T08:00:00Z">
<link rel="alternate" type="application/rss+xml" href="/feeds/front.xml">
</head><body><article><h1>Clashes reported near Saraqib</h1>
<p>Heavy fighting was reported on the eastern edge of Saraqib on Friday, witnesses said, as units moved along the highway.</p>
<p>Residents described shelling through the night and several families left toward the north.</p>
</article></body></html>`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "syrian conflict 2012", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(testFeed))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testArticle))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebFetchLatestItems(t *testing.T) {
	srv := testServer(t)
	w := NewWeb(logger.NewNop(), WebConfig{})

	items, err := w.FetchLatestItems(context.Background(), srv.URL+"/feed.xml", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Newest report", items[0].Title)
	assert.Equal(t, "Older report", items[1].Title)
	require.NotNil(t, items[0].UploadDate)
	assert.Equal(t, 27, items[0].UploadDate.Day())

	all, err := w.FetchLatestItems(context.Background(), srv.URL+"/feed.xml", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Undated", all[2].Title)

	_, err = w.FetchLatestItems(context.Background(), "not a url", 5)
	assert.True(t, errors.Is(err, apperr.ErrPermanent))
}

func TestWebSearch(t *testing.T) {
	srv := testServer(t)
	w := NewWeb(logger.NewNop(), WebConfig{SearchTemplate: srv.URL + "/search?q=%s"})
	items, err := w.Search(context.Background(), "syrian conflict 2012", 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	none, err := NewWeb(logger.NewNop(), WebConfig{}).Search(context.Background(), "x", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWebFetchMetadata(t *testing.T) {
	srv := testServer(t)
	w := NewWeb(logger.NewNop(), WebConfig{})
	md, err := w.FetchMetadata(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, "Clashes reported near Saraqib", md.Title)
	assert.Equal(t, "Fighting continued overnight.", md.Description)
	assert.Equal(t, "http://example.org/thumb.jpg", md.Thumbnail)
	assert.Equal(t, "Front Reports", md.UploaderName)
	assert.Equal(t, srv.URL+"/feeds/front.xml", md.UploaderID)
	require.NotNil(t, md.UploadDate)
	assert.Equal(t, 2012, md.UploadDate.Year())
	assert.Contains(t, md.Text, "Saraqib")
}

func TestWebHandleFromTemplatedFeed(t *testing.T) {
	w := NewWeb(logger.NewNop(), WebConfig{Platform: "youtube", FeedTemplate: "https://www.youtube.com/feeds/videos.xml?channel_id=%s"})
	u, err := w.feedURL("UC123")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml?channel_id=UC123", u)
	assert.Equal(t, "UC123", w.handleFromFeed(u))
	assert.Equal(t, "", w.handleFromFeed("https://other.example/feed"))
}

func TestRegistry(t *testing.T) {
	web := NewWeb(logger.NewNop(), WebConfig{Platform: "Web", SearchTemplate: "http://x/?q=%s"})
	yt := NewWeb(logger.NewNop(), WebConfig{Platform: "youtube", FeedTemplate: "http://y/%s"})
	reg := NewRegistry(web, yt)

	o, err := reg.Get(" WEB ")
	require.NoError(t, err)
	assert.Same(t, web, o)

	_, err = reg.Get("telegram")
	assert.True(t, errors.Is(err, apperr.ErrPermanent))

	assert.Equal(t, []string{"web", "youtube"}, reg.Platforms())
	// Both implement Searcher; a youtube origin without a template returns nothing.
	assert.Len(t, reg.Searchers(), 2)
}
