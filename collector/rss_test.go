package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/config"
	"newswire/models"
)

const directoryPage = `<html><body>
	<a class="ext" href="http://feeds.example.com/world.xml">World News</a>
	<a class="ext" href="https://example.org/rss">Example</a>
	<a class="ext" href="http://feeds.example.com/politics.xml">Politics</a>
	<a class="ext" href="/relative/feed.xml">Relative link</a>
	<a class="ext" href="https://example.org/rss">Duplicate</a>
	<a href="http://not-tagged.example.com/feed">Untagged</a>
	<a class="ext" href="http://feeds.example.com/sports.xml">Sports</a>
	<a class="ext" href="https://another.example.net/atom.xml">Atom</a>
</body></html>`

const rawFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Example Feed</title>
		<link>https://example.org</link>
		<item>
			<title>First article</title>
			<link>https://example.org/articles/1</link>
			<guid>https://example.org/articles/1</guid>
			<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
			<description>Something happened</description>
			<category>World</category>
		</item>
		<item>
			<title>Second article</title>
			<link>https://example.org/articles/2</link>
			<description>Something else happened</description>
		</item>
	</channel>
</rss>`

func testGeneral() config.GeneralConfig {
	return config.GeneralConfig{MaxWorkers: 4, RequestTimeout: time.Second}
}

func TestFeedURLs(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("User-Agent")
		fmt.Fprint(w, directoryPage)
	}))
	defer server.Close()

	c := NewRss(server.URL, config.RssConfig{
		RequestHeaders: map[string]string{"User-Agent": "Mozilla/5.0"},
		FeedTimeout:    time.Second,
	}, testGeneral())

	urls, err := c.FeedURLs(context.Background())
	require.NoError(t, err)

	// Relative, untagged and duplicate links are dropped
	assert.Len(t, urls, 5)
	assert.Contains(t, urls, "http://feeds.example.com/world.xml")
	assert.Contains(t, urls, "https://another.example.net/atom.xml")
	assert.NotContains(t, urls, "/relative/feed.xml")
	assert.Equal(t, "Mozilla/5.0", gotHeader)
}

func TestCollectRss(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a class="ext" href="%s/feed.xml">Good feed</a>
			<a class="ext" href="%s/missing.xml">Dead feed</a>
		</body></html>`, server.URL, server.URL)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rawFeed)
	})
	mux.HandleFunc("/missing.xml", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c := NewRss(server.URL+"/directory", config.RssConfig{FeedTimeout: time.Second}, testGeneral())

	records, err := c.Collect(context.Background())
	require.NoError(t, err)

	// The dead feed is skipped, the good one yields one record per entry
	require.Len(t, records, 2)

	byID := make(map[string]models.Record, len(records))
	for _, record := range records {
		assert.Equal(t, SourceRSS, record.Source)
		byID[record.ID] = record
	}

	first, ok := byID["https://example.org/articles/1"]
	require.True(t, ok, "guid should be used as record id")

	var article models.Article
	require.NoError(t, json.Unmarshal(first.Payload, &article))
	assert.Equal(t, "Example Feed", article.FeedSource)
	assert.Equal(t, "First article", article.Title)
	assert.Equal(t, []string{"World"}, article.Categories)

	// The second entry has no guid, the link takes over as id
	_, ok = byID["https://example.org/articles/2"]
	assert.True(t, ok)
}

func TestCollectRssEmptyDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer server.Close()

	c := NewRss(server.URL, config.RssConfig{FeedTimeout: time.Second}, testGeneral())

	_, err := c.Collect(context.Background())
	assert.ErrorContains(t, err, "no feed links found")
}
