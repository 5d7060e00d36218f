package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/models"
)

// RssCollector scrapes a feed-directory page for external feed links and
// collects every entry from the linked feeds.
type RssCollector struct {
	baseURL    string
	headers    map[string]string
	client     *http.Client
	feedClient *http.Client
	maxWorkers int
}

// NewRss creates a collector for the feed directory at baseURL
func NewRss(baseURL string, cfg config.RssConfig, general config.GeneralConfig) *RssCollector {
	return &RssCollector{
		baseURL: baseURL,
		headers: cfg.RequestHeaders,
		client:  &http.Client{Timeout: general.RequestTimeout},
		// Individual feeds get a shorter deadline so a few slow ones
		// cannot stall the run
		feedClient: &http.Client{Timeout: cfg.FeedTimeout},
		maxWorkers: general.MaxWorkers,
	}
}

func (c *RssCollector) Name() string {
	return SourceRSS
}

func (c *RssCollector) Collect(ctx context.Context) ([]models.Record, error) {
	urls, err := c.FeedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed directory %s: %w", c.baseURL, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("feed directory %s: no feed links found", c.baseURL)
	}

	log.WithFields(log.Fields{
		"feeds": len(urls),
	}).Info("Collecting RSS feeds")

	return fanOut(ctx, SourceRSS, c.maxWorkers, urls, c.collectFeed), nil
}

// FeedURLs fetches the directory page and extracts the external feed links.
// Directory pages mark outbound feed links with the "ext" anchor class.
func (c *RssCollector) FeedURLs(ctx context.Context) ([]string, error) {
	header := http.Header{}
	for name, value := range c.headers {
		header.Set(name, value)
	}

	body, err := doGet(ctx, c.client, c.baseURL, header)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse directory page: %w", err)
	}

	var urls []string
	doc.Find("a.ext").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if ok && strings.HasPrefix(href, "http") {
			urls = append(urls, href)
		}
	})

	return lo.Uniq(urls), nil
}

func (c *RssCollector) collectFeed(ctx context.Context, feedURL string) ([]models.Record, error) {
	body, err := doGet(ctx, c.feedClient, feedURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	records := make([]models.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		article := models.Article{
			FeedSource: feed.Title,
			Title:      item.Title,
			Link:       item.Link,
			GUID:       item.GUID,
			Published:  item.Published,
			Summary:    item.Description,
			Categories: item.Categories,
		}

		// Not every feed sets a GUID
		id := item.GUID
		if id == "" {
			id = item.Link
		}

		record, err := models.NewRecord(SourceRSS, id, article)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}
