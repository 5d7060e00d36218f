package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/models"
)

const twitterAPI = "https://api.twitter.com"

// TwitterCollector looks up the currently trending topics for the configured
// locations and collects recent tweets matching them. Trends come from the
// v1.1 endpoints, the tweets themselves from the v2 recent search.
type TwitterCollector struct {
	cfg        config.TwitterConfig
	client     *http.Client
	apiBase    string
	maxWorkers int
}

func NewTwitter(cfg config.TwitterConfig, general config.GeneralConfig) (*TwitterCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TwitterCollector{
		cfg:        cfg,
		client:     &http.Client{Timeout: general.RequestTimeout},
		apiBase:    twitterAPI,
		maxWorkers: general.MaxWorkers,
	}, nil
}

func (c *TwitterCollector) Name() string {
	return SourceTwitter
}

func (c *TwitterCollector) Collect(ctx context.Context) ([]models.Record, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("twitter auth: %w", err)
	}

	woeids, err := c.trendingLocations(ctx, token)
	if err != nil {
		return nil, err
	}

	topics := c.trendingTopics(ctx, token, woeids)
	if len(topics) == 0 {
		return nil, fmt.Errorf("no trending topics found for locations %v", woeids)
	}
	queries := lo.Map(topics, func(t trendTopic, _ int) string { return t.Query })

	log.WithFields(log.Fields{
		"locations": len(woeids),
		"queries":   len(queries),
	}).Info("Collecting tweets for trending topics")

	search := func(ctx context.Context, query string) ([]models.Record, error) {
		return c.search(ctx, token, query)
	}
	return fanOut(ctx, SourceTwitter, c.maxWorkers, queries, search), nil
}

// accessToken returns the configured bearer token or fetches an app-only
// token with the consumer key/secret pair.
func (c *TwitterCollector) accessToken(ctx context.Context) (string, error) {
	if c.cfg.BearerToken != "" {
		return c.cfg.BearerToken, nil
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+basicAuth(
		url.QueryEscape(c.cfg.ConsumerKey), url.QueryEscape(c.cfg.ConsumerSecret)))

	body, err := postForm(ctx, c.client, c.apiBase+"/oauth2/token",
		header, url.Values{"grant_type": {"client_credentials"}})
	if err != nil {
		return "", err
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}
	return token.AccessToken, nil
}

// trendingLocations returns the configured WOEIDs plus the trend locations
// closest to the configured coordinates, if any.
func (c *TwitterCollector) trendingLocations(ctx context.Context, token string) ([]int64, error) {
	woeids := append([]int64{}, c.cfg.Woeids...)

	if c.cfg.Latitude == 0 && c.cfg.Longitude == 0 {
		return woeids, nil
	}

	closestURL := fmt.Sprintf("%s/1.1/trends/closest.json?lat=%g&long=%g",
		c.apiBase, c.cfg.Latitude, c.cfg.Longitude)

	var locations []struct {
		Woeid int64 `json:"woeid"`
	}
	if err := getJSON(ctx, c.client, closestURL, bearerHeader(token), &locations); err != nil {
		return nil, fmt.Errorf("closest trends: %w", err)
	}

	for _, location := range locations {
		woeids = append(woeids, location.Woeid)
	}
	return lo.Uniq(woeids), nil
}

// trendTopic is one trending topic: the display name and the URL-encoded
// search query the trends endpoint suggests for it.
type trendTopic struct {
	Name  string
	Query string
}

// trendingTopics fetches the trends per location and deduplicates them
// across locations. Hashtag trends are excluded, plain topic trends make
// for a more serious selection of news searches.
func (c *TwitterCollector) trendingTopics(ctx context.Context, token string, woeids []int64) []trendTopic {
	var topics []trendTopic
	for _, woeid := range woeids {
		trendsURL := fmt.Sprintf("%s/1.1/trends/place.json?id=%d&exclude=hashtags", c.apiBase, woeid)

		var results []struct {
			Trends []struct {
				Name  string `json:"name"`
				Query string `json:"query"`
			} `json:"trends"`
		}
		if err := getJSON(ctx, c.client, trendsURL, bearerHeader(token), &results); err != nil {
			// One location failing should not kill the others
			fetchErrors.WithLabelValues(SourceTwitter).Inc()
			log.Errorf("trends for woeid %d: %v", woeid, err)
			continue
		}

		for _, result := range results {
			for _, trend := range result.Trends {
				topics = append(topics, trendTopic{Name: trend.Name, Query: trend.Query})
			}
		}
	}
	return lo.UniqBy(topics, func(t trendTopic) string { return t.Query })
}

type searchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
		Lang      string `json:"lang"`
		Geo       *struct {
			PlaceID string `json:"place_id"`
		} `json:"geo"`
	} `json:"data"`
	Includes struct {
		Places []struct {
			ID       string `json:"id"`
			FullName string `json:"full_name"`
		} `json:"places"`
	} `json:"includes"`
}

func (c *TwitterCollector) search(ctx context.Context, token string, trendQuery string) ([]models.Record, error) {
	// The trend query comes URL-encoded from the trends endpoint
	trend := trendQuery
	if unescaped, err := url.QueryUnescape(trendQuery); err == nil {
		trend = unescaped
	}

	refined := trend + " -is:retweet -is:reply is:verified " + c.languageFilter()

	params := url.Values{}
	params.Set("query", refined)
	params.Set("tweet.fields", "text,created_at,lang,geo")
	params.Set("expansions", "geo.place_id")
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))

	var resp searchResponse
	searchURL := c.apiBase + "/2/tweets/search/recent?" + params.Encode()
	if err := getJSON(ctx, c.client, searchURL, bearerHeader(token), &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", trend, err)
	}

	places := make(map[string]string, len(resp.Includes.Places))
	for _, place := range resp.Includes.Places {
		places[place.ID] = place.FullName
	}

	records := make([]models.Record, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		place := ""
		if tweet.Geo != nil {
			place = places[tweet.Geo.PlaceID]
		}

		record, err := models.NewRecord(SourceTwitter, tweet.ID, models.Tweet{
			ID:        tweet.ID,
			Text:      tweet.Text,
			CreatedAt: tweet.CreatedAt,
			Lang:      tweet.Lang,
			Place:     place,
			Trend:     trend,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (c *TwitterCollector) languageFilter() string {
	parts := lo.Map(c.cfg.Languages, func(lang string, _ int) string {
		return "lang:" + lang
	})
	return "(" + strings.Join(parts, " OR ") + ")"
}
