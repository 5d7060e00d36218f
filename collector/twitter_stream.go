package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/models"
)

// streamRuleRefresh is how often the stream rules are rebuilt from the
// current trends.
const streamRuleRefresh = 30 * time.Second

// TwitterStreamer follows the v2 filtered tweet stream instead of running
// batch searches. The stream rules are rebuilt from the current trending
// topics in the background, so the stream keeps tracking the trends as they
// change.
type TwitterStreamer struct {
	*TwitterCollector

	// The stream request stays open indefinitely, so it gets its own
	// client without a timeout
	streamClient    *http.Client
	refreshInterval time.Duration
}

func NewTwitterStream(cfg config.TwitterConfig, general config.GeneralConfig) (*TwitterStreamer, error) {
	c, err := NewTwitter(cfg, general)
	if err != nil {
		return nil, err
	}
	return &TwitterStreamer{
		TwitterCollector: c,
		streamClient:     &http.Client{},
		refreshInterval:  streamRuleRefresh,
	}, nil
}

func (s *TwitterStreamer) Name() string {
	return SourceTwitterStream
}

// Stream connects to the filtered stream and hands every streamed tweet to
// emit until the context is cancelled. Disconnects are retried with
// exponential backoff.
func (s *TwitterStreamer) Stream(ctx context.Context, emit func(models.Record)) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("twitter auth: %w", err)
	}

	if err := s.syncRules(ctx, token); err != nil {
		return fmt.Errorf("stream rules: %w", err)
	}
	go s.refreshRules(ctx, token)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute

	for {
		start := time.Now()
		err := s.consume(ctx, token, emit)
		if ctx.Err() != nil {
			return nil
		}

		fetchErrors.WithLabelValues(SourceTwitterStream).Inc()
		log.Errorf("tweet stream disconnected: %v", err)

		// A connection that held for a while earns a fresh backoff window
		if time.Since(start) > time.Minute {
			bo.Reset()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(bo.NextBackOff()):
		}
	}
}

type streamRule struct {
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
	Tag   string `json:"tag"`
}

// syncRules rebuilds the stream rules from the current trending topics.
// Rules tagged with a trend that is still current stay in place, stale rules
// are deleted and new trends are added.
func (s *TwitterStreamer) syncRules(ctx context.Context, token string) error {
	woeids, err := s.trendingLocations(ctx, token)
	if err != nil {
		return err
	}

	topics := s.trendingTopics(ctx, token, woeids)
	if len(topics) == 0 {
		return fmt.Errorf("no trending topics found for locations %v", woeids)
	}
	trends := lo.Uniq(lo.Map(topics, func(t trendTopic, _ int) string { return t.Name }))

	rulesURL := s.apiBase + "/2/tweets/search/stream/rules"

	var current struct {
		Data []streamRule `json:"data"`
	}
	if err := getJSON(ctx, s.client, rulesURL, bearerHeader(token), &current); err != nil {
		return fmt.Errorf("get stream rules: %w", err)
	}

	active := make(map[string]bool, len(current.Data))
	var stale []string
	for _, rule := range current.Data {
		if lo.Contains(trends, rule.Tag) && !active[rule.Tag] {
			active[rule.Tag] = true
			continue
		}
		stale = append(stale, rule.ID)
	}

	var added []streamRule
	for _, trend := range trends {
		if active[trend] {
			continue
		}
		added = append(added, streamRule{
			Value: trend + " -is:retweet -is:reply -is:nullcast " + s.languageFilter(),
			Tag:   trend,
		})
	}

	if len(stale) > 0 {
		payload := map[string]interface{}{"delete": map[string][]string{"ids": stale}}
		if _, err := postJSON(ctx, s.client, rulesURL, bearerHeader(token), payload); err != nil {
			return fmt.Errorf("delete stream rules: %w", err)
		}
	}
	if len(added) > 0 {
		payload := map[string]interface{}{"add": added}
		if _, err := postJSON(ctx, s.client, rulesURL, bearerHeader(token), payload); err != nil {
			return fmt.Errorf("add stream rules: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"trends":  len(trends),
		"added":   len(added),
		"deleted": len(stale),
	}).Debug("Stream rules synced")

	return nil
}

// refreshRules keeps the stream rules in step with the trends while the
// stream is open.
func (s *TwitterStreamer) refreshRules(ctx context.Context, token string) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.syncRules(ctx, token); err != nil {
				fetchErrors.WithLabelValues(SourceTwitterStream).Inc()
				log.Errorf("refresh stream rules: %v", err)
			}
		}
	}
}

type streamEntry struct {
	Data struct {
		ID            string         `json:"id"`
		Text          string         `json:"text"`
		CreatedAt     string         `json:"created_at"`
		Lang          string         `json:"lang"`
		AuthorID      string         `json:"author_id"`
		PublicMetrics map[string]int `json:"public_metrics"`
		Geo           *struct {
			PlaceID string `json:"place_id"`
		} `json:"geo"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Verified      bool   `json:"verified"`
			PublicMetrics struct {
				FollowersCount int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
		Places []struct {
			ID       string `json:"id"`
			FullName string `json:"full_name"`
		} `json:"places"`
	} `json:"includes"`
	MatchingRules []struct {
		Tag string `json:"tag"`
	} `json:"matching_rules"`
}

// consume reads the stream line by line until it breaks or the context is
// cancelled. Malformed entries are logged and skipped.
func (s *TwitterStreamer) consume(ctx context.Context, token string, emit func(models.Record)) error {
	params := url.Values{}
	params.Set("tweet.fields", "text,created_at,lang,geo,public_metrics")
	params.Set("user.fields", "username,verified,public_metrics")
	params.Set("expansions", "author_id,geo.place_id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.apiBase+"/2/tweets/search/stream?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect stream: status %d", resp.StatusCode)
	}

	log.Info("Connected to filtered tweet stream")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxResponseBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// Keep-alive newline
			continue
		}

		record, err := decodeStreamEntry(line)
		if err != nil {
			log.Warnf("skipping stream entry: %v", err)
			continue
		}
		emit(record)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed by remote")
}

func decodeStreamEntry(line []byte) (models.Record, error) {
	var entry streamEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return models.Record{}, err
	}
	if entry.Data.ID == "" {
		return models.Record{}, fmt.Errorf("entry without tweet data")
	}

	var author models.TweetAuthor
	for _, user := range entry.Includes.Users {
		if user.ID == entry.Data.AuthorID {
			author = models.TweetAuthor{
				Username:  user.Username,
				Verified:  user.Verified,
				Followers: user.PublicMetrics.FollowersCount,
			}
			break
		}
	}

	place := ""
	if entry.Data.Geo != nil {
		for _, p := range entry.Includes.Places {
			if p.ID == entry.Data.Geo.PlaceID {
				place = p.FullName
				break
			}
		}
	}

	trend := ""
	if len(entry.MatchingRules) > 0 {
		trend = entry.MatchingRules[0].Tag
	}

	return models.NewRecord(SourceTwitterStream, entry.Data.ID, models.StreamedTweet{
		ID:        entry.Data.ID,
		Text:      entry.Data.Text,
		CreatedAt: entry.Data.CreatedAt,
		Lang:      entry.Data.Lang,
		Metrics:   entry.Data.PublicMetrics,
		Author:    author,
		Place:     place,
		Trend:     trend,
	})
}
