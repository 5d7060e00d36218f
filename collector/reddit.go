package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/models"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPI      = "https://oauth.reddit.com"
)

// defaultSubreddits is the news-centric selection collected when the config
// does not name any subreddits.
var defaultSubreddits = []string{
	"worldnews", "news", "europe", "politics",
	"upliftingnews", "truereddit", "inthenews", "nottheonion",
}

// RedditCollector collects the top submissions of the day from a set of
// subreddits, including the top comments per submission.
type RedditCollector struct {
	cfg        config.RedditConfig
	client     *http.Client
	tokenURL   string
	apiBase    string
	maxWorkers int
}

func NewReddit(cfg config.RedditConfig, general config.GeneralConfig) (*RedditCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Subreddits) == 0 {
		cfg.Subreddits = defaultSubreddits
	}
	return &RedditCollector{
		cfg:        cfg,
		client:     &http.Client{Timeout: general.RequestTimeout},
		tokenURL:   redditTokenURL,
		apiBase:    redditAPI,
		maxWorkers: general.MaxWorkers,
	}, nil
}

func (c *RedditCollector) Name() string {
	return SourceReddit
}

func (c *RedditCollector) Collect(ctx context.Context) ([]models.Record, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	submissions, err := c.topSubmissions(ctx, token)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"subreddits":  len(c.cfg.Subreddits),
		"submissions": len(submissions),
	}).Info("Collecting Reddit submissions")

	process := func(ctx context.Context, submission redditSubmission) ([]models.Record, error) {
		return c.processSubmission(ctx, token, submission)
	}
	return fanOut(ctx, SourceReddit, c.maxWorkers, submissions, process), nil
}

// accessToken fetches an application-only token via the client credentials
// grant. Reddit requires a descriptive User-Agent on every request.
func (c *RedditCollector) accessToken(ctx context.Context) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Basic "+basicAuth(c.cfg.ClientID, c.cfg.ClientSecret))
	header.Set("User-Agent", c.cfg.UserAgent)

	body, err := postForm(ctx, c.client, c.tokenURL,
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

type redditSubmission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Domain      string  `json:"domain"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string           `json:"kind"`
			Data redditSubmission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// topSubmissions fetches the top submissions of the day over all configured
// subreddits in a single multireddit listing.
func (c *RedditCollector) topSubmissions(ctx context.Context, token string) ([]redditSubmission, error) {
	multi := strings.Join(c.cfg.Subreddits, "+")
	listingURL := fmt.Sprintf("%s/r/%s/top?t=day&limit=100&raw_json=1", c.apiBase, multi)

	var listing redditListing
	if err := getJSON(ctx, c.client, listingURL, c.authHeader(token), &listing); err != nil {
		return nil, fmt.Errorf("top listing for r/%s: %w", multi, err)
	}

	submissions := make([]redditSubmission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		submissions = append(submissions, child.Data)
	}
	return submissions, nil
}

type redditCommentListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Body       string  `json:"body"`
				CreatedUTC float64 `json:"created_utc"`
				Score      int     `json:"score"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *RedditCollector) processSubmission(ctx context.Context, token string, submission redditSubmission) ([]models.Record, error) {
	comments, err := c.topComments(ctx, token, submission.ID)
	if err != nil {
		// The submission is still worth publishing without its comments
		log.Warnf("comments for submission %s: %v", submission.ID, err)
		comments = nil
	}

	record, err := models.NewRecord(SourceReddit, submission.ID, models.Submission{
		ID:          submission.ID,
		Title:       submission.Title,
		Selftext:    submission.Selftext,
		Created:     formatTimestamp(submission.CreatedUTC),
		Score:       submission.Score,
		UpvoteRatio: submission.UpvoteRatio,
		Domain:      submission.Domain,
		Comments:    comments,
	})
	if err != nil {
		return nil, err
	}
	return []models.Record{record}, nil
}

// topComments fetches the highest-scored top-level comments on a submission
func (c *RedditCollector) topComments(ctx context.Context, token string, id string) ([]models.Comment, error) {
	commentsURL := fmt.Sprintf("%s/comments/%s?sort=top&limit=%d&depth=1&raw_json=1",
		c.apiBase, id, c.cfg.CommentLimit)

	// The comments endpoint returns a two-element array: the submission
	// listing followed by the comment listing
	var pages []json.RawMessage
	if err := getJSON(ctx, c.client, commentsURL, c.authHeader(token), &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("unexpected comments response shape")
	}

	var listing redditCommentListing
	if err := json.Unmarshal(pages[1], &listing); err != nil {
		return nil, fmt.Errorf("decode comment listing: %w", err)
	}

	comments := make([]models.Comment, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		// The listing may end with a "more" stub, only t1 entries are comments
		if child.Kind != "t1" {
			continue
		}
		comments = append(comments, models.Comment{
			Text:    child.Data.Body,
			Created: formatTimestamp(child.Data.CreatedUTC),
			Score:   child.Data.Score,
		})
	}
	return comments, nil
}

func (c *RedditCollector) authHeader(token string) http.Header {
	header := bearerHeader(token)
	header.Set("User-Agent", c.cfg.UserAgent)
	return header
}

func formatTimestamp(ts float64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
