package models

import (
	"encoding/json"
	"time"
)

// Record is the envelope published to the broker for every collected item.
// Payload holds the source-specific document so downstream consumers can
// route on Source without parsing it.
type Record struct {
	Source      string          `json:"source"`
	ID          string          `json:"id"`
	CollectedAt time.Time       `json:"collected_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewRecord wraps a source-specific payload in a Record envelope
func NewRecord(source string, id string, payload interface{}) (Record, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Source:      source,
		ID:          id,
		CollectedAt: time.Now().UTC(),
		Payload:     raw,
	}, nil
}

// Article is a single RSS feed entry tagged with the feed it came from
type Article struct {
	FeedSource string   `json:"feed_source"`
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	GUID       string   `json:"id"`
	Published  string   `json:"published"`
	Summary    string   `json:"summary"`
	Categories []string `json:"categories,omitempty"`
}

// Tweet is a single tweet matched by a trending-topic search
type Tweet struct {
	ID        string `json:"tweet_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Lang      string `json:"lang"`
	Place     string `json:"place,omitempty"`
	Trend     string `json:"trend,omitempty"`
}

// TweetAuthor is the author summary attached to streamed tweets
type TweetAuthor struct {
	Username  string `json:"username"`
	Verified  bool   `json:"verified"`
	Followers int    `json:"num_followers"`
}

// StreamedTweet is a tweet delivered by the filtered stream, tagged with the
// trend whose stream rule matched it
type StreamedTweet struct {
	ID        string         `json:"tweet_id"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"created_at"`
	Lang      string         `json:"lang"`
	Metrics   map[string]int `json:"metrics,omitempty"`
	Author    TweetAuthor    `json:"author"`
	Place     string         `json:"place,omitempty"`
	Trend     string         `json:"trend,omitempty"`
}

// Comment is a top-level comment on a Reddit submission
type Comment struct {
	Text    string `json:"text"`
	Created string `json:"created"`
	Score   int    `json:"score"`
}

// Submission is a Reddit submission with its top comments embedded
type Submission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Selftext    string    `json:"selftext"`
	Created     string    `json:"created"`
	Score       int       `json:"score"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	Domain      string    `json:"domain"`
	Comments    []Comment `json:"comments"`
}
