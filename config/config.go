package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// GeneralConfig holds settings shared by all collectors
type GeneralConfig struct {
	// MaxWorkers is the number of concurrent fetches per collection run
	MaxWorkers     int           `koanf:"max_workers"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// KafkaConfig holds the broker addresses and the topic per data source
type KafkaConfig struct {
	BootstrapServers []string          `koanf:"bootstrap_servers"`
	Topics           map[string]string `koanf:"topics"`
}

// TopicFor returns the configured topic for a source, defaulting to the
// source name itself.
func (k KafkaConfig) TopicFor(source string) string {
	if topic, ok := k.Topics[source]; ok && topic != "" {
		return topic
	}
	return source
}

// MongoConfig holds the connection settings for the seen-items store.
// An empty host disables deduplication.
type MongoConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

// Enabled reports whether a document store is configured at all
func (m MongoConfig) Enabled() bool {
	return m.Host != ""
}

// URI builds a mongodb:// connection string from the individual settings
func (m MongoConfig) URI() string {
	hostport := fmt.Sprintf("%s:%d", m.Host, m.Port)
	if m.Username == "" {
		return "mongodb://" + hostport
	}
	return fmt.Sprintf("mongodb://%s:%s@%s",
		url.QueryEscape(m.Username), url.QueryEscape(m.Password), hostport)
}

// RssConfig holds the settings for the RSS collector
type RssConfig struct {
	// RequestHeaders are sent with the feed directory request. Some feed
	// directories only serve the full link list to browser-like clients.
	RequestHeaders map[string]string `koanf:"request_headers"`
	FeedTimeout    time.Duration     `koanf:"feed_timeout"`
}

// TwitterConfig holds credentials and query settings for the Twitter collector
type TwitterConfig struct {
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`
	BearerToken    string `koanf:"bearer_token"`

	// Woeids are "where on earth" ids to fetch trends for, e.g. 1 for worldwide
	Woeids []int64 `koanf:"woeids"`
	// Latitude and longitude add the trend locations closest to a point.
	// Both zero means no closest-trends lookup.
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`

	Languages  []string `koanf:"languages"`
	MaxResults int      `koanf:"max_results"`
}

// Validate checks that the collector can authenticate against the API
func (t TwitterConfig) Validate() error {
	if t.BearerToken == "" && (t.ConsumerKey == "" || t.ConsumerSecret == "") {
		return fmt.Errorf("twitter: either a bearer token or a consumer key/secret pair is required")
	}
	return nil
}

// RedditConfig holds credentials and query settings for the Reddit collector
type RedditConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	Subreddits   []string `koanf:"subreddits"`
	CommentLimit int      `koanf:"comment_limit"`
	UserAgent    string   `koanf:"user_agent"`
}

// Validate checks that the collector can authenticate against the API
func (r RedditConfig) Validate() error {
	if r.ClientID == "" || r.ClientSecret == "" {
		return fmt.Errorf("reddit: client id and secret are required")
	}
	return nil
}

// Config is the top-level configuration for the collector
type Config struct {
	General GeneralConfig `koanf:"general"`
	Kafka   KafkaConfig   `koanf:"kafka"`
	Mongo   MongoConfig   `koanf:"mongo"`
	Rss     RssConfig     `koanf:"rss"`
	Twitter TwitterConfig `koanf:"twitter"`
	Reddit  RedditConfig  `koanf:"reddit"`
}

// envBindings maps the environment variables from the deployment contract
// onto config keys. Environment always wins over the config file.
var envBindings = map[string]string{
	"REDDIT_CLIENT_ID":           "reddit.client_id",
	"REDDIT_CLIENT_SECRET":       "reddit.client_secret",
	"TWITTER_CONSUMER_KEY":       "twitter.consumer_key",
	"TWITTER_CONSUMER_SECRET":    "twitter.consumer_secret",
	"TWITTER_BEARER_TOKEN":       "twitter.bearer_token",
	"MONGO_HOST":                 "mongo.host",
	"MONGO_PORT":                 "mongo.port",
	"MONGO_INITDB_ROOT_USERNAME": "mongo.username",
	"MONGO_INITDB_ROOT_PASSWORD": "mongo.password",
	"KAFKA_BOOTSTRAP_SERVERS":    "kafka.bootstrap_servers",
}

// Load reads the JSON config file at path and merges the environment
// variables from the deployment contract over it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", bindEnv), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// bindEnv translates an environment variable into a config key/value pair.
// Variables outside the contract are dropped.
func bindEnv(name string, value string) (string, interface{}) {
	key, ok := envBindings[name]
	if !ok {
		return "", nil
	}
	switch key {
	case "kafka.bootstrap_servers":
		return key, strings.Split(value, ",")
	case "mongo.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return "", nil
		}
		return key, port
	default:
		return key, value
	}
}

func applyDefaults(cfg *Config) {
	if cfg.General.MaxWorkers <= 0 {
		cfg.General.MaxWorkers = 20
	}
	if cfg.General.RequestTimeout == 0 {
		cfg.General.RequestTimeout = 10 * time.Second
	}
	if len(cfg.Kafka.BootstrapServers) == 0 {
		cfg.Kafka.BootstrapServers = []string{"localhost:9092"}
	}
	if cfg.Mongo.Port == 0 {
		cfg.Mongo.Port = 27017
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "newswire"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "seen_items"
	}
	if cfg.Rss.FeedTimeout == 0 {
		cfg.Rss.FeedTimeout = 5 * time.Second
	}
	if len(cfg.Twitter.Woeids) == 0 {
		// Worldwide trends
		cfg.Twitter.Woeids = []int64{1}
	}
	if len(cfg.Twitter.Languages) == 0 {
		cfg.Twitter.Languages = []string{"en", "de"}
	}
	if cfg.Twitter.MaxResults == 0 {
		cfg.Twitter.MaxResults = 100
	}
	if cfg.Reddit.CommentLimit == 0 {
		cfg.Reddit.CommentLimit = 10
	}
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = "newswire/1.0"
	}
}
