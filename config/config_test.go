package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"general": {"max_workers": 8, "request_timeout": "15s"},
		"kafka": {
			"bootstrap_servers": ["broker1:9092", "broker2:9092"],
			"topics": {"rss": "raw-articles"}
		},
		"mongo": {"host": "mongo.internal", "port": 27017, "database": "collected"},
		"rss": {
			"request_headers": {"User-Agent": "Mozilla/5.0"},
			"feed_timeout": "3s"
		},
		"twitter": {"woeids": [1, 23424829], "languages": ["en"]},
		"reddit": {"subreddits": ["worldnews"], "comment_limit": 5}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.General.MaxWorkers)
	assert.Equal(t, 15*time.Second, cfg.General.RequestTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.BootstrapServers)
	assert.Equal(t, "mongo.internal", cfg.Mongo.Host)
	assert.Equal(t, "collected", cfg.Mongo.Database)
	assert.Equal(t, "Mozilla/5.0", cfg.Rss.RequestHeaders["User-Agent"])
	assert.Equal(t, 3*time.Second, cfg.Rss.FeedTimeout)
	assert.Equal(t, []int64{1, 23424829}, cfg.Twitter.Woeids)
	assert.Equal(t, []string{"en"}, cfg.Twitter.Languages)
	assert.Equal(t, []string{"worldnews"}, cfg.Reddit.Subreddits)
	assert.Equal(t, 5, cfg.Reddit.CommentLimit)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.General.MaxWorkers)
	assert.Equal(t, 10*time.Second, cfg.General.RequestTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.BootstrapServers)
	assert.Equal(t, 27017, cfg.Mongo.Port)
	assert.Equal(t, "newswire", cfg.Mongo.Database)
	assert.Equal(t, "seen_items", cfg.Mongo.Collection)
	assert.Equal(t, 5*time.Second, cfg.Rss.FeedTimeout)
	assert.Equal(t, []int64{1}, cfg.Twitter.Woeids)
	assert.Equal(t, []string{"en", "de"}, cfg.Twitter.Languages)
	assert.Equal(t, 100, cfg.Twitter.MaxResults)
	assert.Equal(t, 10, cfg.Reddit.CommentLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("REDDIT_CLIENT_SECRET", "env-secret")
	t.Setenv("TWITTER_BEARER_TOKEN", "env-bearer")
	t.Setenv("MONGO_HOST", "mongo.env")
	t.Setenv("MONGO_PORT", "27018")
	t.Setenv("MONGO_INITDB_ROOT_USERNAME", "root")
	t.Setenv("MONGO_INITDB_ROOT_PASSWORD", "hunter2")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka1:9092,kafka2:9092,kafka3:9092")

	// File values must lose against the environment
	cfg, err := config.Load(writeConfig(t, `{
		"reddit": {"client_id": "file-id"},
		"mongo": {"host": "mongo.file"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Reddit.ClientID)
	assert.Equal(t, "env-secret", cfg.Reddit.ClientSecret)
	assert.Equal(t, "env-bearer", cfg.Twitter.BearerToken)
	assert.Equal(t, "mongo.env", cfg.Mongo.Host)
	assert.Equal(t, 27018, cfg.Mongo.Port)
	assert.Equal(t, "root", cfg.Mongo.Username)
	assert.Equal(t, "hunter2", cfg.Mongo.Password)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092", "kafka3:9092"}, cfg.Kafka.BootstrapServers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestTopicFor(t *testing.T) {
	kafka := config.KafkaConfig{Topics: map[string]string{"rss": "raw-articles"}}

	assert.Equal(t, "raw-articles", kafka.TopicFor("rss"))
	assert.Equal(t, "twitter", kafka.TopicFor("twitter"))
}

func TestMongoURI(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.MongoConfig
		expected string
	}{
		{
			name:     "without credentials",
			cfg:      config.MongoConfig{Host: "localhost", Port: 27017},
			expected: "mongodb://localhost:27017",
		},
		{
			name:     "with credentials",
			cfg:      config.MongoConfig{Host: "db", Port: 27017, Username: "root", Password: "s3cret"},
			expected: "mongodb://root:s3cret@db:27017",
		},
		{
			name:     "credentials get escaped",
			cfg:      config.MongoConfig{Host: "db", Port: 27017, Username: "root", Password: "p@ss/word"},
			expected: "mongodb://root:p%40ss%2Fword@db:27017",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.URI())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, config.TwitterConfig{}.Validate())
	assert.NoError(t, config.TwitterConfig{BearerToken: "tok"}.Validate())
	assert.NoError(t, config.TwitterConfig{ConsumerKey: "k", ConsumerSecret: "s"}.Validate())

	assert.Error(t, config.RedditConfig{ClientID: "id"}.Validate())
	assert.NoError(t, config.RedditConfig{ClientID: "id", ClientSecret: "s"}.Validate())
}
