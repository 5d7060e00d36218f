package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newswire",
		Usage: "Collect news items from external sources and publish them to Kafka",
		Description: `Newswire runs data-collection jobs against three kinds of sources:
		RSS feeds found via a feed directory, trending-topic searches on
		Twitter and top submissions on a set of subreddits.

		Collected items are normalized, deduplicated against a MongoDB
		seen-items collection and published to a Kafka topic per source.

		Credentials and connection settings come from a JSON config file
		merged with environment variables, e.g.:

		REDDIT_CLIENT_ID / REDDIT_CLIENT_SECRET
		TWITTER_CONSUMER_KEY / TWITTER_CONSUMER_SECRET / TWITTER_BEARER_TOKEN
		MONGO_HOST / MONGO_PORT / MONGO_INITDB_ROOT_USERNAME / MONGO_INITDB_ROOT_PASSWORD
		KAFKA_BOOTSTRAP_SERVERS
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Path to the JSON configuration file",
				Required: true,
				EnvVars:  []string{"NEWSWIRE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for repeated collection, empty runs once and exits",
				EnvVars: []string{"NEWSWIRE_SCHEDULE"},
			},
			&cli.IntFlag{
				Name:    "metrics-port",
				Usage:   "Port for the /metrics and /healthz endpoints in scheduled mode",
				Value:   9090,
				EnvVars: []string{"NEWSWIRE_METRICS_PORT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"NEWSWIRE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text or json)",
				Value:   "text",
				EnvVars: []string{"NEWSWIRE_LOG_FORMAT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			return configureLogging(ctx.String("log-level"), ctx.String("log-format"))
		},
		Commands: []*cli.Command{
			rssCmd(),
			twitterCmd(),
			redditCmd(),
			versionCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no source is specified
			return cli.ShowAppHelp(ctx)
		},
	}
}

func configureLogging(level string, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
