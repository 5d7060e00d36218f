package cmd

import (
	"github.com/urfave/cli/v2"

	"newswire/collector"
	"newswire/config"
)

func twitterCmd() *cli.Command {
	return &cli.Command{
		Name:  "twitter",
		Usage: "Collect tweets for the current trending topics",
		Description: `Looks up the trending topics for the configured locations and collects
recent tweets matching them. Requires TWITTER_BEARER_TOKEN or a
TWITTER_CONSUMER_KEY / TWITTER_CONSUMER_SECRET pair.

With --stream the collector follows the filtered tweet stream instead,
rebuilding the stream rules from the current trends every 30 seconds and
publishing to the twitter-stream topic as tweets arrive.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "stream",
				Usage:   "Follow the filtered tweet stream instead of running batch searches",
				EnvVars: []string{"NEWSWIRE_TWITTER_STREAM"},
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.Bool("stream") {
				return runStream(ctx, func(cfg *config.Config) (collector.Streamer, error) {
					return collector.NewTwitterStream(cfg.Twitter, cfg.General)
				})
			}
			return runSource(ctx, func(cfg *config.Config) (collector.Collector, error) {
				return collector.NewTwitter(cfg.Twitter, cfg.General)
			})
		},
	}
}
