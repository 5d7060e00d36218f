package cmd

import (
	"github.com/urfave/cli/v2"

	"newswire/collector"
	"newswire/config"
)

func redditCmd() *cli.Command {
	return &cli.Command{
		Name:  "reddit",
		Usage: "Collect top submissions from a set of subreddits",
		Description: `Collects the top submissions of the day from the configured subreddits,
including the top comments per submission. Requires REDDIT_CLIENT_ID and
REDDIT_CLIENT_SECRET.`,
		Action: func(ctx *cli.Context) error {
			return runSource(ctx, func(cfg *config.Config) (collector.Collector, error) {
				return collector.NewReddit(cfg.Reddit, cfg.General)
			})
		},
	}
}
