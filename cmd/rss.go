package cmd

import (
	"github.com/urfave/cli/v2"

	"newswire/collector"
	"newswire/config"
)

func rssCmd() *cli.Command {
	return &cli.Command{
		Name:  "rss",
		Usage: "Collect articles from RSS feeds",
		Description: `Scrapes the feed directory page at --base-url for links to RSS feeds,
fetches every feed and publishes one record per feed entry, tagged with
the title of the feed it came from.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "base-url",
				Usage:    "URL of a feed directory page listing links to relevant RSS feeds",
				Required: true,
				EnvVars:  []string{"NEWSWIRE_BASE_URL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			return runSource(ctx, func(cfg *config.Config) (collector.Collector, error) {
				return collector.NewRss(ctx.String("base-url"), cfg.Rss, cfg.General), nil
			})
		},
	}
}
