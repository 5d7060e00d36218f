package cmd

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"newswire/collector"
	"newswire/config"
	"newswire/pipeline"
	"newswire/producer"
	"newswire/store"
)

// runSource wires up the pipeline for one data source and runs it, once or
// on the configured schedule.
func runSource(ctx *cli.Context, build func(cfg *config.Config) (collector.Collector, error)) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	coll, err := build(cfg)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seen, err := openStore(runCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := seen.Close(context.Background()); err != nil {
			log.Errorf("closing store: %v", err)
		}
	}()

	pub, err := producer.New(cfg.Kafka.BootstrapServers)
	if err != nil {
		return err
	}
	defer pub.Close()

	p := pipeline.New(coll, seen, pub, cfg.Kafka.TopicFor(coll.Name()))

	if schedule := ctx.String("schedule"); schedule != "" {
		return p.RunForever(runCtx, schedule, ctx.Int("metrics-port"))
	}

	_, err = p.Run(runCtx)
	return err
}

// runStream wires up the streaming pipeline for one data source and runs it
// until interrupted.
func runStream(ctx *cli.Context, build func(cfg *config.Config) (collector.Streamer, error)) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	streamer, err := build(cfg)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seen, err := openStore(runCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := seen.Close(context.Background()); err != nil {
			log.Errorf("closing store: %v", err)
		}
	}()

	pub, err := producer.New(cfg.Kafka.BootstrapServers)
	if err != nil {
		return err
	}
	defer pub.Close()

	p := pipeline.NewStream(streamer, seen, pub, cfg.Kafka.TopicFor(streamer.Name()))
	return p.Run(runCtx, ctx.Int("metrics-port"))
}

// openStore connects to MongoDB when one is configured and falls back to
// the in-memory store otherwise, which still deduplicates within the run.
func openStore(ctx context.Context, cfg *config.Config) (store.SeenStore, error) {
	if !cfg.Mongo.Enabled() {
		log.Warn("No document store configured, deduplication is per-run only")
		return store.NewMemory(), nil
	}
	return store.NewMongo(ctx, cfg.Mongo)
}
