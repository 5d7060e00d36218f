package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"newswire/collector"
	"newswire/models"
	"newswire/producer"
	"newswire/store"
)

// Pipeline ties a collector, the seen-items store and the Kafka producer
// together for one data source.
type Pipeline struct {
	collector collector.Collector
	store     store.SeenStore
	producer  *producer.Producer
	topic     string
}

// RunStats summarizes a single collection run
type RunStats struct {
	Collected  int
	Duplicates int
	Published  int
	Failed     int
}

func New(c collector.Collector, s store.SeenStore, p *producer.Producer, topic string) *Pipeline {
	return &Pipeline{
		collector: c,
		store:     s,
		producer:  p,
		topic:     topic,
	}
}

// Run performs one collection run: collect, deduplicate, publish.
// A failing collector aborts the run; per-record errors are counted and the
// run carries on.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	source := p.collector.Name()

	var stats RunStats
	records, err := p.collector.Collect(ctx)
	if err != nil {
		return stats, err
	}

	for _, record := range records {
		dispatch(ctx, p.store, p.producer, p.topic, record, &stats)
	}

	log.WithFields(log.Fields{
		"source":     source,
		"collected":  stats.Collected,
		"duplicates": stats.Duplicates,
		"published":  stats.Published,
		"failed":     stats.Failed,
	}).Info("Collection run done")

	return stats, nil
}

// dispatch deduplicates and publishes one record, updating the run stats and
// the per-source counters.
func dispatch(ctx context.Context, seen store.SeenStore, pub *producer.Producer, topic string, record models.Record, stats *RunStats) {
	stats.Collected++
	recordsCollected.WithLabelValues(record.Source).Inc()

	isNew, err := seen.MarkSeen(ctx, record.Source, record.ID)
	if err != nil {
		// Without a dedup verdict we rather drop the record than
		// publish it twice
		log.Errorf("mark seen %s/%s: %v", record.Source, record.ID, err)
		stats.Failed++
		recordsFailed.WithLabelValues(record.Source).Inc()
		return
	}
	if !isNew {
		stats.Duplicates++
		recordsDuplicate.WithLabelValues(record.Source).Inc()
		return
	}

	if err := pub.Publish(topic, record); err != nil {
		log.Errorf("publish %s/%s: %v", record.Source, record.ID, err)
		stats.Failed++
		recordsFailed.WithLabelValues(record.Source).Inc()
		return
	}
	stats.Published++
	recordsPublished.WithLabelValues(record.Source).Inc()
}

// RunForever runs the pipeline on a cron schedule until the context is
// cancelled, serving metrics and a health endpoint on metricsPort. The first
// run starts immediately, and a run is skipped while the previous one is
// still active.
func (p *Pipeline) RunForever(ctx context.Context, schedule string, metricsPort int) error {
	serveMetrics(metricsPort)

	var running atomic.Bool
	runOnce := func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn("Previous run still active, skipping this one")
			return
		}
		defer running.Store(false)

		if _, err := p.Run(ctx); err != nil {
			log.Errorf("collection run: %v", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, runOnce); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"source":   p.collector.Name(),
		"schedule": schedule,
	}).Info("Starting scheduled collection")

	c.Start()
	runOnce()

	<-ctx.Done()
	log.Info("Shutting down, waiting for running jobs")
	<-c.Stop().Done()

	return nil
}
