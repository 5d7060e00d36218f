package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"

	"newswire/collector"
	"newswire/models"
	"newswire/producer"
	"newswire/store"
)

// StreamPipeline ties a streaming collector, the seen-items store and the
// Kafka producer together. Unlike the batch Pipeline it has no notion of
// runs: records are deduplicated and published one by one as they arrive.
type StreamPipeline struct {
	streamer collector.Streamer
	store    store.SeenStore
	producer *producer.Producer
	topic    string
}

func NewStream(s collector.Streamer, seen store.SeenStore, p *producer.Producer, topic string) *StreamPipeline {
	return &StreamPipeline{
		streamer: s,
		store:    seen,
		producer: p,
		topic:    topic,
	}
}

// Run consumes the stream until the context is cancelled, serving metrics
// and a health endpoint on metricsPort for its whole lifetime.
func (p *StreamPipeline) Run(ctx context.Context, metricsPort int) error {
	serveMetrics(metricsPort)

	log.WithFields(log.Fields{
		"source": p.streamer.Name(),
		"topic":  p.topic,
	}).Info("Starting streamed collection")

	var stats RunStats
	err := p.streamer.Stream(ctx, func(record models.Record) {
		dispatch(ctx, p.store, p.producer, p.topic, record, &stats)
	})

	log.WithFields(log.Fields{
		"source":     p.streamer.Name(),
		"collected":  stats.Collected,
		"duplicates": stats.Duplicates,
		"published":  stats.Published,
		"failed":     stats.Failed,
	}).Info("Stream closed")

	return err
}
