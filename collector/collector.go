package collector

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"newswire/models"
)

// Source selector names, also the default topic names
const (
	SourceRSS           = "rss"
	SourceTwitter       = "twitter"
	SourceTwitterStream = "twitter-stream"
	SourceReddit        = "reddit"
)

var fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newswire_fetch_errors_total",
	Help: "The total number of failed upstream fetches",
}, []string{"source"})

// Collector fetches items from one upstream data source and returns them
// as normalized records.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]models.Record, error)
}

// Streamer delivers records one by one as the upstream produces them,
// instead of in batches. Stream blocks until the context is cancelled.
type Streamer interface {
	Name() string
	Stream(ctx context.Context, emit func(models.Record)) error
}

// fanOut runs fn for every input on at most maxWorkers goroutines and
// gathers the results. Per-item errors are logged and counted but never
// abort the run; a single dead feed must not take the whole batch with it.
func fanOut[T any](ctx context.Context, source string, maxWorkers int, inputs []T, fn func(context.Context, T) ([]models.Record, error)) []models.Record {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, maxWorkers)
		records = make([]models.Record, 0, len(inputs))
	)

	for _, input := range inputs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(input T) {
			defer wg.Done()
			defer func() { <-sem }()

			recs, err := fn(ctx, input)
			if err != nil {
				fetchErrors.WithLabelValues(source).Inc()
				log.Errorf("%s: %v", source, err)
				return
			}

			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
		}(input)
	}
	wg.Wait()

	return records
}
