package pipeline

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	recordsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_records_collected_total",
		Help: "The total number of records returned by the collectors",
	}, []string{"source"})

	recordsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_records_duplicate_total",
		Help: "The total number of records skipped as already seen",
	}, []string{"source"})

	recordsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_records_published_total",
		Help: "The total number of records published to the broker",
	}, []string{"source"})

	recordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_records_failed_total",
		Help: "The total number of records dropped due to store or broker errors",
	}, []string{"source"})
)

// serveMetrics exposes /metrics and /healthz for scheduled operation
func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Errorf("metrics server on port %d: %v", port, err)
		}
	}()
}
