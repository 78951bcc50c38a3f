// Package metrics exposes the Prometheus metrics surface for catalog
// operations and object-store round trips (SPEC_FULL.md §5):
// package-level promauto collectors plus a small Server wrapping
// /metrics and /health.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// CatalogOperationsTotal counts each Insert/Merge/Remove/Rewrite/
	// Collect call by outcome.
	CatalogOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icedb_catalog_operations_total",
			Help: "Total number of catalog operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// CatalogOperationDuration observes wall-clock time per operation.
	CatalogOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icedb_catalog_operation_duration_seconds",
			Help:    "Catalog operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ObjectStoreRequestsTotal counts object-store round trips by op and
	// result (success, transient_retry, terminal), as reported through
	// RecordObjectStoreRequest. The object-store backends in
	// pkg/objectstore do not call RecordObjectStoreRequest.
	ObjectStoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icedb_objectstore_requests_total",
			Help: "Total number of object store requests by operation and result",
		},
		[]string{"op", "result"},
	)

	// LiveFileMarkers tracks the live marker count per partition as of
	// the most recent fold-forward.
	LiveFileMarkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "icedb_catalog_live_file_markers",
			Help: "Number of live file markers observed per partition at last fold",
		},
		[]string{"partition"},
	)

	// InsertFanoutWorkers reports the worker count used by the most
	// recent Insert call's bounded fan-out.
	InsertFanoutWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "icedb_catalog_insert_fanout_workers",
		Help: "Worker count used by the most recent insert fan-out",
	})
)

// RecordOperation records one catalog operation's outcome and duration.
func RecordOperation(operation, result string, duration time.Duration) {
	CatalogOperationsTotal.WithLabelValues(operation, result).Inc()
	CatalogOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordObjectStoreRequest records one object-store round trip.
func RecordObjectStoreRequest(op, result string) {
	ObjectStoreRequestsTotal.WithLabelValues(op, result).Inc()
}

// SetLiveFileMarkers updates the live-marker gauge for one partition.
func SetLiveFileMarkers(partition string, count int) {
	LiveFileMarkers.WithLabelValues(partition).Set(float64(count))
}

// SetInsertFanoutWorkers updates the insert fan-out worker gauge.
func SetInsertFanoutWorkers(n float64) {
	InsertFanoutWorkers.Set(n)
}

// Server wraps an HTTP server exposing /metrics and /health.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer returns a metrics server bound to addr. Collectors are
// already registered via promauto at package init.
func NewServer(addr string, logger *logrus.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start runs the metrics server in a background goroutine.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Stop shuts the metrics server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping metrics server")
	return s.server.Close()
}
