package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	layerLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_loads_total",
			Help: "Layer loads by layer and outcome.",
		},
		[]string{"layer", "outcome"},
	)

	layerLoadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layer_load_duration_seconds",
			Help:    "Time to fetch and parse one layer.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"layer"},
	)

	classifiedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classified_records_total",
			Help: "Records seen by the classifier, by outcome (classified, missing, out_of_range).",
		},
		[]string{"layer", "outcome"},
	)

	recomputeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recompute_duration_seconds",
			Help:    "Duration of one full recomputation cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"outcome"},
	)

	storeOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_store_op_duration_seconds",
			Help:    "Latency of dataset store operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "result"},
	)

	datasetEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_events_total",
			Help: "Dataset sync events by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	datasyncErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasync_errors_total",
			Help: "Dataset sync failures by kind.",
		},
		[]string{"kind"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveLayerLoad(layer, outcome string, durationSeconds float64) {
	layerLoadsTotal.WithLabelValues(layer, outcome).Inc()
	layerLoadDurationSeconds.WithLabelValues(layer).Observe(durationSeconds)
}

func AddClassified(layer, outcome string, n int) {
	if n <= 0 {
		return
	}
	classifiedRecordsTotal.WithLabelValues(layer, outcome).Add(float64(n))
}

func ObserveRecompute(outcome string, durationSeconds float64) {
	recomputeDurationSeconds.WithLabelValues(outcome).Observe(durationSeconds)
}

// ObserveStoreOp records a dataset store call; result is "ok" or "error".
func ObserveStoreOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	storeOpDurationSeconds.WithLabelValues(op, res).Observe(durationSeconds)
}

func ObserveDatasetEvent(op, outcome string) {
	if op == "" {
		op = "unknown"
	}
	datasetEventsTotal.WithLabelValues(op, outcome).Inc()
}

func IncDatasyncError(kind string) {
	datasyncErrorsTotal.WithLabelValues(kind).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// Collectors returns the domain collectors so a private registry can expose
// them next to the runtime collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		layerLoadsTotal,
		layerLoadDurationSeconds,
		classifiedRecordsTotal,
		recomputeDurationSeconds,
		storeOpDurationSeconds,
		datasetEventsTotal,
		datasyncErrorsTotal,
	}
}
