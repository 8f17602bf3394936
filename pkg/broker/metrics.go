package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRecordsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "records_appended_total",
		Help:      "Total number of records appended per topic.",
	}, []string{"topic"})
	metricBytesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "bytes_appended_total",
		Help:      "Total log bytes appended per topic.",
	}, []string{"topic"})
	metricAppendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "append_failures_total",
		Help:      "Total number of failed appends per topic.",
	}, []string{"topic"})
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "requests_total",
		Help:      "Total requests served by api key.",
	}, []string{"api"})
	metricFetchRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "fetch_records_total",
		Help:      "Total records returned to fetch requests.",
	})
	metricActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "broker",
		Name:      "active_connections",
		Help:      "Number of currently open client connections.",
	})
)
