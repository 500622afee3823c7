package store

import "github.com/prometheus/client_golang/prometheus"

// PlansExecuted counts executed plans by table and chain start strategy.
var PlansExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crawlplan",
	Subsystem: "store",
	Name:      "plans_executed",
	Help:      "Plans executed, by table and chain start strategy.",
}, []string{"table", "strategy"})

// FullScans counts plans that read every row of their table.
var FullScans = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crawlplan",
	Subsystem: "store",
	Name:      "full_scans",
	Help:      "Plans whose source reads the whole table.",
}, []string{"table"})

// RowsReturned counts records returned after filtering and paging.
var RowsReturned = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crawlplan",
	Subsystem: "store",
	Name:      "rows_returned",
	Help:      "Records returned by executed plans.",
}, []string{"table"})

// QueryDuration observes plan execution latency.
var QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "crawlplan",
	Subsystem: "store",
	Name:      "query_duration_seconds",
	Help:      "Plan execution latency in seconds.",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
}, []string{"table"})

// Collectors returns the store metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{PlansExecuted, FullScans, RowsReturned, QueryDuration}
}

// NewRegistry returns a registry holding the store metrics.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	return reg
}
