package metrics

import (
	"fmt"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// Field names for metric labels.
const (
	FieldCache     = "cache"
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldRoute     = "route"
	FieldService   = "service"
	FieldSource    = "source"
	FieldStatus    = "status"
	FieldStore     = "store"
	FieldVersion   = "version"
)

// Common metrics subsystems.
const (
	subsystemErr   = "err"
	subsystemHit   = "hit"
	subsystemMiss  = "miss"
	subsystemOp    = "op"
	subsystemQueue = "queue"

	subsystemRequest  = "request"
	subsystemResponse = "response"
)

// BucketsQueue are used for Histograms observing queue latencies.
var BucketsQueue = []float64{
	.0005,
	.001,
	.0025,
	.005,
	.01,
	.025,
	.05,
	.1,
	.25,
	.5,
	1,
}

// KeyMetrics returns the error counter, op counter and op latency histogram
// every instrumented component reports.
func KeyMetrics(
	namespace string,
	fieldKeys ...string,
) (*kitprometheus.Counter, *kitprometheus.Counter, *prometheus.HistogramVec) {
	errCount := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemErr,
		Name:      "count",
		Help:      fmt.Sprintf("Number of failed %s operations", namespace),
	}, fieldKeys)

	opCount := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemOp,
		Name:      "count",
		Help:      fmt.Sprintf("Number of %s operations performed", namespace),
	}, fieldKeys)

	opLatency := histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemOp,
		Name:      "latency_seconds",
		Help:      fmt.Sprintf("Distribution of %s op duration in seconds", namespace),
	}, fieldKeys)

	return errCount, opCount, opLatency
}

// HitMetrics returns hit and miss counters for cache lookups.
func HitMetrics(
	namespace string,
	fieldKeys ...string,
) (*kitprometheus.Counter, *kitprometheus.Counter) {
	hitCount := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemHit,
		Name:      "count",
		Help:      fmt.Sprintf("Number of %s hits", namespace),
	}, fieldKeys)

	missCount := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemMiss,
		Name:      "count",
		Help:      fmt.Sprintf("Number of %s misses", namespace),
	}, fieldKeys)

	return hitCount, missCount
}

// QueueLatency returns the histogram observing the time a message spent in a
// queue or stream before it was consumed.
func QueueLatency(namespace string, fieldKeys ...string) *prometheus.HistogramVec {
	return histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemQueue,
		Name:      "latency_seconds",
		Help:      "Distribution of message queue latency in seconds",
		Buckets:   BucketsQueue,
	}, fieldKeys)
}

// Registration tolerates collectors registered before, so constructors can be
// called from several components of the same process.
func counter(opts prometheus.CounterOpts, fieldKeys []string) *kitprometheus.Counter {
	cv := prometheus.NewCounterVec(opts, fieldKeys)

	if err := prometheus.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cv = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}

	return kitprometheus.NewCounter(cv)
}

func histogram(opts prometheus.HistogramOpts, fieldKeys []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, fieldKeys)

	if err := prometheus.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			hv = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			panic(err)
		}
	}

	return hv
}

// RequestMetrics returns the request counter, response size counter and
// request latency histogram of a transport.
func RequestMetrics(
	namespace string,
	fieldKeys ...string,
) (*kitprometheus.Counter, *kitprometheus.Counter, *prometheus.HistogramVec) {
	requestCount := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemRequest,
		Name:      "count",
		Help:      "Number of requests received",
	}, fieldKeys)

	responseBytes := counter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemResponse,
		Name:      "bytes",
		Help:      "Bytes returned as response bodies",
	}, fieldKeys)

	requestLatency := histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemRequest,
		Name:      "latency_seconds",
		Help:      "Total duration of requests in seconds",
	}, fieldKeys)

	return requestCount, responseBytes, requestLatency
}
