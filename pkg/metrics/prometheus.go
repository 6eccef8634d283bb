package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	SchedulerCycles     *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	SubscriptionUpdates *prometheus.CounterVec
	InFlightUpdates     prometheus.Gauge
	FetchDuration       prometheus.Histogram
	FlightsFetched      prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	TokenExchanges      *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
	ErrorsCount         *prometheus.CounterVec
}

// NewMetrics creates the service metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SchedulerCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "The total number of scheduler cycles by result",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_duration_seconds",
			Help:      "Time taken by one scheduler cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		SubscriptionUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_updates_total",
			Help:      "The total number of subscription updates by outcome",
		}, []string{"outcome"}),
		InFlightUpdates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscription_updates_in_flight",
			Help:      "Subscription updates currently holding a concurrency slot",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "opensky_fetch_duration_seconds",
			Help:      "Time taken to fetch flights from OpenSky",
			Buckets:   prometheus.DefBuckets,
		}),
		FlightsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flights_fetched_total",
			Help:      "The total number of airborne flights returned by OpenSky",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integration_events_published_total",
			Help:      "The total number of integration events published by type and result",
		}, []string{"type", "result"}),
		TokenExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opensky_token_exchanges_total",
			Help:      "The total number of OAuth token exchanges by result",
		}, []string{"result"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "The total number of client notifications by event and result",
		}, []string{"event", "result"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
