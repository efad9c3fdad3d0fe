// Package metrics exports reminder pass, delivery and HTTP measurements to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/family-scheduler/internal/reminder"
)

const defaultNamespace = "famsched"

// Observer records reminder engine and HTTP metrics.
type Observer struct {
	passDuration     *promclient.HistogramVec
	passNotified     *promclient.CounterVec
	passErrors       *promclient.CounterVec
	deliveries       *promclient.CounterVec
	requestDuration  *promclient.HistogramVec
	requestsInFlight promclient.Gauge
}

var _ reminder.Observer = (*Observer)(nil)

// NewObserver registers the collectors on reg, reusing collectors that are
// already registered under the same name.
func NewObserver(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	var err error
	o := &Observer{}
	if o.passDuration, err = register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reminder",
		Name:      "pass_duration_seconds",
		Help:      "Duration of reminder and summary passes.",
		Buckets:   promclient.DefBuckets,
	}, []string{"pass"})); err != nil {
		return nil, err
	}
	if o.passNotified, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "reminder",
		Name:      "notified_total",
		Help:      "Reminder triples and summaries handled.",
	}, []string{"pass"})); err != nil {
		return nil, err
	}
	if o.passErrors, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "reminder",
		Name:      "errors_total",
		Help:      "Failures counted by reminder and summary passes.",
	}, []string{"pass"})); err != nil {
		return nil, err
	}
	if o.deliveries, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Channel deliveries by outcome.",
	}, []string{"channel", "outcome"})); err != nil {
		return nil, err
	}
	if o.requestDuration, err = register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   promclient.DefBuckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if o.requestsInFlight, err = register(reg, promclient.NewGauge(promclient.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[T promclient.Collector](reg promclient.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return collector, nil
}

// ObservePass records one engine pass.
func (o *Observer) ObservePass(pass string, duration time.Duration, sent, errs int) {
	if o == nil {
		return
	}
	o.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
	o.passNotified.WithLabelValues(pass).Add(float64(sent))
	o.passErrors.WithLabelValues(pass).Add(float64(errs))
}

// ObserveDelivery records one channel delivery attempt.
func (o *Observer) ObserveDelivery(channel reminder.Channel, err error) {
	if o == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.deliveries.WithLabelValues(string(channel), outcome).Inc()
}

// ObserveRequest records one served HTTP request.
func (o *Observer) ObserveRequest(method, route string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	o.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (o *Observer) TrackInFlight() func() {
	if o == nil {
		return func() {}
	}
	o.requestsInFlight.Inc()
	return o.requestsInFlight.Dec
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
func Handler(g promclient.Gatherer) http.Handler {
	if g == nil {
		g = promclient.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
