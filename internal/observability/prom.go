package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "registrationhub"

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Outbox relay
	OutboxResults         *prometheus.CounterVec
	OutboxPublishDuration prometheus.Histogram

	// Notification consumer
	ConsumerResults   *prometheus.CounterVec
	ConsumerDuration  *prometheus.HistogramVec
	ConsumerInFlight  prometheus.Gauge
	NotificationDelay prometheus.Histogram
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		OutboxResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "results_total",
				Help:      "Outbox relay outcomes.",
			},
			[]string{"result"}, // sent|rescheduled|dropped
		),
		OutboxPublishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "publish_duration_seconds",
				Help:      "Time spent handing one outbox message to the broker.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		),
		ConsumerResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "results_total",
				Help:      "Registration-created deliveries by outcome.",
			},
			[]string{"result"}, // processed|missing|failed|invalid
		),
		ConsumerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "duration_seconds",
				Help:      "Handler duration including the notification delay.",
				Buckets:   []float64{0.01, 0.1, 1, 5, 15, 30, 60, 90, 120, 180, 300},
			},
			[]string{"result"},
		),
		ConsumerInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "in_flight",
				Help:      "Deliveries currently waiting or being handled.",
			},
		),
		NotificationDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "delay_wait_seconds",
				Help:      "Time a delivery waited before the notification was sent.",
				Buckets:   []float64{0, 1, 5, 15, 30, 60, 90, 120, 180},
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.OutboxResults, p.OutboxPublishDuration,
		p.ConsumerResults, p.ConsumerDuration, p.ConsumerInFlight, p.NotificationDelay,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The helpers below accept a nil receiver so components can run without metrics.

func (p *Prom) ObserveOutbox(result string, publish time.Duration) {
	if p == nil {
		return
	}
	p.OutboxResults.WithLabelValues(result).Inc()
	if publish > 0 {
		p.OutboxPublishDuration.Observe(publish.Seconds())
	}
}

func (p *Prom) ConsumerStarted() {
	if p == nil {
		return
	}
	p.ConsumerInFlight.Inc()
}

func (p *Prom) ConsumerFinished(result string, took time.Duration) {
	if p == nil {
		return
	}
	p.ConsumerInFlight.Dec()
	p.ConsumerResults.WithLabelValues(result).Inc()
	p.ConsumerDuration.WithLabelValues(result).Observe(took.Seconds())
}

func (p *Prom) ObserveNotificationWait(d time.Duration) {
	if p == nil {
		return
	}
	p.NotificationDelay.Observe(d.Seconds())
}
