package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	calculations    *prometheus.CounterVec
	excluded        prometheus.Counter
	declarations    *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paie_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paie_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paie_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paie_payroll_calculations_total",
			Help: "Payroll calculations by outcome.",
		}, []string{"outcome"}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paie_declaration_excluded_employees_total",
			Help: "Employees left out of declarations because of their contract type.",
		}),
		declarations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paie_declarations_total",
			Help: "Declaration pipeline runs by final outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paie_declaration_run_duration_seconds",
			Help:    "Duration of a full calculate, assemble, validate and encode run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	c.registry.MustRegister(c.requestsTotal, c.requestDuration, c.rateLimited, c.calculations, c.excluded, c.declarations, c.runDuration)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Middleware records every request under its chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		c.Record(routePattern(r), recorder.status, time.Since(start))
	})
}

func (c *Collector) Record(route string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		c.rateLimited.Inc()
	}
}

func (c *Collector) CalculationsSucceeded(n int) {
	if c == nil {
		return
	}
	c.calculations.WithLabelValues("ok").Add(float64(n))
}

func (c *Collector) CalculationFailed() {
	if c == nil {
		return
	}
	c.calculations.WithLabelValues("error").Inc()
}

func (c *Collector) EmployeesExcluded(n int) {
	if c == nil {
		return
	}
	c.excluded.Add(float64(n))
}

// DeclarationRun records one pipeline run; outcome is "encoded", "invalid"
// or "error".
func (c *Collector) DeclarationRun(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.declarations.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
