// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_http_requests_total",
		Help: "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	TicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tickets_created_total",
		Help: "Tickets created.",
	})

	RetouchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_retouches_created_total",
		Help: "Retouche lines created.",
	})

	StockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_stock_movements_total",
		Help: "Automatic supply quantity changes by reason.",
	}, []string{"reason"})

	StockFloorHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_stock_floor_hits_total",
		Help: "Decrements skipped because the supply was already at zero.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_notifications_total",
		Help: "Ready notifications by outcome (link, sent, failed, no_phone).",
	}, []string{"outcome"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests per chi route pattern so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
