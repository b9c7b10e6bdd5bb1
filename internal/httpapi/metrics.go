package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"webllmd/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webllmd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webllmd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "webllmd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	bridgeLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webllmd",
			Subsystem: "bridge",
			Name:      "loads_total",
			Help:      "Engine loads by outcome (started, ready, error)",
		},
		[]string{"outcome"},
	)

	bridgeCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webllmd",
			Subsystem: "bridge",
			Name:      "completions_total",
			Help:      "Completion runs by outcome",
		},
		[]string{"outcome"},
	)

	bridgeLoadProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "webllmd",
		Subsystem: "bridge",
		Name:      "load_progress",
		Help:      "Progress of the current engine load in [0,1]",
	})

	bridgeConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "webllmd",
		Subsystem: "bridge",
		Name:      "connected",
		Help:      "1 while an engine host page is attached",
	})

	catalogModels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "webllmd",
		Subsystem: "catalog",
		Name:      "models",
		Help:      "Number of models in the current catalog",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight,
		bridgeLoadsTotal, bridgeCompletionsTotal, bridgeLoadProgress, bridgeConnected, catalogModels)
}

// statusRecorder wraps http.ResponseWriter to capture status code. It passes
// flushes through for SSE and hijacks through for the bridge websocket.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		inflight := r.URL.Path
		httpInflight.WithLabelValues(inflight).Inc()
		defer httpInflight.WithLabelValues(inflight).Dec()
		next.ServeHTTP(sr, r)
		// the pattern is only known once chi has routed the request
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// MetricsPublisher maps manager events onto the bridge and catalog
// metrics. Install it alongside other publishers with
// manager.MultiPublisher.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e manager.Event) {
	switch e.Name {
	case manager.EventLoadStart:
		bridgeLoadsTotal.WithLabelValues("started").Inc()
		bridgeLoadProgress.Set(0)
	case manager.EventLoadProgress:
		if p, ok := e.Fields["progress"].(float64); ok {
			bridgeLoadProgress.Set(p)
		}
	case manager.EventLoadReady:
		bridgeLoadsTotal.WithLabelValues("ready").Inc()
		bridgeLoadProgress.Set(1)
	case manager.EventLoadError:
		bridgeLoadsTotal.WithLabelValues("error").Inc()
	case manager.EventCompletionEnd:
		outcome, _ := e.Fields["outcome"].(string)
		if outcome == "" {
			outcome = "unknown"
		}
		bridgeCompletionsTotal.WithLabelValues(outcome).Inc()
	case manager.EventCatalogReplace:
		if n, ok := e.Fields["models"].(int); ok {
			catalogModels.Set(float64(n))
		}
	}
}

// SetCatalogSize records the catalog size at startup.
func SetCatalogSize(n int) { catalogModels.Set(float64(n)) }

// SetBridgeConnected records whether an engine host is attached. It fits
// bridge.Observer.OnConnection.
func SetBridgeConnected(connected bool) {
	if connected {
		bridgeConnected.Set(1)
		return
	}
	bridgeConnected.Set(0)
}
