package pubcms

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds a per-App registry so several Apps can live in one process.
type metrics struct {
	registry *prometheus.Registry
	writes   *prometheus.CounterVec
	uploads  prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubcms",
			Name:      "content_writes_total",
			Help:      "Successful content item writes by operation.",
		}, []string{"op"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubcms",
			Name:      "image_uploads_total",
			Help:      "Images stored in the blob store.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.writes,
		m.uploads,
	)
	return m
}

func (m *metrics) middleware() (echo.MiddlewareFunc, error) {
	return echoprometheus.MiddlewareConfig{
		Namespace:  "pubcms",
		Registerer: m.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}.ToMiddleware()
}

func (m *metrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}

func (m *metrics) contentWrite(op string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op).Inc()
}

func (m *metrics) imageUploaded() {
	if m == nil {
		return
	}
	m.uploads.Inc()
}
