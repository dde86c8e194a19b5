// Package metrics holds the Prometheus collectors exported on /metrics.
// Every method is nil-safe so services can run without a registry in tests.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application collectors.
type Metrics struct {
	ordenesCreadas      prometheus.Counter
	ordenesActualizadas prometheus.Counter
	ordenesFallidas     *prometheus.CounterVec
	archivosGuardados   prometheus.Counter
	bytesGuardados      prometheus.Counter
	jobsProcesados      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on registerer (DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		ordenesCreadas: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordenes_creadas_total",
			Help: "Total number of purchase orders committed",
		})),
		ordenesActualizadas: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordenes_actualizadas_total",
			Help: "Total number of purchase order updates committed",
		})),
		ordenesFallidas: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordenes_fallidas_total",
			Help: "Order writes rolled back, by operation and error kind",
		}, []string{"operacion", "tipo"})),
		archivosGuardados: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archivos_guardados_total",
			Help: "Attachments written to the upload directory",
		})),
		bytesGuardados: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archivos_bytes_total",
			Help: "Bytes written to the upload directory",
		})),
		jobsProcesados: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_procesados_total",
			Help: "Background jobs processed, by queue and result",
		}, []string{"queue", "result"})),
		httpRequests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"})),
		httpDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"})),
	}
}

// register returns the already registered collector when c is a duplicate,
// so New can be called more than once against the same registry.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) OrdenCreada() {
	if m == nil {
		return
	}
	m.ordenesCreadas.Inc()
}

func (m *Metrics) OrdenActualizada() {
	if m == nil {
		return
	}
	m.ordenesActualizadas.Inc()
}

// OrdenFallida counts a rolled back write. tipo is validation, conflict,
// not_found or internal.
func (m *Metrics) OrdenFallida(operacion, tipo string) {
	if m == nil {
		return
	}
	m.ordenesFallidas.WithLabelValues(operacion, tipo).Inc()
}

func (m *Metrics) ArchivoGuardado(bytes int64) {
	if m == nil {
		return
	}
	m.archivosGuardados.Inc()
	m.bytesGuardados.Add(float64(bytes))
}

func (m *Metrics) JobProcesado(queue string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "dlq"
	}
	m.jobsProcesados.WithLabelValues(queue, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
