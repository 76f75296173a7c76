package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus series exposed by the API and worker.
// All methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	payrollRuns        *prometheus.CounterVec
	payrollRunDuration prometheus.Histogram
	employeeFailures   *prometheus.CounterVec
	leaveUsage         *prometheus.CounterVec
	overdue            *prometheus.GaugeVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payroll_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		payrollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_runs_total",
			Help: "Payroll runs by final status.",
		}, []string{"status"}),
		payrollRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payroll_run_duration_seconds",
			Help:    "Wall time of payroll runs.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		employeeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_employee_failures_total",
			Help: "Employees that failed resolution, by failure code.",
		}, []string{"code"}),
		leaveUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_usage_total",
			Help: "Leave usage requests by outcome.",
		}, []string{"outcome"}),
		overdue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compliance_overdue_obligations",
			Help: "Compliance obligations past their due date at the last scan.",
		}, []string{"type"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_jobs_total",
			Help: "Background job executions by job and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payroll_job_duration_seconds",
			Help:    "Background job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration,
		m.payrollRuns, m.payrollRunDuration, m.employeeFailures,
		m.leaveUsage, m.overdue,
		m.jobRuns, m.jobDuration,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RunFinished(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.payrollRuns.WithLabelValues(status).Inc()
	m.payrollRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) EmployeeFailed(code string) {
	if m == nil {
		return
	}
	m.employeeFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) LeaveUsage(outcome string) {
	if m == nil {
		return
	}
	m.leaveUsage.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOverdue(obligationType string, count int) {
	if m == nil {
		return
	}
	m.overdue.WithLabelValues(obligationType).Set(float64(count))
}

// Tracker instruments one background job execution.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
