package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pid-controller/simulation"
)

// Metrics holds all Prometheus metrics for the simulation loop
type Metrics struct {
	// Loop signals
	Setpoint    prometheus.Gauge // Current setpoint
	Measurement prometheus.Gauge // Plant output after the last step
	Output      prometheus.Gauge // Control output applied during the last step
	SimTime     prometheus.Gauge // Simulated time in seconds

	// PID metrics
	PIDProportional prometheus.Gauge // P term
	PIDIntegral     prometheus.Gauge // I term
	PIDDerivative   prometheus.Gauge // D term
	PIDError        prometheus.Gauge // Current error

	// Counters
	StepsTotal     prometheus.Counter // Control steps executed
	SaturatedTotal prometheus.Counter // Steps whose output hit a limit

	// Wall-clock duration of whole runs
	RunDuration prometheus.Histogram
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_setpoint",
			Help: "Current setpoint",
		}),
		Measurement: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_measurement",
			Help: "Plant output after the last control step",
		}),
		Output: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_control_output",
			Help: "Clamped controller output applied during the last step",
		}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_simulated_time_seconds",
			Help: "Simulated time of the last step",
		}),

		PIDProportional: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_pid_proportional",
			Help: "PID proportional term",
		}),
		PIDIntegral: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_pid_integral",
			Help: "PID integral term",
		}),
		PIDDerivative: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_pid_derivative",
			Help: "PID derivative term",
		}),
		PIDError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pidsim_pid_error",
			Help: "PID error (setpoint - measurement)",
		}),

		StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pidsim_steps_total",
			Help: "Total number of control steps",
		}),
		SaturatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pidsim_saturated_steps_total",
			Help: "Total number of control steps whose output was clamped",
		}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pidsim_run_duration_seconds",
			Help:    "Wall-clock duration of simulation runs in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 1.0, 10.0, 60.0, 600.0},
		}),
	}

	reg.MustRegister(
		m.Setpoint,
		m.Measurement,
		m.Output,
		m.SimTime,
		m.PIDProportional,
		m.PIDIntegral,
		m.PIDDerivative,
		m.PIDError,
		m.StepsTotal,
		m.SaturatedTotal,
		m.RunDuration,
	)

	return m
}

// OnStep updates the metrics from one simulation sample
func (m *Metrics) OnStep(s simulation.Sample) {
	m.Setpoint.Set(s.Setpoint)
	m.Measurement.Set(s.Measurement)
	m.Output.Set(s.Output)
	m.SimTime.Set(s.Time)

	m.PIDProportional.Set(s.Terms.P)
	m.PIDIntegral.Set(s.Terms.I)
	m.PIDDerivative.Set(s.Terms.D)
	m.PIDError.Set(s.Terms.Error)

	m.StepsTotal.Inc()
	if s.Terms.Saturated() {
		m.SaturatedTotal.Inc()
	}
}

// ObserveRun records the wall-clock duration of a run
func (m *Metrics) ObserveRun(d time.Duration) {
	m.RunDuration.Observe(d.Seconds())
}

// NewMetricsServer builds the HTTP server exposing /metrics and /health
func NewMetricsServer(port int, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", healthHandler(time.Now()))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer starts the metrics server in the background
func StartMetricsServer(srv *http.Server, log *logrus.Logger) {
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server error")
		}
	}()
}

// healthHandler provides a health check endpoint
func healthHandler(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Uptime:    time.Since(startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logrus.WithError(err).Error("Failed to encode health response")
		}
	}
}
