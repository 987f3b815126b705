package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"pid-controller/pid"
	"pid-controller/simulation"
)

var (
	// CLI flags
	configPath = flag.String("config", "", "Path to configuration file (built-in RL circuit demo when empty)")
	logLevel   = flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	csvPath    = flag.String("csv", "", "Write the trace as CSV to this path ('-' for stdout)")
	jsonPath   = flag.String("json", "", "Write the trace and summary as JSON to this path ('-' for stdout)")
	plotPath   = flag.String("plot", "", "Write a PNG plot of the response to this path")
	steps      = flag.Int("steps", 0, "Override the number of simulation steps")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	// Load configuration
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlagOverrides(config)
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logrus.ParseLevel(config.Server.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"config": *configPath,
		"plant":  config.Plant.Type,
	}).Info("Starting PID simulation")

	// Cancel the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if config.Server.MetricsPort > 0 {
		srv := NewMetricsServer(config.Server.MetricsPort, registry)
		StartMetricsServer(srv, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics server shutdown failed")
			}
		}()
	}

	res, runErr := run(ctx, config, log, metrics)
	if res != nil {
		if err := writeOutputs(res, config); err != nil {
			log.WithError(err).Error("Failed to write outputs")
			os.Exit(1)
		}
	}
	if runErr != nil {
		log.WithError(runErr).Warn("Simulation stopped early")
		return
	}
	log.Info("Simulation finished")
}

// loadConfig reads the config file, or returns the built-in defaults when
// path is empty
func loadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// applyFlagOverrides applies command-line overrides on top of the config
func applyFlagOverrides(config *Config) {
	if *logLevel != "" {
		config.Server.LogLevel = *logLevel
	}
	if *steps > 0 {
		config.Simulation.Steps = *steps
	}
	if *csvPath != "" {
		config.Output.CSV = *csvPath
	}
	if *jsonPath != "" {
		config.Output.JSON = *jsonPath
	}
	if *plotPath != "" {
		config.Output.Plot = *plotPath
	}
}

// run builds the controller and plant from config and executes the
// simulation. A partial result is returned if ctx is cancelled.
func run(ctx context.Context, config *Config, log *logrus.Logger, metrics *Metrics) (*simulation.Result, error) {
	ctrl, err := config.Controller.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build controller: %w", err)
	}
	for _, warning := range pid.CheckGains(ctrl) {
		log.Warn(warning)
	}

	p, err := config.Plant.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build plant: %w", err)
	}

	kp, ki, kd := ctrl.Gains()
	min, max := ctrl.OutputLimits()
	log.WithFields(logrus.Fields{
		"kp":         kp,
		"ki":         ki,
		"kd":         kd,
		"dt":         ctrl.Dt(),
		"out_min":    min,
		"out_max":    max,
		"integrator": p.Method(),
		"steps":      config.Simulation.Steps,
	}).Info("Starting control loop")

	observers := []simulation.Observer{stepLogger{log: log, every: config.Server.LogEvery}}
	if metrics != nil {
		observers = append(observers, metrics)
	}

	sim, err := simulation.New(config.LoopConfig(), ctrl, p, observers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	start := time.Now()
	res, err := sim.Run(ctx)
	if metrics != nil {
		metrics.ObserveRun(time.Since(start))
	}
	if res != nil {
		logSummary(log, res.Summary, time.Since(start))
	}
	return res, err
}

// stepLogger emits a debug line every N steps
type stepLogger struct {
	log   *logrus.Logger
	every int
}

func (l stepLogger) OnStep(s simulation.Sample) {
	if l.every <= 0 || s.Step%l.every != 0 {
		return
	}
	l.log.WithFields(logrus.Fields{
		"step":        s.Step,
		"time":        s.Time,
		"setpoint":    s.Setpoint,
		"measurement": s.Measurement,
		"output":      s.Output,
		"p":           s.Terms.P,
		"i":           s.Terms.I,
		"d":           s.Terms.D,
	}).Debug("Step")
}

// logSummary logs the response summary of a run
func logSummary(log *logrus.Logger, sum simulation.Summary, elapsed time.Duration) {
	fields := logrus.Fields{
		"steps":          sum.Steps,
		"final_error":    sum.FinalError,
		"mean_abs_error": sum.MeanAbsError,
		"rms_error":      sum.RMSError,
		"overshoot_pct":  sum.OvershootPercent,
		"saturated_pct":  sum.SaturatedFraction * 100,
		"elapsed":        elapsed,
	}
	if sum.Risen {
		fields["rise_time"] = sum.RiseTime
	}
	if sum.Settled {
		fields["settling_time"] = sum.SettlingTime
	} else {
		log.WithField("final_error", sum.FinalError).Warn("Response did not settle within the band")
	}
	log.WithFields(fields).Info("Simulation summary")
}

// writeOutputs writes the configured CSV, JSON and plot artifacts
func writeOutputs(res *simulation.Result, config *Config) error {
	if config.Output.CSV != "" {
		if err := writeTo(config.Output.CSV, func(w io.Writer) error {
			return simulation.WriteCSV(w, res)
		}); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}
	if config.Output.JSON != "" {
		if err := writeTo(config.Output.JSON, func(w io.Writer) error {
			return simulation.WriteJSON(w, res)
		}); err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
	}
	if config.Output.Plot != "" {
		labels := plotLabels(config.Plant.Type)
		if err := writeTo(config.Output.Plot, func(w io.Writer) error {
			return simulation.WritePlot(w, res, labels)
		}); err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
	}
	return nil
}

// writeTo opens path ("-" meaning stdout) and passes it to write
func writeTo(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// plotLabels returns axis labels for the plant type
func plotLabels(plantType string) simulation.PlotLabels {
	switch plantType {
	case PlantDCMotor:
		return simulation.PlotLabels{
			Title:       "PID Response - DC Motor",
			Measurement: "Speed [RPM]",
			Output:      "Voltage [V]",
		}
	default:
		return simulation.PlotLabels{
			Title:       "PID Response - RL Circuit",
			Measurement: "Current [A]",
			Output:      "Voltage [V]",
		}
	}
}
