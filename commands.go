package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"qtermsim/internal/circuit"
	"qtermsim/internal/config"
	"qtermsim/internal/logger"
	"qtermsim/internal/measure"
	"qtermsim/internal/quantum"
	"qtermsim/internal/server"
	"qtermsim/internal/session"
)

const shutdownTimeout = 10 * time.Second

// options holds the flags shared by every command.
type options struct {
	configPath string
	logFile    string
	logLevel   string
	qubits     int
	shots      int
	runs       int
	seed       uint64
	format     string
	addr       string
}

type runReport struct {
	Circuit   circuit.Wire       `json:"circuit" yaml:"circuit"`
	Snapshot  *session.Snapshot  `json:"snapshot" yaml:"snapshot"`
	Histogram *measure.Histogram `json:"histogram,omitempty" yaml:"histogram,omitempty"`
	Stats     *measure.Stats     `json:"stats,omitempty" yaml:"stats,omitempty"`
}

type unitaryReport struct {
	Dim    int            `json:"dim" yaml:"dim"`
	Matrix [][][2]float64 `json:"matrix" yaml:"matrix"`
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "qtermsim",
		Short: "A terminal quantum circuit simulator",
		Long: `qtermsim edits circuits of H, X, Y, Z, S, T and controlled gates on a grid,
simulates the state vector, and reports entanglement and measurement statistics.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")
	rootCmd.Flags().StringVar(&opts.logFile, "log-file", "", "write TUI logs to this file")
	rootCmd.Flags().IntVarP(&opts.qubits, "qubits", "n", 0, "initial qubit count (default simulator.default_qubits)")

	runCmd := &cobra.Command{
		Use:   "run FILE.qasm",
		Short: "Simulate a QASM circuit and print the state, metrics and samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCircuit(cmd, opts, args[0])
		},
	}
	runCmd.Flags().IntVar(&opts.shots, "shots", 0, "shots per run (default sampler.default_shots, 0 disables sampling)")
	runCmd.Flags().IntVar(&opts.runs, "accumulate-runs", 1, "sample this many runs into one histogram")
	runCmd.Flags().Uint64Var(&opts.seed, "seed", 0, "sampler seed (default sampler.seed)")
	runCmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json or yaml")

	unitaryCmd := &cobra.Command{
		Use:   "unitary FILE.qasm",
		Short: "Print the unitary matrix of a QASM circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnitary(cmd, opts, args[0])
		},
	}
	unitaryCmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json or yaml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default server.addr)")

	rootCmd.AddCommand(runCmd, unitaryCmd, serveCmd)
	return rootCmd
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

func runTUI(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	log := zerolog.Nop()
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log = logger.New(logger.Config{Level: cfg.Log.Level, Output: f})
	}

	n := opts.qubits
	if n == 0 {
		n = cfg.Simulator.DefaultQubits
	}
	m, err := newModel(cfg, log, n)
	if err != nil {
		return err
	}
	log.Info().Int("qubits", n).Msg("Starting TUI")

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}

// readCircuit parses and validates a QASM file.
func readCircuit(path string, cfg *config.Config) (*circuit.Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := circuit.ParseQASM(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(cfg.Simulator.MaxQubits); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func runCircuit(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})

	if cmd.Flags().Changed("seed") {
		cfg.Sampler.Seed = opts.seed
	}
	shots := cfg.Sampler.DefaultShots
	if cmd.Flags().Changed("shots") {
		shots = opts.shots
	}
	if shots < 0 {
		return fmt.Errorf("%w: %d", measure.ErrNegativeShots, shots)
	}
	if opts.runs < 1 {
		return fmt.Errorf("accumulate-runs must be at least 1, got %d", opts.runs)
	}

	c, err := readCircuit(path, cfg)
	if err != nil {
		return err
	}
	sess, err := session.New(c.NumQubits, server.Limits(cfg), cfg.Sampler.Seed, log)
	if err != nil {
		return err
	}
	if err := sess.SetCircuit(c); err != nil {
		return err
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return err
	}

	report := runReport{Circuit: c.Wire(), Snapshot: snap}
	if shots > 0 {
		for run := 0; run < opts.runs; run++ {
			if report.Histogram, err = sess.Sample(shots, run > 0); err != nil {
				return err
			}
		}
		st := report.Histogram.Stats()
		report.Stats = &st
		log.Debug().
			Int("shots", report.Histogram.Shots).
			Float64("chi_square", report.Histogram.ChiSquare(sess.State().Probabilities())).
			Msg("Sampling done")
	}

	out := cmd.OutOrStdout()
	if opts.format != "text" {
		return encode(out, opts.format, report)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %d qubits, %d gates, depth %d\n", titleStyle.Render(path), c.NumQubits, len(c.Gates), circuit.Depth(c))
	writeAnalysis(&sb, snap)
	if report.Histogram != nil {
		writeHistogram(&sb, report.Histogram, c.NumQubits)
	}
	_, err = io.WriteString(out, sb.String())
	return err
}

func runUnitary(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	c, err := readCircuit(path, cfg)
	if err != nil {
		return err
	}
	u, err := quantum.Unitary(c.NumQubits, c.Gates, cfg.Simulator.UnitaryMaxQubits)
	if err != nil {
		return err
	}

	dim, _ := u.Dims()
	report := unitaryReport{Dim: dim, Matrix: make([][][2]float64, dim)}
	for i := range report.Matrix {
		report.Matrix[i] = make([][2]float64, dim)
		for j := range report.Matrix[i] {
			v := u.At(i, j)
			report.Matrix[i][j] = [2]float64{real(v), imag(v)}
		}
	}

	out := cmd.OutOrStdout()
	if opts.format != "text" {
		return encode(out, opts.format, report)
	}
	var sb strings.Builder
	for _, row := range report.Matrix {
		for j, v := range row {
			if j > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%+.3f%+.3fi", v[0], v[1])
		}
		sb.WriteString("\n")
	}
	_, err = io.WriteString(out, sb.String())
	return err
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
	logger.SetGlobalLogger(log)
	log.Info().
		Int("max_qubits", cfg.Simulator.MaxQubits).
		Int("max_shots", cfg.Sampler.MaxShots).
		Bool("dev_mode", cfg.Server.DevMode).
		Msg("Configuration loaded")

	srv := server.New(server.Config{Log: log, Config: cfg})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func encode(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
