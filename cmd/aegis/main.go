// Package main provides the aegis CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/aegis/analysis"
	"github.com/richinex/aegis/config"
	"github.com/richinex/aegis/executor"
	"github.com/richinex/aegis/llm"
	"github.com/richinex/aegis/metrics"
	"github.com/richinex/aegis/pipeline"
	"github.com/richinex/aegis/policy"
	"github.com/richinex/aegis/state"
	"github.com/richinex/aegis/storage"
)

var (
	// Global flags
	configPath   string
	providerName string
	verbose      bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "aegis",
		Short: "Adaptive security frame analysis and response planning",
		Long: `Aegis analyzes video frames for security threats with a multimodal
inference provider, escalating analysis depth based on risk, and converts
confirmed incidents into validated, prioritized response plans.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aegis.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "Inference provider (gemini, openai, anthropic)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(incidentsCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings() (config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if providerName != "" {
		settings.Provider = providerName
	}
	return settings, nil
}

func newLogger(settings config.Settings) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(settings.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// buildPipeline assembles the full pipeline from settings. The returned
// cleanup func closes the store and the alert transport.
func buildPipeline(ctx context.Context, settings config.Settings, logger *slog.Logger) (*pipeline.Pipeline, *metrics.Tracker, func(), error) {
	providerType, err := llm.ParseProviderType(settings.Provider)
	if err != nil {
		return nil, nil, nil, err
	}

	builder := llm.NewProviderBuilder(providerType).
		MaxTokens(settings.MaxTokens).
		Temperature(float32(settings.Temperature))
	if settings.FastModel != "" {
		builder.FastModel(settings.FastModel)
	}
	if settings.DeepModel != "" {
		builder.DeepModel(settings.DeepModel)
	}
	provider, err := builder.FromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := storage.Open(settings.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}

	var notifier executor.Notifier
	var natsNotifier *executor.NATSNotifier
	if settings.NATSURL != "" {
		natsNotifier, err = executor.NewNATSNotifier(settings.NATSURL)
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		notifier = natsNotifier
	}

	states := state.NewStore()
	go states.Run(ctx, settings.StateSweepInterval(), settings.StateRetention())

	tracker := metrics.NewTracker()
	p := pipeline.New(pipeline.Config{
		Provider:       provider,
		Timeout:        settings.InferenceTimeout(),
		Selector:       policy.NewSelector(settings.EscalationThreshold, settings.PressureLimit),
		Normalizer:     analysis.NewNormalizer(settings.ConfidenceThreshold),
		Window:         analysis.NewWindow(settings.ContextWindowSize, settings.ContextWindowBytes),
		States:         states,
		Store:          store,
		Notifier:       notifier,
		Tracker:        tracker,
		Logger:         logger,
		EvidenceDir:    settings.EvidenceDir,
		PressureWindow: settings.PressureWindow(),
		IoTEnabled:     settings.IoTEnabled,
	})

	cleanup := func() {
		if natsNotifier != nil {
			natsNotifier.Close()
		}
		store.Close()
	}
	return p, tracker, cleanup, nil
}

func analyzeCmd() *cobra.Command {
	var investigationID string
	var frameNumber int

	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Analyze a single frame and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			logger := newLogger(settings)

			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			p, _, cleanup, err := buildPipeline(ctx, settings, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := p.ProcessFrame(ctx, pipeline.Frame{
				Number:          frameNumber,
				Image:           image,
				MimeType:        mimeTypeFor(args[0]),
				InvestigationID: investigationID,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&investigationID, "investigation", "i", "", "Investigation id correlating this frame with an ongoing event")
	cmd.Flags().IntVarP(&frameNumber, "frame", "n", 1, "Frame number for temporal tracking")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory for frames and process them continuously",
		Long: `Polls a directory at the configured sample interval and runs every new
image file through the pipeline in filename order. Prometheus metrics are
served on the configured metrics address while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			logger := newLogger(settings)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			p, tracker, cleanup, err := buildPipeline(ctx, settings, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			go serveMetrics(settings.MetricsAddr, tracker, logger)

			return watchLoop(ctx, p, args[0], settings, logger)
		},
	}
	return cmd
}

func serveMetrics(addr string, tracker *metrics.Tracker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", tracker.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// watchLoop polls dir until the context is cancelled.
func watchLoop(ctx context.Context, p *pipeline.Pipeline, dir string, settings config.Settings, logger *slog.Logger) error {
	processed := make(map[string]struct{})
	frameNumber := 0

	ticker := time.NewTicker(settings.SampleInterval())
	defer ticker.Stop()

	logger.Info("watching for frames", "dir", dir, "interval", settings.SampleInterval())
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}

		paths, err := pendingFrames(dir, processed)
		if err != nil {
			logger.Error("failed to scan frame directory", "error", err)
			continue
		}

		for _, path := range paths {
			image, err := os.ReadFile(path)
			if err != nil {
				logger.Error("failed to read frame", "path", path, "error", err)
				processed[path] = struct{}{}
				continue
			}
			frameNumber++

			result, err := p.ProcessFrame(ctx, pipeline.Frame{
				Number:   frameNumber,
				Image:    image,
				MimeType: mimeTypeFor(path),
			})
			processed[path] = struct{}{}

			switch {
			case err != nil:
				logger.Warn("frame skipped", "frame", frameNumber, "path", path, "error", err)
			case result.Analysis.Incident:
				logger.Warn("incident detected",
					"frame", frameNumber,
					"incident_id", result.IncidentID,
					"category", result.Analysis.Category,
					"severity", result.Analysis.Severity.String(),
					"confidence", result.Analysis.Confidence)
			default:
				logger.Debug("frame clear",
					"frame", frameNumber,
					"category", result.Analysis.Category,
					"confidence", result.Analysis.Confidence)
			}

			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// pendingFrames lists unprocessed image files in filename order.
func pendingFrames(dir string, processed map[string]struct{}) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		path := filepath.Join(dir, name)
		if _, done := processed[path]; !done {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func incidentsCmd() *cobra.Command {
	var limit int
	var severity string

	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List recent incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := storage.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			incidents, err := store.RecentIncidents(cmd.Context(), limit, severity)
			if err != nil {
				return err
			}
			if len(incidents) == 0 {
				fmt.Println("No incidents recorded.")
				return nil
			}

			for _, inc := range incidents {
				fmt.Printf("%s  %-10s %-8s %3d%%  %-10s  %s\n",
					inc.Timestamp.Format("2006-01-02 15:04:05"),
					inc.Category,
					inc.Severity,
					inc.Confidence,
					inc.Status,
					inc.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum incidents to list")
	cmd.Flags().StringVarP(&severity, "severity", "s", "", "Filter by severity (low, medium, high, critical)")

	cmd.AddCommand(incidentsCleanupCmd())
	return cmd
}

func incidentsCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete incidents older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := storage.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d incident(s) older than %d days.\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "Delete incidents older than this many days")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show incident database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := storage.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.GetStatistics(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total incidents:   %d\n", stats.TotalIncidents)
			fmt.Printf("Active:            %d\n", stats.ActiveCount)
			fmt.Printf("Last 24 hours:     %d\n", stats.Last24Hours)
			fmt.Printf("Actions executed:  %d\n", stats.TotalActions)
			if len(stats.BySeverity) > 0 {
				fmt.Println("By severity:")
				for _, sev := range []string{"critical", "high", "medium", "low"} {
					if count, ok := stats.BySeverity[sev]; ok {
						fmt.Printf("  %-8s %d\n", sev, count)
					}
				}
			}
			return nil
		},
	}
}

func mimeTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
