package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/medwave/breathscan/pkg/audio/decode"
	"github.com/medwave/breathscan/pkg/classify"
	"github.com/medwave/breathscan/pkg/config"
	"github.com/medwave/breathscan/pkg/mfcc"
	"github.com/medwave/breathscan/pkg/predict"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "breathscan",
	Short: "Acoustic bronchitis risk screening",
	Long: `breathscan - bronchitis risk screening from short audio clips.

The pipeline decodes an audio clip (WAV, MP3, FLAC; M4A via ffmpeg) to
mono PCM at a fixed rate, extracts an MFCC feature matrix, runs a
pre-trained classifier and maps the class probabilities to a risk
probability with a low/medium/high tier.

Examples:
  # Analyze a recording
  breathscan analyze cough.wav

  # Machine-readable output
  breathscan analyze --json breath.mp3

  # Start the HTTP service
  breathscan serve --config /etc/breathscan/config.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the config file from --config, falling back to the
// defaults when the flag is unset.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// setupLogger installs a slog default logger honoring the configured
// level; --verbose forces debug.
func setupLogger(cfg *config.Config) error {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// buildPredictor assembles the full pipeline from config. When the model
// artifact cannot be loaded the predictor comes up degraded and a
// warning is logged; callers that require inference check Degraded().
func buildPredictor(cfg *config.Config) (*predict.Predictor, func(), error) {
	taxonomy, err := classify.LoadTaxonomy(cfg.Model.LabelsPath)
	if err != nil {
		return nil, nil, err
	}

	extCfg := mfcc.DefaultConfig()
	extCfg.SampleRate = cfg.Audio.SampleRate
	extractor, err := mfcc.New(extCfg)
	if err != nil {
		return nil, nil, err
	}

	var model classify.Model
	cleanup := func() {}
	if err := classify.InitRuntime(cfg.Model.RuntimeLibrary); err != nil {
		slog.Warn("onnxruntime unavailable, running degraded", "err", err)
	} else {
		m, err := classify.NewONNXModel(cfg.Model.Path, taxonomy.Len())
		if err != nil {
			slog.Warn("model not loaded, running degraded", "path", cfg.Model.Path, "err", err)
		} else {
			model = m
			cleanup = func() {
				if err := m.Close(); err != nil {
					slog.Warn("close model", "err", err)
				}
				if err := classify.DestroyRuntime(); err != nil {
					slog.Warn("destroy onnxruntime", "err", err)
				}
			}
		}
	}

	p, err := predict.New(model, taxonomy, extractor,
		predict.WithDecodeOptions(decode.Options{
			TargetRate:  cfg.Audio.SampleRate,
			MaxDuration: cfg.Audio.MaxSeconds,
		}),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build predictor: %w", err)
	}
	return p, cleanup, nil
}
