package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/config"
	"github.com/born-ml/gradcam/internal/explain"
	"github.com/born-ml/gradcam/internal/logging"
	"github.com/born-ml/gradcam/internal/model"
)

const version = "v0.1.0"

// app is the state shared by subcommands of one invocation.
type app struct {
	configPath string
	weights    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gradcam",
		Short: "Grad-CAM explanations for the ai/human image classifier",
		Long: `gradcam classifies images as "ai" or "human" generated and renders a
Grad-CAM heatmap over each image showing which regions drove the decision.

Configuration is read from --config (YAML), then GRADCAM_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.weights, "weights", "", "weights file (overrides model.weights_path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newServeCmd(a),
		newExplainCmd(a),
		newWeightsCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.weights != "" {
		cfg.Model.WeightsPath = a.weights
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Verbose:     a.verbose,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// explainer loads the weights and builds the pipeline.
func (a *app) explainer() (*explain.Explainer, error) {
	w, err := model.LoadWeights(a.cfg.Model.WeightsPath, a.cfg.Architecture())
	if err != nil {
		return nil, err
	}
	a.logger.Info("weights loaded",
		zap.String("path", a.cfg.Model.WeightsPath),
		zap.String("version", w.Version()))

	return explain.New(w, explain.Options{
		OutputDir:    a.cfg.Explain.OutputDir,
		TargetLayer:  a.cfg.Explain.TargetLayer,
		DefaultGroup: a.cfg.Explain.DefaultGroup,
		Alpha:        a.cfg.Explain.Alpha,
		Preprocess:   a.cfg.PreprocessOptions(),
		Parallel:     a.cfg.ParallelOptions(),
	}, a.logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		// Skips config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gradcam %s\n", version)
		},
	}
}
