package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/gradcam/internal/model"
)

func newWeightsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Manage model weights",
	}
	cmd.AddCommand(newWeightsInitCmd(a), newWeightsInspectCmd(a))
	return cmd
}

func newWeightsInitCmd(a *app) *cobra.Command {
	var (
		out  string
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write Xavier-initialized weights",
		Long: `Writes untrained weights for the configured architecture. Useful for
smoke tests of the pipeline; the predictions are meaningless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = a.cfg.Model.WeightsPath
			}
			w, err := model.RandomWeights(a.cfg.Architecture(), seed)
			if err != nil {
				return err
			}
			if err := model.SaveWeights(out, w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, w.Version())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: model.weights_path)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func newWeightsInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [FILE]",
		Short: "Validate a weights file against the architecture",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Model.WeightsPath
			if len(args) == 1 {
				path = args[0]
			}
			w, err := model.LoadWeights(path, a.cfg.Architecture())
			if err != nil {
				return err
			}
			arch := w.Architecture()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: version %s, input %dx%d, channels %v, hidden %d, classes %d\n",
				path, w.Version(), arch.ImageSize, arch.ImageSize, arch.Channels, arch.Hidden, arch.Classes)
			return nil
		},
	}
}
