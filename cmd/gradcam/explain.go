package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/gradcam/internal/explain"
	"github.com/born-ml/gradcam/internal/model"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		group   string
		target  string
		out     string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "explain IMAGE...",
		Short: "Classify images and write Grad-CAM overlays",
		Long: `Writes one overlay per image to the output directory as
{group}_{basename}. The group defaults to the image's parent directory.

Example:
  gradcam explain images/human/portrait.png images/ai/render.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" {
				a.cfg.Explain.OutputDir = out
			}
			var targetLabel *model.Label
			if target != "" {
				l, err := model.ParseLabel(target)
				if err != nil {
					return err
				}
				targetLabel = &l
			}

			exp, err := a.explainer()
			if err != nil {
				return err
			}

			reqs := make([]explain.Request, len(args))
			for i, path := range args {
				reqs[i] = explain.Request{ImagePath: path, Group: group, Target: targetLabel}
			}

			failed := 0
			for _, o := range exp.Batch(reqs, workers) {
				if o.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.Request.ImagePath, o.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", o.Request.ImagePath, o.Result.Class, o.Result.OutputPath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(reqs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "output group (default: parent directory)")
	cmd.Flags().StringVar(&target, "target", "", "class to explain: ai or human (default: predicted)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (overrides explain.output_dir)")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "images in flight (default: CPU count)")
	return cmd
}
