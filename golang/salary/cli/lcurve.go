package cli

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"github.com/spf13/cobra"
	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"gonum.org/v1/gonum/mat"
)

func loadBoosting(modelsDir string) (*regress.GradientBoosting, error) {
	model, _, err := artifacts.LoadKind(modelsDir, regress.KindGradientBoosting)
	if err != nil {
		return nil, err
	}
	gb, ok := model.(*regress.GradientBoosting)
	if !ok {
		return nil, fmt.Errorf("stored %s is a %s", regress.KindGradientBoosting, model.Kind())
	}
	if gb.Booster == nil {
		return nil, regress.ErrNotFitted
	}
	return gb, nil
}

func newLcurveCommand(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "lcurve",
		Short: "Write the RMSE of the gradient boosting model after every stage as .npy",
		Long: `Scores the stored gradient boosting model on the configured dataset (or the synthetic
one) after every stage and writes the column of RMSE values with npyio.`,
		Example: `  salary lcurve --out lcurve.npy`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gb, err := loadBoosting(cfg.ModelsDir)
			if err != nil {
				return err
			}
			ds, _, err := dataset.LoadOrGenerate(cfg.DatasetPath, cfg.Features, cfg.Target, cfg.SyntheticRows, cfg.RandomState)
			if err != nil {
				return err
			}
			curve, err := gb.StagedRMSE(ds.X, ds.Y)
			if err != nil {
				return err
			}
			if len(curve) == 0 {
				return fmt.Errorf("stored %s has no stages", regress.KindGradientBoosting)
			}
			dst, err := os.Create(out)
			if err != nil {
				return err
			}
			defer dst.Close()
			if err := npyio.Write(dst, mat.NewDense(len(curve), 1, curve)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stages, final RMSE %.2f, written to %s\n", len(curve), curve[len(curve)-1], out)
			return dst.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "lcurve.npy", "destination .npy file")
	return cmd
}

func newCurvesCommand(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:     "curves",
		Short:   "Dump the learning curves recorded while the gradient boosting model was trained",
		Example: `  salary curves --out curves.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gb, err := loadBoosting(cfg.ModelsDir)
			if err != nil {
				return err
			}
			dst, err := os.Create(out)
			if err != nil {
				return err
			}
			defer dst.Close()
			if err := gb.Booster.DumpLearningCurves(dst); err != nil {
				return err
			}
			return dst.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "learning_curves.json", "destination JSON file")
	return cmd
}
