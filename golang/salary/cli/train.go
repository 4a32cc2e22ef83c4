package cli

import (
	"github.com/spf13/cobra"
	"github.com/tarstars/salary_predictor/golang/salary/trainer"
)

func newTrainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit every model and write the models and the metrics record",
		Long: `Loads the dataset file when it exists, otherwise generates a synthetic one, then fits
linear regression, random forest and gradient boosting (the last two through randomized
search), scores them on the held out rows and by cross-validation, and writes one file per
model plus the metrics record.`,
		Example: `  # Train with defaults (uses ./salary.yaml when present)
  salary train

  # Train with another configuration
  salary train --config ./configs/small.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			_, err = trainer.New(cfg, logger, cmd.OutOrStdout()).Run(cmd.Context())
			return err
		},
	}
}
