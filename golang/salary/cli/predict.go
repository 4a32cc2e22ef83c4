package cli

import (
	"github.com/spf13/cobra"
	"github.com/tarstars/salary_predictor/golang/salary/predictor"
)

func newPredictCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <features-json> [model]",
		Short: "Predict a salary from the stored models",
		Long: `Prints one JSON line with the prediction of every stored model, their mean and the
active model. Failures are printed as {"error": "..."} and the exit status stays zero.`,
		Example: `  salary predict '{"years_experience": 5, "education_level": 1, "role_level": 1, "company_size": 2}'
  salary predict '{"years_experience": 5}' random_forest`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, logger, err := opts.load()
			if err != nil {
				return predictor.WriteError(out, err)
			}
			defer func() { _ = logger.Sync() }()

			return predictor.New(cfg, logger).Run(args, out)
		},
	}
	// an argument that looks like a flag, such as -5, is still answered with JSON
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return predictor.WriteError(c.OutOrStdout(), err)
	})
	return cmd
}
