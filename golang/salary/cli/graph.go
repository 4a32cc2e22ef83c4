package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/ebl"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
)

// treeModel is a stored model made of trees.
type treeModel interface {
	TreeEnsemble() []ebl.OneTree
}

func newGraphCommand(opts *options) *cobra.Command {
	var (
		modelName  string
		figureType string
		dir        string
		prefix     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:     "graph",
		Short:   "Render the trees of a stored model with graphviz",
		Example: `  salary graph --model gradient_boosting --format svg --dir ./pictures --limit 3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			model, features, err := artifacts.LoadKind(cfg.ModelsDir, modelName)
			if err != nil {
				return err
			}
			trees, ok := model.(treeModel)
			if !ok {
				return fmt.Errorf("model %s has no trees to render", modelName)
			}
			if prefix == "" {
				prefix = modelName
			}
			written, err := ebl.RenderTrees(trees.TreeEnsemble(), features, prefix, figureType, dir, limit)
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&modelName, "model", "m", regress.KindGradientBoosting, "model to render (random_forest or gradient_boosting)")
	cmd.Flags().StringVarP(&figureType, "format", "f", "svg", "picture format: svg, png or jpg")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for the pictures")
	cmd.Flags().StringVar(&prefix, "prefix", "", "file name prefix (default is the model name)")
	cmd.Flags().IntVar(&limit, "limit", 0, "render only the first trees, 0 renders all")
	return cmd
}
