// Package cli wires the salary commands into one cobra binary.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"github.com/tarstars/salary_predictor/golang/salary/config"
	"github.com/tarstars/salary_predictor/golang/salary/logging"
	"go.uber.org/zap"
)

// options are the global flags.
type options struct {
	cfgFile    string
	memprofile string
}

// load reads the configuration and builds the logger for one command.
func (o *options) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// writeHeapProfile writes the memory profile after a command when asked to.
func (o *options) writeHeapProfile() error {
	if o.memprofile == "" {
		return nil
	}
	f, err := os.Create(o.memprofile)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}

// NewRootCommand builds the salary command tree. Command output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "salary",
		Short: "Train salary regression models and predict from them",
		Long: `Trains linear, random forest and gradient boosting salary models, stores them
with a metrics record and answers predictions from the stored models.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.writeHeapProfile()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./salary.yaml)")
	root.PersistentFlags().StringVar(&opts.memprofile, "memprofile", "", "write memory profile to `file`")

	root.AddCommand(
		newTrainCommand(opts),
		newPredictCommand(opts),
		newGraphCommand(opts),
		newLcurveCommand(opts),
		newCurvesCommand(opts),
	)
	return root
}

// Execute runs the command line of the process.
func Execute() error {
	return NewRootCommand(os.Stdout).Execute()
}
