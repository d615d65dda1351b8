package app

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/RaffaelBild/gta-benchmark/internal/config"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
)

// AddFlags registers the flags shared by all benchmark commands. Values set
// on the command line override the config file and the environment.
func AddFlags(flags *pflag.FlagSet, cfgFile *string) {
	flags.StringVar(cfgFile, "config", "", "config file (default is ./"+constants.DefaultConfigName+".yaml)")
	flags.String("log-level", constants.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", constants.DefaultLogFormat, "Log format (json, text)")
	flags.Int("repetitions", 0, "Repetitions per run (-1 uses the dataset default)")
	flags.String("data-dir", constants.DefaultDataDir, "Directory holding the datasets")
	flags.String("hierarchy-dir", constants.DefaultHierarchyDir, "Directory holding the generalization hierarchies")
	flags.String("results-dir", constants.DefaultResultsDir, "Directory result tables are written to")
	flags.String("engine-command", "", "Command that runs the anonymization engine")
}

// Execute loads the configuration, wires an App and runs one sweep
func Execute(ctx context.Context, cfgFile string, flags *pflag.FlagSet, name string, sweep SweepFunc) error {
	cfg, err := config.Load(cfgFile, flags)
	if err != nil {
		return err
	}

	logger := SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("version", Version).Debug("Starting " + constants.AppName)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx, name, sweep)
}
