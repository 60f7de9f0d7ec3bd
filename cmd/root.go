package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vmctl-dev/vmctl/config"
)

var (
	cfgFile string
	debug   bool
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vmctl",
		Short:        "vmctl - single-guest VM launcher",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().String("name", "", "guest name")
	cmd.PersistentFlags().String("data-dir", "", "state directory (default ~/.vmctl)")

	_ = viper.BindPFlag("name", cmd.PersistentFlags().Lookup("name"))
	_ = viper.BindPFlag("data_dir", cmd.PersistentFlags().Lookup("data-dir"))

	cmd.AddCommand(
		upCmd,
		pullCmd,
		seedCmd,
		keygenCmd,
		startCmd,
		stopCmd,
		listCmd,
		psCmd,
		statusCmd,
		inspectCmd,
		logsCmd,
		ipCmd,
		sshCmd,
		consoleCmd,
		rmCmd,
		configCmd,
		versionCmd,
	)

	return cmd
}()

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(config.DefaultConfigFile())
		viper.SetConfigType("json")
	}

	var err error
	conf, err = config.Resolve(viper.GetViper())
	if err != nil {
		return err
	}

	if debug {
		conf.Log.Level = "debug"
	}
	return log.SetupLog(context.Background(), &conf.Log, "")
}

// newCommandContext creates the root command context canceled by SIGINT/SIGTERM.
func newCommandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// commandContext returns the command context, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
