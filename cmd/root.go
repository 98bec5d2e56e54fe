/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/cmd/cmdutil"
	projectCmd "github.com/mpapenbr/pitwall-go/pkg/cmd/project"
	serverCmd "github.com/mpapenbr/pitwall-go/pkg/cmd/server"
	simulateCmd "github.com/mpapenbr/pitwall-go/pkg/cmd/simulate"
	strategyCmd "github.com/mpapenbr/pitwall-go/pkg/cmd/strategy"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/version"
)

const envPrefix = "PITWALL"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pitwall",
	Short:   "Race simulation and pit strategy engine",
	Long:    ``,
	Version: version.FullVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := cmdutil.SetupLogger()
		if err != nil {
			return err
		}
		cmd.SetContext(log.AddToContext(cmd.Context(), logger))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.pitwall.yml)")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules applied to log output (example: \"warn+:* *:simulate\")")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (\"stdout\" prints to console)")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"URL of the NATS server (empty disables weather, narration and publishing)")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().StringVar(&config.RosterFile,
		"roster-file",
		"",
		"yaml file with the driver roster (empty uses the builtin roster)")

	// add commands here
	rootCmd.AddCommand(simulateCmd.NewSimulateCmd())
	rootCmd.AddCommand(projectCmd.NewProjectCmd())
	rootCmd.AddCommand(strategyCmd.NewStrategyCmd())
	rootCmd.AddCommand(serverCmd.NewServerCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pitwall" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pitwall")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --lap-interval to PITWALL_LAP_INTERVAL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
