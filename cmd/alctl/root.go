package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"imascore/internal/config"
	"imascore/internal/logger"
)

const envPrefix = "ALCTL"

// app holds the settings shared by all subcommands.
type app struct {
	stdout, stderr io.Writer

	configFile string
	logLevel   string
	logFile    string
	quiet      bool

	env     config.Environment
	logSink *os.File
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	rc := &cobra.Command{
		Use:   "alctl",
		Short: "Inspect IMAS data entry URIs, legacy parameters, time bases and stored data.",
		Long: `alctl exercises the access layer from the command line.

It resolves data entry URIs the way the access layer does, builds URIs
from legacy parameters, prints resampled time bases and reads fields
of stored data objects.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	rc.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (error, warn, info, debug). Overrides "+config.EnvLogLevel+".")
	rc.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also append log output to this file.")
	rc.PersistentFlags().BoolVar(&a.quiet, "quiet", false, "Disable info logging (log only errors)")

	rc.AddCommand(newURICommand(a))
	rc.AddCommand(newLegacyURICommand(a))
	rc.AddCommand(newTimebaseCommand(a))
	rc.AddCommand(newReadCommand(a))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setup loads the environment and directs logging to stderr and the
// optional log file.
func (a *app) setup() error {
	env, err := config.Load(viper.New(), a.configFile)
	if err != nil {
		return err
	}
	a.env = env

	var w io.Writer = a.stderr
	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %v", err)
		}
		a.logSink = f
		w = io.MultiWriter(a.stderr, f)
	}
	logger.Setup(w)

	name := env.LogLevel
	if a.logLevel != "" {
		name = a.logLevel
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return err
	}
	if a.quiet {
		level = logger.LevelError
	}
	logger.SetLevel(level)
	return nil
}

func (a *app) teardown() error {
	if a.logSink == nil {
		return nil
	}
	logger.Setup(a.stderr)
	err := a.logSink.Close()
	a.logSink = nil
	return err
}

// setAllConfig fills every flag that was not given on the command line
// from its environment variable: the flag name upper-cased with dashes
// replaced by underscores, prefixed with ALCTL_.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}
