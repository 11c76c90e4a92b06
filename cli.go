package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "diceroller",
		Short:        "Roll dice over HTTP, exporting traces, metrics and logs over OTLP",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	registerFlags(fs)

	cmd.AddCommand(newLoadgenCmd(v, &cfgFile))
	return cmd
}

func newLoadgenCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	lc := defaultLoadgenConfig()

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Send a steady stream of instrumented requests to /rolldice",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			return runLoadgen(cmd.Context(), cfg, lc)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&lc.URL, "url", "u", lc.URL, "target URL")
	fs.IntVarP(&lc.Concurrency, "concurrency", "c", lc.Concurrency, "parallel workers")
	fs.IntVarP(&lc.Rate, "rate", "r", lc.Rate, "requests per second (total, at most 1000)")
	fs.DurationVarP(&lc.Duration, "duration", "d", lc.Duration, "test duration (0 = until interrupted)")
	fs.IntVar(&lc.MaxSides, "max-sides", lc.MaxSides, "largest die requested")
	fs.Float64Var(&lc.InvalidRatio, "invalid-ratio", lc.InvalidRatio, "share of requests sent with a non-positive number of sides")
	fs.IntVar(&lc.Retries, "retries", lc.Retries, "retries on connection errors")
	return cmd
}
