package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, experts: %d\n", len(cfg.Providers), len(cfg.Experts))
			fmt.Fprintf(out, "Failure threshold: %d, fanout: %d, metrics: %v\n",
				cfg.Router.FailureThreshold, cfg.Router.Fanout, cfg.Server.MetricsEnabled)
			return nil
		},
	}
}
