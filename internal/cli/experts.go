package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type expertsReply struct {
	Experts []struct {
		Role         string   `json:"role"`
		Model        string   `json:"model"`
		Backups      []string `json:"backups"`
		FailureCount int      `json:"failure_count"`
		Quarantined  bool     `json:"quarantined"`
	} `json:"experts"`
}

// NewExpertsCmd prints the daemon's expert catalog with live health state.
func NewExpertsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "experts",
		Short: "List expert bindings and health state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			url := daemonURL(cfg.Server.Addr) + "/v1/experts"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			var parsed expertsReply
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tMODEL\tSTATUS\tFAILURES\tBACKUPS")
			for _, e := range parsed.Experts {
				status := "available"
				if e.Quarantined {
					status = "quarantined"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					e.Role, e.Model, status, e.FailureCount, strings.Join(e.Backups, ", "))
			}
			return w.Flush()
		},
	}
}
