package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

func newHealthCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check session storage and portal API reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.load(cmd.Context())
			if err != nil {
				return err
			}

			status := app.Health.CheckHealth(cmd.Context())
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
			} else {
				for _, name := range status.Names() {
					s := status.Services[name]
					fmt.Fprintf(out, "%-16s %-10s %s %s\n", name, s.Status, s.Message, s.Latency)
				}
			}

			if !status.Healthy() {
				return fmt.Errorf("%s", locale.Get("service_unhealthy"))
			}
			if !asJSON {
				fmt.Fprintln(out, locale.Get("service_healthy"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
