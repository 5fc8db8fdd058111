package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stackctl/stackctl/internal/cli/output"
	"github.com/stackctl/stackctl/internal/controller"
	"github.com/stackctl/stackctl/internal/manager"
	"github.com/stackctl/stackctl/internal/ready"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each service's live running and health state",
	Long: `Query every declared service's running state and, where a readiness
check is declared, classify it healthy or unhealthy with a single
non-blocking probe.

The exit code is 0 regardless of health; it is non-zero only when the
query itself could not be performed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table|json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}
	mgr, err := manager.NewDocker(st.Network, log)
	if err != nil {
		return &controller.TransportError{Err: err}
	}

	reporter := &controller.Reporter{
		Stack:   st,
		Manager: mgr,
		Prober:  &ready.Prober{Log: log},
	}

	rep, err := reporter.Snapshot(context.Background())
	if err != nil {
		return err
	}

	switch statusOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "table":
		rows := make([][]string, 0, len(rep.Services))
		for _, svc := range rep.Services {
			rows = append(rows, []string{
				svc.Name,
				upDown(svc.Running),
				healthMark(svc),
				svc.Detail,
			})
		}
		output.Table(os.Stdout, []string{"SERVICE", "STATE", "HEALTH", "DETAIL"}, rows)
		return nil
	default:
		return fmt.Errorf("invalid output format %q", statusOutput)
	}
}

func upDown(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func healthMark(svc controller.ServiceHealth) string {
	switch {
	case !svc.Running:
		return "-"
	case svc.Healthy:
		return "healthy"
	default:
		return "unhealthy"
	}
}
