package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the stack in reverse dependency order",
	Long: `Stop every running service in mirror wave order, gracefully first.
Anything still running after every wave has been processed receives one
forced-stop sweep. down never fails on an individual stubborn service;
it reports what, if anything, survived the sweep.`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

func runDown(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}
	ctrl, err := newController(st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := ctrl.Down(ctx)
	if err != nil {
		return err
	}

	if len(rep.StillRunning) > 0 {
		log.Warn("services survived the forced-stop sweep", "services", rep.StillRunning)
	} else {
		log.Info("stack down", "stack", st.Name)
	}
	return nil
}
