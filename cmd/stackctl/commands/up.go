package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the stack in dependency order",
	Long: `Start every service in dependency waves, gating each wave on its
members' readiness checks before the next wave launches.

A readiness timeout or launch failure aborts the run and leaves the
services that already started running, so the partial stack can be
inspected; run "stackctl down" to tear it down.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
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

	rep, err := ctrl.Up(ctx)
	if err != nil {
		if rep != nil && rep.Failed != "" {
			log.Error("startup aborted",
				"service", rep.Failed, "wave", rep.Wave, "error", err)
		} else {
			log.Error("startup aborted", "error", err)
		}
		return err
	}

	log.Info("stack up", "stack", st.Name, "services", len(st.Services))
	return nil
}
