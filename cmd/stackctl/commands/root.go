// Package commands implements the stackctl CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stackctl/stackctl/internal/controller"
	"github.com/stackctl/stackctl/internal/manager"
	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

var (
	// Version is injected at build time.
	Version = "dev"

	stackFile string
	logLevel  string
	logFormat string

	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Bring up, inspect, and tear down the monitoring chatbot stack",
	Long: `stackctl manages one statically declared multi-service stack on a
single docker host: it sequences startup in dependency waves, gates each
wave on externally observable readiness, and tears the stack down in
mirror order with graceful-to-forced escalation.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the CLI. The caller maps the returned error to an exit
// code with ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&stackFile, "stack-file", "f", "stack.yaml", "stack definition file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", logFormat)
	}

	log = slog.New(handler)
	slog.SetDefault(log)
	return nil
}

// loadStack reads and validates the stack file.
func loadStack() (*stack.Stack, error) {
	return stack.Load(stackFile)
}

// newController wires the controller against the local docker daemon.
func newController(st *stack.Stack) (*controller.Controller, error) {
	mgr, err := manager.NewDocker(st.Network, log)
	if err != nil {
		return nil, err
	}
	return &controller.Controller{
		Stack:   st,
		Manager: mgr,
		Prober:  &ready.Prober{Log: log},
		Log:     log,
	}, nil
}
