package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"golang-alerting/internal/service"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/utils"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var tickFlags struct {
	tenant      string
	now         string
	trigger     bool
	dryRun      bool
	maxTriggers int
	requestedBy string
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate one tenant's schedules once and print the result",
	Long: "Runs a single tick against the configured fixtures. With --trigger every " +
		"admitted schedule is also started and its outcome recorded in history.",
	RunE: runTick,
}

func init() {
	tickCmd.Flags().StringVar(&tickFlags.tenant, "tenant", "", "tenant id to evaluate")
	tickCmd.Flags().StringVar(&tickFlags.now, "now", "", "evaluation instant in RFC 3339, defaults to the current time")
	tickCmd.Flags().BoolVar(&tickFlags.trigger, "trigger", false, "start every trigger candidate")
	tickCmd.Flags().BoolVar(&tickFlags.dryRun, "dry-run", false, "mark candidates as dry runs")
	tickCmd.Flags().IntVar(&tickFlags.maxTriggers, "max-triggers", 0, "cap on candidates per tick, 0 uses the configured value")
	tickCmd.Flags().StringVar(&tickFlags.requestedBy, "requested-by", "", "requester recorded on started executions")
	_ = tickCmd.MarkFlagRequired("tenant")
}

func parseNowFlag(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("invalid --now %q: %w", v, err)
	}
	return &t, nil
}

func runTick(cmd *cobra.Command, args []string) error {
	if !utils.ValidIdentifier(tickFlags.tenant) {
		return fmt.Errorf("invalid --tenant %q", tickFlags.tenant)
	}
	at, err := parseNowFlag(tickFlags.now)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("failed to create app dependency: %w", err)
	}
	defer appDep.Close()

	services, err := appDep.NewServices()
	if err != nil {
		return err
	}

	opts := service.TickOptions{
		MaxTriggers: tickFlags.maxTriggers,
		DryRun:      tickFlags.dryRun,
		RequestedBy: tickFlags.requestedBy,
	}
	now := services.Now(at)
	ctx = logger.ContextWithFields(ctx, logger.StringField("command", "tick"))

	var out interface{}
	if tickFlags.trigger {
		out = services.Run(ctx, tickFlags.tenant, now, opts)
	} else {
		out = services.ScheduleRunner.TickTenant(ctx, tickFlags.tenant, now, opts)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
