package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/interaction"
	"github.com/fleetgate/fleetgate/internal/orchestrator"
	"github.com/fleetgate/fleetgate/internal/pkg/metrics"
	"github.com/fleetgate/fleetgate/internal/worker"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Find and reclaim shared resources no live VM still needs",
	}
	cmd.AddCommand(newCleanupScanCmd())
	cmd.AddCommand(newCleanupRunCmd())
	cmd.AddCommand(newCleanupWatchCmd())
	return cmd
}

func newCleanupScanCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List orphaned bastion hosts and the monthly waste",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cleaner, err := newCleaner(region)
			if err != nil {
				return err
			}

			orphans, err := cleaner.DetectOrphans(ctx, resource.KindBastionHost)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(orphans)
			}

			if len(orphans) == 0 {
				fmt.Println("No orphaned bastion hosts found.")
				return nil
			}

			table := NewTable("NAME", "REGION", "SKU", "MONTHLY COST")
			var total float64
			for _, o := range orphans {
				table.AddRow(o.Name, o.Region, o.SKU, fmt.Sprintf("$%.2f", o.MonthlyCost))
				total += o.MonthlyCost
			}
			table.Render()
			fmt.Printf("\nDeleting these would free $%.2f/month.\n", total)
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", resource.AllRegions, "limit the scan to one region")
	return cmd
}

func newCleanupRunCmd() *cobra.Command {
	var (
		region string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Delete orphaned bastion hosts after confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cleaner, err := newCleaner(region)
			if err != nil {
				return err
			}

			results, err := cleaner.CleanupOrphans(ctx, force)
			if err != nil {
				return err
			}
			if results == nil {
				return nil
			}

			if getOutputFormat() != "table" {
				return printOutput(results)
			}

			table := NewTable("NAME", "REGION", "DELETED", "SAVINGS", "STATUS")
			for _, r := range results {
				status := "deleted"
				if !r.Successful() {
					status = "failed"
				}
				if r.DryRun {
					status = "dry-run"
				}
				table.AddRow(r.Name, r.Region,
					strings.Join(r.Deleted, ", "),
					fmt.Sprintf("$%.2f", r.EstimatedSavings),
					formatStatus(status))
				for _, msg := range r.Errors {
					table.AddRow("", "", "", "", truncate(msg, 70))
				}
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", resource.AllRegions, "limit cleanup to one region")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func newCleanupWatchCmd() *cobra.Command {
	var (
		region   string
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled orphan sweeps, reporting only",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cleaner, err := newCleaner(region)
			if err != nil {
				return err
			}

			if schedule == "" {
				schedule = appConfig.Cleanup.ScanSchedule
			}

			if appConfig.Metrics.Enabled {
				go serveMetrics(appConfig.Metrics.Addr)
			}

			scanner := worker.NewCleanupScanner(cleaner, schedule, appLogger)
			return scanner.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&region, "region", resource.AllRegions, "limit sweeps to one region")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default from config)")
	return cmd
}

func newCleaner(region string) (*orchestrator.Cleaner, error) {
	prov, err := newProvisioner()
	if err != nil {
		return nil, err
	}
	inv, err := newInventory()
	if err != nil {
		return nil, err
	}
	return orchestrator.NewCleaner(prov, interaction.NewTerminal(), inv, appLogger,
		orchestrator.WithScope(appConfig.Azure.ResourceGroup, region),
		orchestrator.WithCleanerDryRun(dryRun || appConfig.Cleanup.DryRun)), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	appLogger.Infof("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		appLogger.ErrorWithErr(err, "Metrics endpoint stopped")
	}
}
