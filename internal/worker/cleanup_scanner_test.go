package worker

import (
	"context"
	"testing"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/orchestrator"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/testutil"
)

func TestCleanupScanner_ReportsWithoutDeleting(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	inventory := testutil.NewStaticInventory()
	inventory.Resources[resource.KindBastionHost] = []resource.Descriptor{
		{
			Name:              "bastion-eastus2",
			Kind:              resource.KindBastionHost,
			Region:            "eastus2",
			ResourceGroup:     "rg-fleet",
			SKU:               "Basic",
			ProvisioningState: resource.StateSucceeded,
		},
	}

	cleaner := orchestrator.NewCleaner(provisioner, testutil.NewRecordingInteraction(), inventory, logger.Nop())
	scanner := NewCleanupScanner(cleaner, "@hourly", logger.Nop())

	scanner.scan(context.Background())

	report := scanner.LastReport()
	if report == nil {
		t.Fatal("scan left no report")
	}
	if len(report.Orphans) != 1 {
		t.Fatalf("report has %d orphans, want 1", len(report.Orphans))
	}
	if report.MonthlyWaste != 143.65 {
		t.Errorf("MonthlyWaste = %.2f, want 143.65", report.MonthlyWaste)
	}
	if len(provisioner.DeleteCalls()) != 0 {
		t.Errorf("scanner issued %d deletions, want 0", len(provisioner.DeleteCalls()))
	}
}

func TestCleanupScanner_KeepsLastReportOnFailure(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	inventory := testutil.NewStaticInventory()

	cleaner := orchestrator.NewCleaner(provisioner, testutil.NewRecordingInteraction(), inventory, logger.Nop())
	scanner := NewCleanupScanner(cleaner, "@hourly", logger.Nop())

	scanner.scan(context.Background())
	first := scanner.LastReport()
	if first == nil {
		t.Fatal("scan left no report")
	}

	inventory.ResourcesErr = context.DeadlineExceeded
	scanner.scan(context.Background())

	if scanner.LastReport() != first {
		t.Error("failed sweep replaced the last good report")
	}
}
