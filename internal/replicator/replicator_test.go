package replicator

import (
	"context"
	"errors"
	"testing"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/testutil"
)

func ipUnit(name, region string) Unit {
	return Unit{
		Kind: resource.KindPublicIP,
		Params: resource.CreateParams{
			Name:          name,
			ResourceGroup: "rg-fleet",
			Region:        region,
		},
	}
}

func TestReplicator_AllSucceed(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	rep := New(provisioner, logger.Nop(), WithWorkers(3), WithRateLimit(1000, 1000))

	units := []Unit{
		ipUnit("pip-a", "eastus2"),
		ipUnit("pip-b", "eastus2"),
		ipUnit("pip-c", "westus3"),
	}

	report := rep.Replicate(context.Background(), units)

	if report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("Replicate() = %d succeeded / %d failed, want 3/0", report.Succeeded, report.Failed)
	}
	if len(provisioner.CreateCalls()) != 3 {
		t.Errorf("provisioner saw %d creates, want 3", len(provisioner.CreateCalls()))
	}
	for i, res := range report.Results {
		if res.Name != units[i].Params.Name {
			t.Errorf("results[%d].Name = %q, want %q (input order)", i, res.Name, units[i].Params.Name)
		}
		if res.Descriptor == nil {
			t.Errorf("results[%d] missing descriptor", i)
		}
	}
}

func TestReplicator_IsolatesUnitFailures(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	provisioner.CreateErrs["pip-b"] = errors.New("quota exceeded")
	rep := New(provisioner, logger.Nop(), WithWorkers(2), WithRateLimit(1000, 1000))

	units := []Unit{
		ipUnit("pip-a", "eastus2"),
		ipUnit("pip-b", "eastus2"),
		ipUnit("pip-c", "eastus2"),
	}

	report := rep.Replicate(context.Background(), units)

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("Replicate() = %d succeeded / %d failed, want 2/1", report.Succeeded, report.Failed)
	}
	if report.Results[1].Err == nil {
		t.Error("failed unit did not carry its error")
	}
	if report.Results[0].Err != nil || report.Results[2].Err != nil {
		t.Error("sibling units were affected by one unit's failure")
	}
	if len(provisioner.CreateCalls()) != 3 {
		t.Errorf("provisioner saw %d creates, want 3 (failure must not stop siblings)", len(provisioner.CreateCalls()))
	}
	if got := report.Errors(); len(got) != 1 {
		t.Errorf("Errors() returned %d errors, want 1", len(got))
	}
}

func TestReplicator_EmptyBatch(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	rep := New(provisioner, logger.Nop())

	report := rep.Replicate(context.Background(), nil)

	if report.Succeeded != 0 || report.Failed != 0 {
		t.Errorf("Replicate(nil) = %d/%d, want 0/0", report.Succeeded, report.Failed)
	}
	if len(provisioner.Calls) != 0 {
		t.Errorf("empty batch touched the provisioner %d times", len(provisioner.Calls))
	}
}

func TestReplicator_CancelledContext(t *testing.T) {
	provisioner := testutil.NewMockProvisioner()
	// Zero-burst limiter: every Wait blocks until the context ends.
	rep := New(provisioner, logger.Nop(), WithWorkers(1), WithRateLimit(1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := rep.Replicate(ctx, []Unit{ipUnit("pip-a", "eastus2")})

	if report.Failed != 1 {
		t.Fatalf("Replicate() under cancelled context failed %d, want 1", report.Failed)
	}
	if len(provisioner.CreateCalls()) != 0 {
		t.Error("cancelled context still reached the provisioner")
	}
}
