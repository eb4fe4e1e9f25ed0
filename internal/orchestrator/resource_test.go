package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fleetgate/fleetgate/internal/domain/ledger"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	apperrors "github.com/fleetgate/fleetgate/internal/pkg/errors"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/testutil"
)

func bastionNeed() resource.Need {
	return resource.Need{
		Kind:          resource.KindBastionHost,
		Region:        "eastus2",
		ResourceGroup: "rg-fleet",
		VNetName:      "vnet-fleet",
	}
}

func TestOrchestrator_Ensure_ExistingResource(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	prov.AddExisting(&resource.Descriptor{
		ID:     "/sub/rg-fleet/bastion-eastus2",
		Name:   "bastion-eastus2",
		Kind:   resource.KindBastionHost,
		Region: "eastus2",
	})
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	decision, err := o.Ensure(context.Background(), bastionNeed())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if decision.Action != resource.ActionUseExisting {
		t.Errorf("Ensure() action = %v, want %v", decision.Action, resource.ActionUseExisting)
	}
	if decision.ResourceName != "bastion-eastus2" {
		t.Errorf("Ensure() resource name = %q, want %q", decision.ResourceName, "bastion-eastus2")
	}
	if len(ia.Choices) != 0 {
		t.Errorf("Ensure() presented %d choice prompts, want 0", len(ia.Choices))
	}
	if len(ia.Infos) == 0 {
		t.Error("Ensure() emitted no informational notice for existing resource")
	}
}

func TestOrchestrator_Ensure_SameRegion(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	need := resource.Need{
		Kind:           resource.KindNFSPrivateEndpoint,
		Region:         "westus3",
		ResourceGroup:  "rg-fleet",
		StorageAccount: "fleetnfs01",
		StorageRegion:  "westus3",
	}

	decision, err := o.Ensure(context.Background(), need)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if decision.Action != resource.ActionUseExisting {
		t.Errorf("Ensure() action = %v, want %v", decision.Action, resource.ActionUseExisting)
	}
	if decision.MonthlyEstimate != 0 {
		t.Errorf("Ensure() monthly estimate = %v, want 0 for same-region need", decision.MonthlyEstimate)
	}
	if len(ia.Choices) != 0 {
		t.Errorf("Ensure() presented %d cost-bearing choices for same-region need, want 0", len(ia.Choices))
	}
	if len(prov.Calls) != 0 {
		t.Errorf("Ensure() made %d provisioner calls for same-region need, want 0", len(prov.Calls))
	}
}

func TestOrchestrator_Ensure_MissingDependency(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	need := resource.Need{
		Kind:          resource.KindBastionHost,
		Region:        "eastus2",
		ResourceGroup: "rg-fleet",
	}

	_, err := o.Ensure(context.Background(), need)
	if err == nil {
		t.Fatal("Ensure() expected dependency error, got nil")
	}
	if !apperrors.IsDependency(err) {
		t.Errorf("Ensure() error = %v, want dependency error", err)
	}
	if !strings.Contains(err.Error(), "vnet_id or vnet_name") {
		t.Errorf("Ensure() error %q does not name the missing fields", err.Error())
	}
	if len(prov.Calls) != 0 || len(ia.Choices) != 0 || len(ia.Infos) != 0 {
		t.Error("Ensure() touched collaborators before validation failed")
	}
}

func TestOrchestrator_Ensure_ChoiceMapping(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		wantAction resource.Action
		wantName   string
		wantMeta   map[string]string
	}{
		{
			name:       "operator approves creation",
			answer:     "create",
			wantAction: resource.ActionCreate,
			wantName:   "bastion-eastus2",
		},
		{
			name:       "operator picks public IP fallback",
			answer:     "fallback",
			wantAction: resource.ActionSkip,
			wantMeta:   map[string]string{"fallback": "public-ip"},
		},
		{
			name:       "operator cancels",
			answer:     "cancel",
			wantAction: resource.ActionCancel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := testutil.NewMockProvisioner()
			ia := testutil.NewRecordingInteraction(tt.answer)
			o := New(prov, ia, logger.Nop())

			decision, err := o.Ensure(context.Background(), bastionNeed())
			if err != nil {
				t.Fatalf("Ensure() error = %v", err)
			}

			if decision.Action != tt.wantAction {
				t.Errorf("Ensure() action = %v, want %v", decision.Action, tt.wantAction)
			}
			if decision.ResourceName != tt.wantName {
				t.Errorf("Ensure() resource name = %q, want %q", decision.ResourceName, tt.wantName)
			}
			for k, v := range tt.wantMeta {
				if decision.Metadata[k] != v {
					t.Errorf("Ensure() metadata[%q] = %q, want %q", k, decision.Metadata[k], v)
				}
			}
			if tt.wantAction == resource.ActionCancel && decision.ResourceName != "" {
				t.Error("Ensure() cancel decision carries a resource name")
			}
		})
	}
}

func TestOrchestrator_Ensure_CostAccompaniesChoice(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction("create")
	o := New(prov, ia, logger.Nop(),
		WithCostEstimator(testutil.StaticEstimator{Monthly: 99.50}))

	decision, err := o.Ensure(context.Background(), bastionNeed())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if decision.MonthlyEstimate != 99.50 {
		t.Errorf("Ensure() monthly estimate = %v, want 99.50", decision.MonthlyEstimate)
	}
	if len(ia.Choices) != 1 {
		t.Fatalf("Ensure() recorded %d choice prompts, want 1", len(ia.Choices))
	}

	// The create option shown to the operator must carry the cost
	var createCost float64
	var hasCancel bool
	for _, opt := range ia.Choices[0].Options {
		if opt.Value == "create" {
			createCost = opt.MonthlyCost
		}
		if opt.Value == "cancel" {
			hasCancel = true
		}
	}
	if createCost != 99.50 {
		t.Errorf("choice create option cost = %v, want 99.50", createCost)
	}
	if !hasCancel {
		t.Error("choice options do not include cancel")
	}
}

func TestOrchestrator_Ensure_EstimatorFailureFallsBack(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction("create")
	o := New(prov, ia, logger.Nop(),
		WithCostEstimator(testutil.StaticEstimator{Err: errors.New("pricing API down")}))

	decision, err := o.Ensure(context.Background(), bastionNeed())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if decision.MonthlyEstimate != 143.65 {
		t.Errorf("Ensure() monthly estimate = %v, want built-in default 143.65", decision.MonthlyEstimate)
	}
}

func TestOrchestrator_Ensure_CrossRegionLabelled(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction("create")
	o := New(prov, ia, logger.Nop())

	need := resource.Need{
		Kind:           resource.KindNFSPrivateEndpoint,
		Region:         "westus3",
		ResourceGroup:  "rg-fleet",
		StorageAccount: "fleetnfs01",
		StorageRegion:  "eastus2",
	}

	decision, err := o.Ensure(context.Background(), need)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if decision.Action != resource.ActionCreate {
		t.Fatalf("Ensure() action = %v, want create", decision.Action)
	}
	if decision.Metadata["cross_region"] != "true" {
		t.Error("Ensure() cross-region decision missing cross_region metadata")
	}
	if len(ia.Choices) != 1 || !strings.Contains(ia.Choices[0].Prompt, "cross-region") {
		t.Error("Ensure() cross-region prompt not labelled as cross-region")
	}
}

func TestOrchestrator_Rollback_ReverseDependencyOrder(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	var undone []string
	reversal := func(name string) ledger.ReversalFunc {
		return func(ctx context.Context) error {
			undone = append(undone, name)
			return nil
		}
	}

	a := o.Track(resource.KindPublicIP, "ip-1", "bastion-pip", nil, reversal("A"), nil)
	o.Track(resource.KindBastionHost, "bh-1", "bastion-eastus2", []string{a.ID}, reversal("B"), nil)

	o.Rollback(context.Background(), "create failed")

	if len(undone) != 2 || undone[0] != "B" || undone[1] != "A" {
		t.Errorf("Rollback() order = %v, want [B A]", undone)
	}
}

func TestOrchestrator_Rollback_IdempotentForTerminalEntries(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	calls := 0
	o.Track(resource.KindBastionHost, "bh-1", "bastion-eastus2", nil,
		func(ctx context.Context) error { calls++; return nil }, nil)

	o.Rollback(context.Background(), "first")
	o.Rollback(context.Background(), "second")

	if calls != 1 {
		t.Errorf("Rollback() executed reversal %d times, want 1", calls)
	}
	summary := o.Summary()
	if summary.ByStatus[ledger.StatusRolledBack] != 1 {
		t.Errorf("Rollback() rolled back = %d, want 1", summary.ByStatus[ledger.StatusRolledBack])
	}
}

func TestOrchestrator_Rollback_FailureDoesNotStopSiblings(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	aCalled := false
	a := o.Track(resource.KindPublicIP, "ip-1", "bastion-pip", nil,
		func(ctx context.Context) error { aCalled = true; return nil }, nil)
	b := o.Track(resource.KindBastionHost, "bh-1", "bastion-eastus2", []string{a.ID},
		func(ctx context.Context) error { return errors.New("delete refused") }, nil)

	o.Rollback(context.Background(), "")

	if b.Status != ledger.StatusFailed {
		t.Errorf("failed entry status = %v, want %v", b.Status, ledger.StatusFailed)
	}
	if !aCalled || a.Status != ledger.StatusRolledBack {
		t.Errorf("sibling rollback skipped: called=%v status=%v", aCalled, a.Status)
	}

	// Failed is terminal: a second rollback must not retry it
	o.Rollback(context.Background(), "")
	if b.Status != ledger.StatusFailed {
		t.Errorf("failed entry status after second rollback = %v, want %v", b.Status, ledger.StatusFailed)
	}
}

func TestOrchestrator_Rollback_NoReversalWarnsForManualCleanup(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	entry := o.Track(resource.KindVNetPeering, "peer-1", "fleet-to-storage", nil, nil, nil)
	o.Rollback(context.Background(), "")

	if entry.Status != ledger.StatusRolledBack {
		t.Errorf("entry status = %v, want %v", entry.Status, ledger.StatusRolledBack)
	}
	found := false
	for _, w := range ia.Warns {
		if strings.Contains(w, "manual cleanup") {
			found = true
		}
	}
	if !found {
		t.Errorf("Rollback() warnings %v missing manual cleanup flag", ia.Warns)
	}
}

func TestOrchestrator_Rollback_DryRunSkipsReversal(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop(), WithDryRun(true))

	called := false
	entry := o.Track(resource.KindBastionHost, "bh-1", "bastion-eastus2", nil,
		func(ctx context.Context) error { called = true; return nil }, nil)

	o.Rollback(context.Background(), "dry run check")

	if called {
		t.Error("Rollback() executed reversal in dry-run mode")
	}
	if entry.Status != ledger.StatusRolledBack {
		t.Errorf("entry status = %v, want %v", entry.Status, ledger.StatusRolledBack)
	}
}

func TestOrchestrator_Summary(t *testing.T) {
	prov := testutil.NewMockProvisioner()
	ia := testutil.NewRecordingInteraction()
	o := New(prov, ia, logger.Nop())

	a := o.Track(resource.KindPublicIP, "ip-1", "bastion-pip", nil, nil, nil)
	o.Track(resource.KindBastionHost, "bh-1", "bastion-eastus2", []string{a.ID},
		func(ctx context.Context) error { return errors.New("boom") }, nil)
	o.Rollback(context.Background(), "")

	summary := o.Summary()
	if summary.Total != 2 {
		t.Errorf("Summary() total = %d, want 2", summary.Total)
	}
	if summary.ByStatus[ledger.StatusFailed] != 1 || summary.ByStatus[ledger.StatusRolledBack] != 1 {
		t.Errorf("Summary() by status = %v", summary.ByStatus)
	}
	if summary.ByKind[resource.KindBastionHost] != 1 || summary.ByKind[resource.KindPublicIP] != 1 {
		t.Errorf("Summary() by kind = %v", summary.ByKind)
	}
	if len(summary.Resources) != 2 {
		t.Errorf("Summary() resources = %d, want 2", len(summary.Resources))
	}
}
