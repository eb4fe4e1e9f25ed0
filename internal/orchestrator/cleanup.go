package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetgate/fleetgate/internal/cost"
	"github.com/fleetgate/fleetgate/internal/domain/cleanup"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	apperrors "github.com/fleetgate/fleetgate/internal/pkg/errors"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/pkg/metrics"
)

// ConfirmToken is the exact token an operator must type to approve a
// cleanup sweep. Anything else aborts with zero changes.
const ConfirmToken = "delete"

// auxiliaryPatterns are the conventional names probed for a bastion's
// public IP when the exact name was not recorded at creation time.
// Pattern probing is a fallback; newly created hosts tag their IP name.
var auxiliaryPatterns = []string{"%s-pip", "%s-ip", "pip-%s"}

// Cleaner finds provisioned resources no live same-region VM still
// needs and deletes them after confirmation, reporting savings. It is
// driven by current fleet state, never by a provisioning run's ledger.
type Cleaner struct {
	provisioner   resource.Provisioner
	interaction   resource.Interaction
	inventory     resource.Inventory
	logger        *logger.Logger
	resourceGroup string
	region        string
	dryRun        bool
}

// CleanerOption configures a Cleaner
type CleanerOption func(*Cleaner)

// WithScope limits detection to a resource group and, when region is
// not AllRegions, a single region.
func WithScope(resourceGroup, region string) CleanerOption {
	return func(c *Cleaner) {
		c.resourceGroup = resourceGroup
		c.region = region
	}
}

// WithCleanerDryRun makes cleanup report what it would delete without
// issuing any Provisioner calls.
func WithCleanerDryRun(dryRun bool) CleanerOption {
	return func(c *Cleaner) { c.dryRun = dryRun }
}

// NewCleaner creates a cleanup orchestrator
func NewCleaner(p resource.Provisioner, ia resource.Interaction, inv resource.Inventory, log *logger.Logger, opts ...CleanerOption) *Cleaner {
	c := &Cleaner{
		provisioner: p,
		interaction: ia,
		inventory:   inv,
		logger:      log,
		region:      resource.AllRegions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectOrphans scans the fleet for resources of a kind that exist but
// are no longer referenced by any live, same-region VM. Detection
// failures propagate as typed discovery errors: nothing safe can be
// done without current truth.
func (c *Cleaner) DetectOrphans(ctx context.Context, kind resource.Kind) ([]cleanup.OrphanedResource, error) {
	if kind != resource.KindBastionHost {
		return nil, apperrors.Internal(fmt.Sprintf("orphan detection not supported for %s", kind), nil)
	}

	hosts, err := c.inventory.ListResources(ctx, kind, c.region)
	if err != nil {
		return nil, apperrors.Discovery(string(kind), err)
	}

	vms, err := c.inventory.ListVMs(ctx, resource.AllRegions)
	if err != nil {
		return nil, apperrors.Discovery("vms", err)
	}

	// A VM with no directly reachable public address depends on the
	// bastion in its region.
	dependentByRegion := make(map[string]int)
	for _, vm := range vms {
		if !vm.HasPublicAddress {
			dependentByRegion[strings.ToLower(vm.Region)]++
		}
	}

	var orphans []cleanup.OrphanedResource
	for _, host := range hosts {
		// A host still provisioning or failed is never offered for
		// cleanup.
		if host.ProvisioningState != resource.StateSucceeded {
			c.logger.WithFields(map[string]interface{}{
				"name":  host.Name,
				"state": host.ProvisioningState,
			}).Debug("Skipping bastion host not in succeeded state")
			continue
		}
		if dependentByRegion[strings.ToLower(host.Region)] > 0 {
			continue
		}
		orphans = append(orphans, cleanup.OrphanedResource{
			Name:          host.Name,
			ResourceGroup: host.ResourceGroup,
			Region:        host.Region,
			SKU:           host.SKU,
			MonthlyCost:   cost.BastionMonthly(host.SKU),
		})
	}

	metrics.SetOrphansDetected(string(kind), float64(len(orphans)))
	c.logger.WithFields(map[string]interface{}{
		"kind":    kind,
		"hosts":   len(hosts),
		"orphans": len(orphans),
	}).Info("Completed orphan scan")
	return orphans, nil
}

// CleanupOrphans detects orphaned bastion hosts and deletes them.
// Without force the operator sees the full list with total savings and
// must type the exact confirmation token; any other input aborts with
// zero changes and no error. One failed deletion never aborts the rest.
func (c *Cleaner) CleanupOrphans(ctx context.Context, force bool) ([]cleanup.Result, error) {
	orphans, err := c.DetectOrphans(ctx, resource.KindBastionHost)
	if err != nil {
		return nil, err
	}
	if len(orphans) == 0 {
		c.interaction.Info("no orphaned bastion hosts found")
		return nil, nil
	}

	decision := c.decide(orphans, force)
	if !decision.Approved {
		c.interaction.Info("cleanup cancelled, no resources were deleted")
		return nil, nil
	}

	var results []cleanup.Result
	var realized float64
	for _, orphan := range orphans {
		result := c.cleanupOne(ctx, orphan.Name, orphan.Region, orphan.ResourceGroup, orphan.MonthlyCost)
		if result.Successful() {
			realized += result.EstimatedSavings
		}
		results = append(results, result)
	}

	c.interaction.Info(fmt.Sprintf("cleanup finished: %d of %d deleted, $%.2f/month saved",
		countSuccessful(results), len(results), realized))
	metrics.AddRealizedSavings(realized)
	return results, nil
}

// CleanupOne deletes a single bastion host and its auxiliary public IP
// by name. The SKU, and with it the savings figure, is resolved from
// the live resource before deletion.
func (c *Cleaner) CleanupOne(ctx context.Context, name, region string) cleanup.Result {
	sku := ""
	if !c.dryRun {
		if desc, err := c.provisioner.Exists(ctx, resource.KindBastionHost, c.selector(name, c.resourceGroup, region)); err == nil && desc != nil {
			sku = desc.SKU
		}
	}
	return c.cleanupOne(ctx, name, region, c.resourceGroup, cost.BastionMonthly(sku))
}

// decide builds the cleanup decision, prompting unless forced
func (c *Cleaner) decide(orphans []cleanup.OrphanedResource, force bool) cleanup.Decision {
	var total float64
	names := make([]string, 0, len(orphans))
	for _, o := range orphans {
		names = append(names, o.Name)
		total += o.MonthlyCost
	}

	if !force {
		c.interaction.Warn(fmt.Sprintf("found %d orphaned bastion host(s):", len(orphans)))
		for _, o := range orphans {
			c.interaction.Info(fmt.Sprintf("  %s  region=%s  sku=%s  $%.2f/month",
				o.Name, o.Region, o.SKU, o.MonthlyCost))
		}
		prompt := fmt.Sprintf("deleting these frees $%.2f/month; type %q to proceed", total, ConfirmToken)
		if !c.interaction.Confirm(prompt, ConfirmToken) {
			return cleanup.Decision{}
		}
	}

	return cleanup.Decision{
		Approved:     true,
		Names:        names,
		TotalSavings: total,
	}
}

// cleanupOne deletes the primary resource and best-effort deletes its
// auxiliary public IP. Auxiliary failure is surfaced but the primary
// deletion and its savings stand.
func (c *Cleaner) cleanupOne(ctx context.Context, name, region, resourceGroup string, monthlyCost float64) cleanup.Result {
	result := cleanup.Result{
		Name:             name,
		Region:           region,
		EstimatedSavings: monthlyCost,
	}

	if c.dryRun {
		result.DryRun = true
		result.Deleted = append(result.Deleted, name)
		c.interaction.Info(fmt.Sprintf("dry run: would delete %s %q ($%.2f/month)",
			resource.KindBastionHost, name, monthlyCost))
		return result
	}

	if err := c.provisioner.Delete(ctx, resource.KindBastionHost, c.selector(name, resourceGroup, region)); err != nil {
		result.Failed = append(result.Failed, name)
		result.Errors = append(result.Errors, apperrors.Deletion(name, err).Error())
		result.EstimatedSavings = 0
		c.logger.WithFields(map[string]interface{}{
			"name":   name,
			"region": region,
		}).ErrorWithErr(err, "Failed to delete bastion host")
		metrics.RecordDeletion(string(resource.KindBastionHost), "failed")
		return result
	}
	result.Deleted = append(result.Deleted, name)
	metrics.RecordDeletion(string(resource.KindBastionHost), "deleted")

	c.deleteAuxiliaryIP(ctx, name, region, resourceGroup, &result)
	return result
}

// deleteAuxiliaryIP probes conventional names for the bastion's public
// IP and deletes the first match. The exact name is not recorded for
// hosts created by earlier tooling, so this remains a heuristic.
func (c *Cleaner) deleteAuxiliaryIP(ctx context.Context, name, region, resourceGroup string, result *cleanup.Result) {
	for _, pattern := range auxiliaryPatterns {
		candidate := fmt.Sprintf(pattern, name)
		desc, err := c.provisioner.Exists(ctx, resource.KindPublicIP, c.selector(candidate, resourceGroup, region))
		if err != nil || desc == nil {
			continue
		}
		if err := c.provisioner.Delete(ctx, resource.KindPublicIP, c.selector(candidate, resourceGroup, region)); err != nil {
			// The primary deletion stands; the stray IP is surfaced
			// for manual follow-up.
			result.Errors = append(result.Errors,
				apperrors.Deletion(candidate, err).Error())
			metrics.RecordDeletion(string(resource.KindPublicIP), "failed")
			return
		}
		result.Deleted = append(result.Deleted, candidate)
		metrics.RecordDeletion(string(resource.KindPublicIP), "deleted")
		return
	}
}

func (c *Cleaner) selector(name, resourceGroup, region string) resource.Selector {
	if resourceGroup == "" {
		resourceGroup = c.resourceGroup
	}
	return resource.Selector{
		Name:          name,
		ResourceGroup: resourceGroup,
		Region:        region,
	}
}

func countSuccessful(results []cleanup.Result) int {
	n := 0
	for _, r := range results {
		if r.Successful() {
			n++
		}
	}
	return n
}
