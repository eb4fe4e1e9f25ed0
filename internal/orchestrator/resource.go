package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetgate/fleetgate/internal/cost"
	"github.com/fleetgate/fleetgate/internal/domain/ledger"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	apperrors "github.com/fleetgate/fleetgate/internal/pkg/errors"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/pkg/metrics"
)

// Choice values presented to the operator
const (
	choiceCreate   = "create"
	choiceFallback = "fallback"
	choiceCancel   = "cancel"
)

// Orchestrator decides, per resource need, what action to take and
// records every resource the run creates into a dependency-ordered
// ledger so a failed multi-step run can be undone in reverse order.
//
// The ledger is private to the instance and lives only for one run.
// An Orchestrator is not safe for concurrent use; callers needing
// concurrent provisioning runs must use one instance per run.
type Orchestrator struct {
	provisioner resource.Provisioner
	interaction resource.Interaction
	estimator   resource.CostEstimator
	logger      *logger.Logger
	dryRun      bool

	entries []*ledger.TrackedResource
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCostEstimator sets an external cost estimator. Without one the
// built-in per-kind defaults are used.
func WithCostEstimator(e resource.CostEstimator) Option {
	return func(o *Orchestrator) { o.estimator = e }
}

// WithDryRun makes rollback mark entries as rolled back without
// executing their reversals.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// New creates an orchestrator for one provisioning run
func New(p resource.Provisioner, ia resource.Interaction, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provisioner: p,
		interaction: ia,
		logger:      log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ensure evaluates a resource need and returns the decision. It never
// provisions anything itself: on ActionCreate the caller performs the
// Provisioner call and then records the result with Track.
func (o *Orchestrator) Ensure(ctx context.Context, need resource.Need) (*resource.Decision, error) {
	if err := need.Validate(); err != nil {
		return nil, err
	}

	// A backing resource in the consumer's own region needs no bridge;
	// nothing to provision and nothing to charge for.
	if need.SameRegion() {
		o.interaction.Info(fmt.Sprintf("%s %q is in region %s; using direct access",
			resource.KindStorageAccount, need.StorageAccount, need.Region))
		decision := &resource.Decision{
			Action:       resource.ActionUseExisting,
			ResourceName: need.StorageAccount,
			Metadata:     map[string]string{"access": "direct"},
		}
		metrics.RecordDecision(string(decision.Action), string(need.Kind))
		return decision, nil
	}

	existing, err := o.provisioner.Exists(ctx, need.Kind, selectorFor(need))
	if err != nil {
		return nil, apperrors.Discovery(string(need.Kind), err)
	}
	if existing != nil {
		o.interaction.Info(fmt.Sprintf("found existing %s %q in %s, reusing it",
			need.Kind, existing.Name, existing.Region))
		decision := &resource.Decision{
			Action:       resource.ActionUseExisting,
			ResourceID:   existing.ID,
			ResourceName: existing.Name,
			Metadata:     existing.Tags,
		}
		metrics.RecordDecision(string(decision.Action), string(need.Kind))
		return decision, nil
	}

	estimate := o.estimateMonthly(ctx, need)
	name := proposedName(need)

	label := fmt.Sprintf("Create %s %q ($%.2f/month)", need.Kind, name, estimate)
	prompt := fmt.Sprintf("No %s found in %s for resource group %s", need.Kind, need.Region, need.ResourceGroup)
	if need.CrossRegion() {
		prompt = fmt.Sprintf("%s %q is in %s, cross-region from %s; a network bridge is required",
			resource.KindStorageAccount, need.StorageAccount, need.StorageRegion, need.Region)
		label = fmt.Sprintf("Create cross-region %s %q ($%.2f/month)", need.Kind, name, estimate)
	}

	options := []resource.ChoiceOption{
		{Label: label, Value: choiceCreate, MonthlyCost: estimate},
	}
	if fallbackKind, ok := need.Kind.SupportsFallback(); ok {
		options = append(options, resource.ChoiceOption{
			Label:       fmt.Sprintf("Use %s instead ($%.2f/month)", fallbackKind, cost.KindMonthly(fallbackKind)),
			Value:       choiceFallback,
			MonthlyCost: cost.KindMonthly(fallbackKind),
		})
	}
	options = append(options, resource.ChoiceOption{Label: "Cancel", Value: choiceCancel})

	value, err := o.interaction.Choice(prompt, options)
	if err != nil {
		return nil, apperrors.Internal("operator choice failed", err)
	}

	var decision *resource.Decision
	switch value {
	case choiceCreate:
		decision = &resource.Decision{
			Action:          resource.ActionCreate,
			ResourceName:    name,
			MonthlyEstimate: estimate,
		}
		if need.CrossRegion() {
			decision.Metadata = map[string]string{"cross_region": "true"}
		}
	case choiceFallback:
		fallbackKind, _ := need.Kind.SupportsFallback()
		decision = &resource.Decision{
			Action:   resource.ActionSkip,
			Metadata: map[string]string{"fallback": string(fallbackKind)},
		}
	default:
		decision = &resource.Decision{Action: resource.ActionCancel}
	}

	metrics.RecordDecision(string(decision.Action), string(need.Kind))
	return decision, nil
}

// Track appends a created resource to the run ledger. It never fails.
// dependsOn lists the entry IDs this resource depends on; callers must
// track dependencies before dependents. reversal may be nil when no
// safe automatic undo exists.
func (o *Orchestrator) Track(kind resource.Kind, id, name string, dependsOn []string, reversal ledger.ReversalFunc, metadata map[string]string) *ledger.TrackedResource {
	if id == "" {
		id = uuid.New().String()
	}
	entry := &ledger.TrackedResource{
		ID:        id,
		Name:      name,
		Kind:      kind,
		DependsOn: dependsOn,
		Reversal:  reversal,
		Status:    ledger.StatusCreated,
		Metadata:  metadata,
		TrackedAt: time.Now(),
	}
	o.entries = append(o.entries, entry)

	o.logger.WithFields(map[string]interface{}{
		"kind": kind,
		"name": name,
		"id":   id,
	}).Debug("Tracked resource")
	metrics.RecordTrackedResource(string(kind))
	return entry
}

// Rollback undoes the run in reverse dependency order. Entries still
// in the created state run their reversal; per-entry failures are
// recorded as failed and never stop the remaining entries. Rollback
// is best-effort cleanup, not a correctness guarantee, and never
// returns an error.
func (o *Orchestrator) Rollback(ctx context.Context, reason string) {
	if reason == "" {
		reason = "provisioning run failed"
	}

	for i := len(o.entries) - 1; i >= 0; i-- {
		entry := o.entries[i]
		if entry.Status != ledger.StatusCreated {
			continue
		}

		if entry.Reversal == nil {
			entry.Status = ledger.StatusRolledBack
			o.interaction.Warn(fmt.Sprintf("no reversal recorded for %s %q; manual cleanup required (%s)",
				entry.Kind, entry.Name, reason))
			metrics.RecordRollbackStep(string(entry.Status))
			continue
		}

		if o.dryRun {
			entry.Status = ledger.StatusRolledBack
			o.interaction.Warn(fmt.Sprintf("dry run: would undo %s %q (%s)",
				entry.Kind, entry.Name, reason))
			metrics.RecordRollbackStep(string(entry.Status))
			continue
		}

		o.interaction.Warn(fmt.Sprintf("rolling back %s %q: %s", entry.Kind, entry.Name, reason))
		if err := entry.Reversal(ctx); err != nil {
			entry.Status = ledger.StatusFailed
			o.logger.WithFields(map[string]interface{}{
				"kind": entry.Kind,
				"name": entry.Name,
			}).ErrorWithErr(err, "Rollback step failed, continuing with remaining entries")
			o.interaction.Warn(fmt.Sprintf("failed to undo %s %q; manual cleanup required: %v",
				entry.Kind, entry.Name, err))
		} else {
			entry.Status = ledger.StatusRolledBack
		}
		metrics.RecordRollbackStep(string(entry.Status))
	}
}

// Summary returns a read-only snapshot of the run ledger
func (o *Orchestrator) Summary() ledger.Summary {
	summary := ledger.Summary{
		Total:    len(o.entries),
		ByStatus: make(map[ledger.Status]int),
		ByKind:   make(map[resource.Kind]int),
	}
	for _, entry := range o.entries {
		summary.ByStatus[entry.Status]++
		summary.ByKind[entry.Kind]++
		summary.Resources = append(summary.Resources, *entry)
	}
	return summary
}

// estimateMonthly asks the configured estimator, falling back to the
// built-in table so the decision flow never blocks on its absence.
func (o *Orchestrator) estimateMonthly(ctx context.Context, need resource.Need) float64 {
	desc := resource.Descriptor{
		Kind:          need.Kind,
		Region:        need.Region,
		ResourceGroup: need.ResourceGroup,
	}
	if o.estimator != nil {
		if est, err := o.estimator.Estimate(ctx, desc); err == nil && est.Monthly > 0 {
			return est.Monthly
		} else if err != nil {
			o.logger.ErrorWithErr(err, "Cost estimation failed, using built-in default")
		}
	}
	return cost.KindMonthly(need.Kind)
}

// selectorFor builds the discovery selector for a need
func selectorFor(need resource.Need) resource.Selector {
	return resource.Selector{
		Name:          proposedName(need),
		ResourceGroup: need.ResourceGroup,
		Region:        need.Region,
	}
}

// proposedName derives the conventional name for a need's resource.
// Recording the convention here means cleanup can find auxiliary
// resources without guessing.
func proposedName(need resource.Need) string {
	switch need.Kind {
	case resource.KindBastionHost:
		return fmt.Sprintf("bastion-%s", need.Region)
	case resource.KindNFSPrivateEndpoint:
		return fmt.Sprintf("%s-pe", need.StorageAccount)
	default:
		return fmt.Sprintf("%s-%s", need.Kind, need.Region)
	}
}
