package resource

import "context"

// Provisioner performs the low-level cloud calls that create, find and
// delete shared resources. It is treated as opaque; retries, if any,
// belong to the implementation, never to the callers in this module.
type Provisioner interface {
	// Exists looks up a matching resource. A nil descriptor with a
	// nil error means no match.
	Exists(ctx context.Context, kind Kind, selector Selector) (*Descriptor, error)

	// Create provisions a resource and returns its descriptor.
	Create(ctx context.Context, kind Kind, params CreateParams) (*Descriptor, error)

	// Delete removes a resource. Deleting a resource that is already
	// gone is not an error.
	Delete(ctx context.Context, kind Kind, selector Selector) error
}

// ChoiceOption is one selectable entry in an operator prompt. The
// monthly cost accompanies the option so the operator always sees the
// price of what they are about to approve.
type ChoiceOption struct {
	Label       string
	Value       string
	MonthlyCost float64
}

// Interaction is the operator-facing surface. Production renders to a
// terminal; tests use a recording double.
type Interaction interface {
	// Choice presents options and returns the selected value.
	Choice(prompt string, options []ChoiceOption) (string, error)

	// Confirm asks for an exact confirmation token. Anything else,
	// including an explicit cancel, returns false.
	Confirm(prompt, expectedToken string) bool

	Info(msg string)
	Warn(msg string)
}

// Estimate is a cost estimation result
type Estimate struct {
	Monthly    float64            `json:"monthly"`
	Hourly     float64            `json:"hourly"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Confidence string             `json:"confidence,omitempty"`
}

// CostEstimator converts a resource description into a dollar figure.
// It is optional; when absent the orchestrator falls back to fixed
// per-kind defaults so the decision flow never blocks.
type CostEstimator interface {
	Estimate(ctx context.Context, desc Descriptor) (Estimate, error)
}

// VM is a fleet inventory entry
type VM struct {
	Name             string `json:"name"`
	Region           string `json:"region"`
	HasPublicAddress bool   `json:"has_public_address"`
}

// AllRegions selects every region in inventory queries
const AllRegions = "*"

// Inventory lists the current fleet and provisioned resources. The
// cleanup orchestrator is driven by this, never by a provisioning
// run's ledger.
type Inventory interface {
	// ListVMs lists VMs in a region, or all regions for AllRegions.
	ListVMs(ctx context.Context, region string) ([]VM, error)

	// ListResources lists provisioned resources of a kind in a
	// region, or all regions for AllRegions.
	ListResources(ctx context.Context, kind Kind, region string) ([]Descriptor, error)
}
