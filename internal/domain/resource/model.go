package resource

import (
	"strings"

	apperrors "github.com/fleetgate/fleetgate/internal/pkg/errors"
)

// Kind identifies a class of shared networking resource
type Kind string

// Resource kinds
const (
	KindBastionHost        Kind = "bastion-host"
	KindPublicIP           Kind = "public-ip"
	KindVirtualNetwork     Kind = "virtual-network"
	KindNFSPrivateEndpoint Kind = "nfs-private-endpoint"
	KindVNetPeering        Kind = "vnet-peering"
	KindPrivateDNSZone     Kind = "private-dns-zone"
	KindStorageAccount     Kind = "storage-account"
	KindVM                 Kind = "vm"
)

// Provisioning states as reported by the cloud provider
const (
	StateSucceeded = "Succeeded"
	StateUpdating  = "Updating"
	StateFailed    = "Failed"
)

// Descriptor describes a provisioned cloud resource
type Descriptor struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Kind              Kind              `json:"kind"`
	Region            string            `json:"region"`
	ResourceGroup     string            `json:"resource_group"`
	SKU               string            `json:"sku,omitempty"`
	ProvisioningState string            `json:"provisioning_state,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// Selector identifies a resource for lookup or deletion
type Selector struct {
	Name          string
	ResourceGroup string
	Region        string
}

// CreateParams carries the kind-specific inputs for provisioning
type CreateParams struct {
	Name          string
	ResourceGroup string
	Region        string

	// Networking
	VNetID     string
	SubnetID   string
	PublicIPID string

	// Peering
	RemoteVNetID string

	// Private endpoint
	StorageAccountID string

	Tags map[string]string
}

// Action is the outcome of evaluating a resource need
type Action string

// Decision actions
const (
	ActionCreate      Action = "create"
	ActionUseExisting Action = "use-existing"
	ActionSkip        Action = "skip"
	ActionCancel      Action = "cancel"
)

// Decision is the result of Orchestrator.Ensure for one need.
// Create and UseExisting always carry a non-empty resource name;
// Skip with a fallback carries fallback metadata; Cancel carries
// neither.
type Decision struct {
	Action          Action            `json:"action"`
	ResourceID      string            `json:"resource_id,omitempty"`
	ResourceName    string            `json:"resource_name,omitempty"`
	MonthlyEstimate float64           `json:"monthly_estimate,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Need is an immutable, per-request description of a shared resource
// a VM requires. Region is the consumer (VM) region; kind-specific
// fields identify the backing resource.
type Need struct {
	Kind          Kind
	Region        string
	ResourceGroup string

	// Bastion
	VNetID   string
	VNetName string

	// NFS
	StorageAccount string
	StorageRegion  string
}

// Validate checks the required dependency fields for the need's kind.
// A missing field is a caller error, never retried.
func (n Need) Validate() error {
	switch n.Kind {
	case KindBastionHost:
		if n.VNetID == "" && n.VNetName == "" {
			return apperrors.Dependency("vnet_id", "vnet_name")
		}
	case KindNFSPrivateEndpoint:
		if n.StorageAccount == "" {
			return apperrors.Dependency("storage_account")
		}
		if n.StorageRegion == "" {
			return apperrors.Dependency("storage_region")
		}
	}
	if n.Region == "" {
		return apperrors.Dependency("region")
	}
	if n.ResourceGroup == "" {
		return apperrors.Dependency("resource_group")
	}
	return nil
}

// SameRegion reports whether the backing resource lives in the
// consumer's own region, in which case a direct access path already
// exists and nothing needs to be provisioned.
func (n Need) SameRegion() bool {
	return n.StorageRegion != "" && strings.EqualFold(n.StorageRegion, n.Region)
}

// CrossRegion reports whether the backing resource lives in a
// different region than the consumer, requiring a network bridge.
func (n Need) CrossRegion() bool {
	return n.StorageRegion != "" && !strings.EqualFold(n.StorageRegion, n.Region)
}

// SupportsFallback reports whether the kind has a degraded alternative
// that avoids provisioning the shared resource.
func (k Kind) SupportsFallback() (Kind, bool) {
	if k == KindBastionHost {
		return KindPublicIP, true
	}
	return "", false
}
