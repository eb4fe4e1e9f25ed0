package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	armnetwork "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v5"
	armresources "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	armstorage "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
)

// API version for resources handled through the generic client
const privateDNSZoneAPIVersion = "2024-06-01"

// AzureProvisioner implements resource.Provisioner against Azure
// Resource Manager. Long-running operations are polled to completion;
// callers see a created or deleted resource, never an in-flight one.
type AzureProvisioner struct {
	subscriptionID string

	bastionClient  *armnetwork.BastionHostsClient
	publicIPClient *armnetwork.PublicIPAddressesClient
	vnetClient     *armnetwork.VirtualNetworksClient
	peeringClient  *armnetwork.VirtualNetworkPeeringsClient
	endpointClient *armnetwork.PrivateEndpointsClient
	genericClient  *armresources.Client
	storageClient  *armstorage.AccountsClient

	logger *logger.Logger
}

// NewAzureProvisioner creates a provisioner for one subscription
func NewAzureProvisioner(subscriptionID string, credential azcore.TokenCredential, log *logger.Logger) (*AzureProvisioner, error) {
	bastionClient, err := armnetwork.NewBastionHostsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bastion hosts client: %w", err)
	}
	publicIPClient, err := armnetwork.NewPublicIPAddressesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create public IP client: %w", err)
	}
	vnetClient, err := armnetwork.NewVirtualNetworksClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual networks client: %w", err)
	}
	peeringClient, err := armnetwork.NewVirtualNetworkPeeringsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create peerings client: %w", err)
	}
	endpointClient, err := armnetwork.NewPrivateEndpointsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create private endpoints client: %w", err)
	}
	genericClient, err := armresources.NewClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resources client: %w", err)
	}
	storageClient, err := armstorage.NewAccountsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage accounts client: %w", err)
	}

	return &AzureProvisioner{
		subscriptionID: subscriptionID,
		bastionClient:  bastionClient,
		publicIPClient: publicIPClient,
		vnetClient:     vnetClient,
		peeringClient:  peeringClient,
		endpointClient: endpointClient,
		genericClient:  genericClient,
		storageClient:  storageClient,
		logger:         log,
	}, nil
}

// Exists implements resource.Provisioner. A nil descriptor with a nil
// error means no match.
func (p *AzureProvisioner) Exists(ctx context.Context, kind resource.Kind, sel resource.Selector) (*resource.Descriptor, error) {
	switch kind {
	case resource.KindBastionHost:
		res, err := p.bastionClient.Get(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return bastionDescriptor(&res.BastionHost, sel.ResourceGroup), nil

	case resource.KindPublicIP:
		res, err := p.publicIPClient.Get(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return publicIPDescriptor(&res.PublicIPAddress, sel.ResourceGroup), nil

	case resource.KindVirtualNetwork:
		res, err := p.vnetClient.Get(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &resource.Descriptor{
			ID:            deref(res.ID),
			Name:          deref(res.Name),
			Kind:          kind,
			Region:        deref(res.Location),
			ResourceGroup: sel.ResourceGroup,
		}, nil

	case resource.KindVNetPeering:
		vnetName, peeringName, err := splitPeeringName(sel.Name)
		if err != nil {
			return nil, err
		}
		res, err := p.peeringClient.Get(ctx, sel.ResourceGroup, vnetName, peeringName, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &resource.Descriptor{
			ID:            deref(res.ID),
			Name:          sel.Name,
			Kind:          kind,
			Region:        sel.Region,
			ResourceGroup: sel.ResourceGroup,
		}, nil

	case resource.KindNFSPrivateEndpoint:
		res, err := p.endpointClient.Get(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &resource.Descriptor{
			ID:            deref(res.ID),
			Name:          deref(res.Name),
			Kind:          kind,
			Region:        deref(res.Location),
			ResourceGroup: sel.ResourceGroup,
		}, nil

	case resource.KindPrivateDNSZone:
		id := p.privateDNSZoneID(sel.ResourceGroup, sel.Name)
		res, err := p.genericClient.GetByID(ctx, id, privateDNSZoneAPIVersion, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &resource.Descriptor{
			ID:            deref(res.ID),
			Name:          deref(res.Name),
			Kind:          kind,
			Region:        "global",
			ResourceGroup: sel.ResourceGroup,
		}, nil

	case resource.KindStorageAccount:
		res, err := p.storageClient.GetProperties(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &resource.Descriptor{
			ID:            deref(res.ID),
			Name:          deref(res.Name),
			Kind:          kind,
			Region:        deref(res.Location),
			ResourceGroup: sel.ResourceGroup,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}

// Create implements resource.Provisioner
func (p *AzureProvisioner) Create(ctx context.Context, kind resource.Kind, params resource.CreateParams) (*resource.Descriptor, error) {
	switch kind {
	case resource.KindPublicIP:
		return p.createPublicIP(ctx, params)
	case resource.KindBastionHost:
		return p.createBastionHost(ctx, params)
	case resource.KindVNetPeering:
		return p.createPeering(ctx, params)
	case resource.KindNFSPrivateEndpoint:
		return p.createPrivateEndpoint(ctx, params)
	case resource.KindPrivateDNSZone:
		return p.createPrivateDNSZone(ctx, params)
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}

// Delete implements resource.Provisioner. Deleting a resource that is
// already gone is not an error.
func (p *AzureProvisioner) Delete(ctx context.Context, kind resource.Kind, sel resource.Selector) error {
	p.logger.WithFields(map[string]interface{}{
		"kind": kind,
		"name": sel.Name,
		"rg":   sel.ResourceGroup,
	}).Info("Deleting resource")

	switch kind {
	case resource.KindBastionHost:
		poller, err := p.bastionClient.BeginDelete(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return ignoreNotFound(err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err

	case resource.KindPublicIP:
		poller, err := p.publicIPClient.BeginDelete(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return ignoreNotFound(err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err

	case resource.KindVNetPeering:
		vnetName, peeringName, err := splitPeeringName(sel.Name)
		if err != nil {
			return err
		}
		poller, err := p.peeringClient.BeginDelete(ctx, sel.ResourceGroup, vnetName, peeringName, nil)
		if err != nil {
			return ignoreNotFound(err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err

	case resource.KindNFSPrivateEndpoint:
		poller, err := p.endpointClient.BeginDelete(ctx, sel.ResourceGroup, sel.Name, nil)
		if err != nil {
			return ignoreNotFound(err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err

	case resource.KindPrivateDNSZone:
		id := p.privateDNSZoneID(sel.ResourceGroup, sel.Name)
		poller, err := p.genericClient.BeginDeleteByID(ctx, id, privateDNSZoneAPIVersion, nil)
		if err != nil {
			return ignoreNotFound(err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err

	default:
		return fmt.Errorf("unsupported resource kind %q", kind)
	}
}

// StorageAccountRegion resolves the home region of a storage account,
// used to classify an NFS need as same-region or cross-region.
func (p *AzureProvisioner) StorageAccountRegion(ctx context.Context, resourceGroup, account string) (string, error) {
	res, err := p.storageClient.GetProperties(ctx, resourceGroup, account, nil)
	if err != nil {
		return "", fmt.Errorf("failed to look up storage account %s: %w", account, err)
	}
	return deref(res.Location), nil
}

func (p *AzureProvisioner) createPublicIP(ctx context.Context, params resource.CreateParams) (*resource.Descriptor, error) {
	poller, err := p.publicIPClient.BeginCreateOrUpdate(ctx, params.ResourceGroup, params.Name,
		armnetwork.PublicIPAddress{
			Location: to.Ptr(params.Region),
			SKU: &armnetwork.PublicIPAddressSKU{
				Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard),
			},
			Properties: &armnetwork.PublicIPAddressPropertiesFormat{
				PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			},
			Tags: toTagMap(params.Tags),
		}, nil)
	if err != nil {
		return nil, err
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return publicIPDescriptor(&res.PublicIPAddress, params.ResourceGroup), nil
}

func (p *AzureProvisioner) createBastionHost(ctx context.Context, params resource.CreateParams) (*resource.Descriptor, error) {
	if params.SubnetID == "" || params.PublicIPID == "" {
		return nil, fmt.Errorf("bastion host requires subnet_id and public_ip_id")
	}
	poller, err := p.bastionClient.BeginCreateOrUpdate(ctx, params.ResourceGroup, params.Name,
		armnetwork.BastionHost{
			Location: to.Ptr(params.Region),
			SKU: &armnetwork.SKU{
				Name: to.Ptr(armnetwork.BastionHostSKUNameBasic),
			},
			Properties: &armnetwork.BastionHostPropertiesFormat{
				IPConfigurations: []*armnetwork.BastionHostIPConfiguration{
					{
						Name: to.Ptr("bastion-ipconfig"),
						Properties: &armnetwork.BastionHostIPConfigurationPropertiesFormat{
							Subnet:          &armnetwork.SubResource{ID: to.Ptr(params.SubnetID)},
							PublicIPAddress: &armnetwork.SubResource{ID: to.Ptr(params.PublicIPID)},
						},
					},
				},
			},
			Tags: toTagMap(params.Tags),
		}, nil)
	if err != nil {
		return nil, err
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return bastionDescriptor(&res.BastionHost, params.ResourceGroup), nil
}

func (p *AzureProvisioner) createPeering(ctx context.Context, params resource.CreateParams) (*resource.Descriptor, error) {
	if params.VNetID == "" || params.RemoteVNetID == "" {
		return nil, fmt.Errorf("vnet peering requires vnet_id and remote_vnet_id")
	}
	vnetName := extractResourceName(params.VNetID)
	poller, err := p.peeringClient.BeginCreateOrUpdate(ctx, params.ResourceGroup, vnetName, params.Name,
		armnetwork.VirtualNetworkPeering{
			Properties: &armnetwork.VirtualNetworkPeeringPropertiesFormat{
				RemoteVirtualNetwork:      &armnetwork.SubResource{ID: to.Ptr(params.RemoteVNetID)},
				AllowVirtualNetworkAccess: to.Ptr(true),
				AllowForwardedTraffic:     to.Ptr(true),
			},
		}, nil)
	if err != nil {
		return nil, err
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &resource.Descriptor{
		ID:            deref(res.ID),
		Name:          vnetName + "/" + params.Name,
		Kind:          resource.KindVNetPeering,
		Region:        params.Region,
		ResourceGroup: params.ResourceGroup,
	}, nil
}

func (p *AzureProvisioner) createPrivateEndpoint(ctx context.Context, params resource.CreateParams) (*resource.Descriptor, error) {
	if params.SubnetID == "" || params.StorageAccountID == "" {
		return nil, fmt.Errorf("private endpoint requires subnet_id and storage_account_id")
	}
	poller, err := p.endpointClient.BeginCreateOrUpdate(ctx, params.ResourceGroup, params.Name,
		armnetwork.PrivateEndpoint{
			Location: to.Ptr(params.Region),
			Properties: &armnetwork.PrivateEndpointProperties{
				Subnet: &armnetwork.Subnet{ID: to.Ptr(params.SubnetID)},
				PrivateLinkServiceConnections: []*armnetwork.PrivateLinkServiceConnection{
					{
						Name: to.Ptr(params.Name),
						Properties: &armnetwork.PrivateLinkServiceConnectionProperties{
							PrivateLinkServiceID: to.Ptr(params.StorageAccountID),
							GroupIDs:             []*string{to.Ptr("file")},
						},
					},
				},
			},
			Tags: toTagMap(params.Tags),
		}, nil)
	if err != nil {
		return nil, err
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &resource.Descriptor{
		ID:            deref(res.ID),
		Name:          deref(res.Name),
		Kind:          resource.KindNFSPrivateEndpoint,
		Region:        deref(res.Location),
		ResourceGroup: params.ResourceGroup,
	}, nil
}

func (p *AzureProvisioner) createPrivateDNSZone(ctx context.Context, params resource.CreateParams) (*resource.Descriptor, error) {
	id := p.privateDNSZoneID(params.ResourceGroup, params.Name)
	poller, err := p.genericClient.BeginCreateOrUpdateByID(ctx, id, privateDNSZoneAPIVersion,
		armresources.GenericResource{
			Location: to.Ptr("global"),
			Tags:     toTagMap(params.Tags),
		}, nil)
	if err != nil {
		return nil, err
	}
	res, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &resource.Descriptor{
		ID:            deref(res.ID),
		Name:          deref(res.Name),
		Kind:          resource.KindPrivateDNSZone,
		Region:        "global",
		ResourceGroup: params.ResourceGroup,
	}, nil
}

func (p *AzureProvisioner) privateDNSZoneID(resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/privateDnsZones/%s",
		p.subscriptionID, resourceGroup, name)
}

// bastionDescriptor converts an SDK bastion host with pointer guards
func bastionDescriptor(host *armnetwork.BastionHost, resourceGroup string) *resource.Descriptor {
	desc := &resource.Descriptor{
		ID:            deref(host.ID),
		Name:          deref(host.Name),
		Kind:          resource.KindBastionHost,
		Region:        deref(host.Location),
		ResourceGroup: resourceGroup,
		Tags:          fromTagMap(host.Tags),
	}
	if host.SKU != nil && host.SKU.Name != nil {
		desc.SKU = string(*host.SKU.Name)
	}
	if host.Properties != nil && host.Properties.ProvisioningState != nil {
		desc.ProvisioningState = string(*host.Properties.ProvisioningState)
	}
	return desc
}

func publicIPDescriptor(ip *armnetwork.PublicIPAddress, resourceGroup string) *resource.Descriptor {
	desc := &resource.Descriptor{
		ID:            deref(ip.ID),
		Name:          deref(ip.Name),
		Kind:          resource.KindPublicIP,
		Region:        deref(ip.Location),
		ResourceGroup: resourceGroup,
		Tags:          fromTagMap(ip.Tags),
	}
	if ip.SKU != nil && ip.SKU.Name != nil {
		desc.SKU = string(*ip.SKU.Name)
	}
	if ip.Properties != nil && ip.Properties.ProvisioningState != nil {
		desc.ProvisioningState = string(*ip.Properties.ProvisioningState)
	}
	return desc
}

// splitPeeringName splits the "vnet/peering" compound selector name
func splitPeeringName(name string) (string, string, error) {
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("peering selector name must be vnet/peering, got %q", name)
	}
	return parts[0], parts[1], nil
}

// ignoreNotFound maps a 404 lookup to a nil result and a 404 deletion
// to success.
func ignoreNotFound(err error) error {
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toTagMap(tags map[string]string) map[string]*string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]*string, len(tags))
	for k, v := range tags {
		out[k] = to.Ptr(v)
	}
	return out
}

func fromTagMap(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = deref(v)
	}
	return out
}

// extractResourceName extracts the trailing resource name from an
// Azure resource ID.
func extractResourceName(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return resourceID
}

// extractResourceGroup extracts the resource group from an Azure
// resource ID.
func extractResourceGroup(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
