package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	armnetwork "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v5"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
)

// AzureInventory implements resource.Inventory with live subscription
// listings. Cleanup decisions are always made against what actually
// exists, never against a provisioning run's ledger.
type AzureInventory struct {
	vmClient        *armcompute.VirtualMachinesClient
	nicClient       *armnetwork.InterfacesClient
	bastionClient   *armnetwork.BastionHostsClient
	publicIPClient  *armnetwork.PublicIPAddressesClient
	endpointClient  *armnetwork.PrivateEndpointsClient
	resourceGroup   string

	logger *logger.Logger
}

// NewAzureInventory creates an inventory for one subscription. When
// resourceGroup is non-empty, listings are filtered to that group.
func NewAzureInventory(subscriptionID, resourceGroup string, credential azcore.TokenCredential, log *logger.Logger) (*AzureInventory, error) {
	vmClient, err := armcompute.NewVirtualMachinesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machines client: %w", err)
	}
	nicClient, err := armnetwork.NewInterfacesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network interfaces client: %w", err)
	}
	bastionClient, err := armnetwork.NewBastionHostsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bastion hosts client: %w", err)
	}
	publicIPClient, err := armnetwork.NewPublicIPAddressesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create public IP client: %w", err)
	}
	endpointClient, err := armnetwork.NewPrivateEndpointsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create private endpoints client: %w", err)
	}

	return &AzureInventory{
		vmClient:       vmClient,
		nicClient:      nicClient,
		bastionClient:  bastionClient,
		publicIPClient: publicIPClient,
		endpointClient: endpointClient,
		resourceGroup:  resourceGroup,
		logger:         log,
	}, nil
}

// ListVMs implements resource.Inventory
func (inv *AzureInventory) ListVMs(ctx context.Context, region string) ([]resource.VM, error) {
	var vms []resource.VM

	pager := inv.vmClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual machines: %w", err)
		}
		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			if !inv.inScope(deref(vm.ID)) {
				continue
			}
			vmRegion := deref(vm.Location)
			if !regionMatches(region, vmRegion) {
				continue
			}
			hasPublic, err := inv.hasPublicAddress(ctx, vm)
			if err != nil {
				// A NIC we cannot inspect counts as private: the VM
				// stays a dependent and blocks cleanup in its region.
				inv.logger.WithError(err).Warnf("Could not inspect NICs for VM %s, treating as private", deref(vm.Name))
				hasPublic = false
			}
			vms = append(vms, resource.VM{
				Name:             deref(vm.Name),
				Region:           vmRegion,
				HasPublicAddress: hasPublic,
			})
		}
	}

	inv.logger.Debugf("Listed %d VMs in scope %q", len(vms), region)
	return vms, nil
}

// ListResources implements resource.Inventory
func (inv *AzureInventory) ListResources(ctx context.Context, kind resource.Kind, region string) ([]resource.Descriptor, error) {
	switch kind {
	case resource.KindBastionHost:
		return inv.listBastionHosts(ctx, region)
	case resource.KindPublicIP:
		return inv.listPublicIPs(ctx, region)
	case resource.KindNFSPrivateEndpoint:
		return inv.listPrivateEndpoints(ctx, region)
	default:
		return nil, fmt.Errorf("unsupported inventory kind %q", kind)
	}
}

func (inv *AzureInventory) listBastionHosts(ctx context.Context, region string) ([]resource.Descriptor, error) {
	var hosts []resource.Descriptor

	pager := inv.bastionClient.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bastion hosts: %w", err)
		}
		for _, host := range page.Value {
			if host == nil {
				continue
			}
			if !inv.inScope(deref(host.ID)) || !regionMatches(region, deref(host.Location)) {
				continue
			}
			hosts = append(hosts, *bastionDescriptor(host, extractResourceGroup(deref(host.ID))))
		}
	}
	return hosts, nil
}

func (inv *AzureInventory) listPublicIPs(ctx context.Context, region string) ([]resource.Descriptor, error) {
	var ips []resource.Descriptor

	pager := inv.publicIPClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list public IPs: %w", err)
		}
		for _, ip := range page.Value {
			if ip == nil {
				continue
			}
			if !inv.inScope(deref(ip.ID)) || !regionMatches(region, deref(ip.Location)) {
				continue
			}
			ips = append(ips, *publicIPDescriptor(ip, extractResourceGroup(deref(ip.ID))))
		}
	}
	return ips, nil
}

func (inv *AzureInventory) listPrivateEndpoints(ctx context.Context, region string) ([]resource.Descriptor, error) {
	var endpoints []resource.Descriptor

	pager := inv.endpointClient.NewListBySubscriptionPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list private endpoints: %w", err)
		}
		for _, ep := range page.Value {
			if ep == nil {
				continue
			}
			if !inv.inScope(deref(ep.ID)) || !regionMatches(region, deref(ep.Location)) {
				continue
			}
			desc := resource.Descriptor{
				ID:            deref(ep.ID),
				Name:          deref(ep.Name),
				Kind:          resource.KindNFSPrivateEndpoint,
				Region:        deref(ep.Location),
				ResourceGroup: extractResourceGroup(deref(ep.ID)),
				Tags:          fromTagMap(ep.Tags),
			}
			if ep.Properties != nil && ep.Properties.ProvisioningState != nil {
				desc.ProvisioningState = string(*ep.Properties.ProvisioningState)
			}
			endpoints = append(endpoints, desc)
		}
	}
	return endpoints, nil
}

// hasPublicAddress walks the VM's NICs looking for an attached public
// IP configuration.
func (inv *AzureInventory) hasPublicAddress(ctx context.Context, vm *armcompute.VirtualMachine) (bool, error) {
	if vm.Properties == nil || vm.Properties.NetworkProfile == nil {
		return false, nil
	}
	for _, nicRef := range vm.Properties.NetworkProfile.NetworkInterfaces {
		if nicRef == nil || nicRef.ID == nil {
			continue
		}
		nicRG := extractResourceGroup(*nicRef.ID)
		nicName := extractResourceName(*nicRef.ID)
		nic, err := inv.nicClient.Get(ctx, nicRG, nicName, nil)
		if err != nil {
			return false, fmt.Errorf("failed to get NIC %s: %w", nicName, err)
		}
		if nic.Properties == nil {
			continue
		}
		for _, ipconf := range nic.Properties.IPConfigurations {
			if ipconf == nil || ipconf.Properties == nil {
				continue
			}
			if ipconf.Properties.PublicIPAddress != nil {
				return true, nil
			}
		}
	}
	return false, nil
}

// inScope applies the optional resource group filter
func (inv *AzureInventory) inScope(resourceID string) bool {
	if inv.resourceGroup == "" {
		return true
	}
	return strings.EqualFold(extractResourceGroup(resourceID), inv.resourceGroup)
}

func regionMatches(want, got string) bool {
	return want == resource.AllRegions || strings.EqualFold(want, got)
}
