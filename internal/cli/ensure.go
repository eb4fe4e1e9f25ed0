package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetgate/fleetgate/internal/domain/ledger"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/interaction"
	"github.com/fleetgate/fleetgate/internal/orchestrator"
	apperrors "github.com/fleetgate/fleetgate/internal/pkg/errors"
	"github.com/fleetgate/fleetgate/internal/providers"
	"github.com/fleetgate/fleetgate/internal/replicator"
)

func newEnsureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Ensure shared resources exist for a fleet region",
	}
	cmd.AddCommand(newEnsureBastionCmd())
	cmd.AddCommand(newEnsureNFSCmd())
	cmd.AddCommand(newEnsureIPsCmd())
	return cmd
}

func newEnsureBastionCmd() *cobra.Command {
	var (
		region        string
		resourceGroup string
		vnetID        string
		vnetName      string
		subnetID      string
	)

	cmd := &cobra.Command{
		Use:   "bastion",
		Short: "Ensure a shared bastion host exists for a region",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			prov, err := newProvisioner()
			if err != nil {
				return err
			}

			need := resource.Need{
				Kind:          resource.KindBastionHost,
				Region:        defaultString(region, appConfig.Azure.Region),
				ResourceGroup: defaultString(resourceGroup, appConfig.Azure.ResourceGroup),
				VNetID:        vnetID,
				VNetName:      vnetName,
			}

			ia := interaction.NewTerminal()
			orch := orchestrator.New(prov, ia, appLogger,
				orchestrator.WithCostEstimator(newEstimator()),
				orchestrator.WithDryRun(dryRun))

			decision, err := orch.Ensure(ctx, need)
			if err != nil {
				return err
			}

			if decision.Action == resource.ActionCreate {
				if err := provisionBastion(ctx, orch, prov, need, decision, subnetID); err != nil {
					return err
				}
			}
			return printDecision(decision, orch.Summary())
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "fleet region (default from config)")
	cmd.Flags().StringVar(&resourceGroup, "resource-group", "", "resource group (default from config)")
	cmd.Flags().StringVar(&vnetID, "vnet-id", "", "virtual network resource ID")
	cmd.Flags().StringVar(&vnetName, "vnet-name", "", "virtual network name")
	cmd.Flags().StringVar(&subnetID, "subnet-id", "", "AzureBastionSubnet resource ID, required to create")

	return cmd
}

// provisionBastion creates the public IP and then the host, tracking
// both so a mid-chain failure unwinds back to front.
func provisionBastion(ctx context.Context, orch *orchestrator.Orchestrator, prov *providers.AzureProvisioner, need resource.Need, decision *resource.Decision, subnetID string) error {
	if subnetID == "" {
		return apperrors.Dependency("subnet_id")
	}
	if dryRun {
		appLogger.Infof("dry run: would create %s %q with its public IP", need.Kind, decision.ResourceName)
		return nil
	}

	ipName := decision.ResourceName + "-pip"
	ipDesc, err := prov.Create(ctx, resource.KindPublicIP, resource.CreateParams{
		Name:          ipName,
		ResourceGroup: need.ResourceGroup,
		Region:        need.Region,
		Tags:          map[string]string{"managed-by": "fleetgate"},
	})
	if err != nil {
		return apperrors.Provision(string(resource.KindPublicIP), err)
	}
	ipEntry := orch.Track(resource.KindPublicIP, ipDesc.ID, ipName, nil,
		deleteReversal(prov, resource.KindPublicIP, ipName, need), nil)

	hostDesc, err := prov.Create(ctx, resource.KindBastionHost, resource.CreateParams{
		Name:          decision.ResourceName,
		ResourceGroup: need.ResourceGroup,
		Region:        need.Region,
		SubnetID:      subnetID,
		PublicIPID:    ipDesc.ID,
		Tags:          map[string]string{"managed-by": "fleetgate", "pip": ipName},
	})
	if err != nil {
		orch.Rollback(ctx, "bastion host creation failed")
		return apperrors.Provision(string(resource.KindBastionHost), err)
	}
	orch.Track(resource.KindBastionHost, hostDesc.ID, decision.ResourceName, []string{ipEntry.ID},
		deleteReversal(prov, resource.KindBastionHost, decision.ResourceName, need),
		map[string]string{"pip": ipName})

	decision.ResourceID = hostDesc.ID
	return nil
}

func newEnsureNFSCmd() *cobra.Command {
	var (
		region         string
		resourceGroup  string
		storageAccount string
		storageRG      string
		storageRegion  string
		subnetID       string
		vnetID         string
		remoteVNetID   string
	)

	cmd := &cobra.Command{
		Use:   "nfs",
		Short: "Ensure an NFS path from a fleet region to home storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			prov, err := newProvisioner()
			if err != nil {
				return err
			}

			fleetRegion := defaultString(region, appConfig.Azure.Region)
			rg := defaultString(resourceGroup, appConfig.Azure.ResourceGroup)
			homeRG := defaultString(storageRG, rg)

			// The home region comes from the live account unless given.
			if storageRegion == "" && storageAccount != "" {
				storageRegion, err = prov.StorageAccountRegion(ctx, homeRG, storageAccount)
				if err != nil {
					return apperrors.Discovery(string(resource.KindStorageAccount), err)
				}
			}

			need := resource.Need{
				Kind:           resource.KindNFSPrivateEndpoint,
				Region:         fleetRegion,
				ResourceGroup:  rg,
				StorageAccount: storageAccount,
				StorageRegion:  storageRegion,
			}

			ia := interaction.NewTerminal()
			orch := orchestrator.New(prov, ia, appLogger,
				orchestrator.WithCostEstimator(newEstimator()),
				orchestrator.WithDryRun(dryRun))

			decision, err := orch.Ensure(ctx, need)
			if err != nil {
				return err
			}

			if decision.Action == resource.ActionCreate {
				if err := provisionNFSPath(ctx, orch, prov, need, decision, nfsPathInputs{
					subnetID:     subnetID,
					vnetID:       vnetID,
					remoteVNetID: remoteVNetID,
					storageRG:    homeRG,
				}); err != nil {
					return err
				}
			}
			return printDecision(decision, orch.Summary())
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "fleet region (default from config)")
	cmd.Flags().StringVar(&resourceGroup, "resource-group", "", "resource group (default from config)")
	cmd.Flags().StringVar(&storageAccount, "storage-account", "", "NFS home storage account name")
	cmd.Flags().StringVar(&storageRG, "storage-resource-group", "", "storage account resource group (default --resource-group)")
	cmd.Flags().StringVar(&storageRegion, "storage-region", "", "storage home region (default: resolved from the account)")
	cmd.Flags().StringVar(&subnetID, "subnet-id", "", "fleet subnet resource ID, required to create")
	cmd.Flags().StringVar(&vnetID, "vnet-id", "", "fleet virtual network resource ID, enables peering")
	cmd.Flags().StringVar(&remoteVNetID, "remote-vnet-id", "", "home virtual network resource ID, enables peering")

	return cmd
}

type nfsPathInputs struct {
	subnetID     string
	vnetID       string
	remoteVNetID string
	storageRG    string
}

// privateDNSZoneName is the zone Azure Files private endpoints resolve
// through.
const privateDNSZoneName = "privatelink.file.core.windows.net"

// provisionNFSPath builds the cross-region path: DNS zone, optional
// vnet peering, then the private endpoint. Each step is tracked with
// its predecessors as dependencies; a failed step rolls the chain back.
func provisionNFSPath(ctx context.Context, orch *orchestrator.Orchestrator, prov *providers.AzureProvisioner, need resource.Need, decision *resource.Decision, in nfsPathInputs) error {
	if in.subnetID == "" {
		return apperrors.Dependency("subnet_id")
	}
	if dryRun {
		appLogger.Infof("dry run: would create NFS path to %q for region %s", need.StorageAccount, need.Region)
		return nil
	}

	sub, err := subscriptionID()
	if err != nil {
		return err
	}

	var dependsOn []string

	zoneDesc, err := prov.Create(ctx, resource.KindPrivateDNSZone, resource.CreateParams{
		Name:          privateDNSZoneName,
		ResourceGroup: need.ResourceGroup,
		Tags:          map[string]string{"managed-by": "fleetgate"},
	})
	if err != nil {
		return apperrors.Provision(string(resource.KindPrivateDNSZone), err)
	}
	zoneEntry := orch.Track(resource.KindPrivateDNSZone, zoneDesc.ID, privateDNSZoneName, nil,
		deleteReversal(prov, resource.KindPrivateDNSZone, privateDNSZoneName, need), nil)
	dependsOn = append(dependsOn, zoneEntry.ID)

	if in.vnetID != "" && in.remoteVNetID != "" {
		peeringName := "peer-" + need.StorageRegion
		peerDesc, err := prov.Create(ctx, resource.KindVNetPeering, resource.CreateParams{
			Name:          peeringName,
			ResourceGroup: need.ResourceGroup,
			Region:        need.Region,
			VNetID:        in.vnetID,
			RemoteVNetID:  in.remoteVNetID,
		})
		if err != nil {
			orch.Rollback(ctx, "vnet peering creation failed")
			return apperrors.Provision(string(resource.KindVNetPeering), err)
		}
		peerEntry := orch.Track(resource.KindVNetPeering, peerDesc.ID, peerDesc.Name, dependsOn,
			deleteReversal(prov, resource.KindVNetPeering, peerDesc.Name, need), nil)
		dependsOn = append(dependsOn, peerEntry.ID)
	}

	storageAccountID := fmt.Sprintf(
		"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s",
		sub, in.storageRG, need.StorageAccount)

	epDesc, err := prov.Create(ctx, resource.KindNFSPrivateEndpoint, resource.CreateParams{
		Name:             decision.ResourceName,
		ResourceGroup:    need.ResourceGroup,
		Region:           need.Region,
		SubnetID:         in.subnetID,
		StorageAccountID: storageAccountID,
		Tags:             map[string]string{"managed-by": "fleetgate"},
	})
	if err != nil {
		orch.Rollback(ctx, "private endpoint creation failed")
		return apperrors.Provision(string(resource.KindNFSPrivateEndpoint), err)
	}
	orch.Track(resource.KindNFSPrivateEndpoint, epDesc.ID, decision.ResourceName, dependsOn,
		deleteReversal(prov, resource.KindNFSPrivateEndpoint, decision.ResourceName, need), nil)

	decision.ResourceID = epDesc.ID
	return nil
}

func newEnsureIPsCmd() *cobra.Command {
	var (
		region        string
		resourceGroup string
		prefix        string
		count         int
	)

	cmd := &cobra.Command{
		Use:   "ips",
		Short: "Provision a batch of public IPs for fallback-mode VMs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}

			prov, err := newProvisioner()
			if err != nil {
				return err
			}

			rg := defaultString(resourceGroup, appConfig.Azure.ResourceGroup)
			loc := defaultString(region, appConfig.Azure.Region)

			units := make([]replicator.Unit, 0, count)
			for i := 0; i < count; i++ {
				units = append(units, replicator.Unit{
					Kind: resource.KindPublicIP,
					Params: resource.CreateParams{
						Name:          fmt.Sprintf("%s-%d", prefix, i),
						ResourceGroup: rg,
						Region:        loc,
						Tags:          map[string]string{"managed-by": "fleetgate"},
					},
				})
			}

			rep := replicator.New(prov, appLogger,
				replicator.WithWorkers(appConfig.Replicator.Workers),
				replicator.WithRateLimit(appConfig.Replicator.RatePerSecond, appConfig.Replicator.Burst))

			report := rep.Replicate(ctx, units)

			if getOutputFormat() != "table" {
				if err := printOutput(report); err != nil {
					return err
				}
			} else {
				table := NewTable("NAME", "KIND", "STATUS")
				for _, res := range report.Results {
					status := "created"
					if res.Err != nil {
						status = "failed: " + res.Err.Error()
					}
					table.AddRow(res.Name, string(res.Kind), formatStatus(status))
				}
				table.Render()
				fmt.Printf("\n%d created, %d failed\n", report.Succeeded, report.Failed)
			}

			if report.Failed > 0 {
				return fmt.Errorf("%d of %d units failed", report.Failed, len(units))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "fleet region (default from config)")
	cmd.Flags().StringVar(&resourceGroup, "resource-group", "", "resource group (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "fleet-ip", "public IP name prefix")
	cmd.Flags().IntVar(&count, "count", 1, "number of IPs to provision")

	return cmd
}

// deleteReversal captures the Provisioner call that undoes a create
func deleteReversal(prov *providers.AzureProvisioner, kind resource.Kind, name string, need resource.Need) ledger.ReversalFunc {
	return func(ctx context.Context) error {
		return prov.Delete(ctx, kind, resource.Selector{
			Name:          name,
			ResourceGroup: need.ResourceGroup,
			Region:        need.Region,
		})
	}
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// printDecision renders the decision plus the run ledger
func printDecision(decision *resource.Decision, summary ledger.Summary) error {
	if getOutputFormat() != "table" {
		return printOutput(map[string]interface{}{
			"decision": decision,
			"ledger":   summary,
		})
	}

	table := NewTable("ACTION", "RESOURCE", "MONTHLY ESTIMATE")
	estimate := ""
	if decision.MonthlyEstimate > 0 {
		estimate = fmt.Sprintf("$%.2f", decision.MonthlyEstimate)
	}
	table.AddRow(string(decision.Action), decision.ResourceName, estimate)
	table.Render()

	if summary.Total > 0 {
		fmt.Println()
		ledgerTable := NewTable("KIND", "NAME", "STATUS")
		for _, entry := range summary.Resources {
			ledgerTable.AddRow(string(entry.Kind), entry.Name, formatStatus(string(entry.Status)))
		}
		ledgerTable.Render()
	}
	return nil
}
