package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show fleet and shared resource summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			inv, err := newInventory()
			if err != nil {
				return err
			}
			cleaner, err := newCleaner(resource.AllRegions)
			if err != nil {
				return err
			}

			format := getOutputFormat()
			if format != "table" {
				summary := map[string]interface{}{}

				vms, err := inv.ListVMs(ctx, resource.AllRegions)
				if err == nil {
					summary["vms"] = len(vms)
				}
				hosts, err := inv.ListResources(ctx, resource.KindBastionHost, resource.AllRegions)
				if err == nil {
					summary["bastion_hosts"] = len(hosts)
				}
				ips, err := inv.ListResources(ctx, resource.KindPublicIP, resource.AllRegions)
				if err == nil {
					summary["public_ips"] = len(ips)
				}
				orphans, err := cleaner.DetectOrphans(ctx, resource.KindBastionHost)
				if err == nil {
					summary["orphaned_bastion_hosts"] = len(orphans)
				}
				return printOutput(summary)
			}

			fmt.Println("Fleetgate Status")
			fmt.Println(strings.Repeat("=", 40))

			vms, err := inv.ListVMs(ctx, resource.AllRegions)
			if err != nil {
				fmt.Printf("  VMs:            (error: %v)\n", err)
			} else {
				private := 0
				for _, vm := range vms {
					if !vm.HasPublicAddress {
						private++
					}
				}
				fmt.Printf("  VMs:            %d total (%d bastion-dependent)\n", len(vms), private)
			}

			hosts, err := inv.ListResources(ctx, resource.KindBastionHost, resource.AllRegions)
			if err != nil {
				fmt.Printf("  Bastion hosts:  (error: %v)\n", err)
			} else {
				fmt.Printf("  Bastion hosts:  %d\n", len(hosts))
			}

			ips, err := inv.ListResources(ctx, resource.KindPublicIP, resource.AllRegions)
			if err != nil {
				fmt.Printf("  Public IPs:     (error: %v)\n", err)
			} else {
				fmt.Printf("  Public IPs:     %d\n", len(ips))
			}

			orphans, err := cleaner.DetectOrphans(ctx, resource.KindBastionHost)
			if err != nil {
				fmt.Printf("  Orphans:        (error: %v)\n", err)
			} else {
				var waste float64
				for _, o := range orphans {
					waste += o.MonthlyCost
				}
				fmt.Printf("  Orphans:        %d detected", len(orphans))
				if waste > 0 {
					fmt.Printf(" ($%.2f/month wasted)", waste)
				}
				fmt.Println()
			}

			return nil
		},
	}
}
