package cost

import (
	"context"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

// PublicIPMonthly is the fixed monthly cost of one standard static
// public IP address.
const PublicIPMonthly = 3.65

// bastionBaseMonthly maps a bastion SKU tier to its fixed monthly base
// price, excluding the public IP the host requires.
var bastionBaseMonthly = map[string]float64{
	"Basic":    140.00,
	"Standard": 290.00,
	"Premium":  580.00,
}

// kindMonthlyDefault holds the built-in per-kind estimates used when
// no cost estimator is configured or reachable.
var kindMonthlyDefault = map[resource.Kind]float64{
	resource.KindBastionHost:        bastionBaseMonthly["Basic"] + PublicIPMonthly,
	resource.KindPublicIP:           PublicIPMonthly,
	resource.KindNFSPrivateEndpoint: 7.30,
	resource.KindVNetPeering:        9.00,
	resource.KindPrivateDNSZone:     0.50,
	resource.KindVirtualNetwork:     0,
}

const hoursPerMonth = 730

// BastionMonthly returns the monthly cost of a bastion host with the
// given SKU tier, including its public IP. An unknown or absent SKU
// defaults to the cheapest tier.
func BastionMonthly(sku string) float64 {
	base, ok := bastionBaseMonthly[sku]
	if !ok {
		base = bastionBaseMonthly["Basic"]
	}
	return base + PublicIPMonthly
}

// KindMonthly returns the built-in monthly default for a kind
func KindMonthly(kind resource.Kind) float64 {
	return kindMonthlyDefault[kind]
}

// Table is a static cost estimator backed by the built-in price
// tables. Always available; used directly and as the fallback for the
// Azure-backed estimator.
type Table struct{}

// NewTable creates a static table estimator
func NewTable() Table {
	return Table{}
}

// Estimate implements resource.CostEstimator
func (Table) Estimate(_ context.Context, desc resource.Descriptor) (resource.Estimate, error) {
	var monthly float64
	breakdown := map[string]float64{}

	switch desc.Kind {
	case resource.KindBastionHost:
		base := bastionBaseMonthly[desc.SKU]
		if base == 0 {
			base = bastionBaseMonthly["Basic"]
		}
		monthly = base + PublicIPMonthly
		breakdown["bastion"] = base
		breakdown["public-ip"] = PublicIPMonthly
	default:
		monthly = kindMonthlyDefault[desc.Kind]
		breakdown[string(desc.Kind)] = monthly
	}

	return resource.Estimate{
		Monthly:    monthly,
		Hourly:     monthly / hoursPerMonth,
		Breakdown:  breakdown,
		Confidence: "static",
	}, nil
}
