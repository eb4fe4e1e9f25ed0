package cost

import (
	"context"
	"math"
	"testing"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

func TestBastionMonthly(t *testing.T) {
	tests := []struct {
		sku  string
		want float64
	}{
		{sku: "Basic", want: 143.65},
		{sku: "Standard", want: 293.65},
		{sku: "Premium", want: 583.65},
		{sku: "Developer", want: 143.65}, // unknown tier defaults to Basic
		{sku: "", want: 143.65},
	}

	for _, tt := range tests {
		t.Run("sku "+tt.sku, func(t *testing.T) {
			if got := BastionMonthly(tt.sku); got != tt.want {
				t.Errorf("BastionMonthly(%q) = %.2f, want %.2f", tt.sku, got, tt.want)
			}
		})
	}
}

func TestKindMonthly(t *testing.T) {
	if got := KindMonthly(resource.KindBastionHost); got != 143.65 {
		t.Errorf("KindMonthly(bastion-host) = %.2f, want 143.65", got)
	}
	if got := KindMonthly(resource.KindPublicIP); got != PublicIPMonthly {
		t.Errorf("KindMonthly(public-ip) = %.2f, want %.2f", got, PublicIPMonthly)
	}
	if got := KindMonthly(resource.KindVirtualNetwork); got != 0 {
		t.Errorf("KindMonthly(virtual-network) = %.2f, want 0", got)
	}
}

func TestTable_Estimate_BastionBreakdown(t *testing.T) {
	est, err := NewTable().Estimate(context.Background(), resource.Descriptor{
		Kind: resource.KindBastionHost,
		SKU:  "Standard",
	})
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if est.Monthly != 293.65 {
		t.Errorf("Monthly = %.2f, want 293.65", est.Monthly)
	}
	if est.Breakdown["bastion"] != 290.00 {
		t.Errorf("Breakdown[bastion] = %.2f, want 290.00", est.Breakdown["bastion"])
	}
	if est.Breakdown["public-ip"] != PublicIPMonthly {
		t.Errorf("Breakdown[public-ip] = %.2f, want %.2f", est.Breakdown["public-ip"], PublicIPMonthly)
	}
	if math.Abs(est.Hourly-est.Monthly/730) > 1e-9 {
		t.Errorf("Hourly = %f, want monthly/730", est.Hourly)
	}
	if est.Confidence != "static" {
		t.Errorf("Confidence = %q, want static", est.Confidence)
	}
}

func TestTable_Estimate_OtherKinds(t *testing.T) {
	est, err := NewTable().Estimate(context.Background(), resource.Descriptor{
		Kind: resource.KindNFSPrivateEndpoint,
	})
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if est.Monthly != 7.30 {
		t.Errorf("Monthly = %.2f, want 7.30", est.Monthly)
	}
}
