package cost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
)

// serviceNameByKind maps a resource kind to the Azure Cost Management
// ServiceName dimension it is billed under.
var serviceNameByKind = map[resource.Kind]string{
	resource.KindBastionHost:        "Azure Bastion",
	resource.KindPublicIP:           "Virtual Network",
	resource.KindNFSPrivateEndpoint: "Azure Private Link",
	resource.KindVNetPeering:        "Virtual Network",
	resource.KindPrivateDNSZone:     "Azure DNS",
}

// AzureEstimator projects monthly cost from the last 30 days of
// actuals in Azure Cost Management. Any API failure falls back to the
// static table so the decision flow never blocks on cost estimation.
type AzureEstimator struct {
	client         *armcostmanagement.QueryClient
	subscriptionID string
	fallback       Table
	logger         *logger.Logger
}

// NewAzureEstimator creates a cost estimator backed by Azure Cost
// Management actuals.
func NewAzureEstimator(subscriptionID string, credential azcore.TokenCredential, log *logger.Logger) (*AzureEstimator, error) {
	client, err := armcostmanagement.NewQueryClient(credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client: %w", err)
	}
	return &AzureEstimator{
		client:         client,
		subscriptionID: subscriptionID,
		fallback:       NewTable(),
		logger:         log,
	}, nil
}

// Estimate implements resource.CostEstimator
func (e *AzureEstimator) Estimate(ctx context.Context, desc resource.Descriptor) (resource.Estimate, error) {
	serviceName, ok := serviceNameByKind[desc.Kind]
	if !ok {
		return e.fallback.Estimate(ctx, desc)
	}

	monthly, err := e.queryServiceCost(ctx, serviceName, desc.Region)
	if err != nil || monthly <= 0 {
		if err != nil {
			e.logger.WithFields(map[string]interface{}{
				"kind":   desc.Kind,
				"region": desc.Region,
			}).ErrorWithErr(err, "Cost Management query failed, using static estimate")
		}
		return e.fallback.Estimate(ctx, desc)
	}

	return resource.Estimate{
		Monthly:    monthly,
		Hourly:     monthly / hoursPerMonth,
		Breakdown:  map[string]float64{serviceName: monthly},
		Confidence: "actuals",
	}, nil
}

// queryServiceCost sums the last 30 days of pre-tax cost for a service
// in a region and projects it to a monthly figure.
func (e *AzureEstimator) queryServiceCost(ctx context.Context, serviceName, region string) (float64, error) {
	now := time.Now().UTC()
	startDate := now.AddDate(0, 0, -30)

	scope := fmt.Sprintf("subscriptions/%s", e.subscriptionID)

	timePeriod := armcostmanagement.QueryTimePeriod{
		From: &startDate,
		To:   &now,
	}

	sumFunc := armcostmanagement.FunctionTypeSum
	costColumn := "PreTaxCost"
	queryAggregation := map[string]*armcostmanagement.QueryAggregation{
		costColumn: {
			Name:     &costColumn,
			Function: &sumFunc,
		},
	}

	dimGrouping := armcostmanagement.QueryColumnTypeDimension
	serviceCol := "ServiceName"
	locationCol := "ResourceLocation"
	queryGrouping := []*armcostmanagement.QueryGrouping{
		{Type: &dimGrouping, Name: &serviceCol},
		{Type: &dimGrouping, Name: &locationCol},
	}

	granularity := armcostmanagement.GranularityTypeDaily
	timeframeCustom := armcostmanagement.TimeframeTypeCustom
	exportTypeUsage := armcostmanagement.ExportTypeActualCost

	queryDef := armcostmanagement.QueryDefinition{
		Type:       &exportTypeUsage,
		Timeframe:  &timeframeCustom,
		TimePeriod: &timePeriod,
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: queryAggregation,
			Grouping:    queryGrouping,
		},
	}

	result, err := e.client.Usage(ctx, scope, queryDef, nil)
	if err != nil {
		return 0, fmt.Errorf("Azure Cost Management API error: %w", err)
	}

	if result.Properties == nil || result.Properties.Rows == nil {
		return 0, nil
	}

	colIndex := make(map[string]int)
	for i, col := range result.Properties.Columns {
		if col != nil && col.Name != nil {
			colIndex[*col.Name] = i
		}
	}

	costIdx, hasCost := colIndex[costColumn]
	serviceIdx, hasService := colIndex[serviceCol]
	locationIdx, hasLocation := colIndex[locationCol]
	if !hasCost || !hasService {
		return 0, nil
	}

	var total float64
	for _, row := range result.Properties.Rows {
		if len(row) <= costIdx || len(row) <= serviceIdx {
			continue
		}
		name, ok := row[serviceIdx].(string)
		if !ok || !strings.EqualFold(name, serviceName) {
			continue
		}
		if hasLocation && region != "" && len(row) > locationIdx {
			if loc, ok := row[locationIdx].(string); ok && !regionMatches(loc, region) {
				continue
			}
		}
		if v, ok := row[costIdx].(float64); ok {
			total += v
		}
	}

	// 30 days of actuals projected to a calendar month
	return total * (hoursPerMonth / (30.0 * 24.0)), nil
}

// regionMatches compares a Cost Management location display name with
// a region short name ("East US" vs "eastus").
func regionMatches(location, region string) bool {
	normalize := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, " ", ""))
	}
	return normalize(location) == normalize(region)
}
