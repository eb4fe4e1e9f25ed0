package cleanup

// OrphanedResource describes a provisioned, billable resource no live
// consumer references. Recreated fresh per scan; never mutated or
// persisted.
type OrphanedResource struct {
	Name          string  `json:"name"`
	ResourceGroup string  `json:"resource_group"`
	Region        string  `json:"region"`
	SKU           string  `json:"sku"`
	MonthlyCost   float64 `json:"monthly_cost"`
}

// Decision is the operator's answer to a cleanup proposal. It is
// ephemeral and consumed immediately.
type Decision struct {
	Approved     bool     `json:"approved"`
	Names        []string `json:"names,omitempty"`
	TotalSavings float64  `json:"total_savings,omitempty"`
}

// Result is the per-resource outcome of a cleanup attempt. Partial
// success (primary deleted, auxiliary failed, or vice versa) is
// representable and surfaced, never coerced to full success.
type Result struct {
	Name             string   `json:"name"`
	Region           string   `json:"region"`
	Deleted          []string `json:"deleted,omitempty"`
	Failed           []string `json:"failed,omitempty"`
	EstimatedSavings float64  `json:"estimated_savings"`
	Errors           []string `json:"errors,omitempty"`
	DryRun           bool     `json:"dry_run,omitempty"`
}

// Successful reports full success: everything targeted was deleted and
// no errors were recorded.
func (r Result) Successful() bool {
	return len(r.Failed) == 0 && len(r.Errors) == 0
}
